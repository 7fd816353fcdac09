package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Platform identifies a marketplace
type Platform string

const (
	PlatformEbay    Platform = "ebay"
	PlatformShopify Platform = "shopify"
)

// IsValid returns true for known platforms
func (p Platform) IsValid() bool {
	return p == PlatformEbay || p == PlatformShopify
}

// Connector errors
var (
	ErrPlatformNotConfigured = errors.New("integration: platform not configured for this store")
	ErrPlatformNotFound      = errors.New("integration: no connector registered for platform")
	ErrConnectorUnavailable  = errors.New("integration: platform connector unavailable")
	ErrOrderNotFound         = errors.New("integration: order not found on platform")
)

// ExternalOrderLine is one line of an order pulled from a platform
type ExternalOrderLine struct {
	SKU       string          `json:"sku"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ExternalOrder is an order as a platform reports it
type ExternalOrder struct {
	ExternalID string              `json:"external_id"`
	Platform   Platform            `json:"platform"`
	Buyer      string              `json:"buyer"`
	Total      decimal.Decimal     `json:"total"`
	Currency   string              `json:"currency"`
	PlacedAt   time.Time           `json:"placed_at"`
	Lines      []ExternalOrderLine `json:"lines"`
}

// ListingDTO is the platform representation of a product listing
type ListingDTO struct {
	SKU         string          `json:"sku"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Category    string          `json:"category,omitempty"`
	ImageURLs   []string        `json:"image_urls,omitempty"`
	Attributes  map[string]any  `json:"attributes,omitempty"`
}

// InventoryUpdate is one entry of a bulk inventory push
type InventoryUpdate struct {
	SKU        string `json:"sku"`
	ExternalID string `json:"external_id,omitempty"`
	Quantity   int    `json:"quantity"`
}

// SKUResult is the per-sku outcome of a bulk inventory push
type SKUResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// PlatformConnector is the port every marketplace adapter implements.
// All methods are blocking, latency-bearing I/O and must honor ctx deadlines.
type PlatformConnector interface {
	// Platform returns the marketplace this connector talks to
	Platform() Platform
	// IsConfigured reports whether the store has credentials for this platform
	IsConfigured(ctx context.Context, tenantID uuid.UUID) bool
	// GetOrders pulls orders placed since the given instant
	GetOrders(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]ExternalOrder, error)
	// GetOrder retrieves one order by its platform id
	GetOrder(ctx context.Context, tenantID uuid.UUID, externalID string) (*ExternalOrder, error)
	// CreateProduct creates a listing and returns its platform id
	CreateProduct(ctx context.Context, tenantID uuid.UUID, dto ListingDTO) (string, error)
	// UpdateProduct updates an existing listing
	UpdateProduct(ctx context.Context, tenantID uuid.UUID, externalID string, dto ListingDTO) error
	// BulkUpdateInventory pushes quantities for many listings at once and
	// reports success or failure per sku
	BulkUpdateInventory(ctx context.Context, tenantID uuid.UUID, updates []InventoryUpdate) (map[string]SKUResult, error)
}

// ConnectorRegistry resolves connectors by platform
type ConnectorRegistry interface {
	// Connector returns the adapter for the given platform
	Connector(platform Platform) (PlatformConnector, error)
	// ConfiguredConnectors returns the adapters the store has credentials for
	ConfiguredConnectors(ctx context.Context, tenantID uuid.UUID) []PlatformConnector
}
