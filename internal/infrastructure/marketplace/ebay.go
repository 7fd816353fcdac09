package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storeops/backend/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from a marketplace API (10MB)
const maxResponseSize = 10 * 1024 * 1024

const (
	// EbayProductionAPIURL is the production API endpoint
	EbayProductionAPIURL = "https://api.ebay.com"
	// EbaySandboxAPIURL is the sandbox API endpoint
	EbaySandboxAPIURL = "https://api.sandbox.ebay.com"
)

// Errors for eBay configuration
var (
	ErrEbayConfigMissingToken = errors.New("ebay: oauth token is required")
)

// EbayConfig holds credentials for one store's eBay connection
type EbayConfig struct {
	// OAuthToken is the user access token for the Sell APIs
	OAuthToken string
	// MarketplaceID selects the eBay site, EBAY_US by default
	MarketplaceID string
	// APIBaseURL is the base URL (production or sandbox)
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// Validate checks required fields and fills defaults
func (c *EbayConfig) Validate() error {
	if c.OAuthToken == "" {
		return ErrEbayConfigMissingToken
	}
	if c.MarketplaceID == "" {
		c.MarketplaceID = "EBAY_US"
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = EbayProductionAPIURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// EbayConnector implements PlatformConnector for eBay's Sell APIs
type EbayConnector struct {
	config     *EbayConfig
	httpClient *http.Client

	// tenantConfigs stores per-tenant credentials, keyed by store
	tenantConfigs map[uuid.UUID]*EbayConfig
	mu            sync.RWMutex
}

// NewEbayConnector creates an eBay connector with an optional default config
func NewEbayConnector(config *EbayConfig) (*EbayConnector, error) {
	timeout := 30 * time.Second
	if config != nil {
		if err := config.Validate(); err != nil {
			return nil, err
		}
		timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}
	return &EbayConnector{
		config:        config,
		httpClient:    &http.Client{Timeout: timeout},
		tenantConfigs: make(map[uuid.UUID]*EbayConfig),
	}, nil
}

// SetTenantConfig sets the credentials for a specific store
func (c *EbayConnector) SetTenantConfig(tenantID uuid.UUID, config *EbayConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tenantConfigs[tenantID] = config
	return nil
}

func (c *EbayConnector) tenantConfig(tenantID uuid.UUID) (*EbayConfig, error) {
	c.mu.RLock()
	config, ok := c.tenantConfigs[tenantID]
	c.mu.RUnlock()
	if ok {
		return config, nil
	}
	if c.config != nil {
		return c.config, nil
	}
	return nil, integration.ErrPlatformNotConfigured
}

// Platform returns the marketplace this connector talks to
func (c *EbayConnector) Platform() integration.Platform {
	return integration.PlatformEbay
}

// IsConfigured reports whether the store has credentials for eBay
func (c *EbayConnector) IsConfigured(ctx context.Context, tenantID uuid.UUID) bool {
	_, err := c.tenantConfig(tenantID)
	return err == nil
}

// ebayOrder is the wire shape of one order from the Fulfillment API
type ebayOrder struct {
	OrderID      string `json:"orderId"`
	CreationDate string `json:"creationDate"`
	Buyer        struct {
		Username string `json:"username"`
	} `json:"buyer"`
	PricingSummary struct {
		Total struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"total"`
	} `json:"pricingSummary"`
	LineItems []struct {
		SKU      string `json:"sku"`
		Title    string `json:"title"`
		Quantity int    `json:"quantity"`
		LineItemCost struct {
			Value string `json:"value"`
		} `json:"lineItemCost"`
	} `json:"lineItems"`
}

type ebayOrderSearchResponse struct {
	Orders []ebayOrder `json:"orders"`
}

func (o *ebayOrder) toExternalOrder() integration.ExternalOrder {
	placedAt, _ := time.Parse(time.RFC3339, o.CreationDate)
	order := integration.ExternalOrder{
		ExternalID: o.OrderID,
		Platform:   integration.PlatformEbay,
		Buyer:      o.Buyer.Username,
		Total:      parseDecimal(o.PricingSummary.Total.Value),
		Currency:   o.PricingSummary.Total.Currency,
		PlacedAt:   placedAt,
	}
	for _, li := range o.LineItems {
		order.Lines = append(order.Lines, integration.ExternalOrderLine{
			SKU:       li.SKU,
			Title:     li.Title,
			Quantity:  li.Quantity,
			UnitPrice: parseDecimal(li.LineItemCost.Value),
		})
	}
	return order
}

// GetOrders pulls orders created since the given instant
func (c *EbayConnector) GetOrders(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]integration.ExternalOrder, error) {
	config, err := c.tenantConfig(tenantID)
	if err != nil {
		return nil, err
	}

	filter := fmt.Sprintf("creationdate:[%s..]", since.UTC().Format(time.RFC3339))
	path := "/sell/fulfillment/v1/order?filter=" + url.QueryEscape(filter)

	body, err := c.doRequest(ctx, config, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp ebayOrderSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("ebay: failed to parse order search response: %w", err)
	}

	orders := make([]integration.ExternalOrder, 0, len(resp.Orders))
	for i := range resp.Orders {
		orders = append(orders, resp.Orders[i].toExternalOrder())
	}
	return orders, nil
}

// GetOrder retrieves one order by its platform id
func (c *EbayConnector) GetOrder(ctx context.Context, tenantID uuid.UUID, externalID string) (*integration.ExternalOrder, error) {
	config, err := c.tenantConfig(tenantID)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(ctx, config, http.MethodGet,
		"/sell/fulfillment/v1/order/"+url.PathEscape(externalID), nil)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, integration.ErrOrderNotFound
		}
		return nil, err
	}

	var order ebayOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("ebay: failed to parse order response: %w", err)
	}
	external := order.toExternalOrder()
	return &external, nil
}

// ebayListingRequest is the simplified shape pushed to the Inventory API
type ebayListingRequest struct {
	SKU         string   `json:"sku"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Price       string   `json:"price"`
	Quantity    int      `json:"quantity"`
	CategoryID  string   `json:"categoryId,omitempty"`
	ImageURLs   []string `json:"imageUrls,omitempty"`
	Marketplace string   `json:"marketplaceId"`
}

func ebayListingFromDTO(config *EbayConfig, dto integration.ListingDTO) ebayListingRequest {
	return ebayListingRequest{
		SKU:         dto.SKU,
		Title:       dto.Title,
		Description: dto.Description,
		Price:       dto.Price.StringFixed(2),
		Quantity:    dto.Quantity,
		CategoryID:  dto.Category,
		ImageURLs:   dto.ImageURLs,
		Marketplace: config.MarketplaceID,
	}
}

// CreateProduct creates a listing and returns its platform id
func (c *EbayConnector) CreateProduct(ctx context.Context, tenantID uuid.UUID, dto integration.ListingDTO) (string, error) {
	config, err := c.tenantConfig(tenantID)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(ebayListingFromDTO(config, dto))
	if err != nil {
		return "", fmt.Errorf("ebay: failed to encode listing: %w", err)
	}

	body, err := c.doRequest(ctx, config, http.MethodPost, "/sell/inventory/v1/offer", payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		OfferID   string `json:"offerId"`
		ListingID string `json:"listingId"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("ebay: failed to parse offer response: %w", err)
	}
	if resp.ListingID != "" {
		return resp.ListingID, nil
	}
	return resp.OfferID, nil
}

// UpdateProduct updates an existing listing
func (c *EbayConnector) UpdateProduct(ctx context.Context, tenantID uuid.UUID, externalID string, dto integration.ListingDTO) error {
	config, err := c.tenantConfig(tenantID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(ebayListingFromDTO(config, dto))
	if err != nil {
		return fmt.Errorf("ebay: failed to encode listing: %w", err)
	}

	_, err = c.doRequest(ctx, config, http.MethodPut,
		"/sell/inventory/v1/offer/"+url.PathEscape(externalID), payload)
	return err
}

// BulkUpdateInventory pushes quantities via bulk_update_price_quantity and
// reports the per-sku outcome
func (c *EbayConnector) BulkUpdateInventory(ctx context.Context, tenantID uuid.UUID, updates []integration.InventoryUpdate) (map[string]integration.SKUResult, error) {
	config, err := c.tenantConfig(tenantID)
	if err != nil {
		return nil, err
	}

	type bulkEntry struct {
		SKU      string `json:"sku"`
		Quantity int    `json:"quantity"`
	}
	req := struct {
		Requests []bulkEntry `json:"requests"`
	}{}
	for _, u := range updates {
		req.Requests = append(req.Requests, bulkEntry{SKU: u.SKU, Quantity: u.Quantity})
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ebay: failed to encode bulk update: %w", err)
	}

	body, err := c.doRequest(ctx, config, http.MethodPost,
		"/sell/inventory/v1/bulk_update_price_quantity", payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Responses []struct {
			SKU        string `json:"sku"`
			StatusCode int    `json:"statusCode"`
			Errors     []struct {
				Message string `json:"message"`
			} `json:"errors"`
		} `json:"responses"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("ebay: failed to parse bulk update response: %w", err)
	}

	results := make(map[string]integration.SKUResult, len(resp.Responses))
	for _, r := range resp.Responses {
		result := integration.SKUResult{Success: r.StatusCode < 400}
		if !result.Success && len(r.Errors) > 0 {
			result.Message = r.Errors[0].Message
		}
		results[r.SKU] = result
	}
	return results, nil
}

// errNotFound marks a 404 from the platform so callers can translate it
var errNotFound = errors.New("marketplace: not found")

func (c *EbayConnector) doRequest(ctx context.Context, config *EbayConfig, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, config.APIBaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("ebay: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+config.OAuthToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", config.MarketplaceID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrConnectorUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("ebay: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrConnectorUnavailable, resp.StatusCode)
	}
	return body, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
