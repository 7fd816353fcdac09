package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storeops/backend/internal/domain/shared"
)

// Listing is the local mirror of a product's presence on one marketplace:
// what we last told the platform about price and quantity. Agents diff
// against it to decide what needs pushing.
type Listing struct {
	shared.TenantAggregateRoot
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_listing_product_platform,priority:1"`
	Platform         Platform        `gorm:"type:varchar(32);not null;index:idx_listing_product_platform,priority:2"`
	ExternalID       string          `gorm:"type:varchar(128);not null;index"`
	SKU              string          `gorm:"type:varchar(64);not null;index"`
	PlatformPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PlatformQuantity int             `gorm:"not null;default:0"`
	Active           bool            `gorm:"not null;default:true"`
	LastSyncedAt     *time.Time
}

// TableName returns the table name for GORM
func (Listing) TableName() string {
	return "platform_listings"
}

// NewListing records a product's listing on a platform
func NewListing(tenantID, productID uuid.UUID, platform Platform, externalID, sku string) *Listing {
	return &Listing{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ProductID:           productID,
		Platform:            platform,
		ExternalID:          externalID,
		SKU:                 sku,
		Active:              true,
	}
}

// RecordSync updates the mirrored platform state after a successful push
func (l *Listing) RecordSync(price decimal.Decimal, quantity int) {
	now := time.Now()
	l.PlatformPrice = price
	l.PlatformQuantity = quantity
	l.LastSyncedAt = &now
	l.UpdatedAt = now
	l.IncrementVersion()
}

// Deactivate stops the listing from being synced
func (l *Listing) Deactivate() {
	l.Active = false
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
}

// ListingRepository persists platform listings
type ListingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Listing, error)
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, platform Platform, externalID string) (*Listing, error)
	FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]Listing, error)
	FindActiveByPlatform(ctx context.Context, tenantID uuid.UUID, platform Platform) ([]Listing, error)
	FindByProduct(ctx context.Context, tenantID, productID uuid.UUID) ([]Listing, error)
	Save(ctx context.Context, listing *Listing) error
}

// ListingTransformer turns a local product into a platform listing payload.
// Implementations hold platform-specific title/category/description rules.
type ListingTransformer interface {
	Transform(ctx context.Context, tenantID, productID uuid.UUID, platform Platform) (*ListingDTO, error)
}
