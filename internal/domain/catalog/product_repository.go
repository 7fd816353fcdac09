package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storeops/backend/internal/domain/shared"
)

// ProductRepository defines the persistence port for products
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Product, error)
	FindBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*Product, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Product, error)
	// FindPriceCheckCandidates returns active products whose last price check
	// is older than the cutoff (or missing), oldest check first, bounded
	FindPriceCheckCandidates(ctx context.Context, tenantID uuid.UUID, checkedBefore time.Time, limit int) ([]Product, error)
	// FindIdleStock returns active in-stock products with no sale since the
	// cutoff, highest value first, bounded
	FindIdleStock(ctx context.Context, tenantID uuid.UUID, idleSince time.Time, limit int) ([]Product, error)
	// FindArrivedSince returns products created after the instant, for
	// new-arrival matching
	FindArrivedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]Product, error)
	// SalesTotals aggregates units sold and revenue per product over a window
	SalesTotals(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]ProductSales, error)
	Save(ctx context.Context, product *Product) error
}

// ProductSales is one row of the per-product sales aggregation
type ProductSales struct {
	ProductID uuid.UUID       `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitsSold int             `json:"units_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
}
