package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// ProductSortFields contains allowed sort fields for products
var ProductSortFields = map[string]bool{
	"id":                  true,
	"created_at":          true,
	"updated_at":          true,
	"sku":                 true,
	"name":                true,
	"price":               true,
	"quantity_on_hand":    true,
	"status":              true,
	"last_price_check_at": true,
	"last_sold_at":        true,
}

// GormProductRepository implements ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var product catalog.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// FindByIDForTenant finds a product by ID within a tenant
func (r *GormProductRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*catalog.Product, error) {
	var product catalog.Product
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// FindBySKU finds a product by its SKU within a tenant
func (r *GormProductRepository) FindBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*catalog.Product, error) {
	var product catalog.Product
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND sku = ?", tenantID, strings.ToUpper(sku)).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// FindAllForTenant lists products for a tenant with pagination and search
func (r *GormProductRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]catalog.Product, error) {
	query := r.db.WithContext(ctx).
		Model(&catalog.Product{}).
		Where("tenant_id = ?", tenantID)

	if filter.Search != "" {
		search := "%" + filter.Search + "%"
		query = query.Where("sku ILIKE ? OR name ILIKE ?", search, search)
	}
	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}

	sortField := ValidateSortField(filter.OrderBy, ProductSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", sortField, sortOrder))

	if filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var products []catalog.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// FindPriceCheckCandidates returns active products never price-checked or
// checked before the cutoff, stalest first
func (r *GormProductRepository) FindPriceCheckCandidates(ctx context.Context, tenantID uuid.UUID, checkedBefore time.Time, limit int) ([]catalog.Product, error) {
	var products []catalog.Product
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, catalog.ProductStatusActive).
		Where("last_price_check_at IS NULL OR last_price_check_at < ?", checkedBefore).
		Order("last_price_check_at ASC NULLS FIRST").
		Limit(limit).
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// FindIdleStock returns active in-stock products unsold since the cutoff,
// most capital tied up first
func (r *GormProductRepository) FindIdleStock(ctx context.Context, tenantID uuid.UUID, idleSince time.Time, limit int) ([]catalog.Product, error) {
	var products []catalog.Product
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND quantity_on_hand > 0", tenantID, catalog.ProductStatusActive).
		Where("last_sold_at IS NULL OR last_sold_at < ?", idleSince).
		Order("price * quantity_on_hand DESC").
		Limit(limit).
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// FindArrivedSince returns products created after the instant
func (r *GormProductRepository) FindArrivedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]catalog.Product, error) {
	var products []catalog.Product
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND created_at > ?", tenantID, catalog.ProductStatusActive, since).
		Order("created_at DESC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// SalesTotals aggregates units sold and revenue per product over a window,
// unrolling the order lines stored with each imported order
func (r *GormProductRepository) SalesTotals(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]catalog.ProductSales, error) {
	var rows []catalog.ProductSales
	err := r.db.WithContext(ctx).Raw(`
		SELECT p.id AS product_id,
		       p.sku,
		       p.name,
		       COALESCE(SUM((line->>'quantity')::int), 0) AS units_sold,
		       COALESCE(SUM((line->>'quantity')::numeric * (line->>'unit_price')::numeric), 0) AS revenue
		FROM imported_order_records r
		CROSS JOIN LATERAL jsonb_array_elements(r.lines) AS line
		JOIN products p ON p.tenant_id = r.tenant_id AND p.sku = UPPER(line->>'sku')
		WHERE r.tenant_id = ? AND r.placed_at >= ? AND r.placed_at < ?
		GROUP BY p.id, p.sku, p.name
		ORDER BY revenue DESC`,
		tenantID, from, to).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Save creates or updates a product
func (r *GormProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}
