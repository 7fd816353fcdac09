package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storeops/backend/internal/domain/shared"
)

// ProductStatus represents the status of a product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// Product is the slice of the catalog the agent engine works with: identity,
// cost and price, on-hand quantity, and the bookkeeping timestamps agents
// select candidates by.
type Product struct {
	shared.TenantAggregateRoot
	SKU              string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_product_tenant_sku,priority:2"`
	Name             string          `gorm:"type:varchar(200);not null"`
	Description      string          `gorm:"type:text"`
	CategoryID       *uuid.UUID      `gorm:"type:uuid;index"`
	Cost             decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Price            decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	QuantityOnHand   int             `gorm:"not null;default:0"`
	Status           ProductStatus   `gorm:"type:varchar(20);not null;default:'active'"`
	LastPriceCheckAt *time.Time      `gorm:"index"`
	LastSoldAt       *time.Time      `gorm:"index"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// NewProduct creates a new product
func NewProduct(tenantID uuid.UUID, sku, name string, cost, price decimal.Decimal) (*Product, error) {
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	if cost.IsNegative() || price.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Cost and price cannot be negative")
	}

	return &Product{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		SKU:                 strings.ToUpper(sku),
		Name:                name,
		Cost:                cost,
		Price:               price,
		Status:              ProductStatusActive,
	}, nil
}

// SetPrice changes the selling price
func (p *Product) SetPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}
	p.Price = price
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	return nil
}

// SetQuantity sets the on-hand quantity
func (p *Product) SetQuantity(qty int) error {
	if qty < 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}
	p.QuantityOnHand = qty
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	return nil
}

// MarkPriceChecked records that a pricing agent evaluated this product
func (p *Product) MarkPriceChecked(at time.Time) {
	p.LastPriceCheckAt = &at
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}

// MarkSold records the most recent sale
func (p *Product) MarkSold(at time.Time) {
	p.LastSoldAt = &at
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}

// Sellable returns how many units can be offered on channels after holding
// back a reserve buffer
func (p *Product) Sellable(buffer int) int {
	available := p.QuantityOnHand - buffer
	if available < 0 {
		return 0
	}
	return available
}

// IdleSince reports whether the product has neither sold nor arrived within
// the given window
func (p *Product) IdleSince(cutoff time.Time) bool {
	if p.CreatedAt.After(cutoff) {
		return false
	}
	return p.LastSoldAt == nil || p.LastSoldAt.Before(cutoff)
}
