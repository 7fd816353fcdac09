package integration

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storeops/backend/internal/domain/shared"
)

// ImportedOrderRecord marks an external order as seen, keyed by
// (platform, external id) per tenant. The channel-sync agent checks it
// before proposing an import action, so re-running a sync never imports
// the same order twice.
type ImportedOrderRecord struct {
	shared.TenantAggregateRoot
	Platform        Platform        `gorm:"type:varchar(32);not null;uniqueIndex:idx_imported_order_ext,priority:2"`
	ExternalOrderID string          `gorm:"type:varchar(128);not null;uniqueIndex:idx_imported_order_ext,priority:3"`
	Total           decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	// Lines keeps the order lines as pulled from the platform, so sales can
	// be aggregated per product without a second fetch
	Lines      string    `gorm:"type:jsonb;not null;default:'[]'"`
	PlacedAt   time.Time `gorm:"not null"`
	ImportedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ImportedOrderRecord) TableName() string {
	return "imported_order_records"
}

// NewImportedOrderRecord marks one external order as imported
func NewImportedOrderRecord(tenantID uuid.UUID, order ExternalOrder) *ImportedOrderRecord {
	lines := "[]"
	if raw, err := json.Marshal(order.Lines); err == nil {
		lines = string(raw)
	}
	return &ImportedOrderRecord{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Platform:            order.Platform,
		ExternalOrderID:     order.ExternalID,
		Total:               order.Total,
		Lines:               lines,
		PlacedAt:            order.PlacedAt,
		ImportedAt:          time.Now(),
	}
}

// ImportedOrderRepository persists import dedup records
type ImportedOrderRepository interface {
	Exists(ctx context.Context, tenantID uuid.UUID, platform Platform, externalOrderID string) (bool, error)
	Save(ctx context.Context, record *ImportedOrderRecord) error
}
