package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/storeops/backend/internal/domain/integration"
	"gorm.io/gorm"
)

// GormImportedOrderRepository implements ImportedOrderRepository using GORM
type GormImportedOrderRepository struct {
	db *gorm.DB
}

// NewGormImportedOrderRepository creates a new GormImportedOrderRepository
func NewGormImportedOrderRepository(db *gorm.DB) *GormImportedOrderRepository {
	return &GormImportedOrderRepository{db: db}
}

// Exists reports whether an external order was already imported
func (r *GormImportedOrderRepository) Exists(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, externalOrderID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&integration.ImportedOrderRecord{}).
		Where("tenant_id = ? AND platform = ? AND external_order_id = ?", tenantID, platform, externalOrderID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save records one imported order
func (r *GormImportedOrderRepository) Save(ctx context.Context, record *integration.ImportedOrderRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}
