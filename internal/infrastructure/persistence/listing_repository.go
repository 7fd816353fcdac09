package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/storeops/backend/internal/domain/integration"
	"github.com/storeops/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormListingRepository implements ListingRepository using GORM
type GormListingRepository struct {
	db *gorm.DB
}

// NewGormListingRepository creates a new GormListingRepository
func NewGormListingRepository(db *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: db}
}

// FindByID finds a listing by its ID
func (r *GormListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Listing, error) {
	var listing integration.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &listing, nil
}

// FindByExternalID finds a listing by its platform-side id
func (r *GormListingRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, externalID string) (*integration.Listing, error) {
	var listing integration.Listing
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ? AND external_id = ?", tenantID, platform, externalID).
		First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &listing, nil
}

// FindActiveByTenant returns all active listings for one store
func (r *GormListingRepository) FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]integration.Listing, error) {
	var listings []integration.Listing
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Order("platform, sku").
		Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

// FindActiveByPlatform returns the store's active listings on one platform
func (r *GormListingRepository) FindActiveByPlatform(ctx context.Context, tenantID uuid.UUID, platform integration.Platform) ([]integration.Listing, error) {
	var listings []integration.Listing
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ? AND active = ?", tenantID, platform, true).
		Order("sku").
		Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

// FindByProduct returns every platform listing mirroring one product
func (r *GormListingRepository) FindByProduct(ctx context.Context, tenantID, productID uuid.UUID) ([]integration.Listing, error) {
	var listings []integration.Listing
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Order("platform").
		Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

// Save creates or updates a listing
func (r *GormListingRepository) Save(ctx context.Context, listing *integration.Listing) error {
	return r.db.WithContext(ctx).Save(listing).Error
}
