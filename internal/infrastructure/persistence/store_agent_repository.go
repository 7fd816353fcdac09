package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormStoreAgentRepository implements StoreAgentRepository using GORM
type GormStoreAgentRepository struct {
	db *gorm.DB
}

// NewGormStoreAgentRepository creates a new GormStoreAgentRepository
func NewGormStoreAgentRepository(db *gorm.DB) *GormStoreAgentRepository {
	return &GormStoreAgentRepository{db: db}
}

// FindByID finds a store agent by its ID
func (r *GormStoreAgentRepository) FindByID(ctx context.Context, id uuid.UUID) (*agent.StoreAgent, error) {
	var sa agent.StoreAgent
	if err := r.db.WithContext(ctx).First(&sa, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &sa, nil
}

// FindByTenantAndSlug finds the enablement record for one agent in one store
func (r *GormStoreAgentRepository) FindByTenantAndSlug(ctx context.Context, tenantID uuid.UUID, agentSlug string) (*agent.StoreAgent, error) {
	var sa agent.StoreAgent
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND agent_slug = ?", tenantID, agentSlug).
		First(&sa).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &sa, nil
}

// FindEnabled returns enabled store agents across all tenants
func (r *GormStoreAgentRepository) FindEnabled(ctx context.Context) ([]agent.StoreAgent, error) {
	var agents []agent.StoreAgent
	if err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("tenant_id, agent_slug").
		Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

// FindEnabledForTenant returns enabled store agents for one store
func (r *GormStoreAgentRepository) FindEnabledForTenant(ctx context.Context, tenantID uuid.UUID) ([]agent.StoreAgent, error) {
	var agents []agent.StoreAgent
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND enabled = ?", tenantID, true).
		Order("agent_slug").
		Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

// Save creates or updates a store agent
func (r *GormStoreAgentRepository) Save(ctx context.Context, sa *agent.StoreAgent) error {
	return r.db.WithContext(ctx).Save(sa).Error
}
