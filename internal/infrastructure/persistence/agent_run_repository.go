package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// AgentRunSortFields contains allowed sort fields for agent runs
var AgentRunSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"agent_slug":   true,
	"status":       true,
	"started_at":   true,
	"completed_at": true,
}

// GormAgentRunRepository implements AgentRunRepository using GORM
type GormAgentRunRepository struct {
	db *gorm.DB
}

// NewGormAgentRunRepository creates a new GormAgentRunRepository
func NewGormAgentRunRepository(db *gorm.DB) *GormAgentRunRepository {
	return &GormAgentRunRepository{db: db}
}

// FindByID finds a run by its ID
func (r *GormAgentRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*agent.AgentRun, error) {
	var run agent.AgentRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

// FindByTenant lists runs for one store, newest first by default
func (r *GormAgentRunRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]agent.AgentRun, error) {
	query := r.db.WithContext(ctx).
		Model(&agent.AgentRun{}).
		Where("tenant_id = ?", tenantID)

	if slug, ok := filter.Filters["agent_slug"]; ok {
		query = query.Where("agent_slug = ?", slug)
	}
	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}

	sortField := ValidateSortField(filter.OrderBy, AgentRunSortFields, "started_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", sortField, sortOrder))

	if filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var runs []agent.AgentRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// FindStaleRunning returns runs still marked running that started before the
// horizon, oldest first
func (r *GormAgentRunRepository) FindStaleRunning(ctx context.Context, startedBefore time.Time) ([]agent.AgentRun, error) {
	var runs []agent.AgentRun
	if err := r.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", agent.RunStatusRunning, startedBefore).
		Order("started_at").
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Save creates or updates a run
func (r *GormAgentRunRepository) Save(ctx context.Context, run *agent.AgentRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}
