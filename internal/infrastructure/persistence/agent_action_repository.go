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

// AgentActionSortFields contains allowed sort fields for agent actions
var AgentActionSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"updated_at":  true,
	"agent_slug":  true,
	"action_type": true,
	"status":      true,
	"decided_at":  true,
	"executed_at": true,
}

// GormAgentActionRepository implements AgentActionRepository using GORM
type GormAgentActionRepository struct {
	db *gorm.DB
}

// NewGormAgentActionRepository creates a new GormAgentActionRepository
func NewGormAgentActionRepository(db *gorm.DB) *GormAgentActionRepository {
	return &GormAgentActionRepository{db: db}
}

// FindByID finds an action by its ID
func (r *GormAgentActionRepository) FindByID(ctx context.Context, id uuid.UUID) (*agent.AgentAction, error) {
	var action agent.AgentAction
	if err := r.db.WithContext(ctx).First(&action, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &action, nil
}

// FindByRun lists the actions one run proposed
func (r *GormAgentActionRepository) FindByRun(ctx context.Context, runID uuid.UUID) ([]agent.AgentAction, error) {
	var actions []agent.AgentAction
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at").
		Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

// FindByTenant lists actions for one store, newest first by default
func (r *GormAgentActionRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]agent.AgentAction, error) {
	query := r.db.WithContext(ctx).
		Model(&agent.AgentAction{}).
		Where("tenant_id = ?", tenantID)

	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	if actionType, ok := filter.Filters["action_type"]; ok {
		query = query.Where("action_type = ?", actionType)
	}
	if slug, ok := filter.Filters["agent_slug"]; ok {
		query = query.Where("agent_slug = ?", slug)
	}

	sortField := ValidateSortField(filter.OrderBy, AgentActionSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", sortField, sortOrder))

	if filter.PageSize > 0 {
		query = query.Offset((filter.Page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var actions []agent.AgentAction
	if err := query.Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

// FindOpenForTarget returns a non-terminal action on the same target, if any
func (r *GormAgentActionRepository) FindOpenForTarget(ctx context.Context, tenantID uuid.UUID, actionType, targetType, targetID string) (*agent.AgentAction, error) {
	var action agent.AgentAction
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND action_type = ? AND target_type = ? AND target_id = ?",
			tenantID, actionType, targetType, targetID).
		Where("status IN ?", []agent.ActionStatus{
			agent.ActionStatusPending,
			agent.ActionStatusApproved,
			agent.ActionStatusExecuting,
		}).
		Order("created_at").
		First(&action).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &action, nil
}

// FindExecutable lists actions the dispatch loop should hand to the
// executor: auto actions still pending, and approved actions not yet claimed
func (r *GormAgentActionRepository) FindExecutable(ctx context.Context, limit int) ([]agent.AgentAction, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND requires_approval = ?)",
			agent.ActionStatusApproved, agent.ActionStatusPending, false).
		Order("created_at")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var actions []agent.AgentAction
	if err := query.Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

// ClaimForExecution atomically moves an executable action to executing.
// The guard is a single conditional UPDATE: only a pending action that needs
// no approval, or an approved action, matches. Zero rows affected means the
// claim lost, and the current row decides which error to surface.
func (r *GormAgentActionRepository) ClaimForExecution(ctx context.Context, id uuid.UUID) (*agent.AgentAction, error) {
	res := r.db.WithContext(ctx).
		Model(&agent.AgentAction{}).
		Where("id = ? AND (status = ? OR (status = ? AND requires_approval = ?))",
			id, agent.ActionStatusApproved, agent.ActionStatusPending, false).
		Updates(map[string]interface{}{
			"status":     agent.ActionStatusExecuting,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	var action agent.AgentAction
	if err := r.db.WithContext(ctx).First(&action, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	if res.RowsAffected == 0 {
		if action.Status == agent.ActionStatusPending && action.RequiresApproval {
			return nil, agent.ErrApprovalRequired
		}
		return nil, agent.ErrActionClaimed
	}
	return &action, nil
}

// Save creates or updates an action
func (r *GormAgentActionRepository) Save(ctx context.Context, action *agent.AgentAction) error {
	return r.db.WithContext(ctx).Save(action).Error
}
