package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SettingsService is the application surface the settings API talks to:
// it reads registry descriptors, writes StoreAgent policy, records approval
// decisions and hands approved actions to the executor.
type SettingsService struct {
	registry    *Registry
	storeAgents agentdomain.StoreAgentRepository
	runs        agentdomain.AgentRunRepository
	actions     agentdomain.AgentActionRepository
	runner      *Runner
	executor    *Executor
	logger      *zap.Logger
}

// NewSettingsService creates the settings service
func NewSettingsService(
	registry *Registry,
	storeAgents agentdomain.StoreAgentRepository,
	runs agentdomain.AgentRunRepository,
	actions agentdomain.AgentActionRepository,
	runner *Runner,
	executor *Executor,
	logger *zap.Logger,
) *SettingsService {
	return &SettingsService{
		registry:    registry,
		storeAgents: storeAgents,
		runs:        runs,
		actions:     actions,
		runner:      runner,
		executor:    executor,
		logger:      logger,
	}
}

// ListAgents returns descriptors of every registered agent
func (s *SettingsService) ListAgents() []agentdomain.Descriptor {
	return s.registry.ListAgents()
}

// EnableAgent enables an agent for a store, creating the StoreAgent record
// on first enablement
func (s *SettingsService) EnableAgent(ctx context.Context, tenantID uuid.UUID, slug string) (*StoreAgentResponse, error) {
	if _, err := s.registry.Agent(slug); err != nil {
		return nil, err
	}

	sa, err := s.storeAgents.FindByTenantAndSlug(ctx, tenantID, slug)
	switch {
	case err == nil:
		sa.Enable()
	case errors.Is(err, shared.ErrNotFound):
		sa, err = agentdomain.NewStoreAgent(tenantID, slug)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := s.storeAgents.Save(ctx, sa); err != nil {
		return nil, err
	}
	resp := ToStoreAgentResponse(sa)
	return &resp, nil
}

// UpdateStoreAgent applies settings writes. Config overrides are validated
// against the agent's schema on top of its defaults before they are stored.
func (s *SettingsService) UpdateStoreAgent(ctx context.Context, tenantID uuid.UUID, slug string, req UpdateStoreAgentRequest) (*StoreAgentResponse, error) {
	impl, err := s.registry.Agent(slug)
	if err != nil {
		return nil, err
	}
	sa, err := s.storeAgents.FindByTenantAndSlug(ctx, tenantID, slug)
	if err != nil {
		return nil, err
	}

	if req.ConfigOverrides != nil {
		merged := agentdomain.MergeConfig(impl.DefaultConfig(), req.ConfigOverrides)
		if err := merged.Validate(impl.ConfigSchema()); err != nil {
			return nil, err
		}
		if err := sa.SetConfigOverrides(req.ConfigOverrides); err != nil {
			return nil, err
		}
	}
	if req.Cadence != nil {
		if err := sa.SetCadence(*req.Cadence); err != nil {
			return nil, err
		}
	}
	if req.RequiresApproval != nil {
		sa.SetRequiresApproval(*req.RequiresApproval)
	}
	if req.Enabled != nil {
		if *req.Enabled {
			sa.Enable()
		} else {
			sa.Disable()
		}
	}

	if err := s.storeAgents.Save(ctx, sa); err != nil {
		return nil, err
	}
	resp := ToStoreAgentResponse(sa)
	return &resp, nil
}

// GetStoreAgent returns one store's settings for an agent
func (s *SettingsService) GetStoreAgent(ctx context.Context, tenantID uuid.UUID, slug string) (*StoreAgentResponse, error) {
	sa, err := s.storeAgents.FindByTenantAndSlug(ctx, tenantID, slug)
	if err != nil {
		return nil, err
	}
	resp := ToStoreAgentResponse(sa)
	return &resp, nil
}

// ListStoreAgents returns every agent configuration for a store, enabled or not
func (s *SettingsService) ListStoreAgents(ctx context.Context, tenantID uuid.UUID) ([]StoreAgentResponse, error) {
	all, err := s.storeAgents.FindEnabledForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]StoreAgentResponse, 0, len(all))
	for i := range all {
		out = append(out, ToStoreAgentResponse(&all[i]))
	}
	return out, nil
}

// TriggerRun starts a manual run for one (store, agent) pair
func (s *SettingsService) TriggerRun(ctx context.Context, tenantID uuid.UUID, slug string) (*RunOutcome, error) {
	sa, err := s.storeAgents.FindByTenantAndSlug(ctx, tenantID, slug)
	if err != nil {
		return nil, err
	}
	return s.runner.RunFor(ctx, sa, agentdomain.TriggerManual, nil)
}

// ListActions returns proposed actions for review
func (s *SettingsService) ListActions(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]ActionResponse, error) {
	actions, err := s.actions.FindByTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]ActionResponse, 0, len(actions))
	for i := range actions {
		out = append(out, ToActionResponse(&actions[i]))
	}
	return out, nil
}

// ListRuns returns the run audit trail for a store
func (s *SettingsService) ListRuns(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]RunResponse, error) {
	runs, err := s.runs.FindByTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]RunResponse, 0, len(runs))
	for i := range runs {
		out = append(out, ToRunResponse(&runs[i]))
	}
	return out, nil
}

// ApproveAction records the approval and immediately hands the action to
// the executor
func (s *SettingsService) ApproveAction(ctx context.Context, tenantID, actionID, decidedBy uuid.UUID) (*ExecuteOutcome, error) {
	action, err := s.actions.FindByID(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if action.TenantID != tenantID {
		return nil, fmt.Errorf("%w: action %s", shared.ErrNotFound, actionID)
	}
	if err := action.Approve(decidedBy); err != nil {
		return nil, err
	}
	if err := s.actions.Save(ctx, action); err != nil {
		return nil, err
	}

	s.logger.Info("action approved",
		zap.String("action_id", actionID.String()),
		zap.String("decided_by", decidedBy.String()),
	)
	return s.executor.Execute(ctx, actionID)
}

// RejectAction terminates a pending action without executing it
func (s *SettingsService) RejectAction(ctx context.Context, tenantID, actionID, decidedBy uuid.UUID, reason string) error {
	action, err := s.actions.FindByID(ctx, actionID)
	if err != nil {
		return err
	}
	if action.TenantID != tenantID {
		return fmt.Errorf("%w: action %s", shared.ErrNotFound, actionID)
	}
	if err := action.Reject(decidedBy, reason); err != nil {
		return err
	}
	return s.actions.Save(ctx, action)
}
