package agent

import (
	"context"
	"errors"
	"fmt"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Proposer is the one way agents create actions. It resolves the handler,
// evaluates the approval policy once, and skips proposals for targets that
// already have an undecided action of the same type, so re-running an agent
// with unchanged inputs never piles up duplicates.
type Proposer struct {
	registry *Registry
	actions  agentdomain.AgentActionRepository
	logger   *zap.Logger
}

// NewProposer creates a proposer
func NewProposer(registry *Registry, actions agentdomain.AgentActionRepository, logger *zap.Logger) *Proposer {
	return &Proposer{
		registry: registry,
		actions:  actions,
		logger:   logger,
	}
}

// Propose persists one proposed side effect. It returns the action and
// whether it was newly created; (existing, false, nil) means an earlier
// proposal for the same (action type, target) is still open.
func (p *Proposer) Propose(
	ctx context.Context,
	run *agentdomain.AgentRun,
	sa *agentdomain.StoreAgent,
	actionType, targetType, targetID string,
	payload map[string]any,
) (*agentdomain.AgentAction, bool, error) {
	handler, err := p.registry.Action(actionType)
	if err != nil {
		return nil, false, err
	}

	existing, err := p.actions.FindOpenForTarget(ctx, run.TenantID, actionType, targetType, targetID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, false, fmt.Errorf("checking open proposals: %w", err)
	}
	if existing != nil {
		p.logger.Debug("proposal already open, skipping duplicate",
			zap.String("action_type", actionType),
			zap.String("target_type", targetType),
			zap.String("target_id", targetID),
		)
		return existing, false, nil
	}

	requiresApproval := RequiresApproval(sa, handler, payload)
	action, err := agentdomain.NewAgentAction(run, actionType, targetType, targetID, payload, requiresApproval)
	if err != nil {
		return nil, false, err
	}
	if err := p.actions.Save(ctx, action); err != nil {
		return nil, false, fmt.Errorf("saving proposal: %w", err)
	}
	return action, true, nil
}
