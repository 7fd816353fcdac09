package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storeops/backend/internal/domain/shared"
)

// StoreAgentRepository persists per-store agent enablement
type StoreAgentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*StoreAgent, error)
	FindByTenantAndSlug(ctx context.Context, tenantID uuid.UUID, agentSlug string) (*StoreAgent, error)
	// FindEnabled returns enabled store agents across all tenants, for the
	// scheduling tick
	FindEnabled(ctx context.Context) ([]StoreAgent, error)
	// FindEnabledForTenant returns enabled store agents for one store, for
	// event fan-out
	FindEnabledForTenant(ctx context.Context, tenantID uuid.UUID) ([]StoreAgent, error)
	Save(ctx context.Context, sa *StoreAgent) error
}

// AgentRunRepository persists the append-only run audit trail
type AgentRunRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*AgentRun, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]AgentRun, error)
	// FindStaleRunning returns runs still marked running that started before
	// the horizon; the reconciliation sweep closes them out
	FindStaleRunning(ctx context.Context, startedBefore time.Time) ([]AgentRun, error)
	Save(ctx context.Context, run *AgentRun) error
}

// AgentActionRepository persists proposed side effects
type AgentActionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*AgentAction, error)
	FindByRun(ctx context.Context, runID uuid.UUID) ([]AgentAction, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]AgentAction, error)
	// FindOpenForTarget returns a non-terminal action for the same
	// (action type, target) pair, if one exists. Agents use it to avoid
	// proposing duplicates while an earlier proposal is still undecided.
	FindOpenForTarget(ctx context.Context, tenantID uuid.UUID, actionType, targetType, targetID string) (*AgentAction, error)
	// FindExecutable returns actions ready for the executor, oldest first:
	// pending actions that need no approval, and approved actions not yet
	// picked up. The dispatch loop drains these through the executor.
	FindExecutable(ctx context.Context, limit int) ([]AgentAction, error)
	// ClaimForExecution atomically moves the action from an executable
	// status to executing and returns the claimed row. It fails with
	// ErrActionClaimed when another worker got there first or the action is
	// terminal, and with ErrApprovalRequired when the action still awaits
	// approval. This compare-and-set is the only guard that makes execution
	// at-most-once under concurrent workers.
	ClaimForExecution(ctx context.Context, id uuid.UUID) (*AgentAction, error)
	Save(ctx context.Context, action *AgentAction) error
}
