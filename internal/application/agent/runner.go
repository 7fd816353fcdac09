package agent

import (
	"context"
	"fmt"
	"time"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// RunOutcome reports what happened to one RunFor invocation
type RunOutcome struct {
	Skipped    bool
	SkipReason string
	Run        *agentdomain.AgentRun
}

// Runner executes one agent for one store safely: it owns the run audit
// record and the failure boundary around the agent's Run method.
type Runner struct {
	registry    *Registry
	storeAgents agentdomain.StoreAgentRepository
	runs        agentdomain.AgentRunRepository
	publisher   shared.EventPublisher
	logger      *zap.Logger
}

// NewRunner creates a runner
func NewRunner(
	registry *Registry,
	storeAgents agentdomain.StoreAgentRepository,
	runs agentdomain.AgentRunRepository,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		registry:    registry,
		storeAgents: storeAgents,
		runs:        runs,
		publisher:   publisher,
		logger:      logger,
	}
}

// RunFor runs one agent for one store.
//
// A false CanRun gate skips without creating a run record. Once a run
// record exists it always reaches a terminal status here: a config that
// fails schema validation or an uncaught panic marks the run failed, and
// actions the agent created before failing remain valid. last_run_at is
// touched regardless of outcome so a permanently broken agent cannot
// re-trigger on every tick.
func (r *Runner) RunFor(ctx context.Context, sa *agentdomain.StoreAgent, trigger agentdomain.TriggerType, triggerData map[string]any) (*RunOutcome, error) {
	impl, err := r.registry.Agent(sa.AgentSlug)
	if err != nil {
		return nil, err
	}

	if ok, reason := impl.CanRun(ctx, sa); !ok {
		r.logger.Debug("agent cannot run",
			zap.String("agent", sa.AgentSlug),
			zap.String("tenant_id", sa.TenantID.String()),
			zap.String("reason", reason),
		)
		return &RunOutcome{Skipped: true, SkipReason: reason}, nil
	}

	run := agentdomain.NewAgentRun(sa, trigger, triggerData)
	if err := r.runs.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("creating run record: %w", err)
	}

	result, runErr := r.invoke(ctx, impl, run, sa)

	switch {
	case runErr != nil:
		if err := run.Fail(runErr.Error()); err != nil {
			r.logger.Error("failed to mark run failed", zap.Error(err))
		}
		r.logger.Warn("agent run failed",
			zap.String("agent", sa.AgentSlug),
			zap.String("run_id", run.ID.String()),
			zap.Error(runErr),
		)
	default:
		if err := run.Complete(result); err != nil {
			r.logger.Error("failed to mark run completed", zap.Error(err))
		}
	}

	if err := r.runs.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("persisting run outcome: %w", err)
	}

	sa.TouchLastRun(time.Now())
	if err := r.storeAgents.Save(ctx, sa); err != nil {
		r.logger.Error("failed to update last_run_at",
			zap.String("agent", sa.AgentSlug),
			zap.Error(err),
		)
	}

	r.publish(ctx, run)
	return &RunOutcome{Run: run}, nil
}

// invoke validates config and calls the agent behind a panic boundary
func (r *Runner) invoke(ctx context.Context, impl agentdomain.Agent, run *agentdomain.AgentRun, sa *agentdomain.StoreAgent) (result *agentdomain.RunResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("agent panicked: %v", rec)
		}
	}()

	cfg := sa.EffectiveConfig(impl.DefaultConfig())
	if err := cfg.Validate(impl.ConfigSchema()); err != nil {
		// Setup failure: abort the whole run.
		return nil, err
	}

	return impl.Run(ctx, run, sa)
}

func (r *Runner) publish(ctx context.Context, run *agentdomain.AgentRun) {
	if r.publisher == nil {
		return
	}
	events := run.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := r.publisher.Publish(ctx, events...); err != nil {
		r.logger.Warn("failed to publish run events", zap.Error(err))
	}
	run.ClearDomainEvents()
}
