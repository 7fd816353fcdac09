package agent

import (
	"context"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"go.uber.org/zap"
)

// DefaultDispatchBatchSize bounds how many actions one dispatch pass drains
const DefaultDispatchBatchSize = 50

// DispatchPassSummary aggregates one dispatch pass
type DispatchPassSummary struct {
	Eligible int
	Executed int
	Failed   int
	Skipped  int
}

// Dispatcher drains executable actions through the executor: auto actions
// (proposed with requires_approval=false) and approved actions a worker has
// not picked up yet. The executor's compare-and-set claim keeps concurrent
// passes from double-executing; the dispatcher just supplies the feed.
type Dispatcher struct {
	actions   agentdomain.AgentActionRepository
	executor  *Executor
	batchSize int
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(actions agentdomain.AgentActionRepository, executor *Executor, batchSize int, logger *zap.Logger) *Dispatcher {
	if batchSize <= 0 {
		batchSize = DefaultDispatchBatchSize
	}
	return &Dispatcher{
		actions:   actions,
		executor:  executor,
		batchSize: batchSize,
		logger:    logger,
	}
}

// DispatchPending executes every currently executable action, one batch.
// One action's failure never blocks the rest; a lost claim counts as skipped.
func (d *Dispatcher) DispatchPending(ctx context.Context) (DispatchPassSummary, error) {
	executable, err := d.actions.FindExecutable(ctx, d.batchSize)
	if err != nil {
		return DispatchPassSummary{}, err
	}

	summary := DispatchPassSummary{Eligible: len(executable)}
	for i := range executable {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		action := &executable[i]

		outcome, err := d.executor.Execute(ctx, action.ID)
		if err != nil {
			summary.Failed++
			d.logger.Error("dispatch could not execute action",
				zap.String("action_id", action.ID.String()),
				zap.String("action_type", action.ActionType),
				zap.Error(err),
			)
			continue
		}

		switch outcome.Status {
		case ExecuteStatusExecuted:
			summary.Executed++
		case ExecuteStatusFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
	}
	return summary, nil
}
