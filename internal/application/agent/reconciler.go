package agent

import (
	"context"
	"fmt"
	"time"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"go.uber.org/zap"
)

// Reconciler closes out runs abandoned by a wall-clock timeout or a crashed
// worker. A run left in running past the horizon is marked failed; the
// actions it created before dying stay valid and still flow through the
// normal approval and execution path.
type Reconciler struct {
	runs    agentdomain.AgentRunRepository
	horizon time.Duration
	logger  *zap.Logger
}

// NewReconciler creates a reconciler. horizon should comfortably exceed the
// orchestrator's run timeout.
func NewReconciler(runs agentdomain.AgentRunRepository, horizon time.Duration, logger *zap.Logger) *Reconciler {
	if horizon <= 0 {
		horizon = 30 * time.Minute
	}
	return &Reconciler{
		runs:    runs,
		horizon: horizon,
		logger:  logger,
	}
}

// Sweep fails every stale running run and returns how many it closed
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	stale, err := r.runs.FindStaleRunning(ctx, time.Now().Add(-r.horizon))
	if err != nil {
		return 0, fmt.Errorf("finding stale runs: %w", err)
	}

	closed := 0
	for i := range stale {
		run := &stale[i]
		if err := run.Fail(fmt.Sprintf("abandoned: still running after %s", r.horizon)); err != nil {
			r.logger.Warn("could not fail stale run",
				zap.String("run_id", run.ID.String()), zap.Error(err))
			continue
		}
		if err := r.runs.Save(ctx, run); err != nil {
			r.logger.Error("could not persist reconciled run",
				zap.String("run_id", run.ID.String()), zap.Error(err))
			continue
		}
		closed++
	}

	if closed > 0 {
		r.logger.Info("reconciled abandoned runs", zap.Int("closed", closed))
	}
	return closed, nil
}
