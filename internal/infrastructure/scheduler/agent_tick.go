package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	agentapp "github.com/storeops/backend/internal/application/agent"
	"github.com/storeops/backend/internal/infrastructure/telemetry"
)

// AgentTickConfig holds configuration for the agent scheduling loop
type AgentTickConfig struct {
	// TickInterval is how often due agents are evaluated
	TickInterval time.Duration
	// SweepInterval is how often abandoned runs are reconciled
	SweepInterval time.Duration
	// DispatchInterval is how often executable actions are drained through
	// the executor
	DispatchInterval time.Duration
}

// DefaultAgentTickConfig returns default configuration
func DefaultAgentTickConfig() AgentTickConfig {
	return AgentTickConfig{
		TickInterval:     time.Minute,
		SweepInterval:    10 * time.Minute,
		DispatchInterval: 30 * time.Second,
	}
}

// AgentTicker drives the agent engine: every tick it asks the orchestrator
// to run whatever is due, every dispatch interval it drains executable
// actions through the executor, and on a slower cadence it sweeps runs
// abandoned by a crashed worker. Cadence filtering itself lives in the
// orchestrator; the ticker only supplies the heartbeat.
type AgentTicker struct {
	config       AgentTickConfig
	orchestrator *agentapp.Orchestrator
	dispatcher   *agentapp.Dispatcher
	reconciler   *agentapp.Reconciler
	metrics      *telemetry.EngineMetrics
	logger       *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewAgentTicker creates the scheduling loop. metrics may be nil when
// metrics export is disabled.
func NewAgentTicker(
	config AgentTickConfig,
	orchestrator *agentapp.Orchestrator,
	dispatcher *agentapp.Dispatcher,
	reconciler *agentapp.Reconciler,
	metrics *telemetry.EngineMetrics,
	logger *zap.Logger,
) *AgentTicker {
	return &AgentTicker{
		config:       config,
		orchestrator: orchestrator,
		dispatcher:   dispatcher,
		reconciler:   reconciler,
		metrics:      metrics,
		logger:       logger,
	}
}

// Start starts the tick and sweep loops
func (t *AgentTicker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(3)
	go t.tickLoop(ctx)
	go t.dispatchLoop(ctx)
	go t.sweepLoop(ctx)

	t.logger.Info("agent ticker started",
		zap.Duration("tick_interval", t.config.TickInterval),
		zap.Duration("dispatch_interval", t.config.DispatchInterval),
		zap.Duration("sweep_interval", t.config.SweepInterval),
	)
	return nil
}

// Stop stops the loops and waits for in-flight work
func (t *AgentTicker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("agent ticker stopped")
		return nil
	case <-ctx.Done():
		t.logger.Warn("agent ticker stop timed out")
		return ctx.Err()
	}
}

func (t *AgentTicker) tickLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := t.orchestrator.RunScheduledAgents(ctx)
			if err != nil {
				t.logger.Error("scheduled agent tick failed", zap.Error(err))
				continue
			}
			t.metrics.RecordTick(ctx, summary.Completed, summary.Failed, summary.Skipped)
			if summary.Due > 0 {
				t.logger.Info("scheduled agent tick",
					zap.Int("due", summary.Due),
					zap.Int("completed", summary.Completed),
					zap.Int("failed", summary.Failed),
					zap.Int("skipped", summary.Skipped),
					zap.Int("locked", summary.Locked),
				)
			}
		}
	}
}

func (t *AgentTicker) dispatchLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.DispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := t.dispatcher.DispatchPending(ctx)
			if err != nil {
				t.logger.Error("action dispatch failed", zap.Error(err))
				continue
			}
			t.metrics.RecordDispatch(ctx, summary.Eligible, summary.Executed, summary.Failed, summary.Skipped)
			if summary.Eligible > 0 {
				t.logger.Info("action dispatch",
					zap.Int("eligible", summary.Eligible),
					zap.Int("executed", summary.Executed),
					zap.Int("failed", summary.Failed),
					zap.Int("skipped", summary.Skipped),
				)
			}
		}
	}
}

func (t *AgentTicker) sweepLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			closed, err := t.reconciler.Sweep(ctx)
			if err != nil {
				t.logger.Error("reconciliation sweep failed", zap.Error(err))
				continue
			}
			if closed > 0 {
				t.logger.Warn("reconciliation sweep closed abandoned runs",
					zap.Int("closed", closed),
				)
			}
		}
	}
}
