package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"go.uber.org/zap"
)

// RunLocker provides single-flight locking per (store, agent) pair.
// Implementations are in the infrastructure layer (redis in production,
// in-memory in tests and single-node deployments).
type RunLocker interface {
	// TryLock acquires the key if free; false means someone else holds it
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Unlock releases the key
	Unlock(ctx context.Context, key string) error
}

// OrchestratorConfig bounds the orchestrator's fan-out
type OrchestratorConfig struct {
	// Workers is the number of (store, agent) pairs run concurrently
	Workers int
	// RunTimeout is the wall-clock budget for one run
	RunTimeout time.Duration
	// LockTTL caps how long a crashed worker can hold a pair's lock
	LockTTL time.Duration
}

// DefaultOrchestratorConfig returns sane bounds
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Workers:    4,
		RunTimeout: 5 * time.Minute,
		LockTTL:    10 * time.Minute,
	}
}

// ScheduleSummary aggregates one scheduling tick
type ScheduleSummary struct {
	Due       int            `json:"due"`
	Completed int            `json:"completed"`
	Failed    int            `json:"failed"`
	Skipped   int            `json:"skipped"`
	Locked    int            `json:"locked"`
	Errors    map[string]int `json:"errors,omitempty"`
}

// DispatchSummary aggregates one event fan-out
type DispatchSummary struct {
	Delivered int      `json:"delivered"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Orchestrator is the engine's top-level entry point. External callers
// drive it: a periodic tick invokes RunScheduledAgents, the event bus
// invokes DispatchEvent. There is no internal loop.
type Orchestrator struct {
	registry    *Registry
	storeAgents agentdomain.StoreAgentRepository
	runner      *Runner
	locker      RunLocker
	config      OrchestratorConfig
	logger      *zap.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(
	registry *Registry,
	storeAgents agentdomain.StoreAgentRepository,
	runner *Runner,
	locker RunLocker,
	config OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	if config.Workers <= 0 {
		config.Workers = DefaultOrchestratorConfig().Workers
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultOrchestratorConfig().RunTimeout
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultOrchestratorConfig().LockTTL
	}
	return &Orchestrator{
		registry:    registry,
		storeAgents: storeAgents,
		runner:      runner,
		locker:      locker,
		config:      config,
		logger:      logger,
	}
}

// RunScheduledAgents runs every enabled store agent whose cadence has
// elapsed. Pairs fan out across a bounded worker pool; each pair is
// single-flight behind a lock and bounded by the run timeout. Pairs are
// independent failure domains: one failure never stops the batch.
func (o *Orchestrator) RunScheduledAgents(ctx context.Context) (*ScheduleSummary, error) {
	enabled, err := o.storeAgents.FindEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing enabled store agents: %w", err)
	}

	now := time.Now()
	due := make([]agentdomain.StoreAgent, 0, len(enabled))
	for _, sa := range enabled {
		if sa.Due(now) {
			due = append(due, sa)
		}
	}

	summary := &ScheduleSummary{Due: len(due), Errors: make(map[string]int)}
	if len(due) == 0 {
		return summary, nil
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		work = make(chan agentdomain.StoreAgent)
	)

	for i := 0; i < o.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sa := range work {
				o.runOne(ctx, sa, summary, &mu)
			}
		}()
	}

	for _, sa := range due {
		select {
		case work <- sa:
		case <-ctx.Done():
		}
	}
	close(work)
	wg.Wait()

	o.logger.Info("scheduling tick finished",
		zap.Int("due", summary.Due),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("locked", summary.Locked),
	)
	return summary, ctx.Err()
}

func (o *Orchestrator) runOne(ctx context.Context, sa agentdomain.StoreAgent, summary *ScheduleSummary, mu *sync.Mutex) {
	key := lockKey(sa.TenantID, sa.AgentSlug)
	acquired, err := o.locker.TryLock(ctx, key, o.config.LockTTL)
	if err != nil {
		o.logger.Error("lock acquisition failed", zap.String("key", key), zap.Error(err))
		mu.Lock()
		summary.Errors[sa.AgentSlug]++
		mu.Unlock()
		return
	}
	if !acquired {
		mu.Lock()
		summary.Locked++
		mu.Unlock()
		return
	}
	defer func() {
		if err := o.locker.Unlock(ctx, key); err != nil {
			o.logger.Warn("lock release failed", zap.String("key", key), zap.Error(err))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, o.config.RunTimeout)
	defer cancel()

	outcome, err := o.runner.RunFor(runCtx, &sa, agentdomain.TriggerSchedule, nil)

	mu.Lock()
	defer mu.Unlock()
	switch {
	case err != nil:
		summary.Errors[sa.AgentSlug]++
	case outcome.Skipped:
		summary.Skipped++
	case outcome.Run.Status == agentdomain.RunStatusCompleted:
		summary.Completed++
	default:
		summary.Failed++
	}
}

// DispatchEvent fans a domain event out to every enabled store agent in the
// store that subscribes to it. Handlers are isolated failure domains: one
// handler's error or panic never blocks delivery to the rest.
func (o *Orchestrator) DispatchEvent(ctx context.Context, eventType string, payload map[string]any, tenantID uuid.UUID) (*DispatchSummary, error) {
	enabled, err := o.storeAgents.FindEnabledForTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing store agents for tenant %s: %w", tenantID, err)
	}

	summary := &DispatchSummary{}
	for i := range enabled {
		sa := &enabled[i]
		impl, err := o.registry.Agent(sa.AgentSlug)
		if err != nil {
			// Enabled row for an agent no longer registered; skip, don't fail
			// the whole dispatch.
			o.logger.Warn("enabled store agent has no registered implementation",
				zap.String("agent", sa.AgentSlug))
			continue
		}
		if !subscribes(impl, eventType) {
			continue
		}

		if err := o.deliver(ctx, impl, eventType, payload, sa); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", sa.AgentSlug, err))
			o.logger.Warn("event handler failed",
				zap.String("agent", sa.AgentSlug),
				zap.String("event", eventType),
				zap.Error(err),
			)
			continue
		}
		summary.Delivered++
	}
	return summary, nil
}

func (o *Orchestrator) deliver(ctx context.Context, impl agentdomain.Agent, eventType string, payload map[string]any, sa *agentdomain.StoreAgent) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return impl.HandleEvent(ctx, eventType, payload, sa)
}

func subscribes(impl agentdomain.Agent, eventType string) bool {
	for _, subscribed := range impl.SubscribedEvents() {
		if subscribed == eventType {
			return true
		}
	}
	return false
}

func lockKey(tenantID uuid.UUID, slug string) string {
	return fmt.Sprintf("agents:run:%s:%s", tenantID, slug)
}
