package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/shared"
)

func newTestLogger() *zap.Logger {
	return zap.NewNop()
}

func newTestStoreAgent(t *testing.T, slug string) *agentdomain.StoreAgent {
	t.Helper()
	sa, err := agentdomain.NewStoreAgent(uuid.New(), slug)
	require.NoError(t, err)
	return sa
}

// fakeAgent is a scriptable agent implementation
type fakeAgent struct {
	slug       string
	agentType  agentdomain.AgentType
	events     []string
	canRun     func(ctx context.Context, sa *agentdomain.StoreAgent) (bool, string)
	run        func(ctx context.Context, run *agentdomain.AgentRun, sa *agentdomain.StoreAgent) (*agentdomain.RunResult, error)
	onEvent    func(ctx context.Context, eventType string, payload map[string]any, sa *agentdomain.StoreAgent) error
	runCount   int
	eventCount int
}

func newFakeAgent(slug string) *fakeAgent {
	return &fakeAgent{slug: slug, agentType: agentdomain.AgentTypeBackground}
}

func (f *fakeAgent) Slug() string                  { return f.slug }
func (f *fakeAgent) Name() string                  { return "Fake " + f.slug }
func (f *fakeAgent) Type() agentdomain.AgentType   { return f.agentType }
func (f *fakeAgent) DefaultConfig() map[string]any { return map[string]any{"batch_size": 10} }
func (f *fakeAgent) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"batch_size": map[string]any{"type": "integer", "minimum": 1},
		},
	}
}
func (f *fakeAgent) SubscribedEvents() []string { return f.events }

func (f *fakeAgent) CanRun(ctx context.Context, sa *agentdomain.StoreAgent) (bool, string) {
	if f.canRun != nil {
		return f.canRun(ctx, sa)
	}
	return sa.Enabled, ""
}

func (f *fakeAgent) Run(ctx context.Context, run *agentdomain.AgentRun, sa *agentdomain.StoreAgent) (*agentdomain.RunResult, error) {
	f.runCount++
	if f.run != nil {
		return f.run(ctx, run, sa)
	}
	return agentdomain.NewRunResult(), nil
}

func (f *fakeAgent) HandleEvent(ctx context.Context, eventType string, payload map[string]any, sa *agentdomain.StoreAgent) error {
	f.eventCount++
	if f.onEvent != nil {
		return f.onEvent(ctx, eventType, payload, sa)
	}
	return nil
}

// stubHandler is a scriptable action handler
type stubHandler struct {
	typ      string
	approval func(sa *agentdomain.StoreAgent, payload map[string]any) bool
	validate func(payload map[string]any) error
	execute  func(ctx context.Context, action *agentdomain.AgentAction) (*agentdomain.ActionResult, error)
	calls    int
}

func (h *stubHandler) Type() string { return h.typ }

func (h *stubHandler) RequiresApproval(sa *agentdomain.StoreAgent, payload map[string]any) bool {
	if h.approval != nil {
		return h.approval(sa, payload)
	}
	return sa.RequiresApproval
}

func (h *stubHandler) ValidatePayload(payload map[string]any) error {
	if h.validate != nil {
		return h.validate(payload)
	}
	return nil
}

func (h *stubHandler) Execute(ctx context.Context, action *agentdomain.AgentAction) (*agentdomain.ActionResult, error) {
	h.calls++
	if h.execute != nil {
		return h.execute(ctx, action)
	}
	return &agentdomain.ActionResult{Success: true, Message: "done"}, nil
}

// memoryActionRepo is an in-memory AgentActionRepository with the same
// claim semantics as the persistent one
type memoryActionRepo struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*agentdomain.AgentAction
	saveErr error
}

func newMemoryActionRepo() *memoryActionRepo {
	return &memoryActionRepo{byID: make(map[uuid.UUID]*agentdomain.AgentAction)}
}

func (r *memoryActionRepo) FindByID(ctx context.Context, id uuid.UUID) (*agentdomain.AgentAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	action, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return action, nil
}

func (r *memoryActionRepo) FindByRun(ctx context.Context, runID uuid.UUID) ([]agentdomain.AgentAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []agentdomain.AgentAction
	for _, action := range r.byID {
		if action.RunID == runID {
			out = append(out, *action)
		}
	}
	return out, nil
}

func (r *memoryActionRepo) FindByTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]agentdomain.AgentAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []agentdomain.AgentAction
	for _, action := range r.byID {
		if action.TenantID == tenantID {
			out = append(out, *action)
		}
	}
	return out, nil
}

func (r *memoryActionRepo) FindOpenForTarget(ctx context.Context, tenantID uuid.UUID, actionType, targetType, targetID string) (*agentdomain.AgentAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, action := range r.byID {
		if action.TenantID == tenantID &&
			action.ActionType == actionType &&
			action.TargetType == targetType &&
			action.TargetID == targetID &&
			!action.Status.IsTerminal() {
			return action, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryActionRepo) FindExecutable(ctx context.Context, limit int) ([]agentdomain.AgentAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []agentdomain.AgentAction
	for _, action := range r.byID {
		if action.Status == agentdomain.ActionStatusApproved ||
			(action.Status == agentdomain.ActionStatusPending && !action.RequiresApproval) {
			out = append(out, *action)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memoryActionRepo) ClaimForExecution(ctx context.Context, id uuid.UUID) (*agentdomain.AgentAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	action, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if err := action.BeginExecution(); err != nil {
		return nil, err
	}
	return action, nil
}

func (r *memoryActionRepo) Save(ctx context.Context, action *agentdomain.AgentAction) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[action.ID] = action
	return nil
}

func (r *memoryActionRepo) all() []*agentdomain.AgentAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*agentdomain.AgentAction, 0, len(r.byID))
	for _, action := range r.byID {
		out = append(out, action)
	}
	return out
}

// memoryRunRepo is an in-memory AgentRunRepository
type memoryRunRepo struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*agentdomain.AgentRun
	saveErr error
}

func newMemoryRunRepo() *memoryRunRepo {
	return &memoryRunRepo{byID: make(map[uuid.UUID]*agentdomain.AgentRun)}
}

func (r *memoryRunRepo) FindByID(ctx context.Context, id uuid.UUID) (*agentdomain.AgentRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return run, nil
}

func (r *memoryRunRepo) FindByTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]agentdomain.AgentRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []agentdomain.AgentRun
	for _, run := range r.byID {
		if run.TenantID == tenantID {
			out = append(out, *run)
		}
	}
	return out, nil
}

func (r *memoryRunRepo) FindStaleRunning(ctx context.Context, startedBefore time.Time) ([]agentdomain.AgentRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []agentdomain.AgentRun
	for _, run := range r.byID {
		if run.Status == agentdomain.RunStatusRunning && run.StartedAt.Before(startedBefore) {
			out = append(out, *run)
		}
	}
	return out, nil
}

func (r *memoryRunRepo) Save(ctx context.Context, run *agentdomain.AgentRun) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[run.ID] = run
	return nil
}

func (r *memoryRunRepo) all() []*agentdomain.AgentRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*agentdomain.AgentRun, 0, len(r.byID))
	for _, run := range r.byID {
		out = append(out, run)
	}
	return out
}

// MockStoreAgentRepository is a mock implementation of agent.StoreAgentRepository
type MockStoreAgentRepository struct {
	mock.Mock
}

func (m *MockStoreAgentRepository) FindByID(ctx context.Context, id uuid.UUID) (*agentdomain.StoreAgent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*agentdomain.StoreAgent), args.Error(1)
}

func (m *MockStoreAgentRepository) FindByTenantAndSlug(ctx context.Context, tenantID uuid.UUID, agentSlug string) (*agentdomain.StoreAgent, error) {
	args := m.Called(ctx, tenantID, agentSlug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*agentdomain.StoreAgent), args.Error(1)
}

func (m *MockStoreAgentRepository) FindEnabled(ctx context.Context) ([]agentdomain.StoreAgent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]agentdomain.StoreAgent), args.Error(1)
}

func (m *MockStoreAgentRepository) FindEnabledForTenant(ctx context.Context, tenantID uuid.UUID) ([]agentdomain.StoreAgent, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]agentdomain.StoreAgent), args.Error(1)
}

func (m *MockStoreAgentRepository) Save(ctx context.Context, sa *agentdomain.StoreAgent) error {
	args := m.Called(ctx, sa)
	return args.Error(0)
}

// memoryLocker is a single-node RunLocker for tests
type memoryLocker struct {
	mu     sync.Mutex
	held   map[string]bool
	denied int
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: make(map[string]bool)}
}

func (l *memoryLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		l.denied++
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memoryLocker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held[key] {
		return fmt.Errorf("unlock of free key %s", key)
	}
	delete(l.held, key)
	return nil
}

// failingLocker rejects every acquisition
type failingLocker struct{}

func (failingLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, errors.New("lock backend unavailable")
}

func (failingLocker) Unlock(ctx context.Context, key string) error { return nil }
