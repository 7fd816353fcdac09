package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
)

func newOrchestratorFixture(t *testing.T, locker RunLocker, impls ...*fakeAgent) (*Orchestrator, *MockStoreAgentRepository) {
	t.Helper()
	registry := NewRegistry()
	for _, impl := range impls {
		require.NoError(t, registry.RegisterAgent(impl))
	}
	storeAgents := new(MockStoreAgentRepository)
	runner := NewRunner(registry, storeAgents, newMemoryRunRepo(), nil, newTestLogger())
	if locker == nil {
		locker = newMemoryLocker()
	}
	orchestrator := NewOrchestrator(registry, storeAgents, runner, locker,
		OrchestratorConfig{Workers: 2, RunTimeout: time.Second, LockTTL: time.Minute}, newTestLogger())
	return orchestrator, storeAgents
}

func TestOrchestrator_RunScheduledAgents_RunsOnlyDuePairs(t *testing.T) {
	impl := newFakeAgent("pricing")
	orchestrator, storeAgents := newOrchestratorFixture(t, nil, impl)

	due := newTestStoreAgent(t, "pricing")
	notDue := newTestStoreAgent(t, "pricing")
	notDue.TouchLastRun(time.Now().Add(-time.Hour)) // 24h cadence has not elapsed

	storeAgents.On("FindEnabled", mock.Anything).Return([]agentdomain.StoreAgent{*due, *notDue}, nil)
	storeAgents.On("Save", mock.Anything, mock.AnythingOfType("*agent.StoreAgent")).Return(nil)

	summary, err := orchestrator.RunScheduledAgents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Due)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, impl.runCount)
}

func TestOrchestrator_RunScheduledAgents_PairsAreIsolatedFailureDomains(t *testing.T) {
	healthy := newFakeAgent("pricing")
	broken := newFakeAgent("dead_stock")
	broken.run = func(ctx context.Context, run *agentdomain.AgentRun, sa *agentdomain.StoreAgent) (*agentdomain.RunResult, error) {
		return nil, errors.New("query exploded")
	}
	orchestrator, storeAgents := newOrchestratorFixture(t, nil, healthy, broken)

	storeAgents.On("FindEnabled", mock.Anything).Return([]agentdomain.StoreAgent{
		*newTestStoreAgent(t, "pricing"),
		*newTestStoreAgent(t, "dead_stock"),
	}, nil)
	storeAgents.On("Save", mock.Anything, mock.AnythingOfType("*agent.StoreAgent")).Return(nil)

	summary, err := orchestrator.RunScheduledAgents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Due)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, healthy.runCount)
}

func TestOrchestrator_RunScheduledAgents_HeldLockSkipsPair(t *testing.T) {
	impl := newFakeAgent("pricing")
	locker := newMemoryLocker()
	orchestrator, storeAgents := newOrchestratorFixture(t, locker, impl)

	sa := newTestStoreAgent(t, "pricing")
	held, err := locker.TryLock(context.Background(), lockKey(sa.TenantID, sa.AgentSlug), time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	storeAgents.On("FindEnabled", mock.Anything).Return([]agentdomain.StoreAgent{*sa}, nil)

	summary, err := orchestrator.RunScheduledAgents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Locked)
	assert.Equal(t, 0, impl.runCount)
}

func TestOrchestrator_RunScheduledAgents_LockBackendFailureCountsAsError(t *testing.T) {
	impl := newFakeAgent("pricing")
	orchestrator, storeAgents := newOrchestratorFixture(t, failingLocker{}, impl)

	storeAgents.On("FindEnabled", mock.Anything).Return([]agentdomain.StoreAgent{*newTestStoreAgent(t, "pricing")}, nil)

	summary, err := orchestrator.RunScheduledAgents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Errors["pricing"])
	assert.Equal(t, 0, impl.runCount)
}

func TestOrchestrator_RunScheduledAgents_SkipGateCounts(t *testing.T) {
	impl := newFakeAgent("pricing")
	impl.canRun = func(ctx context.Context, sa *agentdomain.StoreAgent) (bool, string) {
		return false, "no connector"
	}
	orchestrator, storeAgents := newOrchestratorFixture(t, nil, impl)

	storeAgents.On("FindEnabled", mock.Anything).Return([]agentdomain.StoreAgent{*newTestStoreAgent(t, "pricing")}, nil)

	summary, err := orchestrator.RunScheduledAgents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
}

func TestOrchestrator_DispatchEvent_DeliversToSubscribersOnly(t *testing.T) {
	subscriber := newFakeAgent("customer_researcher")
	subscriber.events = []string{agentdomain.EventProductCreated}
	bystander := newFakeAgent("pricing")
	orchestrator, storeAgents := newOrchestratorFixture(t, nil, subscriber, bystander)

	tenantID := uuid.New()
	saSub, err := agentdomain.NewStoreAgent(tenantID, "customer_researcher")
	require.NoError(t, err)
	saBys, err := agentdomain.NewStoreAgent(tenantID, "pricing")
	require.NoError(t, err)

	storeAgents.On("FindEnabledForTenant", mock.Anything, tenantID).
		Return([]agentdomain.StoreAgent{*saSub, *saBys}, nil)

	summary, err := orchestrator.DispatchEvent(context.Background(), agentdomain.EventProductCreated,
		map[string]any{"product_id": uuid.NewString()}, tenantID)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Delivered)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, subscriber.eventCount)
	assert.Equal(t, 0, bystander.eventCount)
}

func TestOrchestrator_DispatchEvent_HandlerPanicIsIsolated(t *testing.T) {
	panicky := newFakeAgent("customer_researcher")
	panicky.events = []string{agentdomain.EventProductCreated}
	panicky.onEvent = func(ctx context.Context, eventType string, payload map[string]any, sa *agentdomain.StoreAgent) error {
		panic("bad payload")
	}
	calm := newFakeAgent("pricing")
	calm.events = []string{agentdomain.EventProductCreated}
	orchestrator, storeAgents := newOrchestratorFixture(t, nil, panicky, calm)

	tenantID := uuid.New()
	saPanic, err := agentdomain.NewStoreAgent(tenantID, "customer_researcher")
	require.NoError(t, err)
	saCalm, err := agentdomain.NewStoreAgent(tenantID, "pricing")
	require.NoError(t, err)

	storeAgents.On("FindEnabledForTenant", mock.Anything, tenantID).
		Return([]agentdomain.StoreAgent{*saPanic, *saCalm}, nil)

	summary, err := orchestrator.DispatchEvent(context.Background(), agentdomain.EventProductCreated, nil, tenantID)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Delivered)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "handler panicked")
	assert.Equal(t, 1, calm.eventCount)
}

func TestOrchestrator_DispatchEvent_UnregisteredSlugIsSkipped(t *testing.T) {
	orchestrator, storeAgents := newOrchestratorFixture(t, nil, newFakeAgent("pricing"))

	tenantID := uuid.New()
	orphan, err := agentdomain.NewStoreAgent(tenantID, "retired_agent")
	require.NoError(t, err)

	storeAgents.On("FindEnabledForTenant", mock.Anything, tenantID).
		Return([]agentdomain.StoreAgent{*orphan}, nil)

	summary, err := orchestrator.DispatchEvent(context.Background(), agentdomain.EventProductCreated, nil, tenantID)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Delivered)
	assert.Equal(t, 0, summary.Failed)
}
