package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/shared"
)

func TestRegistry_RegisterAndResolveAgent(t *testing.T) {
	registry := NewRegistry()
	impl := newFakeAgent("pricing")

	require.NoError(t, registry.RegisterAgent(impl))

	resolved, err := registry.Agent("pricing")
	require.NoError(t, err)
	assert.Equal(t, impl, resolved)

	_, err = registry.Agent("unknown")
	assert.ErrorIs(t, err, agentdomain.ErrAgentNotFound)
}

func TestRegistry_DuplicateAgentIsFatal(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterAgent(newFakeAgent("pricing")))

	err := registry.RegisterAgent(newFakeAgent("pricing"))
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestRegistry_RejectsInvalidAgent(t *testing.T) {
	registry := NewRegistry()

	assert.Error(t, registry.RegisterAgent(nil))
	assert.Error(t, registry.RegisterAgent(newFakeAgent("")))

	badType := newFakeAgent("odd")
	badType.agentType = agentdomain.AgentType("interdimensional")
	assert.Error(t, registry.RegisterAgent(badType))
}

func TestRegistry_RegisterAndResolveAction(t *testing.T) {
	registry := NewRegistry()
	handler := &stubHandler{typ: agentdomain.ActionTypeUpdatePrice}

	require.NoError(t, registry.RegisterAction(handler))

	resolved, err := registry.Action(agentdomain.ActionTypeUpdatePrice)
	require.NoError(t, err)
	assert.Equal(t, handler, resolved)

	_, err = registry.Action("teleport_stock")
	assert.ErrorIs(t, err, agentdomain.ErrActionNotFound)

	err = registry.RegisterAction(&stubHandler{typ: agentdomain.ActionTypeUpdatePrice})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestRegistry_ListAgentsSortedBySlug(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterAgent(newFakeAgent("zeta")))
	require.NoError(t, registry.RegisterAgent(newFakeAgent("alpha")))

	descriptors := registry.ListAgents()
	require.Len(t, descriptors, 2)
	assert.Equal(t, "alpha", descriptors[0].Slug)
	assert.Equal(t, "zeta", descriptors[1].Slug)
	assert.Equal(t, map[string]any{"batch_size": 10}, descriptors[0].DefaultConfig)
}

func TestRegistry_ActionTypesSorted(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterAction(&stubHandler{typ: agentdomain.ActionTypeUpdatePrice}))
	require.NoError(t, registry.RegisterAction(&stubHandler{typ: agentdomain.ActionTypeImportOrder}))

	assert.Equal(t, []string{agentdomain.ActionTypeImportOrder, agentdomain.ActionTypeUpdatePrice}, registry.ActionTypes())
}
