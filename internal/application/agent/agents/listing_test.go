package agents

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/integration"
	"github.com/storeops/backend/internal/domain/shared"
)

// MockListingTransformer is a mock implementation of integration.ListingTransformer
type MockListingTransformer struct {
	mock.Mock
}

func (m *MockListingTransformer) Transform(ctx context.Context, tenantID, productID uuid.UUID, platform integration.Platform) (*integration.ListingDTO, error) {
	args := m.Called(ctx, tenantID, productID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ListingDTO), args.Error(1)
}

func TestListingAgent_Run_ProposesCreateForUnlistedStock(t *testing.T) {
	products := new(MockProductRepository)
	listings := new(MockListingRepository)
	transformer := new(MockListingTransformer)
	connector := &MockConnector{platform: integration.PlatformEbay}
	registry := &stubConnectorRegistry{connectors: []integration.PlatformConnector{connector}}
	actions := &recordingActionRepo{}
	proposer := newTestProposer(t, actions, nil)

	agent := NewListingAgent(products, listings, registry, transformer, proposer, newTestLogger())
	sa := newTestStoreAgent(t, agent.Slug(), nil)
	run := newTestRun(t, sa)
	ctx := context.Background()

	product := newTestProduct(t, sa.TenantID, "SKU-1", 40.00, 6)

	products.On("FindAllForTenant", ctx, sa.TenantID, mock.AnythingOfType("shared.Filter")).
		Return([]catalog.Product{*product}, nil)
	listings.On("FindByProduct", ctx, sa.TenantID, product.ID).Return([]integration.Listing{}, nil)
	transformer.On("Transform", ctx, sa.TenantID, product.ID, integration.PlatformEbay).
		Return(&integration.ListingDTO{
			SKU: "SKU-1", Title: "Product SKU-1", Price: decimal.NewFromInt(40), Quantity: 6,
		}, nil)

	result, err := agent.Run(ctx, run, sa)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.ActionsCreated)

	saved := actions.byType(agentdomain.ActionTypeCreateListing)
	require.Len(t, saved, 1)
	payload := saved[0].PayloadMap()
	assert.Equal(t, "ebay", payload["platform"])
	listing := payload["listing"].(map[string]any)
	assert.Equal(t, "SKU-1", listing["sku"])
	transformer.AssertExpectations(t)
}

func TestListingAgent_Run_ProposesUpdateForDriftedPrice(t *testing.T) {
	products := new(MockProductRepository)
	listings := new(MockListingRepository)
	transformer := new(MockListingTransformer)
	connector := &MockConnector{platform: integration.PlatformEbay}
	registry := &stubConnectorRegistry{connectors: []integration.PlatformConnector{connector}}
	actions := &recordingActionRepo{}
	proposer := newTestProposer(t, actions, nil)

	agent := NewListingAgent(products, listings, registry, transformer, proposer, newTestLogger())
	sa := newTestStoreAgent(t, agent.Slug(), nil)
	run := newTestRun(t, sa)
	ctx := context.Background()

	product := newTestProduct(t, sa.TenantID, "SKU-1", 45.00, 6)
	existing := integration.NewListing(sa.TenantID, product.ID, integration.PlatformEbay, "ebay-1", product.SKU)
	existing.PlatformPrice = decimal.NewFromInt(40)

	products.On("FindAllForTenant", ctx, sa.TenantID, mock.AnythingOfType("shared.Filter")).
		Return([]catalog.Product{*product}, nil)
	listings.On("FindByProduct", ctx, sa.TenantID, product.ID).
		Return([]integration.Listing{*existing}, nil)
	transformer.On("Transform", ctx, sa.TenantID, product.ID, integration.PlatformEbay).
		Return(&integration.ListingDTO{
			SKU: "SKU-1", Title: "Product SKU-1", Price: decimal.NewFromFloat(45), Quantity: 6,
		}, nil)

	result, err := agent.Run(ctx, run, sa)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ActionsCreated)

	saved := actions.byType(agentdomain.ActionTypeUpdateListing)
	require.Len(t, saved, 1)
	assert.Equal(t, agentdomain.TargetTypeListing, saved[0].TargetType)
	payload := saved[0].PayloadMap()
	assert.InDelta(t, 40.00, payload["before"].(float64), 0.001)
	assert.InDelta(t, 45.00, payload["after"].(float64), 0.001)
}

func TestListingAgent_Run_ListedAtParityProposesNothing(t *testing.T) {
	products := new(MockProductRepository)
	listings := new(MockListingRepository)
	transformer := new(MockListingTransformer)
	connector := &MockConnector{platform: integration.PlatformEbay}
	registry := &stubConnectorRegistry{connectors: []integration.PlatformConnector{connector}}
	actions := &recordingActionRepo{}
	proposer := newTestProposer(t, actions, nil)

	agent := NewListingAgent(products, listings, registry, transformer, proposer, newTestLogger())
	sa := newTestStoreAgent(t, agent.Slug(), nil)
	run := newTestRun(t, sa)
	ctx := context.Background()

	product := newTestProduct(t, sa.TenantID, "SKU-1", 45.00, 6)
	existing := integration.NewListing(sa.TenantID, product.ID, integration.PlatformEbay, "ebay-1", product.SKU)
	existing.PlatformPrice = decimal.NewFromFloat(45)

	products.On("FindAllForTenant", ctx, sa.TenantID, mock.AnythingOfType("shared.Filter")).
		Return([]catalog.Product{*product}, nil)
	listings.On("FindByProduct", ctx, sa.TenantID, product.ID).
		Return([]integration.Listing{*existing}, nil)

	result, err := agent.Run(ctx, run, sa)
	require.NoError(t, err)
	assert.Zero(t, result.ActionsCreated)
	assert.Empty(t, actions.saved)
}

func TestListingAgent_Run_TransformFailureIsIsolated(t *testing.T) {
	products := new(MockProductRepository)
	listings := new(MockListingRepository)
	transformer := new(MockListingTransformer)
	connector := &MockConnector{platform: integration.PlatformEbay}
	registry := &stubConnectorRegistry{connectors: []integration.PlatformConnector{connector}}
	actions := &recordingActionRepo{}
	proposer := newTestProposer(t, actions, nil)

	agent := NewListingAgent(products, listings, registry, transformer, proposer, newTestLogger())
	sa := newTestStoreAgent(t, agent.Slug(), nil)
	run := newTestRun(t, sa)
	ctx := context.Background()

	bad := newTestProduct(t, sa.TenantID, "BAD-1", 40.00, 6)
	good := newTestProduct(t, sa.TenantID, "GOOD-1", 40.00, 6)

	products.On("FindAllForTenant", ctx, sa.TenantID, mock.AnythingOfType("shared.Filter")).
		Return([]catalog.Product{*bad, *good}, nil)
	listings.On("FindByProduct", ctx, sa.TenantID, bad.ID).Return([]integration.Listing{}, nil)
	listings.On("FindByProduct", ctx, sa.TenantID, good.ID).Return([]integration.Listing{}, nil)
	transformer.On("Transform", ctx, sa.TenantID, bad.ID, integration.PlatformEbay).
		Return(nil, shared.ErrInvalidInput)
	transformer.On("Transform", ctx, sa.TenantID, good.ID, integration.PlatformEbay).
		Return(&integration.ListingDTO{SKU: "GOOD-1", Title: "Product GOOD-1", Price: decimal.NewFromInt(40), Quantity: 6}, nil)

	result, err := agent.Run(ctx, run, sa)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.ActionsCreated)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "BAD-1")
}

func TestListingAgent_CanRun_NeedsTransformerAndConnection(t *testing.T) {
	registry := &stubConnectorRegistry{}
	agent := NewListingAgent(new(MockProductRepository), new(MockListingRepository),
		registry, nil, nil, newTestLogger())
	sa := newTestStoreAgent(t, agent.Slug(), nil)

	ok, reason := agent.CanRun(context.Background(), sa)
	assert.False(t, ok)
	assert.Contains(t, reason, "transformer")

	agent = NewListingAgent(new(MockProductRepository), new(MockListingRepository),
		registry, new(MockListingTransformer), nil, newTestLogger())
	ok, reason = agent.CanRun(context.Background(), sa)
	assert.False(t, ok)
	assert.Contains(t, reason, "no marketplace connections")
}
