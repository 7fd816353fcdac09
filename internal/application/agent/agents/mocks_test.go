package agents

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appagent "github.com/storeops/backend/internal/application/agent"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/integration"
	"github.com/storeops/backend/internal/domain/partner"
	"github.com/storeops/backend/internal/domain/shared"
)

func newTestLogger() *zap.Logger {
	return zap.NewNop()
}

// MockProductRepository is a mock implementation of catalog.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (*catalog.Product, error) {
	args := m.Called(ctx, tenantID, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]catalog.Product, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindPriceCheckCandidates(ctx context.Context, tenantID uuid.UUID, checkedBefore time.Time, limit int) ([]catalog.Product, error) {
	args := m.Called(ctx, tenantID, checkedBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindIdleStock(ctx context.Context, tenantID uuid.UUID, idleSince time.Time, limit int) ([]catalog.Product, error) {
	args := m.Called(ctx, tenantID, idleSince, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindArrivedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]catalog.Product, error) {
	args := m.Called(ctx, tenantID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockProductRepository) SalesTotals(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]catalog.ProductSales, error) {
	args := m.Called(ctx, tenantID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.ProductSales), args.Error(1)
}

func (m *MockProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

// MockCustomerRepository is a mock implementation of partner.CustomerRepository
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*partner.Customer, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partner.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindWithAffinity(ctx context.Context, tenantID, categoryID uuid.UUID, limit int) ([]partner.Customer, error) {
	args := m.Called(ctx, tenantID, categoryID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]partner.Customer), args.Error(1)
}

func (m *MockCustomerRepository) Save(ctx context.Context, customer *partner.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

// MockListingRepository is a mock implementation of integration.ListingRepository
type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Listing), args.Error(1)
}

func (m *MockListingRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, externalID string) (*integration.Listing, error) {
	args := m.Called(ctx, tenantID, platform, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Listing), args.Error(1)
}

func (m *MockListingRepository) FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]integration.Listing, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Listing), args.Error(1)
}

func (m *MockListingRepository) FindActiveByPlatform(ctx context.Context, tenantID uuid.UUID, platform integration.Platform) ([]integration.Listing, error) {
	args := m.Called(ctx, tenantID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Listing), args.Error(1)
}

func (m *MockListingRepository) FindByProduct(ctx context.Context, tenantID, productID uuid.UUID) ([]integration.Listing, error) {
	args := m.Called(ctx, tenantID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Listing), args.Error(1)
}

func (m *MockListingRepository) Save(ctx context.Context, listing *integration.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

// MockImportedOrderRepository is a mock implementation of integration.ImportedOrderRepository
type MockImportedOrderRepository struct {
	mock.Mock
}

func (m *MockImportedOrderRepository) Exists(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, externalOrderID string) (bool, error) {
	args := m.Called(ctx, tenantID, platform, externalOrderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockImportedOrderRepository) Save(ctx context.Context, record *integration.ImportedOrderRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockPriceIntelligence is a mock implementation of integration.PriceIntelligence
type MockPriceIntelligence struct {
	mock.Mock
}

func (m *MockPriceIntelligence) SearchPrices(ctx context.Context, tenantID uuid.UUID, criteria integration.SearchCriteria) (*integration.MarketSummary, error) {
	args := m.Called(ctx, tenantID, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.MarketSummary), args.Error(1)
}

// MockTextGenerator is a mock implementation of integration.TextGenerator
type MockTextGenerator struct {
	mock.Mock
}

func (m *MockTextGenerator) GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (map[string]any, error) {
	args := m.Called(ctx, prompt, schema)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

// MockConnector is a mock implementation of integration.PlatformConnector
type MockConnector struct {
	mock.Mock
	platform integration.Platform
}

func (m *MockConnector) Platform() integration.Platform { return m.platform }

func (m *MockConnector) IsConfigured(ctx context.Context, tenantID uuid.UUID) bool {
	return true
}

func (m *MockConnector) GetOrders(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]integration.ExternalOrder, error) {
	args := m.Called(ctx, tenantID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ExternalOrder), args.Error(1)
}

func (m *MockConnector) GetOrder(ctx context.Context, tenantID uuid.UUID, externalID string) (*integration.ExternalOrder, error) {
	args := m.Called(ctx, tenantID, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ExternalOrder), args.Error(1)
}

func (m *MockConnector) CreateProduct(ctx context.Context, tenantID uuid.UUID, dto integration.ListingDTO) (string, error) {
	args := m.Called(ctx, tenantID, dto)
	return args.String(0), args.Error(1)
}

func (m *MockConnector) UpdateProduct(ctx context.Context, tenantID uuid.UUID, externalID string, dto integration.ListingDTO) error {
	args := m.Called(ctx, tenantID, externalID, dto)
	return args.Error(0)
}

func (m *MockConnector) BulkUpdateInventory(ctx context.Context, tenantID uuid.UUID, updates []integration.InventoryUpdate) (map[string]integration.SKUResult, error) {
	args := m.Called(ctx, tenantID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]integration.SKUResult), args.Error(1)
}

// stubConnectorRegistry serves a fixed connector set
type stubConnectorRegistry struct {
	connectors []integration.PlatformConnector
}

func (r *stubConnectorRegistry) Connector(platform integration.Platform) (integration.PlatformConnector, error) {
	for _, c := range r.connectors {
		if c.Platform() == platform {
			return c, nil
		}
	}
	return nil, integration.ErrPlatformNotFound
}

func (r *stubConnectorRegistry) ConfiguredConnectors(ctx context.Context, tenantID uuid.UUID) []integration.PlatformConnector {
	return r.connectors
}

// stubHandler satisfies the action handler contract for proposal tests;
// Execute is never reached because agents only propose.
type stubHandler struct {
	typ      string
	approval func(sa *agentdomain.StoreAgent, payload map[string]any) bool
}

func (h *stubHandler) Type() string { return h.typ }

func (h *stubHandler) RequiresApproval(sa *agentdomain.StoreAgent, payload map[string]any) bool {
	if h.approval == nil {
		return false
	}
	return h.approval(sa, payload)
}

func (h *stubHandler) ValidatePayload(payload map[string]any) error { return nil }

func (h *stubHandler) Execute(ctx context.Context, action *agentdomain.AgentAction) (*agentdomain.ActionResult, error) {
	return &agentdomain.ActionResult{Success: true}, nil
}

// recordingActionRepo captures saved actions in memory and answers dedup
// lookups from what it has seen, which is all the proposer needs.
type recordingActionRepo struct {
	saved []*agentdomain.AgentAction
}

func (r *recordingActionRepo) FindByID(ctx context.Context, id uuid.UUID) (*agentdomain.AgentAction, error) {
	for _, a := range r.saved {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *recordingActionRepo) FindByRun(ctx context.Context, runID uuid.UUID) ([]agentdomain.AgentAction, error) {
	var out []agentdomain.AgentAction
	for _, a := range r.saved {
		if a.RunID == runID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *recordingActionRepo) FindByTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]agentdomain.AgentAction, error) {
	var out []agentdomain.AgentAction
	for _, a := range r.saved {
		if a.TenantID == tenantID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *recordingActionRepo) FindOpenForTarget(ctx context.Context, tenantID uuid.UUID, actionType, targetType, targetID string) (*agentdomain.AgentAction, error) {
	for _, a := range r.saved {
		if a.TenantID == tenantID && a.ActionType == actionType &&
			a.TargetType == targetType && a.TargetID == targetID && !a.Status.IsTerminal() {
			return a, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *recordingActionRepo) FindExecutable(ctx context.Context, limit int) ([]agentdomain.AgentAction, error) {
	return nil, nil
}

func (r *recordingActionRepo) ClaimForExecution(ctx context.Context, id uuid.UUID) (*agentdomain.AgentAction, error) {
	return nil, shared.ErrNotFound
}

func (r *recordingActionRepo) Save(ctx context.Context, action *agentdomain.AgentAction) error {
	for i, a := range r.saved {
		if a.ID == action.ID {
			r.saved[i] = action
			return nil
		}
	}
	r.saved = append(r.saved, action)
	return nil
}

func (r *recordingActionRepo) byType(actionType string) []*agentdomain.AgentAction {
	var out []*agentdomain.AgentAction
	for _, a := range r.saved {
		if a.ActionType == actionType {
			out = append(out, a)
		}
	}
	return out
}

// newTestProposer wires a proposer over the recording repo with stub
// handlers for every built-in action type
func newTestProposer(t *testing.T, actions *recordingActionRepo, approval func(sa *agentdomain.StoreAgent, payload map[string]any) bool) *appagent.Proposer {
	t.Helper()
	registry := appagent.NewRegistry()
	for _, actionType := range []string{
		agentdomain.ActionTypeUpdatePrice,
		agentdomain.ActionTypeSyncInventory,
		agentdomain.ActionTypeCreateListing,
		agentdomain.ActionTypeUpdateListing,
		agentdomain.ActionTypeImportOrder,
		agentdomain.ActionTypeSendNotification,
		agentdomain.ActionTypeRepriceListing,
		agentdomain.ActionTypeScheduleMarkdown,
	} {
		require.NoError(t, registry.RegisterAction(&stubHandler{typ: actionType, approval: approval}))
	}
	return appagent.NewProposer(registry, actions, newTestLogger())
}

func newTestStoreAgent(t *testing.T, slug string, overrides map[string]any) *agentdomain.StoreAgent {
	t.Helper()
	sa, err := agentdomain.NewStoreAgent(uuid.New(), slug)
	require.NoError(t, err)
	if overrides != nil {
		require.NoError(t, sa.SetConfigOverrides(overrides))
	}
	return sa
}

func newTestRun(t *testing.T, sa *agentdomain.StoreAgent) *agentdomain.AgentRun {
	t.Helper()
	return agentdomain.NewAgentRun(sa, agentdomain.TriggerSchedule, nil)
}
