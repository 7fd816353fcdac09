package actions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/integration"
	"github.com/storeops/backend/internal/domain/shared"
)

func newTestLogger() *zap.Logger {
	return zap.NewNop()
}

// newExecutingAction builds an action already claimed for execution, the
// only state handlers ever see
func newExecutingAction(t *testing.T, actionType, targetType, targetID string, payload map[string]any) *agentdomain.AgentAction {
	t.Helper()
	sa, err := agentdomain.NewStoreAgent(uuid.New(), "test-agent")
	require.NoError(t, err)
	sa.SetRequiresApproval(false)
	run := agentdomain.NewAgentRun(sa, agentdomain.TriggerManual, nil)
	action, err := agentdomain.NewAgentAction(run, actionType, targetType, targetID, payload, false)
	require.NoError(t, err)
	require.NoError(t, action.BeginExecution())
	return action
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

// MockDispatcher is a mock implementation of integration.NotificationDispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Queue(ctx context.Context, notification integration.Notification) error {
	args := m.Called(ctx, notification)
	return args.Error(0)
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
