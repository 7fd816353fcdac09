package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/integration"
)

func TestRepriceHandler_RequiresApproval(t *testing.T) {
	handler := NewRepriceHandler(new(MockListingRepository), &stubConnectorRegistry{}, newTestLogger())
	sa, err := agentdomain.NewStoreAgent(uuid.New(), "repricing")
	require.NoError(t, err)

	t.Run("store policy always wins", func(t *testing.T) {
		assert.True(t, handler.RequiresApproval(sa, map[string]any{"force_approval": false}))
	})

	t.Run("proposer can force sign-off for major changes", func(t *testing.T) {
		sa.SetRequiresApproval(false)
		assert.True(t, handler.RequiresApproval(sa, map[string]any{"force_approval": true}))
		assert.False(t, handler.RequiresApproval(sa, map[string]any{"force_approval": false}))
	})
}

func TestRepriceHandler_ValidatePayload(t *testing.T) {
	handler := NewRepriceHandler(new(MockListingRepository), &stubConnectorRegistry{}, newTestLogger())

	assert.NoError(t, handler.ValidatePayload(map[string]any{
		"platform": "ebay", "external_id": "ebay-1", "after": 44.55}))
	assert.Error(t, handler.ValidatePayload(map[string]any{
		"platform": "nope", "external_id": "ebay-1", "after": 44.55}))
	assert.Error(t, handler.ValidatePayload(map[string]any{
		"platform": "ebay", "after": 44.55}))
	assert.Error(t, handler.ValidatePayload(map[string]any{
		"platform": "ebay", "external_id": "ebay-1", "after": 0.0}))
}

func TestRepriceHandler_Execute_PushesAndMirrors(t *testing.T) {
	listings := new(MockListingRepository)
	connector := &MockConnector{platform: integration.PlatformEbay}
	registry := &stubConnectorRegistry{connectors: []integration.PlatformConnector{connector}}
	handler := NewRepriceHandler(listings, registry, newTestLogger())

	tenantID := uuid.New()
	listing := integration.NewListing(tenantID, uuid.New(), integration.PlatformEbay, "ebay-1", "WIDGET-1")
	listing.RecordSync(decimal.NewFromInt(50), 4)

	action := newExecutingAction(t, agentdomain.ActionTypeRepriceListing,
		agentdomain.TargetTypeListing, listing.ID.String(), map[string]any{
			"platform":    "ebay",
			"external_id": "ebay-1",
			"before":      50.0,
			"after":       44.55,
		})
	ctx := context.Background()

	listings.On("FindByID", ctx, listing.ID).Return(listing, nil)
	connector.On("UpdateProduct", ctx, action.TenantID, "ebay-1", mock.MatchedBy(func(dto integration.ListingDTO) bool {
		return dto.SKU == "WIDGET-1" && dto.Price.Equal(decimal.NewFromFloat(44.55)) && dto.Quantity == 4
	})).Return(nil)
	listings.On("Save", ctx, listing).Return(nil)

	result, err := handler.Execute(ctx, action)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "ebay price changed from 50.00 to 44.55", result.Message)
	assert.True(t, listing.PlatformPrice.Equal(decimal.NewFromFloat(44.55)))
	connector.AssertExpectations(t)
	listings.AssertExpectations(t)
}

func TestRepriceHandler_Execute_PlatformFailureFailsAction(t *testing.T) {
	listings := new(MockListingRepository)
	connector := &MockConnector{platform: integration.PlatformEbay}
	registry := &stubConnectorRegistry{connectors: []integration.PlatformConnector{connector}}
	handler := NewRepriceHandler(listings, registry, newTestLogger())

	tenantID := uuid.New()
	listing := integration.NewListing(tenantID, uuid.New(), integration.PlatformEbay, "ebay-1", "WIDGET-1")
	listing.RecordSync(decimal.NewFromInt(50), 4)

	action := newExecutingAction(t, agentdomain.ActionTypeRepriceListing,
		agentdomain.TargetTypeListing, listing.ID.String(), map[string]any{
			"platform":    "ebay",
			"external_id": "ebay-1",
			"after":       44.55,
		})
	ctx := context.Background()

	listings.On("FindByID", ctx, listing.ID).Return(listing, nil)
	connector.On("UpdateProduct", ctx, action.TenantID, "ebay-1", mock.AnythingOfType("integration.ListingDTO")).
		Return(errors.New("rate limited"))

	_, err := handler.Execute(ctx, action)
	require.Error(t, err)
	listings.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestRepriceHandler_Rollback_RestoresBeforePrice(t *testing.T) {
	listings := new(MockListingRepository)
	connector := &MockConnector{platform: integration.PlatformEbay}
	registry := &stubConnectorRegistry{connectors: []integration.PlatformConnector{connector}}
	handler := NewRepriceHandler(listings, registry, newTestLogger())

	tenantID := uuid.New()
	listing := integration.NewListing(tenantID, uuid.New(), integration.PlatformEbay, "ebay-1", "WIDGET-1")
	listing.RecordSync(decimal.NewFromFloat(44.55), 4)

	action := newExecutingAction(t, agentdomain.ActionTypeRepriceListing,
		agentdomain.TargetTypeListing, listing.ID.String(), map[string]any{
			"platform":    "ebay",
			"external_id": "ebay-1",
			"after":       44.55,
		})
	require.NoError(t, action.MarkExecuted(&agentdomain.ActionResult{
		Success: true,
		Data: map[string]any{
			"platform":    "ebay",
			"external_id": "ebay-1",
			"before":      50.0,
			"after":       44.55,
		},
	}))
	ctx := context.Background()

	listings.On("FindByID", ctx, listing.ID).Return(listing, nil)
	connector.On("UpdateProduct", ctx, action.TenantID, "ebay-1", mock.MatchedBy(func(dto integration.ListingDTO) bool {
		return dto.Price.Equal(decimal.NewFromInt(50))
	})).Return(nil)
	listings.On("Save", ctx, listing).Return(nil)

	require.NoError(t, handler.Rollback(context.Background(), action))
	assert.True(t, listing.PlatformPrice.Equal(decimal.NewFromInt(50)))
	connector.AssertExpectations(t)
}
