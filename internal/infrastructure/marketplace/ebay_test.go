package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeops/backend/internal/domain/integration"
)

func TestEbayConfig_Validate(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		err := (&EbayConfig{}).Validate()
		assert.ErrorIs(t, err, ErrEbayConfigMissingToken)
	})

	t.Run("fills defaults", func(t *testing.T) {
		config := &EbayConfig{OAuthToken: "tok"}
		require.NoError(t, config.Validate())
		assert.Equal(t, "EBAY_US", config.MarketplaceID)
		assert.Equal(t, EbayProductionAPIURL, config.APIBaseURL)
		assert.True(t, config.TimeoutSeconds > 0)
	})
}

func newTestEbayConnector(t *testing.T, handler http.Handler) (*EbayConnector, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	connector, err := NewEbayConnector(&EbayConfig{
		OAuthToken: "test-token",
		APIBaseURL: server.URL,
	})
	require.NoError(t, err)
	return connector, server
}

func TestEbayConnector_GetOrders(t *testing.T) {
	tenantID := uuid.New()

	connector, _ := newTestEbayConnector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Path, "/sell/fulfillment/v1/order")

		json.NewEncoder(w).Encode(map[string]any{
			"orders": []map[string]any{{
				"orderId":      "11-22222-33333",
				"creationDate": "2026-08-29T10:00:00Z",
				"buyer":        map[string]any{"username": "buyer99"},
				"pricingSummary": map[string]any{
					"total": map[string]any{"value": "59.98", "currency": "USD"},
				},
				"lineItems": []map[string]any{{
					"sku":          "WIDGET-1",
					"title":        "Widget",
					"quantity":     2,
					"lineItemCost": map[string]any{"value": "29.99"},
				}},
			}},
		})
	}))

	orders, err := connector.GetOrders(context.Background(), tenantID, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, orders, 1)

	order := orders[0]
	assert.Equal(t, "11-22222-33333", order.ExternalID)
	assert.Equal(t, integration.PlatformEbay, order.Platform)
	assert.Equal(t, "buyer99", order.Buyer)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("59.98")))
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "WIDGET-1", order.Lines[0].SKU)
	assert.Equal(t, 2, order.Lines[0].Quantity)
}

func TestEbayConnector_GetOrder_NotFound(t *testing.T) {
	connector, _ := newTestEbayConnector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := connector.GetOrder(context.Background(), uuid.New(), "missing")
	assert.ErrorIs(t, err, integration.ErrOrderNotFound)
}

func TestEbayConnector_CreateProduct(t *testing.T) {
	connector, _ := newTestEbayConnector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req ebayListingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "WIDGET-1", req.SKU)
		assert.Equal(t, "29.99", req.Price)

		json.NewEncoder(w).Encode(map[string]any{"offerId": "offer-1", "listingId": "listing-9"})
	}))

	id, err := connector.CreateProduct(context.Background(), uuid.New(), integration.ListingDTO{
		SKU:      "WIDGET-1",
		Title:    "Widget",
		Price:    decimal.RequireFromString("29.99"),
		Quantity: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "listing-9", id)
}

func TestEbayConnector_BulkUpdateInventory(t *testing.T) {
	connector, _ := newTestEbayConnector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"responses": []map[string]any{
				{"sku": "GOOD-1", "statusCode": 200},
				{"sku": "BAD-1", "statusCode": 400, "errors": []map[string]any{{"message": "sku not listed"}}},
			},
		})
	}))

	results, err := connector.BulkUpdateInventory(context.Background(), uuid.New(), []integration.InventoryUpdate{
		{SKU: "GOOD-1", Quantity: 3},
		{SKU: "BAD-1", Quantity: 1},
	})
	require.NoError(t, err)
	assert.True(t, results["GOOD-1"].Success)
	assert.False(t, results["BAD-1"].Success)
	assert.Equal(t, "sku not listed", results["BAD-1"].Message)
}

func TestEbayConnector_ServerErrorSurfacesConnectorUnavailable(t *testing.T) {
	connector, _ := newTestEbayConnector(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := connector.GetOrders(context.Background(), uuid.New(), time.Now())
	assert.ErrorIs(t, err, integration.ErrConnectorUnavailable)
}

func TestEbayConnector_UnconfiguredTenant(t *testing.T) {
	connector, err := NewEbayConnector(nil)
	require.NoError(t, err)

	assert.False(t, connector.IsConfigured(context.Background(), uuid.New()))

	_, err = connector.GetOrders(context.Background(), uuid.New(), time.Now())
	assert.ErrorIs(t, err, integration.ErrPlatformNotConfigured)
}

func TestEbayConnector_TenantConfigOverridesDefault(t *testing.T) {
	connector, err := NewEbayConnector(nil)
	require.NoError(t, err)

	tenantID := uuid.New()
	require.NoError(t, connector.SetTenantConfig(tenantID, &EbayConfig{OAuthToken: "tenant-token"}))

	assert.True(t, connector.IsConfigured(context.Background(), tenantID))
	assert.False(t, connector.IsConfigured(context.Background(), uuid.New()))
}
