package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/catalog"
)

func salesRow(sku string, units int, revenue int64) catalog.ProductSales {
	return catalog.ProductSales{
		SKU:       sku,
		Name:      "Product " + sku,
		UnitsSold: units,
		Revenue:   decimal.NewFromInt(revenue),
	}
}

func TestSalesIntelligenceAgent_Run_BuildsReportWithDeclineAlert(t *testing.T) {
	products := new(MockProductRepository)
	texter := new(MockTextGenerator)
	actions := &recordingActionRepo{}
	proposer := newTestProposer(t, actions, nil)

	agent := NewSalesIntelligenceAgent(products, texter, proposer, newTestLogger())
	sa := newTestStoreAgent(t, agent.Slug(), nil)
	run := newTestRun(t, sa)
	ctx := context.Background()

	current := []catalog.ProductSales{
		salesRow("A", 10, 500),
		salesRow("B", 4, 100),
	}
	previous := []catalog.ProductSales{
		salesRow("A", 20, 900),
		salesRow("B", 6, 100),
	}
	products.On("SalesTotals", ctx, sa.TenantID, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(current, nil).Once()
	products.On("SalesTotals", ctx, sa.TenantID, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(previous, nil).Once()
	texter.On("GenerateJSON", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(map[string]any{"summary": "Revenue fell sharply."}, nil)

	result, err := agent.Run(ctx, run, sa)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Zero(t, result.ActionsCreated)

	report := result.Data
	assert.InDelta(t, 600.0, report["total_revenue"].(float64), 0.001)
	assert.Equal(t, 14, report["total_units"])
	assert.InDelta(t, 1000.0, report["prev_revenue"].(float64), 0.001)
	// 600 against 1000 is a 40% drop, over the default 20% alert line
	assert.Contains(t, report["decline_alert"], "40.0")
	assert.Equal(t, "Revenue fell sharply.", report["narrative"])

	top := report["top"].([]map[string]any)
	require.NotEmpty(t, top)
	assert.Equal(t, "A", top[0]["sku"])

	products.AssertExpectations(t)
	texter.AssertExpectations(t)
}

func TestSalesIntelligenceAgent_Run_NarrativeFailureDegrades(t *testing.T) {
	products := new(MockProductRepository)
	texter := new(MockTextGenerator)
	actions := &recordingActionRepo{}
	proposer := newTestProposer(t, actions, nil)

	agent := NewSalesIntelligenceAgent(products, texter, proposer, newTestLogger())
	sa := newTestStoreAgent(t, agent.Slug(), nil)
	run := newTestRun(t, sa)
	ctx := context.Background()

	products.On("SalesTotals", ctx, sa.TenantID, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return([]catalog.ProductSales{salesRow("A", 3, 200)}, nil)
	texter.On("GenerateJSON", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("model unavailable"))

	result, err := agent.Run(ctx, run, sa)
	require.NoError(t, err)
	assert.Equal(t, "", result.Data["narrative"])
	assert.Empty(t, result.Errors)
}

func TestSalesIntelligenceAgent_Run_DigestWhenRecipientConfigured(t *testing.T) {
	products := new(MockProductRepository)
	actions := &recordingActionRepo{}
	proposer := newTestProposer(t, actions, nil)

	// no text generator wired: narrative stays off, the digest still goes out
	agent := NewSalesIntelligenceAgent(products, nil, proposer, newTestLogger())
	sa := newTestStoreAgent(t, agent.Slug(), map[string]any{"report_recipient": "owner@example.com"})
	run := newTestRun(t, sa)
	ctx := context.Background()

	products.On("SalesTotals", ctx, sa.TenantID, mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return([]catalog.ProductSales{salesRow("A", 3, 200)}, nil)

	result, err := agent.Run(ctx, run, sa)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ActionsCreated)

	saved := actions.byType(agentdomain.ActionTypeSendNotification)
	require.Len(t, saved, 1)
	payload := saved[0].PayloadMap()
	assert.Equal(t, "owner@example.com", payload["recipient"])
	assert.NotNil(t, payload["report"])
}
