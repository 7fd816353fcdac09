package agents

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/catalog"
)

func idleProduct(t *testing.T, sa *agentdomain.StoreAgent, sku string, price float64, idleDays int) catalog.Product {
	t.Helper()
	p := newTestProduct(t, sa.TenantID, sku, price, 10)
	soldAt := time.Now().AddDate(0, 0, -idleDays)
	p.LastSoldAt = &soldAt
	return *p
}

func TestDeadStockAgent_Run_TiersDiscountByIdleAge(t *testing.T) {
	products := new(MockProductRepository)
	actions := &recordingActionRepo{}
	proposer := newTestProposer(t, actions, nil)

	agent := NewDeadStockAgent(products, proposer, newTestLogger())
	sa := newTestStoreAgent(t, agent.Slug(), nil)
	run := newTestRun(t, sa)
	ctx := context.Background()

	idle := []catalog.Product{
		idleProduct(t, sa, "TIER1", 100.00, 70),  // 10% off
		idleProduct(t, sa, "TIER2", 100.00, 120), // 20% off
		idleProduct(t, sa, "TIER3", 100.00, 200), // 35% off
	}
	products.On("FindIdleStock", ctx, sa.TenantID, mock.AnythingOfType("time.Time"), 25).
		Return(idle, nil)

	result, err := agent.Run(ctx, run, sa)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 3, result.ActionsCreated)

	saved := actions.byType(agentdomain.ActionTypeScheduleMarkdown)
	require.Len(t, saved, 3)

	want := map[string]float64{"TIER1": 90.00, "TIER2": 80.00, "TIER3": 65.00}
	for _, action := range saved {
		payload := action.PayloadMap()
		sku := payload["sku"].(string)
		assert.InDelta(t, want[sku], payload["after"].(float64), 0.001, sku)
		assert.InDelta(t, 100.00, payload["before"].(float64), 0.001, sku)
	}
}

func TestDeadStockAgent_Run_MarginFloorStopsMarkdown(t *testing.T) {
	products := new(MockProductRepository)
	actions := &recordingActionRepo{}
	proposer := newTestProposer(t, actions, nil)

	agent := NewDeadStockAgent(products, proposer, newTestLogger())
	sa := newTestStoreAgent(t, agent.Slug(), map[string]any{"min_margin_pct": 10.0})
	run := newTestRun(t, sa)
	ctx := context.Background()

	// a 35% markdown would land below cost plus the 10% margin
	stale := idleProduct(t, sa, "THIN", 100.00, 200)
	stale.Cost = decimal.NewFromInt(90)
	stale.Price = decimal.NewFromInt(100)

	products.On("FindIdleStock", ctx, sa.TenantID, mock.AnythingOfType("time.Time"), 25).
		Return([]catalog.Product{stale}, nil)

	result, err := agent.Run(ctx, run, sa)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ActionsCreated)

	saved := actions.byType(agentdomain.ActionTypeScheduleMarkdown)
	require.Len(t, saved, 1)
	payload := saved[0].PayloadMap()
	// floored at cost 90 plus 10% margin
	assert.InDelta(t, 99.00, payload["after"].(float64), 0.001)
}

func TestDeadStockAgent_Run_NeverSoldFallsBackToCreation(t *testing.T) {
	products := new(MockProductRepository)
	actions := &recordingActionRepo{}
	proposer := newTestProposer(t, actions, nil)

	agent := NewDeadStockAgent(products, proposer, newTestLogger())
	sa := newTestStoreAgent(t, agent.Slug(), nil)
	run := newTestRun(t, sa)
	ctx := context.Background()

	never := *newTestProduct(t, sa.TenantID, "NEVER", 100.00, 10)
	never.CreatedAt = time.Now().AddDate(0, 0, -100)

	products.On("FindIdleStock", ctx, sa.TenantID, mock.AnythingOfType("time.Time"), 25).
		Return([]catalog.Product{never}, nil)

	result, err := agent.Run(ctx, run, sa)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ActionsCreated)

	payload := actions.byType(agentdomain.ActionTypeScheduleMarkdown)[0].PayloadMap()
	// 100 days idle since creation lands in the second tier
	assert.InDelta(t, 80.00, payload["after"].(float64), 0.001)
}

func TestDeadStockAgent_Run_FloorAbovePriceSkips(t *testing.T) {
	products := new(MockProductRepository)
	actions := &recordingActionRepo{}
	proposer := newTestProposer(t, actions, nil)

	agent := NewDeadStockAgent(products, proposer, newTestLogger())
	sa := newTestStoreAgent(t, agent.Slug(), map[string]any{"min_margin_pct": 50.0})
	run := newTestRun(t, sa)
	ctx := context.Background()

	// cost 80 with a 50% margin floor exceeds the 100 price entirely
	loss := idleProduct(t, sa, "LOSS", 100.00, 200)
	loss.Cost = decimal.NewFromInt(80)
	loss.Price = decimal.NewFromInt(100)

	products.On("FindIdleStock", ctx, sa.TenantID, mock.AnythingOfType("time.Time"), 25).
		Return([]catalog.Product{loss}, nil)

	result, err := agent.Run(ctx, run, sa)
	require.NoError(t, err)
	assert.Zero(t, result.ActionsCreated)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, actions.saved)
}
