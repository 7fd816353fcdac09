package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	appagent "github.com/storeops/backend/internal/application/agent"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/catalog"
	"go.uber.org/zap"
)

// DeadStockAgent finds inventory that stopped selling and proposes tiered
// markdowns to move it. Discounts deepen with idle age so slow movers get a
// nudge and true dead stock gets cleared.
type DeadStockAgent struct {
	base
	products catalog.ProductRepository
	proposer *appagent.Proposer
	logger   *zap.Logger
}

// NewDeadStockAgent creates the dead stock agent
func NewDeadStockAgent(products catalog.ProductRepository, proposer *appagent.Proposer, logger *zap.Logger) *DeadStockAgent {
	return &DeadStockAgent{
		base:     base{slug: "dead_stock", name: "Dead Stock", typ: agentdomain.AgentTypeBackground},
		products: products,
		proposer: proposer,
		logger:   logger,
	}
}

// DefaultConfig returns the built-in markdown tiers
func (a *DeadStockAgent) DefaultConfig() map[string]any {
	return map[string]any{
		"idle_days":      60,
		"tier1_days":     60,
		"tier1_discount": 10.0,
		"tier2_days":     90,
		"tier2_discount": 20.0,
		"tier3_days":     180,
		"tier3_discount": 35.0,
		"min_margin_pct": 0.0,
		"batch_size":     25,
	}
}

// ConfigSchema describes the valid markdown config
func (a *DeadStockAgent) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"idle_days":      map[string]any{"type": "integer", "minimum": 1},
			"tier1_days":     map[string]any{"type": "integer", "minimum": 1},
			"tier1_discount": map[string]any{"type": "number", "minimum": 0, "maximum": 90},
			"tier2_days":     map[string]any{"type": "integer", "minimum": 1},
			"tier2_discount": map[string]any{"type": "number", "minimum": 0, "maximum": 90},
			"tier3_days":     map[string]any{"type": "integer", "minimum": 1},
			"tier3_discount": map[string]any{"type": "number", "minimum": 0, "maximum": 90},
			"min_margin_pct": map[string]any{"type": "number"},
			"batch_size":     map[string]any{"type": "integer", "minimum": 1},
		},
	}
}

// CanRun only needs the store to have the agent enabled
func (a *DeadStockAgent) CanRun(ctx context.Context, sa *agentdomain.StoreAgent) (bool, string) {
	if !sa.Enabled {
		return false, "agent disabled for store"
	}
	return true, ""
}

// Run loads idle in-stock products and proposes one markdown per product,
// discount tiered by how long it has sat.
func (a *DeadStockAgent) Run(ctx context.Context, run *agentdomain.AgentRun, sa *agentdomain.StoreAgent) (*agentdomain.RunResult, error) {
	cfg := sa.EffectiveConfig(a.DefaultConfig())
	result := agentdomain.NewRunResult()

	now := time.Now()
	cutoff := now.AddDate(0, 0, -cfg.Int("idle_days", 60))
	idle, err := a.products.FindIdleStock(ctx, sa.TenantID, cutoff, cfg.Int("batch_size", 25))
	if err != nil {
		return nil, fmt.Errorf("loading idle stock: %w", err)
	}

	for i := range idle {
		product := &idle[i]
		if err := a.proposeMarkdown(ctx, run, sa, cfg, product, now, result); err != nil {
			result.RecordError(fmt.Sprintf("product %s: %v", product.SKU, err))
			continue
		}
		result.Processed++
	}
	return result, nil
}

func (a *DeadStockAgent) proposeMarkdown(
	ctx context.Context,
	run *agentdomain.AgentRun,
	sa *agentdomain.StoreAgent,
	cfg agentdomain.Config,
	product *catalog.Product,
	now time.Time,
	result *agentdomain.RunResult,
) error {
	idleDays := a.idleDays(product, now)
	discount := a.tierDiscount(cfg, idleDays)
	if discount <= 0 {
		result.Skipped++
		return nil
	}

	hundred := decimal.NewFromInt(100)
	markedDown := product.Price.Mul(hundred.Sub(decimal.NewFromFloat(discount))).Div(hundred).Round(2)

	// Never mark below the configured margin over cost
	floor := product.Cost.Mul(hundred.Add(cfg.Decimal("min_margin_pct", decimal.Zero))).Div(hundred).Round(2)
	if markedDown.LessThan(floor) {
		markedDown = floor
	}
	if !markedDown.LessThan(product.Price) {
		result.Skipped++
		return nil
	}

	payload := map[string]any{
		"sku":          product.SKU,
		"before":       product.Price.InexactFloat64(),
		"after":        markedDown.InexactFloat64(),
		"discount_pct": discount,
		"idle_days":    idleDays,
		"quantity":     product.QuantityOnHand,
		"rationale": fmt.Sprintf("%s has not sold in %d days with %d units on hand, tiered markdown %.0f%%",
			product.SKU, idleDays, product.QuantityOnHand, discount),
	}
	_, created, err := a.proposer.Propose(ctx, run, sa,
		agentdomain.ActionTypeScheduleMarkdown, agentdomain.TargetTypeProduct, product.ID.String(), payload)
	if err != nil {
		return err
	}
	if created {
		result.ActionsCreated++
	}
	return nil
}

// idleDays measures idle time from the last sale, falling back to the
// product's creation when it has never sold
func (a *DeadStockAgent) idleDays(product *catalog.Product, now time.Time) int {
	since := product.CreatedAt
	if product.LastSoldAt != nil {
		since = *product.LastSoldAt
	}
	return int(now.Sub(since).Hours() / 24)
}

func (a *DeadStockAgent) tierDiscount(cfg agentdomain.Config, idleDays int) float64 {
	switch {
	case idleDays >= cfg.Int("tier3_days", 180):
		return cfg.Float("tier3_discount", 35)
	case idleDays >= cfg.Int("tier2_days", 90):
		return cfg.Float("tier2_discount", 20)
	case idleDays >= cfg.Int("tier1_days", 60):
		return cfg.Float("tier1_discount", 10)
	default:
		return 0
	}
}
