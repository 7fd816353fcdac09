package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	appagent "github.com/storeops/backend/internal/application/agent"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// Pricing strategy names
const (
	StrategyCompetitive = "competitive" // match the market median
	StrategyUndercut    = "undercut"    // 5% under the median
	StrategyPremium     = "premium"     // 10% over the median
)

// PricingAgent proposes price updates for products whose market price has
// drifted from the store price. It selects products unchecked within a
// threshold window, fetches a market summary, and suggests a new price via
// the configured strategy, clamped to a band around the current price.
type PricingAgent struct {
	base
	products catalog.ProductRepository
	search   integration.PriceIntelligence
	proposer *appagent.Proposer
	logger   *zap.Logger
}

// NewPricingAgent creates the pricing agent
func NewPricingAgent(
	products catalog.ProductRepository,
	search integration.PriceIntelligence,
	proposer *appagent.Proposer,
	logger *zap.Logger,
) *PricingAgent {
	return &PricingAgent{
		base:     base{slug: "pricing", name: "Market Pricing", typ: agentdomain.AgentTypeBackground},
		products: products,
		search:   search,
		proposer: proposer,
		logger:   logger,
	}
}

// DefaultConfig returns the built-in pricing policy
func (a *PricingAgent) DefaultConfig() map[string]any {
	return map[string]any{
		"threshold_days":       30,    // recheck products not evaluated in this window
		"auto_adjust_pct":      10.0,  // skip when market deviation is below this
		"strategy":             StrategyCompetitive,
		"max_increase_pct":     15.0,  // clamp band upper bound
		"max_decrease_pct":     25.0,  // clamp band lower bound
		"approval_threshold":   100.0, // suggested prices above this need sign-off
		"batch_size":           20,
		"min_market_samples":   3, // ignore summaries built from fewer comparables
	}
}

// ConfigSchema describes the valid pricing config
func (a *PricingAgent) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"threshold_days":     map[string]any{"type": "integer", "minimum": 1},
			"auto_adjust_pct":    map[string]any{"type": "number", "minimum": 0},
			"strategy":           map[string]any{"type": "string", "enum": []any{StrategyCompetitive, StrategyUndercut, StrategyPremium}},
			"max_increase_pct":   map[string]any{"type": "number", "minimum": 0},
			"max_decrease_pct":   map[string]any{"type": "number", "minimum": 0},
			"approval_threshold": map[string]any{"type": "number", "minimum": 0},
			"batch_size":         map[string]any{"type": "integer", "minimum": 1},
			"min_market_samples": map[string]any{"type": "integer", "minimum": 1},
		},
	}
}

// CanRun requires an enabled store agent and a price search collaborator
func (a *PricingAgent) CanRun(ctx context.Context, sa *agentdomain.StoreAgent) (bool, string) {
	if !sa.Enabled {
		return false, "agent disabled for store"
	}
	if a.search == nil {
		return false, "price intelligence not configured"
	}
	return true, ""
}

// Run evaluates stale products oldest-checked-first and proposes price
// updates. Per-product failures (price search down, bad data) are recorded
// and the batch continues.
func (a *PricingAgent) Run(ctx context.Context, run *agentdomain.AgentRun, sa *agentdomain.StoreAgent) (*agentdomain.RunResult, error) {
	cfg := sa.EffectiveConfig(a.DefaultConfig())
	result := agentdomain.NewRunResult()

	thresholdDays := cfg.Int("threshold_days", 30)
	cutoff := time.Now().AddDate(0, 0, -thresholdDays)

	candidates, err := a.products.FindPriceCheckCandidates(ctx, sa.TenantID, cutoff, cfg.Int("batch_size", 20))
	if err != nil {
		// Setup failure: nothing was evaluated, abort the run.
		return nil, fmt.Errorf("selecting price check candidates: %w", err)
	}

	for i := range candidates {
		product := &candidates[i]
		if err := a.evaluate(ctx, run, sa, cfg, product, result); err != nil {
			result.RecordError(fmt.Sprintf("product %s: %v", product.SKU, err))
			continue
		}
		result.Processed++
	}
	return result, nil
}

func (a *PricingAgent) evaluate(
	ctx context.Context,
	run *agentdomain.AgentRun,
	sa *agentdomain.StoreAgent,
	cfg agentdomain.Config,
	product *catalog.Product,
	result *agentdomain.RunResult,
) error {
	summary, err := a.search.SearchPrices(ctx, sa.TenantID, integration.SearchCriteria{
		Query:    product.Name,
		Category: categoryName(product),
	})
	if err != nil {
		return fmt.Errorf("price search: %w", err)
	}
	if summary.Count < cfg.Int("min_market_samples", 3) {
		a.markChecked(ctx, product)
		return nil
	}

	current := product.Price
	deviation := percentDeviation(current, summary.Median)
	if deviation.LessThan(cfg.Decimal("auto_adjust_pct", decimal.NewFromInt(10))) {
		a.markChecked(ctx, product)
		return nil
	}

	suggested := suggestPrice(cfg.String("strategy", StrategyCompetitive), summary.Median)
	suggested = clampToBand(suggested, current,
		cfg.Decimal("max_decrease_pct", decimal.NewFromInt(25)),
		cfg.Decimal("max_increase_pct", decimal.NewFromInt(15)),
	).Round(2)

	if suggested.Equal(current) {
		a.markChecked(ctx, product)
		return nil
	}

	approvalThreshold := cfg.Decimal("approval_threshold", decimal.NewFromInt(100))
	payload := map[string]any{
		"sku":                product.SKU,
		"before":             current.InexactFloat64(),
		"after":              suggested.InexactFloat64(),
		"approval_threshold": approvalThreshold.InexactFloat64(),
		"strategy":           cfg.String("strategy", StrategyCompetitive),
		"market": map[string]any{
			"min":    summary.Min.InexactFloat64(),
			"max":    summary.Max.InexactFloat64(),
			"median": summary.Median.InexactFloat64(),
			"count":  summary.Count,
		},
		"rationale": fmt.Sprintf(
			"market median %s deviates %s%% from current price %s; %s strategy suggests %s",
			summary.Median.StringFixed(2), deviation.StringFixed(1),
			current.StringFixed(2), cfg.String("strategy", StrategyCompetitive), suggested.StringFixed(2),
		),
	}

	_, created, err := a.proposer.Propose(ctx, run, sa,
		agentdomain.ActionTypeUpdatePrice, agentdomain.TargetTypeProduct, product.ID.String(), payload)
	if err != nil {
		return err
	}
	if created {
		result.ActionsCreated++
	}
	a.markChecked(ctx, product)
	return nil
}

// markChecked advances the product's check bookkeeping so the same
// candidate does not come back on the next tick
func (a *PricingAgent) markChecked(ctx context.Context, product *catalog.Product) {
	product.MarkPriceChecked(time.Now())
	if err := a.products.Save(ctx, product); err != nil {
		a.logger.Warn("could not persist price check timestamp",
			zap.String("sku", product.SKU), zap.Error(err))
	}
}

// suggestPrice applies the configured strategy to the market median
func suggestPrice(strategy string, median decimal.Decimal) decimal.Decimal {
	switch strategy {
	case StrategyUndercut:
		return median.Mul(decimal.RequireFromString("0.95"))
	case StrategyPremium:
		return median.Mul(decimal.RequireFromString("1.10"))
	default:
		return median
	}
}

// clampToBand bounds suggested within [current-down%, current+up%]
func clampToBand(suggested, current, downPct, upPct decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	floor := current.Mul(hundred.Sub(downPct)).Div(hundred)
	ceiling := current.Mul(hundred.Add(upPct)).Div(hundred)
	if suggested.LessThan(floor) {
		return floor
	}
	if suggested.GreaterThan(ceiling) {
		return ceiling
	}
	return suggested
}

// percentDeviation returns |reference-price|/price in percent
func percentDeviation(price, reference decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return decimal.NewFromInt(100)
	}
	return reference.Sub(price).Abs().Div(price).Mul(decimal.NewFromInt(100))
}

func categoryName(product *catalog.Product) string {
	if product.CategoryID == nil {
		return ""
	}
	return product.CategoryID.String()
}
