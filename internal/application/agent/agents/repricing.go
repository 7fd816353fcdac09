package agents

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	appagent "github.com/storeops/backend/internal/application/agent"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// RepricingAgent proposes per-marketplace listing price changes. Each
// platform gets its own strategy: an eBay-style marketplace is repriced
// against the lowest comparable market price with an undercut band, a
// Shopify-style storefront is kept at parity with the base price, and
// anything else syncs to base. Every suggestion is floored at a margin
// over cost and capped at a maximum reduction, and changes beyond the
// major-change percentage force approval regardless of store policy.
type RepricingAgent struct {
	base
	listings   integration.ListingRepository
	products   catalog.ProductRepository
	connectors integration.ConnectorRegistry
	search     integration.PriceIntelligence
	proposer   *appagent.Proposer
	logger     *zap.Logger
}

// NewRepricingAgent creates the repricing agent
func NewRepricingAgent(
	listings integration.ListingRepository,
	products catalog.ProductRepository,
	connectors integration.ConnectorRegistry,
	search integration.PriceIntelligence,
	proposer *appagent.Proposer,
	logger *zap.Logger,
) *RepricingAgent {
	return &RepricingAgent{
		base:       base{slug: "channel_repricing", name: "Channel Repricing", typ: agentdomain.AgentTypeBackground},
		listings:   listings,
		products:   products,
		connectors: connectors,
		search:     search,
		proposer:   proposer,
		logger:     logger,
	}
}

// DefaultConfig returns the built-in repricing policy
func (a *RepricingAgent) DefaultConfig() map[string]any {
	return map[string]any{
		"min_margin_pct":    20.0, // floor over cost
		"max_reduction_pct": 30.0, // cap on one-step reductions
		"major_change_pct":  15.0, // beyond this, approval is forced
		"undercut_pct":      1.0,  // eBay-style band under the market low
		"batch_size":        50,
	}
}

// ConfigSchema describes the valid repricing config
func (a *RepricingAgent) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"min_margin_pct":    map[string]any{"type": "number", "minimum": 0},
			"max_reduction_pct": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
			"major_change_pct":  map[string]any{"type": "number", "minimum": 0},
			"undercut_pct":      map[string]any{"type": "number", "minimum": 0, "maximum": 100},
			"batch_size":        map[string]any{"type": "integer", "minimum": 1},
		},
	}
}

// CanRun requires at least one configured marketplace connection
func (a *RepricingAgent) CanRun(ctx context.Context, sa *agentdomain.StoreAgent) (bool, string) {
	if !sa.Enabled {
		return false, "agent disabled for store"
	}
	if len(a.connectors.ConfiguredConnectors(ctx, sa.TenantID)) == 0 {
		return false, "no marketplace connections configured"
	}
	return true, ""
}

// Run walks every configured marketplace connection and proposes reprices.
// A failure on one listing or one platform never stops the rest.
func (a *RepricingAgent) Run(ctx context.Context, run *agentdomain.AgentRun, sa *agentdomain.StoreAgent) (*agentdomain.RunResult, error) {
	cfg := sa.EffectiveConfig(a.DefaultConfig())
	result := agentdomain.NewRunResult()
	batch := cfg.Int("batch_size", 50)

	for _, connector := range a.connectors.ConfiguredConnectors(ctx, sa.TenantID) {
		platform := connector.Platform()
		listings, err := a.listings.FindActiveByPlatform(ctx, sa.TenantID, platform)
		if err != nil {
			result.RecordError(fmt.Sprintf("platform %s: loading listings: %v", platform, err))
			continue
		}
		for i := range listings {
			if result.Processed >= batch {
				break
			}
			listing := &listings[i]
			if err := a.reprice(ctx, run, sa, cfg, platform, listing, result); err != nil {
				result.RecordError(fmt.Sprintf("listing %s: %v", listing.SKU, err))
				continue
			}
			result.Processed++
		}
	}
	return result, nil
}

func (a *RepricingAgent) reprice(
	ctx context.Context,
	run *agentdomain.AgentRun,
	sa *agentdomain.StoreAgent,
	cfg agentdomain.Config,
	platform integration.Platform,
	listing *integration.Listing,
	result *agentdomain.RunResult,
) error {
	product, err := a.products.FindByIDForTenant(ctx, sa.TenantID, listing.ProductID)
	if err != nil {
		return fmt.Errorf("product lookup: %w", err)
	}

	hundred := decimal.NewFromInt(100)
	floor := product.Cost.Mul(hundred.Add(cfg.Decimal("min_margin_pct", decimal.NewFromInt(20)))).Div(hundred)
	current := listing.PlatformPrice

	target, rationale, err := a.targetPrice(ctx, sa, cfg, platform, product, current)
	if err != nil {
		return err
	}

	// Margin floor always wins, then cap how far down one step may go.
	if target.LessThan(floor) {
		target = floor
		rationale += "; raised to margin floor"
	}
	if current.IsPositive() {
		minAllowed := current.Mul(hundred.Sub(cfg.Decimal("max_reduction_pct", decimal.NewFromInt(30)))).Div(hundred)
		if target.LessThan(minAllowed) {
			target = minAllowed
			rationale += "; capped at max reduction"
		}
	}
	target = target.Round(2)

	if target.Equal(current) {
		return nil
	}

	changePct := percentDeviation(current, target)
	forceApproval := changePct.GreaterThan(cfg.Decimal("major_change_pct", decimal.NewFromInt(15)))

	payload := map[string]any{
		"platform":       string(platform),
		"external_id":    listing.ExternalID,
		"sku":            listing.SKU,
		"before":         current.InexactFloat64(),
		"after":          target.InexactFloat64(),
		"change_pct":     changePct.InexactFloat64(),
		"force_approval": forceApproval,
		"rationale":      rationale,
	}
	_, created, err := a.proposer.Propose(ctx, run, sa,
		agentdomain.ActionTypeRepriceListing, agentdomain.TargetTypeListing, listing.ID.String(), payload)
	if err != nil {
		return err
	}
	if created {
		result.ActionsCreated++
	}
	return nil
}

// targetPrice applies the platform-specific strategy
func (a *RepricingAgent) targetPrice(
	ctx context.Context,
	sa *agentdomain.StoreAgent,
	cfg agentdomain.Config,
	platform integration.Platform,
	product *catalog.Product,
	current decimal.Decimal,
) (decimal.Decimal, string, error) {
	hundred := decimal.NewFromInt(100)

	switch platform {
	case integration.PlatformEbay:
		// Buy-box style: land just under the lowest comparable market price.
		summary, err := a.search.SearchPrices(ctx, sa.TenantID, integration.SearchCriteria{Query: product.Name})
		if err != nil {
			return decimal.Zero, "", fmt.Errorf("price search: %w", err)
		}
		undercut := cfg.Decimal("undercut_pct", decimal.NewFromInt(1))
		target := summary.Min.Mul(hundred.Sub(undercut)).Div(hundred)
		return target, fmt.Sprintf("undercutting market low %s by %s%%",
			summary.Min.StringFixed(2), undercut.StringFixed(1)), nil
	case integration.PlatformShopify:
		// Storefront stays at parity with the base price.
		return product.Price, fmt.Sprintf("price parity with base price %s", product.Price.StringFixed(2)), nil
	default:
		return product.Price, "sync to base price", nil
	}
}
