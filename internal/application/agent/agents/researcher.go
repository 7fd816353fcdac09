package agents

import (
	"context"
	"fmt"
	"time"

	appagent "github.com/storeops/backend/internal/application/agent"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/partner"
	"go.uber.org/zap"
)

// ResearcherAgent matches newly arrived stock against customers who bought
// from the same category before, and proposes notification actions for the
// best matches. It also reacts to product-created events so a fresh arrival
// can reach interested customers before the next scheduled sweep.
type ResearcherAgent struct {
	base
	products  catalog.ProductRepository
	customers partner.CustomerRepository
	proposer  *appagent.Proposer
	logger    *zap.Logger
}

// NewResearcherAgent creates the researcher agent
func NewResearcherAgent(
	products catalog.ProductRepository,
	customers partner.CustomerRepository,
	proposer *appagent.Proposer,
	logger *zap.Logger,
) *ResearcherAgent {
	return &ResearcherAgent{
		base:      base{slug: "customer_researcher", name: "Customer Researcher", typ: agentdomain.AgentTypeEventTriggered},
		products:  products,
		customers: customers,
		proposer:  proposer,
		logger:    logger,
	}
}

// DefaultConfig returns the built-in matching policy
func (a *ResearcherAgent) DefaultConfig() map[string]any {
	return map[string]any{
		"lookback_hours":       24,
		"max_matches_per_item": 3,
		"max_notices_per_run":  20,
		"require_stock":        true,
	}
}

// ConfigSchema describes the valid researcher config
func (a *ResearcherAgent) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"lookback_hours":       map[string]any{"type": "integer", "minimum": 1},
			"max_matches_per_item": map[string]any{"type": "integer", "minimum": 1},
			"max_notices_per_run":  map[string]any{"type": "integer", "minimum": 1},
			"require_stock":        map[string]any{"type": "boolean"},
		},
	}
}

// CanRun only needs the store to have the agent enabled
func (a *ResearcherAgent) CanRun(ctx context.Context, sa *agentdomain.StoreAgent) (bool, string) {
	if !sa.Enabled {
		return false, "agent disabled for store"
	}
	return true, ""
}

// SubscribedEvents lets new arrivals trigger a reactive run
func (a *ResearcherAgent) SubscribedEvents() []string {
	return []string{agentdomain.EventProductCreated}
}

// HandleEvent is a no-op; the orchestrator schedules a run for subscribed
// events and Run picks the arrival up through the lookback window.
func (a *ResearcherAgent) HandleEvent(ctx context.Context, eventType string, payload map[string]any, sa *agentdomain.StoreAgent) error {
	return nil
}

// Run finds arrivals inside the lookback window, matches each against
// customers with an affinity for its category, and proposes one
// notification per matched customer, bounded per item and per run.
func (a *ResearcherAgent) Run(ctx context.Context, run *agentdomain.AgentRun, sa *agentdomain.StoreAgent) (*agentdomain.RunResult, error) {
	cfg := sa.EffectiveConfig(a.DefaultConfig())
	result := agentdomain.NewRunResult()

	since := time.Now().Add(-time.Duration(cfg.Int("lookback_hours", 24)) * time.Hour)
	arrivals, err := a.products.FindArrivedSince(ctx, sa.TenantID, since)
	if err != nil {
		return nil, fmt.Errorf("loading arrivals: %w", err)
	}

	budget := cfg.Int("max_notices_per_run", 20)
	for i := range arrivals {
		if budget <= 0 {
			break
		}
		product := &arrivals[i]
		if cfg.Bool("require_stock", true) && product.QuantityOnHand <= 0 {
			result.Skipped++
			continue
		}
		proposed, err := a.matchAndPropose(ctx, run, sa, cfg, product, budget)
		if err != nil {
			result.RecordError(fmt.Sprintf("product %s: %v", product.SKU, err))
			continue
		}
		budget -= proposed
		result.ActionsCreated += proposed
		result.Processed++
	}
	return result, nil
}

func (a *ResearcherAgent) matchAndPropose(
	ctx context.Context,
	run *agentdomain.AgentRun,
	sa *agentdomain.StoreAgent,
	cfg agentdomain.Config,
	product *catalog.Product,
	budget int,
) (int, error) {
	if product.CategoryID == nil {
		return 0, nil
	}

	limit := cfg.Int("max_matches_per_item", 3)
	if limit > budget {
		limit = budget
	}
	matches, err := a.customers.FindWithAffinity(ctx, sa.TenantID, *product.CategoryID, limit)
	if err != nil {
		return 0, fmt.Errorf("matching customers: %w", err)
	}

	proposed := 0
	for i := range matches {
		customer := &matches[i]
		payload := map[string]any{
			"channel":   "email",
			"recipient": customer.Email,
			"subject":   fmt.Sprintf("New arrival: %s", product.Name),
			"body": fmt.Sprintf("%s just arrived and matches what %s has bought before. Price: %s.",
				product.Name, customer.Name, product.Price.StringFixed(2)),
			"product_id": product.ID.String(),
			"sku":        product.SKU,
			"rationale":  "customer bought from this category before and is opted in",
		}
		_, created, err := a.proposer.Propose(ctx, run, sa,
			agentdomain.ActionTypeSendNotification, agentdomain.TargetTypeCustomer,
			fmt.Sprintf("%s:%s", customer.ID, product.ID), payload)
		if err != nil {
			return proposed, err
		}
		if created {
			proposed++
		}
	}
	return proposed, nil
}
