package agents

import (
	"context"
	"fmt"

	appagent "github.com/storeops/backend/internal/application/agent"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/integration"
	"github.com/storeops/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ListingAgent gets sellable products onto marketplaces. Products with
// stock but no listing on a configured platform are transformed into that
// platform's representation and proposed as create-listing actions;
// listings whose platform price drifted from the base price get
// update-listing proposals.
type ListingAgent struct {
	base
	products    catalog.ProductRepository
	listings    integration.ListingRepository
	connectors  integration.ConnectorRegistry
	transformer integration.ListingTransformer
	proposer    *appagent.Proposer
	logger      *zap.Logger
}

// NewListingAgent creates the listing agent
func NewListingAgent(
	products catalog.ProductRepository,
	listings integration.ListingRepository,
	connectors integration.ConnectorRegistry,
	transformer integration.ListingTransformer,
	proposer *appagent.Proposer,
	logger *zap.Logger,
) *ListingAgent {
	return &ListingAgent{
		base:        base{slug: "product_listing", name: "Product Listing", typ: agentdomain.AgentTypeProactive},
		products:    products,
		listings:    listings,
		connectors:  connectors,
		transformer: transformer,
		proposer:    proposer,
		logger:      logger,
	}
}

// DefaultConfig returns the built-in listing policy
func (a *ListingAgent) DefaultConfig() map[string]any {
	return map[string]any{
		"batch_size":    25,
		"min_stock":     1,
		"sync_existing": true,
	}
}

// ConfigSchema describes the valid listing config
func (a *ListingAgent) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"batch_size":    map[string]any{"type": "integer", "minimum": 1},
			"min_stock":     map[string]any{"type": "integer", "minimum": 0},
			"sync_existing": map[string]any{"type": "boolean"},
		},
	}
}

// CanRun requires a configured marketplace and the transformer collaborator
func (a *ListingAgent) CanRun(ctx context.Context, sa *agentdomain.StoreAgent) (bool, string) {
	if !sa.Enabled {
		return false, "agent disabled for store"
	}
	if a.transformer == nil {
		return false, "listing transformer not configured"
	}
	if len(a.connectors.ConfiguredConnectors(ctx, sa.TenantID)) == 0 {
		return false, "no marketplace connections configured"
	}
	return true, ""
}

// Run proposes create-listing actions for unlisted stock and update-listing
// actions for drifted ones. Transformer failures stay local to one product.
func (a *ListingAgent) Run(ctx context.Context, run *agentdomain.AgentRun, sa *agentdomain.StoreAgent) (*agentdomain.RunResult, error) {
	cfg := sa.EffectiveConfig(a.DefaultConfig())
	result := agentdomain.NewRunResult()

	filter := listingCandidatesFilter(cfg.Int("batch_size", 25))
	products, err := a.products.FindAllForTenant(ctx, sa.TenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("loading products: %w", err)
	}

	for _, connector := range a.connectors.ConfiguredConnectors(ctx, sa.TenantID) {
		platform := connector.Platform()
		for i := range products {
			product := &products[i]
			if product.QuantityOnHand < cfg.Int("min_stock", 1) {
				continue
			}
			if err := a.evaluate(ctx, run, sa, cfg, platform, product, result); err != nil {
				result.RecordError(fmt.Sprintf("product %s on %s: %v", product.SKU, platform, err))
				continue
			}
			result.Processed++
		}
	}
	return result, nil
}

func (a *ListingAgent) evaluate(
	ctx context.Context,
	run *agentdomain.AgentRun,
	sa *agentdomain.StoreAgent,
	cfg agentdomain.Config,
	platform integration.Platform,
	product *catalog.Product,
	result *agentdomain.RunResult,
) error {
	existing, err := a.listings.FindByProduct(ctx, sa.TenantID, product.ID)
	if err != nil {
		return fmt.Errorf("loading listings: %w", err)
	}

	var onPlatform *integration.Listing
	for i := range existing {
		if existing[i].Platform == platform && existing[i].Active {
			onPlatform = &existing[i]
			break
		}
	}

	if onPlatform == nil {
		dto, err := a.transformer.Transform(ctx, sa.TenantID, product.ID, platform)
		if err != nil {
			return fmt.Errorf("transform: %w", err)
		}
		payload := map[string]any{
			"platform":  string(platform),
			"listing":   listingPayload(dto),
			"rationale": fmt.Sprintf("%s has %d units in stock and no %s listing", product.SKU, product.QuantityOnHand, platform),
		}
		_, created, err := a.proposer.Propose(ctx, run, sa,
			agentdomain.ActionTypeCreateListing, agentdomain.TargetTypeProduct,
			fmt.Sprintf("%s:%s", product.ID, platform), payload)
		if err != nil {
			return err
		}
		if created {
			result.ActionsCreated++
		}
		return nil
	}

	if cfg.Bool("sync_existing", true) && !onPlatform.PlatformPrice.Equal(product.Price) {
		dto, err := a.transformer.Transform(ctx, sa.TenantID, product.ID, platform)
		if err != nil {
			return fmt.Errorf("transform: %w", err)
		}
		payload := map[string]any{
			"platform":    string(platform),
			"external_id": onPlatform.ExternalID,
			"listing":     listingPayload(dto),
			"before":      onPlatform.PlatformPrice.InexactFloat64(),
			"after":       product.Price.InexactFloat64(),
			"rationale": fmt.Sprintf("%s listing price %s drifted from base price %s",
				platform, onPlatform.PlatformPrice.StringFixed(2), product.Price.StringFixed(2)),
		}
		_, created, err := a.proposer.Propose(ctx, run, sa,
			agentdomain.ActionTypeUpdateListing, agentdomain.TargetTypeListing, onPlatform.ID.String(), payload)
		if err != nil {
			return err
		}
		if created {
			result.ActionsCreated++
		}
	}
	return nil
}

func listingPayload(dto *integration.ListingDTO) map[string]any {
	return map[string]any{
		"sku":         dto.SKU,
		"title":       dto.Title,
		"description": dto.Description,
		"price":       dto.Price.InexactFloat64(),
		"quantity":    dto.Quantity,
		"category":    dto.Category,
		"image_urls":  dto.ImageURLs,
		"attributes":  dto.Attributes,
	}
}

func listingCandidatesFilter(pageSize int) (f shared.Filter) {
	f = shared.DefaultFilter()
	f.PageSize = pageSize
	f.Filters["status"] = string(catalog.ProductStatusActive)
	return f
}
