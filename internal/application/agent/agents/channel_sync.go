package agents

import (
	"context"
	"fmt"
	"time"

	appagent "github.com/storeops/backend/internal/application/agent"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// ChannelSyncAgent keeps marketplaces consistent with local stock. It
// computes sellable quantity (on hand minus a reserve buffer), proposes one
// batched inventory push per marketplace covering every drifted listing,
// flags stock-out transitions with discrete notification actions, and
// imports not-yet-seen external orders as individual deduplicated actions.
type ChannelSyncAgent struct {
	base
	listings   integration.ListingRepository
	products   catalog.ProductRepository
	connectors integration.ConnectorRegistry
	imported   integration.ImportedOrderRepository
	proposer   *appagent.Proposer
	logger     *zap.Logger
}

// NewChannelSyncAgent creates the channel sync agent
func NewChannelSyncAgent(
	listings integration.ListingRepository,
	products catalog.ProductRepository,
	connectors integration.ConnectorRegistry,
	imported integration.ImportedOrderRepository,
	proposer *appagent.Proposer,
	logger *zap.Logger,
) *ChannelSyncAgent {
	return &ChannelSyncAgent{
		base:       base{slug: "channel_sync", name: "Channel Sync", typ: agentdomain.AgentTypeBackground},
		listings:   listings,
		products:   products,
		connectors: connectors,
		imported:   imported,
		proposer:   proposer,
		logger:     logger,
	}
}

// DefaultConfig returns the built-in sync policy
func (a *ChannelSyncAgent) DefaultConfig() map[string]any {
	return map[string]any{
		"buffer":               2, // units held back from every channel
		"import_orders":        true,
		"order_lookback_hours": 24,
		"notify_on_zero":       true,
		"stockout_recipient":   "store-owner",
	}
}

// ConfigSchema describes the valid sync config
func (a *ChannelSyncAgent) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"buffer":               map[string]any{"type": "integer", "minimum": 0},
			"import_orders":        map[string]any{"type": "boolean"},
			"order_lookback_hours": map[string]any{"type": "integer", "minimum": 1},
			"notify_on_zero":       map[string]any{"type": "boolean"},
			"stockout_recipient":   map[string]any{"type": "string"},
		},
	}
}

// CanRun requires at least one configured marketplace connection
func (a *ChannelSyncAgent) CanRun(ctx context.Context, sa *agentdomain.StoreAgent) (bool, string) {
	if !sa.Enabled {
		return false, "agent disabled for store"
	}
	if len(a.connectors.ConfiguredConnectors(ctx, sa.TenantID)) == 0 {
		return false, "no marketplace connections configured"
	}
	return true, ""
}

// SubscribedEvents reacts to local inventory adjustments between ticks
func (a *ChannelSyncAgent) SubscribedEvents() []string {
	return []string{agentdomain.EventInventoryAdjusted}
}

// HandleEvent is a no-op that exists so stock adjustments can be observed;
// the heavy lifting stays in scheduled runs to keep pushes batched.
func (a *ChannelSyncAgent) HandleEvent(ctx context.Context, eventType string, payload map[string]any, sa *agentdomain.StoreAgent) error {
	a.logger.Debug("inventory adjustment observed",
		zap.String("tenant_id", sa.TenantID.String()),
		zap.Any("payload", payload),
	)
	return nil
}

// Run diffs listings against sellable stock and proposes batched pushes,
// then imports unseen orders. Marketplace failures stay local to that
// marketplace.
func (a *ChannelSyncAgent) Run(ctx context.Context, run *agentdomain.AgentRun, sa *agentdomain.StoreAgent) (*agentdomain.RunResult, error) {
	cfg := sa.EffectiveConfig(a.DefaultConfig())
	result := agentdomain.NewRunResult()

	all, err := a.listings.FindActiveByTenant(ctx, sa.TenantID)
	if err != nil {
		return nil, fmt.Errorf("loading listings: %w", err)
	}

	byPlatform := make(map[integration.Platform][]integration.Listing)
	for _, listing := range all {
		byPlatform[listing.Platform] = append(byPlatform[listing.Platform], listing)
	}

	buffer := cfg.Int("buffer", 2)
	for platform, listings := range byPlatform {
		a.syncPlatform(ctx, run, sa, cfg, platform, listings, buffer, result)
	}

	if cfg.Bool("import_orders", true) {
		a.importOrders(ctx, run, sa, cfg, result)
	}
	return result, nil
}

// syncPlatform emits at most one batched sync_inventory action for the
// platform, plus discrete stock-out notifications.
func (a *ChannelSyncAgent) syncPlatform(
	ctx context.Context,
	run *agentdomain.AgentRun,
	sa *agentdomain.StoreAgent,
	cfg agentdomain.Config,
	platform integration.Platform,
	listings []integration.Listing,
	buffer int,
	result *agentdomain.RunResult,
) {
	type update struct {
		SKU        string `json:"sku"`
		ExternalID string `json:"external_id"`
		From       int    `json:"from"`
		Quantity   int    `json:"quantity"`
	}
	var updates []update

	for i := range listings {
		listing := &listings[i]
		product, err := a.products.FindByIDForTenant(ctx, sa.TenantID, listing.ProductID)
		if err != nil {
			result.RecordError(fmt.Sprintf("listing %s: product lookup: %v", listing.SKU, err))
			continue
		}
		available := product.Sellable(buffer)
		if available != listing.PlatformQuantity {
			updates = append(updates, update{
				SKU:        listing.SKU,
				ExternalID: listing.ExternalID,
				From:       listing.PlatformQuantity,
				Quantity:   available,
			})
		}
		if available == 0 && listing.PlatformQuantity > 0 && cfg.Bool("notify_on_zero", true) {
			a.proposeStockoutNotice(ctx, run, sa, cfg, product, result)
		}
		result.Processed++
	}

	if len(updates) == 0 {
		return
	}
	payload := map[string]any{
		"platform": string(platform),
		"updates":  updates,
		"count":    len(updates),
		"rationale": fmt.Sprintf("%d of %d %s listings drifted from sellable stock",
			len(updates), len(listings), platform),
	}
	_, created, err := a.proposer.Propose(ctx, run, sa,
		agentdomain.ActionTypeSyncInventory, agentdomain.TargetTypePlatform, string(platform), payload)
	if err != nil {
		result.RecordError(fmt.Sprintf("platform %s: %v", platform, err))
		return
	}
	if created {
		result.ActionsCreated++
	}
}

func (a *ChannelSyncAgent) proposeStockoutNotice(
	ctx context.Context,
	run *agentdomain.AgentRun,
	sa *agentdomain.StoreAgent,
	cfg agentdomain.Config,
	product *catalog.Product,
	result *agentdomain.RunResult,
) {
	payload := map[string]any{
		"channel":   "email",
		"recipient": cfg.String("stockout_recipient", "store-owner"),
		"subject":   fmt.Sprintf("Stock out: %s", product.Name),
		"body":      fmt.Sprintf("%s (%s) just went to zero sellable stock across channels.", product.Name, product.SKU),
		"rationale": "sellable quantity transitioned to zero",
	}
	_, created, err := a.proposer.Propose(ctx, run, sa,
		agentdomain.ActionTypeSendNotification, agentdomain.TargetTypeProduct, product.ID.String(), payload)
	if err != nil {
		result.RecordError(fmt.Sprintf("stockout notice %s: %v", product.SKU, err))
		return
	}
	if created {
		result.ActionsCreated++
	}
}

// importOrders proposes one deduplicated import action per unseen order
func (a *ChannelSyncAgent) importOrders(
	ctx context.Context,
	run *agentdomain.AgentRun,
	sa *agentdomain.StoreAgent,
	cfg agentdomain.Config,
	result *agentdomain.RunResult,
) {
	since := time.Now().Add(-time.Duration(cfg.Int("order_lookback_hours", 24)) * time.Hour)

	for _, connector := range a.connectors.ConfiguredConnectors(ctx, sa.TenantID) {
		orders, err := connector.GetOrders(ctx, sa.TenantID, since)
		if err != nil {
			result.RecordError(fmt.Sprintf("platform %s: pulling orders: %v", connector.Platform(), err))
			continue
		}
		for _, order := range orders {
			seen, err := a.imported.Exists(ctx, sa.TenantID, order.Platform, order.ExternalID)
			if err != nil {
				result.RecordError(fmt.Sprintf("order %s: dedup check: %v", order.ExternalID, err))
				continue
			}
			if seen {
				continue
			}

			payload := map[string]any{
				"platform":  string(order.Platform),
				"order":     orderPayload(order),
				"rationale": fmt.Sprintf("order %s on %s not yet imported", order.ExternalID, order.Platform),
			}
			targetID := fmt.Sprintf("%s:%s", order.Platform, order.ExternalID)
			_, created, err := a.proposer.Propose(ctx, run, sa,
				agentdomain.ActionTypeImportOrder, agentdomain.TargetTypeExternalOrder, targetID, payload)
			if err != nil {
				result.RecordError(fmt.Sprintf("order %s: %v", order.ExternalID, err))
				continue
			}
			if created {
				result.ActionsCreated++
			}
			result.Processed++
		}
	}
}

func orderPayload(order integration.ExternalOrder) map[string]any {
	lines := make([]map[string]any, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, map[string]any{
			"sku":        line.SKU,
			"title":      line.Title,
			"quantity":   line.Quantity,
			"unit_price": line.UnitPrice.InexactFloat64(),
		})
	}
	return map[string]any{
		"external_id": order.ExternalID,
		"buyer":       order.Buyer,
		"total":       order.Total.InexactFloat64(),
		"currency":    order.Currency,
		"placed_at":   order.PlacedAt.Format(time.RFC3339),
		"lines":       lines,
	}
}
