package actions

import (
	"context"
	"errors"
	"fmt"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/integration"
	"github.com/storeops/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SyncInventoryHandler pushes a batched quantity update to one marketplace
// and mirrors the per-sku outcome locally. A partially failed push is still
// an executed action: the result records which skus went through and which
// did not, and only a total failure fails the action.
type SyncInventoryHandler struct {
	listings   integration.ListingRepository
	connectors integration.ConnectorRegistry
	logger     *zap.Logger
}

// NewSyncInventoryHandler creates the inventory sync handler
func NewSyncInventoryHandler(listings integration.ListingRepository, connectors integration.ConnectorRegistry, logger *zap.Logger) *SyncInventoryHandler {
	return &SyncInventoryHandler{listings: listings, connectors: connectors, logger: logger}
}

// Type returns the action type this handler executes
func (h *SyncInventoryHandler) Type() string {
	return agentdomain.ActionTypeSyncInventory
}

// RequiresApproval leaves quantity pushes to store policy alone
func (h *SyncInventoryHandler) RequiresApproval(sa *agentdomain.StoreAgent, payload map[string]any) bool {
	return sa.RequiresApproval
}

// ValidatePayload checks the payload shape before execution
func (h *SyncInventoryHandler) ValidatePayload(payload map[string]any) error {
	platform := integration.Platform(stringField(payload, "platform"))
	if !platform.IsValid() {
		return fmt.Errorf("%w: unknown platform %q", shared.ErrInvalidInput, payload["platform"])
	}
	if len(updateEntries(payload)) == 0 {
		return fmt.Errorf("%w: updates cannot be empty", shared.ErrInvalidInput)
	}
	return nil
}

// Execute pushes the batch and updates the local mirrors for every sku the
// platform accepted
func (h *SyncInventoryHandler) Execute(ctx context.Context, action *agentdomain.AgentAction) (*agentdomain.ActionResult, error) {
	payload := action.PayloadMap()
	platform := integration.Platform(stringField(payload, "platform"))

	connector, err := h.connectors.Connector(platform)
	if err != nil {
		return nil, err
	}

	updates := updateEntries(payload)
	outcomes, err := connector.BulkUpdateInventory(ctx, action.TenantID, updates)
	if err != nil {
		return nil, fmt.Errorf("bulk update on %s: %w", platform, err)
	}

	succeeded, failed := 0, 0
	perSKU := make(map[string]any, len(outcomes))
	for _, update := range updates {
		outcome := outcomes[update.SKU]
		perSKU[update.SKU] = map[string]any{"success": outcome.Success, "message": outcome.Message}
		if !outcome.Success {
			failed++
			continue
		}
		succeeded++
		h.recordSync(ctx, action, platform, update)
	}

	if succeeded == 0 && failed > 0 {
		return nil, fmt.Errorf("all %d updates rejected by %s", failed, platform)
	}
	// A partial push still executed: the per-sku map carries the failures
	return &agentdomain.ActionResult{
		Success: true,
		Message: fmt.Sprintf("%d successful, %d failed", succeeded, failed),
		Data: map[string]any{
			"platform": string(platform),
			"results":  perSKU,
		},
	}, nil
}

// recordSync moves the local mirror to the quantity the platform accepted
func (h *SyncInventoryHandler) recordSync(ctx context.Context, action *agentdomain.AgentAction, platform integration.Platform, update integration.InventoryUpdate) {
	listing, err := h.listings.FindByExternalID(ctx, action.TenantID, platform, update.ExternalID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Warn("could not load listing mirror after sync",
				zap.String("sku", update.SKU), zap.Error(err))
		}
		return
	}
	listing.RecordSync(listing.PlatformPrice, update.Quantity)
	if err := h.listings.Save(ctx, listing); err != nil {
		h.logger.Warn("could not persist listing mirror after sync",
			zap.String("sku", update.SKU), zap.Error(err))
	}
}

// updateEntries decodes the payload's updates list. Entries come back from
// jsonb as []any of maps.
func updateEntries(payload map[string]any) []integration.InventoryUpdate {
	raw, _ := payload["updates"].([]any)
	out := make([]integration.InventoryUpdate, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		qty, ok := floatField(m, "quantity")
		if !ok {
			continue
		}
		out = append(out, integration.InventoryUpdate{
			SKU:        stringField(m, "sku"),
			ExternalID: stringField(m, "external_id"),
			Quantity:   int(qty),
		})
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
