package actions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/integration"
	"github.com/storeops/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// RepriceHandler pushes a listing price change to its marketplace and
// mirrors it locally.
type RepriceHandler struct {
	listings   integration.ListingRepository
	connectors integration.ConnectorRegistry
	logger     *zap.Logger
}

// NewRepriceHandler creates the listing reprice handler
func NewRepriceHandler(listings integration.ListingRepository, connectors integration.ConnectorRegistry, logger *zap.Logger) *RepriceHandler {
	return &RepriceHandler{listings: listings, connectors: connectors, logger: logger}
}

// Type returns the action type this handler executes
func (h *RepriceHandler) Type() string {
	return agentdomain.ActionTypeRepriceListing
}

// RequiresApproval forces sign-off when the proposing agent flagged the
// change as major, on top of store policy
func (h *RepriceHandler) RequiresApproval(sa *agentdomain.StoreAgent, payload map[string]any) bool {
	if sa.RequiresApproval {
		return true
	}
	forced, _ := payload["force_approval"].(bool)
	return forced
}

// ValidatePayload checks the payload shape before execution
func (h *RepriceHandler) ValidatePayload(payload map[string]any) error {
	if !integration.Platform(stringField(payload, "platform")).IsValid() {
		return fmt.Errorf("%w: unknown platform %q", shared.ErrInvalidInput, payload["platform"])
	}
	if stringField(payload, "external_id") == "" {
		return fmt.Errorf("%w: external_id is required", shared.ErrInvalidInput)
	}
	after, ok := floatField(payload, "after")
	if !ok || after <= 0 {
		return fmt.Errorf("%w: after must be a positive price", shared.ErrInvalidInput)
	}
	return nil
}

// Execute updates the platform listing price and the local mirror
func (h *RepriceHandler) Execute(ctx context.Context, action *agentdomain.AgentAction) (*agentdomain.ActionResult, error) {
	payload := action.PayloadMap()
	platform := integration.Platform(stringField(payload, "platform"))
	externalID := stringField(payload, "external_id")
	after, _ := floatField(payload, "after")

	listing, err := h.loadListing(ctx, action, platform, externalID)
	if err != nil {
		return nil, err
	}
	before := listing.PlatformPrice
	target := decimal.NewFromFloat(after)

	connector, err := h.connectors.Connector(platform)
	if err != nil {
		return nil, err
	}
	if err := connector.UpdateProduct(ctx, action.TenantID, externalID, integration.ListingDTO{
		SKU:      listing.SKU,
		Price:    target,
		Quantity: listing.PlatformQuantity,
	}); err != nil {
		return nil, fmt.Errorf("repricing on %s: %w", platform, err)
	}

	listing.RecordSync(target, listing.PlatformQuantity)
	if err := h.listings.Save(ctx, listing); err != nil {
		return nil, fmt.Errorf("persisting listing mirror: %w", err)
	}

	h.logger.Info("listing repriced",
		zap.String("platform", string(platform)),
		zap.String("sku", listing.SKU),
		zap.String("before", before.StringFixed(2)),
		zap.Float64("after", after),
	)
	return &agentdomain.ActionResult{
		Success: true,
		Message: fmt.Sprintf("%s price changed from %s to %.2f", platform, before.StringFixed(2), after),
		Data: map[string]any{
			"platform":    string(platform),
			"external_id": externalID,
			"sku":         listing.SKU,
			"before":      before.InexactFloat64(),
			"after":       after,
		},
	}, nil
}

// Rollback pushes the pre-change price back to the platform
func (h *RepriceHandler) Rollback(ctx context.Context, action *agentdomain.AgentAction) error {
	result := action.ResultData()
	platform := integration.Platform(stringField(result.Data, "platform"))
	externalID := stringField(result.Data, "external_id")
	before, ok := floatField(result.Data, "before")
	if externalID == "" || !ok {
		return fmt.Errorf("%w: executed result carries no before price", shared.ErrInvalidInput)
	}

	listing, err := h.loadListing(ctx, action, platform, externalID)
	if err != nil {
		return err
	}
	connector, err := h.connectors.Connector(platform)
	if err != nil {
		return err
	}
	target := decimal.NewFromFloat(before)
	if err := connector.UpdateProduct(ctx, action.TenantID, externalID, integration.ListingDTO{
		SKU:      listing.SKU,
		Price:    target,
		Quantity: listing.PlatformQuantity,
	}); err != nil {
		return fmt.Errorf("rolling back price on %s: %w", platform, err)
	}
	listing.RecordSync(target, listing.PlatformQuantity)
	return h.listings.Save(ctx, listing)
}

func (h *RepriceHandler) loadListing(ctx context.Context, action *agentdomain.AgentAction, platform integration.Platform, externalID string) (*integration.Listing, error) {
	// actions proposed against a listing target carry the listing id;
	// fall back to the platform external id
	if id, err := uuid.Parse(action.TargetID); err == nil {
		if listing, err := h.listings.FindByID(ctx, id); err == nil {
			return listing, nil
		}
	}
	listing, err := h.listings.FindByExternalID(ctx, action.TenantID, platform, externalID)
	if err != nil {
		return nil, fmt.Errorf("loading listing %s on %s: %w", externalID, platform, err)
	}
	return listing, nil
}
