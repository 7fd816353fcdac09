package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/integration"
	"github.com/storeops/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// CreateListingHandler publishes a product to a marketplace and records
// the local mirror. Publishing puts inventory in front of buyers, so it
// always needs sign-off.
type CreateListingHandler struct {
	listings   integration.ListingRepository
	connectors integration.ConnectorRegistry
	logger     *zap.Logger
}

// NewCreateListingHandler creates the listing creation handler
func NewCreateListingHandler(listings integration.ListingRepository, connectors integration.ConnectorRegistry, logger *zap.Logger) *CreateListingHandler {
	return &CreateListingHandler{listings: listings, connectors: connectors, logger: logger}
}

// Type returns the action type this handler executes
func (h *CreateListingHandler) Type() string {
	return agentdomain.ActionTypeCreateListing
}

// RequiresApproval always demands sign-off for new listings
func (h *CreateListingHandler) RequiresApproval(sa *agentdomain.StoreAgent, payload map[string]any) bool {
	return true
}

// ValidatePayload checks the payload shape before execution
func (h *CreateListingHandler) ValidatePayload(payload map[string]any) error {
	if !integration.Platform(stringField(payload, "platform")).IsValid() {
		return fmt.Errorf("%w: unknown platform %q", shared.ErrInvalidInput, payload["platform"])
	}
	dto := listingFromPayload(payload)
	if dto.SKU == "" || dto.Title == "" {
		return fmt.Errorf("%w: listing needs sku and title", shared.ErrInvalidInput)
	}
	if !dto.Price.IsPositive() {
		return fmt.Errorf("%w: listing price must be positive", shared.ErrInvalidInput)
	}
	return nil
}

// Execute creates the platform listing and mirrors it locally
func (h *CreateListingHandler) Execute(ctx context.Context, action *agentdomain.AgentAction) (*agentdomain.ActionResult, error) {
	payload := action.PayloadMap()
	platform := integration.Platform(stringField(payload, "platform"))
	dto := listingFromPayload(payload)

	connector, err := h.connectors.Connector(platform)
	if err != nil {
		return nil, err
	}
	externalID, err := connector.CreateProduct(ctx, action.TenantID, dto)
	if err != nil {
		return nil, fmt.Errorf("creating listing on %s: %w", platform, err)
	}

	// the target id is "<product uuid>:<platform>"
	productID := strings.SplitN(action.TargetID, ":", 2)[0]
	mirror := integration.NewListing(action.TenantID, parseUUID(productID), platform, externalID, dto.SKU)
	mirror.RecordSync(dto.Price, dto.Quantity)
	if err := h.listings.Save(ctx, mirror); err != nil {
		return nil, fmt.Errorf("persisting listing mirror: %w", err)
	}

	h.logger.Info("listing created",
		zap.String("platform", string(platform)),
		zap.String("sku", dto.SKU),
		zap.String("external_id", externalID),
	)
	return &agentdomain.ActionResult{
		Success: true,
		Message: fmt.Sprintf("listed %s on %s as %s", dto.SKU, platform, externalID),
		Data: map[string]any{
			"platform":    string(platform),
			"external_id": externalID,
			"sku":         dto.SKU,
		},
	}, nil
}

// UpdateListingHandler pushes listing content changes to a marketplace.
type UpdateListingHandler struct {
	listings   integration.ListingRepository
	connectors integration.ConnectorRegistry
	logger     *zap.Logger
}

// NewUpdateListingHandler creates the listing update handler
func NewUpdateListingHandler(listings integration.ListingRepository, connectors integration.ConnectorRegistry, logger *zap.Logger) *UpdateListingHandler {
	return &UpdateListingHandler{listings: listings, connectors: connectors, logger: logger}
}

// Type returns the action type this handler executes
func (h *UpdateListingHandler) Type() string {
	return agentdomain.ActionTypeUpdateListing
}

// RequiresApproval leaves listing refreshes to store policy alone
func (h *UpdateListingHandler) RequiresApproval(sa *agentdomain.StoreAgent, payload map[string]any) bool {
	return sa.RequiresApproval
}

// ValidatePayload checks the payload shape before execution
func (h *UpdateListingHandler) ValidatePayload(payload map[string]any) error {
	if !integration.Platform(stringField(payload, "platform")).IsValid() {
		return fmt.Errorf("%w: unknown platform %q", shared.ErrInvalidInput, payload["platform"])
	}
	if stringField(payload, "external_id") == "" {
		return fmt.Errorf("%w: external_id is required", shared.ErrInvalidInput)
	}
	if listingFromPayload(payload).SKU == "" {
		return fmt.Errorf("%w: listing needs a sku", shared.ErrInvalidInput)
	}
	return nil
}

// Execute updates the platform listing and the local mirror
func (h *UpdateListingHandler) Execute(ctx context.Context, action *agentdomain.AgentAction) (*agentdomain.ActionResult, error) {
	payload := action.PayloadMap()
	platform := integration.Platform(stringField(payload, "platform"))
	externalID := stringField(payload, "external_id")
	dto := listingFromPayload(payload)

	connector, err := h.connectors.Connector(platform)
	if err != nil {
		return nil, err
	}
	if err := connector.UpdateProduct(ctx, action.TenantID, externalID, dto); err != nil {
		return nil, fmt.Errorf("updating listing on %s: %w", platform, err)
	}

	if listing, err := h.listings.FindByExternalID(ctx, action.TenantID, platform, externalID); err == nil {
		listing.RecordSync(dto.Price, dto.Quantity)
		if err := h.listings.Save(ctx, listing); err != nil {
			h.logger.Warn("could not persist listing mirror after update",
				zap.String("sku", dto.SKU), zap.Error(err))
		}
	}

	return &agentdomain.ActionResult{
		Success: true,
		Message: fmt.Sprintf("updated %s on %s", dto.SKU, platform),
		Data: map[string]any{
			"platform":    string(platform),
			"external_id": externalID,
			"sku":         dto.SKU,
		},
	}, nil
}

func parseUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// listingFromPayload decodes the nested listing object of a payload
func listingFromPayload(payload map[string]any) integration.ListingDTO {
	raw, _ := payload["listing"].(map[string]any)
	dto := integration.ListingDTO{
		SKU:         stringField(raw, "sku"),
		Title:       stringField(raw, "title"),
		Description: stringField(raw, "description"),
		Category:    stringField(raw, "category"),
	}
	if price, ok := floatField(raw, "price"); ok {
		dto.Price = decimal.NewFromFloat(price)
	}
	if qty, ok := floatField(raw, "quantity"); ok {
		dto.Quantity = int(qty)
	}
	if urls, ok := raw["image_urls"].([]any); ok {
		for _, u := range urls {
			if s, ok := u.(string); ok {
				dto.ImageURLs = append(dto.ImageURLs, s)
			}
		}
	}
	if attrs, ok := raw["attributes"].(map[string]any); ok {
		dto.Attributes = attrs
	}
	return dto
}
