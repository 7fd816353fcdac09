package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/integration"
	"github.com/storeops/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ImportOrderHandler materializes an external order locally: it adjusts
// on-hand quantities for the order's lines and writes the dedup record
// that keeps the same order from ever being imported twice.
type ImportOrderHandler struct {
	products catalog.ProductRepository
	imported integration.ImportedOrderRepository
	logger   *zap.Logger
}

// NewImportOrderHandler creates the order import handler
func NewImportOrderHandler(products catalog.ProductRepository, imported integration.ImportedOrderRepository, logger *zap.Logger) *ImportOrderHandler {
	return &ImportOrderHandler{products: products, imported: imported, logger: logger}
}

// Type returns the action type this handler executes
func (h *ImportOrderHandler) Type() string {
	return agentdomain.ActionTypeImportOrder
}

// RequiresApproval leaves order imports to store policy alone
func (h *ImportOrderHandler) RequiresApproval(sa *agentdomain.StoreAgent, payload map[string]any) bool {
	return sa.RequiresApproval
}

// ValidatePayload checks the payload shape before execution
func (h *ImportOrderHandler) ValidatePayload(payload map[string]any) error {
	if !integration.Platform(stringField(payload, "platform")).IsValid() {
		return fmt.Errorf("%w: unknown platform %q", shared.ErrInvalidInput, payload["platform"])
	}
	order, _ := payload["order"].(map[string]any)
	if stringField(order, "external_id") == "" {
		return fmt.Errorf("%w: order external_id is required", shared.ErrInvalidInput)
	}
	return nil
}

// Execute decrements stock per line and records the import. Already-seen
// orders succeed without effect so a stale proposal can never double-book.
func (h *ImportOrderHandler) Execute(ctx context.Context, action *agentdomain.AgentAction) (*agentdomain.ActionResult, error) {
	payload := action.PayloadMap()
	order := orderFromPayload(payload)

	seen, err := h.imported.Exists(ctx, action.TenantID, order.Platform, order.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("dedup check: %w", err)
	}
	if seen {
		return &agentdomain.ActionResult{
			Success: true,
			Message: fmt.Sprintf("order %s already imported", order.ExternalID),
		}, nil
	}

	adjusted, missing := 0, 0
	for _, line := range order.Lines {
		product, err := h.products.FindBySKU(ctx, action.TenantID, line.SKU)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				missing++
				continue
			}
			return nil, fmt.Errorf("loading product %s: %w", line.SKU, err)
		}
		remaining := product.QuantityOnHand - line.Quantity
		if remaining < 0 {
			remaining = 0
		}
		if err := product.SetQuantity(remaining); err != nil {
			return nil, err
		}
		product.MarkSold(order.PlacedAt)
		if err := h.products.Save(ctx, product); err != nil {
			return nil, fmt.Errorf("adjusting stock for %s: %w", line.SKU, err)
		}
		adjusted++
	}

	if err := h.imported.Save(ctx, integration.NewImportedOrderRecord(action.TenantID, order)); err != nil {
		return nil, fmt.Errorf("recording import: %w", err)
	}

	h.logger.Info("external order imported",
		zap.String("platform", string(order.Platform)),
		zap.String("external_id", order.ExternalID),
		zap.Int("lines_adjusted", adjusted),
		zap.Int("lines_unmatched", missing),
	)
	return &agentdomain.ActionResult{
		Success: true,
		Message: fmt.Sprintf("imported order %s, %d lines adjusted, %d unmatched", order.ExternalID, adjusted, missing),
		Data: map[string]any{
			"external_id":     order.ExternalID,
			"platform":        string(order.Platform),
			"lines_adjusted":  adjusted,
			"lines_unmatched": missing,
		},
	}, nil
}

// orderFromPayload decodes the nested order object of a payload
func orderFromPayload(payload map[string]any) integration.ExternalOrder {
	raw, _ := payload["order"].(map[string]any)
	order := integration.ExternalOrder{
		ExternalID: stringField(raw, "external_id"),
		Platform:   integration.Platform(stringField(payload, "platform")),
		Buyer:      stringField(raw, "buyer"),
		Currency:   stringField(raw, "currency"),
	}
	if total, ok := floatField(raw, "total"); ok {
		order.Total = decimal.NewFromFloat(total)
	}
	if placed, err := time.Parse(time.RFC3339, stringField(raw, "placed_at")); err == nil {
		order.PlacedAt = placed
	} else {
		order.PlacedAt = time.Now()
	}
	if lines, ok := raw["lines"].([]any); ok {
		for _, entry := range lines {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			line := integration.ExternalOrderLine{
				SKU:   stringField(m, "sku"),
				Title: stringField(m, "title"),
			}
			if qty, ok := floatField(m, "quantity"); ok {
				line.Quantity = int(qty)
			}
			if unit, ok := floatField(m, "unit_price"); ok {
				line.UnitPrice = decimal.NewFromFloat(unit)
			}
			order.Lines = append(order.Lines, line)
		}
	}
	return order
}
