// Package actions contains the built-in action handlers: the only code
// that performs the side effects agents propose. Every handler captures
// the before state in its result so rollback-capable actions can
// compensate later.
package actions

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// PriceUpdateHandler applies a proposed base price change to the catalog.
type PriceUpdateHandler struct {
	products catalog.ProductRepository
	logger   *zap.Logger
}

// NewPriceUpdateHandler creates the price update handler
func NewPriceUpdateHandler(products catalog.ProductRepository, logger *zap.Logger) *PriceUpdateHandler {
	return &PriceUpdateHandler{products: products, logger: logger}
}

// Type returns the action type this handler executes
func (h *PriceUpdateHandler) Type() string {
	return agentdomain.ActionTypeUpdatePrice
}

// RequiresApproval forces sign-off when the store demands it or the
// suggested price crosses the proposing agent's approval threshold
func (h *PriceUpdateHandler) RequiresApproval(sa *agentdomain.StoreAgent, payload map[string]any) bool {
	if sa.RequiresApproval {
		return true
	}
	after, okAfter := floatField(payload, "after")
	threshold, okThreshold := floatField(payload, "approval_threshold")
	return okAfter && okThreshold && after > threshold
}

// ValidatePayload checks the payload shape before execution
func (h *PriceUpdateHandler) ValidatePayload(payload map[string]any) error {
	if s, _ := payload["sku"].(string); s == "" {
		return fmt.Errorf("%w: sku is required", shared.ErrInvalidInput)
	}
	after, ok := floatField(payload, "after")
	if !ok || after <= 0 {
		return fmt.Errorf("%w: after must be a positive price", shared.ErrInvalidInput)
	}
	return nil
}

// Execute sets the product's price and records the previous price for
// compensation
func (h *PriceUpdateHandler) Execute(ctx context.Context, action *agentdomain.AgentAction) (*agentdomain.ActionResult, error) {
	payload := action.PayloadMap()
	sku := payload["sku"].(string)
	after, _ := floatField(payload, "after")

	product, err := h.products.FindBySKU(ctx, action.TenantID, sku)
	if err != nil {
		return nil, fmt.Errorf("loading product %s: %w", sku, err)
	}
	before := product.Price

	if err := product.SetPrice(decimal.NewFromFloat(after)); err != nil {
		return nil, err
	}
	if err := h.products.Save(ctx, product); err != nil {
		return nil, fmt.Errorf("persisting price change: %w", err)
	}

	h.logger.Info("price updated",
		zap.String("sku", sku),
		zap.String("before", before.StringFixed(2)),
		zap.Float64("after", after),
	)
	return &agentdomain.ActionResult{
		Success: true,
		Message: fmt.Sprintf("price changed from %s to %.2f", before.StringFixed(2), after),
		Data: map[string]any{
			"sku":    sku,
			"before": before.InexactFloat64(),
			"after":  after,
		},
	}, nil
}

// Rollback restores the price captured during Execute
func (h *PriceUpdateHandler) Rollback(ctx context.Context, action *agentdomain.AgentAction) error {
	result := action.ResultData()
	sku, _ := result.Data["sku"].(string)
	before, ok := floatField(result.Data, "before")
	if sku == "" || !ok {
		return fmt.Errorf("%w: executed result carries no before price", shared.ErrInvalidInput)
	}

	product, err := h.products.FindBySKU(ctx, action.TenantID, sku)
	if err != nil {
		return fmt.Errorf("loading product %s: %w", sku, err)
	}
	if err := product.SetPrice(decimal.NewFromFloat(before)); err != nil {
		return err
	}
	return h.products.Save(ctx, product)
}

// floatField reads a numeric payload field. JSON round-trips hand every
// number back as float64, but freshly built payloads may still carry ints.
func floatField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case decimal.Decimal:
		return v.InexactFloat64(), true
	default:
		return 0, false
	}
}
