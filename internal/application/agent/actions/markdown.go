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

// MarkdownHandler applies a dead-stock markdown to the catalog price.
// Markdowns always need sign-off regardless of store policy.
type MarkdownHandler struct {
	products catalog.ProductRepository
	logger   *zap.Logger
}

// NewMarkdownHandler creates the markdown handler
func NewMarkdownHandler(products catalog.ProductRepository, logger *zap.Logger) *MarkdownHandler {
	return &MarkdownHandler{products: products, logger: logger}
}

// Type returns the action type this handler executes
func (h *MarkdownHandler) Type() string {
	return agentdomain.ActionTypeScheduleMarkdown
}

// RequiresApproval always demands sign-off for markdowns
func (h *MarkdownHandler) RequiresApproval(sa *agentdomain.StoreAgent, payload map[string]any) bool {
	return true
}

// ValidatePayload checks the payload shape before execution
func (h *MarkdownHandler) ValidatePayload(payload map[string]any) error {
	if s, _ := payload["sku"].(string); s == "" {
		return fmt.Errorf("%w: sku is required", shared.ErrInvalidInput)
	}
	after, ok := floatField(payload, "after")
	if !ok || after <= 0 {
		return fmt.Errorf("%w: after must be a positive price", shared.ErrInvalidInput)
	}
	return nil
}

// Execute lowers the product price to the marked-down value
func (h *MarkdownHandler) Execute(ctx context.Context, action *agentdomain.AgentAction) (*agentdomain.ActionResult, error) {
	payload := action.PayloadMap()
	sku := payload["sku"].(string)
	after, _ := floatField(payload, "after")

	product, err := h.products.FindBySKU(ctx, action.TenantID, sku)
	if err != nil {
		return nil, fmt.Errorf("loading product %s: %w", sku, err)
	}
	before := product.Price

	target := decimal.NewFromFloat(after)
	if !target.LessThan(before) {
		return nil, fmt.Errorf("%w: markdown %s is not below current price %s",
			shared.ErrInvalidInput, target.StringFixed(2), before.StringFixed(2))
	}
	if err := product.SetPrice(target); err != nil {
		return nil, err
	}
	if err := h.products.Save(ctx, product); err != nil {
		return nil, fmt.Errorf("persisting markdown: %w", err)
	}

	h.logger.Info("markdown applied",
		zap.String("sku", sku),
		zap.String("before", before.StringFixed(2)),
		zap.Float64("after", after),
	)
	return &agentdomain.ActionResult{
		Success: true,
		Message: fmt.Sprintf("marked down from %s to %.2f", before.StringFixed(2), after),
		Data: map[string]any{
			"sku":    sku,
			"before": before.InexactFloat64(),
			"after":  after,
		},
	}, nil
}

// Rollback restores the pre-markdown price
func (h *MarkdownHandler) Rollback(ctx context.Context, action *agentdomain.AgentAction) error {
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
