package agents

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	appagent "github.com/storeops/backend/internal/application/agent"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/catalog"
	"github.com/storeops/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// SalesIntelligenceAgent is a read-only aggregation over a bounded window:
// revenue and unit KPIs, top and bottom performers, and decline alerts when
// revenue falls more than a threshold against the previous window. When a
// text generator is wired it adds a natural-language narrative and
// tolerates its failure by leaving the narrative empty.
type SalesIntelligenceAgent struct {
	base
	products catalog.ProductRepository
	texter   integration.TextGenerator
	proposer *appagent.Proposer
	logger   *zap.Logger
}

// NewSalesIntelligenceAgent creates the sales intelligence agent
func NewSalesIntelligenceAgent(
	products catalog.ProductRepository,
	texter integration.TextGenerator,
	proposer *appagent.Proposer,
	logger *zap.Logger,
) *SalesIntelligenceAgent {
	return &SalesIntelligenceAgent{
		base:     base{slug: "sales_intelligence", name: "Sales Intelligence", typ: agentdomain.AgentTypeProactive},
		products: products,
		texter:   texter,
		proposer: proposer,
		logger:   logger,
	}
}

// DefaultConfig returns the built-in reporting policy
func (a *SalesIntelligenceAgent) DefaultConfig() map[string]any {
	return map[string]any{
		"window_days":       30,
		"top_n":             5,
		"decline_alert_pct": 20.0,
		"narrative":         true,
		"report_recipient":  "",
	}
}

// ConfigSchema describes the valid reporting config
func (a *SalesIntelligenceAgent) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"window_days":       map[string]any{"type": "integer", "minimum": 1},
			"top_n":             map[string]any{"type": "integer", "minimum": 1},
			"decline_alert_pct": map[string]any{"type": "number", "minimum": 0},
			"narrative":         map[string]any{"type": "boolean"},
			"report_recipient":  map[string]any{"type": "string"},
		},
	}
}

// CanRun only requires enablement; the agent is read-only
func (a *SalesIntelligenceAgent) CanRun(ctx context.Context, sa *agentdomain.StoreAgent) (bool, string) {
	if !sa.Enabled {
		return false, "agent disabled for store"
	}
	return true, ""
}

// SubscribedEvents lets each sale refresh the picture between ticks
func (a *SalesIntelligenceAgent) SubscribedEvents() []string {
	return []string{agentdomain.EventOrderCreated}
}

// Run aggregates the window, compares to the previous window, optionally
// asks the text generator for a narrative, and proposes a digest
// notification when a recipient is configured.
func (a *SalesIntelligenceAgent) Run(ctx context.Context, run *agentdomain.AgentRun, sa *agentdomain.StoreAgent) (*agentdomain.RunResult, error) {
	cfg := sa.EffectiveConfig(a.DefaultConfig())
	result := agentdomain.NewRunResult()

	windowDays := cfg.Int("window_days", 30)
	now := time.Now()
	from := now.AddDate(0, 0, -windowDays)

	current, err := a.products.SalesTotals(ctx, sa.TenantID, from, now)
	if err != nil {
		return nil, fmt.Errorf("aggregating sales window: %w", err)
	}
	previous, err := a.products.SalesTotals(ctx, sa.TenantID, from.AddDate(0, 0, -windowDays), from)
	if err != nil {
		return nil, fmt.Errorf("aggregating comparison window: %w", err)
	}

	report := buildReport(current, previous, windowDays, cfg)
	result.Processed = len(current)

	if cfg.Bool("narrative", true) && a.texter != nil {
		report["narrative"] = a.narrative(ctx, report)
	}
	result.Data = report

	if recipient := cfg.String("report_recipient", ""); recipient != "" {
		body, _ := report["narrative"].(string)
		if body == "" {
			body = fmt.Sprintf("Revenue %.2f over the last %d days across %d products.",
				report["total_revenue"], windowDays, len(current))
		}
		payload := map[string]any{
			"channel":   "email",
			"recipient": recipient,
			"subject":   fmt.Sprintf("Sales digest, last %d days", windowDays),
			"body":      body,
			"report":    report,
			"rationale": "scheduled sales intelligence digest",
		}
		_, created, err := a.proposer.Propose(ctx, run, sa,
			agentdomain.ActionTypeSendNotification, agentdomain.TargetTypeCustomer, recipient, payload)
		if err != nil {
			result.RecordError(fmt.Sprintf("digest notification: %v", err))
		} else if created {
			result.ActionsCreated++
		}
	}
	return result, nil
}

// narrative asks the text generator for a short summary; failure degrades
// to an empty string, never to a run error
func (a *SalesIntelligenceAgent) narrative(ctx context.Context, report map[string]any) string {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
		},
		"required": []any{"summary"},
	}
	prompt := fmt.Sprintf(
		"Summarize this retail sales report for a store owner in three sentences. Report: %v", report)

	out, err := a.texter.GenerateJSON(ctx, prompt, schema)
	if err != nil {
		a.logger.Warn("narrative generation failed, continuing without it", zap.Error(err))
		return ""
	}
	if summary, ok := out["summary"].(string); ok {
		return summary
	}
	return ""
}

func buildReport(current, previous []catalog.ProductSales, windowDays int, cfg agentdomain.Config) map[string]any {
	totalRevenue := decimal.Zero
	totalUnits := 0
	for _, row := range current {
		totalRevenue = totalRevenue.Add(row.Revenue)
		totalUnits += row.UnitsSold
	}
	prevRevenue := decimal.Zero
	for _, row := range previous {
		prevRevenue = prevRevenue.Add(row.Revenue)
	}

	sorted := make([]catalog.ProductSales, len(current))
	copy(sorted, current)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Revenue.GreaterThan(sorted[j].Revenue) })

	topN := cfg.Int("top_n", 5)
	top := sorted
	if len(top) > topN {
		top = top[:topN]
	}
	bottom := sorted
	if len(sorted) > topN {
		bottom = sorted[len(sorted)-topN:]
	}

	report := map[string]any{
		"window_days":   windowDays,
		"total_revenue": totalRevenue.InexactFloat64(),
		"total_units":   totalUnits,
		"prev_revenue":  prevRevenue.InexactFloat64(),
		"top":           salesRows(top),
		"bottom":        salesRows(bottom),
	}

	if prevRevenue.IsPositive() {
		declinePct := prevRevenue.Sub(totalRevenue).Div(prevRevenue).Mul(decimal.NewFromInt(100))
		report["revenue_change_pct"] = declinePct.Neg().InexactFloat64()
		if declinePct.GreaterThan(cfg.Decimal("decline_alert_pct", decimal.NewFromInt(20))) {
			report["decline_alert"] = fmt.Sprintf("revenue down %s%% against the previous %d days",
				declinePct.StringFixed(1), windowDays)
		}
	}
	return report
}

func salesRows(rows []catalog.ProductSales) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]any{
			"sku":        row.SKU,
			"name":       row.Name,
			"units_sold": row.UnitsSold,
			"revenue":    row.Revenue.InexactFloat64(),
		})
	}
	return out
}
