package integration

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNoMarketData indicates the search returned no comparable results
var ErrNoMarketData = errors.New("integration: no market data for criteria")

// SearchCriteria narrows a market price search
type SearchCriteria struct {
	Query     string `json:"query"`
	Category  string `json:"category,omitempty"`
	Condition string `json:"condition,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// MarketSummary aggregates comparable market prices
type MarketSummary struct {
	Min    decimal.Decimal `json:"min"`
	Max    decimal.Decimal `json:"max"`
	Median decimal.Decimal `json:"median"`
	Count  int             `json:"count"`
}

// PriceIntelligence is the port for market price search.
// Calls are blocking I/O with bounded timeouts and may fail; agents treat a
// failure as a per-entity error, never a run abort.
type PriceIntelligence interface {
	SearchPrices(ctx context.Context, tenantID uuid.UUID, criteria SearchCriteria) (*MarketSummary, error)
}
