package pricesearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storeops/backend/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from the search API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Errors for the price search client
var (
	ErrMissingBaseURL = errors.New("pricesearch: base url is required")
	ErrSearchFailed   = errors.New("pricesearch: search request failed")
)

// Config holds settings for the market price search service
type Config struct {
	BaseURL string
	APIKey  string
	// TimeoutSeconds bounds one search call
	TimeoutSeconds int
}

// Client implements PriceIntelligence against an HTTP comparable-price
// search service
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a price search client from config
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	timeout := 15 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// searchResponse is the wire shape of one search result
type searchResponse struct {
	Results []struct {
		Price string `json:"price"`
	} `json:"results"`
	Summary *struct {
		Min    string `json:"min"`
		Max    string `json:"max"`
		Median string `json:"median"`
		Count  int    `json:"count"`
	} `json:"summary"`
}

// SearchPrices queries comparable listings and returns an aggregate summary.
// When the service reports its own summary that is used directly; otherwise
// the summary is computed from the returned prices.
func (c *Client) SearchPrices(ctx context.Context, tenantID uuid.UUID, criteria integration.SearchCriteria) (*integration.MarketSummary, error) {
	query := url.Values{}
	query.Set("q", criteria.Query)
	if criteria.Category != "" {
		query.Set("category", criteria.Category)
	}
	if criteria.Condition != "" {
		query.Set("condition", criteria.Condition)
	}
	if criteria.Limit > 0 {
		query.Set("limit", strconv.Itoa(criteria.Limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/prices/search?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("pricesearch: failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("X-Tenant-ID", tenantID.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("pricesearch: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrSearchFailed, resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("pricesearch: failed to parse response: %w", err)
	}

	if parsed.Summary != nil && parsed.Summary.Count > 0 {
		return &integration.MarketSummary{
			Min:    mustDecimal(parsed.Summary.Min),
			Max:    mustDecimal(parsed.Summary.Max),
			Median: mustDecimal(parsed.Summary.Median),
			Count:  parsed.Summary.Count,
		}, nil
	}

	prices := make([]decimal.Decimal, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if p, err := decimal.NewFromString(r.Price); err == nil {
			prices = append(prices, p)
		}
	}
	if len(prices) == 0 {
		return nil, integration.ErrNoMarketData
	}
	return summarize(prices), nil
}

func summarize(prices []decimal.Decimal) *integration.MarketSummary {
	sorted := make([]decimal.Decimal, len(prices))
	copy(sorted, prices)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].LessThan(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2))
	}
	return &integration.MarketSummary{
		Min:    sorted[0],
		Max:    sorted[n-1],
		Median: median,
		Count:  n,
	}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
