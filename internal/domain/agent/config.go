package agent

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/shopspring/decimal"
	"github.com/storeops/backend/internal/domain/shared"
)

// Config is the effective configuration for one (store, agent) pair:
// the agent's defaults overlaid with the store's overrides, computed once
// per run and validated against the agent's schema before use.
type Config map[string]any

// MergeConfig overlays store overrides on top of agent defaults.
// Neither input map is mutated.
func MergeConfig(defaults, overrides map[string]any) Config {
	merged := make(Config, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// Validate checks the config against a JSON Schema document.
// An empty schema accepts everything.
func (c Config) Validate(schema map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.json", normalizeJSON(map[string]any(schema))); err != nil {
		return fmt.Errorf("%w: invalid config schema: %v", shared.ErrInvalidInput, err)
	}
	compiled, err := compiler.Compile("config.json")
	if err != nil {
		return fmt.Errorf("%w: invalid config schema: %v", shared.ErrInvalidInput, err)
	}

	if err := compiled.Validate(normalizeJSON(map[string]any(c))); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	return nil
}

// normalizeJSON round-trips a value through encoding/json so that typed Go
// values (int, decimal.Decimal) become the generic forms the schema
// validator expects.
func normalizeJSON(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// Int returns an integer config value, falling back when absent or mistyped
func (c Config) Int(key string, fallback int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return fallback
}

// Float returns a float config value, falling back when absent or mistyped
func (c Config) Float(key string, fallback float64) float64 {
	switch v := c[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return fallback
}

// Decimal returns a config value as a decimal for price arithmetic
func (c Config) Decimal(key string, fallback decimal.Decimal) decimal.Decimal {
	switch v := c[key].(type) {
	case decimal.Decimal:
		return v
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return fallback
}

// String returns a string config value, falling back when absent
func (c Config) String(key, fallback string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return fallback
}

// Bool returns a boolean config value, falling back when absent
func (c Config) Bool(key string, fallback bool) bool {
	if v, ok := c[key].(bool); ok {
		return v
	}
	return fallback
}

// StringSlice returns a list config value; []any elements are converted
func (c Config) StringSlice(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
