package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/storeops/backend/internal/domain/shared"
)

// StoreAgent is the per-store enablement record for one agent: whether it
// runs, how often, with which config overrides, and whether its proposals
// need human approval. Disabling stops scheduling; rows are never deleted.
type StoreAgent struct {
	shared.TenantAggregateRoot
	AgentSlug        string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_store_agent_tenant_slug,priority:2"`
	Enabled          bool       `gorm:"not null;default:true"`
	ConfigOverrides  string     `gorm:"type:jsonb;not null;default:'{}'"`
	RequiresApproval bool       `gorm:"not null;default:true"`
	Cadence          string     `gorm:"type:varchar(64);not null;default:'24h'"`
	LastRunAt        *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (StoreAgent) TableName() string {
	return "store_agents"
}

// NewStoreAgent enables an agent for a store with default policy
// (approval required, daily cadence, no overrides).
func NewStoreAgent(tenantID uuid.UUID, agentSlug string) (*StoreAgent, error) {
	if agentSlug == "" {
		return nil, fmt.Errorf("%w: agent slug cannot be empty", shared.ErrInvalidInput)
	}

	sa := &StoreAgent{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		AgentSlug:           agentSlug,
		Enabled:             true,
		ConfigOverrides:     "{}",
		RequiresApproval:    true,
		Cadence:             "24h",
	}
	sa.AddDomainEvent(NewStoreAgentEnabledEvent(sa))
	return sa, nil
}

// Enable turns scheduling back on
func (s *StoreAgent) Enable() {
	if s.Enabled {
		return
	}
	s.Enabled = true
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	s.AddDomainEvent(NewStoreAgentEnabledEvent(s))
}

// Disable stops scheduling without deleting the record
func (s *StoreAgent) Disable() {
	if !s.Enabled {
		return
	}
	s.Enabled = false
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	s.AddDomainEvent(NewStoreAgentDisabledEvent(s))
}

// SetRequiresApproval sets the store-level approval policy
func (s *StoreAgent) SetRequiresApproval(required bool) {
	s.RequiresApproval = required
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
}

// SetCadence sets how often the agent runs: either a Go duration ("30m",
// "24h") or a standard 5-field cron expression ("0 3 * * *").
func (s *StoreAgent) SetCadence(cadence string) error {
	if err := validateCadence(cadence); err != nil {
		return err
	}
	s.Cadence = cadence
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	return nil
}

// SetConfigOverrides replaces the store's config overrides
func (s *StoreAgent) SetConfigOverrides(overrides map[string]any) error {
	raw, err := json.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("%w: overrides are not serializable: %v", shared.ErrInvalidInput, err)
	}
	s.ConfigOverrides = string(raw)
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	return nil
}

// Overrides parses the stored config overrides
func (s *StoreAgent) Overrides() map[string]any {
	overrides := make(map[string]any)
	if s.ConfigOverrides != "" {
		_ = json.Unmarshal([]byte(s.ConfigOverrides), &overrides)
	}
	return overrides
}

// EffectiveConfig merges the agent's defaults with this store's overrides
func (s *StoreAgent) EffectiveConfig(defaults map[string]any) Config {
	return MergeConfig(defaults, s.Overrides())
}

// TouchLastRun records that a run was attempted, successful or not.
// Called regardless of outcome so a permanently broken agent does not
// re-trigger on every tick.
func (s *StoreAgent) TouchLastRun(at time.Time) {
	s.LastRunAt = &at
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
}

// Due reports whether the cadence has elapsed at the given instant.
// A store agent that never ran is always due.
func (s *StoreAgent) Due(now time.Time) bool {
	if !s.Enabled {
		return false
	}
	if s.LastRunAt == nil {
		return true
	}
	if d, err := time.ParseDuration(s.Cadence); err == nil {
		return now.Sub(*s.LastRunAt) >= d
	}
	if sched, err := cron.ParseStandard(s.Cadence); err == nil {
		return !now.Before(sched.Next(*s.LastRunAt))
	}
	// Unparseable cadence never comes due; SetCadence rejects these upfront.
	return false
}

func validateCadence(cadence string) error {
	if cadence == "" {
		return fmt.Errorf("%w: cadence cannot be empty", ErrInvalidCadence)
	}
	if d, err := time.ParseDuration(cadence); err == nil {
		if d < time.Minute {
			return fmt.Errorf("%w: cadence below one minute", ErrInvalidCadence)
		}
		return nil
	}
	if _, err := cron.ParseStandard(cadence); err == nil {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidCadence, cadence)
}
