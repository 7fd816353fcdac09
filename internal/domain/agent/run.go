package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/storeops/backend/internal/domain/shared"
)

// RunStatus is the lifecycle state of an AgentRun.
// Transitions are monotonic: running reaches exactly one terminal status.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal returns true for completed and failed
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// TriggerType records what started a run
type TriggerType string

const (
	TriggerSchedule TriggerType = "schedule"
	TriggerEvent    TriggerType = "event"
	TriggerManual   TriggerType = "manual"
)

// AgentRun is the append-only audit record of one agent execution for one
// store. It is created in the running state and transitions exactly once.
type AgentRun struct {
	shared.TenantAggregateRoot
	AgentSlug     string      `gorm:"type:varchar(64);not null;index:idx_agent_run_tenant_slug,priority:2"`
	StoreAgentID  uuid.UUID   `gorm:"type:uuid;not null;index"`
	Trigger       TriggerType `gorm:"type:varchar(16);not null"`
	TriggerData   string      `gorm:"type:jsonb;not null;default:'{}'"`
	Status        RunStatus   `gorm:"type:varchar(16);not null;index"`
	StartedAt     time.Time   `gorm:"not null"`
	CompletedAt   *time.Time
	ResultSummary string `gorm:"type:jsonb;not null;default:'{}'"`
	ErrorMessage  string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (AgentRun) TableName() string {
	return "agent_runs"
}

// NewAgentRun starts a run record for one (store, agent) pair
func NewAgentRun(sa *StoreAgent, trigger TriggerType, triggerData map[string]any) *AgentRun {
	raw, err := json.Marshal(triggerData)
	if err != nil || triggerData == nil {
		raw = []byte("{}")
	}
	run := &AgentRun{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(sa.TenantID),
		AgentSlug:           sa.AgentSlug,
		StoreAgentID:        sa.ID,
		Trigger:             trigger,
		TriggerData:         string(raw),
		Status:              RunStatusRunning,
		StartedAt:           time.Now(),
		ResultSummary:       "{}",
	}
	return run
}

// Complete marks the run completed with its aggregate result
func (r *AgentRun) Complete(result *RunResult) error {
	if r.Status != RunStatusRunning {
		return fmt.Errorf("%w: cannot complete run in status %s", ErrRunNotRunning, r.Status)
	}
	now := time.Now()
	r.Status = RunStatusCompleted
	r.CompletedAt = &now
	r.setResult(result)
	r.UpdatedAt = now
	r.IncrementVersion()
	r.AddDomainEvent(NewRunFinishedEvent(r))
	return nil
}

// Fail marks the run failed. Actions created before the failure remain valid.
func (r *AgentRun) Fail(message string) error {
	if r.Status != RunStatusRunning {
		return fmt.Errorf("%w: cannot fail run in status %s", ErrRunNotRunning, r.Status)
	}
	now := time.Now()
	r.Status = RunStatusFailed
	r.CompletedAt = &now
	r.ErrorMessage = message
	r.UpdatedAt = now
	r.IncrementVersion()
	r.AddDomainEvent(NewRunFinishedEvent(r))
	return nil
}

// Result parses the stored result summary
func (r *AgentRun) Result() *RunResult {
	result := &RunResult{}
	if r.ResultSummary != "" {
		_ = json.Unmarshal([]byte(r.ResultSummary), result)
	}
	return result
}

func (r *AgentRun) setResult(result *RunResult) {
	if result == nil {
		r.ResultSummary = "{}"
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		r.ResultSummary = "{}"
		return
	}
	r.ResultSummary = string(raw)
}
