package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/storeops/backend/internal/domain/shared"
)

// ActionStatus is the lifecycle state of an AgentAction.
//
//	pending → approved → executing → executed | failed
//	pending → executing → executed | failed   (requires_approval=false)
//	pending → rejected
//
// executing is the claim state: a worker moves an action there with a
// compare-and-set before invoking its handler, so two workers can never
// execute the same action.
type ActionStatus string

const (
	ActionStatusPending   ActionStatus = "pending"
	ActionStatusApproved  ActionStatus = "approved"
	ActionStatusRejected  ActionStatus = "rejected"
	ActionStatusExecuting ActionStatus = "executing"
	ActionStatusExecuted  ActionStatus = "executed"
	ActionStatusFailed    ActionStatus = "failed"
)

// IsTerminal returns true for executed, failed and rejected
func (s ActionStatus) IsTerminal() bool {
	return s == ActionStatusExecuted || s == ActionStatusFailed || s == ActionStatusRejected
}

// IsExecutable returns true when a claim attempt is allowed from this status
func (s ActionStatus) IsExecutable() bool {
	return s == ActionStatusPending || s == ActionStatusApproved
}

// AgentAction is one proposed side effect: what an agent wants to change,
// why, and what happened to that proposal. The payload carries the "before"
// and "after" values plus the rationale; the result records the outcome.
type AgentAction struct {
	shared.TenantAggregateRoot
	RunID            uuid.UUID    `gorm:"type:uuid;not null;index"`
	AgentSlug        string       `gorm:"type:varchar(64);not null;index"`
	ActionType       string       `gorm:"type:varchar(64);not null;index"`
	TargetType       string       `gorm:"type:varchar(64);not null;index:idx_agent_action_target,priority:1"`
	TargetID         string       `gorm:"type:varchar(128);not null;index:idx_agent_action_target,priority:2"`
	Status           ActionStatus `gorm:"type:varchar(16);not null;index"`
	RequiresApproval bool         `gorm:"not null;default:false"`
	Payload          string       `gorm:"type:jsonb;not null;default:'{}'"`
	Result           string       `gorm:"type:jsonb;not null;default:'{}'"`
	DecidedBy        *uuid.UUID   `gorm:"type:uuid"`
	DecidedAt        *time.Time
	ExecutedAt       *time.Time
}

// TableName returns the table name for GORM
func (AgentAction) TableName() string {
	return "agent_actions"
}

// NewAgentAction proposes a side effect from within a run
func NewAgentAction(run *AgentRun, actionType, targetType, targetID string, payload map[string]any, requiresApproval bool) (*AgentAction, error) {
	if actionType == "" {
		return nil, fmt.Errorf("%w: action type cannot be empty", shared.ErrInvalidInput)
	}
	if targetType == "" || targetID == "" {
		return nil, fmt.Errorf("%w: action target reference is required", shared.ErrInvalidInput)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not serializable: %v", shared.ErrInvalidInput, err)
	}

	action := &AgentAction{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(run.TenantID),
		RunID:               run.ID,
		AgentSlug:           run.AgentSlug,
		ActionType:          actionType,
		TargetType:          targetType,
		TargetID:            targetID,
		Status:              ActionStatusPending,
		RequiresApproval:    requiresApproval,
		Payload:             string(raw),
		Result:              "{}",
	}
	action.AddDomainEvent(NewActionProposedEvent(action))
	return action, nil
}

// Approve records a human decision on a pending approval-required action
func (a *AgentAction) Approve(decidedBy uuid.UUID) error {
	if a.Status != ActionStatusPending {
		return fmt.Errorf("%w: action is %s", ErrActionNotPending, a.Status)
	}
	now := time.Now()
	a.Status = ActionStatusApproved
	a.DecidedBy = &decidedBy
	a.DecidedAt = &now
	a.UpdatedAt = now
	a.IncrementVersion()
	return nil
}

// Reject terminates a pending action without executing it
func (a *AgentAction) Reject(decidedBy uuid.UUID, reason string) error {
	if a.Status != ActionStatusPending {
		return fmt.Errorf("%w: action is %s", ErrActionNotPending, a.Status)
	}
	now := time.Now()
	a.Status = ActionStatusRejected
	a.DecidedBy = &decidedBy
	a.DecidedAt = &now
	a.setResult(&ActionResult{Success: false, Message: reason})
	a.UpdatedAt = now
	a.IncrementVersion()
	a.AddDomainEvent(NewActionResolvedEvent(a))
	return nil
}

// BeginExecution claims the action for execution. Approval-required actions
// can only be claimed after approval; terminal actions can never be claimed.
func (a *AgentAction) BeginExecution() error {
	if !a.Status.IsExecutable() {
		return fmt.Errorf("%w: action is %s", ErrActionClaimed, a.Status)
	}
	if a.RequiresApproval && a.Status != ActionStatusApproved {
		return fmt.Errorf("%w: action %s", ErrApprovalRequired, a.ID)
	}
	a.Status = ActionStatusExecuting
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
	return nil
}

// MarkExecuted records a successful execution
func (a *AgentAction) MarkExecuted(result *ActionResult) error {
	if a.Status != ActionStatusExecuting {
		return fmt.Errorf("%w: cannot execute action in status %s", shared.ErrInvalidState, a.Status)
	}
	now := time.Now()
	a.Status = ActionStatusExecuted
	a.ExecutedAt = &now
	a.setResult(result)
	a.UpdatedAt = now
	a.IncrementVersion()
	a.AddDomainEvent(NewActionResolvedEvent(a))
	return nil
}

// MarkFailed records a failed execution or validation.
// Failure is terminal in the core; retries belong to the dispatch layer.
func (a *AgentAction) MarkFailed(message string) error {
	if a.Status != ActionStatusExecuting && !a.Status.IsExecutable() {
		return fmt.Errorf("%w: cannot fail action in status %s", shared.ErrInvalidState, a.Status)
	}
	now := time.Now()
	a.Status = ActionStatusFailed
	a.setResult(&ActionResult{Success: false, Message: message})
	a.UpdatedAt = now
	a.IncrementVersion()
	a.AddDomainEvent(NewActionResolvedEvent(a))
	return nil
}

// PayloadMap parses the stored payload
func (a *AgentAction) PayloadMap() map[string]any {
	payload := make(map[string]any)
	if a.Payload != "" {
		_ = json.Unmarshal([]byte(a.Payload), &payload)
	}
	return payload
}

// ResultData parses the stored result
func (a *AgentAction) ResultData() *ActionResult {
	result := &ActionResult{}
	if a.Result != "" {
		_ = json.Unmarshal([]byte(a.Result), result)
	}
	return result
}

func (a *AgentAction) setResult(result *ActionResult) {
	if result == nil {
		a.Result = "{}"
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		a.Result = "{}"
		return
	}
	a.Result = string(raw)
}
