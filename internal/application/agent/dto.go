package agent

import (
	"time"

	"github.com/google/uuid"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
)

// StoreAgentResponse is the settings read model for one (store, agent) pair
type StoreAgentResponse struct {
	ID               uuid.UUID      `json:"id"`
	AgentSlug        string         `json:"agent_slug"`
	Enabled          bool           `json:"enabled"`
	RequiresApproval bool           `json:"requires_approval"`
	Cadence          string         `json:"cadence"`
	ConfigOverrides  map[string]any `json:"config_overrides"`
	LastRunAt        *time.Time     `json:"last_run_at,omitempty"`
}

// ToStoreAgentResponse maps the aggregate to its read model
func ToStoreAgentResponse(sa *agentdomain.StoreAgent) StoreAgentResponse {
	return StoreAgentResponse{
		ID:               sa.ID,
		AgentSlug:        sa.AgentSlug,
		Enabled:          sa.Enabled,
		RequiresApproval: sa.RequiresApproval,
		Cadence:          sa.Cadence,
		ConfigOverrides:  sa.Overrides(),
		LastRunAt:        sa.LastRunAt,
	}
}

// UpdateStoreAgentRequest carries settings writes
type UpdateStoreAgentRequest struct {
	Enabled          *bool          `json:"enabled,omitempty"`
	RequiresApproval *bool          `json:"requires_approval,omitempty"`
	Cadence          *string        `json:"cadence,omitempty"`
	ConfigOverrides  map[string]any `json:"config_overrides,omitempty"`
}

// ActionResponse is the review read model for one proposed action
type ActionResponse struct {
	ID               uuid.UUID                `json:"id"`
	RunID            uuid.UUID                `json:"run_id"`
	AgentSlug        string                   `json:"agent_slug"`
	ActionType       string                   `json:"action_type"`
	TargetType       string                   `json:"target_type"`
	TargetID         string                   `json:"target_id"`
	Status           agentdomain.ActionStatus `json:"status"`
	RequiresApproval bool                     `json:"requires_approval"`
	Payload          map[string]any           `json:"payload"`
	Result           *agentdomain.ActionResult `json:"result,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	ExecutedAt       *time.Time               `json:"executed_at,omitempty"`
}

// ToActionResponse maps the aggregate to its read model
func ToActionResponse(action *agentdomain.AgentAction) ActionResponse {
	return ActionResponse{
		ID:               action.ID,
		RunID:            action.RunID,
		AgentSlug:        action.AgentSlug,
		ActionType:       action.ActionType,
		TargetType:       action.TargetType,
		TargetID:         action.TargetID,
		Status:           action.Status,
		RequiresApproval: action.RequiresApproval,
		Payload:          action.PayloadMap(),
		Result:           action.ResultData(),
		CreatedAt:        action.CreatedAt,
		ExecutedAt:       action.ExecutedAt,
	}
}

// RunResponse is the audit read model for one run
type RunResponse struct {
	ID          uuid.UUID               `json:"id"`
	AgentSlug   string                  `json:"agent_slug"`
	Trigger     agentdomain.TriggerType `json:"trigger"`
	Status      agentdomain.RunStatus   `json:"status"`
	StartedAt   time.Time               `json:"started_at"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
	Result      *agentdomain.RunResult  `json:"result,omitempty"`
	Error       string                  `json:"error,omitempty"`
}

// ToRunResponse maps the aggregate to its read model
func ToRunResponse(run *agentdomain.AgentRun) RunResponse {
	return RunResponse{
		ID:          run.ID,
		AgentSlug:   run.AgentSlug,
		Trigger:     run.Trigger,
		Status:      run.Status,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Result:      run.Result(),
		Error:       run.ErrorMessage,
	}
}
