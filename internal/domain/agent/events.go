package agent

import (
	"github.com/google/uuid"
	"github.com/storeops/backend/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeStoreAgent  = "StoreAgent"
	AggregateTypeAgentRun    = "AgentRun"
	AggregateTypeAgentAction = "AgentAction"
)

// Event type constants for the engine's own lifecycle events
const (
	EventTypeStoreAgentEnabled  = "StoreAgentEnabled"
	EventTypeStoreAgentDisabled = "StoreAgentDisabled"
	EventTypeRunFinished        = "AgentRunFinished"
	EventTypeActionProposed     = "AgentActionProposed"
	EventTypeActionResolved     = "AgentActionResolved"
)

// Domain event types agents can subscribe to. These are produced by the
// surrounding back-office (order intake, inventory postings, catalog edits)
// and fanned out to subscribed store agents by the orchestrator.
const (
	EventOrderCreated      = "order.created"
	EventInventoryAdjusted = "inventory.adjusted"
	EventProductCreated    = "product.created"
	EventListingSold       = "listing.sold"
	EventPriceChanged      = "product.price_changed"
)

// StoreAgentEnabledEvent is published when an agent is enabled for a store
type StoreAgentEnabledEvent struct {
	shared.BaseDomainEvent
	AgentSlug string `json:"agent_slug"`
}

// NewStoreAgentEnabledEvent creates a new StoreAgentEnabledEvent
func NewStoreAgentEnabledEvent(sa *StoreAgent) *StoreAgentEnabledEvent {
	return &StoreAgentEnabledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStoreAgentEnabled, AggregateTypeStoreAgent, sa.ID, sa.TenantID),
		AgentSlug:       sa.AgentSlug,
	}
}

// StoreAgentDisabledEvent is published when an agent is disabled for a store
type StoreAgentDisabledEvent struct {
	shared.BaseDomainEvent
	AgentSlug string `json:"agent_slug"`
}

// NewStoreAgentDisabledEvent creates a new StoreAgentDisabledEvent
func NewStoreAgentDisabledEvent(sa *StoreAgent) *StoreAgentDisabledEvent {
	return &StoreAgentDisabledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStoreAgentDisabled, AggregateTypeStoreAgent, sa.ID, sa.TenantID),
		AgentSlug:       sa.AgentSlug,
	}
}

// RunFinishedEvent is published when a run reaches a terminal status
type RunFinishedEvent struct {
	shared.BaseDomainEvent
	RunID     uuid.UUID `json:"run_id"`
	AgentSlug string    `json:"agent_slug"`
	Status    RunStatus `json:"status"`
}

// NewRunFinishedEvent creates a new RunFinishedEvent
func NewRunFinishedEvent(run *AgentRun) *RunFinishedEvent {
	return &RunFinishedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRunFinished, AggregateTypeAgentRun, run.ID, run.TenantID),
		RunID:           run.ID,
		AgentSlug:       run.AgentSlug,
		Status:          run.Status,
	}
}

// ActionProposedEvent is published when an agent proposes a side effect
type ActionProposedEvent struct {
	shared.BaseDomainEvent
	ActionID         uuid.UUID `json:"action_id"`
	RunID            uuid.UUID `json:"run_id"`
	ActionType       string    `json:"action_type"`
	TargetType       string    `json:"target_type"`
	TargetID         string    `json:"target_id"`
	RequiresApproval bool      `json:"requires_approval"`
}

// NewActionProposedEvent creates a new ActionProposedEvent
func NewActionProposedEvent(action *AgentAction) *ActionProposedEvent {
	return &ActionProposedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeActionProposed, AggregateTypeAgentAction, action.ID, action.TenantID),
		ActionID:         action.ID,
		RunID:            action.RunID,
		ActionType:       action.ActionType,
		TargetType:       action.TargetType,
		TargetID:         action.TargetID,
		RequiresApproval: action.RequiresApproval,
	}
}

// ActionResolvedEvent is published when an action reaches a terminal status
type ActionResolvedEvent struct {
	shared.BaseDomainEvent
	ActionID   uuid.UUID    `json:"action_id"`
	ActionType string       `json:"action_type"`
	Status     ActionStatus `json:"status"`
}

// NewActionResolvedEvent creates a new ActionResolvedEvent
func NewActionResolvedEvent(action *AgentAction) *ActionResolvedEvent {
	return &ActionResolvedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeActionResolved, AggregateTypeAgentAction, action.ID, action.TenantID),
		ActionID:        action.ID,
		ActionType:      action.ActionType,
		Status:          action.Status,
	}
}
