package agent

import (
	"context"
)

// AgentType classifies how an agent is expected to be triggered.
// It is scheduling metadata only; the runner treats all types identically.
type AgentType string

const (
	AgentTypeBackground     AgentType = "background"
	AgentTypeReactive       AgentType = "reactive"
	AgentTypeProactive      AgentType = "proactive"
	AgentTypeEventTriggered AgentType = "event_triggered"
	AgentTypeGoalOriented   AgentType = "goal_oriented"
)

// IsValid returns true if the agent type is a known value
func (t AgentType) IsValid() bool {
	switch t {
	case AgentTypeBackground, AgentTypeReactive, AgentTypeProactive,
		AgentTypeEventTriggered, AgentTypeGoalOriented:
		return true
	}
	return false
}

// Action type vocabulary shared by agents (proposing) and handlers
// (executing). The registry fails fast on types outside the handlers
// registered at boot.
const (
	ActionTypeUpdatePrice      = "update_price"
	ActionTypeSyncInventory    = "sync_inventory"
	ActionTypeCreateListing    = "create_listing"
	ActionTypeUpdateListing    = "update_listing"
	ActionTypeImportOrder      = "import_order"
	ActionTypeSendNotification = "send_notification"
	ActionTypeRepriceListing   = "reprice_listing"
	ActionTypeScheduleMarkdown = "schedule_markdown"
)

// Target type vocabulary for the polymorphic target reference on actions
const (
	TargetTypeProduct       = "product"
	TargetTypeListing       = "listing"
	TargetTypePlatform      = "platform"
	TargetTypeExternalOrder = "external_order"
	TargetTypeCustomer      = "customer"
)

// RunResult is the aggregate outcome of one agent run.
// Per-entity failures are recorded in Errors and do not make the run fail.
type RunResult struct {
	Success        bool           `json:"success"`
	ActionsCreated int            `json:"actions_created"`
	Processed      int            `json:"processed"`
	Skipped        int            `json:"skipped"`
	Errors         []string       `json:"errors,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

// NewRunResult creates an empty successful result
func NewRunResult() *RunResult {
	return &RunResult{Success: true}
}

// RecordError records a per-entity failure without failing the run
func (r *RunResult) RecordError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Skipped++
}

// Agent is the contract every automation strategy implements.
//
// Run only proposes: it reads current data and external signals, computes
// intended changes with a rationale, and persists them as AgentActions. It
// must never mutate external state directly; that is the executor's job,
// behind the approval gate.
type Agent interface {
	// Slug returns the unique identifier the agent is registered under
	Slug() string
	// Name returns the human-readable name
	Name() string
	// Type returns the scheduling classification
	Type() AgentType
	// DefaultConfig returns the built-in configuration values
	DefaultConfig() map[string]any
	// ConfigSchema returns a JSON Schema document describing valid config
	ConfigSchema() map[string]any
	// CanRun gates scheduling: enablement, required integrations, rate limits.
	// The returned string explains a false result.
	CanRun(ctx context.Context, sa *StoreAgent) (bool, string)
	// Run executes one proposal pass for one store
	Run(ctx context.Context, run *AgentRun, sa *StoreAgent) (*RunResult, error)
	// SubscribedEvents returns the domain event types this agent reacts to
	SubscribedEvents() []string
	// HandleEvent reacts to a single domain event for one store
	HandleEvent(ctx context.Context, eventType string, payload map[string]any, sa *StoreAgent) error
}

// ActionResult is the outcome of executing one action
type ActionResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// ActionHandler is the contract every side-effect handler implements.
//
// Execute must capture the "before" state of whatever it changes in the
// action's result so that a rollback-capable handler can compensate later.
// Execute is invoked at most once per action; the executor enforces that,
// not the handler.
type ActionHandler interface {
	// Type returns the action type this handler executes
	Type() string
	// RequiresApproval decides whether the proposed payload needs human
	// sign-off: store-level override OR an action-specific heuristic
	RequiresApproval(sa *StoreAgent, payload map[string]any) bool
	// ValidatePayload checks structural preconditions before execution
	ValidatePayload(payload map[string]any) error
	// Execute performs the external effect
	Execute(ctx context.Context, action *AgentAction) (*ActionResult, error)
}

// RollbackCapable is an optional capability: handlers that can compensate
// an executed action using the "before" values captured during Execute.
type RollbackCapable interface {
	Rollback(ctx context.Context, action *AgentAction) error
}

// Descriptor is the registry's read model for settings UIs
type Descriptor struct {
	Slug             string         `json:"slug"`
	Name             string         `json:"name"`
	Type             AgentType      `json:"type"`
	DefaultConfig    map[string]any `json:"default_config"`
	ConfigSchema     map[string]any `json:"config_schema"`
	SubscribedEvents []string       `json:"subscribed_events,omitempty"`
}
