package agent

import (
	"github.com/storeops/backend/internal/domain/shared"
)

// Engine-specific domain errors. Registration problems are configuration
// errors and fatal at boot; the rest stay local to one run or one action.
var (
	ErrConfigInvalid    = shared.NewDomainError("AGENT_CONFIG_INVALID", "Agent configuration does not match its schema")
	ErrAgentNotFound    = shared.NewDomainError("AGENT_NOT_FOUND", "No agent registered under this slug")
	ErrActionNotFound   = shared.NewDomainError("ACTION_TYPE_NOT_FOUND", "No handler registered for this action type")
	ErrActionNotPending = shared.NewDomainError("ACTION_NOT_PENDING", "Action is not awaiting a decision")
	ErrActionClaimed    = shared.NewDomainError("ACTION_ALREADY_CLAIMED", "Action was already claimed for execution")
	ErrApprovalRequired = shared.NewDomainError("APPROVAL_REQUIRED", "Action requires approval before execution")
	ErrRunNotRunning    = shared.NewDomainError("RUN_NOT_RUNNING", "Run has already reached a terminal status")
	ErrInvalidCadence   = shared.NewDomainError("INVALID_CADENCE", "Cadence is neither a duration nor a cron expression")
)
