package agent

import (
	agentdomain "github.com/storeops/backend/internal/domain/agent"
)

// RequiresApproval is the single approval policy for the whole engine:
// a proposal needs human sign-off when the store says every proposal does,
// OR when the action's own heuristic flags this particular payload.
// Handlers can force approval (large price swings) but can never waive a
// store-level requirement.
func RequiresApproval(sa *agentdomain.StoreAgent, handler agentdomain.ActionHandler, payload map[string]any) bool {
	if sa.RequiresApproval {
		return true
	}
	return handler.RequiresApproval(sa, payload)
}
