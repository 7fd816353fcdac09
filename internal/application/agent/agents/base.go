// Package agents contains the built-in agent implementations. Every agent
// only proposes: it reads store data and external signals and records
// intended changes as actions; the executor performs them later, behind the
// approval gate.
package agents

import (
	"context"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
)

// base carries agent identity and the no-op event defaults.
// Variants embed it and override what they need.
type base struct {
	slug string
	name string
	typ  agentdomain.AgentType
}

func (b base) Slug() string                { return b.slug }
func (b base) Name() string                { return b.name }
func (b base) Type() agentdomain.AgentType { return b.typ }

func (b base) SubscribedEvents() []string { return nil }

func (b base) HandleEvent(ctx context.Context, eventType string, payload map[string]any, sa *agentdomain.StoreAgent) error {
	return nil
}
