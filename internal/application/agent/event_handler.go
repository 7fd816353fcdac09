package agent

import (
	"context"
	"encoding/json"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DomainEventHandler bridges the in-process event bus to the orchestrator's
// fan-out: every back-office event an agent can subscribe to is forwarded
// to DispatchEvent for the event's tenant.
type DomainEventHandler struct {
	orchestrator *Orchestrator
	logger       *zap.Logger
}

// NewDomainEventHandler creates the bus-facing handler
func NewDomainEventHandler(orchestrator *Orchestrator, logger *zap.Logger) *DomainEventHandler {
	return &DomainEventHandler{orchestrator: orchestrator, logger: logger}
}

// EventTypes returns the domain events agents may subscribe to
func (h *DomainEventHandler) EventTypes() []string {
	return []string{
		agentdomain.EventOrderCreated,
		agentdomain.EventInventoryAdjusted,
		agentdomain.EventProductCreated,
		agentdomain.EventListingSold,
		agentdomain.EventPriceChanged,
	}
}

// Handle forwards one domain event to subscribed store agents
func (h *DomainEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload := eventPayload(event)
	summary, err := h.orchestrator.DispatchEvent(ctx, event.EventType(), payload, event.TenantID())
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		h.logger.Warn("event dispatched with handler failures",
			zap.String("event", event.EventType()),
			zap.Int("delivered", summary.Delivered),
			zap.Int("failed", summary.Failed),
		)
	}
	return nil
}

// eventPayload flattens the concrete event struct into a map for agents
func eventPayload(event shared.DomainEvent) map[string]any {
	payload := make(map[string]any)
	raw, err := json.Marshal(event)
	if err != nil {
		return payload
	}
	_ = json.Unmarshal(raw, &payload)
	return payload
}
