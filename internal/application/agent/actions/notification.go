package actions

import (
	"context"
	"fmt"

	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// NotificationHandler queues a message for delivery. Its success means
// "queued": delivery itself happens outside the engine and is never
// reported back into the action.
type NotificationHandler struct {
	dispatcher integration.NotificationDispatcher
	logger     *zap.Logger
}

// NewNotificationHandler creates the notification handler
func NewNotificationHandler(dispatcher integration.NotificationDispatcher, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{dispatcher: dispatcher, logger: logger}
}

// Type returns the action type this handler executes
func (h *NotificationHandler) Type() string {
	return agentdomain.ActionTypeSendNotification
}

// RequiresApproval leaves notifications to store policy alone
func (h *NotificationHandler) RequiresApproval(sa *agentdomain.StoreAgent, payload map[string]any) bool {
	return sa.RequiresApproval
}

// ValidatePayload checks the notification shape before execution
func (h *NotificationHandler) ValidatePayload(payload map[string]any) error {
	return notificationFromPayload(nil, payload).Validate()
}

// Execute queues the notification
func (h *NotificationHandler) Execute(ctx context.Context, action *agentdomain.AgentAction) (*agentdomain.ActionResult, error) {
	notification := notificationFromPayload(action, action.PayloadMap())
	if err := h.dispatcher.Queue(ctx, notification); err != nil {
		return nil, fmt.Errorf("queueing notification: %w", err)
	}

	h.logger.Info("notification queued",
		zap.String("channel", notification.Channel),
		zap.String("recipient", notification.Recipient),
	)
	return &agentdomain.ActionResult{
		Success: true,
		Message: fmt.Sprintf("queued %s notification to %s", notification.Channel, notification.Recipient),
	}, nil
}

func notificationFromPayload(action *agentdomain.AgentAction, payload map[string]any) integration.Notification {
	notification := integration.Notification{
		Channel:   stringField(payload, "channel"),
		Recipient: stringField(payload, "recipient"),
		Subject:   stringField(payload, "subject"),
		Body:      stringField(payload, "body"),
	}
	if notification.Channel == "" {
		notification.Channel = "email"
	}
	if action != nil {
		notification.TenantID = action.TenantID
		notification.Metadata = map[string]any{
			"action_id":  action.ID.String(),
			"agent_slug": action.AgentSlug,
		}
	}
	return notification
}
