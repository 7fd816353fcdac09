package integration

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Notification errors
var (
	ErrNotificationInvalid = errors.New("integration: notification missing recipient or body")
)

// Notification is a message queued for delivery outside the engine
type Notification struct {
	TenantID  uuid.UUID      `json:"tenant_id"`
	Channel   string         `json:"channel"` // email, sms, webhook
	Recipient string         `json:"recipient"`
	Subject   string         `json:"subject,omitempty"`
	Body      string         `json:"body"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Validate checks the notification shape. The engine only validates shape;
// delivery is someone else's problem.
func (n Notification) Validate() error {
	if n.Recipient == "" || n.Body == "" {
		return ErrNotificationInvalid
	}
	return nil
}

// NotificationDispatcher is the fire-and-forget port: Queue reports
// "queued", never "delivered".
type NotificationDispatcher interface {
	Queue(ctx context.Context, notification Notification) error
}
