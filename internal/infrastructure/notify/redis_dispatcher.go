package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storeops/backend/internal/domain/integration"
)

// defaultQueueKey is the Redis list delivery workers consume from
const defaultQueueKey = "notifications:outbound"

// RedisDispatcher implements NotificationDispatcher by pushing messages onto
// a Redis list. Delivery workers on the other side of the list own retries
// and channel routing; the engine only ever learns "queued".
type RedisDispatcher struct {
	client   *redis.Client
	queueKey string
}

// NewRedisDispatcher creates a dispatcher on an existing Redis client
func NewRedisDispatcher(client *redis.Client, queueKey string) *RedisDispatcher {
	if queueKey == "" {
		queueKey = defaultQueueKey
	}
	return &RedisDispatcher{client: client, queueKey: queueKey}
}

// queuedNotification is the wire envelope pushed to the queue
type queuedNotification struct {
	integration.Notification
	QueuedAt time.Time `json:"queued_at"`
}

// Queue validates and enqueues one notification
func (d *RedisDispatcher) Queue(ctx context.Context, notification integration.Notification) error {
	if err := notification.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(queuedNotification{
		Notification: notification,
		QueuedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("notify: failed to encode notification: %w", err)
	}

	if err := d.client.LPush(ctx, d.queueKey, payload).Err(); err != nil {
		return fmt.Errorf("notify: failed to enqueue notification: %w", err)
	}
	return nil
}
