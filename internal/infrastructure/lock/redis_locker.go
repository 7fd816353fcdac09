package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces run locks in a shared Redis
const keyPrefix = "lock:"

// releaseScript deletes the key only when this locker still owns it, so an
// expired lock reacquired by another instance is never released by accident
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisLocker implements RunLocker on Redis SET NX with a TTL. Safe across
// instances; the TTL bounds how long a crashed holder can block a pair.
type RedisLocker struct {
	client *redis.Client
	owner  string

	mu    sync.Mutex
	owned map[string]string
}

// NewRedisLocker creates a locker on an existing Redis client
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		owner:  uuid.NewString(),
		owned:  make(map[string]string),
	}
}

// TryLock acquires the key if free; false means someone else holds it
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := l.owner + ":" + uuid.NewString()
	acquired, err := l.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock: failed to acquire %s: %w", key, err)
	}
	if acquired {
		l.mu.Lock()
		l.owned[key] = token
		l.mu.Unlock()
	}
	return acquired, nil
}

// Unlock releases the key if this locker still owns it
func (l *RedisLocker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.owned[key]
	delete(l.owned, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if err := l.client.Eval(ctx, releaseScript, []string{keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("lock: failed to release %s: %w", key, err)
	}
	return nil
}
