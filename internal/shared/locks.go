package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld indicates the lock is already held by another process.
var ErrLockHeld = errors.New("shared: lock already held")

// StartupLockKey builds the Redis key guarding a one-time boot task, such as
// extension loading or seeding, across concurrently starting process instances.
func StartupLockKey(task string) string {
	return fmt.Sprintf("coreframe:startup:%s:lock", task)
}

// Lock is a short-lived Redis mutual-exclusion lock used to make boot-time
// tasks (extension loading, seeding) run exactly once per deployment.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewLock constructs a Lock for the given Redis key.
func NewLock(client *redis.Client, key string, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Lock{client: client, key: key, ttl: ttl}
}

// Acquire attempts to take the lock, returning ErrLockHeld if another holder
// already owns it.
func (l *Lock) Acquire(ctx context.Context) error {
	if l == nil || l.client == nil {
		return nil
	}
	token, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	ok, err := l.client.SetNX(ctx, l.key, token.String(), l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	l.token = token.String()
	return nil
}

// Release drops the lock if this instance still holds it.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || l.client == nil || l.token == "" {
		return nil
	}
	held, err := l.client.Get(ctx, l.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	if held != l.token {
		return nil
	}
	return l.client.Del(ctx, l.key).Err()
}
