package calls

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockoutKey is the cache key set while the call system is down.
const LockoutKey = "messenger:calls:down"

type lockoutStore interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Lockout stores the calls-down flag in redis with a TTL.
type Lockout struct {
	store lockoutStore
}

func NewLockout(client *redis.Client) *Lockout {
	return &Lockout{store: client}
}

func (l *Lockout) IsDown(ctx context.Context) (bool, error) {
	n, err := l.store.Exists(ctx, LockoutKey).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Down disables calling for the given duration.
func (l *Lockout) Down(ctx context.Context, duration time.Duration) error {
	return l.store.Set(ctx, LockoutKey, true, duration).Err()
}

func (l *Lockout) Up(ctx context.Context) error {
	return l.store.Del(ctx, LockoutKey).Err()
}
