package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window Limiter backed by Redis, for deployments
// running more than one gateway instance behind one address space.
// The window is encoded in the key, so INCR is the whole atomic step.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedis creates a Redis-backed limiter over an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

// Admit increments the counter for the current window of (key, class) and
// admits while the count is within the class limit. Redis errors reject
// the request: unreachable state fails toward stricter limiting.
func (r *Redis) Admit(ctx context.Context, key string, class Class) (bool, error) {
	if class.Limit <= 0 || class.Window <= 0 {
		return true, nil
	}

	windowIdx := r.now().UnixMilli() / class.Window.Milliseconds()
	redisKey := fmt.Sprintf("rl:%s:%s:%d", class.Name, key, windowIdx)

	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis incr: %w", err)
	}
	if count == 1 {
		// Keep the key around past the window edge, then let it expire.
		r.client.Expire(ctx, redisKey, 2*class.Window)
	}
	return count <= int64(class.Limit), nil
}
