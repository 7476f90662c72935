package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// CooldownGate enforces the minimum time between accepted submissions.
type CooldownGate interface {
	// Remaining returns how long until the next submission is allowed.
	Remaining(ctx context.Context) (time.Duration, error)
	// Mark records an accepted submission.
	Mark(ctx context.Context) error
}

// MemoryCooldown keeps the last accepted submission time in process.
type MemoryCooldown struct {
	clock    clockwork.Clock
	cooldown time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewMemoryCooldown(clock clockwork.Clock, cooldown time.Duration) *MemoryCooldown {
	return &MemoryCooldown{clock: clock, cooldown: cooldown}
}

func (c *MemoryCooldown) Remaining(ctx context.Context) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cooldown <= 0 || c.last.IsZero() {
		return 0, nil
	}
	left := c.cooldown - c.clock.Since(c.last)
	if left < 0 {
		return 0, nil
	}
	return left, nil
}

func (c *MemoryCooldown) Mark(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = c.clock.Now()
	return nil
}

// RedisCooldown shares the cooldown between instances through a key whose
// TTL is the remaining time.
type RedisCooldown struct {
	rdb      redis.Cmdable
	key      string
	cooldown time.Duration
}

func NewRedisCooldown(rdb redis.Cmdable, key string, cooldown time.Duration) *RedisCooldown {
	if key == "" {
		key = "courtbot:cooldown"
	}
	return &RedisCooldown{rdb: rdb, key: key, cooldown: cooldown}
}

func (c *RedisCooldown) Remaining(ctx context.Context) (time.Duration, error) {
	if c.cooldown <= 0 {
		return 0, nil
	}
	ttl, err := c.rdb.PTTL(ctx, c.key).Result()
	if err != nil {
		return 0, err
	}
	// Missing keys report negative sentinels.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (c *RedisCooldown) Mark(ctx context.Context) error {
	if c.cooldown <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, c.key, "1", c.cooldown).Err()
}
