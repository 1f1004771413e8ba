package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore is the atomic increment-with-expiry surface the limiter
// needs. Redis provides it in production; tests substitute a fake with a
// simulated clock.
type CounterStore interface {
	// Incr atomically increments the counter and returns the new value,
	// creating it at 1 if absent or expired.
	Incr(ctx context.Context, key string) (int64, error)
	// ExpireNX sets the key's TTL only if it has none, so a counter can
	// never survive without an expiry even if a previous call crashed
	// between increment and expire.
	ExpireNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Limiter is the per-user fixed-window quota gate in front of the pipeline.
// The window is a flat expiry starting at first increment, not a rolling
// one: a user who exhausts the quota at 23:59 gets a fresh one at 00:01.
// That is the product's existing behavior and is kept as-is.
type Limiter struct {
	store    CounterStore
	limit    int64
	window   time.Duration
	failOpen bool
}

type Config struct {
	DailyLimit int
	Window     time.Duration
	FailOpen   bool
}

func New(store CounterStore, cfg Config) *Limiter {
	limit := int64(cfg.DailyLimit)
	if limit <= 0 {
		limit = 50
	}
	window := cfg.Window
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Limiter{
		store:    store,
		limit:    limit,
		window:   window,
		failOpen: cfg.FailOpen,
	}
}

// Allow reports whether the user may submit another message today.
// When the counter store is unreachable the configured failure policy
// decides, and the store error is returned for logging.
func (l *Limiter) Allow(ctx context.Context, userID int64) (bool, error) {
	key := counterKey(userID)

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		slog.ErrorContext(ctx, "rate limit counter unreachable",
			"error", err,
			"fail_open", l.failOpen)
		return l.failOpen, fmt.Errorf("incrementing quota counter: %w", err)
	}

	if _, err := l.store.ExpireNX(ctx, key, l.window); err != nil {
		// Counter incremented but expiry not confirmed. The next Allow
		// heals it; treat the increment as authoritative.
		slog.WarnContext(ctx, "failed to set quota expiry", "error", err)
	}

	if count > l.limit {
		slog.InfoContext(ctx, "daily chat quota exceeded",
			"user_id", userID,
			"count", count,
			"limit", l.limit)
		return false, nil
	}

	return true, nil
}

func counterKey(userID int64) string {
	return fmt.Sprintf("chat:quota:%d", userID)
}

// redisCounterStore adapts *redis.Client to CounterStore.
type redisCounterStore struct {
	client *redis.Client
}

func NewRedisCounterStore(client *redis.Client) CounterStore {
	return &redisCounterStore{client: client}
}

func (s *redisCounterStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *redisCounterStore) ExpireNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.ExpireNX(ctx, key, ttl).Result()
}
