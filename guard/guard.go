package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

// CompletionGuard admits at most one dispatch per shop order within its TTL.
// Acquire returns false when the order was already admitted.
type CompletionGuard interface {
	Acquire(ctx context.Context, shopID, orderNumber string) (bool, error)
}

func key(shopID, orderNumber string) string {
	return fmt.Sprintf("notify:order:%s:%s", shopID, orderNumber)
}

type setNXClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisGuard shares the admitted set across service replicas.
type RedisGuard struct {
	client setNXClient
	ttl    time.Duration
}

func NewRedisGuard(client setNXClient, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, shopID, orderNumber string) (bool, error) {
	ok, err := g.client.SetNX(ctx, key(shopID, orderNumber), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("completion guard: %w", err)
	}
	return ok, nil
}

// MemoryGuard is the single-replica fallback when REDIS_URL is unset.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGuard{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (g *MemoryGuard) Acquire(_ context.Context, shopID, orderNumber string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for k, exp := range g.seen {
		if !now.Before(exp) {
			delete(g.seen, k)
		}
	}

	k := key(shopID, orderNumber)
	if _, ok := g.seen[k]; ok {
		return false, nil
	}
	g.seen[k] = now.Add(g.ttl)
	return true, nil
}

// NewRedisClient parses REDIS_URL and pings once.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
