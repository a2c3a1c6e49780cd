// Package revocation remembers signed-out tokens until they would have
// expired anyway.
package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"wallet/internal/cache"
	"wallet/internal/session"
)

// Store records revoked token ids.
type Store interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const keyPrefix = "wallet:revoked:"

// Redis keeps revocations in Redis with a TTL matching the token lifetime,
// so they are shared between instances.
type Redis struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client, now: time.Now}
}

// Dial connects to the Redis URL and checks the connection.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *Redis) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, keyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *Redis) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, keyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

// Memory keeps revocations in process until the token expires. It never
// evicts a live revocation: at capacity, expired ones are dropped and, if
// that frees nothing, Revoke fails so the sign-out is reported instead of a
// revoked token silently becoming valid again.
type Memory struct {
	cache    *cache.LRUCache[struct{}]
	capacity int
	now      func() time.Time
}

const memoryCapacity = 100_000

func NewMemory() *Memory {
	return newMemory(memoryCapacity)
}

func newMemory(capacity int) *Memory {
	return &Memory{
		cache:    cache.NewLRUCache[struct{}](capacity, time.Hour),
		capacity: capacity,
		now:      time.Now,
	}
}

// Cache exposes the backing cache for registration with a cache.Manager.
func (m *Memory) Cache() cache.Cleaner { return m.cache }

func (m *Memory) Revoke(_ context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	if !m.cache.TrySet(tokenID, struct{}{}, ttl) {
		return fmt.Errorf("%w: revocation store full (%d tokens)", session.ErrUnavailable, m.capacity)
	}
	return nil
}

func (m *Memory) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := m.cache.Get(tokenID)
	return ok, nil
}
