package jwtauth

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Blocklist records revoked token ids until they would have expired anyway.
type Blocklist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryBlocklist is a bounded in-process blocklist. Entries live at most
// maxTTL; the per-entry deadline is checked on lookup.
type MemoryBlocklist struct {
	cache *expirable.LRU[string, time.Time]
	now   func() time.Time
}

func NewMemoryBlocklist(size int, maxTTL time.Duration) *MemoryBlocklist {
	if size <= 0 {
		size = 100_000
	}
	return &MemoryBlocklist{
		cache: expirable.NewLRU[string, time.Time](size, nil, maxTTL),
		now:   time.Now,
	}
}

func (b *MemoryBlocklist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	b.cache.Add(jti, b.now().Add(ttl))
	return nil
}

func (b *MemoryBlocklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	until, ok := b.cache.Get(jti)
	return ok && b.now().Before(until), nil
}

// RedisBlocklist stores revoked ids as expiring keys.
type RedisBlocklist struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisBlocklist(client redis.UniversalClient, prefix string) *RedisBlocklist {
	if prefix == "" {
		prefix = "portal:jwt:blocklist"
	}
	return &RedisBlocklist{client: client, prefix: prefix}
}

func (b *RedisBlocklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, b.prefix+":"+jti, "1", ttl).Err()
}

func (b *RedisBlocklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := b.client.Get(ctx, b.prefix+":"+jti).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}
