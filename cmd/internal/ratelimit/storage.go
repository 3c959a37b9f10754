package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Storage counts hits in fixed windows.
type Storage interface {
	// Hit records one hit for key and returns the count in the current window
	// along with the time the window resets.
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
	Close() error
}

// DefaultMemoryKeys bounds the in-process counter table.
const DefaultMemoryKeys = 100_000

type window struct {
	count int64
	reset time.Time
}

// MemoryStorage keeps counters in a bounded LRU. Least recently hit keys are
// evicted first once the table is full.
type MemoryStorage struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *window]
	now   func() time.Time
}

// NewMemoryStorage returns a storage holding at most size keys.
func NewMemoryStorage(size int) (*MemoryStorage, error) {
	if size <= 0 {
		size = DefaultMemoryKeys
	}
	c, err := lru.New[string, *window](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStorage{cache: c, now: time.Now}, nil
}

func (m *MemoryStorage) Hit(_ context.Context, key string, d time.Duration) (int64, time.Time, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.cache.Get(key)
	if !ok || !now.Before(w.reset) {
		w = &window{reset: now.Add(d)}
		m.cache.Add(key, w)
	}
	w.count++
	return w.count, w.reset, nil
}

func (m *MemoryStorage) Close() error {
	m.cache.Purge()
	return nil
}

// hitScript increments and arms the expiry on the first hit of a window.
// A key that somehow lost its TTL is re-armed.
var hitScript = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
local t = redis.call('PTTL', KEYS[1])
if c == 1 or t < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  t = tonumber(ARGV[1])
end
return {c, t}
`)

// RedisStorage shares counters across instances.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
	owned  bool
	now    func() time.Time
}

// NewRedisStorage wraps an existing client. The caller keeps ownership.
func NewRedisStorage(client redis.UniversalClient, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = "portal:ratelimit"
	}
	return &RedisStorage{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStorage) Hit(ctx context.Context, key string, d time.Duration) (int64, time.Time, error) {
	ms := d.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	res, err := hitScript.Run(ctx, s.client, []string{s.prefix + ":" + key}, ms).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("%w: unexpected reply", ErrStorage)
	}
	return res[0], s.now().Add(time.Duration(res[1]) * time.Millisecond), nil
}

func (s *RedisStorage) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

// OpenStorage builds a storage from a URI: "memory://" (default) or a redis URL.
func OpenStorage(ctx context.Context, uri string, memoryKeys int) (Storage, error) {
	uri = strings.TrimSpace(uri)
	switch {
	case uri == "" || strings.HasPrefix(uri, "memory://"):
		return NewMemoryStorage(memoryKeys)
	case strings.HasPrefix(uri, "redis://"), strings.HasPrefix(uri, "rediss://"):
		opts, err := redis.ParseURL(uri)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		client := redis.NewClient(opts)
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		s := NewRedisStorage(client, "")
		s.owned = true
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unsupported storage uri", ErrConfig)
	}
}
