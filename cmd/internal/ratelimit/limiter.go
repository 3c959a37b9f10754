package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"portal/cmd/internal/web"
)

// KeyFunc derives the bucket key from a request.
type KeyFunc func(*http.Request) string

// RemoteAddr keys requests by the client IP in r.RemoteAddr.
func RemoteAddr(r *http.Request) string {
	if ip := web.ClientIP(r, false); ip != nil {
		return ip.String()
	}
	return "127.0.0.1"
}

const defaultScope = "default"

// Limiter is the rate limiting extension.
type Limiter struct {
	key KeyFunc
	now func() time.Time

	mu      sync.RWMutex
	cfg     Config
	storage Storage
	buckets *lru.Cache[string, *rate.Limiter]
	log     *slog.Logger
	ready   bool
	exempt  map[string]struct{}
}

// New returns an unbound limiter keyed by key (RemoteAddr when nil).
func New(key KeyFunc) *Limiter {
	if key == nil {
		key = RemoteAddr
	}
	return &Limiter{key: key, now: time.Now, exempt: map[string]struct{}{}}
}

// Init binds the limiter. It takes ownership of storage.
func (l *Limiter) Init(cfg Config, storage Storage, log *slog.Logger) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready {
		return ErrAlreadyInitialized
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	if storage == nil && cfg.Strategy == FixedWindow {
		return ErrConfig
	}
	if log == nil {
		log = slog.Default()
	}

	size := cfg.MemoryKeys
	if size <= 0 {
		size = DefaultMemoryKeys
	}
	buckets, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		return err
	}

	l.cfg = cfg
	l.storage = storage
	l.buckets = buckets
	l.log = log
	l.ready = true
	return nil
}

// Exempt excludes path from the default limits.
func (l *Limiter) Exempt(path string) {
	l.mu.Lock()
	l.exempt[path] = struct{}{}
	l.mu.Unlock()
}

// Close releases the storage. A closed fixed-window limiter fails open.
func (l *Limiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ready || l.storage == nil {
		return nil
	}
	err := l.storage.Close()
	l.storage = nil
	return err
}

// Decision is the outcome of a single check.
type Decision struct {
	Allowed    bool
	Limit      Limit
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// Check records a hit against every limit for (scope, key) and returns the
// most restrictive result. Storage failures allow the request.
func (l *Limiter) Check(ctx context.Context, scope, key string, limits []Limit) (Decision, error) {
	l.mu.RLock()
	cfg, storage, buckets, ready := l.cfg, l.storage, l.buckets, l.ready
	l.mu.RUnlock()
	if !ready {
		return Decision{Allowed: true}, ErrNotInitialized
	}

	now := l.now()
	out := Decision{Allowed: true, Remaining: math.MaxInt}
	for _, lim := range limits {
		id := cfg.KeyPrefix + "/" + scope + "/" + key + "/" + lim.slug()

		var d Decision
		if cfg.Strategy == TokenBucket {
			d = l.takeToken(buckets, id, lim, now)
		} else {
			if storage == nil {
				return Decision{Allowed: true}, ErrStorage
			}
			count, reset, err := storage.Hit(ctx, id, lim.Per)
			if err != nil {
				return Decision{Allowed: true}, err
			}
			d = Decision{
				Allowed:   count <= int64(lim.Amount),
				Limit:     lim,
				Remaining: max(lim.Amount-int(count), 0),
				Reset:     reset,
			}
			if !d.Allowed {
				d.RetryAfter = reset.Sub(now)
			}
		}

		switch {
		case !d.Allowed && out.Allowed:
			out = d
		case d.Allowed == out.Allowed && d.Remaining < out.Remaining:
			out = d
		}
	}
	if out.Remaining == math.MaxInt {
		out.Remaining = 0
	}
	return out, nil
}

func (l *Limiter) takeToken(buckets *lru.Cache[string, *rate.Limiter], id string, lim Limit, now time.Time) Decision {
	every := lim.Per / time.Duration(lim.Amount)

	l.mu.Lock()
	b, ok := buckets.Get(id)
	if !ok {
		b = rate.NewLimiter(rate.Every(every), lim.Amount)
		buckets.Add(id, b)
	}
	l.mu.Unlock()

	allowed := b.AllowN(now, 1)
	tokens := b.TokensAt(now)
	d := Decision{
		Allowed:   allowed,
		Limit:     lim,
		Remaining: max(int(tokens), 0),
		Reset:     now.Add(time.Duration((float64(lim.Amount) - tokens) * float64(every))),
	}
	if !allowed {
		d.RetryAfter = time.Duration((1 - tokens) * float64(every))
	}
	return d
}

// Middleware applies the default limits to every non-exempt request.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.mu.RLock()
		cfg, ready := l.cfg, l.ready
		_, exempt := l.exempt[r.URL.Path]
		l.mu.RUnlock()

		if !ready || !cfg.Enabled || exempt || len(cfg.DefaultLimits) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		if l.enforce(w, r, defaultScope, cfg.DefaultLimits) {
			next.ServeHTTP(w, r)
		}
	})
}

// Limit wraps a single route with its own limits. It panics on an invalid
// limit string so mistakes surface at route registration.
func (l *Limiter) Limit(spec string, next http.Handler) http.Handler {
	limits := MustParseLimits(spec)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.mu.RLock()
		enabled := l.ready && l.cfg.Enabled
		l.mu.RUnlock()
		if !enabled {
			next.ServeHTTP(w, r)
			return
		}

		scope := r.Pattern
		if scope == "" {
			scope = r.Method + " " + r.URL.Path
		}
		if l.enforce(w, r, scope, limits) {
			next.ServeHTTP(w, r)
		}
	})
}

func (l *Limiter) enforce(w http.ResponseWriter, r *http.Request, scope string, limits []Limit) bool {
	d, err := l.Check(r.Context(), scope, l.key(r), limits)
	if err != nil {
		requestsTotal.WithLabelValues(scope, resultError).Inc()
		l.log.Warn("ratelimit.storage.error", "scope", scope, "err", err)
		return true
	}

	l.mu.RLock()
	headers := l.cfg.HeadersEnabled
	l.mu.RUnlock()
	if headers && d.Limit.Amount > 0 {
		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit.Amount))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	}

	if d.Allowed {
		requestsTotal.WithLabelValues(scope, resultAllowed).Inc()
		return true
	}

	requestsTotal.WithLabelValues(scope, resultLimited).Inc()
	retry := int64(math.Ceil(d.RetryAfter.Seconds()))
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
	l.log.Info("ratelimit.exceeded", "scope", scope, "limit", d.Limit.String(), "path", strings.TrimSpace(r.URL.Path))
	web.WriteMsg(w, http.StatusTooManyRequests, "rate limit exceeded: "+d.Limit.String())
	return false
}
