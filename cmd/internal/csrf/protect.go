package csrf

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"portal/cmd/internal/web"
	"portal/cmd/security/token"
)

const nonceBytes = 32

// Protect is the CSRF extension. Build it with New, bind it with Init.
type Protect struct {
	mu    sync.RWMutex
	cfg   Config
	ready bool

	methods map[string]struct{}
	exempt  map[string]struct{}
}

// New returns an unbound Protect.
func New() *Protect {
	return &Protect{
		methods: map[string]struct{}{},
		exempt:  map[string]struct{}{},
	}
}

// Init binds p to cfg.
func (p *Protect) Init(cfg Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready {
		return ErrAlreadyInitialized
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	p.cfg = cfg
	p.cfg.Secret = append([]byte(nil), cfg.Secret...)
	for _, m := range cfg.Methods {
		p.methods[strings.ToUpper(strings.TrimSpace(m))] = struct{}{}
	}
	for _, path := range cfg.Exempt {
		p.exempt[path] = struct{}{}
	}
	p.ready = true
	return nil
}

// Exempt removes path from protection. It may be called before or after Init.
func (p *Protect) Exempt(path string) {
	p.mu.Lock()
	p.exempt[path] = struct{}{}
	p.mu.Unlock()
}

func (p *Protect) snapshot() (Config, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg, p.ready
}

// GenerateToken mints a signed token stamped with now.
func (p *Protect) GenerateToken(now time.Time) (string, error) {
	cfg, ok := p.snapshot()
	if !ok {
		return "", ErrNotInitialized
	}

	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(b) + "." + strconv.FormatInt(now.Unix(), 10)
	return payload + "." + sign(cfg.Secret, payload), nil
}

// ValidateToken checks authenticity and age of tok.
func (p *Protect) ValidateToken(tok string, now time.Time) error {
	cfg, ok := p.snapshot()
	if !ok {
		return ErrNotInitialized
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return ErrTokenMissing
	}

	parts := strings.Split(tok, ".")
	if len(parts) != 3 || parts[0] == "" {
		return ErrTokenInvalid
	}
	payload := parts[0] + "." + parts[1]
	if !token.Equal(sign(cfg.Secret, payload), parts[2]) {
		return ErrTokenInvalid
	}

	issued, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ErrTokenInvalid
	}
	if cfg.TimeLimit > 0 && now.Sub(time.Unix(issued, 0)) > cfg.TimeLimit {
		return ErrTokenExpired
	}
	return nil
}

// Protected reports whether r must carry a valid token.
func (p *Protect) Protected(r *http.Request) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.ready {
		return false
	}
	if _, ok := p.methods[r.Method]; !ok {
		return false
	}
	_, exempt := p.exempt[r.URL.Path]
	return !exempt
}

// Check runs the double-submit validation for a single request.
func (p *Protect) Check(r *http.Request, now time.Time) error {
	cfg, ok := p.snapshot()
	if !ok {
		return ErrNotInitialized
	}

	headerTok := p.TokenFromHeader(r)
	if headerTok == "" {
		return ErrTokenMissing
	}
	if err := p.ValidateToken(headerTok, now); err != nil {
		return err
	}

	c, err := r.Cookie(cfg.CookieName)
	if err != nil || strings.TrimSpace(c.Value) == "" {
		return ErrCookieMissing
	}
	if !token.Equal(strings.TrimSpace(c.Value), headerTok) {
		return ErrTokenMismatch
	}
	return nil
}

// Middleware rejects protected requests that fail Check with 403.
func (p *Protect) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.Protected(r) {
			if err := p.Check(r, time.Now().UTC()); err != nil {
				web.WriteMsg(w, http.StatusForbidden, err.Error())
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// TokenFromHeader returns the first non-empty configured header value.
func (p *Protect) TokenFromHeader(r *http.Request) string {
	cfg, _ := p.snapshot()
	for _, h := range cfg.HeaderNames {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return v
		}
	}
	return ""
}

// TokenFromCookie returns the cookie token if it is still valid.
func (p *Protect) TokenFromCookie(r *http.Request, now time.Time) (string, bool) {
	cfg, ok := p.snapshot()
	if !ok {
		return "", false
	}
	c, err := r.Cookie(cfg.CookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if p.ValidateToken(v, now) != nil {
		return "", false
	}
	return v, true
}

// SetCookie stores tok in the readable CSRF cookie.
func (p *Protect) SetCookie(w http.ResponseWriter, tok string) {
	cfg, ok := p.snapshot()
	if !ok {
		return
	}
	c := &http.Cookie{
		Name:     cfg.CookieName,
		Value:    tok,
		Path:     cfg.CookiePath,
		Domain:   cfg.CookieDomain,
		HttpOnly: false,
		Secure:   cfg.CookieSecure,
		SameSite: cfg.CookieSameSite,
	}
	if cfg.TimeLimit > 0 {
		c.MaxAge = int(cfg.TimeLimit.Seconds())
	}
	http.SetCookie(w, c)
}

// ClearCookie expires the CSRF cookie.
func (p *Protect) ClearCookie(w http.ResponseWriter) {
	cfg, ok := p.snapshot()
	if !ok {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     cfg.CookiePath,
		Domain:   cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		Secure:   cfg.CookieSecure,
		SameSite: cfg.CookieSameSite,
	})
}

func sign(secret []byte, payload string) string {
	return base64.RawURLEncoding.EncodeToString(token.Sign(secret, []byte(payload)))
}
