package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"portal/cmd/security/token"
)

// BlocklistLoader is an extra revocation check run after the blocklist, for
// example to reject tokens whose session was revoked.
type BlocklistLoader func(ctx context.Context, c *Claims) (bool, error)

// TokenOptions tunes a single issued token.
type TokenOptions struct {
	Now       time.Time
	Fresh     bool
	CSRF      string
	SessionID string
	ExpiresIn time.Duration
	Extra     map[string]any
}

// VerifyOptions selects what Verify accepts.
type VerifyOptions struct {
	Optional bool
	Fresh    bool
	Refresh  bool
}

// Manager is the JWT extension.
type Manager struct {
	mu        sync.RWMutex
	cfg       Config
	blocklist Blocklist
	loader    BlocklistLoader
	ready     bool
	csrfCheck map[string]struct{}

	now func() time.Time
}

// New returns an unbound manager.
func New() *Manager {
	return &Manager{now: time.Now}
}

// Init binds the manager. A nil blocklist selects an in-memory one.
func (m *Manager) Init(cfg Config, bl Blocklist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return ErrAlreadyInitialized
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	if bl == nil {
		bl = NewMemoryBlocklist(0, cfg.RefreshTTL+cfg.Leeway)
	}

	m.cfg = cfg
	m.cfg.Secret = append([]byte(nil), cfg.Secret...)
	m.blocklist = bl
	m.csrfCheck = make(map[string]struct{}, len(cfg.CSRFCheckMethods))
	for _, meth := range cfg.CSRFCheckMethods {
		m.csrfCheck[strings.ToUpper(meth)] = struct{}{}
	}
	m.ready = true
	return nil
}

// SetBlocklistLoader installs an additional revocation check.
func (m *Manager) SetBlocklistLoader(fn BlocklistLoader) {
	m.mu.Lock()
	m.loader = fn
	m.mu.Unlock()
}

func (m *Manager) snapshot() (Config, Blocklist, BlocklistLoader, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready {
		return Config{}, nil, nil, ErrNotInitialized
	}
	return m.cfg, m.blocklist, m.loader, nil
}

// Config returns the bound configuration.
func (m *Manager) Config() (Config, error) {
	cfg, _, _, err := m.snapshot()
	return cfg, err
}

// CreateAccessToken signs an access token for identity.
func (m *Manager) CreateAccessToken(identity string, opts TokenOptions) (string, *Claims, error) {
	return m.create(identity, TypeAccess, opts)
}

// CreateRefreshToken signs a refresh token for identity. Refresh tokens are never fresh.
func (m *Manager) CreateRefreshToken(identity string, opts TokenOptions) (string, *Claims, error) {
	opts.Fresh = false
	return m.create(identity, TypeRefresh, opts)
}

func (m *Manager) create(identity, typ string, opts TokenOptions) (string, *Claims, error) {
	cfg, _, _, err := m.snapshot()
	if err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(identity) == "" {
		return "", nil, fmt.Errorf("jwtauth: empty identity")
	}

	now := opts.Now
	if now.IsZero() {
		now = m.now()
	}
	ttl := opts.ExpiresIn
	if ttl <= 0 {
		ttl = cfg.AccessTTL
		if typ == TypeRefresh {
			ttl = cfg.RefreshTTL
		}
	}
	csrf := opts.CSRF
	if csrf == "" && cfg.CookieCSRFProtect {
		csrf = uuid.NewString()
	}

	c := &Claims{
		Type:      typ,
		Fresh:     opts.Fresh,
		CSRF:      csrf,
		SessionID: opts.SessionID,
		Extra:     opts.Extra,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(cfg.Secret)
	if err != nil {
		return "", nil, err
	}
	return signed, c, nil
}

// Decode verifies signature, issuer and time claims as of now.
func (m *Manager) Decode(raw string, now time.Time) (*Claims, error) {
	cfg, _, _, err := m.snapshot()
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	c := &Claims{}
	tok, err := jwt.NewParser(opts...).ParseWithClaims(raw, c, func(*jwt.Token) (any, error) {
		return cfg.Secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	case !tok.Valid:
		return nil, ErrInvalid
	}
	if c.Type != TypeAccess && c.Type != TypeRefresh {
		return nil, fmt.Errorf("%w: unknown type", ErrInvalid)
	}
	if c.ID == "" || c.Subject == "" {
		return nil, fmt.Errorf("%w: missing jti or sub", ErrInvalid)
	}
	return c, nil
}

// Verify locates, decodes and checks the request's token.
//
// With opts.Optional a request without any token yields (nil, nil); a present
// but bad token is still an error.
func (m *Manager) Verify(r *http.Request, opts VerifyOptions) (*Claims, error) {
	cfg, bl, loader, err := m.snapshot()
	if err != nil {
		return nil, err
	}

	raw, loc := m.locate(cfg, r, opts.Refresh)
	if raw == "" {
		if opts.Optional {
			return nil, nil
		}
		return nil, ErrNoToken
	}

	c, err := m.Decode(raw, m.now())
	if err != nil {
		return nil, err
	}

	switch {
	case opts.Refresh && c.Type != TypeRefresh:
		return nil, ErrRefreshRequired
	case !opts.Refresh && c.Type != TypeAccess:
		return nil, ErrAccessRequired
	}

	if loc == LocationCookies && cfg.CookieCSRFProtect {
		if err := m.checkCSRF(cfg, r, c, opts.Refresh); err != nil {
			return nil, err
		}
	}

	if opts.Fresh && !c.Fresh {
		return nil, ErrFreshRequired
	}

	revoked, err := bl.IsRevoked(r.Context(), c.ID)
	if err != nil {
		return nil, fmt.Errorf("jwtauth: blocklist: %w", err)
	}
	if !revoked && loader != nil {
		if revoked, err = loader(r.Context(), c); err != nil {
			return nil, fmt.Errorf("jwtauth: blocklist loader: %w", err)
		}
	}
	if revoked {
		return nil, ErrRevoked
	}
	return c, nil
}

// Token returns the raw JWT Verify would read from r.
func (m *Manager) Token(r *http.Request, refresh bool) (string, error) {
	cfg, _, _, err := m.snapshot()
	if err != nil {
		return "", err
	}
	raw, _ := m.locate(cfg, r, refresh)
	if raw == "" {
		return "", ErrNoToken
	}
	return raw, nil
}

func (m *Manager) locate(cfg Config, r *http.Request, refresh bool) (string, Location) {
	for _, loc := range cfg.TokenLocations {
		switch loc {
		case LocationHeaders:
			h := strings.TrimSpace(r.Header.Get(cfg.HeaderName))
			if h == "" {
				continue
			}
			if cfg.HeaderType == "" {
				return h, loc
			}
			prefix := cfg.HeaderType + " "
			if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
				return strings.TrimSpace(h[len(prefix):]), loc
			}
		case LocationCookies:
			name := cfg.AccessCookieName
			if refresh {
				name = cfg.RefreshCookieName
			}
			if ck, err := r.Cookie(name); err == nil && strings.TrimSpace(ck.Value) != "" {
				return strings.TrimSpace(ck.Value), loc
			}
		}
	}
	return "", ""
}

func (m *Manager) checkCSRF(cfg Config, r *http.Request, c *Claims, refresh bool) error {
	m.mu.RLock()
	_, check := m.csrfCheck[r.Method]
	m.mu.RUnlock()
	if !check {
		return nil
	}

	header := cfg.AccessCSRFHeaderName
	if refresh {
		header = cfg.RefreshCSRFHeaderName
	}
	got := strings.TrimSpace(r.Header.Get(header))
	if got == "" {
		return ErrCSRFMissing
	}
	if c.CSRF == "" || !token.Equal(got, c.CSRF) {
		return ErrCSRFMismatch
	}
	return nil
}

// Required guards next. Verified claims are available via ClaimsFromContext.
func (m *Manager) Required(opts VerifyOptions, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := m.Verify(r, opts)
		if err != nil {
			WriteError(w, err)
			return
		}
		if c != nil {
			r = r.WithContext(WithClaims(r.Context(), c))
		}
		next.ServeHTTP(w, r)
	})
}

// Revoke blocklists c until its expiry.
func (m *Manager) Revoke(ctx context.Context, c *Claims) error {
	_, bl, _, err := m.snapshot()
	if err != nil {
		return err
	}
	if c == nil || c.ExpiresAt == nil {
		return nil
	}
	return bl.Revoke(ctx, c.ID, c.ExpiresAt.Time.Sub(m.now())+time.Second)
}

// IsRevoked reports whether the token id is blocklisted.
func (m *Manager) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, bl, _, err := m.snapshot()
	if err != nil {
		return false, err
	}
	return bl.IsRevoked(ctx, jti)
}
