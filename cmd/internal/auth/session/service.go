package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"portal/cmd/internal/auth/jwtauth"
	"portal/cmd/security/token"
)

// CSRFSource mints the CSRF value shared by an access/refresh pair.
type CSRFSource interface {
	GenerateToken(now time.Time) (string, error)
}

// Service implements the high-level session operations.
//
// It issues sessions (access + refresh), validates access tokens, supports
// per-session and per-user revocation, and performs refresh rotation with
// reuse detection.
type Service struct {
	cfg    Config
	store  Store
	tokens *jwtauth.Manager
	hasher token.Hasher
	csrf   CSRFSource
}

// Issued is the result of issuing or rotating a session.
type Issued struct {
	SessionID     string
	UserID        string
	CSRF          string
	AccessToken   string
	AccessClaims  *jwtauth.Claims
	RefreshToken  string
	RefreshClaims *jwtauth.Claims
}

// NewService wires the store, JWT manager and refresh hasher. csrf may be nil,
// in which case the JWT manager picks the pair's CSRF value.
func NewService(cfg Config, store Store, tokens *jwtauth.Manager, hasher token.Hasher, csrf CSRFSource) *Service {
	return &Service{cfg: cfg, store: store, tokens: tokens, hasher: hasher, csrf: csrf}
}

func (s *Service) mint(now time.Time, userID, sessionID string, fresh bool) (Issued, error) {
	var csrf string
	if s.csrf != nil {
		var err error
		if csrf, err = s.csrf.GenerateToken(now); err != nil {
			return Issued{}, err
		}
	}

	access, ac, err := s.tokens.CreateAccessToken(userID, jwtauth.TokenOptions{
		Now: now, Fresh: fresh, CSRF: csrf, SessionID: sessionID,
	})
	if err != nil {
		return Issued{}, err
	}
	refresh, rc, err := s.tokens.CreateRefreshToken(userID, jwtauth.TokenOptions{
		Now: now, CSRF: ac.CSRF, SessionID: sessionID,
	})
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		SessionID:     sessionID,
		UserID:        userID,
		CSRF:          ac.CSRF,
		AccessToken:   access,
		AccessClaims:  ac,
		RefreshToken:  refresh,
		RefreshClaims: rc,
	}, nil
}

// IssueSession creates a session row and returns a fresh token pair.
//
// Only the hash of the refresh JWT is persisted.
func (s *Service) IssueSession(ctx context.Context, now time.Time, userID string, dev DeviceContext) (Issued, error) {
	if strings.TrimSpace(userID) == "" {
		return Issued{}, ErrInvalidToken
	}

	out, err := s.mint(now, userID, ulid.Make().String(), true)
	if err != nil {
		return Issued{}, err
	}

	err = s.store.Create(ctx, now, NewSession{
		ID:          out.SessionID,
		UserID:      userID,
		RefreshHash: s.hasher.Hex(out.RefreshToken),
		ExpiresAt:   out.RefreshClaims.ExpiresAt.Time,
		Device:      dev,
	})
	if err != nil {
		return Issued{}, err
	}
	return out, nil
}

// ValidateAccess verifies an access JWT and ensures the backing session is active.
func (s *Service) ValidateAccess(ctx context.Context, raw string, now time.Time) (*jwtauth.Claims, error) {
	c, err := s.tokens.Decode(raw, now)
	if err != nil {
		return nil, err
	}
	if c.Type != jwtauth.TypeAccess {
		return nil, jwtauth.ErrAccessRequired
	}

	revoked, err := s.tokens.IsRevoked(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrSessionRevoked
	}
	if err := s.checkSession(ctx, c, now); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) checkSession(ctx context.Context, c *jwtauth.Claims, now time.Time) error {
	if c.SessionID == "" {
		return ErrInvalidToken
	}
	row, err := s.store.GetByID(ctx, c.SessionID)
	if err != nil {
		return err
	}
	if row.UserID != c.Subject {
		return ErrInvalidToken
	}
	if row.RevokedAt != nil || row.ReplacedBySessionID != nil {
		return ErrSessionRevoked
	}
	if !row.ExpiresAt.After(now) {
		return ErrSessionExpired
	}
	return nil
}

// TokenRevoked is installed as the JWT manager's blocklist loader. Access
// tokens are revoked with their session; refresh tokens are judged by
// RotateRefresh so that reuse can be detected.
func (s *Service) TokenRevoked(ctx context.Context, c *jwtauth.Claims) (bool, error) {
	if c.Type == jwtauth.TypeRefresh {
		return false, nil
	}
	err := s.checkSession(ctx, c, time.Now())
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrSessionRevoked),
		errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrInvalidToken):
		return true, nil
	default:
		return false, err
	}
}

// RotateRefresh exchanges a refresh JWT for a new pair.
//
// A rotated token presented again revokes all sessions of its owner and
// returns ErrRefreshReuseDetected.
func (s *Service) RotateRefresh(ctx context.Context, now time.Time, raw string, dev DeviceContext) (Issued, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > 4096 {
		return Issued{}, ErrSessionNotFound
	}

	c, err := s.tokens.Decode(raw, now)
	if err != nil {
		return Issued{}, err
	}
	if c.Type != jwtauth.TypeRefresh {
		return Issued{}, jwtauth.ErrRefreshRequired
	}

	next, err := s.mint(now, c.Subject, ulid.Make().String(), false)
	if err != nil {
		return Issued{}, err
	}

	_, err = s.store.Rotate(ctx, now, s.hasher.Hex(raw), NewSession{
		ID:          next.SessionID,
		RefreshHash: s.hasher.Hex(next.RefreshToken),
		ExpiresAt:   next.RefreshClaims.ExpiresAt.Time,
		Device:      dev,
	}, func(old Row) error {
		if old.UserID != c.Subject || old.ID != c.SessionID {
			return ErrInvalidToken
		}
		if !old.ExpiresAt.After(now) {
			return ErrSessionExpired
		}
		if gap := s.cfg.RefreshMinInterval; gap > 0 && old.LastUsedAt != nil {
			if wait := old.LastUsedAt.Add(gap).Sub(now); wait > 0 {
				return RefreshRateLimitError{SessionID: old.ID, RetryAfter: wait}
			}
		}
		return nil
	})
	if err != nil {
		return Issued{}, err
	}
	return next, nil
}

// RevokeSession revokes a single session (logout from one device).
func (s *Service) RevokeSession(ctx context.Context, now time.Time, sessionID string) error {
	return s.store.Revoke(ctx, now, sessionID, "logout")
}

// RevokeAll revokes all sessions for a user.
func (s *Service) RevokeAll(ctx context.Context, now time.Time, userID string) error {
	return s.store.RevokeAll(ctx, now, userID, "logout_all")
}

// TouchSession updates last_used_at for a session (best-effort).
func (s *Service) TouchSession(ctx context.Context, now time.Time, sessionID string) error {
	return s.store.Touch(ctx, now, sessionID)
}
