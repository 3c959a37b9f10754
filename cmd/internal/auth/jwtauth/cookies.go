package jwtauth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SetAccessCookies stores an access token and, when enabled, its CSRF value.
func (m *Manager) SetAccessCookies(w http.ResponseWriter, raw string) error {
	cfg, _, _, err := m.snapshot()
	if err != nil {
		return err
	}
	return m.setCookies(w, cfg, raw, cfg.AccessCookieName, cfg.AccessCSRFCookieName, cfg.AccessCookiePath)
}

// SetRefreshCookies stores a refresh token and, when enabled, its CSRF value.
func (m *Manager) SetRefreshCookies(w http.ResponseWriter, raw string) error {
	cfg, _, _, err := m.snapshot()
	if err != nil {
		return err
	}
	return m.setCookies(w, cfg, raw, cfg.RefreshCookieName, cfg.RefreshCSRFCookieName, cfg.RefreshCookiePath)
}

func (m *Manager) setCookies(w http.ResponseWriter, cfg Config, raw, name, csrfName, path string) error {
	// The token was just minted by this manager; only exp and csrf are read.
	c := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	maxAge := 0
	if !cfg.SessionCookie && c.ExpiresAt != nil {
		maxAge = int(c.ExpiresAt.Time.Sub(m.now()).Seconds())
		if maxAge <= 0 {
			maxAge = -1
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    raw,
		Path:     path,
		Domain:   cfg.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: cfg.CookieSameSite,
	})

	if cfg.CookieCSRFProtect && cfg.CSRFInCookies && c.CSRF != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     csrfName,
			Value:    c.CSRF,
			Path:     "/",
			Domain:   cfg.CookieDomain,
			MaxAge:   maxAge,
			HttpOnly: false,
			Secure:   cfg.CookieSecure,
			SameSite: cfg.CookieSameSite,
		})
	}
	return nil
}

// UnsetJWTCookies expires every cookie the manager sets.
func (m *Manager) UnsetJWTCookies(w http.ResponseWriter) {
	m.UnsetAccessCookies(w)
	m.UnsetRefreshCookies(w)
}

func (m *Manager) UnsetAccessCookies(w http.ResponseWriter) {
	cfg, _, _, err := m.snapshot()
	if err != nil {
		return
	}
	expire(w, cfg, cfg.AccessCookieName, cfg.AccessCookiePath, true)
	if cfg.CookieCSRFProtect && cfg.CSRFInCookies {
		expire(w, cfg, cfg.AccessCSRFCookieName, "/", false)
	}
}

func (m *Manager) UnsetRefreshCookies(w http.ResponseWriter) {
	cfg, _, _, err := m.snapshot()
	if err != nil {
		return
	}
	expire(w, cfg, cfg.RefreshCookieName, cfg.RefreshCookiePath, true)
	if cfg.CookieCSRFProtect && cfg.CSRFInCookies {
		expire(w, cfg, cfg.RefreshCSRFCookieName, "/", false)
	}
}

func expire(w http.ResponseWriter, cfg Config, name, path string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: httpOnly,
		Secure:   cfg.CookieSecure,
		SameSite: cfg.CookieSameSite,
	})
}

// CSRFFromCookie returns the csrf claim of a valid access (or, with refresh
// set, refresh) cookie token. It does not consult the blocklist.
func (m *Manager) CSRFFromCookie(r *http.Request, refresh bool) (string, bool) {
	cfg, _, _, err := m.snapshot()
	if err != nil {
		return "", false
	}
	name, want := cfg.AccessCookieName, TypeAccess
	if refresh {
		name, want = cfg.RefreshCookieName, TypeRefresh
	}
	ck, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	c, err := m.Decode(ck.Value, m.now())
	if err != nil || c.Type != want || c.CSRF == "" {
		return "", false
	}
	return c.CSRF, true
}
