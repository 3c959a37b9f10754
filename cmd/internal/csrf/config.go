package csrf

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"portal/cmd/internal/envx"
	"portal/cmd/internal/web"
)

// Config controls token signing and the cookie/header transport.
type Config struct {
	Secret    []byte
	TimeLimit time.Duration // 0 disables expiry

	CookieName     string
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	HeaderNames []string
	Methods     []string
	Exempt      []string
}

// DefaultConfig returns the transport defaults expected by the web client.
func DefaultConfig() Config {
	return Config{
		TimeLimit:      time.Hour,
		CookieName:     "csrf_access_token",
		CookiePath:     "/",
		CookieSecure:   true,
		CookieSameSite: http.SameSiteLaxMode,
		HeaderNames:    []string{"X-CSRF-TOKEN", "X-CSRFToken"},
		Methods:        []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
	}
}

// LoadConfigFromEnv reads CSRF settings.
//
// Secret: PORTAL_CSRF_SECRET, falling back to PORTAL_SECRET_KEY.
// Optional: PORTAL_CSRF_TIME_LIMIT (duration, "0" disables), PORTAL_CSRF_COOKIE_NAME,
// PORTAL_COOKIE_SECURE, PORTAL_COOKIE_SAMESITE, PORTAL_COOKIE_DOMAIN,
// PORTAL_CSRF_EXEMPT (comma separated paths).
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.Secret = []byte(envx.String("PORTAL_CSRF_SECRET", envx.String("PORTAL_SECRET_KEY", "")))

	var err error
	if cfg.TimeLimit, err = envx.ParseDuration("PORTAL_CSRF_TIME_LIMIT", cfg.TimeLimit); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	cfg.CookieName = envx.String("PORTAL_CSRF_COOKIE_NAME", cfg.CookieName)
	cfg.CookieDomain = envx.String("PORTAL_COOKIE_DOMAIN", "")
	if cfg.CookieSecure, err = envx.ParseBool("PORTAL_COOKIE_SECURE", cfg.CookieSecure); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	cfg.CookieSameSite = web.ParseSameSite(envx.String("PORTAL_COOKIE_SAMESITE", ""))
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}
	cfg.Exempt = envx.List("PORTAL_CSRF_EXEMPT", nil)

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if len(c.Secret) < 32 {
		return ErrConfig
	}
	if c.TimeLimit < 0 || strings.TrimSpace(c.CookieName) == "" || len(c.HeaderNames) == 0 {
		return ErrConfig
	}
	return nil
}
