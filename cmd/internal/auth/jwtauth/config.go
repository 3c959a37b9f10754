package jwtauth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"portal/cmd/internal/envx"
	"portal/cmd/internal/web"
)

// Location is where tokens are read from.
type Location string

const (
	LocationHeaders Location = "headers"
	LocationCookies Location = "cookies"
)

// MinSecretBytes is the minimum HS256 key size.
const MinSecretBytes = 32

// Config binds a Manager.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Leeway     time.Duration

	TokenLocations []Location
	HeaderName     string
	HeaderType     string

	AccessCookieName      string
	RefreshCookieName     string
	AccessCSRFCookieName  string
	RefreshCSRFCookieName string
	AccessCookiePath      string
	RefreshCookiePath     string
	CookieDomain          string
	CookieSecure          bool
	CookieSameSite        http.SameSite
	SessionCookie         bool

	CookieCSRFProtect     bool
	CSRFInCookies         bool
	CSRFCheckMethods      []string
	AccessCSRFHeaderName  string
	RefreshCSRFHeaderName string
}

// DefaultConfig returns the cookie layout the web client expects.
func DefaultConfig() Config {
	return Config{
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Issuer:     "portal",

		TokenLocations: []Location{LocationHeaders, LocationCookies},
		HeaderName:     "Authorization",
		HeaderType:     "Bearer",

		AccessCookieName:      "access_token_cookie",
		RefreshCookieName:     "refresh_token_cookie",
		AccessCSRFCookieName:  "csrf_access_token",
		RefreshCSRFCookieName: "csrf_refresh_token",
		AccessCookiePath:      "/",
		RefreshCookiePath:     "/",
		CookieSecure:          true,
		CookieSameSite:        http.SameSiteLaxMode,

		CookieCSRFProtect:     true,
		CSRFInCookies:         true,
		CSRFCheckMethods:      []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AccessCSRFHeaderName:  "X-CSRF-TOKEN",
		RefreshCSRFHeaderName: "X-CSRF-TOKEN",
	}
}

// LoadConfigFromEnv reads the JWT settings.
//
// Secret: PORTAL_JWT_SECRET_KEY, falling back to PORTAL_SECRET_KEY.
// Optional: PORTAL_JWT_ACCESS_TTL, PORTAL_JWT_REFRESH_TTL, PORTAL_JWT_ISSUER,
// PORTAL_JWT_LEEWAY, PORTAL_JWT_TOKEN_LOCATION (comma list), PORTAL_JWT_COOKIE_CSRF_PROTECT,
// PORTAL_JWT_SESSION_COOKIE, PORTAL_COOKIE_SECURE, PORTAL_COOKIE_SAMESITE, PORTAL_COOKIE_DOMAIN.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.Secret = []byte(envx.String("PORTAL_JWT_SECRET_KEY", envx.String("PORTAL_SECRET_KEY", "")))

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"PORTAL_JWT_ACCESS_TTL", &cfg.AccessTTL},
		{"PORTAL_JWT_REFRESH_TTL", &cfg.RefreshTTL},
		{"PORTAL_JWT_LEEWAY", &cfg.Leeway},
	}
	for _, d := range durations {
		v, err := envx.ParseDuration(d.key, *d.dst)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		*d.dst = v
	}

	cfg.Issuer = envx.String("PORTAL_JWT_ISSUER", cfg.Issuer)
	if locs := envx.List("PORTAL_JWT_TOKEN_LOCATION", nil); len(locs) > 0 {
		cfg.TokenLocations = nil
		for _, p := range locs {
			cfg.TokenLocations = append(cfg.TokenLocations, Location(strings.ToLower(p)))
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"PORTAL_JWT_COOKIE_CSRF_PROTECT", &cfg.CookieCSRFProtect},
		{"PORTAL_JWT_SESSION_COOKIE", &cfg.SessionCookie},
		{"PORTAL_COOKIE_SECURE", &cfg.CookieSecure},
	}
	for _, b := range bools {
		v, err := envx.ParseBool(b.key, *b.dst)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		*b.dst = v
	}

	cfg.CookieSameSite = web.ParseSameSite(envx.String("PORTAL_COOKIE_SAMESITE", ""))
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}
	cfg.CookieDomain = envx.String("PORTAL_COOKIE_DOMAIN", "")

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if len(c.Secret) < MinSecretBytes {
		return ErrConfig
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.RefreshTTL < c.AccessTTL {
		return ErrConfig
	}
	if c.Leeway < 0 || c.Leeway > 2*time.Minute {
		return ErrConfig
	}
	if len(c.TokenLocations) == 0 {
		return ErrConfig
	}
	for _, l := range c.TokenLocations {
		if l != LocationHeaders && l != LocationCookies {
			return ErrConfig
		}
	}
	return nil
}
