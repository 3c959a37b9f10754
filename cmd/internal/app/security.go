package app

import (
	"bytes"
	"errors"
	"fmt"

	"portal/cmd/internal/ext"
	"portal/cmd/security/token"
)

// ValidateSecurityConfig enforces the portal's security policy at startup.
// Fail-fast: a weaker runtime is never started silently.
func ValidateSecurityConfig(cfg Config, ec ext.Config) error {
	if cfg.RequireTokenHMAC {
		if _, err := token.HMACKeyFromEnv(token.MinHMACKeyBytes); err != nil {
			switch {
			case errors.Is(err, token.ErrHMACKeyMissing):
				return errors.New("security policy: PORTAL_REQUIRE_TOKEN_HMAC=true but PORTAL_TOKEN_HMAC_KEY is missing")
			case errors.Is(err, token.ErrHMACKeyTooShort):
				return fmt.Errorf("security policy: PORTAL_REQUIRE_TOKEN_HMAC=true but PORTAL_TOKEN_HMAC_KEY is too short (min %d bytes)", token.MinHMACKeyBytes)
			default:
				return err
			}
		}
	}

	if cfg.CORSAllowCredentials {
		for _, o := range cfg.CORSAllowedOrigins {
			if o == "*" {
				return errors.New("security policy: wildcard CORS origin cannot be combined with credentials")
			}
		}
	}

	if !cfg.Production() {
		return nil
	}
	if !ec.JWT.CookieSecure || !ec.CSRF.CookieSecure {
		return errors.New("security policy: cookies must be Secure in production")
	}
	if !ec.JWT.CookieCSRFProtect {
		return errors.New("security policy: PORTAL_JWT_COOKIE_CSRF_PROTECT cannot be disabled in production")
	}
	if bytes.Equal(ec.JWT.Secret, ec.CSRF.Secret) {
		return errors.New("security policy: JWT and CSRF secrets must differ in production")
	}
	if !cfg.RequireTokenHMAC {
		return errors.New("security policy: PORTAL_REQUIRE_TOKEN_HMAC must be true in production")
	}
	return nil
}
