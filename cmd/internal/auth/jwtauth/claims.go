package jwtauth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims is the token payload. The subject carries the user identity.
type Claims struct {
	Type      string         `json:"type"`
	Fresh     bool           `json:"fresh"`
	CSRF      string         `json:"csrf,omitempty"`
	SessionID string         `json:"sid,omitempty"`
	Extra     map[string]any `json:"claims,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the token subject.
func (c *Claims) Identity() string { return c.Subject }

type claimsKey struct{}

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns claims stored by Required.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}
