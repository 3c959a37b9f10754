// Package token provides keyed hashing primitives for portal secrets at rest.
//
// It is the single source of truth for how refresh tokens are fingerprinted
// before they are persisted, and for the HMAC signatures used by CSRF tokens.
//
// Modes:
// - Keyed (production): HMAC-SHA256(value, key) when PORTAL_TOKEN_HMAC_KEY is set.
// - Unkeyed (dev): SHA-256(value) when no key is configured and policy allows it.
//
// Output of Hasher.Hex is always a 64-char lowercase hex string.
package token
