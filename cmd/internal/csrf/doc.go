// Package csrf implements the portal's CSRF protection extension.
//
// Tokens are stateless and signed: nonce.issued_at.signature, where the
// signature is HMAC-SHA256 over "nonce.issued_at" under the configured secret.
// The browser receives the token in a readable cookie and echoes it in a
// request header (double submit). The middleware checks that the header token
// is present, authentic, not older than TimeLimit, and equal to the cookie.
package csrf
