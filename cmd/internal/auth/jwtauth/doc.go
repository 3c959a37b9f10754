// Package jwtauth is the portal's JWT manager extension.
//
// It issues HS256 access and refresh tokens, reads them from the Authorization
// header or from cookies, enforces the cookie double-submit CSRF check and
// consults a blocklist on every verification. Failures are *Error values that
// carry the HTTP status and the {"msg": ...} text sent to clients.
package jwtauth
