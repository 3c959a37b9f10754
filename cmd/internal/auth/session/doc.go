// Package session implements the portal's refresh sessions.
//
// Each login creates a session row holding the hash of its refresh JWT. The
// access and refresh tokens of one issue share a session id (sid claim) and a
// CSRF value. Refreshing rotates the pair: the old row is revoked and linked
// to its replacement, so presenting a rotated refresh token again is detected
// as reuse and revokes every session of the user.
package session
