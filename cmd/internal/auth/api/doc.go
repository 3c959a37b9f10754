// Package authapi exposes the portal's cookie based auth endpoints:
// csrf-token, register, login, logout, refresh and me.
//
// Tokens travel in HttpOnly cookies set by the JWT extension. The readable
// csrf_access_token cookie carries the CSRF value shared by the CSRF
// extension and the JWT double-submit check.
package authapi
