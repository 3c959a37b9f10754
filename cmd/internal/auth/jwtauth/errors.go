package jwtauth

import (
	"errors"
	"net/http"

	"portal/cmd/internal/web"
)

// Error is a verification failure with a client-facing status and message.
type Error struct {
	Status int
	Msg    string
}

func (e *Error) Error() string { return e.Msg }

var (
	ErrNoToken         = &Error{http.StatusUnauthorized, "Missing JWT in headers or cookies"}
	ErrExpired         = &Error{http.StatusUnauthorized, "Token has expired"}
	ErrRevoked         = &Error{http.StatusUnauthorized, "Token has been revoked"}
	ErrFreshRequired   = &Error{http.StatusUnauthorized, "Fresh token required"}
	ErrAccessRequired  = &Error{http.StatusUnprocessableEntity, "Only non-refresh tokens are allowed"}
	ErrRefreshRequired = &Error{http.StatusUnprocessableEntity, "Only refresh tokens are allowed"}
	ErrInvalid         = &Error{http.StatusUnprocessableEntity, "Invalid token"}
	ErrCSRFMissing     = &Error{http.StatusForbidden, "Missing CSRF token"}
	ErrCSRFMismatch    = &Error{http.StatusForbidden, "CSRF double submit tokens do not match"}
)

var (
	ErrNotInitialized     = errors.New("jwtauth: not initialized")
	ErrAlreadyInitialized = errors.New("jwtauth: already initialized")
	ErrConfig             = errors.New("jwtauth: invalid config")
)

// StatusAndMessage maps err to the response a handler should send.
func StatusAndMessage(err error) (int, string) {
	var e *Error
	if errors.As(err, &e) {
		return e.Status, e.Msg
	}
	return http.StatusInternalServerError, "internal error"
}

// WriteError writes err as {"msg": ...}.
func WriteError(w http.ResponseWriter, err error) {
	status, msg := StatusAndMessage(err)
	web.WriteMsg(w, status, msg)
}
