package csrf

import "errors"

// Validation errors. Their text is returned to clients verbatim and always
// mentions CSRF so the frontend can tell them apart from auth failures.
var (
	ErrTokenMissing   = errors.New("The CSRF token is missing.")
	ErrCookieMissing  = errors.New("The CSRF session token is missing.")
	ErrTokenInvalid   = errors.New("The CSRF token is invalid.")
	ErrTokenExpired   = errors.New("The CSRF token has expired.")
	ErrTokenMismatch  = errors.New("The CSRF tokens do not match.")
	ErrNotInitialized = errors.New("csrf: not initialized")

	ErrAlreadyInitialized = errors.New("csrf: already initialized")
	ErrConfig             = errors.New("csrf: invalid config")
)
