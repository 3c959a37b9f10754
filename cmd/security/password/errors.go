package password

import "errors"

// Public, stable errors for callers.
var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("weak password")
	ErrInvalidHash      = errors.New("invalid password hash")

	ErrNotInitialized     = errors.New("password: bcrypt not initialized")
	ErrAlreadyInitialized = errors.New("password: bcrypt already initialized")
)
