package ratelimit

import "errors"

var (
	ErrNotInitialized     = errors.New("ratelimit: not initialized")
	ErrAlreadyInitialized = errors.New("ratelimit: already initialized")
	ErrConfig             = errors.New("ratelimit: invalid config")
	ErrInvalidLimit       = errors.New("ratelimit: invalid limit")
	ErrStorage            = errors.New("ratelimit: storage unavailable")
)
