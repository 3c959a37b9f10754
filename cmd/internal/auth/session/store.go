package session

import (
	"context"
	"net"
	"time"
)

// DeviceContext describes the client that owns a session.
type DeviceContext struct {
	UserAgent string
	IP        net.IP
}

// NewSession is a session row about to be inserted. The id is chosen by the
// caller because it is embedded in the tokens before the row exists.
type NewSession struct {
	ID          string
	UserID      string
	RefreshHash string
	ExpiresAt   time.Time
	Device      DeviceContext
}

// Row mirrors a portal.sessions row.
type Row struct {
	ID                  string
	UserID              string
	RefreshTokenHash    string
	CreatedAt           time.Time
	LastUsedAt          *time.Time
	ExpiresAt           time.Time
	RevokedAt           *time.Time
	ReplacedBySessionID *string
	RevocationReason    *string
}

// Active reports whether the row can still authorize requests at now.
func (r Row) Active(now time.Time) bool {
	return r.RevokedAt == nil && r.ReplacedBySessionID == nil && r.ExpiresAt.After(now)
}

// Store abstracts persistence for session state.
type Store interface {
	Create(ctx context.Context, now time.Time, s NewSession) error
	GetByID(ctx context.Context, sessionID string) (Row, error)

	// Rotate atomically replaces the session holding oldHash with next.
	//
	// With the old row locked it returns ErrSessionNotFound for an unknown
	// hash, revokes every session of the owner and returns
	// ErrRefreshReuseDetected for an already rotated row, returns
	// ErrSessionRevoked for a revoked row, and otherwise runs check (which may
	// veto with an error) before inserting next and marking the old row
	// rotated. next.UserID is taken from the old row.
	Rotate(ctx context.Context, now time.Time, oldHash string, next NewSession, check func(Row) error) (Row, error)

	Touch(ctx context.Context, now time.Time, sessionID string) error
	Revoke(ctx context.Context, now time.Time, sessionID string, reason string) error
	RevokeAll(ctx context.Context, now time.Time, userID string, reason string) error
}
