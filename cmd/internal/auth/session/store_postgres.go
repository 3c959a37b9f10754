package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"portal/cmd/internal/database"
)

// PostgresStore implements Store using PostgreSQL (portal.sessions).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store. The pool is owned by the caller.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const selectRow = `
	SELECT
		id, user_id, refresh_token_hash,
		created_at, last_used_at, expires_at, revoked_at,
		replaced_by_session_id, revocation_reason
	FROM portal.sessions
`

func scanRow(row pgx.Row) (Row, error) {
	var r Row
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.RefreshTokenHash,
		&r.CreatedAt,
		&r.LastUsedAt,
		&r.ExpiresAt,
		&r.RevokedAt,
		&r.ReplacedBySessionID,
		&r.RevocationReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrSessionNotFound
	}
	return r, err
}

// Create inserts a new session row.
func (s *PostgresStore) Create(ctx context.Context, now time.Time, in NewSession) error {
	_, err := s.pool.Exec(ctx, insertSQL, insertArgs(now, in)...)
	return err
}

const insertSQL = `
	INSERT INTO portal.sessions (
		id, user_id, refresh_token_hash,
		created_at, last_used_at, expires_at,
		user_agent, ip
	) VALUES ($1, $2, $3, $4, $4, $5, $6, $7)
`

func insertArgs(now time.Time, in NewSession) []any {
	var ip any
	if in.Device.IP != nil {
		ip = in.Device.IP
	}
	return []any{in.ID, in.UserID, in.RefreshHash, now, in.ExpiresAt, nullIfEmpty(in.Device.UserAgent), ip}
}

// GetByID loads a session row by ID.
func (s *PostgresStore) GetByID(ctx context.Context, sessionID string) (Row, error) {
	return scanRow(s.pool.QueryRow(ctx, selectRow+` WHERE id = $1`, sessionID))
}

// Rotate runs the whole rotation in one transaction, serialized on the old
// row via SELECT ... FOR UPDATE.
func (s *PostgresStore) Rotate(ctx context.Context, now time.Time, oldHash string, next NewSession, check func(Row) error) (Row, error) {
	var out Row
	var reuse bool

	err := database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		old, err := scanRow(tx.QueryRow(ctx, selectRow+` WHERE refresh_token_hash = $1 FOR UPDATE`, oldHash))
		if err != nil {
			return err
		}

		if old.RevokedAt != nil && old.ReplacedBySessionID != nil {
			// Commit the revocation, then report reuse.
			reuse = true
			_, err := tx.Exec(ctx, `
				UPDATE portal.sessions
				SET revoked_at = COALESCE(revoked_at, $2),
				    revocation_reason = COALESCE(revocation_reason, 'reuse_detected')
				WHERE user_id = $1
			`, old.UserID, now)
			return err
		}
		if old.RevokedAt != nil {
			return ErrSessionRevoked
		}
		if check != nil {
			if err := check(old); err != nil {
				return err
			}
		}

		next.UserID = old.UserID
		if _, err := tx.Exec(ctx, insertSQL, insertArgs(now, next)...); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE portal.sessions
			SET
				last_used_at = $2,
				revoked_at = $2,
				replaced_by_session_id = $3,
				revocation_reason = 'rotation'
			WHERE id = $1
		`, old.ID, now, next.ID); err != nil {
			return err
		}

		out, err = scanRow(tx.QueryRow(ctx, selectRow+` WHERE id = $1`, next.ID))
		return err
	})
	if err != nil {
		return Row{}, err
	}
	if reuse {
		return Row{}, ErrRefreshReuseDetected
	}
	return out, nil
}

// Touch updates last_used_at for a session.
func (s *PostgresStore) Touch(ctx context.Context, now time.Time, sessionID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE portal.sessions
		SET last_used_at = $2
		WHERE id = $1
	`, sessionID, now)
	return err
}

// Revoke revokes a single session (idempotent).
func (s *PostgresStore) Revoke(ctx context.Context, now time.Time, sessionID string, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE portal.sessions
		SET revoked_at = COALESCE(revoked_at, $2),
		    revocation_reason = COALESCE(revocation_reason, $3)
		WHERE id = $1
	`, sessionID, now, reason)
	return err
}

// RevokeAll revokes all sessions for a user (idempotent).
func (s *PostgresStore) RevokeAll(ctx context.Context, now time.Time, userID string, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE portal.sessions
		SET revoked_at = COALESCE(revoked_at, $2),
		    revocation_reason = COALESCE(revocation_reason, $3)
		WHERE user_id = $1
	`, userID, now, reason)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
