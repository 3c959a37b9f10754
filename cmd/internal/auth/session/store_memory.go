package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process. It backs the service when no
// database is configured and in tests.
type MemoryStore struct {
	mu     sync.Mutex
	rows   map[string]*Row
	byHash map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[string]*Row{}, byHash: map[string]string{}}
}

func (m *MemoryStore) Create(_ context.Context, now time.Time, s NewSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(now, s)
	return nil
}

func (m *MemoryStore) insertLocked(now time.Time, s NewSession) {
	used := now
	m.rows[s.ID] = &Row{
		ID:               s.ID,
		UserID:           s.UserID,
		RefreshTokenHash: s.RefreshHash,
		CreatedAt:        now,
		LastUsedAt:       &used,
		ExpiresAt:        s.ExpiresAt,
	}
	m.byHash[s.RefreshHash] = s.ID
}

func (m *MemoryStore) GetByID(_ context.Context, sessionID string) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[sessionID]
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	return *r, nil
}

func (m *MemoryStore) Rotate(_ context.Context, now time.Time, oldHash string, next NewSession, check func(Row) error) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byHash[oldHash]
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	old := m.rows[id]

	if old.RevokedAt != nil && old.ReplacedBySessionID != nil {
		m.revokeAllLocked(now, old.UserID, "reuse_detected")
		return Row{}, ErrRefreshReuseDetected
	}
	if old.RevokedAt != nil {
		return Row{}, ErrSessionRevoked
	}
	if check != nil {
		if err := check(*old); err != nil {
			return Row{}, err
		}
	}

	next.UserID = old.UserID
	m.insertLocked(now, next)

	reason := "rotation"
	replaced := next.ID
	ts := now
	old.LastUsedAt = &ts
	old.RevokedAt = &ts
	old.ReplacedBySessionID = &replaced
	old.RevocationReason = &reason

	return *m.rows[next.ID], nil
}

func (m *MemoryStore) Touch(_ context.Context, now time.Time, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[sessionID]; ok {
		ts := now
		r.LastUsedAt = &ts
	}
	return nil
}

func (m *MemoryStore) Revoke(_ context.Context, now time.Time, sessionID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[sessionID]; ok {
		revoke(r, now, reason)
	}
	return nil
}

func (m *MemoryStore) RevokeAll(_ context.Context, now time.Time, userID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokeAllLocked(now, userID, reason)
	return nil
}

func (m *MemoryStore) revokeAllLocked(now time.Time, userID, reason string) {
	for _, r := range m.rows {
		if r.UserID == userID {
			revoke(r, now, reason)
		}
	}
}

// revoke keeps the first revocation time and reason.
func revoke(r *Row, now time.Time, reason string) {
	if r.RevokedAt == nil {
		ts := now
		r.RevokedAt = &ts
	}
	if r.RevocationReason == nil {
		rs := reason
		r.RevocationReason = &rs
	}
}
