package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"portal/cmd/identity/ids"
)

// MemoryStore keeps users in process.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*UserAuth
	byEmail map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]*UserAuth{}, byEmail: map[string]string{}}
}

func (m *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	in, err := in.prepare(op)
	if err != nil {
		return User{}, err
	}
	id, err := ids.NewULID(in.Now)
	if err != nil {
		return User{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmail[in.Email]; taken {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	u := User{ID: id, Email: in.Email, Name: in.Name, Role: in.Role, CreatedAt: in.Now}
	m.byID[id] = &UserAuth{User: u, PasswordHash: in.PasswordHash}
	m.byEmail[in.Email] = id
	return u, nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ua, ok := m.byID[strings.TrimSpace(id)]
	if !ok {
		return User{}, NotFoundError{Op: "identity.GetUserByID", Resource: "user"}
	}
	return ua.User, nil
}

func (m *MemoryStore) GetUserAuthByEmail(_ context.Context, email string) (UserAuth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[NormalizeEmail(email)]
	if !ok {
		return UserAuth{}, NotFoundError{Op: "identity.GetUserAuthByEmail", Resource: "user"}
	}
	return *m.byID[id], nil
}

func (m *MemoryStore) UpdatePasswordHash(_ context.Context, userID, hash string, _ time.Time) error {
	const op = "identity.UpdatePasswordHash"
	if strings.TrimSpace(hash) == "" {
		return invalid(op, "password hash is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ua, ok := m.byID[userID]
	if !ok {
		return NotFoundError{Op: op, Resource: "user"}
	}
	ua.PasswordHash = hash
	return nil
}
