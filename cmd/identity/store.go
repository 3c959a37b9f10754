package identity

import (
	"context"
	"strings"
	"time"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// User is the portal's security principal.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAuth is a user together with its password hash. It never leaves the server.
type UserAuth struct {
	User
	PasswordHash string
}

// CreateUserInput describes a registration. PasswordHash is already computed.
type CreateUserInput struct {
	Email        string
	Name         string
	Role         string
	PasswordHash string
	Now          time.Time
}

// Store is the user persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string, now time.Time) error
}

// prepare validates and normalizes in.
func (in CreateUserInput) prepare(op string) (CreateUserInput, error) {
	in.Email = NormalizeEmail(in.Email)
	in.Name = NormalizeName(in.Name)
	in.Role = strings.TrimSpace(in.Role)
	if in.Role == "" {
		in.Role = RoleMember
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}

	switch {
	case in.Email == "" || !strings.Contains(in.Email, "@"):
		return in, invalid(op, "email is required")
	case in.Name == "":
		return in, invalid(op, "name is required")
	case strings.TrimSpace(in.PasswordHash) == "":
		return in, invalid(op, "password hash is required")
	case in.Role != RoleMember && in.Role != RoleAdmin:
		return in, invalid(op, "unknown role")
	}
	return in, nil
}
