package identity

import (
	"strings"
	"time"

	"github.com/psiclinic/clinic/internal/platform/auth"
)

// User maps to the users table.
type User struct {
	ID           int64      `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Name         string     `db:"name" json:"name"`
	Role         string     `db:"role" json:"role"`
	CRP          *string    `db:"crp" json:"crp,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// Principal returns the request identity derived from the stored row.
func (u *User) Principal() auth.Principal {
	return auth.Principal{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// NormalizeEmail lowercases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     string  `json:"name"`
	Role     string  `json:"role"`
	CRP      *string `json:"crp,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// ChangePasswordRequest is the body of PUT /auth/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// SetActiveRequest is the body of PATCH /users/:id/active.
type SetActiveRequest struct {
	IsActive *bool `json:"isActive"`
}
