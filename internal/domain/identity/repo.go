package identity

import (
	"context"
	"time"
)

// UserRepository persists user accounts. Users are not owned rows, so no
// method is scoped.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
	SetActive(ctx context.Context, id int64, active bool) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}
