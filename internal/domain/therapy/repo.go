package therapy

import (
	"context"

	"github.com/psiclinic/clinic/internal/platform/auth"
)

// Repository persists therapy sessions. Reads, updates and deletes are
// scoped to the principal.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, pr auth.Principal, id int64) (*Session, error)
	Update(ctx context.Context, pr auth.Principal, s *Session) error
	Delete(ctx context.Context, pr auth.Principal, id int64) error
	List(ctx context.Context, pr auth.Principal, f ListFilter, limit, offset int) ([]*Session, int, error)
	// LinkedPayments counts payments referencing the session.
	LinkedPayments(ctx context.Context, sessionID int64) (int, error)
}
