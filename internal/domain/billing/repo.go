package billing

import (
	"context"

	"github.com/psiclinic/clinic/internal/platform/auth"
)

// Repository persists payments. Every read, update and delete is scoped to
// the principal.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, pr auth.Principal, id int64) (*Payment, error)
	Update(ctx context.Context, pr auth.Principal, p *Payment) error
	Delete(ctx context.Context, pr auth.Principal, id int64) error
	List(ctx context.Context, pr auth.Principal, f ListFilter, limit, offset int) ([]*Payment, int, error)
	// Totals groups the filtered payments by status.
	Totals(ctx context.Context, pr auth.Principal, f ListFilter) (map[string]StatusTotal, error)
}
