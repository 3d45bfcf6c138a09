package patient

import (
	"context"
	"time"

	"github.com/psiclinic/clinic/internal/platform/auth"
)

// Repository persists patients. Every read, update and delete is scoped to
// the principal; an out-of-scope id behaves as a missing one.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, pr auth.Principal, id int64) (*Patient, error)
	Update(ctx context.Context, pr auth.Principal, p *Patient) error
	List(ctx context.Context, pr auth.Principal, f ListFilter, limit, offset int) ([]*Patient, int, error)
	Search(ctx context.Context, pr auth.Principal, query string, limit int) ([]*Patient, error)
	Stats(ctx context.Context, pr auth.Principal, id int64, now time.Time) (*Stats, error)

	// Cascade steps. They must run inside one transaction.
	LockForDelete(ctx context.Context, pr auth.Principal, id int64) (*Patient, error)
	DeleteSessions(ctx context.Context, patientID int64) (int, error)
	DeleteAppointments(ctx context.Context, patientID int64) (int, error)
	DeletePayments(ctx context.Context, patientID int64) (int, error)
	Delete(ctx context.Context, id int64) error
}
