package scheduling

import (
	"context"
	"time"

	"github.com/psiclinic/clinic/internal/platform/auth"
)

// Repository persists appointments. Reads, updates and deletes are scoped
// to the principal; Candidates and LockOwner work on an owner id because the
// no-overlap invariant is per owner.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, pr auth.Principal, id int64) (*Appointment, error)
	Update(ctx context.Context, pr auth.Principal, a *Appointment) error
	Delete(ctx context.Context, pr auth.Principal, id int64) error
	List(ctx context.Context, pr auth.Principal, f ListFilter, limit, offset int) ([]*Appointment, int, error)
	Upcoming(ctx context.Context, pr auth.Principal, from, to time.Time, limit int) ([]*Appointment, error)

	// Candidates returns the non-cancelled appointments of ownerID starting
	// strictly between from and to.
	Candidates(ctx context.Context, ownerID int64, from, to time.Time) ([]Booking, error)
	// LockOwner serializes bookings of one owner until the surrounding
	// transaction ends.
	LockOwner(ctx context.Context, ownerID int64) error
}
