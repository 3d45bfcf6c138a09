package scheduling

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/psiclinic/clinic/internal/domain/patient"
	"github.com/psiclinic/clinic/internal/domain/therapy"
	"github.com/psiclinic/clinic/internal/platform/apperr"
	"github.com/psiclinic/clinic/internal/platform/auth"
	"github.com/psiclinic/clinic/internal/platform/db"
)

const (
	// UpcomingWindow is how far ahead GET /appointments/upcoming looks.
	UpcomingWindow = 7 * 24 * time.Hour
	upcomingLimit  = 50
)

// PatientReader resolves a patient under the caller's scope.
type PatientReader interface {
	GetByID(ctx context.Context, pr auth.Principal, id int64) (*patient.Patient, error)
}

type Service struct {
	repo     Repository
	patients PatientReader
	tx       db.Transactor
	rule     ConflictRule
	now      func() time.Time
}

func NewService(repo Repository, patients PatientReader, tx db.Transactor, rule ConflictRule) *Service {
	return &Service{repo: repo, patients: patients, tx: tx, rule: rule, now: time.Now}
}

// Rule returns the conflict rule in effect.
func (s *Service) Rule() ConflictRule { return s.rule }

// Input carries the writable fields of an appointment. Nil fields are left
// unchanged on update.
type Input struct {
	PatientID    *int64     `json:"patientId"`
	Date         *time.Time `json:"date"`
	Duration     *int       `json:"duration"`
	Type         *string    `json:"type"`
	Status       *string    `json:"status"`
	Notes        *string    `json:"notes"`
	ReminderSent *bool      `json:"reminderSent"`
}

func (in Input) apply(a *Appointment) {
	if in.PatientID != nil {
		a.PatientID = *in.PatientID
	}
	if in.Date != nil {
		a.Date = *in.Date
	}
	if in.Duration != nil {
		a.Duration = *in.Duration
	}
	if in.Type != nil {
		a.Type = *in.Type
	}
	if in.Status != nil {
		a.Status = *in.Status
	}
	if in.Notes != nil {
		a.Notes = nil
		if v := strings.TrimSpace(*in.Notes); v != "" {
			a.Notes = &v
		}
	}
	if in.ReminderSent != nil {
		a.ReminderSent = *in.ReminderSent
	}
}

func validate(a *Appointment) error {
	if a.PatientID <= 0 {
		return apperr.Validation("patientId is required")
	}
	if a.Date.IsZero() {
		return apperr.Validation("date is required")
	}
	if !therapy.ValidDuration(a.Duration) {
		return apperr.Validationf("duration must be between %d and %d minutes", therapy.MinDuration, therapy.MaxDuration)
	}
	if !therapy.ValidModality(a.Type) {
		return apperr.Validationf("invalid appointment type: %s", a.Type)
	}
	if !ValidStatus(a.Status) {
		return apperr.Validationf("invalid appointment status: %s", a.Status)
	}
	return nil
}

// HasConflict reports whether a proposal for ownerID collides with any of
// the owner's non-cancelled appointments other than excludeID.
func (s *Service) HasConflict(ctx context.Context, ownerID int64, start time.Time, minutes int, excludeID *int64) (bool, error) {
	hit, err := s.findConflict(ctx, ownerID, start, minutes, excludeID)
	return hit != nil, err
}

func (s *Service) findConflict(ctx context.Context, ownerID int64, start time.Time, minutes int, excludeID *int64) (*Booking, error) {
	from, to := CandidateWindow(start, minutes)
	candidates, err := s.repo.Candidates(ctx, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	var exclude int64
	if excludeID != nil {
		exclude = *excludeID
	}
	return s.rule.FindConflict(start, minutes, candidates, exclude), nil
}

// book runs the conflict check and write under the owner's booking lock.
func (s *Service) book(ctx context.Context, a *Appointment, write func(ctx context.Context) error) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockOwner(ctx, a.UserID); err != nil {
			return err
		}
		var exclude *int64
		if a.ID != 0 {
			exclude = &a.ID
		}
		hit, err := s.findConflict(ctx, a.UserID, a.Date, a.Duration, exclude)
		if err != nil {
			return err
		}
		if hit != nil {
			zerolog.Ctx(ctx).Warn().
				Int64("owner_id", a.UserID).
				Time("proposed", a.Date).
				Int64("conflicting_id", hit.ID).
				Str("rule", s.rule.String()).
				Msg("scheduling conflict")
			return apperr.Conflict("scheduling conflict").WithDetails(map[string]interface{}{
				"conflictingAppointmentId": hit.ID,
				"conflictingDate":          hit.Date,
			})
		}
		return write(ctx)
	})
}

// Create books an appointment for a patient visible to the principal. The
// appointment is owned by the patient's owner.
func (s *Service) Create(ctx context.Context, pr auth.Principal, in Input) (*Appointment, error) {
	a := &Appointment{
		Duration: therapy.DefaultDuration,
		Type:     therapy.ModalityInPerson,
		Status:   StatusScheduled,
	}
	in.apply(a)
	if err := validate(a); err != nil {
		return nil, err
	}
	if a.Status != StatusScheduled && a.Status != StatusConfirmed {
		return nil, apperr.Validationf("new appointments must be %s or %s", StatusScheduled, StatusConfirmed)
	}
	p, err := s.patients.GetByID(ctx, pr, a.PatientID)
	if err != nil {
		return nil, err
	}
	a.UserID = p.UserID
	a.PatientName = p.Name

	if err := s.book(ctx, a, func(ctx context.Context) error { return s.repo.Create(ctx, a) }); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, pr auth.Principal, id int64) (*Appointment, error) {
	return s.repo.GetByID(ctx, pr, id)
}

// Update re-checks conflicts when the window moves, excluding the
// appointment itself.
func (s *Service) Update(ctx context.Context, pr auth.Principal, id int64, in Input) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, pr, id)
	if err != nil {
		return nil, err
	}
	prev := *a
	in.apply(a)
	if err := validate(a); err != nil {
		return nil, err
	}
	if !CanTransition(prev.Status, a.Status) {
		return nil, apperr.Validationf("invalid status transition: %s -> %s", prev.Status, a.Status)
	}
	if a.PatientID != prev.PatientID {
		p, err := s.patients.GetByID(ctx, pr, a.PatientID)
		if err != nil {
			return nil, err
		}
		if p.UserID != a.UserID {
			return nil, apperr.Validation("appointment cannot be moved to another psychologist's patient")
		}
		a.PatientName = p.Name
	}

	write := func(ctx context.Context) error { return s.repo.Update(ctx, pr, a) }
	moved := !a.Date.Equal(prev.Date) || a.Duration != prev.Duration
	if moved && a.Status != StatusCancelled {
		err = s.book(ctx, a, write)
	} else {
		err = write(ctx)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, pr auth.Principal, id int64) error {
	return s.repo.Delete(ctx, pr, id)
}

func (s *Service) List(ctx context.Context, pr auth.Principal, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, 0, apperr.Validationf("invalid appointment status: %s", f.Status)
	}
	return s.repo.List(ctx, pr, f, limit, offset)
}

// Upcoming lists non-cancelled appointments in the next seven days.
func (s *Service) Upcoming(ctx context.Context, pr auth.Principal) ([]*Appointment, error) {
	now := s.now()
	return s.repo.Upcoming(ctx, pr, now, now.Add(UpcomingWindow), upcomingLimit)
}
