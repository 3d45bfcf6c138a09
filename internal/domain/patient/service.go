package patient

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/psiclinic/clinic/internal/platform/apperr"
	"github.com/psiclinic/clinic/internal/platform/auth"
	"github.com/psiclinic/clinic/internal/platform/db"
	"github.com/psiclinic/clinic/pkg/dates"
)

// MaxSearchResults caps GET /patients/search/:query.
const MaxSearchResults = 20

type Service struct {
	repo Repository
	tx   db.Transactor
	now  func() time.Time
}

func NewService(repo Repository, tx db.Transactor) *Service {
	return &Service{repo: repo, tx: tx, now: time.Now}
}

// Input carries the writable fields of a patient. Nil fields are left
// unchanged on update.
type Input struct {
	Name             *string     `json:"name"`
	Email            *string     `json:"email"`
	Phone            *string     `json:"phone"`
	BirthDate        *dates.Date `json:"birthDate"`
	CPF              *string     `json:"cpf"`
	Address          *string     `json:"address"`
	EmergencyContact *string     `json:"emergencyContact"`
	EmergencyPhone   *string     `json:"emergencyPhone"`
	Notes            *string     `json:"notes"`
	Status           *string     `json:"status"`
}

func (in Input) apply(p *Patient) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		p.Email = normalizeOptional(in.Email, true)
	}
	if in.Phone != nil {
		p.Phone = normalizeOptional(in.Phone, false)
	}
	if in.BirthDate != nil {
		p.BirthDate = in.BirthDate
		if in.BirthDate.IsZero() {
			p.BirthDate = nil
		}
	}
	if in.CPF != nil {
		p.CPF = normalizeOptional(in.CPF, false)
	}
	if in.Address != nil {
		p.Address = normalizeOptional(in.Address, false)
	}
	if in.EmergencyContact != nil {
		p.EmergencyContact = normalizeOptional(in.EmergencyContact, false)
	}
	if in.EmergencyPhone != nil {
		p.EmergencyPhone = normalizeOptional(in.EmergencyPhone, false)
	}
	if in.Notes != nil {
		p.Notes = normalizeOptional(in.Notes, false)
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
}

// normalizeOptional trims s and maps the empty string to NULL.
func normalizeOptional(s *string, lower bool) *string {
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	if lower {
		v = strings.ToLower(v)
	}
	return &v
}

func (s *Service) validate(p *Patient) error {
	if p.Name == "" {
		return apperr.Validation("name is required")
	}
	if p.Email != nil {
		if _, err := mail.ParseAddress(*p.Email); err != nil {
			return apperr.Validationf("invalid email: %s", *p.Email)
		}
	}
	if !validStatuses[p.Status] {
		return apperr.Validationf("invalid patient status: %s", p.Status)
	}
	if p.BirthDate != nil && p.BirthDate.After(s.now()) {
		return apperr.Validation("birthDate cannot be in the future")
	}
	return nil
}

// Create registers a patient owned by the principal.
func (s *Service) Create(ctx context.Context, pr auth.Principal, in Input) (*Patient, error) {
	p := &Patient{UserID: pr.ID, Status: StatusActive}
	in.apply(p)
	if err := s.validate(p); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, pr auth.Principal, id int64) (*Patient, error) {
	return s.repo.GetByID(ctx, pr, id)
}

// Update loads the scoped row first, so a foreign id is a 404 before any
// validation runs.
func (s *Service) Update(ctx context.Context, pr auth.Principal, id int64, in Input) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, pr, id)
	if err != nil {
		return nil, err
	}
	in.apply(p)
	if err := s.validate(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, pr, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, pr auth.Principal, f ListFilter, limit, offset int) ([]*Patient, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Validationf("invalid patient status: %s", f.Status)
	}
	f.Search = strings.TrimSpace(f.Search)
	return s.repo.List(ctx, pr, f, limit, offset)
}

func (s *Service) Search(ctx context.Context, pr auth.Principal, query string) ([]*Patient, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("search query is required")
	}
	return s.repo.Search(ctx, pr, query, MaxSearchResults)
}

func (s *Service) Stats(ctx context.Context, pr auth.Principal, id int64) (*Stats, error) {
	return s.repo.Stats(ctx, pr, id, s.now())
}

// Delete removes a patient and everything that references it in a single
// transaction: sessions, then appointments, then payments, then the patient.
// The patient row is locked first, so a concurrent delete waits and then
// finds nothing.
func (s *Service) Delete(ctx context.Context, pr auth.Principal, id int64) (*CascadeResult, error) {
	var res CascadeResult
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.LockForDelete(ctx, pr, id); err != nil {
			return err
		}

		var err error
		if res.DeletedSessions, err = s.repo.DeleteSessions(ctx, id); err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		if res.DeletedAppointments, err = s.repo.DeleteAppointments(ctx, id); err != nil {
			return fmt.Errorf("delete appointments: %w", err)
		}
		if res.DeletedPayments, err = s.repo.DeletePayments(ctx, id); err != nil {
			return fmt.Errorf("delete payments: %w", err)
		}
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Int64("patient_id", id).
		Int64("actor_id", pr.ID).
		Int("sessions", res.DeletedSessions).
		Int("appointments", res.DeletedAppointments).
		Int("payments", res.DeletedPayments).
		Msg("patient deleted")
	return &res, nil
}

// Summary renders the cascade counts for the API response.
func (r CascadeResult) Summary() string {
	return fmt.Sprintf("Patient deleted along with %d session(s), %d appointment(s) and %d payment(s)",
		r.DeletedSessions, r.DeletedAppointments, r.DeletedPayments)
}
