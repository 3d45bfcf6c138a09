package billing

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/psiclinic/clinic/internal/domain/patient"
	"github.com/psiclinic/clinic/internal/domain/therapy"
	"github.com/psiclinic/clinic/internal/platform/apperr"
	"github.com/psiclinic/clinic/internal/platform/auth"
	"github.com/psiclinic/clinic/pkg/dates"
)

// PatientReader resolves a patient under the caller's scope.
type PatientReader interface {
	GetByID(ctx context.Context, pr auth.Principal, id int64) (*patient.Patient, error)
}

// SessionReader resolves a therapy session under the caller's scope.
type SessionReader interface {
	GetByID(ctx context.Context, pr auth.Principal, id int64) (*therapy.Session, error)
}

type Service struct {
	repo     Repository
	patients PatientReader
	sessions SessionReader
	now      func() time.Time
}

func NewService(repo Repository, patients PatientReader, sessions SessionReader) *Service {
	return &Service{repo: repo, patients: patients, sessions: sessions, now: time.Now}
}

// Input carries the writable fields of a payment. Nil fields are left
// unchanged on update; a sessionId of 0 clears the link.
type Input struct {
	PatientID   *int64      `json:"patientId"`
	SessionID   *int64      `json:"sessionId"`
	Amount      *float64    `json:"amount"`
	Method      *string     `json:"method"`
	Status      *string     `json:"status"`
	DueDate     *dates.Date `json:"dueDate"`
	PaidAt      *time.Time  `json:"paidAt"`
	Description *string     `json:"description"`
}

func (in Input) apply(p *Payment) {
	if in.PatientID != nil {
		p.PatientID = *in.PatientID
	}
	if in.SessionID != nil {
		p.SessionID = in.SessionID
		if *in.SessionID == 0 {
			p.SessionID = nil
		}
	}
	if in.Amount != nil {
		p.Amount = roundCents(*in.Amount)
	}
	if in.Method != nil {
		p.Method = *in.Method
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if in.DueDate != nil {
		p.DueDate = in.DueDate
		if in.DueDate.IsZero() {
			p.DueDate = nil
		}
	}
	if in.PaidAt != nil {
		p.PaidAt = in.PaidAt
	}
	if in.Description != nil {
		p.Description = nil
		if v := strings.TrimSpace(*in.Description); v != "" {
			p.Description = &v
		}
	}
}

func validate(p *Payment) error {
	if p.PatientID <= 0 {
		return apperr.Validation("patientId is required")
	}
	if p.Amount <= 0 {
		return apperr.Validation("amount must be greater than zero")
	}
	if !validMethods[p.Method] {
		return apperr.Validationf("invalid payment method: %s", p.Method)
	}
	if !validStatuses[p.Status] {
		return apperr.Validationf("invalid payment status: %s", p.Status)
	}
	return nil
}

// stampPaidAt sets paidAt when a payment becomes pago without one and clears
// it when the payment leaves pago.
func (s *Service) stampPaidAt(p *Payment, in Input) {
	if p.Status == StatusPaid && p.PaidAt == nil {
		now := s.now()
		p.PaidAt = &now
	}
	if p.Status != StatusPaid && in.PaidAt == nil {
		p.PaidAt = nil
	}
}

// checkLinks verifies the patient is visible and any linked session belongs
// to that patient. It returns the patient.
func (s *Service) checkLinks(ctx context.Context, pr auth.Principal, p *Payment) (*patient.Patient, error) {
	pat, err := s.patients.GetByID(ctx, pr, p.PatientID)
	if err != nil {
		return nil, err
	}
	if p.SessionID != nil {
		sess, err := s.sessions.GetByID(ctx, pr, *p.SessionID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return nil, apperr.Validation("sessionId does not reference a visible session")
			}
			return nil, err
		}
		if sess.PatientID != p.PatientID {
			return nil, apperr.Validation("session belongs to a different patient")
		}
	}
	return pat, nil
}

// Create records a payment owned by the patient's owner.
func (s *Service) Create(ctx context.Context, pr auth.Principal, in Input) (*Payment, error) {
	p := &Payment{Status: StatusPending}
	in.apply(p)
	if err := validate(p); err != nil {
		return nil, err
	}
	pat, err := s.checkLinks(ctx, pr, p)
	if err != nil {
		return nil, err
	}
	p.UserID = pat.UserID
	p.PatientName = pat.Name
	s.stampPaidAt(p, in)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, pr auth.Principal, id int64) (*Payment, error) {
	return s.repo.GetByID(ctx, pr, id)
}

func (s *Service) Update(ctx context.Context, pr auth.Principal, id int64, in Input) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, pr, id)
	if err != nil {
		return nil, err
	}
	prevPatient, prevSession := p.PatientID, p.SessionID
	in.apply(p)
	if err := validate(p); err != nil {
		return nil, err
	}
	if p.PatientID != prevPatient || !sameID(p.SessionID, prevSession) {
		pat, err := s.checkLinks(ctx, pr, p)
		if err != nil {
			return nil, err
		}
		if pat.UserID != p.UserID {
			return nil, apperr.Validation("payment cannot be moved to another psychologist's patient")
		}
		p.PatientName = pat.Name
	}
	s.stampPaidAt(p, in)
	if err := s.repo.Update(ctx, pr, p); err != nil {
		return nil, err
	}
	return p, nil
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *Service) Delete(ctx context.Context, pr auth.Principal, id int64) error {
	return s.repo.Delete(ctx, pr, id)
}

func (s *Service) List(ctx context.Context, pr auth.Principal, f ListFilter, limit, offset int) ([]*Payment, int, error) {
	if err := validateFilter(f); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, pr, f, limit, offset)
}

func validateFilter(f ListFilter) error {
	if f.Status != "" && !validStatuses[f.Status] {
		return apperr.Validationf("invalid payment status: %s", f.Status)
	}
	if f.Method != "" && !validMethods[f.Method] {
		return apperr.Validationf("invalid payment method: %s", f.Method)
	}
	return nil
}

// Summary totals the filtered payments by status.
func (s *Service) Summary(ctx context.Context, pr auth.Principal, f ListFilter) (*Summary, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	totals, err := s.repo.Totals(ctx, pr, f)
	if err != nil {
		return nil, err
	}
	sum := &Summary{}
	for status, t := range totals {
		sum.Total.Count += t.Count
		sum.Total.Amount += t.Amount
		t.Amount = roundCents(t.Amount)
		switch status {
		case StatusPaid:
			sum.Paid = t
		case StatusPending:
			sum.Pending = t
		case StatusOverdue:
			sum.Overdue = t
		}
	}
	sum.Total.Amount = roundCents(sum.Total.Amount)
	return sum, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
