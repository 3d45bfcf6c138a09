package therapy

import (
	"context"
	"strings"
	"time"

	"github.com/psiclinic/clinic/internal/domain/patient"
	"github.com/psiclinic/clinic/internal/platform/apperr"
	"github.com/psiclinic/clinic/internal/platform/auth"
)

// PatientReader resolves a patient under the caller's scope.
type PatientReader interface {
	GetByID(ctx context.Context, pr auth.Principal, id int64) (*patient.Patient, error)
}

type Service struct {
	repo     Repository
	patients PatientReader
}

func NewService(repo Repository, patients PatientReader) *Service {
	return &Service{repo: repo, patients: patients}
}

// Input carries the writable fields of a session. Nil fields are left
// unchanged on update.
type Input struct {
	PatientID   *int64     `json:"patientId"`
	Date        *time.Time `json:"date"`
	Duration    *int       `json:"duration"`
	Modality    *string    `json:"modality"`
	Mood        *int       `json:"mood"`
	Notes       *string    `json:"notes"`
	Objectives  *TextList  `json:"objectives"`
	Techniques  *TextList  `json:"techniques"`
	Attachments *TextList  `json:"attachments"`
	NextSteps   *string    `json:"nextSteps"`
}

func (in Input) apply(s *Session) {
	if in.PatientID != nil {
		s.PatientID = *in.PatientID
	}
	if in.Date != nil {
		s.Date = *in.Date
	}
	if in.Duration != nil {
		s.Duration = *in.Duration
	}
	if in.Modality != nil {
		s.Modality = *in.Modality
	}
	if in.Mood != nil {
		s.Mood = in.Mood
	}
	if in.Notes != nil {
		s.Notes = trimmed(*in.Notes)
	}
	if in.Objectives != nil {
		s.Objectives = *in.Objectives
	}
	if in.Techniques != nil {
		s.Techniques = *in.Techniques
	}
	if in.Attachments != nil {
		s.Attachments = *in.Attachments
	}
	if in.NextSteps != nil {
		s.NextSteps = trimmed(*in.NextSteps)
	}
}

func trimmed(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func validate(s *Session) error {
	if s.PatientID <= 0 {
		return apperr.Validation("patientId is required")
	}
	if s.Date.IsZero() {
		return apperr.Validation("date is required")
	}
	if !ValidDuration(s.Duration) {
		return apperr.Validationf("duration must be between %d and %d minutes", MinDuration, MaxDuration)
	}
	if !ValidModality(s.Modality) {
		return apperr.Validationf("invalid modality: %s", s.Modality)
	}
	if s.Mood != nil && (*s.Mood < MinMood || *s.Mood > MaxMood) {
		return apperr.Validationf("mood must be between %d and %d", MinMood, MaxMood)
	}
	return nil
}

// Create records a session for a patient visible to the principal. The
// session is owned by the patient's owner.
func (s *Service) Create(ctx context.Context, pr auth.Principal, in Input) (*Session, error) {
	sess := &Session{
		Duration:    DefaultDuration,
		Modality:    ModalityInPerson,
		Objectives:  TextList{},
		Techniques:  TextList{},
		Attachments: TextList{},
	}
	in.apply(sess)
	if err := validate(sess); err != nil {
		return nil, err
	}
	p, err := s.patients.GetByID(ctx, pr, sess.PatientID)
	if err != nil {
		return nil, err
	}
	sess.UserID = p.UserID
	sess.PatientName = p.Name
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, pr auth.Principal, id int64) (*Session, error) {
	return s.repo.GetByID(ctx, pr, id)
}

func (s *Service) Update(ctx context.Context, pr auth.Principal, id int64, in Input) (*Session, error) {
	sess, err := s.repo.GetByID(ctx, pr, id)
	if err != nil {
		return nil, err
	}
	prevPatient := sess.PatientID
	in.apply(sess)
	if err := validate(sess); err != nil {
		return nil, err
	}
	if sess.PatientID != prevPatient {
		p, err := s.patients.GetByID(ctx, pr, sess.PatientID)
		if err != nil {
			return nil, err
		}
		if p.UserID != sess.UserID {
			return nil, apperr.Validation("session cannot be moved to another psychologist's patient")
		}
		linked, err := s.repo.LinkedPayments(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		if linked > 0 {
			return nil, apperr.Conflict("session has linked payments and cannot change patient").
				WithDetails(map[string]int{"linkedPayments": linked})
		}
		sess.PatientName = p.Name
	}
	if err := s.repo.Update(ctx, pr, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) Delete(ctx context.Context, pr auth.Principal, id int64) error {
	return s.repo.Delete(ctx, pr, id)
}

func (s *Service) List(ctx context.Context, pr auth.Principal, f ListFilter, limit, offset int) ([]*Session, int, error) {
	return s.repo.List(ctx, pr, f, limit, offset)
}
