package therapy

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/psiclinic/clinic/internal/domain/patient"
	"github.com/psiclinic/clinic/internal/platform/apperr"
	"github.com/psiclinic/clinic/internal/platform/auth"
	"github.com/psiclinic/clinic/internal/platform/scope"
)

// -- Mocks --

type mockPatients map[int64]*patient.Patient

func (m mockPatients) GetByID(_ context.Context, pr auth.Principal, id int64) (*patient.Patient, error) {
	p, ok := m[id]
	if !ok || !scope.Allows(pr, p.UserID) {
		return nil, apperr.NotFound("patient")
	}
	return p, nil
}

type mockRepo struct {
	sessions map[int64]*Session
	nextID   int64
	// payments linked per session id
	linked map[int64]int
}

func newMockRepo() *mockRepo {
	return &mockRepo{sessions: make(map[int64]*Session), linked: make(map[int64]int)}
}

func (m *mockRepo) LinkedPayments(_ context.Context, sessionID int64) (int, error) {
	return m.linked[sessionID], nil
}

func (m *mockRepo) Create(_ context.Context, s *Session) error {
	m.nextID++
	s.ID = m.nextID
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, pr auth.Principal, id int64) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok || !scope.Allows(pr, s.UserID) {
		return nil, apperr.NotFound("session")
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) Update(ctx context.Context, pr auth.Principal, s *Session) error {
	if _, err := m.GetByID(ctx, pr, s.ID); err != nil {
		return err
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, pr auth.Principal, id int64) error {
	if _, err := m.GetByID(ctx, pr, id); err != nil {
		return err
	}
	delete(m.sessions, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, pr auth.Principal, f ListFilter, limit, offset int) ([]*Session, int, error) {
	var out []*Session
	for _, s := range m.sessions {
		if !scope.Allows(pr, s.UserID) {
			continue
		}
		if f.PatientID != nil && s.PatientID != *f.PatientID {
			continue
		}
		if f.Range.From != nil && s.Date.Before(*f.Range.From) {
			continue
		}
		if f.Range.To != nil && s.Date.After(*f.Range.To) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	total := len(out)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

var (
	alice = auth.Principal{ID: 1, Role: auth.RolePsychologist}
	bob   = auth.Principal{ID: 2, Role: auth.RolePsychologist}
	root  = auth.Principal{ID: 99, Role: auth.RoleSuperAdmin}
)

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	patients := mockPatients{
		10: {ID: 10, UserID: alice.ID, Name: "Maria"},
		11: {ID: 11, UserID: alice.ID, Name: "Joana"},
		20: {ID: 20, UserID: bob.ID, Name: "Carla"},
	}
	return NewService(repo, patients), repo
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

var sessionDate = time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)

func validInput(patientID int64) Input {
	return Input{PatientID: int64Ptr(patientID), Date: &sessionDate}
}

// -- Tests --

func TestCreate_Defaults(t *testing.T) {
	svc, _ := newTestService()
	s, err := svc.Create(context.Background(), alice, validInput(10))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.UserID != alice.ID {
		t.Errorf("expected owner %d, got %d", alice.ID, s.UserID)
	}
	if s.Duration != DefaultDuration || s.Modality != ModalityInPerson {
		t.Errorf("unexpected defaults: duration=%d modality=%s", s.Duration, s.Modality)
	}
	if s.PatientName != "Maria" {
		t.Errorf("expected patient name, got %q", s.PatientName)
	}
}

func TestCreate_Bounds(t *testing.T) {
	svc, _ := newTestService()
	tests := []struct {
		name     string
		mood     *int
		duration *int
		wantErr  bool
	}{
		{"mood 1", intPtr(1), nil, false},
		{"mood 10", intPtr(10), nil, false},
		{"mood 0", intPtr(0), nil, true},
		{"mood 11", intPtr(11), nil, true},
		{"duration 15", nil, intPtr(15), false},
		{"duration 180", nil, intPtr(180), false},
		{"duration 14", nil, intPtr(14), true},
		{"duration 181", nil, intPtr(181), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput(10)
			in.Mood = tt.mood
			in.Duration = tt.duration
			_, err := svc.Create(context.Background(), alice, in)
			if tt.wantErr && !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCreate_RequiredFields(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Create(context.Background(), alice, Input{Date: &sessionDate}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error without patientId, got %v", err)
	}
	if _, err := svc.Create(context.Background(), alice, Input{PatientID: int64Ptr(10)}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error without date, got %v", err)
	}
	bad := "telefone"
	in := validInput(10)
	in.Modality = &bad
	if _, err := svc.Create(context.Background(), alice, in); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error for modality, got %v", err)
	}
}

func TestCreate_ForeignPatientIsNotFound(t *testing.T) {
	svc, repo := newTestService()
	_, err := svc.Create(context.Background(), alice, validInput(20))
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(repo.sessions) != 0 {
		t.Error("no session should be stored")
	}
}

func TestCreate_SuperAdminActsForOwner(t *testing.T) {
	svc, _ := newTestService()
	s, err := svc.Create(context.Background(), root, validInput(20))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.UserID != bob.ID {
		t.Errorf("session should belong to the patient's owner, got %d", s.UserID)
	}
}

func TestUpdate(t *testing.T) {
	svc, _ := newTestService()
	s, _ := svc.Create(context.Background(), alice, validInput(10))

	updated, err := svc.Update(context.Background(), alice, s.ID, Input{Mood: intPtr(7), PatientID: int64Ptr(11)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Mood == nil || *updated.Mood != 7 {
		t.Errorf("expected mood 7, got %v", updated.Mood)
	}
	if updated.PatientID != 11 || updated.PatientName != "Joana" {
		t.Errorf("expected move to patient 11, got %d/%s", updated.PatientID, updated.PatientName)
	}

	if _, err := svc.Update(context.Background(), alice, s.ID, Input{PatientID: int64Ptr(20)}); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("moving to a foreign patient should be not found, got %v", err)
	}
	if _, err := svc.Update(context.Background(), bob, s.ID, Input{Mood: intPtr(3)}); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("foreign session should be not found, got %v", err)
	}
	if _, err := svc.Update(context.Background(), alice, s.ID, Input{Mood: intPtr(12)}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdate_SuperAdminCannotMoveAcrossOwners(t *testing.T) {
	svc, _ := newTestService()
	s, _ := svc.Create(context.Background(), alice, validInput(10))

	if _, err := svc.Update(context.Background(), root, s.ID, Input{PatientID: int64Ptr(20)}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdate_LinkedPaymentsPinPatient(t *testing.T) {
	svc, repo := newTestService()
	s, _ := svc.Create(context.Background(), alice, validInput(10))
	repo.linked[s.ID] = 2

	_, err := svc.Update(context.Background(), alice, s.ID, Input{PatientID: int64Ptr(11)})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if d, _ := ae.Details.(map[string]int); d["linkedPayments"] != 2 {
			t.Errorf("details = %v", ae.Details)
		}
	}
	if stored := repo.sessions[s.ID]; stored.PatientID != 10 {
		t.Errorf("patient changed to %d despite linked payments", stored.PatientID)
	}

	// Other fields stay editable, and unlinked sessions can move.
	if _, err := svc.Update(context.Background(), alice, s.ID, Input{Mood: intPtr(6)}); err != nil {
		t.Errorf("mood update on linked session: %v", err)
	}
	repo.linked[s.ID] = 0
	if moved, err := svc.Update(context.Background(), alice, s.ID, Input{PatientID: int64Ptr(11)}); err != nil || moved.PatientID != 11 {
		t.Errorf("move after unlinking: %+v, %v", moved, err)
	}
}

func TestDelete_Scoped(t *testing.T) {
	svc, repo := newTestService()
	s, _ := svc.Create(context.Background(), alice, validInput(10))

	if err := svc.Delete(context.Background(), bob, s.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Delete(context.Background(), alice, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.sessions) != 0 {
		t.Error("session should be removed")
	}
}

func TestList_Filters(t *testing.T) {
	svc, _ := newTestService()
	for i, pid := range []int64{10, 10, 11} {
		in := validInput(pid)
		d := sessionDate.AddDate(0, 0, i)
		in.Date = &d
		if _, err := svc.Create(context.Background(), alice, in); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	svc.Create(context.Background(), bob, validInput(20))

	_, total, _ := svc.List(context.Background(), alice, ListFilter{}, 20, 0)
	if total != 3 {
		t.Errorf("expected 3 sessions, got %d", total)
	}
	_, total, _ = svc.List(context.Background(), alice, ListFilter{PatientID: int64Ptr(10)}, 20, 0)
	if total != 2 {
		t.Errorf("expected 2 sessions for patient 10, got %d", total)
	}
	from := sessionDate.AddDate(0, 0, 1)
	f := ListFilter{}
	f.Range.From = &from
	_, total, _ = svc.List(context.Background(), alice, f, 20, 0)
	if total != 2 {
		t.Errorf("expected 2 sessions from day 2, got %d", total)
	}
}

func TestTextList(t *testing.T) {
	var l TextList
	b, _ := json.Marshal(l)
	if string(b) != "[]" {
		t.Errorf("nil list should marshal as [], got %s", b)
	}

	v, err := TextList{"a", "b"}.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if string(v.([]byte)) != `["a","b"]` {
		t.Errorf("unexpected value %s", v)
	}

	var scanned TextList
	if err := scanned.Scan(`["x","y"]`); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if len(scanned) != 2 || scanned[1] != "y" {
		t.Errorf("unexpected scan result %v", scanned)
	}
	if err := scanned.Scan(nil); err != nil || len(scanned) != 0 {
		t.Errorf("nil should scan to empty list, got %v (%v)", scanned, err)
	}
	if err := scanned.Scan(42); err == nil {
		t.Error("expected error for unsupported type")
	}
}
