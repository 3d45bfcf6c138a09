package integration

import (
	"context"
	"testing"
	"time"

	"github.com/psiclinic/clinic/internal/domain/billing"
	"github.com/psiclinic/clinic/internal/domain/scheduling"
	"github.com/psiclinic/clinic/internal/domain/therapy"
	"github.com/psiclinic/clinic/internal/platform/auth"
	"github.com/psiclinic/clinic/internal/platform/reporting"
)

func TestReports(t *testing.T) {
	ctx := context.Background()
	svc := newServices(scheduling.RuleLegacy)
	reports := reporting.NewService(reporting.NewPGStore(globalDB.Pool))
	alice := createTestUser(t, ctx, auth.RolePsychologist)
	bob := createTestUser(t, ctx, auth.RolePsychologist)

	p := createTestPatient(t, ctx, alice, "Reported")
	createTestPatient(t, ctx, alice, "Quiet")
	foreign := createTestPatient(t, ctx, bob, "Not Alice's")

	for i, mood := range []int{4, 7, 9} {
		modality := therapy.ModalityInPerson
		if i == 0 {
			modality = therapy.ModalityOnline
		}
		if _, err := svc.sessions.Create(ctx, alice, therapy.Input{
			PatientID: ptrInt64(p.ID),
			Date:      ptrTime(time.Now().Add(-time.Duration(i+1) * time.Hour)),
			Duration:  ptrInt(50 + 10*i),
			Modality:  ptrStr(modality),
			Mood:      ptrInt(mood),
		}); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}
	for _, in := range []billing.Input{
		{Amount: ptrFloat(200), Method: ptrStr(billing.MethodPix), Status: ptrStr(billing.StatusPaid)},
		{Amount: ptrFloat(150), Method: ptrStr(billing.MethodPix)},
		{Amount: ptrFloat(75.5), Method: ptrStr(billing.MethodCash), Status: ptrStr(billing.StatusOverdue)},
	} {
		in.PatientID = ptrInt64(p.ID)
		if _, err := svc.payments.Create(ctx, alice, in); err != nil {
			t.Fatalf("create payment: %v", err)
		}
	}
	if _, err := svc.payments.Create(ctx, bob, billing.Input{
		PatientID: ptrInt64(foreign.ID), Amount: ptrFloat(999), Method: ptrStr(billing.MethodPix),
	}); err != nil {
		t.Fatalf("create foreign payment: %v", err)
	}

	a1, err := svc.appointments.Create(ctx, alice, scheduling.Input{PatientID: ptrInt64(p.ID), Date: ptrTime(nextSlot(3))})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	if _, err := svc.appointments.Create(ctx, alice, scheduling.Input{PatientID: ptrInt64(p.ID), Date: ptrTime(nextSlot(6))}); err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	for _, st := range []string{scheduling.StatusConfirmed, scheduling.StatusCompleted} {
		if _, err := svc.appointments.Update(ctx, alice, a1.ID, scheduling.Input{Status: ptrStr(st)}); err != nil {
			t.Fatalf("advance appointment to %s: %v", st, err)
		}
	}

	t.Run("Financial", func(t *testing.T) {
		rep, err := reports.Financial(ctx, alice, reporting.Filter{})
		if err != nil {
			t.Fatalf("Financial: %v", err)
		}
		if rep.Total.Count != 3 || rep.Total.Amount != 425.5 {
			t.Errorf("unexpected total %+v", rep.Total)
		}
		if rep.Paid.Amount != 200 || rep.Pending.Amount != 150 || rep.Overdue.Amount != 75.5 {
			t.Errorf("unexpected split %+v / %+v / %+v", rep.Paid, rep.Pending, rep.Overdue)
		}
		if len(rep.ByMethod) != 2 {
			t.Errorf("expected two methods, got %+v", rep.ByMethod)
		}
		if len(rep.MonthlyRevenue) != 1 || rep.MonthlyRevenue[0].Amount != 200 {
			t.Errorf("expected this month's paid revenue only, got %+v", rep.MonthlyRevenue)
		}
	})

	t.Run("Patients", func(t *testing.T) {
		rep, err := reports.Patients(ctx, alice, reporting.Filter{})
		if err != nil {
			t.Fatalf("Patients: %v", err)
		}
		if rep.Total != 2 {
			t.Errorf("expected 2 patients, got %d", rep.Total)
		}
		if len(rep.SessionsPerPatient) == 0 || rep.SessionsPerPatient[0].PatientID != p.ID || rep.SessionsPerPatient[0].Sessions != 3 {
			t.Errorf("unexpected sessions per patient %+v", rep.SessionsPerPatient)
		}
	})

	t.Run("Sessions", func(t *testing.T) {
		rep, err := reports.Sessions(ctx, alice, reporting.Filter{})
		if err != nil {
			t.Fatalf("Sessions: %v", err)
		}
		if rep.Count != 3 || rep.AverageMood == nil || *rep.AverageMood != 6.67 || rep.AverageDuration != 60 {
			t.Errorf("unexpected totals %+v", rep.SessionStats)
		}
		if len(rep.ByModality) != 2 {
			t.Errorf("expected two modalities, got %+v", rep.ByModality)
		}
	})

	t.Run("Appointments", func(t *testing.T) {
		rep, err := reports.Appointments(ctx, alice, reporting.Filter{})
		if err != nil {
			t.Fatalf("Appointments: %v", err)
		}
		if rep.Total != 2 || rep.AttendanceRate != 50 {
			t.Errorf("expected 2 appointments at 50%%, got %d at %v", rep.Total, rep.AttendanceRate)
		}
	})

	t.Run("DateWindowExcludesEverything", func(t *testing.T) {
		rep, err := reports.Sessions(ctx, alice, reporting.Filter{Range: rangeFrom(time.Now().Add(24 * time.Hour))})
		if err != nil {
			t.Fatalf("Sessions: %v", err)
		}
		if rep.Count != 0 || rep.AverageMood != nil {
			t.Errorf("expected an empty window, got %+v", rep.SessionStats)
		}
	})

	t.Run("Dashboard", func(t *testing.T) {
		d, err := reports.Dashboard(ctx, alice)
		if err != nil {
			t.Fatalf("Dashboard: %v", err)
		}
		if d.ActivePatients != 2 || d.PendingAmount != 150 || d.OverdueAmount != 75.5 {
			t.Errorf("unexpected dashboard %+v", d)
		}
		if d.UpcomingAppointments != 2 {
			t.Errorf("expected 2 upcoming appointments, got %d", d.UpcomingAppointments)
		}
	})

	t.Run("SuperAdminSeesAll", func(t *testing.T) {
		root := createTestUser(t, ctx, auth.RoleSuperAdmin)
		rep, err := reports.Financial(ctx, root, reporting.Filter{})
		if err != nil {
			t.Fatalf("Financial: %v", err)
		}
		if rep.Total.Amount < 425.5+999 {
			t.Errorf("super admin total should include every owner, got %v", rep.Total.Amount)
		}
	})
}
