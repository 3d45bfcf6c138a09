package reporting

import (
	"context"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/psiclinic/clinic/internal/platform/auth"
	"github.com/psiclinic/clinic/pkg/dates"
)

const (
	recentMonths     = 12
	topPatientsLimit = 50
	upcomingWindow   = 7 * 24 * time.Hour
)

// Status values the reports single out.
const (
	paymentPaid       = "pago"
	paymentPending    = "pendente"
	paymentOverdue    = "atrasado"
	patientActive     = "ativo"
	appointmentDone   = "realizado"
	appointmentCancel = "cancelado"
)

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Financial(ctx context.Context, pr auth.Principal, f Filter) (*FinancialReport, error) {
	var (
		byStatus []StatusAmount
		rep      FinancialReport
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		byStatus, err = s.store.PaymentsByStatus(ctx, pr, f)
		return err
	})
	g.Go(func() (err error) {
		rep.ByMethod, err = s.store.PaymentsByMethod(ctx, pr, f)
		return err
	})
	g.Go(func() (err error) {
		rep.MonthlyRevenue, err = s.store.MonthlyRevenue(ctx, pr, f, recentMonths)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	statuses := lo.KeyBy(byStatus, func(v StatusAmount) string { return v.Status })
	rep.Paid = roundMoney(statuses[paymentPaid].MoneyTotal)
	rep.Pending = roundMoney(statuses[paymentPending].MoneyTotal)
	rep.Overdue = roundMoney(statuses[paymentOverdue].MoneyTotal)
	rep.Total = roundMoney(MoneyTotal{
		Count:  lo.SumBy(byStatus, func(v StatusAmount) int { return v.Count }),
		Amount: lo.SumBy(byStatus, func(v StatusAmount) float64 { return v.Amount }),
	})
	for i := range rep.ByMethod {
		rep.ByMethod[i].MoneyTotal = roundMoney(rep.ByMethod[i].MoneyTotal)
	}
	for i := range rep.MonthlyRevenue {
		rep.MonthlyRevenue[i].MoneyTotal = roundMoney(rep.MonthlyRevenue[i].MoneyTotal)
	}
	return &rep, nil
}

func roundMoney(m MoneyTotal) MoneyTotal {
	m.Amount = round2(m.Amount)
	return m
}

func (s *Service) Patients(ctx context.Context, pr auth.Principal, f Filter) (*PatientsReport, error) {
	var rep PatientsReport
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rep.ByStatus, err = s.store.PatientsByStatus(ctx, pr)
		return err
	})
	g.Go(func() (err error) {
		rep.SessionsPerPatient, err = s.store.SessionsPerPatient(ctx, pr, f, topPatientsLimit)
		return err
	})
	g.Go(func() (err error) {
		rep.NewByMonth, err = s.store.NewPatientsByMonth(ctx, pr, f, recentMonths)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	rep.Total = lo.SumBy(rep.ByStatus, func(v StatusCount) int { return v.Count })
	return &rep, nil
}

func (s *Service) Sessions(ctx context.Context, pr auth.Principal, f Filter) (*SessionsReport, error) {
	var rep SessionsReport
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rep.SessionStats, err = s.store.SessionTotals(ctx, pr, f)
		return err
	})
	g.Go(func() (err error) {
		rep.ByModality, err = s.store.SessionsByModality(ctx, pr, f)
		return err
	})
	g.Go(func() (err error) {
		rep.Monthly, err = s.store.MonthlySessions(ctx, pr, f, recentMonths)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep.SessionStats = roundStats(rep.SessionStats)
	for i := range rep.ByModality {
		rep.ByModality[i].SessionStats = roundStats(rep.ByModality[i].SessionStats)
	}
	for i := range rep.Monthly {
		rep.Monthly[i].SessionStats = roundStats(rep.Monthly[i].SessionStats)
	}
	return &rep, nil
}

func roundStats(st SessionStats) SessionStats {
	st.AverageMood = round2Ptr(st.AverageMood)
	st.AverageDuration = round2(st.AverageDuration)
	return st
}

func (s *Service) Appointments(ctx context.Context, pr auth.Principal, f Filter) (*AppointmentsReport, error) {
	byStatus, err := s.store.AppointmentsByStatus(ctx, pr, f)
	if err != nil {
		return nil, err
	}
	rep := &AppointmentsReport{ByStatus: byStatus}
	rep.Total = lo.SumBy(byStatus, func(v StatusCount) int { return v.Count })
	done, _ := lo.Find(byStatus, func(v StatusCount) bool { return v.Status == appointmentDone })
	rep.AttendanceRate = AttendanceRate(done.Count, rep.Total)
	return rep, nil
}

// Dashboard summarises the current month, today and the next seven days in
// the server's local time.
func (s *Service) Dashboard(ctx context.Context, pr auth.Principal) (*Dashboard, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	thisMonth := window(monthStart, monthStart.AddDate(0, 1, 0))
	today := window(dayStart, dayStart.AddDate(0, 0, 1))
	nextWeek := window(now, now.Add(upcomingWindow))

	var (
		d           Dashboard
		patients    []StatusCount
		todayAppts  []StatusCount
		weekAppts   []StatusCount
		revenue     []MonthlyRevenue
		outstanding []StatusAmount
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		patients, err = s.store.PatientsByStatus(ctx, pr)
		return err
	})
	g.Go(func() error {
		st, err := s.store.SessionTotals(ctx, pr, thisMonth)
		d.SessionsThisMonth = st.Count
		return err
	})
	g.Go(func() (err error) {
		todayAppts, err = s.store.AppointmentsByStatus(ctx, pr, today)
		return err
	})
	g.Go(func() (err error) {
		weekAppts, err = s.store.AppointmentsByStatus(ctx, pr, nextWeek)
		return err
	})
	g.Go(func() (err error) {
		revenue, err = s.store.MonthlyRevenue(ctx, pr, thisMonth, 1)
		return err
	})
	g.Go(func() (err error) {
		outstanding, err = s.store.PaymentsByStatus(ctx, pr, Filter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	active, _ := lo.Find(patients, func(v StatusCount) bool { return v.Status == patientActive })
	d.ActivePatients = active.Count
	d.AppointmentsToday = countActive(todayAppts)
	d.UpcomingAppointments = countActive(weekAppts)
	d.RevenueThisMonth = round2(lo.SumBy(revenue, func(v MonthlyRevenue) float64 { return v.Amount }))
	amounts := lo.KeyBy(outstanding, func(v StatusAmount) string { return v.Status })
	d.PendingAmount = round2(amounts[paymentPending].Amount)
	d.OverdueAmount = round2(amounts[paymentOverdue].Amount)
	return &d, nil
}

// window is the half-open range [from, to) expressed as an inclusive Range.
func window(from, to time.Time) Filter {
	end := to.Add(-time.Nanosecond)
	return Filter{Range: dates.Range{From: &from, To: &end}}
}

func countActive(byStatus []StatusCount) int {
	return lo.SumBy(byStatus, func(v StatusCount) int {
		if v.Status == appointmentCancel {
			return 0
		}
		return v.Count
	})
}
