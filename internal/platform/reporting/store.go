package reporting

import (
	"context"

	"github.com/psiclinic/clinic/internal/platform/auth"
)

// Store runs the scoped aggregate queries behind every report. Each method
// is a single query so callers can run them concurrently.
type Store interface {
	PaymentsByStatus(ctx context.Context, pr auth.Principal, f Filter) ([]StatusAmount, error)
	PaymentsByMethod(ctx context.Context, pr auth.Principal, f Filter) ([]MethodTotal, error)
	// MonthlyRevenue sums paid payments per month of payment, most recent
	// first.
	MonthlyRevenue(ctx context.Context, pr auth.Principal, f Filter, months int) ([]MonthlyRevenue, error)

	PatientsByStatus(ctx context.Context, pr auth.Principal) ([]StatusCount, error)
	SessionsPerPatient(ctx context.Context, pr auth.Principal, f Filter, limit int) ([]PatientSessions, error)
	NewPatientsByMonth(ctx context.Context, pr auth.Principal, f Filter, months int) ([]MonthlyCount, error)

	SessionTotals(ctx context.Context, pr auth.Principal, f Filter) (SessionStats, error)
	SessionsByModality(ctx context.Context, pr auth.Principal, f Filter) ([]ModalityStats, error)
	MonthlySessions(ctx context.Context, pr auth.Principal, f Filter, months int) ([]MonthlySessions, error)

	AppointmentsByStatus(ctx context.Context, pr auth.Principal, f Filter) ([]StatusCount, error)
}
