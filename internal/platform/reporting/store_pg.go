package reporting

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/psiclinic/clinic/internal/platform/apperr"
	"github.com/psiclinic/clinic/internal/platform/auth"
	"github.com/psiclinic/clinic/internal/platform/db"
	"github.com/psiclinic/clinic/internal/platform/scope"
)

const monthBucket = "to_char(date_trunc('month', %s), 'YYYY-MM')"

type pgStore struct{ pool *pgxpool.Pool }

// NewPGStore returns a Store backed by pool. Queries run directly on the
// pool so concurrent report sections use separate connections.
func NewPGStore(pool *pgxpool.Pool) Store { return &pgStore{pool: pool} }

func within(q sq.SelectBuilder, column string, f Filter) sq.SelectBuilder {
	if f.Range.From != nil {
		q = q.Where(sq.GtOrEq{column: *f.Range.From})
	}
	if f.Range.To != nil {
		q = q.Where(sq.LtOrEq{column: *f.Range.To})
	}
	return q
}

func collect[T any](ctx context.Context, pool *pgxpool.Pool, q sq.SelectBuilder, scan func(row pgx.CollectableRow) (T, error)) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, db.TranslateError(err, "report")
	}
	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, db.TranslateError(err, "report")
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func fmtMonth(column string) string {
	return fmt.Sprintf(monthBucket, column)
}

func (s *pgStore) PaymentsByStatus(ctx context.Context, pr auth.Principal, f Filter) ([]StatusAmount, error) {
	q := scope.Apply(scope.Select("pm.status", "COUNT(*)", "COALESCE(SUM(pm.amount), 0)::float8").From("payments pm"), pr, "pm.user_id")
	q = within(q, "pm.created_at", f).GroupBy("pm.status").OrderBy("pm.status")
	return collect(ctx, s.pool, q, func(row pgx.CollectableRow) (StatusAmount, error) {
		var v StatusAmount
		err := row.Scan(&v.Status, &v.Count, &v.Amount)
		return v, err
	})
}

func (s *pgStore) PaymentsByMethod(ctx context.Context, pr auth.Principal, f Filter) ([]MethodTotal, error) {
	q := scope.Apply(scope.Select("pm.method", "COUNT(*)", "COALESCE(SUM(pm.amount), 0)::float8").From("payments pm"), pr, "pm.user_id")
	q = within(q, "pm.created_at", f).GroupBy("pm.method").OrderBy("3 DESC", "pm.method")
	return collect(ctx, s.pool, q, func(row pgx.CollectableRow) (MethodTotal, error) {
		var v MethodTotal
		err := row.Scan(&v.Method, &v.Count, &v.Amount)
		return v, err
	})
}

func (s *pgStore) MonthlyRevenue(ctx context.Context, pr auth.Principal, f Filter, months int) ([]MonthlyRevenue, error) {
	paidOn := "COALESCE(pm.paid_at, pm.created_at)"
	month := fmtMonth(paidOn)
	q := scope.Apply(scope.Select(month, "COUNT(*)", "COALESCE(SUM(pm.amount), 0)::float8").From("payments pm"), pr, "pm.user_id").
		Where(sq.Eq{"pm.status": paymentPaid})
	q = within(q, paidOn, f).GroupBy("1").OrderBy("1 DESC").Limit(uint64(months))
	return collect(ctx, s.pool, q, func(row pgx.CollectableRow) (MonthlyRevenue, error) {
		var v MonthlyRevenue
		err := row.Scan(&v.Month, &v.Count, &v.Amount)
		return v, err
	})
}

func (s *pgStore) PatientsByStatus(ctx context.Context, pr auth.Principal) ([]StatusCount, error) {
	q := scope.Apply(scope.Select("p.status", "COUNT(*)").From("patients p"), pr, "p.user_id").
		GroupBy("p.status").OrderBy("p.status")
	return collect(ctx, s.pool, q, scanStatusCount)
}

func (s *pgStore) SessionsPerPatient(ctx context.Context, pr auth.Principal, f Filter, limit int) ([]PatientSessions, error) {
	join := "sessions s ON s.patient_id = p.id"
	var args []interface{}
	if f.Range.From != nil {
		join += " AND s.date >= ?"
		args = append(args, *f.Range.From)
	}
	if f.Range.To != nil {
		join += " AND s.date <= ?"
		args = append(args, *f.Range.To)
	}
	q := scope.Apply(scope.Select("p.id", "p.name", "COUNT(s.id)").From("patients p").LeftJoin(join, args...), pr, "p.user_id").
		GroupBy("p.id", "p.name").
		OrderBy("3 DESC", "p.name").
		Limit(uint64(limit))
	return collect(ctx, s.pool, q, func(row pgx.CollectableRow) (PatientSessions, error) {
		var v PatientSessions
		err := row.Scan(&v.PatientID, &v.Name, &v.Sessions)
		return v, err
	})
}

func (s *pgStore) NewPatientsByMonth(ctx context.Context, pr auth.Principal, f Filter, months int) ([]MonthlyCount, error) {
	q := scope.Apply(scope.Select(fmtMonth("p.created_at"), "COUNT(*)").From("patients p"), pr, "p.user_id")
	q = within(q, "p.created_at", f).GroupBy("1").OrderBy("1 DESC").Limit(uint64(months))
	return collect(ctx, s.pool, q, func(row pgx.CollectableRow) (MonthlyCount, error) {
		var v MonthlyCount
		err := row.Scan(&v.Month, &v.Count)
		return v, err
	})
}

var sessionStatCols = []string{"COUNT(*)", "AVG(s.mood)::float8", "COALESCE(AVG(s.duration), 0)::float8"}

func (s *pgStore) SessionTotals(ctx context.Context, pr auth.Principal, f Filter) (SessionStats, error) {
	q := within(scope.Apply(scope.Select(sessionStatCols...).From("sessions s"), pr, "s.user_id"), "s.date", f)
	out, err := collect(ctx, s.pool, q, func(row pgx.CollectableRow) (SessionStats, error) {
		var v SessionStats
		err := row.Scan(&v.Count, &v.AverageMood, &v.AverageDuration)
		return v, err
	})
	if err != nil || len(out) == 0 {
		return SessionStats{}, err
	}
	return out[0], nil
}

func (s *pgStore) SessionsByModality(ctx context.Context, pr auth.Principal, f Filter) ([]ModalityStats, error) {
	cols := append([]string{"s.modality"}, sessionStatCols...)
	q := within(scope.Apply(scope.Select(cols...).From("sessions s"), pr, "s.user_id"), "s.date", f).
		GroupBy("s.modality").OrderBy("s.modality")
	return collect(ctx, s.pool, q, func(row pgx.CollectableRow) (ModalityStats, error) {
		var v ModalityStats
		err := row.Scan(&v.Modality, &v.Count, &v.AverageMood, &v.AverageDuration)
		return v, err
	})
}

func (s *pgStore) MonthlySessions(ctx context.Context, pr auth.Principal, f Filter, months int) ([]MonthlySessions, error) {
	cols := append([]string{fmtMonth("s.date")}, sessionStatCols...)
	q := within(scope.Apply(scope.Select(cols...).From("sessions s"), pr, "s.user_id"), "s.date", f).
		GroupBy("1").OrderBy("1 DESC").Limit(uint64(months))
	return collect(ctx, s.pool, q, func(row pgx.CollectableRow) (MonthlySessions, error) {
		var v MonthlySessions
		err := row.Scan(&v.Month, &v.Count, &v.AverageMood, &v.AverageDuration)
		return v, err
	})
}

func (s *pgStore) AppointmentsByStatus(ctx context.Context, pr auth.Principal, f Filter) ([]StatusCount, error) {
	q := within(scope.Apply(scope.Select("a.status", "COUNT(*)").From("appointments a"), pr, "a.user_id"), "a.date", f).
		GroupBy("a.status").OrderBy("a.status")
	return collect(ctx, s.pool, q, scanStatusCount)
}

func scanStatusCount(row pgx.CollectableRow) (StatusCount, error) {
	var v StatusCount
	err := row.Scan(&v.Status, &v.Count)
	return v, err
}
