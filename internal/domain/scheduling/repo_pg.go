package scheduling

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/psiclinic/clinic/internal/platform/apperr"
	"github.com/psiclinic/clinic/internal/platform/auth"
	"github.com/psiclinic/clinic/internal/platform/db"
	"github.com/psiclinic/clinic/internal/platform/scope"
)

// bookingLockNamespace is the first key of pg_advisory_xact_lock for
// appointment bookings.
const bookingLockNamespace int32 = 4201

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &appointmentRepoPG{pool: pool} }

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

var appointmentCols = []string{
	"a.id", "a.user_id", "a.patient_id", "p.name", "a.date", "a.duration", "a.type", "a.status",
	"a.notes", "a.reminder_sent", "a.created_at", "a.updated_at",
}

func selectAppointments(pr auth.Principal, columns ...string) sq.SelectBuilder {
	q := scope.Select(columns...).From("appointments a").Join("patients p ON p.id = a.patient_id")
	return scope.Apply(q, pr, "a.user_id")
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.UserID, &a.PatientID, &a.PatientName, &a.Date, &a.Duration, &a.Type, &a.Status,
		&a.Notes, &a.ReminderSent, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	sql, args, err := scope.Insert("appointments").
		Columns("user_id", "patient_id", "date", "duration", "type", "status", "notes", "reminder_sent").
		Values(a.UserID, a.PatientID, a.Date, a.Duration, a.Type, a.Status, a.Notes, a.ReminderSent).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return apperr.Internal(err)
	}
	err = r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return db.TranslateError(err, "appointment")
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, pr auth.Principal, id int64) (*Appointment, error) {
	sql, args, err := selectAppointments(pr, appointmentCols...).Where(sq.Eq{"a.id": id}).ToSql()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, db.TranslateError(err, "appointment")
	}
	return a, nil
}

func (r *appointmentRepoPG) Update(ctx context.Context, pr auth.Principal, a *Appointment) error {
	q := scope.Apply(scope.Update("appointments").SetMap(map[string]interface{}{
		"patient_id":    a.PatientID,
		"date":          a.Date,
		"duration":      a.Duration,
		"type":          a.Type,
		"status":        a.Status,
		"notes":         a.Notes,
		"reminder_sent": a.ReminderSent,
		"updated_at":    sq.Expr("NOW()"),
	}).Where(sq.Eq{"id": a.ID}), pr, "user_id")

	sql, args, err := q.Suffix("RETURNING updated_at").ToSql()
	if err != nil {
		return apperr.Internal(err)
	}
	err = r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&a.UpdatedAt)
	return db.TranslateError(err, "appointment")
}

func (r *appointmentRepoPG) Delete(ctx context.Context, pr auth.Principal, id int64) error {
	sql, args, err := scope.Apply(scope.Delete("appointments").Where(sq.Eq{"id": id}), pr, "user_id").ToSql()
	if err != nil {
		return apperr.Internal(err)
	}
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return db.TranslateError(err, "appointment")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment")
	}
	return nil
}

func applyFilter(q sq.SelectBuilder, f ListFilter) sq.SelectBuilder {
	if f.PatientID != nil {
		q = q.Where(sq.Eq{"a.patient_id": *f.PatientID})
	}
	if f.Status != "" {
		q = q.Where(sq.Eq{"a.status": f.Status})
	}
	if f.Range.From != nil {
		q = q.Where(sq.GtOrEq{"a.date": *f.Range.From})
	}
	if f.Range.To != nil {
		q = q.Where(sq.LtOrEq{"a.date": *f.Range.To})
	}
	return q
}

func (r *appointmentRepoPG) List(ctx context.Context, pr auth.Principal, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	sql, args, err := applyFilter(selectAppointments(pr, "COUNT(*)"), f).ToSql()
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return nil, 0, db.TranslateError(err, "appointment")
	}

	items, err := r.query(ctx, applyFilter(selectAppointments(pr, appointmentCols...), f).
		OrderBy("a.date", "a.id").
		Limit(uint64(limit)).Offset(uint64(offset)))
	return items, total, err
}

func (r *appointmentRepoPG) Upcoming(ctx context.Context, pr auth.Principal, from, to time.Time, limit int) ([]*Appointment, error) {
	q := selectAppointments(pr, appointmentCols...).
		Where(sq.GtOrEq{"a.date": from}).
		Where(sq.Lt{"a.date": to}).
		Where(sq.NotEq{"a.status": StatusCancelled}).
		OrderBy("a.date", "a.id").
		Limit(uint64(limit))
	return r.query(ctx, q)
}

func (r *appointmentRepoPG) query(ctx context.Context, q sq.SelectBuilder) ([]*Appointment, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, db.TranslateError(err, "appointment")
	}
	defer rows.Close()

	items := make([]*Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, db.TranslateError(err, "appointment")
		}
		items = append(items, a)
	}
	return items, db.TranslateError(rows.Err(), "appointment")
}

func (r *appointmentRepoPG) Candidates(ctx context.Context, ownerID int64, from, to time.Time) ([]Booking, error) {
	sql, args, err := scope.Select("id", "date", "duration").
		From("appointments").
		Where(sq.Eq{"user_id": ownerID}).
		Where(sq.NotEq{"status": StatusCancelled}).
		Where(sq.Gt{"date": from}).
		Where(sq.Lt{"date": to}).
		OrderBy("date").
		ToSql()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, db.TranslateError(err, "appointment")
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.Date, &b.Duration); err != nil {
			return nil, db.TranslateError(err, "appointment")
		}
		out = append(out, b)
	}
	return out, db.TranslateError(rows.Err(), "appointment")
}

func (r *appointmentRepoPG) LockOwner(ctx context.Context, ownerID int64) error {
	return db.LockOwner(ctx, r.conn(ctx), bookingLockNamespace, ownerID)
}
