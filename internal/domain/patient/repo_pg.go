package patient

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/psiclinic/clinic/internal/platform/apperr"
	"github.com/psiclinic/clinic/internal/platform/auth"
	"github.com/psiclinic/clinic/internal/platform/db"
	"github.com/psiclinic/clinic/internal/platform/scope"
)

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

var patientCols = []string{
	"id", "user_id", "name", "email", "phone", "birth_date", "cpf", "address",
	"emergency_contact", "emergency_phone", "notes", "status", "created_at", "updated_at",
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Email, &p.Phone, &p.BirthDate, &p.CPF, &p.Address,
		&p.EmergencyContact, &p.EmergencyPhone, &p.Notes, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	sql, args, err := scope.Insert("patients").
		Columns("user_id", "name", "email", "phone", "birth_date", "cpf", "address",
			"emergency_contact", "emergency_phone", "notes", "status").
		Values(p.UserID, p.Name, p.Email, p.Phone, p.BirthDate, p.CPF, p.Address,
			p.EmergencyContact, p.EmergencyPhone, p.Notes, p.Status).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return apperr.Internal(err)
	}
	err = r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return db.TranslateError(err, "patient")
}

func (r *patientRepoPG) GetByID(ctx context.Context, pr auth.Principal, id int64) (*Patient, error) {
	q := scope.Apply(scope.Select(patientCols...).From("patients").Where(sq.Eq{"id": id}), pr, "user_id")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, db.TranslateError(err, "patient")
	}
	return p, nil
}

func (r *patientRepoPG) Update(ctx context.Context, pr auth.Principal, p *Patient) error {
	q := scope.Apply(scope.Update("patients").SetMap(map[string]interface{}{
		"name":              p.Name,
		"email":             p.Email,
		"phone":             p.Phone,
		"birth_date":        p.BirthDate,
		"cpf":               p.CPF,
		"address":           p.Address,
		"emergency_contact": p.EmergencyContact,
		"emergency_phone":   p.EmergencyPhone,
		"notes":             p.Notes,
		"status":            p.Status,
		"updated_at":        sq.Expr("NOW()"),
	}).Where(sq.Eq{"id": p.ID}), pr, "user_id")

	sql, args, err := q.Suffix("RETURNING updated_at").ToSql()
	if err != nil {
		return apperr.Internal(err)
	}
	err = r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&p.UpdatedAt)
	return db.TranslateError(err, "patient")
}

func applyFilter(q sq.SelectBuilder, f ListFilter) sq.SelectBuilder {
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": f.Status})
	}
	if f.Search != "" {
		like := "%" + escapeLike(f.Search) + "%"
		q = q.Where(sq.Or{sq.ILike{"name": like}, sq.ILike{"email": like}})
	}
	return q
}

func (r *patientRepoPG) List(ctx context.Context, pr auth.Principal, f ListFilter, limit, offset int) ([]*Patient, int, error) {
	countQ := applyFilter(scope.Apply(scope.Select("COUNT(*)").From("patients"), pr, "user_id"), f)
	sql, args, err := countQ.ToSql()
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return nil, 0, db.TranslateError(err, "patient")
	}

	q := applyFilter(scope.Apply(scope.Select(patientCols...).From("patients"), pr, "user_id"), f).
		OrderBy("name", "id").
		Limit(uint64(limit)).Offset(uint64(offset))
	items, err := r.query(ctx, q)
	return items, total, err
}

func (r *patientRepoPG) Search(ctx context.Context, pr auth.Principal, query string, limit int) ([]*Patient, error) {
	q := applyFilter(scope.Apply(scope.Select(patientCols...).From("patients"), pr, "user_id"), ListFilter{Search: query}).
		OrderBy("name", "id").
		Limit(uint64(limit))
	return r.query(ctx, q)
}

func (r *patientRepoPG) query(ctx context.Context, q sq.SelectBuilder) ([]*Patient, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, db.TranslateError(err, "patient")
	}
	defer rows.Close()

	items := make([]*Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, db.TranslateError(err, "patient")
		}
		items = append(items, p)
	}
	return items, db.TranslateError(rows.Err(), "patient")
}

func (r *patientRepoPG) Stats(ctx context.Context, pr auth.Principal, id int64, now time.Time) (*Stats, error) {
	if _, err := r.GetByID(ctx, pr, id); err != nil {
		return nil, err
	}

	st := &Stats{PatientID: id}
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sessions WHERE patient_id = $1),
			(SELECT AVG(mood)::float8 FROM sessions WHERE patient_id = $1 AND mood IS NOT NULL),
			(SELECT MAX(date) FROM sessions WHERE patient_id = $1),
			(SELECT COALESCE(SUM(amount), 0)::float8 FROM payments WHERE patient_id = $1 AND status = 'pago'),
			(SELECT COALESCE(SUM(amount), 0)::float8 FROM payments WHERE patient_id = $1 AND status IN ('pendente', 'atrasado')),
			(SELECT MIN(date) FROM appointments WHERE patient_id = $1 AND date >= $2 AND status <> 'cancelado')`,
		id, now).Scan(&st.TotalSessions, &st.AverageMood, &st.LastSessionDate,
		&st.TotalPaid, &st.PendingAmount, &st.NextAppointment)
	if err != nil {
		return nil, db.TranslateError(err, "patient")
	}
	return st, nil
}

func (r *patientRepoPG) LockForDelete(ctx context.Context, pr auth.Principal, id int64) (*Patient, error) {
	q := scope.Apply(scope.Select(patientCols...).From("patients").Where(sq.Eq{"id": id}), pr, "user_id").
		Suffix("FOR UPDATE")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, db.TranslateError(err, "patient")
	}
	return p, nil
}

func (r *patientRepoPG) deleteByPatient(ctx context.Context, table string, patientID int64) (int, error) {
	sql, args, err := scope.Delete(table).Where(sq.Eq{"patient_id": patientID}).ToSql()
	if err != nil {
		return 0, apperr.Internal(err)
	}
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, db.TranslateError(err, table)
	}
	return int(tag.RowsAffected()), nil
}

func (r *patientRepoPG) DeleteSessions(ctx context.Context, patientID int64) (int, error) {
	return r.deleteByPatient(ctx, "sessions", patientID)
}

func (r *patientRepoPG) DeleteAppointments(ctx context.Context, patientID int64) (int, error) {
	return r.deleteByPatient(ctx, "appointments", patientID)
}

func (r *patientRepoPG) DeletePayments(ctx context.Context, patientID int64) (int, error) {
	return r.deleteByPatient(ctx, "payments", patientID)
}

func (r *patientRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return db.TranslateError(err, "patient")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient")
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
