package billing

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/psiclinic/clinic/internal/platform/apperr"
	"github.com/psiclinic/clinic/internal/platform/auth"
	"github.com/psiclinic/clinic/internal/platform/db"
	"github.com/psiclinic/clinic/internal/platform/scope"
)

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &paymentRepoPG{pool: pool} }

func (r *paymentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

var paymentCols = []string{
	"pm.id", "pm.user_id", "pm.patient_id", "p.name", "pm.session_id", "pm.amount::float8", "pm.method",
	"pm.status", "pm.due_date", "pm.paid_at", "pm.description", "pm.created_at", "pm.updated_at",
}

func selectPayments(pr auth.Principal, columns ...string) sq.SelectBuilder {
	q := scope.Select(columns...).From("payments pm").Join("patients p ON p.id = pm.patient_id")
	return scope.Apply(q, pr, "pm.user_id")
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.UserID, &p.PatientID, &p.PatientName, &p.SessionID, &p.Amount, &p.Method,
		&p.Status, &p.DueDate, &p.PaidAt, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	sql, args, err := scope.Insert("payments").
		Columns("user_id", "patient_id", "session_id", "amount", "method", "status", "due_date", "paid_at", "description").
		Values(p.UserID, p.PatientID, p.SessionID, p.Amount, p.Method, p.Status, p.DueDate, p.PaidAt, p.Description).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return apperr.Internal(err)
	}
	err = r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return db.TranslateError(err, "payment")
}

func (r *paymentRepoPG) GetByID(ctx context.Context, pr auth.Principal, id int64) (*Payment, error) {
	sql, args, err := selectPayments(pr, paymentCols...).Where(sq.Eq{"pm.id": id}).ToSql()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	p, err := scanPayment(r.conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, db.TranslateError(err, "payment")
	}
	return p, nil
}

func (r *paymentRepoPG) Update(ctx context.Context, pr auth.Principal, p *Payment) error {
	q := scope.Apply(scope.Update("payments").SetMap(map[string]interface{}{
		"patient_id":  p.PatientID,
		"session_id":  p.SessionID,
		"amount":      p.Amount,
		"method":      p.Method,
		"status":      p.Status,
		"due_date":    p.DueDate,
		"paid_at":     p.PaidAt,
		"description": p.Description,
		"updated_at":  sq.Expr("NOW()"),
	}).Where(sq.Eq{"id": p.ID}), pr, "user_id")

	sql, args, err := q.Suffix("RETURNING updated_at").ToSql()
	if err != nil {
		return apperr.Internal(err)
	}
	err = r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&p.UpdatedAt)
	return db.TranslateError(err, "payment")
}

func (r *paymentRepoPG) Delete(ctx context.Context, pr auth.Principal, id int64) error {
	sql, args, err := scope.Apply(scope.Delete("payments").Where(sq.Eq{"id": id}), pr, "user_id").ToSql()
	if err != nil {
		return apperr.Internal(err)
	}
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return db.TranslateError(err, "payment")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("payment")
	}
	return nil
}

func applyFilter(q sq.SelectBuilder, f ListFilter) sq.SelectBuilder {
	if f.PatientID != nil {
		q = q.Where(sq.Eq{"pm.patient_id": *f.PatientID})
	}
	if f.Status != "" {
		q = q.Where(sq.Eq{"pm.status": f.Status})
	}
	if f.Method != "" {
		q = q.Where(sq.Eq{"pm.method": f.Method})
	}
	if f.Range.From != nil {
		q = q.Where(sq.GtOrEq{"pm.created_at": *f.Range.From})
	}
	if f.Range.To != nil {
		q = q.Where(sq.LtOrEq{"pm.created_at": *f.Range.To})
	}
	return q
}

func (r *paymentRepoPG) List(ctx context.Context, pr auth.Principal, f ListFilter, limit, offset int) ([]*Payment, int, error) {
	sql, args, err := applyFilter(selectPayments(pr, "COUNT(*)"), f).ToSql()
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return nil, 0, db.TranslateError(err, "payment")
	}

	sql, args, err = applyFilter(selectPayments(pr, paymentCols...), f).
		OrderBy("pm.created_at DESC", "pm.id DESC").
		Limit(uint64(limit)).Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, db.TranslateError(err, "payment")
	}
	defer rows.Close()

	items := make([]*Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, db.TranslateError(err, "payment")
		}
		items = append(items, p)
	}
	return items, total, db.TranslateError(rows.Err(), "payment")
}

func (r *paymentRepoPG) Totals(ctx context.Context, pr auth.Principal, f ListFilter) (map[string]StatusTotal, error) {
	sql, args, err := applyFilter(selectPayments(pr, "pm.status", "COUNT(*)", "COALESCE(SUM(pm.amount), 0)::float8"), f).
		GroupBy("pm.status").
		ToSql()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, db.TranslateError(err, "payment")
	}
	defer rows.Close()

	out := make(map[string]StatusTotal)
	for rows.Next() {
		var status string
		var t StatusTotal
		if err := rows.Scan(&status, &t.Count, &t.Amount); err != nil {
			return nil, db.TranslateError(err, "payment")
		}
		out[status] = t
	}
	return out, db.TranslateError(rows.Err(), "payment")
}
