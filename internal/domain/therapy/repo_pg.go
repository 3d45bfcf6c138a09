package therapy

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

type sessionRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &sessionRepoPG{pool: pool} }

func (r *sessionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

var sessionCols = []string{
	"s.id", "s.user_id", "s.patient_id", "p.name", "s.date", "s.duration", "s.modality", "s.mood",
	"s.notes", "s.objectives", "s.techniques", "s.attachments", "s.next_steps", "s.created_at", "s.updated_at",
}

func selectSessions(pr auth.Principal, columns ...string) sq.SelectBuilder {
	q := scope.Select(columns...).From("sessions s").Join("patients p ON p.id = s.patient_id")
	return scope.Apply(q, pr, "s.user_id")
}

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.PatientID, &s.PatientName, &s.Date, &s.Duration, &s.Modality, &s.Mood,
		&s.Notes, &s.Objectives, &s.Techniques, &s.Attachments, &s.NextSteps, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *sessionRepoPG) Create(ctx context.Context, s *Session) error {
	sql, args, err := scope.Insert("sessions").
		Columns("user_id", "patient_id", "date", "duration", "modality", "mood", "notes",
			"objectives", "techniques", "attachments", "next_steps").
		Values(s.UserID, s.PatientID, s.Date, s.Duration, s.Modality, s.Mood, s.Notes,
			s.Objectives, s.Techniques, s.Attachments, s.NextSteps).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return apperr.Internal(err)
	}
	err = r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	return db.TranslateError(err, "session")
}

func (r *sessionRepoPG) GetByID(ctx context.Context, pr auth.Principal, id int64) (*Session, error) {
	sql, args, err := selectSessions(pr, sessionCols...).Where(sq.Eq{"s.id": id}).ToSql()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s, err := scanSession(r.conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, db.TranslateError(err, "session")
	}
	return s, nil
}

func (r *sessionRepoPG) Update(ctx context.Context, pr auth.Principal, s *Session) error {
	q := scope.Apply(scope.Update("sessions").SetMap(map[string]interface{}{
		"patient_id":  s.PatientID,
		"date":        s.Date,
		"duration":    s.Duration,
		"modality":    s.Modality,
		"mood":        s.Mood,
		"notes":       s.Notes,
		"objectives":  s.Objectives,
		"techniques":  s.Techniques,
		"attachments": s.Attachments,
		"next_steps":  s.NextSteps,
		"updated_at":  sq.Expr("NOW()"),
	}).Where(sq.Eq{"id": s.ID}), pr, "user_id")
	// A session linked to payments keeps its patient.
	q = q.Where("NOT EXISTS (SELECT 1 FROM payments pay WHERE pay.session_id = sessions.id AND pay.patient_id <> ?)", s.PatientID)

	sql, args, err := q.Suffix("RETURNING updated_at").ToSql()
	if err != nil {
		return apperr.Internal(err)
	}
	err = r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&s.UpdatedAt)
	return db.TranslateError(err, "session")
}

func (r *sessionRepoPG) LinkedPayments(ctx context.Context, sessionID int64) (int, error) {
	sql, args, err := scope.Select("COUNT(*)").From("payments").Where(sq.Eq{"session_id": sessionID}).ToSql()
	if err != nil {
		return 0, apperr.Internal(err)
	}
	var n int
	if err := r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, db.TranslateError(err, "session")
	}
	return n, nil
}

func (r *sessionRepoPG) Delete(ctx context.Context, pr auth.Principal, id int64) error {
	sql, args, err := scope.Apply(scope.Delete("sessions").Where(sq.Eq{"id": id}), pr, "user_id").ToSql()
	if err != nil {
		return apperr.Internal(err)
	}
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return db.TranslateError(err, "session")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("session")
	}
	return nil
}

func applyFilter(q sq.SelectBuilder, f ListFilter) sq.SelectBuilder {
	if f.PatientID != nil {
		q = q.Where(sq.Eq{"s.patient_id": *f.PatientID})
	}
	if f.Range.From != nil {
		q = q.Where(sq.GtOrEq{"s.date": *f.Range.From})
	}
	if f.Range.To != nil {
		q = q.Where(sq.LtOrEq{"s.date": *f.Range.To})
	}
	return q
}

func (r *sessionRepoPG) List(ctx context.Context, pr auth.Principal, f ListFilter, limit, offset int) ([]*Session, int, error) {
	sql, args, err := applyFilter(selectSessions(pr, "COUNT(*)"), f).ToSql()
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return nil, 0, db.TranslateError(err, "session")
	}

	sql, args, err = applyFilter(selectSessions(pr, sessionCols...), f).
		OrderBy("s.date DESC", "s.id DESC").
		Limit(uint64(limit)).Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, db.TranslateError(err, "session")
	}
	defer rows.Close()

	items := make([]*Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, db.TranslateError(err, "session")
		}
		items = append(items, s)
	}
	return items, total, db.TranslateError(rows.Err(), "session")
}
