package identity

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/psiclinic/clinic/internal/platform/apperr"
	"github.com/psiclinic/clinic/internal/platform/db"
	"github.com/psiclinic/clinic/internal/platform/scope"
)

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

var userCols = []string{
	"id", "email", "password_hash", "name", "role", "crp", "phone",
	"is_active", "last_login_at", "created_at", "updated_at",
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CRP, &u.Phone,
		&u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	sql, args, err := scope.Insert("users").
		Columns("email", "password_hash", "name", "role", "crp", "phone", "is_active").
		Values(u.Email, u.PasswordHash, u.Name, u.Role, u.CRP, u.Phone, u.IsActive).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return apperr.Internal(err)
	}
	err = r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return db.TranslateError(err, "user")
}

func (r *userRepoPG) getOne(ctx context.Context, where sq.Sqlizer) (*User, error) {
	sql, args, err := scope.Select(userCols...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, db.TranslateError(err, "user")
	}
	return u, nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, sq.Eq{"email": email})
}

func (r *userRepoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, db.TranslateError(err, "user")
	}

	sql, args, err := scope.Select(userCols...).From("users").
		OrderBy("name", "id").
		Limit(uint64(limit)).Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, db.TranslateError(err, "user")
	}
	defer rows.Close()

	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, db.TranslateError(err, "user")
		}
		items = append(items, u)
	}
	return items, total, db.TranslateError(rows.Err(), "user")
}

func (r *userRepoPG) update(ctx context.Context, id int64, set map[string]interface{}) error {
	set["updated_at"] = sq.Expr("NOW()")
	sql, args, err := scope.Update("users").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return apperr.Internal(err)
	}
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return db.TranslateError(err, "user")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

func (r *userRepoPG) SetActive(ctx context.Context, id int64, active bool) error {
	return r.update(ctx, id, map[string]interface{}{"is_active": active})
}

func (r *userRepoPG) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.update(ctx, id, map[string]interface{}{"password_hash": hash})
}

func (r *userRepoPG) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	sql, args, err := scope.Update("users").Set("last_login_at", at).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return apperr.Internal(err)
	}
	_, err = r.conn(ctx).Exec(ctx, sql, args...)
	return db.TranslateError(err, "user")
}
