package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/psiclinic/clinic/internal/platform/apperr"
)

// SQLSTATE codes translated into the application taxonomy.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// TranslateError maps storage errors to apperr kinds so raw driver errors never
// reach API clients. resource names the entity for NotFound messages.
func TranslateError(err error, resource string) error {
	if err == nil {
		return nil
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(resource)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return &apperr.Error{
				Kind:    apperr.KindConflict,
				Message: resource + " already exists",
				Details: map[string]string{"constraint": pgErr.ConstraintName},
				Err:     err,
			}
		case codeForeignKeyViolation:
			return &apperr.Error{
				Kind:    apperr.KindValidation,
				Message: "referenced record does not exist",
				Details: map[string]string{"constraint": pgErr.ConstraintName},
				Err:     err,
			}
		case codeCheckViolation:
			return &apperr.Error{
				Kind:    apperr.KindValidation,
				Message: resource + " violates a data constraint",
				Details: map[string]string{"constraint": pgErr.ConstraintName},
				Err:     err,
			}
		}
	}

	return apperr.Internal(err)
}
