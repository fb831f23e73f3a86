package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/visitmgr/visitmgr/pkg/errors"
)

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"
	sqlStateNumericOutOfRange   = "22003"
)

func sqlState(err error) (string, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

// IsNoRows reports whether err is pgx.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsUniqueViolation(err error) bool {
	code, _ := sqlState(err)
	return code == sqlStateUniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	code, _ := sqlState(err)
	return code == sqlStateForeignKeyViolation
}

func IsCheckViolation(err error) bool {
	code, _ := sqlState(err)
	return code == sqlStateCheckViolation
}

// ConstraintName returns the violated constraint, if err came from Postgres.
func ConstraintName(err error) string {
	_, name := sqlState(err)
	return name
}

func IsOutOfRange(err error) bool {
	code, _ := sqlState(err)
	return code == sqlStateNumericOutOfRange
}

// InputError turns Postgres rejections of submitted values into
// InvalidInput: numbers too large for their column and failed CHECK
// constraints. Any other error is returned unchanged.
func InputError(err error) error {
	switch {
	case IsOutOfRange(err):
		return apperrors.NewInvalidInputError("Value out of range.")
	case IsCheckViolation(err):
		return apperrors.NewInvalidInputError("Value rejected by " + ConstraintName(err) + ".")
	}
	return err
}
