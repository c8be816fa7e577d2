package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// MapError converts sql.ErrNoRows to notFound and unique violations to
// duplicate. Anything else, nil included, is returned as is.
func MapError(err error, notFound, duplicate error) error {
	var pgErr *pgconn.PgError

	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return notFound
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return duplicate
	}
	return err
}
