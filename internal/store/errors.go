package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors returned by Store Gateway operations. Callers use
// errors.Is to distinguish a missing row from a transient database
// failure.
var (
	// ErrNotFound is returned when a lookup by id/url/code matches no row.
	ErrNotFound = errors.New("store: not found")

	// ErrConstraintViolation is returned when an insert/update would
	// violate a unique or check constraint (duplicate URL for a user,
	// duplicate user_code, etc).
	ErrConstraintViolation = errors.New("store: constraint violation")

	// ErrUnavailable is returned when the database cannot be reached at
	// all (connection refused, pool exhausted past its wait deadline).
	ErrUnavailable = errors.New("store: unavailable")
)

// Postgres error codes this package checks for. See
// https://www.postgresql.org/docs/current/errcodes-appendix.html.
const (
	pgCodeUniqueViolation = "23505"
	pgCodeCheckViolation  = "23514"
)

// isConstraintViolation reports whether err is a unique or check constraint
// failure raised by Postgres.
func isConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgCodeUniqueViolation || pgErr.Code == pgCodeCheckViolation
}
