package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsUniqueViolation reports a duplicate-key error, optionally on a named
// constraint. Postgres errors are matched by SQLSTATE; sqlite only exposes
// text, so it falls back to the message.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	msg := err.Error()
	if constraint != "" && strings.Contains(msg, constraint) {
		return true
	}
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
