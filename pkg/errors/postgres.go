package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE values the reservation transactions care about.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

type pgFields struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// postgresFields finds the driver error in the chain; pgx is checked first
// because gorm's postgres driver uses it, lib/pq covers the migrate binary.
func postgresFields(err error) (pgFields, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgFields{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgFields{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}, true
	}
	return pgFields{}, false
}

// FromStore reclassifies a transaction error by its SQLSTATE. Lost races on
// bed rows become a retryable hold conflict regardless of how the caller
// wrapped them; anything else is returned unchanged.
func FromStore(err error) error {
	if err == nil {
		return nil
	}
	pg, ok := postgresFields(err)
	if !ok {
		return err
	}
	switch pg.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return Wrap(CodeHoldConflict, err, "concurrent update on requested beds")
	case pgUniqueViolation:
		return Wrap(CodeConflict, err, "duplicate "+pg.Constraint)
	}
	return err
}

// ErrorDump is the debug payload logged next to 5xx responses.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	if pg, ok := postgresFields(err); ok {
		d.PGCode = pg.Code
		d.PGConstraint = pg.Constraint
		d.PGTable = pg.Table
		d.PGColumn = pg.Column
		d.PGDetail = pg.Detail
		d.PGMessage = pg.Message
	}
	return d
}
