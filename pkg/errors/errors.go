// Package errors defines the typed error every layer returns and the table
// that maps its code to an HTTP status and a public message.
package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// reservation outcomes
	CodeInvalidInventory  Code = "INVALID_INVENTORY_REFERENCE"
	CodeAlreadyOccupied   Code = "ALREADY_OCCUPIED"
	CodeHoldConflict      Code = "HOLD_CONFLICT"
	CodeNoLongerAvailable Code = "NO_LONGER_AVAILABLE"
	CodeHoldExpired       Code = "HOLD_EXPIRED"
)

// Metadata is the HTTP face of a Code. Details are only sent to clients when
// DetailsAllowed is set.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const bedsUnavailable = "beds no longer available"

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, false, "validation failed", true},
	CodeUnauthorized:  {http.StatusUnauthorized, false, "authentication required", false},
	CodeForbidden:     {http.StatusForbidden, false, "access denied", false},
	CodeNotFound:      {http.StatusNotFound, false, "resource not found", false},
	CodeConflict:      {http.StatusConflict, false, "conflict detected", false},
	CodeStateConflict: {http.StatusUnprocessableEntity, false, "state transition disallowed", true},
	CodeIdempotency:   {http.StatusConflict, false, "idempotency key reused", true},
	CodeRateLimit:     {http.StatusTooManyRequests, false, "rate limit exceeded", false},
	CodeInternal:      {http.StatusInternalServerError, true, "internal server error", false},
	CodeDependency:    {http.StatusServiceUnavailable, true, "dependency unavailable", true},

	CodeInvalidInventory: {http.StatusUnprocessableEntity, false, "requested beds are not part of this listing", true},
	CodeAlreadyOccupied:  {http.StatusConflict, false, bedsUnavailable, true},
	// lost a race with another hold; a fresh attempt may pick other beds
	CodeHoldConflict:      {http.StatusConflict, true, bedsUnavailable, true},
	CodeNoLongerAvailable: {http.StatusConflict, false, bedsUnavailable, true},
	CodeHoldExpired:       {http.StatusGone, false, "reservation hold expired", false},
}

// MetadataFor treats unknown codes as internal errors.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error carries a Code, an operator-facing message and an optional cause.
// A nil *Error reports CodeInternal.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap keeps err reachable through errors.Is/As.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.code) + ": " + e.message
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Is reports whether the outermost *Error in err's chain has code.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
