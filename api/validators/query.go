package validators

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/bedbroker-backend/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// QueryReader parses query string values and collects every problem so a
// single 400 lists all bad parameters, keyed the same way body validation
// keys its fields.
type QueryReader struct {
	values url.Values
	errs   map[string]string
}

func Query(r *http.Request) *QueryReader {
	return &QueryReader{values: r.URL.Query(), errs: map[string]string{}}
}

func (q *QueryReader) raw(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

// String returns the trimmed value or "".
func (q *QueryReader) String(key string) string {
	return q.raw(key)
}

// Int returns def when the key is absent.
func (q *QueryReader) Int(key string, def, min, max int) int {
	raw := q.raw(key)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		q.errs[key] = "must be numeric"
	case value < min || value > max:
		q.errs[key] = fmt.Sprintf("must be between %d and %d", min, max)
	default:
		return value
	}
	return def
}

func (q *QueryReader) Bool(key string) bool {
	raw := q.raw(key)
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		q.errs[key] = "must be a boolean"
		return false
	}
	return value
}

// UUID returns nil when the key is absent.
func (q *QueryReader) UUID(key string) *uuid.UUID {
	raw := q.raw(key)
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		q.errs[key] = "must be a uuid"
		return nil
	}
	return &id
}

// Err reports the collected problems as one validation error.
func (q *QueryReader) Err() error {
	if len(q.errs) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameters").WithDetails(q.errs)
}

// ParseUUIDParam reads a chi path parameter as a non-nil uuid.
func ParseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, key)))
	if err == nil && id != uuid.Nil {
		return id, nil
	}
	return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid path parameter").
		WithDetails(map[string]string{key: "must be a uuid"})
}
