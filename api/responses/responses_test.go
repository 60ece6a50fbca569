package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/bedbroker-backend/pkg/errors"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
	"github.com/angelmondragon/bedbroker-backend/pkg/types"
)

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestWriteSuccessEnvelopes(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"hello": "world"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"hello":"world"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteCreated(rec, "/api/v1/reservations/abc", map[string]string{"id": "abc"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/api/v1/reservations/abc", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	WriteCreated(rec, "", nil)
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestWriteErrorKeepsCallerMessageAndDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "bad input").
		WithDetails(map[string]string{"field": "bed_ids"})
	WriteError(context.Background(), nil, rec, err)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := errorBody(t, rec)
	assert.Equal(t, string(pkgerrors.CodeValidation), body.Code)
	assert.Equal(t, "bad input", body.Message)
	assert.Equal(t, map[string]any{"field": "bed_ids"}, body.Details)
}

// Availability codes must never echo internal text: it could name the
// renter holding the bed.
func TestWriteErrorHidesAvailabilityDetail(t *testing.T) {
	cases := []struct {
		code      pkgerrors.Code
		status    int
		retryable bool
	}{
		{code: pkgerrors.CodeHoldConflict, status: http.StatusConflict, retryable: true},
		{code: pkgerrors.CodeNoLongerAvailable, status: http.StatusConflict},
		{code: pkgerrors.CodeAlreadyOccupied, status: http.StatusConflict},
		{code: pkgerrors.CodeInvalidInventory, status: http.StatusUnprocessableEntity},
		{code: pkgerrors.CodeHoldExpired, status: http.StatusGone},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), nil, rec, pkgerrors.New(tc.code, "held by renter 42"))

			require.Equal(t, tc.status, rec.Code)
			body := errorBody(t, rec)
			assert.Equal(t, pkgerrors.MetadataFor(tc.code).PublicMessage, body.Message)
			assert.Equal(t, tc.retryable, body.Retryable)
			if tc.retryable {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			} else {
				assert.Empty(t, rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestWriteErrorTreatsUntypedAsInternal(t *testing.T) {
	var logs bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Format: logger.FormatJSON, Output: &logs})

	rec := httptest.NewRecorder()
	WriteError(context.Background(), logg, rec, errors.New("boom"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := errorBody(t, rec)
	assert.Equal(t, string(pkgerrors.CodeInternal), body.Code)
	assert.NotContains(t, body.Message, "boom")
	assert.Empty(t, rec.Header().Get("Retry-After"))

	assert.Contains(t, logs.String(), `"level":"error"`)
	assert.Contains(t, logs.String(), "boom")
}

func TestWriteErrorLogsRejectionsAsWarnings(t *testing.T) {
	var logs bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Format: logger.FormatJSON, Output: &logs})

	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found"))

	assert.Contains(t, logs.String(), `"level":"warn"`)
	assert.Contains(t, logs.String(), "request.rejected")
}

func TestWriteErrorNilIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
