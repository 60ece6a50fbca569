package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
)

func TestRecovererWritesInternalError(t *testing.T) {
	h := Recoverer(logger.New(logger.Options{ServiceName: "test"}))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil listing")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reservations", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	require.NotContains(t, rec.Body.String(), "nil listing")
}

func TestRecovererRepanicsAbort(t *testing.T) {
	h := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
