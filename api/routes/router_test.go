package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bedbroker-backend/internal/reservations"
	pkgauth "github.com/angelmondragon/bedbroker-backend/pkg/auth"
	"github.com/angelmondragon/bedbroker-backend/pkg/config"
	"github.com/angelmondragon/bedbroker-backend/pkg/enums"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
)

type memoryRedis struct {
	mu       sync.Mutex
	values   map[string]string
	counters map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, counters: map[string]int64{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value.(string)
	return nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string { return "idem:" + scope + ":" + id }
func (m *memoryRedis) RateLimitKey(scope string) string       { return "rl:" + scope }
func (m *memoryRedis) Ping(context.Context) error             { return nil }

func (m *memoryRedis) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	return m.counters[key], nil
}

type countingReservations struct {
	reservations.Service
	mu    sync.Mutex
	holds int
}

func (c *countingReservations) CreateHold(_ context.Context, in reservations.CreateHoldInput) (*reservations.ReservationDTO, error) {
	c.mu.Lock()
	c.holds++
	c.mu.Unlock()
	return &reservations.ReservationDTO{ID: uuid.New(), ListingID: in.ListingID, RequesterID: in.RequesterID, BedIDs: in.BedIDs, Status: enums.ReservationStatusPending}, nil
}

func (c *countingReservations) Cancel(context.Context, uuid.UUID, uuid.UUID) bool { return true }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "bedbroker"},
		RateLimit: config.RateLimitConfig{
			HoldWindow:     time.Minute,
			HoldActorLimit: 2,
		},
	}
}

func newTestRouter(t *testing.T, svc reservations.Service, store RedisStore) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	handler := NewRouter(cfg, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}), Dependencies{
		Redis:        store,
		Reservations: svc,
		Gatherer:     prometheus.NewRegistry(),
	})
	return handler, cfg
}

func bearer(t *testing.T, cfg *config.Config, user uuid.UUID) string {
	t.Helper()
	token, err := pkgauth.Issue(cfg.JWT, time.Now(), pkgauth.Grant{UserID: user, TTL: time.Hour})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	handler, _ := newTestRouter(t, &countingReservations{}, nil)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, resp.Code, path)
	}
}

func TestAPIRequiresAuthentication(t *testing.T) {
	handler, _ := newTestRouter(t, &countingReservations{}, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/reservations", nil))
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestHoldRouteIsIdempotent(t *testing.T) {
	svc := &countingReservations{}
	handler, cfg := newTestRouter(t, svc, newMemoryRedis())
	user, listing := uuid.New(), uuid.New()
	body := fmt.Sprintf(`{"bed_ids":["%s"]}`, uuid.NewString())

	var bodies []string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/"+listing.String()+"/holds", strings.NewReader(body))
		req.Header.Set("Authorization", bearer(t, cfg, user))
		req.Header.Set("Idempotency-Key", "hold-1")
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		require.Equal(t, http.StatusCreated, resp.Code)
		bodies = append(bodies, resp.Body.String())
	}

	require.Equal(t, 1, svc.holds)
	require.Equal(t, bodies[0], bodies[1])
}

func TestHoldRouteRequiresIdempotencyKey(t *testing.T) {
	svc := &countingReservations{}
	handler, cfg := newTestRouter(t, svc, newMemoryRedis())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/"+uuid.NewString()+"/holds", strings.NewReader(`{"bed_ids":["`+uuid.NewString()+`"]}`))
	req.Header.Set("Authorization", bearer(t, cfg, uuid.New()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Zero(t, svc.holds)
}

func TestHoldRouteRateLimitedPerActor(t *testing.T) {
	svc := &countingReservations{}
	handler, cfg := newTestRouter(t, svc, newMemoryRedis())
	user := uuid.New()

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/"+uuid.NewString()+"/holds", strings.NewReader(`{"bed_ids":["`+uuid.NewString()+`"]}`))
		req.Header.Set("Authorization", bearer(t, cfg, user))
		req.Header.Set("Idempotency-Key", fmt.Sprintf("k-%d", i))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		last = resp.Code
	}

	require.Equal(t, http.StatusTooManyRequests, last)
	require.Equal(t, 2, svc.holds)
}

func TestCancelRoute(t *testing.T) {
	handler, cfg := newTestRouter(t, &countingReservations{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/"+uuid.NewString()+"/cancel", nil)
	req.Header.Set("Authorization", bearer(t, cfg, uuid.New()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"data":{"cancelled":true}}`, resp.Body.String())
}
