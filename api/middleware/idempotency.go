package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/bedbroker-backend/api/responses"
	pkgerrors "github.com/angelmondragon/bedbroker-backend/pkg/errors"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// claimTTL bounds how long a crashed request keeps its key busy.
	claimTTL = time.Minute
)

// IdempotencyStore is the redis surface the middleware needs.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type idempotentRoute struct {
	method   string
	pattern  string
	critical bool
}

// Confirmations move money, so their replay window outlives the default.
var idempotentRoutes = []idempotentRoute{
	{method: http.MethodPost, pattern: "/api/v1/listings/{listingId}/holds"},
	{method: http.MethodPost, pattern: "/api/v1/reservations/{reservationId}/cancel"},
	{method: http.MethodPost, pattern: "/api/v1/notifications/{notificationId}/read"},
	{method: http.MethodPost, pattern: "/api/v1/notifications/read-all"},
	{method: http.MethodPost, pattern: "/api/v1/reservations/{reservationId}/approve", critical: true},
	{method: http.MethodPost, pattern: "/api/v1/reservations/{reservationId}/payment", critical: true},
}

// storedResponse doubles as the in-flight claim: Pending is set while the
// first request with a key is still running.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency makes the listed mutations safe to retry. The first request
// with a given Idempotency-Key claims it, runs, and stores its response;
// repeats get the stored response back, a different body under the same key
// is a 409, and 5xx outcomes release the key so the client can retry.
// It must be attached per route so chi already knows the pattern.
func Idempotency(store IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			replayTTL, ok := routeTTL(r.Method, routePattern(r), ttl)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if idemKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := requestHash(body)
			key := store.IdempotencyKey(scopeOf(r), idemKey)

			claimed, err := claim(ctx, store, key, hash)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replay(ctx, store, key, hash, w, logg)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusOrOK()
			if status >= http.StatusInternalServerError {
				if err := store.Del(context.WithoutCancel(ctx), key); err != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}
			payload, err := json.Marshal(storedResponse{
				RequestHash: hash,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err == nil {
				err = store.Set(context.WithoutCancel(ctx), key, string(payload), replayTTL)
			}
			if err != nil {
				logg.Error(ctx, "store idempotent response", err)
			}
		})
	}
}

func claim(ctx context.Context, store IdempotencyStore, key, hash string) (bool, error) {
	marker, err := json.Marshal(storedResponse{Pending: true, RequestHash: hash})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(marker), claimTTL)
}

func replay(ctx context.Context, store IdempotencyStore, key, hash string, w http.ResponseWriter, logg *logger.Logger) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// the claim expired between SetNX and Get
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is still in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotent response"))
		return
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotent response"))
		return
	}
	switch {
	case stored.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case stored.Pending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is still in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

// scopeOf keys by caller and concrete path so two users can pick the same
// Idempotency-Key without colliding.
func scopeOf(r *http.Request) string {
	return strings.Join([]string{callerKey(r), r.Method, r.URL.Path}, "|")
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string, base time.Duration) (time.Duration, bool) {
	for _, route := range idempotentRoutes {
		if route.method != method || route.pattern != pattern {
			continue
		}
		if route.critical && base < criticalIdempotencyTTL {
			return criticalIdempotencyTTL, true
		}
		return base, true
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
