package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/bedbroker-backend/api/controllers"
	"github.com/angelmondragon/bedbroker-backend/api/middleware"
	"github.com/angelmondragon/bedbroker-backend/internal/inventory"
	"github.com/angelmondragon/bedbroker-backend/internal/notifications"
	"github.com/angelmondragon/bedbroker-backend/internal/reservations"
	pkgauth "github.com/angelmondragon/bedbroker-backend/pkg/auth"
	"github.com/angelmondragon/bedbroker-backend/pkg/config"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
	"github.com/angelmondragon/bedbroker-backend/pkg/metrics"
)

// RedisStore is the slice of the redis client the HTTP layer needs.
type RedisStore interface {
	middleware.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators served over HTTP. Redis, PubSub,
// Revocations, Gatherer and HTTPMetrics are optional.
type Dependencies struct {
	DB            controllers.Pinger
	Redis         RedisStore
	PubSub        controllers.Pinger
	Revocations   pkgauth.RevocationChecker
	Reservations  reservations.Service
	Inventory     inventory.Service
	Notifications notifications.Service
	Gatherer      prometheus.Gatherer
	HTTPMetrics   *metrics.HTTPMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["db"] = deps.DB
	}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}
	if deps.PubSub != nil {
		readiness["pubsub"] = deps.PubSub
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// inline middlewares run after routing, so chi has the full route pattern
	idempotent := func(next http.Handler) http.Handler { return next }
	holdLimit := idempotent
	if deps.Redis != nil {
		idempotent = middleware.Idempotency(deps.Redis, cfg.Eventing.IdempotencyTTL, logg)
		holdLimit = middleware.RateLimit(middleware.NewRateLimitPolicy(
			"holds",
			cfg.RateLimit.HoldWindow,
			cfg.RateLimit.HoldIPLimit,
			cfg.RateLimit.HoldActorLimit,
		), deps.Redis, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Revocations, logg))

		r.Route("/listings/{listingId}", func(r chi.Router) {
			r.Get("/availability", controllers.ListingAvailability(deps.Inventory, logg))
			r.Get("/reservations", controllers.ListListingReservations(deps.Reservations, logg))
			r.With(holdLimit, idempotent).Post("/holds", controllers.CreateHold(deps.Reservations, logg))
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", controllers.ListMyReservations(deps.Reservations, logg))
			r.Get("/{reservationId}", controllers.GetReservation(deps.Reservations, logg))
			r.With(idempotent).Post("/{reservationId}/approve", controllers.ApproveReservation(deps.Reservations, logg))
			r.With(idempotent).Post("/{reservationId}/payment", controllers.ReportPayment(deps.Reservations, logg))
			r.With(idempotent).Post("/{reservationId}/cancel", controllers.CancelReservation(deps.Reservations, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.With(idempotent).Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			r.With(idempotent).Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
		})
	})

	return r
}
