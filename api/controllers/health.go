package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/bedbroker-backend/api/responses"
	"github.com/angelmondragon/bedbroker-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/bedbroker-backend/pkg/errors"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is satisfied by the db, redis and pubsub clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-BedBroker-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency; nil pingers are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-BedBroker-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		var failed []string
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "error"
				failed = append(failed, name)
				logg.Error(logg.WithField(ctx, "dependency", name), "readiness check failed", err)
				continue
			}
			checks[name] = "ok"
		}
		if len(failed) > 0 {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").
				WithDetails(map[string]any{"checks": checks}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
