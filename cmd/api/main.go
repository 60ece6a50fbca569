package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bedbroker-backend/api/controllers"
	"github.com/angelmondragon/bedbroker-backend/api/routes"
	"github.com/angelmondragon/bedbroker-backend/internal/bootstrap"
	"github.com/angelmondragon/bedbroker-backend/internal/cron"
	"github.com/angelmondragon/bedbroker-backend/pkg/auth"
	"github.com/angelmondragon/bedbroker-backend/pkg/env"
	"github.com/angelmondragon/bedbroker-backend/pkg/metrics"
)

const (
	shutdownTimeout   = 20 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	rt, err := bootstrap.Start(context.Background(), "api", bootstrap.Needs{
		Redis:  true,
		PubSub: bootstrap.PubSubIfConfigured,
	})
	if err != nil {
		rt.Logger.Error(context.Background(), "api failed to start", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	runErr := serve(rt.Context(ctx), rt)
	stop()

	if err := rt.Close(); err != nil {
		rt.Logger.Error(context.Background(), "error releasing connections", err)
	}
	if runErr != nil {
		rt.Logger.Error(context.Background(), "api server stopped unexpectedly", runErr)
		os.Exit(1)
	}
}

func serve(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg, logg := rt.Config, rt.Logger

	engine, err := bootstrap.NewEngine(bootstrap.EngineParams{
		Config:     cfg,
		Logger:     logg,
		DB:         rt.DB,
		PubSub:     rt.PubSub,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return err
	}
	denylist, err := auth.NewDenylist(rt.Redis)
	if err != nil {
		return err
	}

	var sweeper *cron.Service
	if cfg.FeatureFlags.SweeperEmbedded {
		if sweeper, err = embeddedSweeper(ctx, rt, engine); err != nil {
			return err
		}
	}

	deps := routes.Dependencies{
		DB:            rt.DB,
		Redis:         rt.Redis,
		Revocations:   denylist,
		Reservations:  engine.Reservations,
		Inventory:     engine.Inventory,
		Notifications: engine.Notifications,
		Gatherer:      prometheus.DefaultGatherer,
		HTTPMetrics:   metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
	}
	// a nil *pubsub.Client must not become a non-nil Pinger
	if rt.PubSub != nil {
		deps.PubSub = controllers.Pinger(rt.PubSub)
	}

	server := &http.Server{
		Addr:              ":" + env.First(cfg.App.Port, "PORT"),
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	ctx = logg.WithField(ctx, "addr", server.Addr)
	logg.Info(ctx, "starting api server")

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		logg.Error(shutdownCtx, "api server shutdown failed", shutdownErr)
	}
	if sweeper != nil {
		sweeper.Stop()
	}
	engine.Drain(shutdownCtx)
	if err == nil {
		logg.Info(shutdownCtx, "api server shut down gracefully")
	}
	return err
}

// embeddedSweeper runs the cron jobs inside the api process for single
// instance deployments; the redis lock still keeps one runner per env.
func embeddedSweeper(ctx context.Context, rt *bootstrap.Runtime, engine *bootstrap.Engine) (*cron.Service, error) {
	jobs, err := engine.Jobs(rt.Config, rt.Logger)
	if err != nil {
		return nil, err
	}
	sweeper, err := bootstrap.NewCronService(rt.Config, rt.Logger, rt.Redis, prometheus.DefaultRegisterer, jobs...)
	if err != nil {
		return nil, err
	}
	if err := sweeper.Start(ctx); err != nil {
		return nil, err
	}
	rt.Logger.Info(ctx, "embedded hold sweeper started")
	return sweeper, nil
}
