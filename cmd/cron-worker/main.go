package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bedbroker-backend/internal/bootstrap"
)

const drainTimeout = 20 * time.Second

func main() {
	rt, err := bootstrap.Start(context.Background(), "cron-worker", bootstrap.Needs{
		Redis:  true,
		PubSub: bootstrap.PubSubIfConfigured,
	})
	if err != nil {
		rt.Logger.Error(context.Background(), "cron worker failed to start", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	runErr := run(rt.Context(ctx), rt)
	stop()

	if err := rt.Close(); err != nil {
		rt.Logger.Error(context.Background(), "error releasing connections", err)
	}
	if runErr != nil {
		rt.Logger.Error(context.Background(), "cron worker stopped unexpectedly", runErr)
		os.Exit(1)
	}
}

// run blocks until ctx is cancelled, then waits for in-flight hold
// releases to finish their side effects.
func run(ctx context.Context, rt *bootstrap.Runtime) error {
	engine, err := bootstrap.NewEngine(bootstrap.EngineParams{
		Config:     rt.Config,
		Logger:     rt.Logger,
		DB:         rt.DB,
		PubSub:     rt.PubSub,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return err
	}
	jobs, err := engine.Jobs(rt.Config, rt.Logger)
	if err != nil {
		return err
	}
	service, err := bootstrap.NewCronService(rt.Config, rt.Logger, rt.Redis, prometheus.DefaultRegisterer, jobs...)
	if err != nil {
		return err
	}

	rt.Logger.Info(rt.Logger.WithField(ctx, "interval", rt.Config.Cron.Interval.String()), "starting cron worker")
	err = service.Run(ctx)

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	engine.Drain(drainCtx)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	rt.Logger.Info(ctx, "cron worker shut down gracefully")
	return nil
}
