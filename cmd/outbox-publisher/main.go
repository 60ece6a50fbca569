package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bedbroker-backend/internal/bootstrap"
	"github.com/angelmondragon/bedbroker-backend/pkg/metrics"
	"github.com/angelmondragon/bedbroker-backend/pkg/outbox"
	"github.com/angelmondragon/bedbroker-backend/pkg/outbox/registry"
)

const serviceName = "outbox-publisher"

func main() {
	listDLQ := flag.Bool("dlq-list", false, "print dead-lettered events and exit")
	replayID := flag.String("dlq-replay", "", "requeue the dead-lettered event with this id and exit")
	flag.Parse()
	dlqMode := *listDLQ || *replayID != ""

	// dead letter maintenance only needs the database
	needs := bootstrap.Needs{PubSub: bootstrap.PubSubRequired}
	if dlqMode {
		needs.PubSub = bootstrap.PubSubOff
	}
	rt, err := bootstrap.Start(context.Background(), serviceName, needs)
	if err != nil {
		rt.Logger.Error(context.Background(), "outbox publisher failed to start", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if dlqMode {
		err = runDLQCommand(ctx, os.Stdout, outbox.NewDLQRepository(rt.DB.DB()), *listDLQ, *replayID)
	} else {
		err = publish(rt.Context(ctx), rt)
	}
	stop()

	if closeErr := rt.Close(); closeErr != nil {
		rt.Logger.Error(context.Background(), "error releasing connections", closeErr)
	}
	if err != nil {
		rt.Logger.Error(context.Background(), "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
}

func publish(ctx context.Context, rt *bootstrap.Runtime) error {
	eventRegistry, err := registry.NewEventRegistry(rt.Config.PubSub)
	if err != nil {
		return err
	}
	service, err := NewService(ServiceParams{
		Config:        rt.Config,
		Logger:        rt.Logger,
		DB:            rt.DB,
		PubSub:        rt.PubSub,
		Repository:    outbox.NewRepository(rt.DB.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(rt.DB.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	rt.Logger.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	rt.Logger.Info(ctx, "outbox publisher shut down gracefully")
	return nil
}

// runDLQCommand replays first so a combined invocation lists the table
// after the requeue.
func runDLQCommand(ctx context.Context, out io.Writer, dlq *outbox.DLQRepository, list bool, replayID string) error {
	if replayID != "" {
		id, err := uuid.Parse(replayID)
		if err != nil {
			return fmt.Errorf("invalid event id: %w", err)
		}
		if err := dlq.Replay(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "requeued %s\n", id)
	}
	if !list {
		return nil
	}
	rows, err := dlq.List(ctx, 0)
	if err != nil {
		return err
	}
	for _, row := range rows {
		msg := ""
		if row.ErrorMessage != nil {
			msg = *row.ErrorMessage
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%d\t%s\n",
			row.EventID, row.EventType, row.FailedAt.Format(time.RFC3339), row.ErrorReason, row.AttemptCount, msg)
	}
	return nil
}
