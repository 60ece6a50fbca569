package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bedbroker-backend/internal/cron"
	"github.com/angelmondragon/bedbroker-backend/internal/inventory"
	"github.com/angelmondragon/bedbroker-backend/internal/listings"
	"github.com/angelmondragon/bedbroker-backend/internal/notifications"
	"github.com/angelmondragon/bedbroker-backend/internal/reservations"
	"github.com/angelmondragon/bedbroker-backend/pkg/config"
	"github.com/angelmondragon/bedbroker-backend/pkg/db"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
	"github.com/angelmondragon/bedbroker-backend/pkg/metrics"
	"github.com/angelmondragon/bedbroker-backend/pkg/outbox"
	"github.com/angelmondragon/bedbroker-backend/pkg/pubsub"
	"github.com/angelmondragon/bedbroker-backend/pkg/redis"
	"github.com/angelmondragon/bedbroker-backend/pkg/searchindex"
)

// Engine holds the reservation domain services shared by the api and
// cron-worker binaries.
type Engine struct {
	Reservations  reservations.Service
	Inventory     inventory.Service
	Notifications notifications.Service

	notificationRepo notifications.Repository
	outboxRepo       *outbox.Repository
	db               *db.Client
}

// EngineParams carry the infrastructure clients. PubSub is nil when GCP is
// not configured; the search removal then only logs.
type EngineParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	PubSub     *pubsub.Client
	Registerer prometheus.Registerer
}

// NewEngine wires repositories, the outbox, the occupancy trigger and the
// reservation service.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Config == nil {
		return nil, errors.New("config required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("database client required")
	}
	reg := params.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	conn := params.DB.DB()

	notificationRepo := notifications.NewRepository(conn)
	notifier, err := notifications.NewNotifier(notificationRepo, params.Logger)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}
	notificationService, err := notifications.NewService(notificationRepo)
	if err != nil {
		return nil, fmt.Errorf("notifications service: %w", err)
	}

	inventoryRepo := inventory.NewRepository(conn)
	inventoryService, err := inventory.NewService(inventoryRepo)
	if err != nil {
		return nil, fmt.Errorf("inventory service: %w", err)
	}

	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, params.Logger)
	reservationMetrics := metrics.NewReservationMetrics(reg)

	occupancy, err := listings.NewOccupancyTrigger(inventoryRepo, emitter, listings.WithMetrics(reservationMetrics))
	if err != nil {
		return nil, fmt.Errorf("occupancy trigger: %w", err)
	}

	var remover searchindex.Remover = searchindex.NewLogRemover(params.Logger)
	if params.PubSub != nil {
		pubsubRemover, err := searchindex.NewPubSubRemover(params.PubSub.SearchPublisher(), params.Logger)
		if err != nil {
			return nil, fmt.Errorf("search remover: %w", err)
		}
		remover = pubsubRemover
	}

	reservationService, err := reservations.NewService(reservations.ServiceParams{
		Repo:         reservations.NewRepository(conn),
		Inventory:    inventoryRepo,
		Tx:           params.DB,
		Outbox:       emitter,
		Occupancy:    occupancy,
		Notifier:     notifier,
		Search:       remover,
		Logger:       params.Logger,
		Metrics:      reservationMetrics,
		HoldTTL:      params.Config.Reservations.HoldTTL,
		IndexTimeout: params.Config.Reservations.IndexTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("reservations service: %w", err)
	}

	return &Engine{
		Reservations:     reservationService,
		Inventory:        inventoryService,
		Notifications:    notificationService,
		notificationRepo: notificationRepo,
		outboxRepo:       outboxRepo,
		db:               params.DB,
	}, nil
}

// Jobs builds the hold sweeper followed by the retention jobs.
func (e *Engine) Jobs(cfg *config.Config, logg *logger.Logger) ([]cron.Job, error) {
	sweeper, err := cron.NewHoldExpiryJob(cron.HoldExpiryJobParams{
		Logger:    logg,
		Holds:     e.Reservations,
		BatchSize: cfg.Reservations.SweepBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("hold expiry job: %w", err)
	}
	outboxRetention, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Name:      "outbox-retention",
		Logger:    logg,
		Purge:     cron.OutboxPurger(e.db, e.outboxRepo, 0),
		Retention: cfg.Cron.OutboxRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	notificationRetention, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Name:      "notification-retention",
		Logger:    logg,
		Purge:     cron.NotificationPurger(e.notificationRepo),
		Retention: cfg.Cron.OutboxRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("notification retention job: %w", err)
	}
	return []cron.Job{sweeper, outboxRetention, notificationRetention}, nil
}

// NewCronService builds a locked cron service running jobs every
// cfg.Cron.Interval.
func NewCronService(cfg *config.Config, logg *logger.Logger, redisClient *redis.Client, reg prometheus.Registerer, jobs ...cron.Job) (*cron.Service, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("cron lock: %w", err)
	}
	registry, err := cron.NewRegistry(jobs...)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(reg),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}

// Drain waits for in-flight post-commit side effects, bounded by ctx.
func (e *Engine) Drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		reservations.Drain(e.Reservations)
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
