package bootstrap

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bedbroker-backend/pkg/config"
	"github.com/angelmondragon/bedbroker-backend/pkg/db"
	"github.com/angelmondragon/bedbroker-backend/pkg/instance"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
	"github.com/angelmondragon/bedbroker-backend/pkg/migrate"
	"github.com/angelmondragon/bedbroker-backend/pkg/pubsub"
	"github.com/angelmondragon/bedbroker-backend/pkg/redis"
)

// PubSubMode says whether a binary needs Pub/Sub.
type PubSubMode int

const (
	PubSubOff PubSubMode = iota
	// PubSubIfConfigured connects only when a GCP project is set.
	PubSubIfConfigured
	PubSubRequired
)

// Needs lists the connections a binary opens beyond the database.
type Needs struct {
	Redis  bool
	PubSub PubSubMode
}

// Runtime is the process scaffolding every binary starts from: loaded config,
// the configured logger and the connections it opened.
type Runtime struct {
	Service string
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Redis   *redis.Client
	PubSub  *pubsub.Client

	closers []func() error
}

// Start loads .env and config, builds the logger, opens the database (running
// dev migrations when enabled) and whatever needs asks for. The returned
// Runtime is never nil: on error only Logger is usable and everything already
// opened has been closed.
func Start(ctx context.Context, service string, needs Needs) (*Runtime, error) {
	rt := &Runtime{Service: service, Logger: logger.New(logger.Options{ServiceName: service})}
	if err := godotenv.Load(); err != nil {
		rt.Logger.Debug(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return rt, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = service
	rt.Config = cfg
	rt.Logger = logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := rt.open(ctx, needs); err != nil {
		_ = rt.Close()
		return &Runtime{Service: service, Logger: rt.Logger}, err
	}
	return rt, nil
}

func (rt *Runtime) open(ctx context.Context, needs Needs) error {
	cfg := rt.Config

	dbClient, err := db.New(ctx, cfg.DB, rt.Logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	rt.DB = dbClient
	rt.closers = append(rt.closers, dbClient.Close)
	if err := migrate.MaybeRunDev(ctx, cfg, rt.Logger, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	if needs.Redis {
		redisClient, err := redis.New(ctx, cfg.Redis, rt.Logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		rt.Redis = redisClient
		rt.closers = append(rt.closers, redisClient.Close)
	}

	switch {
	case needs.PubSub == PubSubOff:
	case needs.PubSub == PubSubIfConfigured && !cfg.GCP.Enabled():
		rt.Logger.Warn(ctx, "gcp project not configured; pubsub disabled")
	default:
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, rt.Logger)
		if err != nil {
			return fmt.Errorf("pubsub: %w", err)
		}
		rt.PubSub = pubsubClient
		rt.closers = append(rt.closers, pubsubClient.Close)
	}
	return nil
}

// Context tags ctx with the fields every log line of this process carries.
func (rt *Runtime) Context(ctx context.Context) context.Context {
	fields := map[string]any{
		"serviceKind": rt.Service,
		"instance":    instance.GetID(),
	}
	if rt.Config != nil {
		fields["env"] = rt.Config.App.Env
	}
	return rt.Logger.WithFields(ctx, fields)
}

// Close releases connections in reverse opening order and reports every
// failure.
func (rt *Runtime) Close() error {
	var errs error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errs
}
