package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/bedbroker-backend/pkg/config"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Client owns the pooled GORM handle shared by every repository.
type Client struct {
	conn        *gorm.DB
	postgres    bool
	lockTimeout time.Duration
}

// New opens the configured database. sqlite is only used for local single
// process runs and tests; deployments run on postgres.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newQueryLogger(logg, cfg.SlowQuery),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", dialector.Name(), err)
	}

	pool, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	configurePool(pool, dialector.Name(), cfg)

	client := &Client{
		conn:        conn,
		postgres:    dialector.Name() == config.DriverPostgres,
		lockTimeout: cfg.LockTimeout,
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"driver":       dialector.Name(),
			"lock_timeout": cfg.LockTimeout.String(),
		}), "database connection established")
	}
	return client, nil
}

// NewFromConn wraps an already opened connection.
func NewFromConn(conn *gorm.DB) *Client {
	return &Client{conn: conn, postgres: conn.Dialector.Name() == config.DriverPostgres}
}

func dialectorFor(cfg config.DBConfig) (gorm.Dialector, error) {
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case config.DriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	case "", config.DriverPostgres:
		return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func configurePool(pool *sql.DB, driver string, cfg config.DBConfig) {
	if driver == config.DriverSQLite {
		// one writer at a time, otherwise SQLITE_BUSY under concurrent holds
		pool.SetMaxOpenConns(1)
		return
	}
	if cfg.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// DB returns the underlying GORM connection.
func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

func (c *Client) Close() error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// WithTx runs fn in a single transaction. On postgres the transaction gets a
// local lock_timeout so a contended bed row fails fast with 55P03 instead of
// queueing behind a slow writer. A panic in fn rolls back and re-panics.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.postgres && c.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", c.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("setting lock timeout: %w", err)
			}
		}
		return fn(tx)
	})
}
