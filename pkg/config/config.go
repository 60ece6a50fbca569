package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Reservations ReservationsConfig
	Cron         CronConfig
	Eventing     EventingConfig
	RateLimit    RateLimitConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	// report every bad knob at once rather than one per restart
	if err := multierr.Combine(cfg.Reservations.validate(), cfg.Cron.validate()); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BEDBROKER_APP_ENV" required:"true"`
	Port         string `envconfig:"BEDBROKER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BEDBROKER_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"BEDBROKER_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"BEDBROKER_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"BEDBROKER_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BEDBROKER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BEDBROKER_DB_DSN"`
	Driver string `envconfig:"BEDBROKER_DB_DRIVER" default:"postgres"`

	SQLitePath string `envconfig:"BEDBROKER_SQLITE_PATH" default:"bedbroker.db"`

	LegacyHost     string `envconfig:"BEDBROKER_DB_HOST"`
	LegacyPort     int    `envconfig:"BEDBROKER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BEDBROKER_DB_USER"`
	LegacyPassword string `envconfig:"BEDBROKER_DB_PASSWORD"`
	LegacyName     string `envconfig:"BEDBROKER_DB_NAME"`
	LegacySSLMode  string `envconfig:"BEDBROKER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BEDBROKER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BEDBROKER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BEDBROKER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BEDBROKER_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	LockTimeout time.Duration `envconfig:"BEDBROKER_DB_LOCK_TIMEOUT" default:"3s"`
	SlowQuery   time.Duration `envconfig:"BEDBROKER_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BEDBROKER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BEDBROKER_REDIS_ADDR"`
	Password     string        `envconfig:"BEDBROKER_REDIS_PASSWORD"`
	DB           int           `envconfig:"BEDBROKER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BEDBROKER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BEDBROKER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BEDBROKER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BEDBROKER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BEDBROKER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig only verifies tokens; issuing them belongs to the identity service.
type JWTConfig struct {
	Secret string        `envconfig:"BEDBROKER_JWT_SECRET" required:"true"`
	Issuer string        `envconfig:"BEDBROKER_JWT_ISSUER" required:"true"`
	Leeway time.Duration `envconfig:"BEDBROKER_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite       bool `envconfig:"BEDBROKER_USE_SQLITE" default:"false"`
	AutoMigrate     bool `envconfig:"BEDBROKER_AUTO_MIGRATE" default:"false"`
	SweeperEmbedded bool `envconfig:"BEDBROKER_SWEEPER_EMBEDDED" default:"false"`
}

// ReservationsConfig drives the hold lifecycle. HoldTTL is the single window
// after which a pending hold is void on every path.
type ReservationsConfig struct {
	HoldTTL        time.Duration `envconfig:"BEDBROKER_HOLD_TTL" default:"30m"`
	SweepBatchSize int           `envconfig:"BEDBROKER_SWEEP_BATCH_SIZE" default:"500"`
	IndexTimeout   time.Duration `envconfig:"BEDBROKER_SEARCH_INDEX_TIMEOUT" default:"10s"`
}

func (r ReservationsConfig) validate() error {
	var errs error
	if r.HoldTTL <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive", EnvHoldTTL))
	}
	if r.SweepBatchSize <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive", EnvSweepBatchSize))
	}
	return errs
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"BEDBROKER_SWEEPER_INTERVAL" default:"1m"`
	LockTTL         time.Duration `envconfig:"BEDBROKER_CRON_LOCK_TTL" default:"5m"`
	JobTimeout      time.Duration `envconfig:"BEDBROKER_CRON_JOB_TIMEOUT" default:"1m"`
	OutboxRetention time.Duration `envconfig:"BEDBROKER_OUTBOX_RETENTION" default:"720h"`
}

// A job that outlives the lock lease could overlap a cycle on another
// instance.
func (c CronConfig) validate() error {
	var errs error
	if c.Interval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive", EnvSweeperInterval))
	}
	if c.JobTimeout <= 0 || c.JobTimeout >= c.LockTTL {
		errs = multierr.Append(errs, fmt.Errorf("%s must be positive and shorter than %s", EnvCronJobTimeout, EnvCronLockTTL))
	}
	return errs
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"BEDBROKER_IDEMPOTENCY_TTL" default:"24h"`
}

// RateLimitConfig throttles hold creation per actor and per client IP within
// a fixed window. A zero limit disables that dimension.
type RateLimitConfig struct {
	HoldWindow     time.Duration `envconfig:"BEDBROKER_HOLD_RATE_WINDOW" default:"1m"`
	HoldActorLimit int           `envconfig:"BEDBROKER_HOLD_RATE_ACTOR_LIMIT" default:"10"`
	HoldIPLimit    int           `envconfig:"BEDBROKER_HOLD_RATE_IP_LIMIT" default:"60"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BEDBROKER_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"BEDBROKER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BEDBROKER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ReservationsTopic string `envconfig:"BEDBROKER_PUBSUB_RESERVATIONS_TOPIC" default:"bb-reservation-events"`
	ListingsTopic     string `envconfig:"BEDBROKER_PUBSUB_LISTINGS_TOPIC" default:"bb-listing-events"`
	SearchTopic       string `envconfig:"BEDBROKER_PUBSUB_SEARCH_TOPIC" default:"bb-search-index"`
}

// Enabled reports whether a GCP project is configured for Pub/Sub.
func (p GCPConfig) Enabled() bool {
	return strings.TrimSpace(p.ProjectID) != ""
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BEDBROKER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BEDBROKER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BEDBROKER_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.Driver = DriverSQLite
		db.DSN = db.SQLitePath
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
