package config

const (
	EnvPrefix = "BEDBROKER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv   = "BEDBROKER_APP_ENV"
	EnvPort     = "BEDBROKER_APP_PORT"
	EnvLogLevel = "BEDBROKER_LOG_LEVEL"

	EnvDBDSN  = "BEDBROKER_DB_DSN"
	EnvDBHost = "BEDBROKER_DB_HOST"
	EnvDBUser = "BEDBROKER_DB_USER"
	EnvDBName = "BEDBROKER_DB_NAME"

	EnvRedisURL  = "BEDBROKER_REDIS_URL"
	EnvJWTSecret = "BEDBROKER_JWT_SECRET"
	EnvJWTIssuer = "BEDBROKER_JWT_ISSUER"

	EnvUseSQLite       = "BEDBROKER_USE_SQLITE"
	EnvSweeperEmbedded = "BEDBROKER_SWEEPER_EMBEDDED"
	EnvHoldTTL         = "BEDBROKER_HOLD_TTL"
	EnvSweepBatchSize  = "BEDBROKER_SWEEP_BATCH_SIZE"
	EnvSweeperInterval = "BEDBROKER_SWEEPER_INTERVAL"
	EnvCronLockTTL     = "BEDBROKER_CRON_LOCK_TTL"
	EnvCronJobTimeout  = "BEDBROKER_CRON_JOB_TIMEOUT"
	EnvGCPProjectID    = "BEDBROKER_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
