package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/bedbroker-backend/pkg/config"
	"github.com/angelmondragon/bedbroker-backend/pkg/db"
	"github.com/angelmondragon/bedbroker-backend/pkg/db/models"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
	"gorm.io/gorm"
)

// SchemaModels lists every persisted model in dependency order.
func SchemaModels() []any {
	return []any{
		&models.Listing{},
		&models.Room{},
		&models.Bed{},
		&models.Reservation{},
		&models.ReservationBed{},
		&models.Notification{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// AutoMigrateModels builds the schema from the gorm models. It backs sqlite
// local mode and tests.
func AutoMigrateModels(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	return conn.AutoMigrate(SchemaModels()...)
}

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	if strings.EqualFold(cfg.DB.Driver, config.DriverSQLite) {
		logg.Info(logg.WithField(ctx, "env", cfg.App.Env), "auto-migrating sqlite schema from models")
		return AutoMigrateModels(client.DB())
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, nil)
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	applied, err := runner.Up(ctx)
	if err != nil {
		return fmt.Errorf("dev auto-migrate: %w", err)
	}
	logg.Info(logg.WithField(ctx, "applied", applied), "embedded migrations applied")
	return nil
}
