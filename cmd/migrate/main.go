package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/bedbroker-backend/pkg/config"
	"github.com/angelmondragon/bedbroker-backend/pkg/db"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
	"github.com/angelmondragon/bedbroker-backend/pkg/migrate"
)

const usage = "migration command: up|down|status|to|create|validate|automigrate"

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", usage)
	dir := flag.String("dir", "", "migrations directory (default: migrations embedded in the binary)")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=to")
	flag.Parse()

	// offline commands never touch config or the database
	switch *cmd {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		if *name == "" {
			exit("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(target, *name)
		if err != nil {
			exit("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateFS(migrationsFS(*dir)); err != nil {
			exit("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    *cmd,
		"driver": cfg.DB.Driver,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if *cmd == "automigrate" || strings.EqualFold(cfg.DB.Driver, config.DriverSQLite) {
		if *cmd != "up" && *cmd != "automigrate" {
			exit("sqlite databases only support -cmd=up or -cmd=automigrate")
		}
		if err := migrate.AutoMigrateModels(dbClient.DB()); err != nil {
			logg.Error(ctx, "automigrate failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "schema migrated from models")
		return
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to open sql handle", err)
		os.Exit(1)
	}
	runner, err := migrate.NewRunner(sqlDB, migrationsFS(*dir))
	if err != nil {
		logg.Error(ctx, "failed to prepare migrations", err)
		os.Exit(1)
	}

	switch *cmd {
	case "up":
		applied, err := runner.Up(ctx)
		if err != nil {
			logg.Error(ctx, "migrate up failed", err)
			os.Exit(1)
		}
		logg.Info(logg.WithField(ctx, "applied", applied), "migrations applied")
	case "down":
		if err := runner.Down(ctx); err != nil {
			logg.Error(ctx, "migrate down failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "rolled back one migration")
	case "status":
		if err := runner.Status(ctx, os.Stdout); err != nil {
			logg.Error(ctx, "migrate status failed", err)
			os.Exit(1)
		}
	case "to":
		if *version == "" {
			exit("missing -version for to")
		}
		if err := runner.To(ctx, *version); err != nil {
			logg.Error(ctx, "migrate to version failed", err)
			os.Exit(1)
		}
		logg.Info(logg.WithField(ctx, "version", *version), "database at requested version")
	default:
		exit("unknown -cmd %q (%s)", *cmd, usage)
	}
}

func migrationsFS(dir string) fs.FS {
	if dir == "" {
		return migrate.Embedded()
	}
	return os.DirFS(dir)
}

func exit(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
