package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/config"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	action := flag.String("action", "up", "Migration action: up, down, goto, status, version, force")
	version := flag.Int("version", 0, "Target version (for goto and force)")
	envFile := flag.String("env-file", ".env", "Optional dotenv file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := config.NewLogger(cfg.Environment, cfg.LogLevel)

	if cfg.DatabaseDriver() != config.DriverPostgres {
		return fmt.Errorf("migrations are for PostgreSQL; the SQLite store migrates itself on open")
	}

	dbName, err := database.DatabaseName(cfg.DatabaseURL)
	if err != nil {
		return err
	}

	db, err := database.OpenSQL(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	logger.Info("connected to database", slog.String("database", dbName))

	migrator, err := database.NewMigrator(db, dbName, logger)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	switch *action {
	case "up":
		logger.Info("running migrations")
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
		logger.Info("migrations completed")

	case "down":
		logger.Info("rolling back last migration")
		if err := migrator.Down(); err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Info("migration rolled back")

	case "goto":
		if *version <= 0 {
			return fmt.Errorf("-version is required for goto action")
		}
		logger.Info("migrating to version", slog.Int("version", *version))
		if err := migrator.Goto(uint(*version)); err != nil {
			return fmt.Errorf("migration goto failed: %w", err)
		}

	case "status":
		st, err := migrator.Status()
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		fmt.Printf("current %d, latest %d, pending %d", st.Current, st.Latest, st.Pending)
		if st.Dirty {
			fmt.Print(" (dirty)")
		}
		fmt.Println()

	case "version":
		v, dirty, err := migrator.Version()
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		fmt.Printf("version %d", v)
		if dirty {
			fmt.Print(" (dirty: last migration did not complete)")
		}
		fmt.Println()

	case "force":
		if *version == 0 {
			return fmt.Errorf("-version is required for force action")
		}
		logger.Info("forcing migration version", slog.Int("version", *version))
		if err := migrator.Force(*version); err != nil {
			return fmt.Errorf("force migration failed: %w", err)
		}

	default:
		return fmt.Errorf("invalid action: %s (use: up, down, goto, status, version, force)", *action)
	}

	return nil
}
