package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/PortNumber53/membership-checkout/backend/internal/config"
	"github.com/PortNumber53/membership-checkout/backend/internal/migrations"
	"github.com/PortNumber53/membership-checkout/backend/internal/store"
)

// openStorage returns the in-memory store when no database is configured,
// otherwise a migrated Postgres store.
func openStorage(cfg config.Config, log *zap.Logger) (store.Storage, error) {
	if cfg.UseMemoryStore() {
		log.Info("DATABASE_URL not set; using in-memory storage")
		mem, err := store.NewMemoryStore()
		if err != nil {
			return nil, err
		}
		return mem, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	logDBTarget(log, "primary", cfg.DatabaseURL)
	configureDB(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(cfg.DatabaseURL, log.Named("migrations"), migrations.Up); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply database migrations: %w", err)
	}

	st, err := store.NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

type migrateFunc func(db *sql.DB, log *zap.Logger) error

// runMigrations applies migrations over a short-lived handle of its own so the
// connection the migrator pins never counts against the serving pool.
func runMigrations(dsn string, log *zap.Logger, up migrateFunc) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(2)

	return up(db, log)
}

func configureDB(db *sql.DB) {
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
}

func logDBTarget(log *zap.Logger, name, dsn string) {
	// Avoid logging secrets: only log hostname + database path.
	u, err := url.Parse(dsn)
	if err != nil {
		log.Info("database configured", zap.String("name", name), zap.NamedError("dsn_parse_error", err))
		return
	}
	log.Info("database configured",
		zap.String("name", name),
		zap.String("host", u.Hostname()),
		zap.String("db", strings.TrimPrefix(u.Path, "/")),
	)
}
