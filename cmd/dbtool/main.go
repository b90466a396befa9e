package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PortNumber53/membership-checkout/backend/internal/config"
	"github.com/PortNumber53/membership-checkout/backend/internal/logging"
	"github.com/PortNumber53/membership-checkout/backend/internal/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dbtool",
		Short:         "Manage the membership checkout database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(upCmd())
	rootCmd.AddCommand(forceCmd())
	rootCmd.AddCommand(fixCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(mg *migrations.Migrator, log *zap.Logger) error {
				log.Info("applying migrations")
				return mg.Up()
			})
		},
	}
}

func forceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag.

Use -1 to mark the database as having no applied migrations.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil || version < -1 {
				return fmt.Errorf("invalid version number: %s", args[0])
			}
			return withMigrator(func(mg *migrations.Migrator, log *zap.Logger) error {
				return mg.Force(version)
			})
		},
	}
}

func fixCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fix",
		Short: "Roll a dirty schema back to the last completed version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(mg *migrations.Migrator, log *zap.Logger) error {
				return mg.FixDirty()
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(mg *migrations.Migrator, log *zap.Logger) error {
				v, dirty, err := mg.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
				return nil
			})
		},
	}
}

// withMigrator opens the configured database, runs fn and closes everything.
func withMigrator(fn func(mg *migrations.Migrator, log *zap.Logger) error) error {
	config.LoadDotEnv("../.env", ".env")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.UseMemoryStore() {
		return errors.New("DATABASE_URL is required")
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: "console"})
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	mg, err := migrations.New(db, log)
	if err != nil {
		db.Close()
		return err
	}
	// Closing the migrator closes db as well.
	defer func() {
		if cerr := mg.Close(); cerr != nil {
			log.Warn("close migrator", zap.Error(cerr))
		}
	}()

	return fn(mg, log)
}
