package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// sqlFS contains the embedded SQL migration files.
//
//go:embed sql/*.sql
var sqlFS embed.FS

// Migrator wraps a migrate instance bound to the embedded migrations.
type Migrator struct {
	m   *migrate.Migrate
	log *zap.Logger
}

// New builds a Migrator over db. Closing the Migrator also closes db.
func New(db *sql.DB, log *zap.Logger) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("migrations: db cannot be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migrations: create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(sqlFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrations: init migrate instance: %w", err)
	}

	return &Migrator{m: m, log: log}, nil
}

// Up applies all pending database migrations. It is safe to call multiple
// times; when the database schema is up to date, the function is a no-op.
func (mg *Migrator) Up() error {
	currentVersion := uint(0)
	if v, _, verr := mg.m.Version(); verr == nil {
		currentVersion = v
		mg.log.Info("migrations: current schema version", zap.Uint("version", v))
	} else if errors.Is(verr, migrate.ErrNilVersion) {
		mg.log.Info("migrations: no existing migration version (fresh database)")
	} else {
		mg.log.Warn("migrations: unable to determine current version", zap.Error(verr))
	}

	if err := mg.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mg.log.Info("migrations: database is up to date", zap.Uint("version", currentVersion))
			return nil
		}
		return fmt.Errorf("migrations: apply: %w", err)
	}

	if v, _, err := mg.m.Version(); err == nil {
		mg.log.Info("migrations: applied", zap.Uint("version", v))
	} else {
		mg.log.Warn("migrations: applied but failed to read new version", zap.Error(err))
	}

	return nil
}

// Version reports the current schema version and whether it is dirty.
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migrations: read version: %w", err)
	}
	return v, dirty, nil
}

// Force sets the schema version without running migrations and clears the dirty flag.
func (mg *Migrator) Force(version int) error {
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("migrations: force version %d: %w", version, err)
	}
	mg.log.Info("migrations: forced version", zap.Int("version", version))
	return nil
}

// FixDirty rolls a dirty schema back to the last version that completed so
// the failed migration can be re-applied. A clean schema is left untouched.
func (mg *Migrator) FixDirty() error {
	v, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	if !dirty {
		mg.log.Info("migrations: schema is clean", zap.Uint("version", v))
		return nil
	}

	target := int(v) - 1
	if target < 1 {
		target = -1 // no version
	}
	mg.log.Warn("migrations: dirty schema detected", zap.Uint("version", v), zap.Int("reset_to", target))
	return mg.Force(target)
}

// Close releases the source and database drivers.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	var result *multierror.Error
	if srcErr != nil {
		result = multierror.Append(result, fmt.Errorf("close source: %w", srcErr))
	}
	if dbErr != nil {
		result = multierror.Append(result, fmt.Errorf("close database: %w", dbErr))
	}
	return result.ErrorOrNil()
}

// Up applies migrations on db, repairing a dirty schema once before giving up.
// The migrator pins a connection from db until it is closed, so Up closes the
// migrator and with it db. Pass a handle dedicated to the migration.
func Up(db *sql.DB, log *zap.Logger) (err error) {
	mg, err := New(db, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := mg.Close(); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()

	err = mg.Up()
	if err == nil {
		return nil
	}

	var dirty migrate.ErrDirty
	if !errors.As(err, &dirty) {
		return err
	}

	mg.log.Warn("migrations: dirty database detected, attempting to fix", zap.Error(err))
	if fixErr := mg.FixDirty(); fixErr != nil {
		return multierror.Append(err, fixErr)
	}
	return mg.Up()
}
