package database

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"
)

type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return false
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

type MigrationConfig struct {
	// Dir is the folder inside the migration filesystem, e.g. "pg" or "sqlite"
	Dir          string
	Version      uint
	Force        int
	AutoRollback bool // force a dirty database back to the previous version when a migration fails
}

type MigrationService struct {
	config *MigrationConfig
	fsys   fs.FS
	logger ectologger.Logger
}

func NewMigrationService(logger ectologger.Logger, fsys fs.FS, config *MigrationConfig) *MigrationService {
	return &MigrationService{
		config: config,
		fsys:   fsys,
		logger: logger,
	}
}

// Migrate applies the embedded migrations to db using the driver matching its dialect
func (ms *MigrationService) Migrate(conn DB) error {
	instance, ok := conn.(*DatabaseInstance)
	if !ok {
		return fmt.Errorf("migrations need a *DatabaseInstance, got %T", conn)
	}
	return ms.MigrateSQLX(instance.DB)
}

// MigrateSQLX applies the migrations to a raw sqlx handle
func (ms *MigrationService) MigrateSQLX(db *sqlx.DB) error {
	source, err := iofs.New(ms.fsys, ms.config.Dir)
	if err != nil {
		return pkgerrors.Wrap(err, fmt.Sprintf("migration folder %s does not exist", ms.config.Dir))
	}

	var (
		driver       migratedb.Driver
		databaseName = db.DriverName()
	)
	switch databaseName {
	case "sqlite", "sqlite3":
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	default:
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	}
	if err != nil {
		return pkgerrors.Wrap(err, "failed to create migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", source, databaseName, driver)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return err
	}
	m.Log = MigrationLogger{Logger: ms.logger}

	return ms.runMigration(m)
}

func (ms *MigrationService) runMigration(m *migrate.Migrate) error {
	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			ms.logger.WithError(err).Errorf("Failed to force database to version %d", ms.config.Force)
			return err
		}
	}

	version, _, versionErr := m.Version()
	if versionErr != nil && !errors.Is(versionErr, migrate.ErrNilVersion) {
		ms.logger.WithError(versionErr).Error("Failed to get current migration version")
	}

	startTime := time.Now()

	var migrationErr error
	if ms.config.Version != 0 {
		migrationErr = m.Migrate(ms.config.Version)
	} else {
		migrationErr = m.Up()
	}

	ms.logger.Debugf("Database migrations finished in %v", time.Since(startTime))

	return ms.handleMigrationError(m, migrationErr, version)
}

func (ms *MigrationService) handleMigrationError(m *migrate.Migrate, err error, previousVersion uint) error {
	if err == nil {
		ms.logger.Info("Successfully applied migrations")
		return nil
	}

	if errors.Is(err, migrate.ErrNoChange) {
		ms.logger.Info("No new migrations to apply")
		return nil
	}

	ms.logger.WithError(err).Errorf("Migration failed with error: %v", err)

	version, dirty, versionErr := m.Version()
	if versionErr != nil && !errors.Is(versionErr, migrate.ErrNilVersion) {
		ms.logger.WithError(versionErr).Error("Failed to get current migration version")
		return err
	}

	if ms.config.AutoRollback && dirty {
		if previousVersion == 0 && version > 0 {
			previousVersion = version - 1
		}
		ms.logger.Warnf("Database is dirty at version %d. Reverting to version %d", version, previousVersion)

		if forceErr := m.Force(int(previousVersion)); forceErr != nil {
			ms.logger.WithError(forceErr).Errorf("Failed to force database to version %d", previousVersion)
			return forceErr
		}
	}

	// still fail so the service does not start against a half-migrated schema
	return err
}
