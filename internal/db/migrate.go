package db

import (
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/dpe-match/internal/debug"
)

//go:embed migrations/*.sql
var migrations embed.FS

// migrationLogger adapts zap to migrate.Logger
type migrationLogger struct {
	logger *zap.SugaredLogger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.logger.Debugf(format, v...)
}

func (l migrationLogger) Verbose() bool {
	return false
}

// Migrate applies the embedded schema migrations. A zero version migrates to
// the latest one.
func (c *Connection) Migrate(logger *zap.Logger, version uint) error {
	logger = debug.OrNop(logger)

	m, err := c.migrator()
	if err != nil {
		return err
	}
	m.Log = migrationLogger{logger: logger.Sugar()}

	previous, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is dirty at version %d, fix it and force the version", previous)
	}

	start := time.Now()
	if version != 0 {
		err = m.Migrate(version)
	} else {
		err = m.Up()
	}

	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("no new migrations to apply", zap.Uint("version", previous))
		return nil
	case err != nil:
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	current, _, _ := m.Version()
	logger.Info("migrations applied",
		zap.Uint("from", previous),
		zap.Uint("to", current),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Rollback reverts every migration
func (c *Connection) Rollback(logger *zap.Logger) error {
	m, err := c.migrator()
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	debug.OrNop(logger).Info("migrations rolled back")
	return nil
}

func (c *Connection) migrator() (*migrate.Migrate, error) {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(c.DB.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}
