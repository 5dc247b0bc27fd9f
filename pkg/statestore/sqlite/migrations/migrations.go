// Package migrations holds the schema of the sqlite state store.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed *.sql
var schema embed.FS

// ErrDirty means an earlier migration failed halfway and the database needs
// manual repair.
var ErrDirty = errors.New("state database is dirty")

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	target, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite3 target: %w", err)
	}

	src, err := iofs.New(schema, ".")
	if err != nil {
		return nil, fmt.Errorf("open embedded schema: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", target)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// Migrate brings db to the latest schema version.
func Migrate(db *sql.DB, log *zap.SugaredLogger) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	from, err := version(m)
	if err != nil {
		return err
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debugw("state schema up to date", "version", from)
		return nil
	case err != nil:
		return fmt.Errorf("upgrade state schema from version %d: %w", from, err)
	}

	to, err := version(m)
	if err != nil {
		return err
	}
	log.Infow("upgraded state schema", "from", from, "to", to)
	return nil
}

// Version reports the schema version of db, zero for an empty database.
func Version(db *sql.DB) (uint, error) {
	m, err := newMigrator(db)
	if err != nil {
		return 0, err
	}
	return version(m)
}

func version(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read schema version: %w", err)
	case dirty:
		return v, fmt.Errorf("version %d: %w", v, ErrDirty)
	}
	return v, nil
}
