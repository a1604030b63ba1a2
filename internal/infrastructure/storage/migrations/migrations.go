package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/postgres/*.sql files/sqlite/*.sql
var migrationFiles embed.FS

// Up applies every pending migration for the given dialect ("postgres" or "sqlite").
// The caller keeps ownership of db.
func Up(db *sql.DB, dialect string) error {
	m, release, err := newMigrate(db, dialect)
	if err != nil {
		return err
	}
	defer release()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Version reports the applied schema version.
func Version(db *sql.DB, dialect string) (uint, bool, error) {
	m, release, err := newMigrate(db, dialect)
	if err != nil {
		return 0, false, err
	}
	defer release()

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// newMigrate builds a migrate instance over db. The returned release hands
// back any connection the driver pinned; it never closes db, so the migrate
// instance itself is left unclosed.
func newMigrate(db *sql.DB, dialect string) (*migrate.Migrate, func(), error) {
	var (
		driver  database.Driver
		release = func() {}
		err     error
	)
	switch dialect {
	case "postgres":
		ctx := context.Background()
		conn, connErr := db.Conn(ctx)
		if connErr != nil {
			return nil, nil, fmt.Errorf("acquire migration connection: %w", connErr)
		}
		release = func() { _ = conn.Close() }
		driver, err = postgres.WithConnection(ctx, conn, &postgres.Config{})
	case "sqlite":
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return nil, nil, fmt.Errorf("unsupported migration dialect %q", dialect)
	}
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("create %s migration driver: %w", dialect, err)
	}

	source, err := iofs.New(migrationFiles, "files/"+dialect)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("read migration files: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dialect, driver)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, release, nil
}
