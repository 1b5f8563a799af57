package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var schemaFS embed.FS

// schemaTable records the applied schema version.
const schemaTable = "schema_version"

// Migrate brings the schema at dbPath up to date and returns the version it
// ends on. A dirty version from an interrupted run is reported, not forced.
func Migrate(dbPath string) (uint, error) {
	// migrate owns this handle and closes it with the instance.
	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return 0, fmt.Errorf("open schema connection: %w", err)
	}

	target, err := sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: schemaTable})
	if err != nil {
		db.Close()
		return 0, fmt.Errorf("schema driver: %w", err)
	}
	source, err := iofs.New(schemaFS, "migrations")
	if err != nil {
		db.Close()
		return 0, fmt.Errorf("schema source: %w", err)
	}
	m, err := migrate.NewWithInstance("embedded", source, "expenses", target)
	if err != nil {
		db.Close()
		return 0, fmt.Errorf("schema migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply schema: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}
