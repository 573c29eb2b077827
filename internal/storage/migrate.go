package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations brings the schema up to date. A database left dirty by an
// interrupted migration, or stamped with a version this build does not know,
// is wiped and recreated: the data is local to one device and not worth a
// repair path.
func RunMigrations(dbPath string) error {
	err := withMigrate(dbPath, func(m *migrate.Migrate) error {
		return m.Up()
	})
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}

	var dirty migrate.ErrDirty
	switch {
	case errors.As(err, &dirty):
		slog.Warn("Database schema is dirty, recreating it", "version", dirty.Version, "path", dbPath)
	case errors.Is(err, fs.ErrNotExist):
		slog.Warn("Database schema version is unknown, recreating it", "error", err, "path", dbPath)
	default:
		return fmt.Errorf("run migrations: %w", err)
	}

	if err := wipeSchema(dbPath); err != nil {
		return fmt.Errorf("wipe schema: %w", err)
	}
	err = withMigrate(dbPath, func(m *migrate.Migrate) error { return m.Up() })
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations after wipe: %w", err)
	}
	return nil
}

// wipeSchema drops every application table, schema_migrations included.
// SQLite's internal tables (sqlite_sequence and friends) cannot be dropped;
// sqlite_sequence is emptied instead so ids restart.
func wipeSchema(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	for _, table := range tables {
		if _, err := db.Exec(`DROP TABLE IF EXISTS "` + strings.ReplaceAll(table, `"`, `""`) + `"`); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	}

	var hasSequence int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'`).Scan(&hasSequence); err != nil {
		return fmt.Errorf("check sqlite_sequence: %w", err)
	}
	if hasSequence > 0 {
		if _, err := db.Exec(`DELETE FROM sqlite_sequence`); err != nil {
			return fmt.Errorf("reset sqlite_sequence: %w", err)
		}
	}
	return nil
}

func withMigrate(dbPath string, fn func(*migrate.Migrate) error) error {
	// Separate connection so migrations never interfere with the main pool.
	migrateDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	return fn(m)
}
