package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/Fantasim/svgpages/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is the render audit store. It is safe for concurrent use.
type DB struct {
	conn *sql.DB
	path string
}

// migration is one embedded schema file, keyed by its numeric prefix.
type migration struct {
	version int
	file    string
}

// New opens (creating if needed) the audit database at path in WAL mode.
func New(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %q: %w", dir, err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, config.DBBusyTimeout)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", path, err)
	}

	var mode string
	if err := conn.QueryRow("PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode on %q: %w", path, err)
	}
	slog.Debug("audit database opened", "path", path, "journalMode", mode)

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	slog.Info("closing audit database", "path", d.path)
	return d.conn.Close()
}

// RunMigrations applies every embedded migration not yet recorded in
// schema_migrations, each in its own transaction.
func (d *DB) RunMigrations() error {
	if _, err := d.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	all, err := embeddedMigrations(migrationsFS)
	if err != nil {
		return err
	}

	applied := 0
	for _, m := range all {
		var done bool
		if err := d.conn.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", m.version).Scan(&done); err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.version, err)
		}
		if done {
			continue
		}
		if err := d.apply(m); err != nil {
			return err
		}
		applied++
	}

	slog.Info("audit schema ready", "migrations", len(all), "applied", applied)
	return nil
}

func (d *DB) apply(m migration) error {
	content, err := migrationsFS.ReadFile("migrations/" + m.file)
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", m.file, err)
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", m.file, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
	}

	slog.Info("migration applied", "version", m.version, "file", m.file)
	return nil
}

// embeddedMigrations lists migrations/*.sql in version order. Files without a
// numeric prefix ("001_initial.sql" is version 1) are skipped.
func embeddedMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var out []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d", &version); err != nil {
			slog.Warn("skipping migration with unparseable version", "file", entry.Name())
			continue
		}
		out = append(out, migration{version: version, file: entry.Name()})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}
