package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cortex/workspace/internal/logging"
	"cortex/workspace/migrations"
)

func OpenSQLite(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=8000", path)
	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serialises writers; the timer recorder and HTTP
	// handlers share it.
	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)
	database.SetConnMaxLifetime(0)
	database.SetConnMaxIdleTime(30 * time.Second)

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return database, nil
}

// MigrationSource returns dir as a filesystem when it exists and the
// embedded schema otherwise.
func MigrationSource(dir string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
		logging.Debugf("db: migrations dir %q not found, using embedded schema", dir)
	}
	return migrations.Files
}

// RunMigrations applies every *.sql file at the root of fsys that is not yet
// recorded in schema_migrations, in name order.
func RunMigrations(database *sql.DB, fsys fs.FS) error {
	statuses, err := MigrationStatus(database, fsys)
	if err != nil {
		return err
	}

	for _, status := range statuses {
		if status.Applied {
			continue
		}
		content, err := fs.ReadFile(fsys, status.Name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", status.Name, err)
		}
		if err := applyMigration(database, status.Name, string(content)); err != nil {
			return err
		}
		logging.Infof("db: applied migration %s", status.Name)
	}

	return nil
}

// Migration is one schema file and whether it has been applied.
type Migration struct {
	Name      string
	Applied   bool
	AppliedAt string
}

// MigrationStatus lists the *.sql files of fsys in apply order.
func MigrationStatus(database *sql.DB, fsys fs.FS) ([]Migration, error) {
	if _, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	statuses := make([]Migration, 0, len(files))
	for _, name := range files {
		appliedAt, err := migrationAppliedAt(database, name)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, Migration{Name: name, Applied: appliedAt != "", AppliedAt: appliedAt})
	}
	return statuses, nil
}

func applyMigration(database *sql.DB, name, content string) error {
	tx, err := database.Begin()
	if err != nil {
		return fmt.Errorf("begin migration tx %s: %w", name, err)
	}

	if _, err := tx.Exec(content); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute migration %s: %w", name, err)
	}

	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
		name,
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

func migrationAppliedAt(database *sql.DB, name string) (string, error) {
	var appliedAt string
	err := database.QueryRow(
		`SELECT applied_at FROM schema_migrations WHERE name = ?`,
		name,
	).Scan(&appliedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("check migration %s: %w", name, err)
	}
	return appliedAt, nil
}
