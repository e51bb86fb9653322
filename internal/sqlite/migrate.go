package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

const migrationTable = "schema_migrations"

// codeMigration is a schema step that needs to inspect the database before
// changing it, which plain SQL in SQLite cannot express.
type codeMigration struct {
	name string
	up   func(ctx context.Context, tx *sql.Tx) error
}

// codeMigrations run interleaved with the .sql files, ordered by name.
var codeMigrations = []codeMigration{
	{name: "0002_rooms_peak_participants", up: addPeakParticipants},
}

// addPeakParticipants upgrades databases whose rooms table predates the
// peak counter. Fresh databases already have the column from 0001.
func addPeakParticipants(ctx context.Context, tx *sql.Tx) error {
	ok, err := hasColumn(ctx, tx, "rooms", "peak_participants")
	if err != nil || ok {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`ALTER TABLE rooms ADD COLUMN peak_participants INTEGER NOT NULL DEFAULT 0`)
	return err
}

func hasColumn(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// applyMigrations executes every embedded .sql file and every code migration
// at most once, in name order.
func applyMigrations(ctx context.Context, db *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	steps := make(map[string]func(context.Context, *sql.Tx) error)
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
			steps[e.Name()] = sqlStep(migrationFS, e.Name())
		}
	}
	for _, m := range codeMigrations {
		files = append(files, m.name)
		steps[m.name] = m.up
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrationTable+` (
			name TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var applied int
		if err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+migrationTable+` WHERE name = ?`, file).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied > 0 {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if err := steps[file](ctx, tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
			file, formatTime(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

func sqlStep(migrationFS fs.FS, file string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		up := upSection(string(content))
		if strings.TrimSpace(up) == "" {
			return nil
		}
		_, err = tx.ExecContext(ctx, up)
		return err
	}
}

// upSection returns the SQL between "-- +migrate Up" and "-- +migrate Down".
func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	i := strings.Index(content, up)
	if i == -1 {
		return content
	}
	content = content[i+len(up):]
	if j := strings.Index(content, down); j != -1 {
		content = content[:j]
	}
	return content
}
