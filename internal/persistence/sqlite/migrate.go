package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migrations are applied sequentially; each entry's index + 1 is its version.
// Appending is the only allowed modification once a version has shipped.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		subject_id INTEGER NOT NULL UNIQUE,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS occasions (
		id TEXT PRIMARY KEY,
		occasion_id TEXT NOT NULL,
		subject_id TEXT NOT NULL REFERENCES subjects(id),
		location TEXT NOT NULL,
		start_seconds INTEGER NOT NULL,
		end_seconds INTEGER NOT NULL,
		weekday INTEGER NOT NULL,
		CHECK (start_seconds < end_seconds)
	);

	CREATE TABLE IF NOT EXISTS lessons (
		id TEXT PRIMARY KEY,
		occasion_id TEXT NOT NULL REFERENCES occasions(id),
		subject_id TEXT NOT NULL REFERENCES subjects(id),
		weekday INTEGER NOT NULL,
		week INTEGER NOT NULL CHECK (week BETWEEN 1 AND 53),
		epoch_day INTEGER NOT NULL,
		start_seconds INTEGER NOT NULL,
		end_seconds INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_lessons_week ON lessons(week, weekday);
	CREATE INDEX IF NOT EXISTS idx_lessons_date ON lessons(epoch_day, start_seconds);
	`,
	`
	CREATE TABLE IF NOT EXISTS logins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		app_key BLOB NOT NULL,
		user_type INTEGER NOT NULL,
		url TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (username, url)
	);
	`,
	`
	ALTER TABLE logins ADD COLUMN user_id INTEGER NOT NULL DEFAULT 0;
	ALTER TABLE logins ADD COLUMN org_id INTEGER NOT NULL DEFAULT 0;
	ALTER TABLE logins ADD COLUMN org_name TEXT NOT NULL DEFAULT '';
	`,
}

// Migrate brings the schema up to the current version. Each pending step runs
// in its own transaction together with its version bookkeeping, so a failed
// step leaves the database at the previous consistent version.
func Migrate(ctx context.Context, pool *ConnectionPool) error {
	if _, err := pool.DB().ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to initialize version table: %w", err)
	}

	current, err := currentVersion(ctx, pool)
	if err != nil {
		return err
	}

	for version := current + 1; version <= len(migrations); version++ {
		step := migrations[version-1]
		err := pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.Exec(step); err != nil {
				return fmt.Errorf("migration %d failed: %w", version, err)
			}
			_, err := tx.Exec(
				"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				version, time.Now().UTC().Format(time.RFC3339),
			)
			return err
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func currentVersion(ctx context.Context, pool *ConnectionPool) (int, error) {
	var version sql.NullInt64
	err := pool.DB().QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}
