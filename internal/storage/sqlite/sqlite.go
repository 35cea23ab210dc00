package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/goodtune/timekeeper/internal/storage"
	_ "modernc.org/sqlite"
)

// Store implements the storage.Store interface using SQLite.
type Store struct {
	db *sql.DB
}

// Open creates a new database connection and runs migrations
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := storage.EnsureParentDir(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite limitation
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sessions returns the session store.
func (s *Store) Sessions() storage.SessionStore { return &sessionStore{db: s.db} }

// History returns the history store.
func (s *Store) History() storage.HistoryStore { return &historyStore{db: s.db} }

// Finalize writes the history row and then the session row in one transaction.
func (s *Store) Finalize(ctx context.Context, day string, usageMillis int64, next storage.SessionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin finalize: %w", err)
	}

	if _, err := tx.ExecContext(ctx, upsertHistorySQL, day, usageMillis); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to write history for %s: %w", day, err)
	}
	if _, err := tx.ExecContext(ctx, upsertSessionSQL, next.DailyUsageMillis, next.DailyGoalMillis, next.LastUpdatedDate); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to write session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit finalize: %w", err)
	}
	return nil
}

const upsertSessionSQL = `
INSERT INTO session_state (id, daily_usage_millis, daily_goal_millis, last_updated_date, updated_at)
VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
	daily_usage_millis = excluded.daily_usage_millis,
	daily_goal_millis = excluded.daily_goal_millis,
	last_updated_date = excluded.last_updated_date,
	updated_at = excluded.updated_at
`

const upsertHistorySQL = `
INSERT INTO usage_history (day, usage_millis, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(day) DO UPDATE SET
	usage_millis = excluded.usage_millis,
	updated_at = excluded.updated_at
`

type sessionStore struct {
	db *sql.DB
}

func (s *sessionStore) Get(ctx context.Context) (*storage.SessionRecord, error) {
	var record storage.SessionRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT daily_usage_millis, daily_goal_millis, last_updated_date
		FROM session_state WHERE id = 1
	`).Scan(&record.DailyUsageMillis, &record.DailyGoalMillis, &record.LastUpdatedDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return &record, nil
}

func (s *sessionStore) Put(ctx context.Context, record storage.SessionRecord) error {
	if _, err := s.db.ExecContext(ctx, upsertSessionSQL, record.DailyUsageMillis, record.DailyGoalMillis, record.LastUpdatedDate); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

type historyStore struct {
	db *sql.DB
}

func (s *historyStore) Put(ctx context.Context, day string, usageMillis int64) error {
	if _, err := s.db.ExecContext(ctx, upsertHistorySQL, day, usageMillis); err != nil {
		return fmt.Errorf("failed to write history for %s: %w", day, err)
	}
	return nil
}

func (s *historyStore) Get(ctx context.Context, day string) (int64, error) {
	var usageMillis int64
	err := s.db.QueryRowContext(ctx, `SELECT usage_millis FROM usage_history WHERE day = ?`, day).Scan(&usageMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query history for %s: %w", day, err)
	}
	return usageMillis, nil
}

func (s *historyStore) GetAll(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT day, usage_millis FROM usage_history`)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	history := make(map[string]int64)
	for rows.Next() {
		var (
			day         string
			usageMillis int64
		)
		if err := rows.Scan(&day, &usageMillis); err != nil {
			return nil, fmt.Errorf("%w: history row: %v", storage.ErrCorrupt, err)
		}
		history[day] = usageMillis
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return history, nil
}

// runMigrations applies all database migrations
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL UNIQUE,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	migrations := getMigrations()
	versions := make([]int, 0, len(migrations))
	for version := range migrations {
		versions = append(versions, version)
	}
	sort.Ints(versions)

	for _, version := range versions {
		if version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(migrations[version]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", version, err)
		}
	}

	return nil
}

// getMigrations returns all database migrations
func getMigrations() map[int]string {
	return map[int]string{
		1: migration001SessionState,
		2: migration002UsageHistory,
	}
}

const migration001SessionState = `
CREATE TABLE IF NOT EXISTS session_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	daily_usage_millis INTEGER NOT NULL DEFAULT 0,
	daily_goal_millis INTEGER NOT NULL DEFAULT 0,
	last_updated_date TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const migration002UsageHistory = `
CREATE TABLE IF NOT EXISTS usage_history (
	day TEXT PRIMARY KEY,
	usage_millis INTEGER NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
