// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides durable correlation and relay-ledger persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", unavailable(err))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", unavailable(err))
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", unavailable(err))
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", unavailable(err))
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", unavailable(err))
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS correlations (
			user_id    TEXT PRIMARY KEY,
			thread_id  TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_correlations_thread
			ON correlations(thread_id);

		CREATE TABLE IF NOT EXISTS relay_events (
			event_id   TEXT PRIMARY KEY,
			direction  TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			thread_id  TEXT,
			outcome    TEXT NOT NULL,
			detail     TEXT,
			created_at TEXT NOT NULL,

			CHECK (direction IN ('user_to_operator', 'operator_to_user')),
			CHECK (outcome IN ('delivered', 'failed'))
		);

		CREATE INDEX IF NOT EXISTS idx_relay_events_created ON relay_events(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_relay_events_user ON relay_events(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// unavailable marks an error as a storage-medium failure so callers can
// distinguish it from ErrNotFound via errors.Is.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// GetThread returns the thread correlated with userID.
// Returns ErrNotFound if the user has no correlation.
func (s *SQLiteStore) GetThread(ctx context.Context, userID string) (string, error) {
	var threadID string
	err := s.db.QueryRowContext(ctx,
		`SELECT thread_id FROM correlations WHERE user_id = ?`, userID,
	).Scan(&threadID)

	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying thread for user: %w", unavailable(err))
	}

	return threadID, nil
}

// GetUser returns the user correlated with threadID.
// Returns ErrNotFound if no user points at the thread.
func (s *SQLiteStore) GetUser(ctx context.Context, threadID string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM correlations WHERE thread_id = ?`, threadID,
	).Scan(&userID)

	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying user for thread: %w", unavailable(err))
	}

	return userID, nil
}

// Set creates or overwrites the correlation for userID.
func (s *SQLiteStore) Set(ctx context.Context, userID, threadID string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO correlations (user_id, thread_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			thread_id = excluded.thread_id,
			updated_at = excluded.updated_at
	`, userID, threadID, now, now)
	if err != nil {
		return fmt.Errorf("upserting correlation: %w", unavailable(err))
	}

	s.logger.Debug("set correlation", "user_id", userID, "thread_id", threadID)
	return nil
}

// SetIfAbsent creates the correlation only if the user has none.
// Returns the thread that is correlated with the user afterwards: threadID
// when the insert took effect, or the previously stored thread when another
// writer won the race.
func (s *SQLiteStore) SetIfAbsent(ctx context.Context, userID, threadID string) (string, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO correlations (user_id, thread_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, userID, threadID, now, now)
	if err != nil {
		return "", fmt.Errorf("inserting correlation: %w", unavailable(err))
	}

	// Read back the winning row. The core never deletes correlations, so
	// the row is guaranteed to exist here.
	winner, err := s.GetThread(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("reading back correlation: %w", err)
	}

	if winner != threadID {
		s.logger.Debug("correlation already present", "user_id", userID, "thread_id", winner)
	} else {
		s.logger.Debug("created correlation", "user_id", userID, "thread_id", threadID)
	}
	return winner, nil
}

// ListCorrelations returns correlations ordered by most recent update.
// If limit is 0 or negative, a default limit of 100 is used.
func (s *SQLiteStore) ListCorrelations(ctx context.Context, limit int) ([]*Correlation, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, thread_id, created_at, updated_at
		FROM correlations
		ORDER BY updated_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying correlations: %w", unavailable(err))
	}
	defer rows.Close()

	var correlations []*Correlation
	for rows.Next() {
		var c Correlation
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(&c.UserID, &c.ThreadID, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning correlation row: %w", err)
		}

		c.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		c.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}

		correlations = append(correlations, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating correlation rows: %w", err)
	}

	return correlations, nil
}

// SaveRelayEvent persists a ledger entry for a relay attempt
func (s *SQLiteStore) SaveRelayEvent(ctx context.Context, event *RelayEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relay_events (event_id, direction, user_id, thread_id, outcome, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		string(event.Direction),
		event.UserID,
		event.ThreadID,
		string(event.Outcome),
		event.Detail,
		event.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting relay event: %w", unavailable(err))
	}

	s.logger.Debug("saved relay event",
		"event_id", event.ID,
		"direction", event.Direction,
		"outcome", event.Outcome,
	)
	return nil
}

// ListRelayEvents returns ledger entries, newest first.
// If limit is 0 or negative, a default limit of 50 is used.
func (s *SQLiteStore) ListRelayEvents(ctx context.Context, limit int) ([]*RelayEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, direction, user_id, thread_id, outcome, detail, created_at
		FROM relay_events
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying relay events: %w", unavailable(err))
	}
	defer rows.Close()

	var events []*RelayEvent
	for rows.Next() {
		var e RelayEvent
		var direction, outcome, createdAtStr string

		if err := rows.Scan(&e.ID, &direction, &e.UserID, &e.ThreadID, &outcome, &e.Detail, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning relay event row: %w", err)
		}

		e.Direction = Direction(direction)
		e.Outcome = Outcome(outcome)
		e.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relay event rows: %w", err)
	}

	return events, nil
}
