package threads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/kandev/agui-gateway/internal/common/errors"
)

// SQLiteStore provides SQLite-backed thread storage
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the thread database at the given path
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates the database tables if they don't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		session_key TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		last_run_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_threads_session_key ON threads(session_key);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Resolve returns the thread with the given id, creating it if needed
func (s *SQLiteStore) Resolve(ctx context.Context, threadID string) (*Thread, error) {
	if threadID == "" {
		return nil, apperrors.BadRequest("thread id is required")
	}

	thread, err := s.Get(ctx, threadID)
	if err == nil {
		return thread, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO threads (id, session_key, created_at, updated_at, last_run_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, threadID, uuid.New().String(), now, now, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}

	// Re-read so a concurrent creator's row wins consistently
	return s.Get(ctx, threadID)
}

// Get returns the thread with the given id
func (s *SQLiteStore) Get(ctx context.Context, threadID string) (*Thread, error) {
	thread := &Thread{}

	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_key, created_at, updated_at, last_run_at
		FROM threads WHERE id = ?
	`, threadID).Scan(&thread.ID, &thread.SessionKey, &thread.CreatedAt, &thread.UpdatedAt, &thread.LastRunAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("thread", threadID)
	}
	if err != nil {
		return nil, err
	}
	return thread, nil
}

// List returns all threads, newest first
func (s *SQLiteStore) List(ctx context.Context) ([]*Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_key, created_at, updated_at, last_run_at
		FROM threads ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Thread
	for rows.Next() {
		thread := &Thread{}
		if err := rows.Scan(&thread.ID, &thread.SessionKey, &thread.CreatedAt, &thread.UpdatedAt, &thread.LastRunAt); err != nil {
			return nil, err
		}
		result = append(result, thread)
	}
	return result, rows.Err()
}

// Touch records that a run started on the thread at the given time
func (s *SQLiteStore) Touch(ctx context.Context, threadID string, lastRunAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE threads SET last_run_at = ?, updated_at = ? WHERE id = ?
	`, lastRunAt, time.Now().UTC(), threadID)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.NotFound("thread", threadID)
	}
	return nil
}

// Delete removes a thread
func (s *SQLiteStore) Delete(ctx context.Context, threadID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, threadID)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.NotFound("thread", threadID)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
