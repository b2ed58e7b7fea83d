package threads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/kandev/agui-gateway/internal/common/errors"
)

// PostgresStore provides PostgreSQL-backed thread storage for multi-instance
// deployments.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to PostgreSQL, verifies the connection, and
// ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates the database tables if they don't exist
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		session_key TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		last_run_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_threads_session_key ON threads(session_key);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Resolve returns the thread with the given id, creating it if needed
func (s *PostgresStore) Resolve(ctx context.Context, threadID string) (*Thread, error) {
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
	_, err = s.pool.Exec(ctx, `
		INSERT INTO threads (id, session_key, created_at, updated_at, last_run_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, threadID, uuid.New().String(), now, now, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}

	// Re-read so a concurrent creator's row wins consistently
	return s.Get(ctx, threadID)
}

// Get returns the thread with the given id
func (s *PostgresStore) Get(ctx context.Context, threadID string) (*Thread, error) {
	thread := &Thread{}

	err := s.pool.QueryRow(ctx, `
		SELECT id, session_key, created_at, updated_at, last_run_at
		FROM threads WHERE id = $1
	`, threadID).Scan(&thread.ID, &thread.SessionKey, &thread.CreatedAt, &thread.UpdatedAt, &thread.LastRunAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("thread", threadID)
	}
	if err != nil {
		return nil, err
	}
	return thread, nil
}

// List returns all threads, newest first
func (s *PostgresStore) List(ctx context.Context) ([]*Thread, error) {
	rows, err := s.pool.Query(ctx, `
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
func (s *PostgresStore) Touch(ctx context.Context, threadID string, lastRunAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE threads SET last_run_at = $1, updated_at = $2 WHERE id = $3
	`, lastRunAt, time.Now().UTC(), threadID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("thread", threadID)
	}
	return nil
}

// Delete removes a thread
func (s *PostgresStore) Delete(ctx context.Context, threadID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM threads WHERE id = $1`, threadID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("thread", threadID)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
