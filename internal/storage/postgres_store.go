package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/deusflow/MeterNews/internal/dedup"
	"github.com/deusflow/MeterNews/internal/logger"
)

// PostgresStore keeps delivered stories in the sent_stories table. Active
// keys are loaded once per run so Seen never touches the database.
type PostgresStore struct {
	db   *sql.DB
	ttl  time.Duration
	mu   sync.RWMutex
	keys map[string]struct{}
	now  func() time.Time
}

// NewPostgresStore connects, creates the schema and loads the active keys.
func NewPostgresStore(ctx context.Context, connectionString string, ttl time.Duration) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := NewPostgresStoreWithDB(ctx, db, ttl)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("PostgreSQL seen-story store connected", "active_keys", len(store.keys))
	return store, nil
}

// NewPostgresStoreWithDB wraps an open database handle.
func NewPostgresStoreWithDB(ctx context.Context, db *sql.DB, ttl time.Duration) (*PostgresStore, error) {
	s := &PostgresStore{
		db:   db,
		ttl:  ttl,
		keys: make(map[string]struct{}),
		now:  time.Now,
	}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS sent_stories (
	id SERIAL PRIMARY KEY,
	story_key VARCHAR(64) UNIQUE NOT NULL,
	title TEXT NOT NULL,
	link TEXT NOT NULL,
	run_id VARCHAR(36),
	sent_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_sent_stories_sent_at ON sent_stories(sent_at);
`

func (s *PostgresStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Load replaces the in-memory key set with the keys inside the TTL window.
func (s *PostgresStore) Load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT story_key FROM sent_stories WHERE sent_at > $1`, s.now().Add(-s.ttl))
	if err != nil {
		return fmt.Errorf("failed to load seen stories: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return fmt.Errorf("failed to scan seen story: %w", err)
		}
		keys[k] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load seen stories: %w", err)
	}

	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
	return nil
}

// Seen implements dedup.PriorSet.
func (s *PostgresStore) Seen(fp dedup.Fingerprint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, k := range Keys(fp) {
		if _, ok := s.keys[k]; ok {
			return true
		}
	}
	return false
}

// Remember upserts every key of the delivered groups in one transaction.
func (s *PostgresStore) Remember(ctx context.Context, runID string, groups []dedup.DuplicateGroup) error {
	stories := storiesFor(groups, runID, s.now())
	if len(stories) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	const query = `
		INSERT INTO sent_stories (story_key, title, link, run_id, sent_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (story_key) DO UPDATE SET sent_at = EXCLUDED.sent_at, run_id = EXCLUDED.run_id
	`
	for _, st := range stories {
		if _, err := tx.ExecContext(ctx, query, st.Key, st.Title, st.Link, st.RunID, st.SentAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to remember story: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seen stories: %w", err)
	}

	s.mu.Lock()
	for _, st := range stories {
		s.keys[st.Key] = struct{}{}
	}
	s.mu.Unlock()
	return nil
}

// Cleanup deletes rows older than the TTL.
func (s *PostgresStore) Cleanup(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sent_stories WHERE sent_at < $1`, s.now().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup seen stories: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	if n > 0 {
		logger.Info("Cleaned up expired seen stories", "count", n)
	}
	return int(n), nil
}

// GetStats returns store statistics.
func (s *PostgresStore) GetStats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{"total_items": len(s.keys)}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
