package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/psiobot/internal/domain"
	"github.com/ashureev/psiobot/internal/shared"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

const (
	busyRetries   = 3
	busyBaseDelay = 50 * time.Millisecond

	// MaxRecent caps Recent regardless of the requested limit.
	MaxRecent = 500
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS actions (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		target TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		ok INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_actions_created ON actions(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) newID(t time.Time) string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Record appends an action to the journal, retrying while the database is busy.
func (s *SQLiteStore) Record(ctx context.Context, a *domain.Action) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.ID == "" {
		a.ID = s.newID(a.CreatedAt)
	}

	query := `
	INSERT INTO actions (id, kind, target, detail, ok, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	return shared.RetryOnConflict(ctx, "record action", busyRetries, busyBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			a.ID, string(a.Kind), a.Target, a.Detail,
			a.OK, a.Error, a.CreatedAt.UnixMilli(),
		)
		return err
	})
}

// Recent returns up to limit actions, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]*domain.Action, error) {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}

	query := `
		SELECT id, kind, target, detail, ok, error, created_at
		FROM actions ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent actions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close recent actions rows", "error", closeErr)
		}
	}()

	var actions []*domain.Action
	for rows.Next() {
		var a domain.Action
		var kind string
		var createdAt int64
		if err := rows.Scan(&a.ID, &kind, &a.Target, &a.Detail, &a.OK, &a.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan action row: %w", err)
		}
		a.Kind = domain.ActionKind(kind)
		a.CreatedAt = time.UnixMilli(createdAt)
		actions = append(actions, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}

	return actions, nil
}

// Prune deletes actions older than retention.
func (s *SQLiteStore) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).UnixMilli()

	var deleted int64
	err := shared.RetryOnConflict(ctx, "prune actions", busyRetries, busyBaseDelay, func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM actions WHERE created_at < ?`, threshold)
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
