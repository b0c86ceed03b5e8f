package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/soupnight/souproom/internal/domain"
	"github.com/soupnight/souproom/internal/shared"
	_ "modernc.org/sqlite"
)

// sessionKeyPrefix namespaces session rows the way the original KV
// layout did; lookups always go through sessionKey.
const sessionKeyPrefix = "session:"

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// SQLiteStore implements Repository using SQLite. Each session is a
// single row holding the JSON-serialized transcript plus a version
// counter used for conditional appends.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_key TEXT PRIMARY KEY,
		soup_id TEXT NOT NULL,
		history_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSession persists a fresh session record at version 1.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	historyJSON, err := json.Marshal(session.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	query := `
	INSERT INTO sessions (session_key, soup_id, history_json, version, created_at, updated_at)
	VALUES (?, ?, ?, 1, ?, ?)`

	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx, query,
		sessionKey(session.ID), session.SoupID, string(historyJSON),
		session.CreatedAt.Unix(), now,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	session.Version = 1
	return nil
}

// GetSession retrieves a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT soup_id, history_json, version, created_at
		FROM sessions WHERE session_key = ?`

	row := s.db.QueryRowContext(ctx, query, sessionKey(id))

	var session domain.Session
	var historyJSON string
	var createdAt int64

	err := row.Scan(&session.SoupID, &historyJSON, &session.Version, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	if err := json.Unmarshal([]byte(historyJSON), &session.History); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}

	session.ID = id
	session.CreatedAt = time.Unix(createdAt, 0)

	return &session, nil
}

// AppendTurns appends turns via a compare-and-swap on the version
// column. Transient SQLITE_BUSY failures are retried with backoff; a
// version mismatch is reported as ErrVersionConflict for the caller to
// resolve by reloading.
func (s *SQLiteStore) AppendTurns(ctx context.Context, id string, expectedVersion int64, turns []domain.Turn) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.appendTurnsOnce(ctx, id, expectedVersion, turns)
		if err == nil {
			return nil
		}
		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<i))
			continue
		}
		return err
	}
	return nil
}

func (s *SQLiteStore) appendTurnsOnce(ctx context.Context, id string, expectedVersion int64, turns []domain.Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT history_json, version FROM sessions WHERE session_key = ?`, sessionKey(id))

	var historyJSON string
	var version int64
	err = row.Scan(&historyJSON, &version)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("scan session for append: %w", err)
	}
	if version != expectedVersion {
		return ErrVersionConflict
	}

	var history []domain.Turn
	if err := json.Unmarshal([]byte(historyJSON), &history); err != nil {
		return fmt.Errorf("unmarshal history: %w", err)
	}
	history = append(history, turns...)

	updated, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET history_json = ?, version = version + 1, updated_at = ?
		 WHERE session_key = ? AND version = ?`,
		string(updated), time.Now().Unix(), sessionKey(id), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrVersionConflict
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions created before now-ttl.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE created_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
