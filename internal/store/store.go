// Package store provides session persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/soupnight/souproom/internal/domain"
)

var (
	// ErrNotFound is returned when no session exists for the given id.
	ErrNotFound = errors.New("session not found")

	// ErrVersionConflict is returned by AppendTurns when the session
	// was modified after the caller's load. Callers reload and retry.
	ErrVersionConflict = errors.New("session version conflict")
)

// Repository defines the interface for persisting game sessions.
// One record per session; lookup is always by exact session id.
type Repository interface {
	// CreateSession persists a fresh session record at version 1.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by id, including its current
	// version token. Returns ErrNotFound if no record exists.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// AppendTurns appends turns to the session's transcript, but only
	// if the stored version still equals expectedVersion. Returns
	// ErrVersionConflict when a concurrent writer got there first, so
	// no writer's turns are ever silently dropped.
	AppendTurns(ctx context.Context, id string, expectedVersion int64, turns []domain.Turn) error

	// DeleteExpiredSessions removes sessions created before now-ttl
	// and returns the number deleted.
	DeleteExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) error

	// Close closes the backing store.
	Close() error
}
