// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/psiobot/internal/domain"
)

// Repository persists the action journal.
type Repository interface {
	// Record appends an action. A missing ID or timestamp is filled in.
	Record(ctx context.Context, a *domain.Action) error

	// Recent returns up to limit actions, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.Action, error)

	// Prune deletes actions older than the retention window and returns
	// the number of rows removed.
	Prune(ctx context.Context, retention time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
