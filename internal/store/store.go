// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/arcadeops/ledarcade/internal/domain"
)

// Repository defines the interface for persisting session and score data.
type Repository interface {
	// LoadSessions retrieves the full session table keyed by client ID.
	LoadSessions(ctx context.Context) (map[string]*domain.Session, error)

	// SaveSessions persists the full session table, replacing whatever was
	// stored before. Transient contention is retried a bounded number of
	// times before the error is returned.
	SaveSessions(ctx context.Context, sessions map[string]*domain.Session) error

	// DeleteSessionsBefore removes sessions created before the cutoff and
	// returns how many were deleted.
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// SaveScore appends a completed game's score record.
	SaveScore(ctx context.Context, rec *domain.ScoreRecord) error

	// TopScores returns up to limit score records, best first.
	TopScores(ctx context.Context, limit int) ([]*domain.ScoreRecord, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
