// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

// Repository persists conversation sessions and user records.
// Sessions are keyed uniquely by user ID.
type Repository interface {
	// GetOrCreateSession returns the user's session, creating a fresh one in
	// the intro phase when none exists.
	GetOrCreateSession(ctx context.Context, userID string) (*domain.Session, error)

	// GetSession returns the user's session, or nil, nil if none exists.
	GetSession(ctx context.Context, userID string) (*domain.Session, error)

	// SaveSession persists the full session state.
	SaveSession(ctx context.Context, session *domain.Session) error

	// DeleteSession removes the user's session entirely.
	DeleteSession(ctx context.Context, userID string) error

	// MarkCompleted sets the completion flag, completion time and the
	// progress_tracking phase, creating the session first if needed.
	// No other field is modified.
	MarkCompleted(ctx context.Context, userID string, now time.Time) error

	// CleanupIdleSessions deletes sessions not updated within olderThan.
	CleanupIdleSessions(ctx context.Context, olderThan time.Duration) (int64, error)

	// GetUser retrieves a user by their user ID, or nil, nil if unknown.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Driver      string
	Path        string
	URL         string
	AutoMigrate bool
}

// Open returns the repository for opts.Driver.
func Open(ctx context.Context, opts Options) (Repository, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		s, err := NewSQLite(opts.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := NewPostgres(ctx, opts.URL, opts.AutoMigrate)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", opts.Driver)
	}
}
