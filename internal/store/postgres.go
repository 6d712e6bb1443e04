package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/ashureev/duhoc-advisor/internal/domain"
	"github.com/ashureev/duhoc-advisor/internal/shared"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// sessionColumns lists session columns in scan order.
var sessionColumns = []string{
	"user_id", "id", "phase", "selected_school", "selected_major",
	"profile", "legal_checklist", "messages", "analytics",
	"is_completed", "completed_at", "created_at", "updated_at",
}

var userColumns = []string{
	"user_id", "fullname", "email", "phone", "last_seen_at", "created_at", "updated_at",
}

const sessionUpsertSuffix = `ON CONFLICT (user_id) DO UPDATE SET
	id = EXCLUDED.id,
	phase = EXCLUDED.phase,
	selected_school = EXCLUDED.selected_school,
	selected_major = EXCLUDED.selected_major,
	profile = EXCLUDED.profile,
	legal_checklist = EXCLUDED.legal_checklist,
	messages = EXCLUDED.messages,
	analytics = EXCLUDED.analytics,
	is_completed = EXCLUDED.is_completed,
	completed_at = EXCLUDED.completed_at,
	updated_at = EXCLUDED.updated_at`

// PostgresStore implements Repository using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres connects to dsn and optionally applies pending migrations.
func NewPostgres(ctx context.Context, dsn string, autoMigrate bool) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if autoMigrate {
		if err := Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return NewPostgresFromDB(db), nil
}

// NewPostgresFromDB wraps an existing connection pool.
func NewPostgresFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetSession retrieves the session for a user. Returns nil, nil if not found.
func (s *PostgresStore) GetSession(ctx context.Context, userID string) (*domain.Session, error) {
	query, args, err := psq.Select(sessionColumns...).
		From("sessions").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session query: %w", err)
	}

	var (
		sess        domain.Session
		blobs       sessionBlobs
		completedAt sql.NullTime
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&sess.UserID, &sess.ID, &sess.Phase, &sess.SelectedSchool, &sess.SelectedMajor,
		&blobs.Profile, &blobs.Checklist, &blobs.Messages, &blobs.Analytics,
		&sess.IsCompleted, &completedAt, &sess.CreatedAt, &sess.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Repository specifies nil,nil for not-found
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	if err := decodeSession(&sess, blobs); err != nil {
		return nil, fmt.Errorf("session %s: %w", userID, err)
	}
	if completedAt.Valid {
		ts := completedAt.Time
		sess.CompletedAt = &ts
	}
	return &sess, nil
}

// GetOrCreateSession returns the existing session or inserts a fresh one.
func (s *PostgresStore) GetOrCreateSession(ctx context.Context, userID string) (*domain.Session, error) {
	sess, err := s.GetSession(ctx, userID)
	if err != nil || sess != nil {
		return sess, err
	}
	if err := s.writeSession(ctx, domain.NewSession(userID, time.Now().UTC()), "ON CONFLICT (user_id) DO NOTHING"); err != nil {
		return nil, err
	}
	return s.GetSession(ctx, userID)
}

// SaveSession creates or replaces the full session state.
func (s *PostgresStore) SaveSession(ctx context.Context, sess *domain.Session) error {
	return s.writeSession(ctx, sess, sessionUpsertSuffix)
}

func (s *PostgresStore) writeSession(ctx context.Context, sess *domain.Session, suffix string) error {
	blobs, err := encodeSession(sess)
	if err != nil {
		return err
	}
	var completedAt any
	if sess.CompletedAt != nil {
		completedAt = *sess.CompletedAt
	}

	query, args, err := psq.Insert("sessions").
		Columns(sessionColumns...).
		Values(
			sess.UserID, sess.ID, string(sess.Phase), sess.SelectedSchool, sess.SelectedMajor,
			blobs.Profile, blobs.Checklist, blobs.Messages, blobs.Analytics,
			sess.IsCompleted, completedAt, sess.CreatedAt, sess.UpdatedAt,
		).
		Suffix(suffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("building session insert: %w", err)
	}

	return shared.WithRetry(ctx, shared.DefaultRetry, "save_session", func() error {
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		return nil
	})
}

// DeleteSession removes the session for a user.
func (s *PostgresStore) DeleteSession(ctx context.Context, userID string) error {
	query, args, err := psq.Delete("sessions").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("building session delete: %w", err)
	}
	return shared.WithRetry(ctx, shared.DefaultRetry, "delete_session", func() error {
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
		return nil
	})
}

// MarkCompleted flags the session as completed, creating it first if needed.
func (s *PostgresStore) MarkCompleted(ctx context.Context, userID string, now time.Time) error {
	if _, err := s.GetOrCreateSession(ctx, userID); err != nil {
		return err
	}
	query, args, err := psq.Update("sessions").
		Set("is_completed", true).
		Set("completed_at", now).
		Set("phase", string(domain.PhaseProgressTracking)).
		Set("updated_at", now).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building completion update: %w", err)
	}
	return shared.WithRetry(ctx, shared.DefaultRetry, "mark_completed", func() error {
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("marking session completed: %w", err)
		}
		return nil
	})
}

// CleanupIdleSessions removes sessions not updated within olderThan.
func (s *PostgresStore) CleanupIdleSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	query, args, err := psq.Delete("sessions").
		Where(sq.Lt{"updated_at": time.Now().Add(-olderThan)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building cleanup query: %w", err)
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cleaning up sessions: %w", err)
	}
	return result.RowsAffected()
}

// GetUser retrieves a user by ID. Returns nil, nil if not found.
func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query, args, err := psq.Select(userColumns...).
		From("users").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building user query: %w", err)
	}

	var u domain.User
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&u.UserID, &u.FullName, &u.Email, &u.Phone, &u.LastSeenAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Repository specifies nil,nil for not-found
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}

// UpsertUser creates or updates a user. Empty profile fields keep stored values.
func (s *PostgresStore) UpsertUser(ctx context.Context, u *domain.User) error {
	query, args, err := psq.Insert("users").
		Columns(userColumns...).
		Values(u.UserID, u.FullName, u.Email, u.Phone, u.LastSeenAt, u.CreatedAt, u.UpdatedAt).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			fullname = COALESCE(NULLIF(EXCLUDED.fullname, ''), users.fullname),
			email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), users.phone),
			last_seen_at = EXCLUDED.last_seen_at,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building user upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *PostgresStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query, args, err := psq.Update("users").
		Set("last_seen_at", lastSeen).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building last_seen update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating last_seen: %w", err)
	}
	return nil
}
