package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ashureev/duhoc-advisor/internal/domain"
	"github.com/ashureev/duhoc-advisor/internal/shared"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
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
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		fullname TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		user_id TEXT PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		phase TEXT NOT NULL,
		selected_school TEXT NOT NULL DEFAULT '',
		selected_major TEXT NOT NULL DEFAULT '',
		profile_json TEXT NOT NULL,
		checklist_json TEXT NOT NULL,
		messages_json TEXT NOT NULL,
		analytics_json TEXT NOT NULL,
		is_completed INTEGER NOT NULL DEFAULT 0,
		completed_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
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

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

const sqliteSessionColumns = `user_id, id, phase, selected_school, selected_major,
	profile_json, checklist_json, messages_json, analytics_json,
	is_completed, completed_at, created_at, updated_at`

// GetSession retrieves the session for a user.
func (s *SQLiteStore) GetSession(ctx context.Context, userID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteSessionColumns+` FROM sessions WHERE user_id = ?`, userID)

	var (
		sess                 domain.Session
		blobs                sessionBlobs
		completed            int
		completedAt          sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&sess.UserID, &sess.ID, &sess.Phase, &sess.SelectedSchool, &sess.SelectedMajor,
		&blobs.Profile, &blobs.Checklist, &blobs.Messages, &blobs.Analytics,
		&completed, &completedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	if err := decodeSession(&sess, blobs); err != nil {
		return nil, fmt.Errorf("session %s: %w", userID, err)
	}
	sess.IsCompleted = completed != 0
	if completedAt.Valid {
		ts := time.UnixMilli(completedAt.Int64).UTC()
		sess.CompletedAt = &ts
	}
	sess.CreatedAt = time.UnixMilli(createdAt).UTC()
	sess.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &sess, nil
}

// GetOrCreateSession returns the existing session or inserts a fresh one.
func (s *SQLiteStore) GetOrCreateSession(ctx context.Context, userID string) (*domain.Session, error) {
	sess, err := s.GetSession(ctx, userID)
	if err != nil || sess != nil {
		return sess, err
	}

	fresh := domain.NewSession(userID, time.Now().UTC())
	if err := s.insertSession(ctx, fresh); err != nil {
		return nil, err
	}
	// A concurrent insert may have won; read back the stored row.
	return s.GetSession(ctx, userID)
}

func (s *SQLiteStore) insertSession(ctx context.Context, sess *domain.Session) error {
	blobs, err := encodeSession(sess)
	if err != nil {
		return err
	}
	query := `INSERT INTO sessions (` + sqliteSessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`

	return shared.WithRetry(ctx, shared.DefaultRetry, "insert_session", func() error {
		_, err := s.db.ExecContext(ctx, query, sessionArgs(sess, blobs)...)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

// SaveSession creates or replaces the full session state.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess *domain.Session) error {
	blobs, err := encodeSession(sess)
	if err != nil {
		return err
	}
	query := `INSERT INTO sessions (` + sqliteSessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			id = excluded.id,
			phase = excluded.phase,
			selected_school = excluded.selected_school,
			selected_major = excluded.selected_major,
			profile_json = excluded.profile_json,
			checklist_json = excluded.checklist_json,
			messages_json = excluded.messages_json,
			analytics_json = excluded.analytics_json,
			is_completed = excluded.is_completed,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`

	return shared.WithRetry(ctx, shared.DefaultRetry, "save_session", func() error {
		_, err := s.db.ExecContext(ctx, query, sessionArgs(sess, blobs)...)
		if err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return nil
	})
}

func sessionArgs(sess *domain.Session, b sessionBlobs) []any {
	var completedAt any
	if sess.CompletedAt != nil {
		completedAt = sess.CompletedAt.UnixMilli()
	}
	completed := 0
	if sess.IsCompleted {
		completed = 1
	}
	return []any{
		sess.UserID, sess.ID, string(sess.Phase), sess.SelectedSchool, sess.SelectedMajor,
		b.Profile, b.Checklist, b.Messages, b.Analytics,
		completed, completedAt, sess.CreatedAt.UnixMilli(), sess.UpdatedAt.UnixMilli(),
	}
}

// DeleteSession removes the session for a user.
// Implements retry logic with exponential backoff to handle SQLITE_BUSY errors.
func (s *SQLiteStore) DeleteSession(ctx context.Context, userID string) error {
	err := shared.WithRetry(ctx, shared.DefaultRetry, "delete_session", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete session for %s: %w", userID, err)
	}
	return nil
}

// MarkCompleted flags the session as completed.
func (s *SQLiteStore) MarkCompleted(ctx context.Context, userID string, now time.Time) error {
	if _, err := s.GetOrCreateSession(ctx, userID); err != nil {
		return err
	}
	query := `UPDATE sessions SET is_completed = 1, completed_at = ?, phase = ?, updated_at = ? WHERE user_id = ?`
	return shared.WithRetry(ctx, shared.DefaultRetry, "mark_completed", func() error {
		_, err := s.db.ExecContext(ctx, query, now.UnixMilli(), string(domain.PhaseProgressTracking), now.UnixMilli(), userID)
		if err != nil {
			return fmt.Errorf("mark session completed: %w", err)
		}
		return nil
	})
}

// CleanupIdleSessions removes sessions not updated within olderThan.
func (s *SQLiteStore) CleanupIdleSessions(ctx context.Context, olderThan time.Duration) (int64, error) {
	threshold := time.Now().Add(-olderThan).UnixMilli()
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup idle sessions: %w", err)
	}
	return result.RowsAffected()
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, fullname, email, phone, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID, &user.FullName, &user.Email, &user.Phone,
		&lastSeen, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// UpsertUser creates or updates a user record. Empty profile fields do not
// clear stored values.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, fullname, email, phone, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		fullname = CASE WHEN excluded.fullname <> '' THEN excluded.fullname ELSE users.fullname END,
		email = CASE WHEN excluded.email <> '' THEN excluded.email ELSE users.email END,
		phone = CASE WHEN excluded.phone <> '' THEN excluded.phone ELSE users.phone END,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.FullName, user.Email, user.Phone,
		user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}
	return nil
}
