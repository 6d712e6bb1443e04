package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

var testTime = time.Date(2026, time.October, 17, 9, 30, 0, 0, time.UTC)

const emptyAnalytics = `{"totalMessages":0,"eventCounts":{},"averageResponseTime":0,"phaseTransitions":[]}`

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresFromDB(db), mock
}

func sessionRow(userID string) *sqlmock.Rows {
	return sqlmock.NewRows(sessionColumns).AddRow(
		userID, "sess-1", "collect_info", "", "",
		`{"email":"an@example.com","certificates":{"toefl":105}}`, `[]`, `[]`, emptyAnalytics,
		false, nil, testTime, testTime,
	)
}

func TestPostgresGetSession(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT (.+) FROM sessions WHERE user_id = \$1`).
			WithArgs("u1").
			WillReturnRows(sessionRow("u1"))

		sess, err := s.GetSession(context.Background(), "u1")
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Equal(t, "sess-1", sess.ID)
		assert.Equal(t, domain.PhaseCollectInfo, sess.Phase)
		assert.Equal(t, "an@example.com", sess.Profile.Email)
		require.NotNil(t, sess.Profile.Certificates.TOEFL)
		assert.Equal(t, 105, *sess.Profile.Certificates.TOEFL)
		assert.NotNil(t, sess.Messages)
		assert.Nil(t, sess.CompletedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT (.+) FROM sessions`).
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows(sessionColumns))

		sess, err := s.GetSession(context.Background(), "u1")
		require.NoError(t, err)
		assert.Nil(t, sess)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresGetOrCreateInsertsMissing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT (.+) FROM sessions`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(sessionColumns))
	mock.ExpectExec(`INSERT INTO sessions (.+) ON CONFLICT \(user_id\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT (.+) FROM sessions`).
		WithArgs("u1").
		WillReturnRows(sessionRow("u1"))

	sess, err := s.GetOrCreateSession(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveSessionRetriesSerializationFailure(t *testing.T) {
	s, mock := newMockStore(t)
	sess := domain.NewSession("u1", testTime)

	mock.ExpectExec(`INSERT INTO sessions (.+) ON CONFLICT \(user_id\) DO UPDATE`).
		WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectExec(`INSERT INTO sessions (.+) ON CONFLICT \(user_id\) DO UPDATE`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SaveSession(context.Background(), sess))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkCompleted(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT (.+) FROM sessions`).
		WithArgs("u1").
		WillReturnRows(sessionRow("u1"))
	mock.ExpectExec(`UPDATE sessions SET is_completed = \$1, completed_at = \$2, phase = \$3, updated_at = \$4 WHERE user_id = \$5`).
		WithArgs(true, testTime, "progress_tracking", testTime, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.MarkCompleted(context.Background(), "u1", testTime))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteAndCleanup(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM sessions WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM sessions WHERE updated_at < \$1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, s.DeleteSession(context.Background(), "u1"))
	n, err := s.CleanupIdleSessions(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUsers(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(userColumns))
	mock.ExpectExec(`INSERT INTO users (.+) ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs("u1", "An", "", "", testTime, testTime, testTime).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u, err := s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, u)

	require.NoError(t, s.UpsertUser(context.Background(), &domain.User{
		UserID: "u1", FullName: "An", LastSeenAt: testTime, CreatedAt: testTime, UpdatedAt: testTime,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
