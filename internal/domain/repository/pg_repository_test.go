package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"
	"timetrack/internal/common"
	"timetrack/internal/domain/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestPgUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	user := &model.User{ID: "u1", Username: "alice", HashedPassword: "h", CreatedAt: time.Now()}
	insert := regexp.QuoteMeta(`INSERT INTO users`)

	t.Run("ok", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(insert).
			WithArgs(user.ID, user.Username, user.HashedPassword, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewPgUserRepository(db).Create(ctx, user))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation is conflict", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(insert).WillReturnError(&pgconn.PgError{Code: "23505"})

		err := NewPgUserRepository(db).Create(ctx, user)
		assert.ErrorIs(t, err, common.ErrConflict)
	})
}

func TestPgUserRepository_FindByUsername(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta(`SELECT id, username, hashed_password, created_at`)

	t.Run("found", func(t *testing.T) {
		db, mock := newMock(t)
		created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		mock.ExpectQuery(query).WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "hashed_password", "created_at"}).
				AddRow("u1", "alice", "h", created))

		u, err := NewPgUserRepository(db).FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "u1", u.ID)
		assert.Equal(t, "h", u.HashedPassword)
		assert.Equal(t, created, u.CreatedAt)
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(query).WithArgs("bob").WillReturnError(sql.ErrNoRows)

		_, err := NewPgUserRepository(db).FindByUsername(ctx, "bob")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

var timerCols = []string{"id", "user_id", "description", "start_at", "end_at", "duration_seconds", "is_active"}

func TestPgTimerRepository_ListByUser(t *testing.T) {
	db, mock := newMock(t)
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM timers WHERE user_id = $1 ORDER BY start_at, id`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(timerCols).
			AddRow("t1", "u1", "write docs", start, end, int64(90), false).
			AddRow("t2", "u1", "review", start.Add(time.Hour), nil, int64(0), true))

	timers, err := NewPgTimerRepository(db).ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, timers, 2)

	require.NotNil(t, timers[0].End)
	assert.Equal(t, end, *timers[0].End)
	assert.False(t, timers[0].IsActive)
	assert.Nil(t, timers[1].End)
	assert.True(t, timers[1].IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTimerRepository_ListAll_EmptyIsNotNil(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM timers ORDER BY start_at, id`)).
		WillReturnRows(sqlmock.NewRows(timerCols))

	timers, err := NewPgTimerRepository(db).ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, timers)
	assert.Empty(t, timers)
}

func TestPgTimerRepository_FindByID_Missing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM timers WHERE id = $1`)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(timerCols))

	_, err := NewPgTimerRepository(db).FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPgTimerRepository_Stop(t *testing.T) {
	update := regexp.QuoteMeta(`UPDATE timers SET is_active = FALSE`)
	end := time.Date(2024, 1, 1, 9, 1, 30, 0, time.UTC)

	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"active timer is stopped", 1, true},
		{"already stopped matches nothing", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(update).
				WithArgs("t1", sqlmock.AnyArg(), int64(90)).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			ok, err := NewPgTimerRepository(db).Stop(context.Background(), "t1", end, 90)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
