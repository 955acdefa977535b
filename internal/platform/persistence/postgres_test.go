package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) (*PostgresDB, pgxmock.PgxPoolIface) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return &PostgresDB{
		starter:    mock,
		logger:     slog.New(slog.NewJSONHandler(os.Stdout, nil)),
		txAttempts: defaultTxAttempts,
	}, mock
}

func TestPostgresDB_ExecuteTx(t *testing.T) {
	ctx := context.Background()

	t.Run("Commits", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error { return nil })
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollsBackOnError", func(t *testing.T) {
		db, mock := newTestDB(t)
		boom := errors.New("insufficient funds")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RerunsAfterSerializationFailure", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()
		mock.ExpectBegin()
		mock.ExpectCommit()

		calls := 0
		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			calls++
			if calls == 1 {
				return &pgconn.PgError{Code: sqlStateSerializationFailure}
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GivesUpAfterLastAttempt", func(t *testing.T) {
		db, mock := newTestDB(t)
		for i := 0; i < defaultTxAttempts; i++ {
			mock.ExpectBegin()
			mock.ExpectRollback()
		}

		calls := 0
		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			calls++
			return &pgconn.PgError{Code: sqlStateDeadlockDetected}
		})
		assert.True(t, IsRetryable(err))
		assert.Equal(t, defaultTxAttempts, calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("BeginFails", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			t.Fatal("fn must not run without a transaction")
			return nil
		})
		assert.ErrorContains(t, err, "failed to begin transaction")
	})

	t.Run("RollsBackOnPanic", func(t *testing.T) {
		db, mock := newTestDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = db.ExecuteTx(ctx, func(tx pgx.Tx) error { panic("boom") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "SerializationFailure", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "Deadlock", err: &pgconn.PgError{Code: "40P01"}, want: true},
		{name: "Wrapped", err: fmt.Errorf("lock card: %w", &pgconn.PgError{Code: "40001"}), want: true},
		{name: "UniqueViolation", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "PlainError", err: errors.New("nope"), want: false},
		{name: "Nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
