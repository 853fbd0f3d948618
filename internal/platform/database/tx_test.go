package database

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "academy/pkg/domain-errors"
	"academy/pkg/platform/sentinel"
	txcontext "academy/pkg/platform/tx"
)

func connectionRefused() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
}

func TestTxRunner(t *testing.T) {
	t.Run("commits and exposes the transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectCommit()

		err = NewTxRunner(db).RunInTx(context.Background(), func(ctx context.Context) error {
			_, ok := txcontext.From(ctx)
			assert.True(t, ok)
			return nil
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = NewTxRunner(db).RunInTx(context.Background(), func(context.Context) error { return boom })
		require.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested call joins the outer transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectCommit()

		runner := NewTxRunner(db)
		err = runner.RunInTx(context.Background(), func(ctx context.Context) error {
			return runner.RunInTx(ctx, func(context.Context) error { return nil })
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cancelled context never begins", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err = NewTxRunner(db).RunInTx(ctx, func(context.Context) error { return nil })
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unreachable database on begin is unavailable", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectBegin().WillReturnError(connectionRefused())

		err = NewTxRunner(db).RunInTx(context.Background(), func(context.Context) error {
			t.Fatal("fn must not run without a transaction")
			return nil
		})
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("serialization failure on commit is unavailable", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "40001"})

		err = NewTxRunner(db).RunInTx(context.Background(), func(context.Context) error { return nil })
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("permanent commit failure is not retryable", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("disk full"))

		err = NewTxRunner(db).RunInTx(context.Background(), func(context.Context) error { return nil })
		require.Error(t, err)
		assert.NotErrorIs(t, err, sentinel.ErrUnavailable)
	})
}
