package sequence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy/pkg/platform/sentinel"
)

func TestPostgresIncrementIsSingleUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO sequence_counters .* ON CONFLICT \(name\) DO UPDATE SET value = sequence_counters.value \+ 1\s+RETURNING value`).
		WithArgs(Receipts).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(42)))

	v, err := NewPostgres(db).Increment(context.Background(), Receipts)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIncrementClassifiesConnectionLoss(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO sequence_counters").WillReturnError(&pgconn.PgError{Code: "08006"})

	_, err = NewPostgres(db).Increment(context.Background(), Receipts)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}
