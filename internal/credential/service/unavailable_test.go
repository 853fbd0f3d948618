package service

import (
	"context"
	"net"
	"syscall"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy/internal/credential/sequence"
	credentialstore "academy/internal/credential/store"
	"academy/internal/credential/token"
	enrollmentstore "academy/internal/enrollment/store"
	"academy/internal/platform/database"
	id "academy/pkg/domain"
	dErrors "academy/pkg/domain-errors"
)

func TestIssueOverUnreachableDatabaseIsUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	for range 3 {
		mock.ExpectBegin().WillReturnError(&net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED})
	}

	ledger := New(
		credentialstore.NewPostgres(db),
		enrollmentstore.NewPostgres(db),
		sequence.New(sequence.NewPostgres(db)),
		token.New("https://academy.test"),
		WithTx(database.NewTxRunner(db)),
		WithRetry(3, 0),
	)

	_, err = ledger.Issue(context.Background(), id.EnrollmentID(uuid.New()))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}
