package verify

//go:generate mockgen -source=verify.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"academy/internal/credential/metrics"
	"academy/internal/credential/models"
	"academy/internal/credential/token"
	"academy/internal/credential/verify/mocks"
	id "academy/pkg/domain"
	"academy/pkg/platform/sentinel"
)

var validToken = strings.Repeat("x", token.Length)

func newService(t *testing.T) (*Service, *mocks.MockStore, *metrics.Metrics) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	m := metrics.New(prometheus.NewRegistry())
	return New(store, WithMetrics(m)), store, m
}

func TestVerifyValidToken(t *testing.T) {
	svc, store, m := newService(t)
	issued := time.Date(2026, 6, 30, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	store.EXPECT().FindVerification(gomock.Any(), validToken).Return(&models.VerificationRecord{
		CredentialID: id.NewCredentialID(), CourseName: "Networks", IssuedAt: issued,
	}, nil)

	result := svc.Verify(context.Background(), validToken)
	require.True(t, result.Valid)
	require.NotNil(t, result.Summary)
	assert.Equal(t, "Networks", result.Summary.CourseName)
	assert.Equal(t, issued.UTC(), result.Summary.IssuedAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerifyLookups.WithLabelValues("valid", "unknown")))
}

func TestVerifyFailuresAreIndistinguishable(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		lookup string
		rec    *models.VerificationRecord
		err    error
	}{
		{name: "unknown", token: validToken, lookup: validToken, err: sentinel.ErrNotFound},
		{name: "revoked", token: validToken, lookup: validToken, rec: &models.VerificationRecord{CourseName: "Networks", Revoked: true}},
		{name: "storage failure", token: validToken, lookup: validToken, err: fmt.Errorf("query: %w", sentinel.ErrUnavailable)},
		{name: "unexpected error", token: validToken, lookup: validToken, err: errors.New("boom")},
		{name: "too short", token: "abc", lookup: token.Placeholder(), err: sentinel.ErrNotFound},
		{name: "bad alphabet", token: strings.Repeat("!", token.Length), lookup: token.Placeholder(), err: sentinel.ErrNotFound},
		{name: "empty", token: "", lookup: token.Placeholder(), err: sentinel.ErrNotFound},
	}

	var bodies []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newService(t)
			store.EXPECT().FindVerification(gomock.Any(), tt.lookup).Return(tt.rec, tt.err)

			result := svc.Verify(context.Background(), tt.token)
			assert.False(t, result.Valid)
			assert.Nil(t, result.Summary)

			body, err := json.Marshal(result)
			require.NoError(t, err)
			bodies = append(bodies, string(body))
		})
	}
	for _, body := range bodies {
		assert.JSONEq(t, `{"valid":false}`, body)
	}
}

func TestMalformedTokenStillPerformsALookup(t *testing.T) {
	svc, store, _ := newService(t)
	store.EXPECT().FindVerification(gomock.Any(), token.Placeholder()).
		Return(&models.VerificationRecord{CourseName: "should not leak"}, nil).Times(1)

	result := svc.Verify(context.Background(), "not a token")
	assert.False(t, result.Valid, "a placeholder hit must never validate")
}
