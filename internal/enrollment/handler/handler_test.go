package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"academy/internal/enrollment/models"
	"academy/internal/enrollment/service"
	"academy/internal/enrollment/store"
	id "academy/pkg/domain"
	adminmw "academy/pkg/platform/middleware/admin"
)

const adminToken = "secret-token"

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	store  *store.InMemory
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.store = store.NewInMemory()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	h := New(service.New(s.store, service.WithLogger(logger)), logger)
	r := chi.NewRouter()
	r.Use(adminmw.RequireAdminToken(adminToken, logger))
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) seedActive() id.EnrollmentID {
	e := &models.Enrollment{
		ID: id.EnrollmentID(uuid.New()), PersonID: id.PersonID(uuid.New()), OfferingID: id.OfferingID(uuid.New()),
		State: models.StateActive,
	}
	s.Require().NoError(s.store.Create(context.Background(), e))
	return e.ID
}

func (s *HandlerSuite) patch(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(body))
	req.Header.Set("X-Admin-Token", adminToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestAdminTokenRequired() {
	req := httptest.NewRequest(http.MethodGet, "/admin/enrollments/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestGradeEnrollment() {
	eid := s.seedActive()

	rec := s.patch("/admin/enrollments/"+eid.String(), `{"state":"completed","final_score":88}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp EnrollmentResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(models.StateCompleted, resp.State)
	s.Equal(88.0, *resp.FinalScore)
}

func (s *HandlerSuite) TestFieldsOutsideAllowListRejected() {
	eid := s.seedActive()
	rec := s.patch("/admin/enrollments/"+eid.String(), `{"credential_issued":true}`)
	s.Equal(http.StatusBadRequest, rec.Code)

	stored, _ := s.store.FindByID(context.Background(), eid)
	s.False(stored.CredentialIssued)
}

func (s *HandlerSuite) TestInvalidStateRejected() {
	eid := s.seedActive()
	rec := s.patch("/admin/enrollments/"+eid.String(), `{"state":"graduated"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestScoreOnActiveEnrollmentIsInvariantViolation() {
	eid := s.seedActive()
	rec := s.patch("/admin/enrollments/"+eid.String(), `{"final_score":75}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "invariant_violation")
}

func (s *HandlerSuite) TestUnknownEnrollment() {
	rec := s.patch("/admin/enrollments/"+uuid.NewString(), `{"state":"cancelled"}`)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestMalformedID() {
	rec := s.patch("/admin/enrollments/not-a-uuid", `{"state":"cancelled"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}
