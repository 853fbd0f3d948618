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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"academy/internal/credential/render"
	"academy/internal/credential/sequence"
	"academy/internal/credential/service"
	credentialstore "academy/internal/credential/store"
	"academy/internal/credential/token"
	"academy/internal/credential/verify"
	enrollment "academy/internal/enrollment/models"
	enrollmentstore "academy/internal/enrollment/store"
	id "academy/pkg/domain"
	adminmw "academy/pkg/platform/middleware/admin"
	"academy/pkg/requestcontext"
)

const (
	adminToken   = "secret-token"
	personHeader = "X-Test-Person"
)

type HandlerSuite struct {
	suite.Suite
	router      http.Handler
	enrollments *enrollmentstore.InMemory
	offering    enrollment.Offering
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.enrollments = enrollmentstore.NewInMemory()
	credentials := credentialstore.NewInMemory(s.enrollments)

	course := enrollment.Course{ID: id.CourseID(uuid.New()), Name: "Compilers"}
	s.offering = enrollment.Offering{ID: id.OfferingID(uuid.New()), CourseID: course.ID, Label: "2026-S2"}
	s.enrollments.SeedCourse(course)
	s.enrollments.SeedOffering(s.offering)

	ledger := service.New(credentials, s.enrollments, sequence.New(sequence.NewInMemory()), token.New("https://academy.test"),
		service.WithLogger(logger), service.WithRetry(3, 0))
	h := New(ledger,
		render.New(ledger, s.enrollments, render.WithLogger(logger)),
		verify.New(credentials, verify.WithLogger(logger)),
		logger,
	)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(adminToken, logger))
		h.RegisterAdmin(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(fakeAuth)
		h.RegisterLearner(r)
	})
	h.RegisterPublic(r)
	s.router = r
}

// fakeAuth stands in for the JWT middleware.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		personID, err := id.ParsePersonID(r.Header.Get(personHeader))
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(requestcontext.WithPersonID(r.Context(), personID)))
	})
}

func (s *HandlerSuite) enroll(state enrollment.State, finalScore *float64) *enrollment.Enrollment {
	person := enrollment.Person{ID: id.PersonID(uuid.New()), DisplayName: "Grace Hopper"}
	s.enrollments.SeedPerson(person)
	e := &enrollment.Enrollment{
		ID: id.EnrollmentID(uuid.New()), PersonID: person.ID, OfferingID: s.offering.ID,
		State: state, FinalScore: finalScore, CreatedAt: time.Now(),
	}
	s.Require().NoError(s.enrollments.Create(context.Background(), e))
	return e
}

func (s *HandlerSuite) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) admin(method, path, body string) *httptest.ResponseRecorder {
	return s.do(method, path, body, map[string]string{"X-Admin-Token": adminToken})
}

func (s *HandlerSuite) as(personID id.PersonID, path string) *httptest.ResponseRecorder {
	return s.do(http.MethodGet, path, "", map[string]string{personHeader: personID.String()})
}

func (s *HandlerSuite) issue(enrollmentID id.EnrollmentID) IssueResponse {
	rec := s.admin(http.MethodPost, "/admin/credentials", `{"enrollment_id":"`+enrollmentID.String()+`"}`)
	s.Require().Contains([]int{http.StatusCreated, http.StatusOK}, rec.Code, rec.Body.String())
	var resp IssueResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func tokenOf(verificationURL string) string {
	return verificationURL[strings.LastIndex(verificationURL, "/")+1:]
}

func passing() *float64 {
	v := 88.0
	return &v
}

func (s *HandlerSuite) TestIssue() {
	s.Run("creates then returns existing", func() {
		e := s.enroll(enrollment.StateCompleted, passing())
		body := `{"enrollment_id":"` + e.ID.String() + `"}`

		first := s.admin(http.MethodPost, "/admin/credentials", body)
		s.Equal(http.StatusCreated, first.Code)
		var created IssueResponse
		s.Require().NoError(json.Unmarshal(first.Body.Bytes(), &created))
		s.True(created.Created)
		s.True(strings.HasPrefix(created.VerificationURL, "https://academy.test/verify/"))
		s.Len(tokenOf(created.VerificationURL), token.Length)

		second := s.admin(http.MethodPost, "/admin/credentials", body)
		s.Equal(http.StatusOK, second.Code)
		var existing IssueResponse
		s.Require().NoError(json.Unmarshal(second.Body.Bytes(), &existing))
		s.False(existing.Created)
		s.Equal(created.CredentialID, existing.CredentialID)
		s.Equal(created.VerificationURL, existing.VerificationURL)
	})

	s.Run("ineligible enrollment is 422", func() {
		e := s.enroll(enrollment.StateActive, nil)
		rec := s.admin(http.MethodPost, "/admin/credentials", `{"enrollment_id":"`+e.ID.String()+`"}`)
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
		s.Contains(rec.Body.String(), "not_eligible")
	})

	s.Run("unknown enrollment is 404", func() {
		rec := s.admin(http.MethodPost, "/admin/credentials", `{"enrollment_id":"`+uuid.NewString()+`"}`)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("malformed enrollment id is 400", func() {
		rec := s.admin(http.MethodPost, "/admin/credentials", `{"enrollment_id":"nope"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("requires admin token", func() {
		e := s.enroll(enrollment.StateCompleted, passing())
		rec := s.do(http.MethodPost, "/admin/credentials", `{"enrollment_id":"`+e.ID.String()+`"}`, nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *HandlerSuite) TestRevokeThenVerify() {
	e := s.enroll(enrollment.StateCompleted, passing())
	issued := s.issue(e.ID)
	verifyPath := "/verify/" + tokenOf(issued.VerificationURL)

	before := s.do(http.MethodGet, verifyPath, "", nil)
	s.Equal(http.StatusOK, before.Code)
	s.Equal("no-store", before.Header().Get("Cache-Control"))
	var valid verify.Result
	s.Require().NoError(json.Unmarshal(before.Body.Bytes(), &valid))
	s.True(valid.Valid)
	s.Require().NotNil(valid.Summary)
	s.Equal("Compilers", valid.Summary.CourseName)

	rec := s.admin(http.MethodPost, "/admin/credentials/"+issued.CredentialID+"/revoke", `{"reason":"academic misconduct"}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var revoked CredentialResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &revoked))
	s.True(revoked.Revoked)

	after := s.do(http.MethodGet, verifyPath, "", nil)
	s.Equal(http.StatusOK, after.Code)
	s.JSONEq(`{"valid":false}`, after.Body.String())

	again := s.admin(http.MethodPost, "/admin/credentials/"+issued.CredentialID+"/revoke", `{}`)
	s.Equal(http.StatusOK, again.Code)
}

func (s *HandlerSuite) TestVerifyFailuresLookAlike() {
	for _, path := range []string{
		"/verify/" + token.Placeholder(),
		"/verify/short",
		"/verify/" + strings.Repeat("!", token.Length),
	} {
		rec := s.do(http.MethodGet, path, "", nil)
		s.Equal(http.StatusOK, rec.Code, path)
		s.JSONEq(`{"valid":false}`, rec.Body.String(), path)
	}
}

func (s *HandlerSuite) TestLearnerRoutes() {
	owner := s.enroll(enrollment.StateCompleted, passing())
	other := s.enroll(enrollment.StateCompleted, passing())
	mine := s.issue(owner.ID)
	theirs := s.issue(other.ID)

	s.Run("lists only own credentials", func() {
		rec := s.as(owner.PersonID, "/me/credentials")
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp MyCredentialsResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Require().Len(resp.Credentials, 1)
		s.Equal(mine.CredentialID, resp.Credentials[0].ID)
	})

	s.Run("downloads own certificate", func() {
		rec := s.as(owner.PersonID, "/me/credentials/"+mine.CredentialID+"/document")
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal("application/pdf", rec.Header().Get("Content-Type"))
		s.True(strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;"))
		s.Equal("nosniff", rec.Header().Get("X-Content-Type-Options"))
		s.True(bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	})

	s.Run("someone else's credential is 404", func() {
		s.Equal(http.StatusNotFound, s.as(owner.PersonID, "/me/credentials/"+theirs.CredentialID+"/document").Code)
		s.Equal(http.StatusNotFound, s.as(owner.PersonID, "/me/credentials/"+theirs.CredentialID+"/qr").Code)
	})

	s.Run("qr is a png", func() {
		rec := s.as(owner.PersonID, "/me/credentials/"+mine.CredentialID+"/qr")
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal("image/png", rec.Header().Get("Content-Type"))
		s.True(bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
	})
}

func (s *HandlerSuite) TestAdminDocument() {
	e := s.enroll(enrollment.StateCompleted, passing())
	issued := s.issue(e.ID)
	path := "/admin/credentials/" + issued.CredentialID

	s.Run("receipt numbers the credential once", func() {
		first := s.admin(http.MethodGet, path+"/document?variant=receipt", "")
		s.Require().Equal(http.StatusOK, first.Code, first.Body.String())
		second := s.admin(http.MethodGet, path+"/document?variant=receipt", "")
		s.Equal(first.Body.Bytes(), second.Body.Bytes())

		rec := s.admin(http.MethodGet, path, "")
		var c CredentialResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &c))
		s.Require().NotNil(c.SequenceNo)
		s.Equal(int64(1), *c.SequenceNo)
	})

	s.Run("preview is inline", func() {
		rec := s.admin(http.MethodGet, path+"/document?variant=preview", "")
		s.Require().Equal(http.StatusOK, rec.Code)
		s.True(strings.HasPrefix(rec.Header().Get("Content-Disposition"), "inline;"))
	})

	s.Run("unknown variant is 400", func() {
		s.Equal(http.StatusBadRequest, s.admin(http.MethodGet, path+"/document?variant=poster", "").Code)
	})
}

func (s *HandlerSuite) TestListOffering() {
	issued := s.enroll(enrollment.StateCompleted, passing())
	s.issue(issued.ID)
	s.enroll(enrollment.StateCompleted, passing())
	s.enroll(enrollment.StateActive, nil)

	list := func(query string) OfferingListingResponse {
		rec := s.admin(http.MethodGet, "/admin/offerings/"+s.offering.ID.String()+"/credentials"+query, "")
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		var resp OfferingListingResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	all := list("")
	s.Equal(3, all.Total)
	s.Len(all.Rows, 3)

	only := list("?bucket=issued")
	s.Require().Len(only.Rows, 1)
	s.Equal(issued.ID.String(), only.Rows[0].EnrollmentID)
	s.NotNil(only.Rows[0].Credential)

	pendingOrBlocked := list("?bucket=pending,not_eligible&limit=1")
	s.Equal(2, pendingOrBlocked.Total)
	s.Len(pendingOrBlocked.Rows, 1)
	s.Equal(1, pendingOrBlocked.Limit)

	s.Equal(http.StatusBadRequest, s.admin(http.MethodGet, "/admin/offerings/"+s.offering.ID.String()+"/credentials?bucket=lost", "").Code)
	s.Equal(http.StatusBadRequest, s.admin(http.MethodGet, "/admin/offerings/"+s.offering.ID.String()+"/credentials?issued_from=yesterday", "").Code)
	s.Equal(http.StatusNotFound, s.admin(http.MethodGet, "/admin/offerings/"+uuid.NewString()+"/credentials", "").Code)
}
