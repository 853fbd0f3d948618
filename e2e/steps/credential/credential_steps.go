package credential

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"

	jwttoken "academy/internal/jwt_token"
	id "academy/pkg/domain"
	"academy/pkg/requestcontext"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POSTWithHeaders(path string, body any, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetAdminToken() string
	GetSigningKey() string
	GetAccessToken() string
	SetAccessToken(token string)
	Save(key, value string)
	Saved(key string) string
	GetLastResponseStatus() int
	GetLastResponseHeader(name string) string
	GetLastResponseBody() []byte
}

// Demo learners seeded by the dev server, keyed by first name.
var learners = map[string]struct{ person, enrollment string }{
	"Alice":   {"0b7f6c1e-5a43-4f8e-9c2d-000000000001", "0b7f6c1e-5a43-4f8e-9c2d-100000000001"},
	"Bob":     {"0b7f6c1e-5a43-4f8e-9c2d-000000000002", "0b7f6c1e-5a43-4f8e-9c2d-100000000002"},
	"Charlie": {"0b7f6c1e-5a43-4f8e-9c2d-000000000003", "0b7f6c1e-5a43-4f8e-9c2d-100000000003"},
	"Diana":   {"0b7f6c1e-5a43-4f8e-9c2d-000000000004", "0b7f6c1e-5a43-4f8e-9c2d-100000000004"},
}

const demoOffering = "6f1c2a0e-0b1d-4c43-9d3e-1a2b3c4d5e02"

// RegisterSteps registers credential lifecycle step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &credentialSteps{tc: tc}

	// Admin steps
	ctx.Step(`^an operator issues a credential for "([^"]*)"$`, steps.issueFor)
	ctx.Step(`^an operator issues a credential for enrollment "([^"]*)"$`, steps.issueForEnrollment)
	ctx.Step(`^an operator issues a credential for "([^"]*)" without the admin token$`, steps.issueWithoutToken)
	ctx.Step(`^I save the credential$`, steps.saveCredential)
	ctx.Step(`^the credential id should match the saved one$`, steps.credentialIDShouldMatch)
	ctx.Step(`^an operator revokes the saved credential with reason "([^"]*)"$`, steps.revokeSaved)
	ctx.Step(`^an operator lists the demo offering with "([^"]*)"$`, steps.listOffering)
	ctx.Step(`^an operator downloads the "([^"]*)" document of the saved credential$`, steps.downloadAdminDocument)

	// Public verification steps
	ctx.Step(`^anyone verifies the saved credential$`, steps.verifySaved)
	ctx.Step(`^anyone verifies the token "([^"]*)"$`, steps.verifyToken)

	// Learner steps
	ctx.Step(`^I am signed in as "([^"]*)"$`, steps.signInAs)
	ctx.Step(`^I list my credentials$`, steps.listMine)
	ctx.Step(`^I download the saved credential document$`, steps.downloadMine)
	ctx.Step(`^the response should be a PDF$`, steps.responseShouldBePDF)
}

type credentialSteps struct {
	tc TestContext
}

func (s *credentialSteps) admin() map[string]string {
	return map[string]string{"X-Admin-Token": s.tc.GetAdminToken(), "X-Admin-Actor-ID": "e2e"}
}

func (s *credentialSteps) bearer() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.tc.GetAccessToken()}
}

func enrollmentOf(name string) (string, error) {
	l, ok := learners[name]
	if !ok {
		return "", fmt.Errorf("unknown demo learner %q", name)
	}
	return l.enrollment, nil
}

func (s *credentialSteps) issueFor(ctx context.Context, name string) error {
	enrollmentID, err := enrollmentOf(name)
	if err != nil {
		return err
	}
	return s.issueForEnrollment(ctx, enrollmentID)
}

func (s *credentialSteps) issueForEnrollment(ctx context.Context, enrollmentID string) error {
	return s.tc.POSTWithHeaders("/admin/credentials", map[string]string{"enrollment_id": enrollmentID}, s.admin())
}

func (s *credentialSteps) issueWithoutToken(ctx context.Context, name string) error {
	enrollmentID, err := enrollmentOf(name)
	if err != nil {
		return err
	}
	return s.tc.POSTWithHeaders("/admin/credentials", map[string]string{"enrollment_id": enrollmentID}, nil)
}

func (s *credentialSteps) saveCredential(ctx context.Context) error {
	credentialID, err := s.tc.GetResponseField("credential_id")
	if err != nil {
		return err
	}
	verificationURL, err := s.tc.GetResponseField("verification_url")
	if err != nil {
		return err
	}
	u := fmt.Sprint(verificationURL)
	s.tc.Save("credential_id", fmt.Sprint(credentialID))
	s.tc.Save("token", u[strings.LastIndex(u, "/")+1:])
	return nil
}

func (s *credentialSteps) credentialIDShouldMatch(ctx context.Context) error {
	credentialID, err := s.tc.GetResponseField("credential_id")
	if err != nil {
		return err
	}
	if fmt.Sprint(credentialID) != s.tc.Saved("credential_id") {
		return fmt.Errorf("expected credential %s but got %v", s.tc.Saved("credential_id"), credentialID)
	}
	return nil
}

func (s *credentialSteps) revokeSaved(ctx context.Context, reason string) error {
	path := "/admin/credentials/" + s.tc.Saved("credential_id") + "/revoke"
	return s.tc.POSTWithHeaders(path, map[string]string{"reason": reason}, s.admin())
}

func (s *credentialSteps) listOffering(ctx context.Context, query string) error {
	return s.tc.GET("/admin/offerings/"+demoOffering+"/credentials?"+query, s.admin())
}

func (s *credentialSteps) downloadAdminDocument(ctx context.Context, variant string) error {
	return s.tc.GET("/admin/credentials/"+s.tc.Saved("credential_id")+"/document?variant="+variant, s.admin())
}

func (s *credentialSteps) verifySaved(ctx context.Context) error {
	return s.verifyToken(ctx, s.tc.Saved("token"))
}

func (s *credentialSteps) verifyToken(ctx context.Context, token string) error {
	return s.tc.GET("/verify/"+token, nil)
}

func (s *credentialSteps) signInAs(ctx context.Context, name string) error {
	l, ok := learners[name]
	if !ok {
		return fmt.Errorf("unknown demo learner %q", name)
	}
	personID, err := id.ParsePersonID(l.person)
	if err != nil {
		return err
	}
	svc := jwttoken.NewJWTService(s.tc.GetSigningKey(), "academy", "academy-api", 5*time.Minute)
	token, err := svc.GenerateAccessToken(ctx, personID, requestcontext.RoleLearner)
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(token)
	return nil
}

func (s *credentialSteps) listMine(ctx context.Context) error {
	return s.tc.GET("/me/credentials", s.bearer())
}

func (s *credentialSteps) downloadMine(ctx context.Context) error {
	return s.tc.GET("/me/credentials/"+s.tc.Saved("credential_id")+"/document", s.bearer())
}

func (s *credentialSteps) responseShouldBePDF(ctx context.Context) error {
	if ct := s.tc.GetLastResponseHeader("Content-Type"); ct != "application/pdf" {
		return fmt.Errorf("expected application/pdf but got %q", ct)
	}
	if !bytes.HasPrefix(s.tc.GetLastResponseBody(), []byte("%PDF")) {
		return fmt.Errorf("body is not a PDF")
	}
	return nil
}
