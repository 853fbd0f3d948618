package common

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	GetLastResponseStatus() int
	GetLastResponseHeader(name string) string
	GetLastResponseBody() []byte
}

// RegisterSteps registers common step definitions used across features
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	// Background steps
	ctx.Step(`^the academy API is running$`, steps.academyIsRunning)

	// Generic request steps
	ctx.Step(`^I GET "([^"]*)" without authorization$`, steps.getWithoutAuth)

	// Response assertion steps
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the response status should be (\d+) or (\d+)$`, steps.responseStatusShouldBeEither)
	ctx.Step(`^the response body should be exactly '([^']*)'$`, steps.responseBodyShouldBeExactly)
	ctx.Step(`^the response should not contain "([^"]*)"$`, steps.responseShouldNotContain)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.responseFieldShouldEqual)
	ctx.Step(`^the response header "([^"]*)" should equal "([^"]*)"$`, steps.responseHeaderShouldEqual)
	ctx.Step(`^the response header "([^"]*)" should be set$`, steps.responseHeaderShouldBeSet)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) academyIsRunning(ctx context.Context) error {
	if err := s.tc.GET("/health/ready", nil); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return fmt.Errorf("academy not ready: status %d", status)
	}
	return nil
}

func (s *commonSteps) getWithoutAuth(ctx context.Context, path string) error {
	return s.tc.GET(path, nil)
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expectedStatus int) error {
	actualStatus := s.tc.GetLastResponseStatus()
	if actualStatus != expectedStatus {
		return fmt.Errorf("expected status %d but got %d: %s", expectedStatus, actualStatus, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) responseStatusShouldBeEither(ctx context.Context, a, b int) error {
	actualStatus := s.tc.GetLastResponseStatus()
	if actualStatus != a && actualStatus != b {
		return fmt.Errorf("expected status %d or %d but got %d", a, b, actualStatus)
	}
	return nil
}

func (s *commonSteps) responseBodyShouldBeExactly(ctx context.Context, expected string) error {
	actual := strings.TrimSpace(string(s.tc.GetLastResponseBody()))
	if actual != expected {
		return fmt.Errorf("expected body %s but got %s", expected, actual)
	}
	return nil
}

func (s *commonSteps) responseShouldNotContain(ctx context.Context, text string) error {
	if strings.Contains(string(s.tc.GetLastResponseBody()), text) {
		return fmt.Errorf("response unexpectedly contains %q", text)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldEqual(ctx context.Context, field, expectedValue string) error {
	var data map[string]any
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &data); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	actualValue, ok := data[field]
	if !ok {
		return fmt.Errorf("field %s not found in response", field)
	}

	if fmt.Sprint(actualValue) != expectedValue {
		return fmt.Errorf("field %s: expected %s but got %v", field, expectedValue, actualValue)
	}
	return nil
}

func (s *commonSteps) responseHeaderShouldEqual(ctx context.Context, name, expected string) error {
	if actual := s.tc.GetLastResponseHeader(name); actual != expected {
		return fmt.Errorf("header %s: expected %q but got %q", name, expected, actual)
	}
	return nil
}

func (s *commonSteps) responseHeaderShouldBeSet(ctx context.Context, name string) error {
	if s.tc.GetLastResponseHeader(name) == "" {
		return fmt.Errorf("header %s not set", name)
	}
	return nil
}
