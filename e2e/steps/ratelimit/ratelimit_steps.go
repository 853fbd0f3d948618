package ratelimit

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	GetLastResponseStatus() int
	GetLastResponseHeader(name string) string
}

// RegisterSteps registers rate-limiting step definitions for the public verify route.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I keep verifying "([^"]*)" until I am throttled, at most (\d+) times$`, steps.verifyUntilThrottled)
	ctx.Step(`^the response should carry a Retry-After header$`, steps.shouldCarryRetryAfter)
}

type ratelimitSteps struct {
	tc TestContext
}

func (s *ratelimitSteps) verifyUntilThrottled(ctx context.Context, token string, limit int) error {
	for range limit {
		if err := s.tc.GET("/verify/"+token, nil); err != nil {
			return err
		}
		if s.tc.GetLastResponseStatus() == 429 {
			return nil
		}
		if s.tc.GetLastResponseHeader("X-RateLimit-Limit") == "" {
			return fmt.Errorf("verification response missing X-RateLimit-Limit")
		}
	}
	return fmt.Errorf("not throttled after %d requests", limit)
}

func (s *ratelimitSteps) shouldCarryRetryAfter(ctx context.Context) error {
	if s.tc.GetLastResponseHeader("Retry-After") == "" {
		return fmt.Errorf("missing Retry-After header")
	}
	return nil
}
