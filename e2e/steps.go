package e2e

import (
	"github.com/cucumber/godog"

	"academy/e2e/steps/common"
	"academy/e2e/steps/credential"
	"academy/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	credential.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
}
