// Package models holds the token bucket arithmetic shared by the in-memory
// and Redis bucket stores.
package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Policy is a token bucket: Burst tokens of capacity refilled at RatePerMinute.
type Policy struct {
	RatePerMinute int
	Burst         int
}

func (p Policy) Validate() error {
	if p.RatePerMinute < 1 || p.Burst < 1 {
		return fmt.Errorf("rate limit policy must have positive rate and burst")
	}
	return nil
}

// MillisPerToken is the refill interval of a single token.
func (p Policy) MillisPerToken() float64 {
	return float64(time.Minute.Milliseconds()) / float64(p.RatePerMinute)
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	// Degraded is set when the decision came from the process-local fallback.
	Degraded bool
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1 when denied.
func (r *Result) RetryAfterSeconds() int {
	if r.Allowed {
		return 0
	}
	return max(1, int(math.Ceil(r.RetryAfter.Seconds())))
}

// Take refills a bucket holding tokens since elapsed and tries to spend one.
// It returns the new token count and the decision.
func Take(p Policy, tokens float64, elapsed time.Duration) (float64, bool) {
	if elapsed > 0 {
		tokens = math.Min(float64(p.Burst), tokens+float64(elapsed.Milliseconds())/p.MillisPerToken())
	}
	if tokens >= 1 {
		return tokens - 1, true
	}
	return tokens, false
}

// BuildResult derives headers and retry timing from the remaining tokens.
func BuildResult(p Policy, tokens float64, allowed bool, now time.Time) *Result {
	perToken := p.MillisPerToken()
	res := &Result{
		Allowed:   allowed,
		Limit:     p.Burst,
		Remaining: int(math.Floor(tokens)),
		ResetAt:   now.Add(time.Duration(math.Ceil((float64(p.Burst)-tokens)*perToken)) * time.Millisecond),
	}
	if !allowed {
		res.RetryAfter = time.Duration(math.Ceil((1-tokens)*perToken)) * time.Millisecond
	}
	return res
}

// Key builds a bucket key. Segments are escaped so user-controlled input cannot
// collide with another bucket.
func Key(scope, identifier string) string {
	return "ratelimit:" + sanitizeKeySegment(scope) + ":" + sanitizeKeySegment(identifier)
}

// sanitizeKeySegment escapes '_' first, then the ':' delimiter, so distinct
// inputs never map to the same segment.
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	return strings.ReplaceAll(s, ":", "_c")
}
