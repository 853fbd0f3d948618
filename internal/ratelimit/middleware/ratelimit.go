package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"academy/internal/ratelimit/models"
	"academy/pkg/platform/httputil"
	"academy/pkg/platform/privacy"
	"academy/pkg/requestcontext"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string) (*models.Result, error)
}

type Middleware struct {
	limiter RateLimiter
	logger  *slog.Logger
}

func New(limiter RateLimiter, logger *slog.Logger) *Middleware {
	return &Middleware{limiter: limiter, logger: logger}
}

// RateLimitExceededResponse is the 429 body.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"error_description"`
	RetryAfter int    `json:"retry_after"`
}

// RateLimit limits requests per client network under scope. Clients are keyed
// by their anonymized address prefix, so raw IPs never reach the store.
// Limiter errors fail open.
func (m *Middleware) RateLimit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			client := privacy.AnonymizeIP(requestcontext.ClientIP(ctx))

			result, err := m.limiter.Allow(ctx, models.Key(scope, client))
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"error", err,
					"scope", scope,
					"ip_prefix", client,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.logger.InfoContext(ctx, "rate limit exceeded",
					"scope", scope,
					"ip_prefix", client,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if result.Degraded {
		w.Header().Set("X-RateLimit-Status", "degraded")
	}
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	retryAfter := result.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests from this network. Please try again later.",
		RetryAfter: retryAfter,
	})
}
