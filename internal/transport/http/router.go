package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"

	credentialhandler "academy/internal/credential/handler"
	enrollmenthandler "academy/internal/enrollment/handler"
	"academy/internal/platform/health"
	ratelimitmw "academy/internal/ratelimit/middleware"
	adminmw "academy/pkg/platform/middleware/admin"
	auth "academy/pkg/platform/middleware/auth"
	"academy/pkg/platform/middleware/metadata"
	request "academy/pkg/platform/middleware/request"
	"academy/pkg/platform/middleware/requesttime"
	"academy/pkg/platform/validation"
)

// VerifyScope keys the public verification rate limit.
const VerifyScope = "verify"

// Handlers are the HTTP surfaces mounted by the router.
type Handlers struct {
	Credentials *credentialhandler.Handler
	Enrollments *enrollmenthandler.Handler
	Health      *health.Handler
	Metrics     http.Handler
}

// Config carries the cross-cutting middleware settings.
type Config struct {
	RequestTimeout time.Duration
	TrustedProxies []netip.Prefix
	AdminToken     string
	JWT            auth.JWTValidator
	VerifyLimit    *ratelimitmw.Middleware
	Latency        *request.Metrics
}

// NewRouter wires the three route groups (admin, learner and public verification)
// behind the shared middleware stack.
func NewRouter(h Handlers, cfg Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(metadata.NewMiddleware(&metadata.Config{TrustedProxies: cfg.TrustedProxies}).Handler)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(logger))
	r.Use(request.LatencyMiddleware(cfg.Latency))

	if h.Health != nil {
		h.Health.Register(r)
	}
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(request.Timeout(cfg.RequestTimeout))
		}
		r.Use(request.ContentTypeJSON)
		r.Use(request.BodyLimit(validation.MaxBodySize))

		r.Group(func(r chi.Router) {
			r.Use(adminmw.RequireAdminToken(cfg.AdminToken, logger))
			h.Credentials.RegisterAdmin(r)
			if h.Enrollments != nil {
				h.Enrollments.Register(r)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(cfg.JWT, logger))
			h.Credentials.RegisterLearner(r)
		})

		r.Group(func(r chi.Router) {
			if cfg.VerifyLimit != nil {
				r.Use(cfg.VerifyLimit.RateLimit(VerifyScope))
			}
			h.Credentials.RegisterPublic(r)
		})
	})

	return r
}
