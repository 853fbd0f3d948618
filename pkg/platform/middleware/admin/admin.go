package admin

import (
	"context"
	"log/slog"
	"net/http"

	"academy/pkg/requestcontext"
	"academy/pkg/secrets"
)

// RequireAdminToken guards operator endpoints with a shared X-Admin-Token secret.
// The optional X-Admin-Actor-ID header is kept for audit attribution.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get("X-Admin-Token")
			if expectedToken == "" || !secrets.Equal(token, expectedToken) {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}

			ctx = requestcontext.WithRole(ctx, requestcontext.RoleAdmin)
			if actorID := r.Header.Get("X-Admin-Actor-ID"); actorID != "" {
				ctx = requestcontext.WithAdminActor(ctx, actorID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsAdminRequest reports whether the request passed the admin guard.
func IsAdminRequest(ctx context.Context) bool {
	return requestcontext.RoleOf(ctx) == requestcontext.RoleAdmin
}
