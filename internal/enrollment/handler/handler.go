package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"academy/internal/enrollment/models"
	id "academy/pkg/domain"
	dErrors "academy/pkg/domain-errors"
	"academy/pkg/platform/httputil"
	"academy/pkg/requestcontext"
)

// Service is the grading surface exposed to administrators.
type Service interface {
	Get(ctx context.Context, enrollmentID id.EnrollmentID) (*models.Enrollment, error)
	UpdateEnrollment(ctx context.Context, enrollmentID id.EnrollmentID, u models.Update) (*models.Enrollment, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the admin routes. The caller applies the admin middleware.
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/enrollments/{id}", h.HandleGetEnrollment)
	r.Patch("/admin/enrollments/{id}", h.HandleUpdateEnrollment)
}

func (h *Handler) HandleGetEnrollment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	enrollmentID, err := id.ParseEnrollmentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid enrollment id"))
		return
	}

	e, err := h.service.Get(ctx, enrollmentID)
	if err != nil {
		h.logger.WarnContext(ctx, "get enrollment failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEnrollmentResponse(e))
}

// HandleUpdateEnrollment applies an allow-listed grading update. Unknown body
// fields are rejected by the decoder.
func (h *Handler) HandleUpdateEnrollment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	enrollmentID, err := id.ParseEnrollmentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid enrollment id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateEnrollmentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	e, err := h.service.UpdateEnrollment(ctx, enrollmentID, req.ToUpdate())
	if err != nil {
		h.logger.WarnContext(ctx, "update enrollment failed",
			"error", err,
			"enrollment_id", enrollmentID.String(),
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEnrollmentResponse(e))
}
