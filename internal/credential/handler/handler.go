package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"academy/internal/credential/models"
	"academy/internal/credential/render"
	"academy/internal/credential/verify"
	id "academy/pkg/domain"
	dErrors "academy/pkg/domain-errors"
	"academy/pkg/platform/httputil"
	"academy/pkg/requestcontext"
)

// Ledger is the credential ledger surface the HTTP layer drives.
type Ledger interface {
	Issue(ctx context.Context, enrollmentID id.EnrollmentID) (*models.IssueResult, error)
	Revoke(ctx context.Context, credentialID id.CredentialID, reason string) (*models.Credential, error)
	Get(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error)
	GetForOwner(ctx context.Context, credentialID id.CredentialID, personID id.PersonID) (*models.Credential, error)
	ListForPerson(ctx context.Context, personID id.PersonID) ([]*models.Credential, error)
	ListForOffering(ctx context.Context, offeringID id.OfferingID, f models.OfferingFilter) (*models.OfferingPage, error)
	VerificationURL(c *models.Credential) string
}

type Renderer interface {
	Render(ctx context.Context, credentialID id.CredentialID, variant render.Variant) (*render.Document, error)
	QRCode(ctx context.Context, credentialID id.CredentialID) ([]byte, error)
}

type Verifier interface {
	Verify(ctx context.Context, token string) verify.Result
}

type Handler struct {
	ledger   Ledger
	renderer Renderer
	verifier Verifier
	logger   *slog.Logger
}

func New(ledger Ledger, renderer Renderer, verifier Verifier, logger *slog.Logger) *Handler {
	return &Handler{ledger: ledger, renderer: renderer, verifier: verifier, logger: logger}
}

// RegisterAdmin mounts operator routes. The caller applies the admin middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/credentials", h.HandleIssue)
	r.Get("/admin/credentials/{id}", h.HandleGetCredential)
	r.Post("/admin/credentials/{id}/revoke", h.HandleRevoke)
	r.Get("/admin/credentials/{id}/document", h.HandleAdminDocument)
	r.Get("/admin/offerings/{id}/credentials", h.HandleListOffering)
}

// RegisterLearner mounts the authenticated learner routes.
func (h *Handler) RegisterLearner(r chi.Router) {
	r.Get("/me/credentials", h.HandleListMine)
	r.Get("/me/credentials/{id}/document", h.HandleMyDocument)
	r.Get("/me/credentials/{id}/qr", h.HandleMyQRCode)
}

// RegisterPublic mounts the verification lookup. The caller applies rate limiting.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/verify/{token}", h.HandleVerify)
}

// HandleIssue answers 201 for a new credential and 200 when the enrollment
// already had one.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	enrollmentID, err := id.ParseEnrollmentID(req.EnrollmentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.ledger.Issue(ctx, enrollmentID)
	if err != nil {
		h.logger.WarnContext(ctx, "issue credential failed",
			"error", err,
			"enrollment_id", enrollmentID.String(),
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, toIssueResponse(result))
}

func (h *Handler) HandleGetCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credentialID, ok := h.credentialParam(w, r)
	if !ok {
		return
	}
	c, err := h.ledger.Get(ctx, credentialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(c, h.ledger.VerificationURL(c)))
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	credentialID, ok := h.credentialParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RevokeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.ledger.Revoke(ctx, credentialID, req.Reason)
	if err != nil {
		h.logger.WarnContext(ctx, "revoke credential failed",
			"error", err,
			"credential_id", credentialID.String(),
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(c, h.ledger.VerificationURL(c)))
}

func (h *Handler) HandleListOffering(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	offeringID, err := id.ParseOfferingID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid offering id"))
		return
	}
	filter, err := parseOfferingFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	page, err := h.ledger.ListForOffering(ctx, offeringID, filter)
	if err != nil {
		h.logger.WarnContext(ctx, "list offering credentials failed",
			"error", err,
			"offering_id", offeringID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	filter.Normalize()
	httputil.WriteJSON(w, http.StatusOK, toOfferingListing(page, filter, h.ledger.VerificationURL))
}

func (h *Handler) HandleAdminDocument(w http.ResponseWriter, r *http.Request) {
	credentialID, ok := h.credentialParam(w, r)
	if !ok {
		return
	}
	h.writeDocument(w, r, credentialID)
}

func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	personID, err := httputil.RequirePersonID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	list, err := h.ledger.ListForPerson(ctx, personID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := MyCredentialsResponse{Credentials: make([]CredentialResponse, 0, len(list))}
	for _, c := range list {
		resp.Credentials = append(resp.Credentials, *toCredentialResponse(c, h.ledger.VerificationURL(c)))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleMyDocument(w http.ResponseWriter, r *http.Request) {
	credentialID, ok := h.ownedCredential(w, r)
	if !ok {
		return
	}
	h.writeDocument(w, r, credentialID)
}

func (h *Handler) HandleMyQRCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credentialID, ok := h.ownedCredential(w, r)
	if !ok {
		return
	}
	png, err := h.renderer.QRCode(ctx, credentialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// HandleVerify always answers 200; validity is in the body. The token is
// never logged.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	result := h.verifier.Verify(r.Context(), chi.URLParam(r, "token"))
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) credentialParam(w http.ResponseWriter, r *http.Request) (id.CredentialID, bool) {
	credentialID, err := id.ParseCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid credential id"))
		return id.CredentialID{}, false
	}
	return credentialID, true
}

// ownedCredential resolves the path credential for the authenticated
// learner. Other people's credentials answer 404.
func (h *Handler) ownedCredential(w http.ResponseWriter, r *http.Request) (id.CredentialID, bool) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	personID, err := httputil.RequirePersonID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return id.CredentialID{}, false
	}
	credentialID, ok := h.credentialParam(w, r)
	if !ok {
		return id.CredentialID{}, false
	}
	if _, err := h.ledger.GetForOwner(ctx, credentialID, personID); err != nil {
		httputil.WriteError(w, err)
		return id.CredentialID{}, false
	}
	return credentialID, true
}

func (h *Handler) writeDocument(w http.ResponseWriter, r *http.Request, credentialID id.CredentialID) {
	ctx := r.Context()
	variant, err := render.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	doc, err := h.renderer.Render(ctx, credentialID, variant)
	if err != nil {
		h.logger.WarnContext(ctx, "render document failed",
			"error", err,
			"credential_id", credentialID.String(),
			"variant", string(variant),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", doc.Disposition, doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}
