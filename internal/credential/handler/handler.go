package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"anchorcred/internal/credential/issuer"
	"anchorcred/internal/credential/models"
	dErrors "anchorcred/pkg/domain-errors"
	"anchorcred/pkg/platform/httputil"
	"anchorcred/pkg/platform/middleware/auth"
	"anchorcred/pkg/requestcontext"
)

// Service defines the credential operations exposed over HTTP.
type Service interface {
	Issue(ctx context.Context, req issuer.Request) (models.Credential, error)
	Revoke(ctx context.Context, credentialID, attester string) error
	Get(ctx context.Context, credentialID string) (models.IssuedCredential, error)
	List(ctx context.Context, issuer string) ([]models.IssuedCredential, error)
	Disclose(ctx context.Context, cred models.Credential, reveal []string) (models.Credential, error)
	Verify(ctx context.Context, cred models.Credential) (models.AttestationResult, error)
	VerifyPresentation(ctx context.Context, creds []models.Credential) ([]models.AttestationResult, error)
}

// Handler wires credential endpoints to the credential service.
type Handler struct {
	service       Service
	logger        *slog.Logger
	authenticator auth.Authenticator
}

// New constructs a credential handler. Issuer-only routes authenticate with
// authenticator.
func New(service Service, logger *slog.Logger, authenticator auth.Authenticator) *Handler {
	return &Handler{
		service:       service,
		logger:        logger,
		authenticator: authenticator,
	}
}

// Register mounts credential endpoints on the router. Issuing, listing and
// revoking require an issuer token; disclosure and verification are public.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireIssuer(h.authenticator, h.logger))
		r.Post("/credentials", h.HandleIssue)
		r.Get("/credentials", h.HandleList)
		r.Post("/credentials/{id}/revoke", h.HandleRevoke)
	})
	r.Get("/credentials/{id}", h.HandleGet)
	r.Post("/credentials/disclose", h.HandleDisclose)
	r.Post("/credentials/verify", h.HandleVerify)
	r.Post("/presentations/verify", h.HandleVerifyPresentation)
}

// HandleIssue handles POST /credentials.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	issuerID := requestcontext.Issuer(ctx)
	if issuerID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cred, err := h.service.Issue(ctx, req.ToIssuerRequest(issuerID))
	if err != nil {
		h.logger.ErrorContext(ctx, "credential issuance failed",
			"request_id", requestID,
			"issuer", issuerID,
			"schema_ref", req.SchemaRef,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "credential issued",
		"request_id", requestID,
		"issuer", issuerID,
		"credential_id", cred.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, cred)
}

// HandleRevoke handles POST /credentials/{id}/revoke.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	credentialID := chi.URLParam(r, "id")

	issuerID := requestcontext.Issuer(ctx)
	if issuerID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	if err := h.service.Revoke(ctx, credentialID, issuerID); err != nil {
		h.logger.WarnContext(ctx, "credential revocation failed",
			"request_id", requestID,
			"credential_id", credentialID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RevokeResponse{ID: credentialID, Revoked: true})
}

// HandleGet handles GET /credentials/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credentialID := chi.URLParam(r, "id")

	issued, err := h.service.Get(ctx, credentialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromIssued(issued))
}

// HandleList handles GET /credentials, listing the caller's own issuances.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	issued, err := h.service.List(ctx, requestcontext.Issuer(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := ListResponse{Credentials: make([]IssuedResponse, 0, len(issued))}
	for _, c := range issued {
		resp.Credentials = append(resp.Credentials, FromIssued(c))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleDisclose handles POST /credentials/disclose.
func (h *Handler) HandleDisclose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[DiscloseRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	out, err := h.service.Disclose(ctx, req.Credential, req.Reveal)
	if err != nil {
		h.logger.WarnContext(ctx, "disclosure failed",
			"request_id", requestID,
			"credential_id", req.Credential.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleVerify handles POST /credentials/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Verify(ctx, req.Credential)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// HandleVerifyPresentation handles POST /presentations/verify.
func (h *Handler) HandleVerifyPresentation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[PresentationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	results, err := h.service.VerifyPresentation(ctx, req.Credentials)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := PresentationResponse{Valid: true, Results: make([]VerificationResponse, 0, len(results))}
	for _, result := range results {
		resp.Results = append(resp.Results, FromResult(result))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
