// Package service orchestrates credential issuance, revocation, disclosure
// and verification on top of the credential core.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"anchorcred/internal/credential/disclosure"
	"anchorcred/internal/credential/issuer"
	"anchorcred/internal/credential/metrics"
	"anchorcred/internal/credential/models"
	"anchorcred/internal/credential/ports"
	"anchorcred/internal/credential/verifier"
	dErrors "anchorcred/pkg/domain-errors"
	"anchorcred/pkg/platform/audit"
	"anchorcred/pkg/platform/sentinel"
	"anchorcred/pkg/requestcontext"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store persists issued credentials.
type Store interface {
	Save(ctx context.Context, issued models.IssuedCredential) error
	FindByID(ctx context.Context, id string) (models.IssuedCredential, error)
	ListByIssuer(ctx context.Context, issuer string) ([]models.IssuedCredential, error)
	MarkRevoked(ctx context.Context, id string, at time.Time) error
}

// SchemaValidator checks a credential subject against a registered schema.
type SchemaValidator interface {
	Validate(ctx context.Context, schemaID string, subject map[string]any) error
}

const defaultFinalizeMaxElapsed = 30 * time.Second

type Service struct {
	issuer   *issuer.Issuer
	verifier *verifier.Verifier
	ledger   ports.LedgerWriter
	store    Store

	schemas    SchemaValidator
	auditor    ports.AuditPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	newBackOff func() backoff.BackOff
	verifyOpts verifier.Options
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithSchemaValidator enables subject validation at issuance.
func WithSchemaValidator(v SchemaValidator) Option {
	return func(s *Service) {
		s.schemas = v
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithFinalizeMaxElapsed bounds how long Issue waits for the issuance
// transaction to become readable.
func WithFinalizeMaxElapsed(d time.Duration) Option {
	return func(s *Service) {
		s.newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxElapsedTime = d
			return b
		}
	}
}

// WithFinalizeBackOff replaces the retry policy used while finalizing.
func WithFinalizeBackOff(newBackOff func() backoff.BackOff) Option {
	return func(s *Service) {
		if newBackOff != nil {
			s.newBackOff = newBackOff
		}
	}
}

// WithVerifyOptions sets the defaults applied to every verification.
func WithVerifyOptions(opts verifier.Options) Option {
	return func(s *Service) {
		s.verifyOpts = opts
	}
}

func New(iss *issuer.Issuer, ver *verifier.Verifier, ledger ports.LedgerWriter, store Store, opts ...Option) (*Service, error) {
	if iss == nil {
		return nil, errors.New("issuer is required")
	}
	if ver == nil {
		return nil, errors.New("verifier is required")
	}
	if ledger == nil {
		return nil, errors.New("ledger writer is required")
	}
	if store == nil {
		return nil, errors.New("credential store is required")
	}
	s := &Service{
		issuer:   iss,
		verifier: ver,
		ledger:   ledger,
		store:    store,
		logger:   slog.Default(),
		tracer:   otel.Tracer("anchorcred/credential"),
	}
	WithFinalizeMaxElapsed(defaultFinalizeMaxElapsed)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue validates the claim against its schema, builds the stub proof,
// submits the attestation and finalizes the proof once the transaction is
// readable. The issuer identity comes from the request.
func (s *Service) Issue(ctx context.Context, req issuer.Request) (models.Credential, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "credential.Issue")
	defer span.End()

	if strings.TrimSpace(req.Issuer) == "" {
		return fail(span, models.Credential{}, dErrors.New(dErrors.CodeUnauthorized, "issuer identity is required"))
	}
	if s.schemas != nil {
		subject := make(map[string]any, len(req.Claim.Properties)+1)
		for k, v := range req.Claim.Properties {
			subject[k] = v
		}
		subject[models.SubjectIDKey] = req.Claim.SubjectID
		if err := s.schemas.Validate(ctx, req.SchemaRef, subject); err != nil {
			return fail(span, models.Credential{}, err)
		}
	}

	built, err := s.issuer.Initialize(req)
	if err != nil {
		return fail(span, models.Credential{}, err)
	}
	span.SetAttributes(attribute.String("credential.id", built.Credential.ID))

	info, err := s.ledger.Submit(ctx, req.Issuer, built.Payload)
	if err != nil {
		return fail(span, models.Credential{}, translateSubmit(err))
	}

	attempts := 0
	var cred models.Credential
	op := func() error {
		attempts++
		var ferr error
		cred, _, ferr = s.issuer.Finalize(ctx, built.Credential, built.Stub, info)
		if ferr != nil && !models.IsTransient(ferr) {
			return backoff.Permanent(ferr)
		}
		return ferr
	}
	notify := func(err error, wait time.Duration) {
		s.logger.DebugContext(ctx, "issuance not yet confirmed, retrying",
			"credential_id", built.Credential.ID,
			"wait", wait,
			"error", err,
		)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(s.newBackOff(), ctx), notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			err = dErrors.Wrap(err, dErrors.CodeTimeout, "issuance was not confirmed in time")
		}
		return fail(span, models.Credential{}, err)
	}
	s.metrics.ObserveFinalizeAttempts(attempts)

	issuedAt := info.Timestamp
	if issuedAt.IsZero() {
		issuedAt = requestcontext.Now(ctx)
	}
	if err := s.store.Save(ctx, models.IssuedCredential{Credential: cred, IssuedAt: issuedAt}); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return fail(span, models.Credential{}, dErrors.Wrap(err, dErrors.CodeConflict, "credential already issued"))
		}
		return fail(span, models.Credential{}, dErrors.Wrap(err, dErrors.CodeInternal, "save issued credential"))
	}

	if err := s.emit(ctx, audit.Event{
		Action:       audit.ActionCredentialIssued,
		CredentialID: cred.ID,
		Issuer:       cred.Issuer,
		Outcome:      "anchored",
	}); err != nil {
		return fail(span, models.Credential{}, dErrors.Wrap(err, dErrors.CodeInternal, "record issuance audit"))
	}

	s.metrics.IncIssued()
	s.metrics.ObserveIssueLatency(time.Since(start))
	s.logger.InfoContext(ctx, "credential issued",
		"request_id", requestcontext.RequestID(ctx),
		"credential_id", cred.ID,
		"issuer", cred.Issuer,
		"block", info.Block.Number,
		"finalize_attempts", attempts,
	)
	return cred, nil
}

// Revoke flags the attestation behind credentialID on the ledger. Only the
// original attester may revoke.
func (s *Service) Revoke(ctx context.Context, credentialID, attester string) error {
	ctx, span := s.tracer.Start(ctx, "credential.Revoke")
	defer span.End()

	root, err := models.RootDigestFromID(credentialID)
	if err != nil {
		return failErr(span, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid credential id"))
	}
	if _, err := s.ledger.Revoke(ctx, attester, root); err != nil {
		return failErr(span, translateRevoke(err))
	}
	if err := s.store.MarkRevoked(ctx, credentialID, requestcontext.Now(ctx)); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to mark stored credential revoked",
			"credential_id", credentialID,
			"error", err,
		)
	}
	if err := s.emit(ctx, audit.Event{
		Action:       audit.ActionCredentialRevoked,
		CredentialID: credentialID,
		Issuer:       attester,
		Outcome:      "revoked",
	}); err != nil {
		return failErr(span, dErrors.Wrap(err, dErrors.CodeInternal, "record revocation audit"))
	}
	s.metrics.IncRevoked()
	s.logger.InfoContext(ctx, "credential revoked",
		"request_id", requestcontext.RequestID(ctx),
		"credential_id", credentialID,
	)
	return nil
}

// Get returns an issued credential with every claim revealed.
func (s *Service) Get(ctx context.Context, credentialID string) (models.IssuedCredential, error) {
	issued, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.IssuedCredential{}, dErrors.Newf(dErrors.CodeNotFound, "credential %s not found", credentialID)
		}
		return models.IssuedCredential{}, dErrors.Wrap(err, dErrors.CodeInternal, "load credential")
	}
	return issued, nil
}

// List returns the credentials issued by issuer, newest first.
func (s *Service) List(ctx context.Context, issuer string) ([]models.IssuedCredential, error) {
	if issuer == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "issuer is required")
	}
	issued, err := s.store.ListByIssuer(ctx, issuer)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list credentials")
	}
	return issued, nil
}

// Disclose hides every claim not named in reveal. It runs locally; the
// ledger is not consulted.
func (s *Service) Disclose(ctx context.Context, cred models.Credential, reveal []string) (models.Credential, error) {
	proof, err := models.ParseProof(cred.Proof)
	if err != nil {
		return models.Credential{}, err
	}
	out, _, err := disclosure.Disclose(cred, proof, reveal)
	if err != nil {
		return models.Credential{}, err
	}
	s.metrics.IncDisclosures()
	_ = s.emit(ctx, audit.Event{
		Action:       audit.ActionCredentialDisclosed,
		CredentialID: cred.ID,
		Issuer:       cred.Issuer,
		Outcome:      strings.Join(out.ClaimKeys(), ","),
	})
	return out, nil
}

// Verify checks a presented credential. Revocation is reported in the
// result unless the configured options demand otherwise.
func (s *Service) Verify(ctx context.Context, cred models.Credential) (models.AttestationResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "credential.Verify", trace.WithAttributes(attribute.String("credential.id", cred.ID)))
	defer span.End()

	result, err := s.verify(ctx, cred)
	s.metrics.ObserveVerifyLatency(time.Since(start))
	s.recordVerification(ctx, cred, result, err)
	if err != nil {
		return fail(span, models.AttestationResult{}, err)
	}
	span.SetAttributes(attribute.Bool("credential.revoked", result.Revoked))
	return result, nil
}

func (s *Service) verify(ctx context.Context, cred models.Credential) (models.AttestationResult, error) {
	presented, err := verifier.FromCredential(cred)
	if err != nil {
		return models.AttestationResult{}, err
	}
	return s.verifier.Verify(ctx, presented.Credential, presented.Proof, s.verifyOpts)
}

// VerifyPresentation verifies a set of credentials presented together. The
// presentation holds only if every credential does.
func (s *Service) VerifyPresentation(ctx context.Context, creds []models.Credential) ([]models.AttestationResult, error) {
	ctx, span := s.tracer.Start(ctx, "credential.VerifyPresentation", trace.WithAttributes(attribute.Int("presentation.size", len(creds))))
	defer span.End()

	items := make([]verifier.Presented, 0, len(creds))
	for i, cred := range creds {
		p, err := verifier.FromCredential(cred)
		if err != nil {
			return fail(span, []models.AttestationResult(nil), dErrors.Wrap(err, dErrors.CodeOf(err), "credential "+strconv.Itoa(i)))
		}
		items = append(items, p)
	}
	results, err := s.verifier.VerifyPresentation(ctx, items, s.verifyOpts)
	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	s.metrics.IncVerification(outcome)
	action := audit.ActionPresentationVerified
	if err != nil {
		action = audit.ActionCredentialVerificationFailed
	}
	_ = s.emit(ctx, audit.Event{Action: action, Outcome: outcome, Reason: errorReason(err)})
	if err != nil {
		return fail(span, []models.AttestationResult(nil), err)
	}
	return results, nil
}

func (s *Service) recordVerification(ctx context.Context, cred models.Credential, result models.AttestationResult, err error) {
	event := audit.Event{
		CredentialID: cred.ID,
		Issuer:       cred.Issuer,
	}
	if err != nil {
		code := string(dErrors.CodeOf(err))
		s.metrics.IncVerification(code)
		event.Action = audit.ActionCredentialVerificationFailed
		event.Outcome = code
		event.Reason = errorReason(err)
		s.logger.InfoContext(ctx, "credential verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"credential_id", cred.ID,
			"code", code,
		)
	} else {
		s.metrics.IncVerification("ok")
		event.Action = audit.ActionCredentialVerified
		event.Outcome = "valid"
		if result.Revoked {
			event.Outcome = "revoked"
		}
	}
	_ = s.emit(ctx, event)
}

func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.Emit(ctx, event)
}

// fail records err on the span and returns it with the zero value.
func fail[T any](span trace.Span, zero T, err error) (T, error) {
	return zero, failErr(span, err)
}

func failErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}

// errorReason keeps the audit reason free of internal detail.
func errorReason(err error) string {
	if err == nil || dErrors.CodeOf(err) == dErrors.CodeInternal {
		return ""
	}
	return err.Error()
}

func translateSubmit(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "an attestation for this credential already exists")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeTrustChain, "delegation node is not on the ledger")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger submission timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger submission failed")
	}
}

func translateRevoke(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "no attestation for this credential")
	case errors.Is(err, sentinel.ErrForbidden):
		return dErrors.Wrap(err, dErrors.CodeForbidden, "only the attester may revoke")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeConflict, "credential is already revoked")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger revocation timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger revocation failed")
	}
}
