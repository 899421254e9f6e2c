package handler

import (
	"strings"

	"anchorcred/internal/credential/issuer"
	"anchorcred/internal/credential/models"
	dErrors "anchorcred/pkg/domain-errors"
	pstrings "anchorcred/pkg/platform/strings"
)

const (
	maxClaims                = 256
	maxLegitimations         = 64
	maxPresentationSize      = 32
	maxIdentifierLength      = 512
	maxCredentialTypes       = 16
	maxDeclaredDelegatorsLen = 32
)

// IssueRequest is the HTTP request body for POST /credentials.
type IssueRequest struct {
	SubjectID     string                `json:"subjectId"`
	Claims        map[string]any        `json:"claims"`
	SchemaRef     string                `json:"schemaRef"`
	Types         []string              `json:"types,omitempty"`
	Delegation    *models.DelegationRef `json:"delegation,omitempty"`
	Legitimations []string              `json:"legitimations,omitempty"`
}

func (r *IssueRequest) Normalize() {
	if r == nil {
		return
	}
	r.SubjectID = strings.TrimSpace(r.SubjectID)
	r.SchemaRef = strings.TrimSpace(r.SchemaRef)
	r.Types = pstrings.DedupeAndTrim(r.Types)
	r.Legitimations = pstrings.DedupeAndTrim(r.Legitimations)
	if r.Delegation != nil {
		r.Delegation.ID = strings.TrimSpace(r.Delegation.ID)
		r.Delegation.RootID = strings.TrimSpace(r.Delegation.RootID)
		r.Delegation.Delegators = pstrings.SortedSet(r.Delegation.Delegators)
	}
}

// Validate implements httputil.Validatable.
func (r *IssueRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	// Size validation (fail fast)
	if len(r.Claims) > maxClaims {
		return dErrors.Newf(dErrors.CodeValidation, "at most %d claims are allowed", maxClaims)
	}
	if len(r.Legitimations) > maxLegitimations {
		return dErrors.Newf(dErrors.CodeValidation, "at most %d legitimations are allowed", maxLegitimations)
	}
	if len(r.Types) > maxCredentialTypes {
		return dErrors.Newf(dErrors.CodeValidation, "at most %d types are allowed", maxCredentialTypes)
	}
	if len(r.SubjectID) > maxIdentifierLength || len(r.SchemaRef) > maxIdentifierLength {
		return dErrors.New(dErrors.CodeValidation, "identifier is too long")
	}

	// Required fields
	if r.SubjectID == "" {
		return dErrors.New(dErrors.CodeValidation, "subjectId is required")
	}
	if r.SchemaRef == "" {
		return dErrors.New(dErrors.CodeValidation, "schemaRef is required")
	}
	if _, reserved := r.Claims[models.SubjectIDKey]; reserved {
		return dErrors.New(dErrors.CodeValidation, "claims must not contain \"id\"; use subjectId")
	}
	if r.Delegation != nil {
		if r.Delegation.ID == "" {
			return dErrors.New(dErrors.CodeValidation, "delegation.id is required")
		}
		if len(r.Delegation.Delegators) > maxDeclaredDelegatorsLen {
			return dErrors.Newf(dErrors.CodeValidation, "at most %d delegators are allowed", maxDeclaredDelegatorsLen)
		}
	}
	for _, leg := range r.Legitimations {
		if _, err := models.RootDigestFromID(leg); err != nil {
			return dErrors.Newf(dErrors.CodeValidation, "legitimation %q is not a credential id", leg)
		}
	}
	return nil
}

// ToIssuerRequest builds the domain request for the authenticated issuer.
func (r *IssueRequest) ToIssuerRequest(issuerID string) issuer.Request {
	return issuer.Request{
		Claim: models.Claim{
			SubjectID:  r.SubjectID,
			Properties: r.Claims,
		},
		SchemaRef:     r.SchemaRef,
		Issuer:        issuerID,
		Types:         r.Types,
		Delegation:    r.Delegation,
		Legitimations: r.Legitimations,
	}
}

// DiscloseRequest is the HTTP request body for POST /credentials/disclose.
type DiscloseRequest struct {
	Credential models.Credential `json:"credential"`
	Reveal     []string          `json:"reveal"`
}

func (r *DiscloseRequest) Normalize() {
	if r == nil {
		return
	}
	r.Reveal = pstrings.DedupeAndTrim(r.Reveal)
}

// Validate implements httputil.Validatable.
func (r *DiscloseRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Reveal) > maxClaims {
		return dErrors.Newf(dErrors.CodeValidation, "at most %d claims can be revealed", maxClaims)
	}
	return validateCredential(r.Credential)
}

// VerifyRequest is the HTTP request body for POST /credentials/verify.
type VerifyRequest struct {
	Credential models.Credential `json:"credential"`
}

// Validate implements httputil.Validatable.
func (r *VerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return validateCredential(r.Credential)
}

// PresentationRequest is the HTTP request body for POST /presentations/verify.
type PresentationRequest struct {
	Credentials []models.Credential `json:"credentials"`
}

// Validate implements httputil.Validatable.
func (r *PresentationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Credentials) == 0 {
		return dErrors.New(dErrors.CodeValidation, "credentials are required")
	}
	if len(r.Credentials) > maxPresentationSize {
		return dErrors.Newf(dErrors.CodeValidation, "at most %d credentials per presentation", maxPresentationSize)
	}
	for _, cred := range r.Credentials {
		if err := validateCredential(cred); err != nil {
			return err
		}
	}
	return nil
}

func validateCredential(cred models.Credential) error {
	if strings.TrimSpace(cred.ID) == "" {
		return dErrors.New(dErrors.CodeValidation, "credential.id is required")
	}
	if cred.Proof == nil {
		return dErrors.New(dErrors.CodeValidation, "credential.proof is required")
	}
	return nil
}
