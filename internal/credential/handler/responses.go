package handler

import (
	"time"

	"anchorcred/internal/credential/models"
)

// RevokeResponse is returned by POST /credentials/{id}/revoke.
type RevokeResponse struct {
	ID      string `json:"id"`
	Revoked bool   `json:"revoked"`
}

// IssuedResponse is returned by GET /credentials/{id}.
type IssuedResponse struct {
	Credential models.Credential `json:"credential"`
	IssuedAt   time.Time         `json:"issuedAt"`
	Revoked    bool              `json:"revoked"`
	RevokedAt  *time.Time        `json:"revokedAt,omitempty"`
}

func FromIssued(issued models.IssuedCredential) IssuedResponse {
	return IssuedResponse{
		Credential: issued.Credential,
		IssuedAt:   issued.IssuedAt,
		Revoked:    issued.Revoked(),
		RevokedAt:  issued.RevokedAt,
	}
}

// ListResponse is returned by GET /credentials.
type ListResponse struct {
	Credentials []IssuedResponse `json:"credentials"`
}

// VerificationResponse reports a successful verification. Revocation is
// reported, not treated as failure.
type VerificationResponse struct {
	Valid        bool            `json:"valid"`
	CredentialID string          `json:"credentialId"`
	RootDigest   models.Digest   `json:"rootDigest"`
	Issuer       string          `json:"issuer"`
	Revoked      bool            `json:"revoked"`
	SchemaHash   models.Digest   `json:"schemaHash"`
	DelegationID string          `json:"delegationId,omitempty"`
	Block        models.BlockRef `json:"block"`
	Timestamp    time.Time       `json:"timestamp"`
	GenesisID    string          `json:"genesisId,omitempty"`
}

func FromResult(result models.AttestationResult) VerificationResponse {
	return VerificationResponse{
		Valid:        true,
		CredentialID: result.CredentialID,
		RootDigest:   result.RootDigest,
		Issuer:       result.Issuer,
		Revoked:      result.Revoked,
		SchemaHash:   result.SchemaHash,
		DelegationID: result.DelegationID,
		Block:        result.Anchor.Block,
		Timestamp:    result.Anchor.Timestamp,
		GenesisID:    result.Anchor.GenesisID,
	}
}

// PresentationResponse is returned by POST /presentations/verify.
type PresentationResponse struct {
	Valid   bool                   `json:"valid"`
	Results []VerificationResponse `json:"results"`
}
