package models

import "time"

// SubmissionPayload is what the ledger-submission collaborator must carry in
// the attestation transaction.
type SubmissionPayload struct {
	RootDigest    Digest     `json:"rootDigest"`
	SchemaHash    Digest     `json:"schemaHash"`
	DelegationID  string     `json:"delegationId,omitempty"`
	Legitimations []Digest   `json:"legitimations,omitempty"`
	Scheme        HashScheme `json:"hashAlgorithm,omitempty"`
}

// InclusionInfo is returned by the ledger writer once a transaction landed.
type InclusionInfo struct {
	Block     BlockRef  `json:"block"`
	Timestamp time.Time `json:"timestamp"`
	GenesisID string    `json:"genesisId"`
}

// Anchor converts inclusion data into the proof anchor.
func (i InclusionInfo) Anchor() LedgerAnchor {
	return LedgerAnchor{Block: i.Block, Timestamp: i.Timestamp, GenesisID: i.GenesisID}
}

// LedgerAttestationRecord is the current on-ledger state for a root digest.
type LedgerAttestationRecord struct {
	RootDigest   Digest `json:"rootDigest"`
	Issuer       string `json:"issuer"`
	SchemaHash   Digest `json:"schemaHash"`
	Revoked      bool   `json:"revoked"`
	DelegationID string `json:"delegationId,omitempty"`
}

// DelegationNode is one link of a delegation hierarchy.
type DelegationNode struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId,omitempty"`
	Owner    string `json:"owner"`
	Revoked  bool   `json:"revoked"`
}

// IsRoot reports whether the node has no parent.
func (n DelegationNode) IsRoot() bool {
	return n.ParentID == ""
}

// EventKind names a ledger event emitted by the attestation pallet.
type EventKind string

const (
	EventAttestationCreated EventKind = "AttestationCreated"
	EventAttestationRevoked EventKind = "AttestationRevoked"
	EventAttestationRemoved EventKind = "AttestationRemoved"
)

// LedgerEvent is an event emitted by a ledger transaction.
type LedgerEvent struct {
	Kind         EventKind `json:"kind"`
	RootDigest   Digest    `json:"rootDigest"`
	Attester     string    `json:"attester"`
	SchemaHash   Digest    `json:"schemaHash"`
	DelegationID string    `json:"delegationId,omitempty"`
}

// Transaction is a ledger transaction together with the events it emitted.
type Transaction struct {
	Block  BlockRef          `json:"block"`
	Signer string            `json:"signer"`
	Args   SubmissionPayload `json:"args"`
	Events []LedgerEvent     `json:"events"`
}

// FindEvent returns the first event of kind for root.
func (t Transaction) FindEvent(kind EventKind, root Digest) (LedgerEvent, bool) {
	for _, ev := range t.Events {
		if ev.Kind == kind && ev.RootDigest == root {
			return ev, true
		}
	}
	return LedgerEvent{}, false
}

// AttestationResult is the outcome of a successful verification. Revocation
// is reported, not enforced.
type AttestationResult struct {
	CredentialID string       `json:"credentialId"`
	RootDigest   Digest       `json:"rootDigest"`
	Issuer       string       `json:"issuer"`
	Revoked      bool         `json:"revoked"`
	SchemaHash   Digest       `json:"schemaHash"`
	DelegationID string       `json:"delegationId,omitempty"`
	Anchor       LedgerAnchor `json:"anchor"`
}
