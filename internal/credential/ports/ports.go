// Package ports defines the collaborators the credential core consumes.
// Implementations live in internal/ledger and internal/schema.
package ports

import (
	"context"

	"anchorcred/internal/credential/models"
	"anchorcred/pkg/platform/audit"
)

// LedgerReader reads ledger state. Absent entities are reported with
// sentinel.ErrNotFound (optionally wrapped).
type LedgerReader interface {
	// GetAttestationRecord returns the current record for a root digest.
	GetAttestationRecord(ctx context.Context, root models.Digest) (*models.LedgerAttestationRecord, error)

	// GetDelegationNode returns a node of a delegation hierarchy.
	GetDelegationNode(ctx context.Context, id string) (*models.DelegationNode, error)

	// GetTransactionAtBlock returns the transaction and its events at ref.
	GetTransactionAtBlock(ctx context.Context, ref models.BlockRef) (*models.Transaction, error)
}

// LedgerWriter submits attestation transactions and blocks until inclusion.
type LedgerWriter interface {
	// Submit creates an attestation for the payload signed by attester.
	Submit(ctx context.Context, attester string, payload models.SubmissionPayload) (models.InclusionInfo, error)

	// Revoke flags the attestation for root as revoked.
	Revoke(ctx context.Context, attester string, root models.Digest) (models.InclusionInfo, error)
}

// SchemaLoader resolves a schema id to its definition.
type SchemaLoader interface {
	Load(ctx context.Context, schemaID string) (*models.Schema, error)
}

// AuditPublisher emits audit events for credential lifecycle operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
