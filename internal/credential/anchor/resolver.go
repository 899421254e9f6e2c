// Package anchor resolves a root digest against the ledger: the issuance
// transaction, the current attestation record and, when declared, the
// delegation chain that authorized the issuer.
package anchor

import (
	"context"
	"errors"
	"log/slog"

	"anchorcred/internal/credential/models"
	"anchorcred/internal/credential/ports"
	dErrors "anchorcred/pkg/domain-errors"
	"anchorcred/pkg/platform/sentinel"
)

// DefaultMaxDelegationDepth bounds delegation walks on malformed ledger state.
const DefaultMaxDelegationDepth = 32

// Expectation is what the credential claims about its ledger anchor.
type Expectation struct {
	Issuer        string
	SchemaHash    models.Digest
	Delegation    *models.DelegationRef
	Legitimations []models.Digest
}

// Policy tunes trust-chain checks for one resolution.
type Policy struct {
	MaxDelegationDepth int
	CheckLegitimations bool
}

// Resolver reads ledger state through a LedgerReader.
type Resolver struct {
	ledger ports.LedgerReader
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets a logger for trust-chain diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New constructs a Resolver.
func New(ledger ports.LedgerReader, opts ...Option) (*Resolver, error) {
	if ledger == nil {
		return nil, errors.New("ledger reader is required")
	}
	r := &Resolver{ledger: ledger}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve checks the anchor of root and returns the attested issuer and the
// current revocation flag. Revocation is reported, not treated as failure.
func (r *Resolver) Resolve(ctx context.Context, root models.Digest, anchor models.LedgerAnchor, expect Expectation, policy Policy) (models.AttestationResult, error) {
	if err := r.checkIssuanceTransaction(ctx, root, anchor.Block, expect); err != nil {
		return models.AttestationResult{}, err
	}

	record, err := r.ledger.GetAttestationRecord(ctx, root)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.AttestationResult{}, models.RecordNotFoundError(root)
		}
		return models.AttestationResult{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "read attestation record")
	}
	if record.SchemaHash != expect.SchemaHash {
		return models.AttestationResult{}, models.AnchorMismatchError("attestation schema hash %s does not match credential schema hash %s", record.SchemaHash, expect.SchemaHash)
	}
	if record.Issuer != expect.Issuer {
		return models.AttestationResult{}, models.AnchorMismatchError("attestation issuer %s does not match credential issuer %s", record.Issuer, expect.Issuer)
	}
	declared := ""
	if expect.Delegation != nil {
		declared = expect.Delegation.ID
	}
	if record.DelegationID != declared {
		return models.AttestationResult{}, models.AnchorMismatchError("attestation delegation %q does not match credential delegation %q", record.DelegationID, declared)
	}

	if expect.Delegation != nil {
		if err := r.walkDelegation(ctx, *expect.Delegation, expect.Issuer, policy.maxDepth()); err != nil {
			return models.AttestationResult{}, err
		}
	}
	if policy.CheckLegitimations {
		if err := r.checkLegitimations(ctx, expect.Legitimations); err != nil {
			return models.AttestationResult{}, err
		}
	}

	return models.AttestationResult{
		RootDigest:   root,
		Issuer:       record.Issuer,
		Revoked:      record.Revoked,
		SchemaHash:   record.SchemaHash,
		DelegationID: record.DelegationID,
		Anchor:       anchor,
	}, nil
}

func (r *Resolver) checkIssuanceTransaction(ctx context.Context, root models.Digest, block models.BlockRef, expect Expectation) error {
	if block.IsZero() {
		return models.IssuanceNotConfirmedError("proof has no block reference")
	}
	tx, err := r.ledger.GetTransactionAtBlock(ctx, block)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.IssuanceNotConfirmedError("no transaction at block %s#%d", block.Hash, block.TxIndex)
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "read issuance transaction")
	}
	event, ok := tx.FindEvent(models.EventAttestationCreated, root)
	if !ok {
		return models.IssuanceNotConfirmedError("transaction at block %s#%d created no attestation for %s", block.Hash, block.TxIndex, root)
	}
	if event.SchemaHash != expect.SchemaHash {
		return models.AnchorMismatchError("issuance event schema hash %s does not match credential schema hash %s", event.SchemaHash, expect.SchemaHash)
	}
	return nil
}

// walkDelegation follows parent links from the declared node with an
// explicit loop. The leaf must be owned by the issuer; the walk stops at a
// parentless node or at the declared root. Cycles, missing or revoked nodes
// and depth overflow break the chain.
func (r *Resolver) walkDelegation(ctx context.Context, ref models.DelegationRef, issuer string, maxDepth int) error {
	visited := make(map[string]struct{}, maxDepth)
	owners := make(map[string]struct{}, maxDepth)
	path := make([]models.DelegationNode, 0, 4)

	id := ref.ID
	for {
		if len(path) >= maxDepth {
			return models.TrustChainError("delegation chain from %s exceeds %d nodes", ref.ID, maxDepth)
		}
		if _, seen := visited[id]; seen {
			return models.TrustChainError("delegation chain from %s has a cycle at %s", ref.ID, id)
		}
		visited[id] = struct{}{}

		node, err := r.ledger.GetDelegationNode(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return models.TrustChainError("delegation node %s not found", id)
			}
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "read delegation node")
		}
		if node.Revoked {
			return models.TrustChainError("delegation node %s is revoked", id)
		}
		if len(path) == 0 && node.Owner != issuer {
			return models.TrustChainError("issuer %s does not own delegation node %s", issuer, id)
		}
		path = append(path, *node)
		owners[node.Owner] = struct{}{}

		if node.IsRoot() || (ref.RootID != "" && node.ID == ref.RootID) {
			break
		}
		id = node.ParentID
	}

	top := path[len(path)-1]
	if ref.RootID != "" && top.ID != ref.RootID {
		return models.TrustChainError("delegation chain ends at %s, not at declared root %s", top.ID, ref.RootID)
	}
	for _, delegator := range ref.Delegators {
		if _, ok := owners[delegator]; !ok {
			return models.TrustChainError("declared delegator %s is not on the delegation path", delegator)
		}
	}
	if r.logger != nil {
		r.logger.DebugContext(ctx, "delegation chain resolved",
			"delegation_id", ref.ID,
			"root_id", top.ID,
			"depth", len(path),
		)
	}
	return nil
}

func (r *Resolver) checkLegitimations(ctx context.Context, roots []models.Digest) error {
	for _, root := range roots {
		record, err := r.ledger.GetAttestationRecord(ctx, root)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return models.TrustChainError("legitimation %s is not attested", root)
			}
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "read legitimation record")
		}
		if record.Revoked {
			return models.TrustChainError("legitimation %s is revoked", root)
		}
	}
	return nil
}

func (p Policy) maxDepth() int {
	if p.MaxDelegationDepth <= 0 {
		return DefaultMaxDelegationDepth
	}
	return p.MaxDelegationDepth
}
