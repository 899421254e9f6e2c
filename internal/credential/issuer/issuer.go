// Package issuer builds stub proofs before ledger submission and finalizes
// them once the ledger confirmed the attestation.
//
// The lifecycle is Built -> Submitted -> Finalized. Initialize is local and
// pure; submission belongs to the caller; Finalize reads the ledger to
// confirm the attestation event and is the only way to obtain a
// FinalizedProof from a StubProof.
package issuer

import (
	"context"
	"errors"
	"maps"
	"slices"

	"anchorcred/internal/credential/digest"
	"anchorcred/internal/credential/models"
	"anchorcred/internal/credential/ports"
	dErrors "anchorcred/pkg/domain-errors"
	"anchorcred/pkg/platform/sentinel"
	pstrings "anchorcred/pkg/platform/strings"
)

// Request describes a credential to issue.
type Request struct {
	Claim         models.Claim
	SchemaRef     string
	Issuer        string
	Types         []string
	Delegation    *models.DelegationRef
	Legitimations []string
}

// Initialized is the outcome of Initialize: the unsigned credential (id
// already derived from the root digest), its stub proof and the payload the
// ledger transaction must carry.
type Initialized struct {
	Credential models.Credential
	Stub       models.StubProof
	Payload    models.SubmissionPayload
}

// Issuer runs the issuance state machine.
type Issuer struct {
	builder *digest.Builder
	ledger  ports.LedgerReader
}

// New constructs an Issuer. The ledger reader is used by Finalize only.
func New(builder *digest.Builder, ledger ports.LedgerReader) (*Issuer, error) {
	if builder == nil {
		return nil, errors.New("digest builder is required")
	}
	if ledger == nil {
		return nil, errors.New("ledger reader is required")
	}
	return &Issuer{builder: builder, ledger: ledger}, nil
}

// Initialize salts and digests the claim, commits the root and returns a stub
// proof. It performs no I/O and is safe for concurrent use.
func (i *Issuer) Initialize(req Request) (Initialized, error) {
	if req.SchemaRef == "" {
		return Initialized{}, models.MalformedClaimError("schema reference is required")
	}
	if req.Issuer == "" {
		return Initialized{}, models.MalformedClaimError("issuer is required")
	}
	if req.Delegation != nil && req.Delegation.ID == "" {
		return Initialized{}, models.MalformedClaimError("delegation id is required when a delegation is declared")
	}

	scheme := i.builder.Scheme()
	legitimations := make([]models.Digest, 0, len(req.Legitimations))
	for _, leg := range req.Legitimations {
		root, err := models.RootDigestFromID(leg)
		if err != nil {
			return Initialized{}, models.MalformedClaimError("legitimation %q: %v", leg, err)
		}
		legitimations = append(legitimations, root)
	}

	cred := unsignedCredential(req)
	statements, err := i.builder.Build(req.Claim, digest.StructuralStatements(cred))
	if err != nil {
		return Initialized{}, err
	}
	root, err := digest.CommitStatements(scheme, statements)
	if err != nil {
		return Initialized{}, dErrors.Wrap(err, dErrors.CodeInternal, "commit root digest")
	}
	schemaHash, err := digest.SchemaHash(scheme, req.SchemaRef)
	if err != nil {
		return Initialized{}, err
	}

	salts := make(map[models.Path]models.Salt, len(statements))
	for _, st := range statements {
		salts[st.Path] = st.Salt
	}
	cred.ID = models.CredentialIDFromRoot(root)

	return Initialized{
		Credential: cred,
		Stub: models.StubProof{
			Scheme:     scheme,
			RootDigest: root,
			Salts:      salts,
		},
		Payload: models.SubmissionPayload{
			RootDigest:    root,
			SchemaHash:    schemaHash,
			DelegationID:  cred.DelegationID(),
			Legitimations: legitimations,
			Scheme:        scheme,
		},
	}, nil
}

// Finalize stamps the ledger anchor into the stub once the transaction at
// info.Block is confirmed to have emitted AttestationCreated for the root.
// It is a pure function of its inputs and the ledger state, so repeating it
// with the same inclusion info yields the same proof.
func (i *Issuer) Finalize(ctx context.Context, cred models.Credential, stub models.StubProof, info models.InclusionInfo) (models.Credential, models.FinalizedProof, error) {
	if info.Block.IsZero() {
		return models.Credential{}, models.FinalizedProof{}, models.IssuanceNotConfirmedError("inclusion info has no block reference")
	}
	if err := checkStub(cred, stub); err != nil {
		return models.Credential{}, models.FinalizedProof{}, err
	}

	tx, err := i.ledger.GetTransactionAtBlock(ctx, info.Block)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Credential{}, models.FinalizedProof{}, models.IssuanceNotConfirmedError("no transaction at block %s#%d", info.Block.Hash, info.Block.TxIndex)
		}
		return models.Credential{}, models.FinalizedProof{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "read issuance transaction")
	}
	event, ok := tx.FindEvent(models.EventAttestationCreated, stub.RootDigest)
	if !ok {
		return models.Credential{}, models.FinalizedProof{}, models.IssuanceNotConfirmedError("transaction emitted no attestation for %s", stub.RootDigest)
	}
	schemaHash, err := digest.SchemaHash(stub.Scheme, cred.SchemaRef)
	if err != nil {
		return models.Credential{}, models.FinalizedProof{}, err
	}
	if event.SchemaHash != schemaHash {
		return models.Credential{}, models.FinalizedProof{}, models.IssuanceNotConfirmedError("attestation event schema hash %s does not match %s", event.SchemaHash, schemaHash)
	}
	if event.Attester != cred.Issuer {
		return models.Credential{}, models.FinalizedProof{}, models.IssuanceNotConfirmedError("attestation was created by %s, not %s", event.Attester, cred.Issuer)
	}

	proof := models.NewFinalizedProof(stub, info.Anchor())
	out := cred.Clone()
	doc := proof.Document()
	out.Proof = &doc
	return out, proof, nil
}

// checkStub confirms the stub belongs to the credential by recomputing the
// root from the credential's statements and the stub's salts.
func checkStub(cred models.Credential, stub models.StubProof) error {
	if cred.Proof != nil && cred.Proof.Block != nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "credential is already anchored")
	}
	if cred.ID != models.CredentialIDFromRoot(stub.RootDigest) {
		return models.DigestMismatchError("credential id does not match stub root digest")
	}
	statements := digest.RevealedStatements(cred)
	if len(statements) != len(stub.Salts) {
		return models.DigestMismatchError("stub has %d salts for %d statements", len(stub.Salts), len(statements))
	}
	digests := make([]models.Digest, 0, len(statements))
	for _, st := range statements {
		salt, ok := stub.Salts[st.Path]
		if !ok {
			return models.DigestMismatchError("stub has no salt for %s", st.Path)
		}
		d, err := digest.Of(stub.Scheme, st.Path, salt, st.Value)
		if err != nil {
			return err
		}
		digests = append(digests, d)
	}
	root, err := digest.Commit(stub.Scheme, digests)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit root digest")
	}
	if root != stub.RootDigest {
		return models.DigestMismatchError("credential statements do not commit to the stub root")
	}
	return nil
}

func unsignedCredential(req Request) models.Credential {
	subject := maps.Clone(req.Claim.Properties)
	if subject == nil {
		subject = make(map[string]any, 1)
	}
	subject[models.SubjectIDKey] = req.Claim.SubjectID

	types := pstrings.DedupeAndTrim(append([]string{models.DefaultCredentialType}, req.Types...))

	var delegation *models.DelegationRef
	if req.Delegation != nil {
		d := *req.Delegation
		d.Delegators = slices.Clone(req.Delegation.Delegators)
		delegation = &d
	}
	return models.Credential{
		Type:              types,
		Issuer:            req.Issuer,
		CredentialSubject: subject,
		SchemaRef:         req.SchemaRef,
		Delegation:        delegation,
		Legitimations:     slices.Clone(req.Legitimations),
	}
}
