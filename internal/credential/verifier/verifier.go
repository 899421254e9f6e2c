// Package verifier checks revealed credentials: it rebuilds the root digest
// from revealed statements and hidden digests, compares it with the
// credential id, enforces mandatory statements and resolves the ledger
// anchor.
package verifier

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"anchorcred/internal/credential/anchor"
	"anchorcred/internal/credential/digest"
	"anchorcred/internal/credential/models"
	dErrors "anchorcred/pkg/domain-errors"
)

// Options tune a verification. Zero values select the defaults.
type Options struct {
	// MaxDelegationDepth bounds the delegation walk.
	MaxDelegationDepth int
	// CheckLegitimations requires every legitimation to be attested and not revoked.
	CheckLegitimations bool
	// RequireNotRevoked turns a revoked attestation into an error.
	RequireNotRevoked bool
}

// Verifier is safe for concurrent use; it holds no mutable state.
type Verifier struct {
	resolver *anchor.Resolver
}

// New constructs a Verifier.
func New(resolver *anchor.Resolver) (*Verifier, error) {
	if resolver == nil {
		return nil, errors.New("anchor resolver is required")
	}
	return &Verifier{resolver: resolver}, nil
}

// Verify checks one credential against its proof. Inputs are never mutated.
func (v *Verifier) Verify(ctx context.Context, cred models.Credential, proof models.FinalizedProof, opts Options) (models.AttestationResult, error) {
	root, err := RecomputeRoot(cred, proof)
	if err != nil {
		return models.AttestationResult{}, err
	}

	schemaHash, err := digest.SchemaHash(proof.Scheme, cred.SchemaRef)
	if err != nil {
		return models.AttestationResult{}, err
	}
	legitimations := make([]models.Digest, 0, len(cred.Legitimations))
	for _, leg := range cred.Legitimations {
		legRoot, err := models.RootDigestFromID(leg)
		if err != nil {
			return models.AttestationResult{}, models.MalformedClaimError("legitimation %q: %v", leg, err)
		}
		legitimations = append(legitimations, legRoot)
	}

	result, err := v.resolver.Resolve(ctx, root, proof.Anchor, anchor.Expectation{
		Issuer:        cred.Issuer,
		SchemaHash:    schemaHash,
		Delegation:    cred.Delegation,
		Legitimations: legitimations,
	}, anchor.Policy{
		MaxDelegationDepth: opts.MaxDelegationDepth,
		CheckLegitimations: opts.CheckLegitimations,
	})
	if err != nil {
		return models.AttestationResult{}, err
	}
	result.CredentialID = cred.ID

	if opts.RequireNotRevoked && result.Revoked {
		return result, dErrors.Newf(dErrors.CodeCredentialRevoked, "credential %s is revoked", cred.ID)
	}
	return result, nil
}

// RecomputeRoot rebuilds the root digest from the revealed statements and the
// hidden digests, checks it against the credential id and confirms every
// mandatory statement is revealed. It performs no I/O.
func RecomputeRoot(cred models.Credential, proof models.FinalizedProof) (models.Digest, error) {
	var root models.Digest
	if !proof.Scheme.Valid() {
		return root, models.DigestMismatchError("proof uses an unsupported hash scheme")
	}

	statements := digest.RevealedStatements(cred)
	revealed := make(map[models.Path]struct{}, len(statements))
	digests := make([]models.Digest, 0, len(statements)+len(proof.HiddenDigests))
	for _, st := range statements {
		salt, ok := proof.Salts[st.Path]
		if !ok {
			return root, models.DigestMismatchError("revealed statement %s has no salt", st.Path)
		}
		d, err := digest.Of(proof.Scheme, st.Path, salt, st.Value)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeMalformedClaim) {
				// An issuer never commits a value it cannot encode.
				return root, models.DigestMismatchError("revealed statement %s cannot be digested: %v", st.Path, err)
			}
			return root, err
		}
		revealed[st.Path] = struct{}{}
		digests = append(digests, d)
	}
	for path := range proof.Salts {
		if _, ok := revealed[path]; !ok {
			return root, models.DigestMismatchError("proof carries a salt for unrevealed statement %s", path)
		}
	}
	digests = append(digests, proof.HiddenDigests...)

	root, err := digest.Commit(proof.Scheme, digests)
	if err != nil {
		return root, dErrors.Wrap(err, dErrors.CodeInternal, "commit root digest")
	}
	if models.CredentialIDFromRoot(root) != cred.ID {
		return root, models.DigestMismatchError("recomputed root digest does not match credential id %s", cred.ID)
	}

	for _, path := range models.MandatoryPaths {
		if _, ok := revealed[path]; !ok {
			return root, models.MandatoryFieldMissingError(path)
		}
	}
	return root, nil
}

// Presented pairs a credential with its parsed proof.
type Presented struct {
	Credential models.Credential
	Proof      models.FinalizedProof
}

// FromCredential extracts the proof embedded in a credential document.
func FromCredential(cred models.Credential) (Presented, error) {
	proof, err := models.ParseProof(cred.Proof)
	if err != nil {
		return Presented{}, err
	}
	return Presented{Credential: cred, Proof: proof}, nil
}

// VerifyPresentation verifies every credential of a presentation in
// parallel. The presentation is valid only if every credential is; the first
// failure is returned with the index of the offending credential.
func (v *Verifier) VerifyPresentation(ctx context.Context, items []Presented, opts Options) ([]models.AttestationResult, error) {
	if len(items) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "presentation contains no credentials")
	}
	results := make([]models.AttestationResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			result, err := v.Verify(gctx, item.Credential, item.Proof, opts)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeOf(err), fmt.Sprintf("credential %d (%s)", i, item.Credential.ID))
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
