package verifier

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"testing"

	"github.com/stretchr/testify/suite"

	"anchorcred/internal/credential/anchor"
	"anchorcred/internal/credential/digest"
	"anchorcred/internal/credential/disclosure"
	"anchorcred/internal/credential/issuer"
	"anchorcred/internal/credential/models"
	"anchorcred/internal/ledger/memory"
	dErrors "anchorcred/pkg/domain-errors"
)

const issuerDID = "did:example:issuer"

type VerifierSuite struct {
	suite.Suite
	ctx      context.Context
	ledger   *memory.Ledger
	issuer   *issuer.Issuer
	verifier *Verifier
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.ctx = context.Background()
	s.ledger = memory.New(memory.WithGenesisID("testnet"))
	builder, err := digest.NewBuilder()
	s.Require().NoError(err)
	s.issuer, err = issuer.New(builder, s.ledger)
	s.Require().NoError(err)
	resolver, err := anchor.New(s.ledger)
	s.Require().NoError(err)
	s.verifier, err = New(resolver)
	s.Require().NoError(err)
}

// issue runs the full Built -> Submitted -> Finalized lifecycle.
func (s *VerifierSuite) issue(req issuer.Request) (models.Credential, models.FinalizedProof) {
	built, err := s.issuer.Initialize(req)
	s.Require().NoError(err)
	info, err := s.ledger.Submit(s.ctx, req.Issuer, built.Payload)
	s.Require().NoError(err)
	cred, proof, err := s.issuer.Finalize(s.ctx, built.Credential, built.Stub, info)
	s.Require().NoError(err)
	return cred, proof
}

func alice() issuer.Request {
	return issuer.Request{
		Claim: models.Claim{
			SubjectID:  "did:example:alice",
			Properties: map[string]any{"name": "Alice", "age": 30},
		},
		SchemaRef: "schema:person",
		Issuer:    issuerDID,
	}
}

func (s *VerifierSuite) TestAliceRevealsOnlyHerAge() {
	cred, proof := s.issue(alice())

	disclosed, disclosedProof, err := disclosure.Disclose(cred, proof, []string{"age"})
	s.Require().NoError(err)
	s.Equal(map[string]any{"id": "did:example:alice", "age": 30}, disclosed.CredentialSubject)

	result, err := s.verifier.Verify(s.ctx, disclosed, disclosedProof, Options{})
	s.Require().NoError(err)
	s.Equal(cred.ID, result.CredentialID)
	s.Equal(issuerDID, result.Issuer)
	s.False(result.Revoked)
	s.Equal(proof.Anchor, result.Anchor)

	presented, err := FromCredential(disclosed)
	s.Require().NoError(err)
	again, err := s.verifier.Verify(s.ctx, presented.Credential, presented.Proof, Options{})
	s.Require().NoError(err)
	s.Equal(result.RootDigest, again.RootDigest)
}

func (s *VerifierSuite) TestDigestMismatch() {
	cred, proof := s.issue(alice())

	s.Run("tampered value", func() {
		tampered := cred.Clone()
		tampered.CredentialSubject["age"] = 31
		_, err := s.verifier.Verify(s.ctx, tampered, proof, Options{})
		s.True(dErrors.HasCode(err, dErrors.CodeDigestMismatch))
	})

	s.Run("dropped claim without hidden digest", func() {
		dropped := cred.Clone()
		delete(dropped.CredentialSubject, "name")
		trimmed := proof.Clone()
		delete(trimmed.Salts, models.PathForClaim("name"))
		_, err := s.verifier.Verify(s.ctx, dropped, trimmed, Options{})
		s.True(dErrors.HasCode(err, dErrors.CodeDigestMismatch))
	})

	s.Run("salt for an unrevealed statement", func() {
		dropped := cred.Clone()
		delete(dropped.CredentialSubject, "name")
		_, err := s.verifier.Verify(s.ctx, dropped, proof, Options{})
		s.True(dErrors.HasCode(err, dErrors.CodeDigestMismatch))
	})

	s.Run("swapped credential id", func() {
		other, _ := s.issue(alice())
		swapped := cred.Clone()
		swapped.ID = other.ID
		_, err := s.verifier.Verify(s.ctx, swapped, proof, Options{})
		s.True(dErrors.HasCode(err, dErrors.CodeDigestMismatch))
	})
}

func (s *VerifierSuite) TestSaltTamperedAfterDisclosure() {
	cred, proof := s.issue(alice())
	disclosed, disclosedProof, err := disclosure.Disclose(cred, proof, []string{"age"})
	s.Require().NoError(err)

	path := models.PathForClaim("age")
	salt := disclosedProof.Salts[path]
	salt[0] ^= 0xff
	disclosedProof.Salts[path] = salt

	_, err = s.verifier.Verify(s.ctx, disclosed, disclosedProof, Options{})
	s.True(dErrors.HasCode(err, dErrors.CodeDigestMismatch), "got %v", err)
}

func (s *VerifierSuite) TestFullDisclosureVerifies() {
	cred, proof := s.issue(alice())
	disclosed, disclosedProof, err := disclosure.Disclose(cred, proof, cred.ClaimKeys())
	s.Require().NoError(err)
	s.Empty(disclosedProof.HiddenDigests)
	s.Equal(cred.CredentialSubject, disclosed.CredentialSubject)

	result, err := s.verifier.Verify(s.ctx, disclosed, disclosedProof, Options{})
	s.Require().NoError(err)
	s.Equal(cred.ID, result.CredentialID)
}

// Claims decoded from HTTP bodies arrive as json.Number.
func (s *VerifierSuite) TestJSONNumberClaims() {
	req := alice()
	req.Claim.Properties = map[string]any{"balance": json.Number("9007199254740990")}
	cred, proof := s.issue(req)

	_, err := s.verifier.Verify(s.ctx, cred, proof, Options{})
	s.Require().NoError(err)

	for _, forged := range []string{"9007199254740991", "9007199254740993", "9.007199254740993e15"} {
		s.Run(forged, func() {
			tampered := cred.Clone()
			tampered.CredentialSubject["balance"] = json.Number(forged)
			_, err := s.verifier.Verify(s.ctx, tampered, proof, Options{})
			s.True(dErrors.HasCode(err, dErrors.CodeDigestMismatch), "got %v", err)
		})
	}

	s.Run("unsafe integers are not issued", func() {
		req := alice()
		req.Claim.Properties = map[string]any{"balance": json.Number("9007199254740993")}
		_, err := s.issuer.Initialize(req)
		s.True(dErrors.HasCode(err, dErrors.CodeMalformedClaim), "got %v", err)
	})
}

func (s *VerifierSuite) TestHiddenMandatoryStatement() {
	cred, proof := s.issue(alice())

	hidden := cred.Clone()
	hiddenProof := proof.Clone()
	d, err := digest.Of(proof.Scheme, models.PathSubjectID, proof.Salts[models.PathSubjectID], "did:example:alice")
	s.Require().NoError(err)
	delete(hidden.CredentialSubject, models.SubjectIDKey)
	delete(hiddenProof.Salts, models.PathSubjectID)
	hiddenProof.HiddenDigests = append(hiddenProof.HiddenDigests, d)

	_, err = s.verifier.Verify(s.ctx, hidden, hiddenProof, Options{})
	s.True(dErrors.HasCode(err, dErrors.CodeMandatoryFieldMissing), "got %v", err)
}

func (s *VerifierSuite) TestLedgerState() {
	s.Run("removed attestation is record not found", func() {
		cred, proof := s.issue(alice())
		root, err := models.RootDigestFromID(cred.ID)
		s.Require().NoError(err)
		_, err = s.ledger.Remove(s.ctx, issuerDID, root)
		s.Require().NoError(err)

		_, err = s.verifier.Verify(s.ctx, cred, proof, Options{})
		s.True(dErrors.HasCode(err, dErrors.CodeRecordNotFound))
		s.True(models.IsTransient(err))
	})

	s.Run("revocation is reported", func() {
		cred, proof := s.issue(alice())
		root, err := models.RootDigestFromID(cred.ID)
		s.Require().NoError(err)
		_, err = s.ledger.Revoke(s.ctx, issuerDID, root)
		s.Require().NoError(err)

		result, err := s.verifier.Verify(s.ctx, cred, proof, Options{})
		s.Require().NoError(err)
		s.True(result.Revoked)

		result, err = s.verifier.Verify(s.ctx, cred, proof, Options{RequireNotRevoked: true})
		s.True(dErrors.HasCode(err, dErrors.CodeCredentialRevoked))
		s.True(result.Revoked)
	})

	s.Run("anchor pointing at another transaction", func() {
		cred, proof := s.issue(alice())
		_, otherProof := s.issue(alice())
		moved := proof.Clone()
		moved.Anchor = otherProof.Anchor
		_, err := s.verifier.Verify(s.ctx, cred, moved, Options{})
		s.True(dErrors.HasCode(err, dErrors.CodeIssuanceNotConfirmed))
	})
}

func (s *VerifierSuite) TestDelegatedIssuer() {
	s.Require().NoError(s.ledger.AddDelegationNode(s.ctx, models.DelegationNode{ID: "root", Owner: "did:example:authority"}))
	s.Require().NoError(s.ledger.AddDelegationNode(s.ctx, models.DelegationNode{ID: "leaf", ParentID: "root", Owner: issuerDID}))

	req := alice()
	req.Delegation = &models.DelegationRef{ID: "leaf", RootID: "root", Delegators: []string{"did:example:authority"}}
	cred, proof := s.issue(req)

	result, err := s.verifier.Verify(s.ctx, cred, proof, Options{})
	s.Require().NoError(err)
	s.Equal("leaf", result.DelegationID)

	s.Require().NoError(s.ledger.RevokeDelegationNode(s.ctx, "did:example:authority", "root"))
	_, err = s.verifier.Verify(s.ctx, cred, proof, Options{})
	s.True(dErrors.HasCode(err, dErrors.CodeTrustChain))
}

func (s *VerifierSuite) TestLegitimations() {
	legitimation, _ := s.issue(alice())

	req := alice()
	req.Legitimations = []string{legitimation.ID}
	cred, proof := s.issue(req)

	_, err := s.verifier.Verify(s.ctx, cred, proof, Options{CheckLegitimations: true})
	s.Require().NoError(err)

	root, err := models.RootDigestFromID(legitimation.ID)
	s.Require().NoError(err)
	_, err = s.ledger.Revoke(s.ctx, issuerDID, root)
	s.Require().NoError(err)

	_, err = s.verifier.Verify(s.ctx, cred, proof, Options{CheckLegitimations: true})
	s.True(dErrors.HasCode(err, dErrors.CodeTrustChain))

	_, err = s.verifier.Verify(s.ctx, cred, proof, Options{})
	s.NoError(err, "legitimations are only checked on request")
}

func (s *VerifierSuite) TestVerifyPresentation() {
	a, aProof := s.issue(alice())
	b, bProof := s.issue(alice())

	results, err := s.verifier.VerifyPresentation(s.ctx, []Presented{
		{Credential: a, Proof: aProof},
		{Credential: b, Proof: bProof},
	}, Options{})
	s.Require().NoError(err)
	s.Equal([]string{a.ID, b.ID}, []string{results[0].CredentialID, results[1].CredentialID})

	tampered := b.Clone()
	tampered.CredentialSubject = maps.Clone(b.CredentialSubject)
	tampered.CredentialSubject["name"] = "Mallory"
	_, err = s.verifier.VerifyPresentation(s.ctx, []Presented{
		{Credential: a, Proof: aProof},
		{Credential: tampered, Proof: bProof},
	}, Options{})
	s.True(dErrors.HasCode(err, dErrors.CodeDigestMismatch))
	s.ErrorContains(err, "credential 1")

	_, err = s.verifier.VerifyPresentation(s.ctx, nil, Options{})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *VerifierSuite) TestVerifyDoesNotMutateInputs() {
	cred, proof := s.issue(alice())
	keys := cred.ClaimKeys()
	hidden := slices.Clone(proof.HiddenDigests)

	_, err := s.verifier.Verify(s.ctx, cred, proof, Options{})
	s.Require().NoError(err)
	s.Equal(keys, cred.ClaimKeys())
	s.Equal(hidden, proof.HiddenDigests)
}
