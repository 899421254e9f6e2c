package memory

import (
	"context"
	"testing"
	"time"

	"anchorcred/internal/credential/models"
	"anchorcred/pkg/platform/sentinel"

	"github.com/stretchr/testify/suite"
)

type LedgerSuite struct {
	suite.Suite
	ctx    context.Context
	ledger *Ledger
	now    time.Time
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.ledger = New(WithGenesisID("testnet"), WithClock(func() time.Time { return s.now }))
}

func root(b byte) models.Digest {
	var d models.Digest
	d[0] = b
	d[31] = b
	return d
}

func (s *LedgerSuite) TestSubmitCreatesRecordAndTransaction() {
	payload := models.SubmissionPayload{RootDigest: root(1), SchemaHash: root(9), Scheme: models.SchemeSHA256}
	info, err := s.ledger.Submit(s.ctx, "did:example:issuer", payload)
	s.Require().NoError(err)
	s.Equal("testnet", info.GenesisID)
	s.Equal(uint64(1), info.Block.Number)
	s.Equal(s.now, info.Timestamp)

	rec, err := s.ledger.GetAttestationRecord(s.ctx, root(1))
	s.Require().NoError(err)
	s.Equal("did:example:issuer", rec.Issuer)
	s.Equal(root(9), rec.SchemaHash)
	s.False(rec.Revoked)

	tx, err := s.ledger.GetTransactionAtBlock(s.ctx, info.Block)
	s.Require().NoError(err)
	ev, ok := tx.FindEvent(models.EventAttestationCreated, root(1))
	s.Require().True(ok)
	s.Equal("did:example:issuer", ev.Attester)
	s.Equal(payload, tx.Args)
}

func (s *LedgerSuite) TestSubmitRejectsDuplicateRoot() {
	payload := models.SubmissionPayload{RootDigest: root(1)}
	_, err := s.ledger.Submit(s.ctx, "a", payload)
	s.Require().NoError(err)
	_, err = s.ledger.Submit(s.ctx, "a", payload)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *LedgerSuite) TestSubmitRequiresKnownDelegationNode() {
	_, err := s.ledger.Submit(s.ctx, "a", models.SubmissionPayload{RootDigest: root(1), DelegationID: "missing"})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *LedgerSuite) TestRevoke() {
	_, err := s.ledger.Submit(s.ctx, "owner", models.SubmissionPayload{RootDigest: root(2)})
	s.Require().NoError(err)

	s.Run("other attester is forbidden", func() {
		_, err := s.ledger.Revoke(s.ctx, "intruder", root(2))
		s.ErrorIs(err, sentinel.ErrForbidden)
	})
	s.Run("owner revokes", func() {
		info, err := s.ledger.Revoke(s.ctx, "owner", root(2))
		s.Require().NoError(err)
		rec, err := s.ledger.GetAttestationRecord(s.ctx, root(2))
		s.Require().NoError(err)
		s.True(rec.Revoked)

		tx, err := s.ledger.GetTransactionAtBlock(s.ctx, info.Block)
		s.Require().NoError(err)
		_, ok := tx.FindEvent(models.EventAttestationRevoked, root(2))
		s.True(ok)
	})
	s.Run("second revoke is invalid", func() {
		_, err := s.ledger.Revoke(s.ctx, "owner", root(2))
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})
	s.Run("unknown root", func() {
		_, err := s.ledger.Revoke(s.ctx, "owner", root(3))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *LedgerSuite) TestRemoveKeepsIssuanceTransaction() {
	info, err := s.ledger.Submit(s.ctx, "owner", models.SubmissionPayload{RootDigest: root(4)})
	s.Require().NoError(err)
	_, err = s.ledger.Remove(s.ctx, "owner", root(4))
	s.Require().NoError(err)

	_, err = s.ledger.GetAttestationRecord(s.ctx, root(4))
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.ledger.GetTransactionAtBlock(s.ctx, info.Block)
	s.NoError(err)
}

func (s *LedgerSuite) TestTransactionLookupChecksBlockNumber() {
	info, err := s.ledger.Submit(s.ctx, "owner", models.SubmissionPayload{RootDigest: root(5)})
	s.Require().NoError(err)

	ref := info.Block
	ref.Number++
	_, err = s.ledger.GetTransactionAtBlock(s.ctx, ref)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *LedgerSuite) TestDelegationNodes() {
	s.Require().NoError(s.ledger.AddDelegationNode(s.ctx, models.DelegationNode{ID: "root", Owner: "ca"}))
	s.Require().NoError(s.ledger.AddDelegationNode(s.ctx, models.DelegationNode{ID: "leaf", ParentID: "root", Owner: "issuer"}))

	s.ErrorIs(s.ledger.AddDelegationNode(s.ctx, models.DelegationNode{ID: "orphan", ParentID: "nope", Owner: "x"}), sentinel.ErrNotFound)
	s.ErrorIs(s.ledger.AddDelegationNode(s.ctx, models.DelegationNode{ID: "root", Owner: "ca"}), sentinel.ErrConflict)

	s.ErrorIs(s.ledger.RevokeDelegationNode(s.ctx, "issuer", "root"), sentinel.ErrForbidden)
	s.Require().NoError(s.ledger.RevokeDelegationNode(s.ctx, "ca", "root"))

	node, err := s.ledger.GetDelegationNode(s.ctx, "root")
	s.Require().NoError(err)
	s.True(node.Revoked)
	s.True(node.IsRoot())
}
