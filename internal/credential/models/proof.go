package models

import (
	"maps"
	"slices"
	"time"

	dErrors "anchorcred/pkg/domain-errors"
)

// ProofTypeSaltedHashCommitment is the only proof type this service produces.
const ProofTypeSaltedHashCommitment = "SaltedHashCommitment"

// BlockRef locates the issuance transaction on the ledger.
type BlockRef struct {
	Hash    string `json:"hash"`
	Number  uint64 `json:"number"`
	TxIndex uint32 `json:"txIndex"`
}

// IsZero reports whether the reference was never set.
func (b BlockRef) IsZero() bool {
	return b.Hash == ""
}

// LedgerAnchor is the inclusion data stamped into a proof at finalize time.
type LedgerAnchor struct {
	Block     BlockRef
	Timestamp time.Time
	GenesisID string
}

// StubProof is a proof before ledger inclusion. It has no anchor and can only
// become a FinalizedProof through the issuer's Finalize.
type StubProof struct {
	Scheme     HashScheme
	RootDigest Digest
	Salts      map[Path]Salt
}

// FinalizedProof is an anchored, immutable proof. Hidden statements are
// represented only by their digests, kept in ascending byte order.
type FinalizedProof struct {
	Scheme        HashScheme
	Salts         map[Path]Salt
	HiddenDigests []Digest
	Anchor        LedgerAnchor
}

// NewFinalizedProof anchors the salts of a stub. Callers outside the issuer
// should obtain proofs through ParseProof instead.
func NewFinalizedProof(stub StubProof, anchor LedgerAnchor) FinalizedProof {
	return FinalizedProof{
		Scheme:        stub.Scheme,
		Salts:         maps.Clone(stub.Salts),
		HiddenDigests: []Digest{},
		Anchor:        anchor,
	}
}

// Clone returns a deep copy.
func (p FinalizedProof) Clone() FinalizedProof {
	out := p
	out.Salts = maps.Clone(p.Salts)
	out.HiddenDigests = slices.Clone(p.HiddenDigests)
	if out.HiddenDigests == nil {
		out.HiddenDigests = []Digest{}
	}
	return out
}

// Document renders the wire form embedded in a credential.
func (p FinalizedProof) Document() ProofDocument {
	block := p.Anchor.Block
	ts := p.Anchor.Timestamp.UTC()
	hidden := slices.Clone(p.HiddenDigests)
	if hidden == nil {
		hidden = []Digest{}
	}
	return ProofDocument{
		Type:                  ProofTypeSaltedHashCommitment,
		HashAlgorithm:         p.Scheme,
		Salts:                 maps.Clone(p.Salts),
		DigestsForHiddenPaths: hidden,
		Block:                 &block,
		Timestamp:             &ts,
		GenesisID:             p.Anchor.GenesisID,
	}
}

// ProofDocument is the JSON shape of a proof.
type ProofDocument struct {
	Type                  string        `json:"type"`
	HashAlgorithm         HashScheme    `json:"hashAlgorithm"`
	Salts                 map[Path]Salt `json:"salts"`
	DigestsForHiddenPaths []Digest      `json:"digestsForHiddenPaths"`
	Block                 *BlockRef     `json:"block,omitempty"`
	Timestamp             *time.Time    `json:"timestamp,omitempty"`
	GenesisID             string        `json:"genesisId,omitempty"`
}

// Clone returns a deep copy.
func (d ProofDocument) Clone() ProofDocument {
	out := d
	out.Salts = maps.Clone(d.Salts)
	out.DigestsForHiddenPaths = slices.Clone(d.DigestsForHiddenPaths)
	if d.Block != nil {
		b := *d.Block
		out.Block = &b
	}
	if d.Timestamp != nil {
		t := *d.Timestamp
		out.Timestamp = &t
	}
	return out
}

// ParseProof accepts only anchored proof documents.
func ParseProof(doc *ProofDocument) (FinalizedProof, error) {
	if doc == nil {
		return FinalizedProof{}, dErrors.New(dErrors.CodeInvalidInput, "credential has no proof")
	}
	if doc.Type != ProofTypeSaltedHashCommitment {
		return FinalizedProof{}, dErrors.Newf(dErrors.CodeInvalidInput, "unsupported proof type %q", doc.Type)
	}
	if !doc.HashAlgorithm.Valid() {
		return FinalizedProof{}, DigestMismatchError("proof uses an unsupported hash algorithm %q", doc.HashAlgorithm)
	}
	if doc.Block == nil || doc.Block.IsZero() {
		return FinalizedProof{}, IssuanceNotConfirmedError("proof has no ledger anchor")
	}
	anchor := LedgerAnchor{Block: *doc.Block, GenesisID: doc.GenesisID}
	if doc.Timestamp != nil {
		anchor.Timestamp = *doc.Timestamp
	}
	hidden := slices.Clone(doc.DigestsForHiddenPaths)
	if hidden == nil {
		hidden = []Digest{}
	}
	return FinalizedProof{
		Scheme:        doc.HashAlgorithm,
		Salts:         maps.Clone(doc.Salts),
		HiddenDigests: hidden,
		Anchor:        anchor,
	}, nil
}
