// Package memory is an in-process ledger that behaves like the attestation
// chain: every write lands in its own block, transactions keep their events,
// and records carry live revocation state. It backs dev mode and tests.
package memory

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"anchorcred/internal/credential/digest"
	"anchorcred/internal/credential/models"
	"anchorcred/pkg/platform/sentinel"
)

const defaultGenesisID = "anchorcred-devnet"

type txKey struct {
	hash  string
	index uint32
}

// Ledger implements ports.LedgerReader and ports.LedgerWriter.
type Ledger struct {
	mu        sync.RWMutex
	genesisID string
	clock     func() time.Time
	height    uint64
	records   map[models.Digest]models.LedgerAttestationRecord
	nodes     map[string]models.DelegationNode
	txs       map[txKey]models.Transaction
}

type Option func(*Ledger)

func WithGenesisID(id string) Option {
	return func(l *Ledger) {
		if id != "" {
			l.genesisID = id
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		genesisID: defaultGenesisID,
		clock:     time.Now,
		records:   make(map[models.Digest]models.LedgerAttestationRecord),
		nodes:     make(map[string]models.DelegationNode),
		txs:       make(map[txKey]models.Transaction),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GenesisID identifies the chain instance.
func (l *Ledger) GenesisID() string {
	return l.genesisID
}

func (l *Ledger) GetAttestationRecord(_ context.Context, root models.Digest) (*models.LedgerAttestationRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[root]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}

func (l *Ledger) GetDelegationNode(_ context.Context, id string) (*models.DelegationNode, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	node, ok := l.nodes[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &node, nil
}

func (l *Ledger) GetTransactionAtBlock(_ context.Context, ref models.BlockRef) (*models.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tx, ok := l.txs[txKey{hash: ref.Hash, index: ref.TxIndex}]
	if !ok || tx.Block.Number != ref.Number {
		return nil, sentinel.ErrNotFound
	}
	tx.Events = append([]models.LedgerEvent(nil), tx.Events...)
	return &tx, nil
}

// Submit creates the attestation record and emits AttestationCreated in a
// new block.
func (l *Ledger) Submit(ctx context.Context, attester string, payload models.SubmissionPayload) (models.InclusionInfo, error) {
	if err := ctx.Err(); err != nil {
		return models.InclusionInfo{}, err
	}
	if attester == "" || payload.RootDigest.IsZero() {
		return models.InclusionInfo{}, fmt.Errorf("submit: attester and root digest are required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.records[payload.RootDigest]; exists {
		return models.InclusionInfo{}, fmt.Errorf("attestation %s: %w", payload.RootDigest, sentinel.ErrConflict)
	}
	if payload.DelegationID != "" {
		if _, ok := l.nodes[payload.DelegationID]; !ok {
			return models.InclusionInfo{}, fmt.Errorf("delegation node %s: %w", payload.DelegationID, sentinel.ErrNotFound)
		}
	}

	l.records[payload.RootDigest] = models.LedgerAttestationRecord{
		RootDigest:   payload.RootDigest,
		Issuer:       attester,
		SchemaHash:   payload.SchemaHash,
		DelegationID: payload.DelegationID,
	}
	return l.appendBlock(attester, payload, models.LedgerEvent{
		Kind:         models.EventAttestationCreated,
		RootDigest:   payload.RootDigest,
		Attester:     attester,
		SchemaHash:   payload.SchemaHash,
		DelegationID: payload.DelegationID,
	}), nil
}

// Revoke flags the record. Only the original attester may revoke.
func (l *Ledger) Revoke(ctx context.Context, attester string, root models.Digest) (models.InclusionInfo, error) {
	if err := ctx.Err(); err != nil {
		return models.InclusionInfo{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[root]
	if !ok {
		return models.InclusionInfo{}, sentinel.ErrNotFound
	}
	if rec.Issuer != attester {
		return models.InclusionInfo{}, sentinel.ErrForbidden
	}
	if rec.Revoked {
		return models.InclusionInfo{}, sentinel.ErrInvalidState
	}
	rec.Revoked = true
	l.records[root] = rec
	return l.appendBlock(attester, models.SubmissionPayload{RootDigest: root}, models.LedgerEvent{
		Kind:         models.EventAttestationRevoked,
		RootDigest:   root,
		Attester:     attester,
		SchemaHash:   rec.SchemaHash,
		DelegationID: rec.DelegationID,
	}), nil
}

// Remove deletes the record, as when an attester reclaims its deposit.
// Credentials anchored to it stop verifying.
func (l *Ledger) Remove(ctx context.Context, attester string, root models.Digest) (models.InclusionInfo, error) {
	if err := ctx.Err(); err != nil {
		return models.InclusionInfo{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[root]
	if !ok {
		return models.InclusionInfo{}, sentinel.ErrNotFound
	}
	if rec.Issuer != attester {
		return models.InclusionInfo{}, sentinel.ErrForbidden
	}
	delete(l.records, root)
	return l.appendBlock(attester, models.SubmissionPayload{RootDigest: root}, models.LedgerEvent{
		Kind:       models.EventAttestationRemoved,
		RootDigest: root,
		Attester:   attester,
		SchemaHash: rec.SchemaHash,
	}), nil
}

// AddDelegationNode registers a node. A non-root node's parent must exist.
func (l *Ledger) AddDelegationNode(_ context.Context, node models.DelegationNode) error {
	if node.ID == "" || node.Owner == "" {
		return fmt.Errorf("delegation node requires id and owner")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.nodes[node.ID]; exists {
		return fmt.Errorf("delegation node %s: %w", node.ID, sentinel.ErrConflict)
	}
	if !node.IsRoot() {
		if _, ok := l.nodes[node.ParentID]; !ok {
			return fmt.Errorf("parent node %s: %w", node.ParentID, sentinel.ErrNotFound)
		}
	}
	l.nodes[node.ID] = node
	return nil
}

// RevokeDelegationNode marks a node revoked. Only its owner may do so.
func (l *Ledger) RevokeDelegationNode(_ context.Context, owner, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	node, ok := l.nodes[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if node.Owner != owner {
		return sentinel.ErrForbidden
	}
	node.Revoked = true
	l.nodes[id] = node
	return nil
}

// appendBlock seals a single-transaction block. Callers hold l.mu.
func (l *Ledger) appendBlock(signer string, args models.SubmissionPayload, event models.LedgerEvent) models.InclusionInfo {
	l.height++
	var num [8]byte
	binary.BigEndian.PutUint64(num[:], l.height)
	// SHA-256 is always available, so the error is impossible.
	hash, _ := digest.Sum(models.SchemeSHA256, []byte(l.genesisID), num[:], event.RootDigest[:], []byte(event.Kind))

	ref := models.BlockRef{Hash: hash.String(), Number: l.height, TxIndex: 0}
	l.txs[txKey{hash: ref.Hash, index: ref.TxIndex}] = models.Transaction{
		Block:  ref,
		Signer: signer,
		Args:   args,
		Events: []models.LedgerEvent{event},
	}
	return models.InclusionInfo{
		Block:     ref,
		Timestamp: l.clock().UTC(),
		GenesisID: l.genesisID,
	}
}
