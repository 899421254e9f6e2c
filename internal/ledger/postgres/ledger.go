// Package postgres is a ledger adapter over a PostgreSQL indexer database.
// Reads serve verification; writes append blocks the same way the chain
// would, so a single-node deployment can run without a chain.
package postgres

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"anchorcred/internal/credential/digest"
	"anchorcred/internal/credential/models"
	"anchorcred/pkg/platform/sentinel"
	txcontext "anchorcred/pkg/platform/tx"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

// Open connects through the pgx database/sql driver.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

type Ledger struct {
	db        *sql.DB
	genesisID string
	clock     func() time.Time
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

func New(db *sql.DB, opts ...Option) *Ledger {
	l := &Ledger{
		db:        db,
		genesisID: "anchorcred-indexer",
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (l *Ledger) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return l.db
}

func (l *Ledger) GetAttestationRecord(ctx context.Context, root models.Digest) (*models.LedgerAttestationRecord, error) {
	var (
		rec          models.LedgerAttestationRecord
		schemaHash   string
		delegationID sql.NullString
	)
	err := l.q(ctx).QueryRowContext(ctx, `
		SELECT issuer, schema_hash, delegation_id, revoked
		FROM attestations WHERE root_digest = $1`, root.String(),
	).Scan(&rec.Issuer, &schemaHash, &delegationID, &rec.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get attestation record: %w", err)
	}
	rec.RootDigest = root
	if rec.SchemaHash, err = models.ParseDigest(schemaHash); err != nil {
		return nil, fmt.Errorf("decode schema hash: %w", err)
	}
	rec.DelegationID = delegationID.String
	return &rec, nil
}

// Legitimations returns the legitimation roots stored with an attestation.
func (l *Ledger) Legitimations(ctx context.Context, root models.Digest) ([]models.Digest, error) {
	var raw pq.StringArray
	err := l.q(ctx).QueryRowContext(ctx,
		`SELECT legitimations FROM attestations WHERE root_digest = $1`, root.String(),
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get legitimations: %w", err)
	}
	out := make([]models.Digest, 0, len(raw))
	for _, s := range raw {
		d, err := models.ParseDigest(s)
		if err != nil {
			return nil, fmt.Errorf("decode legitimation: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (l *Ledger) GetDelegationNode(ctx context.Context, id string) (*models.DelegationNode, error) {
	var (
		node   models.DelegationNode
		parent sql.NullString
	)
	err := l.q(ctx).QueryRowContext(ctx,
		`SELECT id, parent_id, owner, revoked FROM delegation_nodes WHERE id = $1`, id,
	).Scan(&node.ID, &parent, &node.Owner, &node.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get delegation node: %w", err)
	}
	node.ParentID = parent.String
	return &node, nil
}

func (l *Ledger) GetTransactionAtBlock(ctx context.Context, ref models.BlockRef) (*models.Transaction, error) {
	var (
		tx     models.Transaction
		number int64
		args   []byte
		events []byte
	)
	err := l.q(ctx).QueryRowContext(ctx, `
		SELECT block_number, signer, args, events
		FROM ledger_transactions
		WHERE block_hash = $1 AND tx_index = $2`, ref.Hash, int32(ref.TxIndex),
	).Scan(&number, &tx.Signer, &args, &events)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if uint64(number) != ref.Number {
		return nil, sentinel.ErrNotFound
	}
	if err := json.Unmarshal(args, &tx.Args); err != nil {
		return nil, fmt.Errorf("decode transaction args: %w", err)
	}
	if err := json.Unmarshal(events, &tx.Events); err != nil {
		return nil, fmt.Errorf("decode transaction events: %w", err)
	}
	tx.Block = ref
	return &tx, nil
}

func (l *Ledger) Submit(ctx context.Context, attester string, payload models.SubmissionPayload) (models.InclusionInfo, error) {
	if attester == "" || payload.RootDigest.IsZero() {
		return models.InclusionInfo{}, fmt.Errorf("submit: attester and root digest are required")
	}
	var info models.InclusionInfo
	err := txcontext.Run(ctx, l.db, func(ctx context.Context) error {
		if payload.DelegationID != "" {
			if _, err := l.GetDelegationNode(ctx, payload.DelegationID); err != nil {
				return fmt.Errorf("delegation node %s: %w", payload.DelegationID, err)
			}
		}
		legitimations := make(pq.StringArray, 0, len(payload.Legitimations))
		for _, d := range payload.Legitimations {
			legitimations = append(legitimations, d.String())
		}
		res, err := l.q(ctx).ExecContext(ctx, `
			INSERT INTO attestations (root_digest, issuer, schema_hash, delegation_id, legitimations)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5)
			ON CONFLICT (root_digest) DO NOTHING`,
			payload.RootDigest.String(), attester, payload.SchemaHash.String(), payload.DelegationID, legitimations,
		)
		if err != nil {
			return fmt.Errorf("insert attestation: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("attestation %s: %w", payload.RootDigest, sentinel.ErrConflict)
		}
		info, err = l.appendBlock(ctx, attester, payload, models.LedgerEvent{
			Kind:         models.EventAttestationCreated,
			RootDigest:   payload.RootDigest,
			Attester:     attester,
			SchemaHash:   payload.SchemaHash,
			DelegationID: payload.DelegationID,
		})
		return err
	})
	return info, err
}

func (l *Ledger) Revoke(ctx context.Context, attester string, root models.Digest) (models.InclusionInfo, error) {
	var info models.InclusionInfo
	err := txcontext.Run(ctx, l.db, func(ctx context.Context) error {
		var (
			issuer     string
			schemaHash string
			revoked    bool
		)
		err := l.q(ctx).QueryRowContext(ctx, `
			SELECT issuer, schema_hash, revoked FROM attestations
			WHERE root_digest = $1 FOR UPDATE`, root.String(),
		).Scan(&issuer, &schemaHash, &revoked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("load attestation: %w", err)
		}
		if issuer != attester {
			return sentinel.ErrForbidden
		}
		if revoked {
			return sentinel.ErrInvalidState
		}
		if _, err := l.q(ctx).ExecContext(ctx,
			`UPDATE attestations SET revoked = TRUE WHERE root_digest = $1`, root.String(),
		); err != nil {
			return fmt.Errorf("revoke attestation: %w", err)
		}
		sh, err := models.ParseDigest(schemaHash)
		if err != nil {
			return fmt.Errorf("decode schema hash: %w", err)
		}
		info, err = l.appendBlock(ctx, attester, models.SubmissionPayload{RootDigest: root}, models.LedgerEvent{
			Kind:       models.EventAttestationRevoked,
			RootDigest: root,
			Attester:   attester,
			SchemaHash: sh,
		})
		return err
	})
	return info, err
}

// AddDelegationNode registers a node in the hierarchy.
func (l *Ledger) AddDelegationNode(ctx context.Context, node models.DelegationNode) error {
	_, err := l.q(ctx).ExecContext(ctx, `
		INSERT INTO delegation_nodes (id, parent_id, owner, revoked)
		VALUES ($1, NULLIF($2, ''), $3, $4)`,
		node.ID, node.ParentID, node.Owner, node.Revoked,
	)
	if err != nil {
		return fmt.Errorf("insert delegation node: %w", err)
	}
	return nil
}

func (l *Ledger) appendBlock(ctx context.Context, signer string, args models.SubmissionPayload, event models.LedgerEvent) (models.InclusionInfo, error) {
	now := l.clock().UTC()
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], uint64(now.UnixNano()))
	hash, err := digest.Sum(models.SchemeSHA256, []byte(l.genesisID), seed[:], event.RootDigest[:], []byte(event.Kind))
	if err != nil {
		return models.InclusionInfo{}, err
	}

	var number int64
	if err := l.q(ctx).QueryRowContext(ctx,
		`INSERT INTO ledger_blocks (hash, created_at) VALUES ($1, $2) RETURNING number`, hash.String(), now,
	).Scan(&number); err != nil {
		return models.InclusionInfo{}, fmt.Errorf("insert block: %w", err)
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return models.InclusionInfo{}, fmt.Errorf("encode transaction args: %w", err)
	}
	eventsJSON, err := json.Marshal([]models.LedgerEvent{event})
	if err != nil {
		return models.InclusionInfo{}, fmt.Errorf("encode transaction events: %w", err)
	}
	if _, err := l.q(ctx).ExecContext(ctx, `
		INSERT INTO ledger_transactions (block_hash, block_number, tx_index, signer, args, events)
		VALUES ($1, $2, 0, $3, $4, $5)`,
		hash.String(), number, signer, argsJSON, eventsJSON,
	); err != nil {
		return models.InclusionInfo{}, fmt.Errorf("insert transaction: %w", err)
	}

	return models.InclusionInfo{
		Block:     models.BlockRef{Hash: hash.String(), Number: uint64(number), TxIndex: 0},
		Timestamp: now,
		GenesisID: l.genesisID,
	}, nil
}
