// Package cache decorates a ledger reader with a Redis read-through cache for
// issuance transactions. Finalized transactions never change, so they are
// safe to cache. Attestation records and delegation nodes carry live
// revocation state and always go to the ledger.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"anchorcred/internal/credential/models"
	"anchorcred/internal/credential/ports"
	"anchorcred/pkg/platform/circuit"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ledger:tx:"

// Client is the subset of go-redis the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type Reader struct {
	next    ports.LedgerReader
	client  Client
	ttl     time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Reader)

func WithTTL(ttl time.Duration) Option {
	return func(r *Reader) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(r *Reader) {
		if b != nil {
			r.breaker = b
		}
	}
}

func New(next ports.LedgerReader, client Client, opts ...Option) *Reader {
	r := &Reader{
		next:    next,
		client:  client,
		ttl:     time.Hour,
		breaker: circuit.New("ledger-cache"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reader) GetAttestationRecord(ctx context.Context, root models.Digest) (*models.LedgerAttestationRecord, error) {
	return r.next.GetAttestationRecord(ctx, root)
}

func (r *Reader) GetDelegationNode(ctx context.Context, id string) (*models.DelegationNode, error) {
	return r.next.GetDelegationNode(ctx, id)
}

// GetTransactionAtBlock serves from Redis when possible. Cache failures never
// fail the read; they only trip the breaker so later reads skip Redis.
func (r *Reader) GetTransactionAtBlock(ctx context.Context, ref models.BlockRef) (*models.Transaction, error) {
	key := cacheKey(ref)
	if !r.breaker.IsOpen() {
		raw, err := r.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			r.recordSuccess(ctx)
			var tx models.Transaction
			if jsonErr := json.Unmarshal(raw, &tx); jsonErr == nil && tx.Block == ref {
				return &tx, nil
			}
		case errors.Is(err, redis.Nil):
			r.recordSuccess(ctx)
		default:
			r.recordFailure(ctx, err)
		}
	}

	tx, err := r.next.GetTransactionAtBlock(ctx, ref)
	if err != nil {
		return nil, err
	}
	// Writes run even while the circuit is open; their outcome is what
	// closes it again.
	if raw, mErr := json.Marshal(tx); mErr == nil {
		if sErr := r.client.Set(ctx, key, raw, r.ttl).Err(); sErr != nil {
			r.recordFailure(ctx, sErr)
		} else {
			r.recordSuccess(ctx)
		}
	}
	return tx, nil
}

func (r *Reader) recordSuccess(ctx context.Context) {
	if _, change := r.breaker.RecordSuccess(); change.Closed && r.logger != nil {
		r.logger.InfoContext(ctx, "ledger cache circuit closed")
	}
}

func (r *Reader) recordFailure(ctx context.Context, err error) {
	_, change := r.breaker.RecordFailure()
	if r.logger == nil {
		return
	}
	if change.Opened {
		r.logger.WarnContext(ctx, "ledger cache circuit opened", "error", err)
		return
	}
	r.logger.DebugContext(ctx, "ledger cache error", "error", err)
}

func cacheKey(ref models.BlockRef) string {
	return fmt.Sprintf("%s%s:%d:%d", keyPrefix, ref.Hash, ref.Number, ref.TxIndex)
}
