package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"anchorcred/internal/credential/models"
	"anchorcred/internal/ledger/memory"
	"anchorcred/pkg/platform/circuit"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type fakeRedis struct {
	data    map[string]string
	failing bool
	gets    int
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.gets++
	if f.failing {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	if f.failing {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

type countingReader struct {
	*memory.Ledger
	txReads int
}

func (c *countingReader) GetTransactionAtBlock(ctx context.Context, ref models.BlockRef) (*models.Transaction, error) {
	c.txReads++
	return c.Ledger.GetTransactionAtBlock(ctx, ref)
}

type CacheSuite struct {
	suite.Suite
	ctx    context.Context
	ledger *countingReader
	redis  *fakeRedis
	reader *Reader
	info   models.InclusionInfo
	root   models.Digest
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.ctx = context.Background()
	s.ledger = &countingReader{Ledger: memory.New()}
	s.redis = &fakeRedis{data: map[string]string{}}
	s.reader = New(s.ledger, s.redis, WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))))

	s.root[0] = 7
	info, err := s.ledger.Submit(s.ctx, "issuer", models.SubmissionPayload{RootDigest: s.root})
	s.Require().NoError(err)
	s.info = info
}

func (s *CacheSuite) TestTransactionIsCachedAfterFirstRead() {
	first, err := s.reader.GetTransactionAtBlock(s.ctx, s.info.Block)
	s.Require().NoError(err)
	second, err := s.reader.GetTransactionAtBlock(s.ctx, s.info.Block)
	s.Require().NoError(err)

	s.Equal(1, s.ledger.txReads)
	s.Equal(first, second)
}

func (s *CacheSuite) TestRecordsBypassCache() {
	rec, err := s.reader.GetAttestationRecord(s.ctx, s.root)
	s.Require().NoError(err)
	s.False(rec.Revoked)

	_, err = s.ledger.Revoke(s.ctx, "issuer", s.root)
	s.Require().NoError(err)

	rec, err = s.reader.GetAttestationRecord(s.ctx, s.root)
	s.Require().NoError(err)
	s.True(rec.Revoked)
	s.Zero(s.redis.gets)
}

func (s *CacheSuite) TestRedisOutageFallsBackAndOpensBreaker() {
	s.redis.failing = true
	for range 2 {
		tx, err := s.reader.GetTransactionAtBlock(s.ctx, s.info.Block)
		s.Require().NoError(err)
		s.Equal(s.info.Block, tx.Block)
	}
	s.True(s.reader.breaker.IsOpen())

	gets := s.redis.gets
	_, err := s.reader.GetTransactionAtBlock(s.ctx, s.info.Block)
	s.Require().NoError(err)
	s.Equal(gets, s.redis.gets, "open circuit skips cache reads")

	s.redis.failing = false
	_, err = s.reader.GetTransactionAtBlock(s.ctx, s.info.Block)
	s.Require().NoError(err)
	s.False(s.reader.breaker.IsOpen(), "a successful write closes the circuit")
}
