//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"anchorcred/internal/credential/models"
	"anchorcred/internal/ledger/memory"
	"anchorcred/pkg/testutil/containers"

	"github.com/stretchr/testify/require"
)

func TestReaderAgainstRedis(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	require.NoError(t, rc.FlushAll(ctx))

	ledger := memory.New()
	var root models.Digest
	root[31] = 1
	info, err := ledger.Submit(ctx, "issuer", models.SubmissionPayload{RootDigest: root, Scheme: models.SchemeBLAKE2b256})
	require.NoError(t, err)

	reader := New(ledger, rc.Client, WithTTL(time.Minute))
	tx, err := reader.GetTransactionAtBlock(ctx, info.Block)
	require.NoError(t, err)

	ttl, err := rc.Client.TTL(ctx, cacheKey(info.Block)).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	cached, err := reader.GetTransactionAtBlock(ctx, info.Block)
	require.NoError(t, err)
	require.Equal(t, tx, cached)
}
