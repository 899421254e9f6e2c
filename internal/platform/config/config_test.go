package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, LedgerMemory, cfg.Ledger.Backend)
	assert.Equal(t, 32, cfg.Verification.MaxDelegationDepth)
	assert.Equal(t, 30*time.Second, cfg.Ledger.FinalizeMaxElapsed)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ANCHORCRED_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("MAX_DELEGATION_DEPTH", "4")
	t.Setenv("CHECK_LEGITIMATIONS", "true")
	t.Setenv("LEDGER_CACHE_TTL", "5m")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 4, cfg.Verification.MaxDelegationDepth)
	assert.True(t, cfg.Verification.CheckLegitimations)
	assert.Equal(t, 5*time.Minute, cfg.Ledger.CacheTTL)
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Run("postgres without url", func(t *testing.T) {
		t.Setenv("LEDGER_BACKEND", LedgerPostgres)
		t.Setenv("DATABASE_URL", "")
		_, err := FromEnv()
		assert.Error(t, err)
	})
	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("LEDGER_BACKEND", "ipfs")
		_, err := FromEnv()
		assert.Error(t, err)
	})
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("FINALIZE_MAX_ELAPSED", "soon")
		_, err := FromEnv()
		assert.Error(t, err)
	})
}
