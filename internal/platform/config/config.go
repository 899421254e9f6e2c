package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Ledger backends.
const (
	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	LogLevel       string
	LogFormat      string
	JWTSigningKey  string
	JWTIssuer      string
	JWTAudience    string
	HashScheme     string
	SchemaDir      string
	SchemaCacheTTL time.Duration
	SchemaCacheMax int

	Ledger       LedgerConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Verification VerificationConfig
}

// LedgerConfig selects the ledger adapter.
type LedgerConfig struct {
	Backend     string
	DatabaseURL string
	// FinalizeMaxElapsed bounds how long issuance waits for inclusion.
	FinalizeMaxElapsed time.Duration
	CacheTTL           time.Duration
}

// RedisConfig holds connection settings for the ledger read cache.
// An empty URL disables the cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the Kafka audit sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers           []string
	AuditTopic        string
	TopicPartitions   int32
	ReplicationFactor int16
}

type VerificationConfig struct {
	MaxDelegationDepth int
	CheckLegitimations bool
	RequireNotRevoked  bool
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:           getenv("ANCHORCRED_ADDR", ":8080"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "json"),
		JWTSigningKey:  getenv("ISSUER_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:      getenv("ISSUER_JWT_ISSUER", "anchorcred"),
		JWTAudience:    getenv("ISSUER_JWT_AUDIENCE", "anchorcred-issuers"),
		HashScheme:     getenv("HASH_SCHEME", "sha2-256"),
		SchemaDir:      os.Getenv("SCHEMA_DIR"),
		Ledger: LedgerConfig{
			Backend:     getenv("LEDGER_BACKEND", LedgerMemory),
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: getenv("AUDIT_TOPIC", "credential-audit"),
		},
	}

	var err error
	if cfg.SchemaCacheTTL, err = durationEnv("SCHEMA_CACHE_TTL", 10*time.Minute); err != nil {
		return Server{}, err
	}
	if cfg.SchemaCacheMax, err = intEnv("SCHEMA_CACHE_SIZE", 256); err != nil {
		return Server{}, err
	}
	if cfg.Ledger.FinalizeMaxElapsed, err = durationEnv("FINALIZE_MAX_ELAPSED", 30*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Ledger.CacheTTL, err = durationEnv("LEDGER_CACHE_TTL", time.Hour); err != nil {
		return Server{}, err
	}
	if cfg.Redis.PoolSize, err = intEnv("REDIS_POOL_SIZE", 10); err != nil {
		return Server{}, err
	}
	if cfg.Redis.MinIdleConns, err = intEnv("REDIS_MIN_IDLE_CONNS", 2); err != nil {
		return Server{}, err
	}
	if cfg.Redis.DialTimeout, err = durationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Redis.ReadTimeout, err = durationEnv("REDIS_READ_TIMEOUT", 3*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Redis.WriteTimeout, err = durationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second); err != nil {
		return Server{}, err
	}
	partitions, err := intEnv("AUDIT_TOPIC_PARTITIONS", 3)
	if err != nil {
		return Server{}, err
	}
	cfg.Kafka.TopicPartitions = int32(partitions)
	replication, err := intEnv("AUDIT_TOPIC_REPLICATION", 1)
	if err != nil {
		return Server{}, err
	}
	cfg.Kafka.ReplicationFactor = int16(replication)
	if cfg.Verification.MaxDelegationDepth, err = intEnv("MAX_DELEGATION_DEPTH", 32); err != nil {
		return Server{}, err
	}
	cfg.Verification.CheckLegitimations = os.Getenv("CHECK_LEGITIMATIONS") == "true"
	cfg.Verification.RequireNotRevoked = os.Getenv("REQUIRE_NOT_REVOKED") == "true"

	switch cfg.Ledger.Backend {
	case LedgerMemory:
	case LedgerPostgres:
		if cfg.Ledger.DatabaseURL == "" {
			return Server{}, fmt.Errorf("DATABASE_URL is required for the %s ledger backend", LedgerPostgres)
		}
	default:
		return Server{}, fmt.Errorf("unknown LEDGER_BACKEND %q", cfg.Ledger.Backend)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
