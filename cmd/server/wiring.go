package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/twmb/franz-go/pkg/kgo"

	"anchorcred/internal/credential/anchor"
	"anchorcred/internal/credential/digest"
	"anchorcred/internal/credential/handler"
	"anchorcred/internal/credential/issuer"
	credmetrics "anchorcred/internal/credential/metrics"
	"anchorcred/internal/credential/models"
	"anchorcred/internal/credential/ports"
	"anchorcred/internal/credential/service"
	credstore "anchorcred/internal/credential/store"
	"anchorcred/internal/credential/verifier"
	jwttoken "anchorcred/internal/jwt_token"
	"anchorcred/internal/ledger/cache"
	"anchorcred/internal/ledger/memory"
	"anchorcred/internal/ledger/postgres"
	"anchorcred/internal/platform/config"
	"anchorcred/internal/platform/metrics"
	redisclient "anchorcred/internal/platform/redis"
	"anchorcred/internal/schema"
	"anchorcred/pkg/platform/audit"
	"anchorcred/pkg/platform/audit/publisher"
	kafkapub "anchorcred/pkg/platform/audit/publishers/kafka"
	auditmemory "anchorcred/pkg/platform/audit/store/memory"
	"anchorcred/pkg/platform/audit/worker"
	"anchorcred/pkg/platform/middleware/metadata"
	"anchorcred/pkg/platform/middleware/request"
	"anchorcred/pkg/platform/middleware/requesttime"
)

const devGenesisID = "anchorcred-dev"

// ledgerBackend is what the server needs from a ledger adapter.
type ledgerBackend interface {
	ports.LedgerReader
	ports.LedgerWriter
}

type app struct {
	router  http.Handler
	closers []func() error
	// drain flushes queued audit events before exit.
	drain func(ctx context.Context)
}

func (a *app) close(log *slog.Logger) {
	if a.drain != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.drain(ctx)
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn("failed to release resource", "error", err)
		}
	}
}

func newTokenService(cfg config.Server) *jwttoken.JWTService {
	return jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
}

func build(ctx context.Context, cfg config.Server, log *slog.Logger) (*app, error) {
	a := &app{}

	ledger, db, err := openLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if db != nil {
		a.closers = append(a.closers, db.Close)
	}

	store, err := openStore(ctx, db)
	if err != nil {
		a.close(log)
		return nil, err
	}

	var reader ports.LedgerReader = ledger
	rc, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		a.close(log)
		return nil, err
	}
	if rc != nil {
		a.closers = append(a.closers, rc.Close)
		reader = cache.New(ledger, rc, cache.WithTTL(cfg.Ledger.CacheTTL), cache.WithLogger(log))
		log.Info("ledger read cache enabled", "ttl", cfg.Ledger.CacheTTL)
	}

	validator, err := openSchemas(cfg, log)
	if err != nil {
		a.close(log)
		return nil, err
	}

	scheme, err := models.ParseHashScheme(cfg.HashScheme)
	if err != nil {
		a.close(log)
		return nil, err
	}
	builder, err := digest.NewBuilder(digest.WithScheme(scheme))
	if err != nil {
		a.close(log)
		return nil, err
	}
	iss, err := issuer.New(builder, reader)
	if err != nil {
		a.close(log)
		return nil, err
	}
	resolver, err := anchor.New(reader, anchor.WithLogger(log))
	if err != nil {
		a.close(log)
		return nil, err
	}
	ver, err := verifier.New(resolver)
	if err != nil {
		a.close(log)
		return nil, err
	}

	sink, err := openAuditSink(ctx, cfg, log, a)
	if err != nil {
		a.close(log)
		return nil, err
	}
	auditor := publisher.New(sink, publisher.WithLogger(log), publisher.WithMetrics(publisher.NewMetrics()))

	svc, err := service.New(iss, ver, ledger, store,
		service.WithLogger(log),
		service.WithMetrics(credmetrics.New()),
		service.WithAuditPublisher(auditor),
		service.WithSchemaValidator(validator),
		service.WithFinalizeMaxElapsed(cfg.Ledger.FinalizeMaxElapsed),
		service.WithVerifyOptions(verifier.Options{
			MaxDelegationDepth: cfg.Verification.MaxDelegationDepth,
			CheckLegitimations: cfg.Verification.CheckLegitimations,
			RequireNotRevoked:  cfg.Verification.RequireNotRevoked,
		}),
	)
	if err != nil {
		a.close(log)
		return nil, err
	}

	httpMetrics := metrics.New()
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(httpMetrics.Instrument)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler.New(svc, log, newTokenService(cfg)).Register(r)
	a.router = r
	return a, nil
}

func openLedger(ctx context.Context, cfg config.Server) (ledgerBackend, *sql.DB, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerPostgres:
		db, err := postgres.Open(ctx, cfg.Ledger.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return postgres.New(db), db, nil
	default:
		return memory.New(memory.WithGenesisID(devGenesisID)), nil, nil
	}
}

func openStore(ctx context.Context, db *sql.DB) (service.Store, error) {
	if db == nil {
		return credstore.NewInMemoryStore(), nil
	}
	store := credstore.NewPostgres(db)
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate credential store: %w", err)
	}
	return store, nil
}

func openSchemas(cfg config.Server, log *slog.Logger) (*schema.Validator, error) {
	registry := schema.NewRegistry()
	if cfg.SchemaDir != "" {
		n, err := registry.LoadDir(cfg.SchemaDir)
		if err != nil {
			return nil, fmt.Errorf("load schemas: %w", err)
		}
		log.Info("schemas loaded", "dir", cfg.SchemaDir, "count", n)
	}
	loader := schema.NewCachedLoader(registry, cfg.SchemaCacheMax, cfg.SchemaCacheTTL)
	return schema.NewValidator(loader), nil
}

// openAuditSink keeps events in memory unless Kafka brokers are configured.
// With Kafka, events are queued for a background worker; events the queue
// cannot take land in the in-memory store.
func openAuditSink(ctx context.Context, cfg config.Server, log *slog.Logger, a *app) (publisher.Sink, error) {
	fallback := auditmemory.NewInMemoryStore()
	if len(cfg.Kafka.Brokers) == 0 {
		return fallback, nil
	}

	client, err := kgo.NewClient(kgo.SeedBrokers(cfg.Kafka.Brokers...))
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	a.closers = append(a.closers, func() error {
		client.Close()
		return nil
	})
	if err := kafkapub.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic, cfg.Kafka.TopicPartitions, cfg.Kafka.ReplicationFactor); err != nil {
		return nil, err
	}
	kp, err := kafkapub.New(client, cfg.Kafka.AuditTopic, kafkapub.WithLogger(log))
	if err != nil {
		return nil, err
	}

	queue, inbox := worker.NewChannelPublisher(4096, func(e audit.Event) {
		log.Warn("audit queue full, keeping event in memory", "action", e.Action, "credential_id", e.CredentialID)
		_ = fallback.Append(context.Background(), e)
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.NewWorker(kp, inbox, log).Run(context.Background())
	}()
	a.drain = func(ctx context.Context) {
		queue.Close()
		select {
		case <-done:
		case <-ctx.Done():
			log.Warn("audit queue not drained before exit")
		}
	}
	log.Info("kafka audit sink enabled", "topic", cfg.Kafka.AuditTopic)
	return queue, nil
}
