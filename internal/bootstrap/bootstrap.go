// Package bootstrap is the composition root: it builds the shared
// dependency graph both binaries start from.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/enrichd/enrichd/internal/config"
	"github.com/enrichd/enrichd/internal/core/ports"
	"github.com/enrichd/enrichd/internal/core/usecase"
	"github.com/enrichd/enrichd/internal/infrastructure/extractor"
	"github.com/enrichd/enrichd/internal/infrastructure/llm/openai"
	"github.com/enrichd/enrichd/internal/infrastructure/queue/nats"
	"github.com/enrichd/enrichd/internal/infrastructure/repository/postgres"
	"github.com/enrichd/enrichd/internal/infrastructure/resilience"
	"github.com/enrichd/enrichd/internal/infrastructure/storage/localfs"
	s3storage "github.com/enrichd/enrichd/internal/infrastructure/storage/s3"
)

type App struct {
	Config config.Config

	Documents   ports.DocumentRepository
	Enrichments ports.EnrichmentRepository
	Audits      ports.AuditLogRepository
	Queue       ports.InteractionQueue

	IngestUC *usecase.IngestDocumentUseCase
	EnrichUC *usecase.EnrichDocumentUseCase
	AuditUC  *usecase.AuditMergeUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN, postgres.PoolOptions{
		MinConns: cfg.PostgresMinConns,
		MaxConns: cfg.PostgresMaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	documents := postgres.NewDocumentRepository(db, cfg.Queries)
	enrichments := postgres.NewEnrichmentRepository(db, cfg.Queries)
	audits := postgres.NewAuditLogRepository(db, cfg.Queries)

	storage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init interaction queue: %w", err)
	}

	enricher := openai.NewWithOptions(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, openai.Options{
		MaxInputChars:      cfg.OpenAIMaxInputChars,
		RequestsPerMinute:  cfg.OpenAIRequestsPerMinute,
		ResilienceExecutor: executor,
	})

	ingestUC := usecase.NewIngestDocumentUseCase(documents, storage)
	enrichUC := usecase.NewEnrichDocumentUseCase(documents, enrichments, storage, extractor.NewRegistry(), enricher)
	auditUC := usecase.NewAuditMergeUseCase(audits)

	return &App{
		Config: cfg,

		Documents:   documents,
		Enrichments: enrichments,
		Audits:      audits,
		Queue:       queue,

		IngestUC: ingestUC,
		EnrichUC: enrichUC,
		AuditUC:  auditUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "", "local":
		return localfs.New(cfg.StoragePath)
	case "s3":
		return s3storage.New(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (a *App) PollInterval() time.Duration {
	return time.Duration(a.Config.PollIntervalSeconds) * time.Second
}

func (a *App) PollCooldown() time.Duration {
	return time.Duration(a.Config.PollCooldownSeconds) * time.Second
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
