package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/enrichd/enrichd/internal/bootstrap"
	"github.com/enrichd/enrichd/internal/config"
	"github.com/enrichd/enrichd/internal/core/domain"
	"github.com/enrichd/enrichd/internal/core/usecase"
	"github.com/enrichd/enrichd/internal/observability/logging"
	"github.com/enrichd/enrichd/internal/observability/metrics"
)

// instrumentedProcessor tracks the in-flight gauge around each enrichment.
type instrumentedProcessor struct {
	inner   usecase.DocumentProcessor
	metrics *metrics.WorkerMetrics
}

func (p *instrumentedProcessor) Process(ctx context.Context, doc *domain.Document) error {
	p.metrics.StartDocument()
	defer p.metrics.FinishDocument()
	return p.inner.Process(ctx, doc)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logging.NewJSONLogger("enrichd-worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("enrichd-worker")

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		slog.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("worker metrics server error: %v", err)
		}
	}()

	poller := usecase.NewPoller(
		app.Documents,
		app.Enrichments,
		&instrumentedProcessor{inner: app.EnrichUC, metrics: workerMetrics},
		app.PollInterval(),
		app.PollCooldown(),
		workerMetrics,
	)

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Run(ctx)
	}()

	slog.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeInteractions(ctx, func(handlerCtx context.Context, event domain.InteractionEvent) error {
		mergeCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()

		mergeErr := app.AuditUC.RecordInteraction(mergeCtx, event)
		if mergeErr != nil {
			workerMetrics.RecordAuditMerge("error")
			return mergeErr
		}
		workerMetrics.RecordAuditMerge("merged")
		return nil
	})
	if err != nil {
		slog.Error("worker subscribe error", "error", err)
	}

	<-pollerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
