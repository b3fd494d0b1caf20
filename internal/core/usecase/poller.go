package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/enrichd/enrichd/internal/core/domain"
	"github.com/enrichd/enrichd/internal/core/ports"
)

// DocumentProcessor runs the per-document enrichment pipeline.
type DocumentProcessor interface {
	Process(ctx context.Context, doc *domain.Document) error
}

// PollObserver receives poll-cycle outcomes for metrics. All methods must be
// safe for a nil receiver check by the Poller itself.
type PollObserver interface {
	CycleCompleted(candidates int, err error)
	DocumentProcessed(duration time.Duration, err error)
	DocumentSkipped()
}

// Poller discovers unprocessed documents and drives each through the
// enrichment pipeline, one at a time, newest first. It is the single active
// poller for the process: started once, never restarted.
type Poller struct {
	documents   ports.DocumentRepository
	enrichments ports.EnrichmentRepository
	processor   DocumentProcessor
	interval    time.Duration
	cooldown    time.Duration
	observer    PollObserver
}

func NewPoller(
	documents ports.DocumentRepository,
	enrichments ports.EnrichmentRepository,
	processor DocumentProcessor,
	interval, cooldown time.Duration,
	observer PollObserver,
) *Poller {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if cooldown <= 0 {
		cooldown = 10 * time.Second
	}
	return &Poller{
		documents:   documents,
		enrichments: enrichments,
		processor:   processor,
		interval:    interval,
		cooldown:    cooldown,
		observer:    observer,
	}
}

// Run loops until ctx is cancelled. A cycle that cannot even list
// candidates sleeps the longer cooldown before retrying; a steady-state
// cycle sleeps the poll interval. Per-document failures never abort the
// cycle or the loop.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("enrichment poller started", "interval", p.interval, "cooldown", p.cooldown)
	for {
		wait := p.interval
		if err := p.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("poll cycle failed", "error", err)
			wait = p.cooldown
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("enrichment poller stopped")
			return
		case <-timer.C:
		}
	}
}

// RunCycle performs one full discovery pass. It returns an error only when
// the candidate list itself cannot be fetched; everything below that is
// isolated per document.
func (p *Poller) RunCycle(ctx context.Context) error {
	docs, err := p.documents.ListUnprocessed(ctx)
	if err != nil {
		if p.observer != nil {
			p.observer.CycleCompleted(0, err)
		}
		return err
	}

	for i := range docs {
		doc := &docs[i]
		if ctx.Err() != nil {
			break
		}

		exists, err := p.enrichments.ExistsForDocument(ctx, doc.ID)
		if err != nil {
			slog.Error("enrichment existence check failed", "document_id", doc.ID, "error", err)
			continue
		}
		if exists {
			// Crashed mid-write on a prior cycle, or the flag update was
			// lost. The result row wins; never reprocess.
			slog.Debug("skipping document with existing enrichment", "document_id", doc.ID)
			if p.observer != nil {
				p.observer.DocumentSkipped()
			}
			continue
		}

		start := time.Now()
		procErr := p.processor.Process(ctx, doc)
		if p.observer != nil {
			p.observer.DocumentProcessed(time.Since(start), procErr)
		}
		if procErr != nil {
			slog.Error("document enrichment failed",
				"document_id", doc.ID,
				"filename", doc.Filename,
				"error", procErr,
			)
			continue
		}
		slog.Info("document enriched",
			"document_id", doc.ID,
			"filename", doc.Filename,
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
		)
	}

	if p.observer != nil {
		p.observer.CycleCompleted(len(docs), nil)
	}
	return nil
}
