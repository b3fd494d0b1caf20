package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/enrichd/enrichd/internal/core/domain"
	"github.com/enrichd/enrichd/internal/core/ports"
)

// SummaryMaxChars bounds the persisted summary length.
const SummaryMaxChars = 10000

type EnrichDocumentUseCase struct {
	enrichments ports.EnrichmentRepository
	documents   ports.DocumentRepository
	storage     ports.ObjectStorage
	extractor   ports.TextExtractor
	enricher    ports.Enricher
}

func NewEnrichDocumentUseCase(
	documents ports.DocumentRepository,
	enrichments ports.EnrichmentRepository,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	enricher ports.Enricher,
) *EnrichDocumentUseCase {
	return &EnrichDocumentUseCase{
		enrichments: enrichments,
		documents:   documents,
		storage:     storage,
		extractor:   extractor,
		enricher:    enricher,
	}
}

// Process drives one document through fetch, extract, enrich and persist.
// Any error leaves the document with processed=false so the next poll cycle
// retries it. A failed processed-flag update after a successful result
// insert is logged but not returned: the result row is the completion
// signal, and the existence check keeps the document from being redone.
func (uc *EnrichDocumentUseCase) Process(ctx context.Context, doc *domain.Document) error {
	data, err := uc.fetchBytes(ctx, doc)
	if err != nil {
		return err
	}

	text, err := uc.extractor.Extract(ctx, doc.MimeType, data)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	result, err := uc.enricher.Enrich(ctx, text, doc.Questions)
	if err != nil {
		return fmt.Errorf("enrich document: %w", err)
	}

	enr := &domain.Enrichment{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Model:      uc.enricher.Model(),
		Summary:    truncate(result.Summary, SummaryMaxChars),
		QA:         result.QA,
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.enrichments.Create(ctx, enr); err != nil {
		return fmt.Errorf("persist enrichment: %w", err)
	}

	if err := uc.documents.MarkProcessed(ctx, doc.ID); err != nil {
		slog.Warn("processed flag update failed after enrichment insert",
			"document_id", doc.ID,
			"enrichment_id", enr.ID,
			"error", err,
		)
	}
	return nil
}

func (uc *EnrichDocumentUseCase) fetchBytes(ctx context.Context, doc *domain.Document) ([]byte, error) {
	reader, err := uc.storage.Open(ctx, doc.StorageKey())
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	return data, nil
}

// truncate cuts s to at most max bytes without splitting a multibyte rune;
// an invalid-UTF-8 cut would be rejected by the TEXT column on persist.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
