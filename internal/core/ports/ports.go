package ports

import (
	"context"
	"io"
	"time"

	"github.com/enrichd/enrichd/internal/core/domain"
)

// DocumentRepository persists and reads document metadata.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByFilename(ctx context.Context, filename string) (*domain.Document, error)
	// ListUnprocessed returns documents with processed=false ordered by
	// creation time descending (newest first).
	ListUnprocessed(ctx context.Context) ([]domain.Document, error)
	MarkProcessed(ctx context.Context, id string) error
}

// EnrichmentRepository persists enrichment results, at most one per document.
type EnrichmentRepository interface {
	Create(ctx context.Context, enr *domain.Enrichment) error
	GetByDocumentID(ctx context.Context, documentID string) (*domain.Enrichment, error)
	ExistsForDocument(ctx context.Context, documentID string) (bool, error)
}

// AuditLogRepository stores per-(user, filename) interaction histories.
// Insert reports domain.ErrDuplicateKey when the (user_id, filename) key
// already exists so the caller can retry the merge as an update.
type AuditLogRepository interface {
	Get(ctx context.Context, userID, filename string) (*domain.AuditRecord, error)
	Insert(ctx context.Context, rec *domain.AuditRecord) error
	UpdateEvents(ctx context.Context, userID, filename string, events []map[string]any, updatedAt time.Time) error
}

// ObjectStorage stores source document bytes.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor extracts plain text from raw document bytes.
type TextExtractor interface {
	Extract(ctx context.Context, mimeType string, data []byte) (string, error)
}

// Enricher produces a summary and answers for extracted text.
type Enricher interface {
	Enrich(ctx context.Context, text string, questions []string) (domain.EnrichmentResult, error)
	Model() string
}

// InteractionQueue transports interaction events from read endpoints to the
// audit merge worker.
type InteractionQueue interface {
	PublishInteraction(ctx context.Context, event domain.InteractionEvent) error
	SubscribeInteractions(ctx context.Context, handler func(context.Context, domain.InteractionEvent) error) error
}
