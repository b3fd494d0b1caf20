package ports

import (
	"context"
	"io"

	"github.com/enrichd/enrichd/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, productID, filename, mimeType string, questions []string, body io.Reader) (*domain.Document, error)
}

// InteractionRecorder merges one interaction event into the audit log.
type InteractionRecorder interface {
	RecordInteraction(ctx context.Context, event domain.InteractionEvent) error
}
