package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/enrichd/enrichd/internal/core/domain"
	"github.com/enrichd/enrichd/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
}

func NewIngestDocumentUseCase(repo ports.DocumentRepository, storage ports.ObjectStorage) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
	}
}

// Upload stores the document bytes under <product_id>/<filename> and inserts
// the metadata row with processed=false. The polling pipeline picks the
// document up on its next cycle; nothing is enriched synchronously.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	productID, filename, mimeType string,
	questions []string,
	body io.Reader,
) (*domain.Document, error) {
	productID = strings.TrimSpace(productID)
	if _, err := uuid.Parse(productID); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("product id must be a UUID"))
	}
	name := sanitizeFilename(filename)
	storageKey := productID + "/" + name

	counter := &countingReader{r: body}
	if err := uc.storage.Save(ctx, storageKey, counter); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	if questions == nil {
		questions = []string{}
	}
	doc := &domain.Document{
		ID:         uuid.NewString(),
		ProductID:  productID,
		Filename:   name,
		MimeType:   mimeType,
		FileSize:   counter.n,
		StorageURL: storageKey,
		Questions:  questions,
		Processed:  false,
		CreatedAt:  time.Now().UTC(),
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}
	return doc, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
