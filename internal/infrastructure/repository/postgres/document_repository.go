package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/enrichd/enrichd/internal/core/domain"
)

type DocumentRepository struct {
	db      *sql.DB
	queries Queries
}

func NewDocumentRepository(db *sql.DB, queries Queries) *DocumentRepository {
	return &DocumentRepository{db: db, queries: queries.withDefaults()}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	questionsJSON, err := json.Marshal(doc.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, product_id, filename, mime_type, file_size, storage_url, questions, processed, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		doc.ID, doc.ProductID, doc.Filename, doc.MimeType, doc.FileSize,
		doc.StorageURL, questionsJSON, doc.Processed, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByFilename(ctx context.Context, filename string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, product_id, filename, mime_type, file_size, storage_url, questions, processed, created_at
FROM documents
WHERE filename = $1
ORDER BY created_at DESC
LIMIT 1
`, filename)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get by filename", fmt.Errorf("filename %q", filename))
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) ListUnprocessed(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, r.queries.FetchUnprocessed)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unprocessed documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) MarkProcessed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents SET processed = TRUE WHERE id = $1
`, id)
	if err != nil {
		return fmt.Errorf("mark document processed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark document processed rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "mark processed", fmt.Errorf("id %q", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var questionsRaw []byte

	err := row.Scan(
		&doc.ID, &doc.ProductID, &doc.Filename, &doc.MimeType, &doc.FileSize,
		&doc.StorageURL, &questionsRaw, &doc.Processed, &doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if err := json.Unmarshal(questionsRaw, &doc.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	return &doc, nil
}
