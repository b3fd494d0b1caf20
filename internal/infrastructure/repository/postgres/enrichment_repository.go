package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/enrichd/enrichd/internal/core/domain"
)

type EnrichmentRepository struct {
	db      *sql.DB
	queries Queries
}

func NewEnrichmentRepository(db *sql.DB, queries Queries) *EnrichmentRepository {
	return &EnrichmentRepository{db: db, queries: queries.withDefaults()}
}

func (r *EnrichmentRepository) Create(ctx context.Context, enr *domain.Enrichment) error {
	qaJSON, err := json.Marshal(enr.QA)
	if err != nil {
		return fmt.Errorf("marshal qa pairs: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO enrichments (id, document_id, model, summary, qa, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`,
		enr.ID, enr.DocumentID, enr.Model, enr.Summary, qaJSON, enr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert enrichment: %w", err)
	}
	return nil
}

func (r *EnrichmentRepository) GetByDocumentID(ctx context.Context, documentID string) (*domain.Enrichment, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, document_id, model, summary, qa, created_at
FROM enrichments
WHERE document_id = $1
`, documentID)

	var enr domain.Enrichment
	var qaRaw []byte
	err := row.Scan(&enr.ID, &enr.DocumentID, &enr.Model, &enr.Summary, &qaRaw, &enr.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrEnrichmentNotFound, "get by document id", fmt.Errorf("document %q", documentID))
		}
		return nil, fmt.Errorf("scan enrichment: %w", err)
	}
	if err := json.Unmarshal(qaRaw, &enr.QA); err != nil {
		return nil, fmt.Errorf("unmarshal qa pairs: %w", err)
	}
	return &enr, nil
}

// ExistsForDocument is the duplicate-result check the poll cycle runs before
// handing a document to the pipeline.
func (r *EnrichmentRepository) ExistsForDocument(ctx context.Context, documentID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, r.queries.FetchExistingResult, documentID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check existing enrichment: %w", err)
	}
	return true, nil
}
