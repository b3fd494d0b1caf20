package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/enrichd/enrichd/internal/core/domain"
)

type AuditLogRepository struct {
	db      *sql.DB
	queries Queries
}

func NewAuditLogRepository(db *sql.DB, queries Queries) *AuditLogRepository {
	return &AuditLogRepository{db: db, queries: queries.withDefaults()}
}

func (r *AuditLogRepository) Get(ctx context.Context, userID, filename string) (*domain.AuditRecord, error) {
	row := r.db.QueryRowContext(ctx, r.queries.FetchAuditLog, filename, userID)

	var rec domain.AuditRecord
	var eventsRaw []byte
	err := row.Scan(
		&rec.UserID, &rec.UserName, &rec.Filename, &rec.DocumentID,
		&rec.EnrichmentID, &eventsRaw, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrAuditLogNotFound, "get audit record",
				fmt.Errorf("user %q filename %q", userID, filename))
		}
		return nil, fmt.Errorf("scan audit record: %w", err)
	}
	if err := json.Unmarshal(eventsRaw, &rec.Events); err != nil {
		return nil, fmt.Errorf("unmarshal audit events: %w", err)
	}
	return &rec, nil
}

// Insert creates the record for a fresh (user_id, filename) key. When the
// key already exists the insert affects zero rows and domain.ErrDuplicateKey
// is returned so the merge can retry as an update; the competing event is
// never silently discarded.
func (r *AuditLogRepository) Insert(ctx context.Context, rec *domain.AuditRecord) error {
	eventsJSON, err := json.Marshal(rec.Events)
	if err != nil {
		return fmt.Errorf("marshal audit events: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO audit_log (user_id, user_name, filename, document_id, enrichment_id, events, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (user_id, filename) DO NOTHING
`,
		rec.UserID, rec.UserName, rec.Filename, rec.DocumentID,
		rec.EnrichmentID, eventsJSON, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert audit record rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDuplicateKey, "insert audit record",
			fmt.Errorf("user %q filename %q", rec.UserID, rec.Filename))
	}
	return nil
}

func (r *AuditLogRepository) UpdateEvents(ctx context.Context, userID, filename string, events []map[string]any, updatedAt time.Time) error {
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("marshal audit events: %w", err)
	}

	res, err := r.db.ExecContext(ctx, r.queries.UpdateAuditLog, eventsJSON, updatedAt, userID, filename)
	if err != nil {
		return fmt.Errorf("update audit record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update audit record rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrAuditLogNotFound, "update audit record",
			fmt.Errorf("user %q filename %q", userID, filename))
	}
	return nil
}
