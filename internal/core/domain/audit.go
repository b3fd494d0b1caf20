package domain

import "time"

// InteractionEvent is one user interaction with an enriched document,
// published by read endpoints and consumed by the audit merge worker.
// Event carries the payload to append: either a summary-view marker or a
// question/answer pair, plus an occurrence timestamp.
type InteractionEvent struct {
	UserID       string         `json:"user_id"`
	UserName     string         `json:"user_name"`
	Filename     string         `json:"filename"`
	DocumentID   string         `json:"document_id"`
	EnrichmentID string         `json:"enrichment_id"`
	Event        map[string]any `json:"event"`
}

// AuditRecord is the append-only interaction history for one
// (user, document filename) pair. Events are ordered by occurrence time.
type AuditRecord struct {
	UserID       string           `json:"user_id"`
	UserName     string           `json:"user_name"`
	Filename     string           `json:"filename"`
	DocumentID   string           `json:"document_id"`
	EnrichmentID string           `json:"enrichment_id"`
	Events       []map[string]any `json:"events"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}
