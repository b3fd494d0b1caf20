package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/enrichd/enrichd/internal/core/domain"
	"github.com/enrichd/enrichd/internal/core/ports"
)

// AuditMergeUseCase reconciles one interaction event into the per-(user,
// filename) audit record. It is invoked from a queue consumer, detached from
// the request that produced the event; callers never block on it.
type AuditMergeUseCase struct {
	audits ports.AuditLogRepository
	clock  func() time.Time
}

func NewAuditMergeUseCase(audits ports.AuditLogRepository) *AuditMergeUseCase {
	return &AuditMergeUseCase{
		audits: audits,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// RecordInteraction appends the event to the existing record for
// (user_id, filename), or inserts a fresh single-event record. Two
// concurrent first-time calls for the same key both attempt the insert; the
// loser observes domain.ErrDuplicateKey and retries as an update, so neither
// event is silently dropped. Concurrent appends to an already-existing
// record remain last-writer-wins.
func (uc *AuditMergeUseCase) RecordInteraction(ctx context.Context, event domain.InteractionEvent) error {
	if event.UserID == "" || event.Filename == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record interaction",
			fmt.Errorf("user_id and filename are required"))
	}
	payload := normalizedEvent(event)

	rec, err := uc.audits.Get(ctx, event.UserID, event.Filename)
	switch {
	case err == nil && len(rec.Events) > 0:
		return uc.append(ctx, rec, payload)
	case err == nil || domain.IsKind(err, domain.ErrAuditLogNotFound):
		return uc.insert(ctx, event, payload)
	default:
		return fmt.Errorf("fetch audit record: %w", err)
	}
}

func (uc *AuditMergeUseCase) append(ctx context.Context, rec *domain.AuditRecord, payload map[string]any) error {
	events := append(rec.Events, payload)
	if err := uc.audits.UpdateEvents(ctx, rec.UserID, rec.Filename, events, uc.clock()); err != nil {
		return fmt.Errorf("update audit record: %w", err)
	}
	return nil
}

func (uc *AuditMergeUseCase) insert(ctx context.Context, event domain.InteractionEvent, payload map[string]any) error {
	now := uc.clock()
	rec := &domain.AuditRecord{
		UserID:       event.UserID,
		UserName:     event.UserName,
		Filename:     event.Filename,
		DocumentID:   event.DocumentID,
		EnrichmentID: event.EnrichmentID,
		Events:       []map[string]any{payload},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := uc.audits.Insert(ctx, rec)
	if err == nil {
		return nil
	}
	if !domain.IsKind(err, domain.ErrDuplicateKey) {
		return fmt.Errorf("insert audit record: %w", err)
	}

	// Lost the insert race, or the key existed with an empty event
	// sequence. Re-read and merge as an update instead.
	existing, getErr := uc.audits.Get(ctx, event.UserID, event.Filename)
	if getErr != nil {
		return fmt.Errorf("refetch audit record after insert conflict: %w", getErr)
	}
	return uc.append(ctx, existing, payload)
}

func normalizedEvent(event domain.InteractionEvent) map[string]any {
	normalized, _ := NormalizeTimestamps(event.Event).(map[string]any)
	if normalized == nil {
		normalized = map[string]any{}
	}
	return normalized
}

// NormalizeTimestamps walks maps and slices structurally and rewrites every
// time.Time leaf to its RFC3339 text form so stored events are uniformly
// serializable. All other leaves pass through unchanged.
func NormalizeTimestamps(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = NormalizeTimestamps(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = NormalizeTimestamps(val)
		}
		return out
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(time.RFC3339)
	default:
		return v
	}
}
