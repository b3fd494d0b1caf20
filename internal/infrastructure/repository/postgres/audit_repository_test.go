package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/enrichd/enrichd/internal/core/domain"
)

func newAuditRepoWithMock(t *testing.T) (*AuditLogRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewAuditLogRepository(db, Queries{}), mock, func() { _ = db.Close() }
}

func auditColumns() []string {
	return []string{"user_id", "user_name", "filename", "document_id", "enrichment_id", "events", "created_at", "updated_at"}
}

func TestAuditGetDecodesEvents(t *testing.T) {
	repo, mock, done := newAuditRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(auditColumns()).
		AddRow("user-1", "Alice", "report.pdf", "doc-1", "enr-1",
			[]byte(`[{"action":"download"},{"action":"view_summary"}]`), now, now)

	mock.ExpectQuery("FROM audit_log").
		WithArgs("report.pdf", "user-1").
		WillReturnRows(rows)

	rec, err := repo.Get(context.Background(), "user-1", "report.pdf")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(rec.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rec.Events))
	}
	if rec.Events[1]["action"] != "view_summary" {
		t.Fatalf("event order not preserved: %v", rec.Events)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAuditGetReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newAuditRepoWithMock(t)
	defer done()

	mock.ExpectQuery("FROM audit_log").
		WithArgs("report.pdf", "user-1").
		WillReturnRows(sqlmock.NewRows(auditColumns()))

	_, err := repo.Get(context.Background(), "user-1", "report.pdf")
	if !domain.IsKind(err, domain.ErrAuditLogNotFound) {
		t.Fatalf("expected ErrAuditLogNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAuditInsertConflictReturnsDuplicateKey(t *testing.T) {
	repo, mock, done := newAuditRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rec := &domain.AuditRecord{
		UserID:    "user-1",
		UserName:  "Alice",
		Filename:  "report.pdf",
		Events:    []map[string]any{{"action": "download"}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Insert(context.Background(), rec)
	if !domain.IsKind(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAuditUpdateEventsMissingRecord(t *testing.T) {
	repo, mock, done := newAuditRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE audit_log").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateEvents(context.Background(), "user-1", "report.pdf",
		[]map[string]any{{"action": "download"}}, time.Now().UTC())
	if !domain.IsKind(err, domain.ErrAuditLogNotFound) {
		t.Fatalf("expected ErrAuditLogNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
