package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/enrichd/enrichd/internal/core/domain"
)

func newDocumentRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewDocumentRepository(db, Queries{}), mock, func() { _ = db.Close() }
}

func documentColumns() []string {
	return []string{"id", "product_id", "filename", "mime_type", "file_size", "storage_url", "questions", "processed", "created_at"}
}

func TestListUnprocessedOrdersNewestFirst(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(documentColumns()).
		AddRow("doc-2", "prod-1", "b.pdf", "application/pdf", 20, "prod-1/b.pdf", []byte(`["q2"]`), false, now).
		AddRow("doc-1", "prod-1", "a.pdf", "application/pdf", 10, "prod-1/a.pdf", []byte(`["q1"]`), false, now.Add(-time.Hour))

	mock.ExpectQuery("SELECT id, product_id, filename").WillReturnRows(rows)

	docs, err := repo.ListUnprocessed(context.Background())
	if err != nil {
		t.Fatalf("ListUnprocessed() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != "doc-2" || docs[1].ID != "doc-1" {
		t.Fatalf("repository order not preserved: %s, %s", docs[0].ID, docs[1].ID)
	}
	if len(docs[0].Questions) != 1 || docs[0].Questions[0] != "q2" {
		t.Fatalf("questions not decoded: %v", docs[0].Questions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByFilenameReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, product_id, filename").
		WithArgs("missing.pdf").
		WillReturnRows(sqlmock.NewRows(documentColumns()))

	_, err := repo.GetByFilename(context.Background(), "missing.pdf")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkProcessedReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents SET processed").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkProcessed(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateInsertsQuestionsAsJSON(t *testing.T) {
	repo, mock, done := newDocumentRepoWithMock(t)
	defer done()

	doc := &domain.Document{
		ID:         "doc-1",
		ProductID:  "prod-1",
		Filename:   "a.pdf",
		MimeType:   "application/pdf",
		FileSize:   10,
		StorageURL: "prod-1/a.pdf",
		Questions:  []string{"What is the total?"},
		CreatedAt:  time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(doc.ID, doc.ProductID, doc.Filename, doc.MimeType, doc.FileSize,
			doc.StorageURL, []byte(`["What is the total?"]`), doc.Processed, doc.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListUnprocessedUsesConfiguredQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewDocumentRepository(db, Queries{
		FetchUnprocessed: "SELECT id, product_id, filename, mime_type, file_size, storage_url, questions, processed, created_at FROM documents_v2 WHERE processed = FALSE",
	})

	mock.ExpectQuery("FROM documents_v2").WillReturnRows(sqlmock.NewRows(documentColumns()))

	if _, err := repo.ListUnprocessed(context.Background()); err != nil {
		t.Fatalf("ListUnprocessed() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
