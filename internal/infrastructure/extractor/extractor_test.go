package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/enrichd/enrichd/internal/core/domain"
)

type fakePageSource struct {
	pages  []string
	broken map[int]bool
}

func (s *fakePageSource) NumPages() int { return len(s.pages) }

func (s *fakePageSource) PageText(n int) (string, error) {
	if s.broken[n] {
		return "", fmt.Errorf("page %d: malformed content stream", n)
	}
	return s.pages[n-1], nil
}

func TestPDFExtractSkipsFailingPages(t *testing.T) {
	e := &PDFExtractor{open: func([]byte) (pageSource, error) {
		return &fakePageSource{
			pages:  []string{"page one", "page two", "page three"},
			broken: map[int]bool{2: true},
		}, nil
	}}

	text, err := e.Extract(context.Background(), []byte("%PDF"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "page one\npage three" {
		t.Fatalf("Extract() = %q, want surviving pages joined by newline", text)
	}
}

func TestPDFExtractUnreadableDocument(t *testing.T) {
	e := &PDFExtractor{open: func([]byte) (pageSource, error) {
		return nil, errors.New("not a pdf")
	}}

	_, err := e.Extract(context.Background(), []byte("garbage"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSheetExtractFlattensRows(t *testing.T) {
	wb := excelize.NewFile()
	if err := wb.SetSheetRow("Sheet1", "A1", &[]any{"item", "price"}); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}
	if err := wb.SetSheetRow("Sheet1", "A2", &[]any{"widget", 42}); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}
	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	text, err := NewSheetExtractor().Extract(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "item\tprice\nwidget\t42" {
		t.Fatalf("Extract() = %q", text)
	}
}

func TestPlainTextRejectsInvalidUTF8(t *testing.T) {
	_, err := NewPlainTextExtractor().Extract(context.Background(), []byte{0xff, 0xfe, 0x00})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRegistryRejectsUnsupportedType(t *testing.T) {
	_, err := NewRegistry().Extract(context.Background(), "image/png", []byte{0x89, 0x50})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRegistryDispatchesTextWithParameters(t *testing.T) {
	text, err := NewRegistry().Extract(context.Background(), "text/plain; charset=utf-8", []byte("hello"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "hello" {
		t.Fatalf("Extract() = %q", text)
	}
}
