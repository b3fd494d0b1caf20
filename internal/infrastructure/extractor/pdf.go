package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/enrichd/enrichd/internal/core/domain"
)

// pageSource abstracts a paginated text document. The production
// implementation wraps github.com/ledongthuc/pdf.
type pageSource interface {
	NumPages() int
	PageText(n int) (string, error)
}

// PDFExtractor pulls text page by page. A page whose text cannot be decoded
// is skipped rather than failing the whole document; scanned or partially
// corrupt files still yield whatever text the remaining pages carry.
type PDFExtractor struct {
	open func(data []byte) (pageSource, error)
}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{open: openPDF}
}

func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	src, err := e.open(data)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract pdf", err)
	}

	parts := make([]string, 0, src.NumPages())
	for n := 1; n <= src.NumPages(); n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := src.PageText(n)
		if err != nil {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), nil
}

type pdfPageSource struct {
	reader *pdf.Reader
}

func openPDF(data []byte) (pageSource, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return &pdfPageSource{reader: reader}, nil
}

func (s *pdfPageSource) NumPages() int { return s.reader.NumPage() }

func (s *pdfPageSource) PageText(n int) (string, error) {
	page := s.reader.Page(n)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d is null", n)
	}
	return page.GetPlainText(nil)
}
