// Package extractor converts stored document payloads into plain text for
// downstream enrichment. Extraction is dispatched on the normalized MIME
// type; generic zip uploads are sniffed for OOXML markers before dispatch.
package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/enrichd/enrichd/internal/core/domain"
)

const (
	mimePDF  = "application/pdf"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeText = "text/plain"
)

// Registry routes extraction by MIME type.
type Registry struct {
	pdf   *PDFExtractor
	sheet *SheetExtractor
	plain *PlainTextExtractor
}

func NewRegistry() *Registry {
	return &Registry{
		pdf:   NewPDFExtractor(),
		sheet: NewSheetExtractor(),
		plain: NewPlainTextExtractor(),
	}
}

func (r *Registry) Extract(ctx context.Context, mimeType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch normalizeMimeType(mimeType, data) {
	case mimePDF:
		return r.pdf.Extract(ctx, data)
	case mimeXLSX:
		return r.sheet.Extract(ctx, data)
	case mimeText, "text/csv", "text/markdown":
		return r.plain.Extract(ctx, data)
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "extract",
			fmt.Errorf("unsupported mime type %q", mimeType))
	}
}

// normalizeMimeType strips parameters, lowercases, and resolves generic zip
// payloads to a concrete OOXML type where possible.
func normalizeMimeType(mimeType string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean != "application/zip" && clean != "application/octet-stream" {
		return clean
	}
	if mapped := sniffOOXML(data); mapped != "" {
		return mapped
	}
	return clean
}

func sniffOOXML(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		switch filepath.ToSlash(f.Name) {
		case "xl/workbook.xml":
			return mimeXLSX
		}
	}
	return ""
}
