package extractor

import (
	"bytes"
	"context"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/enrichd/enrichd/internal/core/domain"
)

// SheetExtractor flattens a workbook into plain text, one sheet after
// another. A sheet whose rows cannot be read is skipped so one broken sheet
// does not fail the whole workbook.
type SheetExtractor struct{}

func NewSheetExtractor() *SheetExtractor {
	return &SheetExtractor{}
}

func (e *SheetExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract workbook", err)
	}
	defer wb.Close()

	var b strings.Builder
	for _, sheet := range wb.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := wb.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if line == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(line)
		}
	}
	return b.String(), nil
}
