package extractor

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/enrichd/enrichd/internal/core/domain"
)

// PlainTextExtractor passes text payloads through after validating the
// encoding, so binary garbage uploaded under a text MIME type is rejected
// before it reaches the language model.
type PlainTextExtractor struct{}

func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

func (e *PlainTextExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text",
			errors.New("payload is not valid UTF-8"))
	}
	return string(data), nil
}
