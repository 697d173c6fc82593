package extraction

import (
	"context"
	"strings"
)

// LocalExtractor handles plain-text documents in process. Binary formats
// need the remote extraction service; for those it returns an Error value
// so uploads degrade per-document instead of failing outright. Used as
// the default backend in development, mirroring local blob storage.
type LocalExtractor struct{}

// NewLocalExtractor creates a new local extractor
func NewLocalExtractor() *LocalExtractor {
	return &LocalExtractor{}
}

// ExtractText implements Extractor
func (e *LocalExtractor) ExtractText(ctx context.Context, blob []byte, format Format) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch format {
	case FormatPlainText:
		if looksBinary(blob) {
			return "", &Error{Format: format, Reason: "binary content declared as plain text"}
		}
		text := CleanText(decodePlainText(blob))
		if text == "" {
			return "", &Error{Format: format, Reason: "document contains no text"}
		}
		return text, nil
	case FormatPDF, FormatWord:
		return "", &Error{Format: format, Reason: "binary formats require the remote extraction service"}
	default:
		return "", &Error{Format: format, Reason: "unknown document format"}
	}
}

var _ Extractor = (*LocalExtractor)(nil)

// looksBinary is a cheap sniff used to reject mislabeled uploads before
// attempting a plain-text decode
func looksBinary(blob []byte) bool {
	limit := len(blob)
	if limit > 512 {
		limit = 512
	}
	for i := 0; i < limit; i++ {
		if blob[i] == 0 {
			return true
		}
	}
	return strings.HasPrefix(string(blob), "%PDF-")
}
