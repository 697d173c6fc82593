package extraction

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Format is the declared format of an uploaded document
type Format string

const (
	FormatPDF       Format = "pdf"
	FormatWord      Format = "word"
	FormatPlainText Format = "plain_text"
)

// Extractor turns a document blob into plain text. Implementations must
// return an error value for unsupported or malformed bytes, never panic:
// the session manager aggregates per-document failures without aborting
// sibling documents.
type Extractor interface {
	ExtractText(ctx context.Context, blob []byte, format Format) (string, error)
}

// Error is a per-document extraction failure. It is non-fatal by design:
// the caller records it and continues with the remaining documents.
type Error struct {
	Format Format
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction failed (%s): %s", e.Format, e.Reason)
}

// Failure pairs a failed document with its reason, for surfacing partial
// results to the caller
type Failure struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// DetectFormat resolves the declared format from MIME type, falling back
// to the filename extension
func DetectFormat(filename, mimeType string) (Format, error) {
	switch mimeType {
	case "application/pdf":
		return FormatPDF, nil
	case "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return FormatWord, nil
	case "text/plain":
		return FormatPlainText, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF, nil
	case ".doc", ".docx":
		return FormatWord, nil
	case ".txt":
		return FormatPlainText, nil
	}

	return "", fmt.Errorf("unsupported document type: %s", filename)
}

// decodePlainText decodes a text blob as UTF-8, falling back to Latin-1
// for legacy uploads
func decodePlainText(blob []byte) string {
	if utf8.Valid(blob) {
		return string(blob)
	}
	runes := make([]rune, len(blob))
	for i, b := range blob {
		runes[i] = rune(b)
	}
	return string(runes)
}

// CleanText normalizes line breaks, strips control characters and
// collapses runs of whitespace inside lines. Extracted text feeds prompts
// directly, so cleaning must be deterministic.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}

	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
