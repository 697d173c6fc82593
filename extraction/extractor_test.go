package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		mimeType string
		want     Format
	}{
		{"pdf by mime", "scan.bin", "application/pdf", FormatPDF},
		{"docx by mime", "x", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", FormatWord},
		{"doc by mime", "x", "application/msword", FormatWord},
		{"text by mime", "x", "text/plain", FormatPlainText},
		{"pdf by extension", "evidence.pdf", "application/octet-stream", FormatPDF},
		{"docx by extension", "brief.DOCX", "", FormatWord},
		{"txt by extension", "notes.txt", "", FormatPlainText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.filename, tt.mimeType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFormatUnsupported(t *testing.T) {
	_, err := DetectFormat("malware.exe", "application/octet-stream")
	assert.Error(t, err)

	_, err = DetectFormat("noextension", "")
	assert.Error(t, err)
}

func TestLocalExtractorPlainText(t *testing.T) {
	e := NewLocalExtractor()

	text, err := e.ExtractText(context.Background(), []byte("exhibit A\r\ncontract terms"), FormatPlainText)
	require.NoError(t, err)
	assert.Equal(t, "exhibit A\ncontract terms", text)
}

func TestLocalExtractorRejectsBinaryAsText(t *testing.T) {
	e := NewLocalExtractor()

	_, err := e.ExtractText(context.Background(), []byte{0x00, 0x01, 0x02}, FormatPlainText)
	var extErr *Error
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, FormatPlainText, extErr.Format)

	_, err = e.ExtractText(context.Background(), []byte("%PDF-1.7 ..."), FormatPlainText)
	assert.ErrorAs(t, err, &extErr)
}

func TestLocalExtractorEmptyDocument(t *testing.T) {
	e := NewLocalExtractor()

	_, err := e.ExtractText(context.Background(), []byte("   \n\t  "), FormatPlainText)
	var extErr *Error
	require.ErrorAs(t, err, &extErr)
	assert.Contains(t, extErr.Reason, "no text")
}

func TestLocalExtractorBinaryFormats(t *testing.T) {
	e := NewLocalExtractor()

	for _, format := range []Format{FormatPDF, FormatWord} {
		_, err := e.ExtractText(context.Background(), []byte("%PDF-1.7"), format)
		var extErr *Error
		require.ErrorAs(t, err, &extErr)
		assert.Equal(t, format, extErr.Format)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf normalized", "line one\r\nline two", "line one\nline two"},
		{"bare cr normalized", "line one\rline two", "line one\nline two"},
		{"control chars stripped", "abc\x00\x08def", "abcdef"},
		{"spaces collapsed", "too    many   spaces", "too many spaces"},
		{"outer whitespace trimmed", "  padded  \n", "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestDecodePlainTextLatin1Fallback(t *testing.T) {
	// 0xE9 is é in Latin-1 and invalid as standalone UTF-8
	got := decodePlainText([]byte{'c', 'a', 'f', 0xE9})
	assert.Equal(t, "café", got)
}
