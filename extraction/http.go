package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	maxRetries     = 3
	initialBackoff = time.Second
)

// HTTPExtractor delegates extraction to a remote document extraction
// service. Plain text is still handled locally so a tiny .txt upload never
// needs a network round trip.
type HTTPExtractor struct {
	endpoint string
	client   *http.Client
	local    *LocalExtractor
}

// NewHTTPExtractor creates an extractor backed by the service at endpoint
func NewHTTPExtractor(endpoint string, timeout time.Duration) *HTTPExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPExtractor{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		local:    NewLocalExtractor(),
	}
}

type extractRequest struct {
	Format  string `json:"format"`
	Content string `json:"content"` // base64
}

type extractResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// ExtractText implements Extractor
func (e *HTTPExtractor) ExtractText(ctx context.Context, blob []byte, format Format) (string, error) {
	if format == FormatPlainText {
		return e.local.ExtractText(ctx, blob, format)
	}

	reqBody := extractRequest{
		Format:  string(format),
		Content: base64.StdEncoding.EncodeToString(blob),
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, "POST", e.endpoint, bytes.NewBuffer(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			if attempt == maxRetries-1 {
				return "", &Error{Format: format, Reason: fmt.Sprintf("extraction service unreachable: %v", err)}
			}
			continue
		}

		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		// 4xx means the document itself is bad; retrying won't help
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			var apiResp extractResponse
			_ = json.Unmarshal(bodyBytes, &apiResp)
			reason := apiResp.Error
			if reason == "" {
				reason = fmt.Sprintf("extraction service rejected document: %d", resp.StatusCode)
			}
			return "", &Error{Format: format, Reason: reason}
		}

		if resp.StatusCode != http.StatusOK {
			if attempt == maxRetries-1 {
				return "", &Error{Format: format, Reason: fmt.Sprintf("extraction service error: %d", resp.StatusCode)}
			}
			continue
		}

		var apiResp extractResponse
		if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
			if attempt == maxRetries-1 {
				return "", fmt.Errorf("failed to decode response: %w", err)
			}
			continue
		}
		if apiResp.Error != "" {
			return "", &Error{Format: format, Reason: apiResp.Error}
		}

		text := CleanText(apiResp.Text)
		if text == "" {
			return "", &Error{Format: format, Reason: "document contains no text"}
		}
		return text, nil
	}

	return "", &Error{Format: format, Reason: "extraction service unavailable"}
}

var _ Extractor = (*HTTPExtractor)(nil)
