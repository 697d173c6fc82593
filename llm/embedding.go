package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"
)

const (
	embeddingAPI       = "https://generativelanguage.googleapis.com/v1beta/models/gemini-embedding-001:embedContent"
	embeddingModel     = "models/gemini-embedding-001"
	EmbeddingDimension = 768
)

// Embedder produces vector embeddings for similarity indexing
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// GeminiEmbedder calls the Gemini embedding API directly over HTTP
type GeminiEmbedder struct {
	client *http.Client
}

// NewGeminiEmbedder creates a new embedding client
func NewGeminiEmbedder() *GeminiEmbedder {
	return &GeminiEmbedder{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type embeddingRequest struct {
	Model                string       `json:"model"`
	Content              contentInput `json:"content"`
	TaskType             string       `json:"task_type,omitempty"`
	OutputDimensionality int          `json:"output_dimensionality,omitempty"`
}

type contentInput struct {
	Parts []partInput `json:"parts"`
}

type partInput struct {
	Text string `json:"text"`
}

type embeddingResponse struct {
	Embedding embeddingData `json:"embedding"`
}

type embeddingData struct {
	Values []float64 `json:"values"`
}

// Embed implements Embedder. The returned vector is L2-normalized so
// cosine distance in the index behaves consistently.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	reqBody := embeddingRequest{
		Model: embeddingModel,
		Content: contentInput{
			Parts: []partInput{{Text: text}},
		},
		TaskType:             "RETRIEVAL_DOCUMENT",
		OutputDimensionality: EmbeddingDimension,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, "POST", embeddingAPI, bytes.NewBuffer(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", apiKey)

		resp, err := e.client.Do(req)
		if err != nil {
			if attempt == maxRetries-1 {
				return nil, fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, err)
			}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			var apiResp embeddingResponse
			if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
				resp.Body.Close()
				if attempt == maxRetries-1 {
					return nil, fmt.Errorf("failed to decode response: %w", err)
				}
				continue
			}
			resp.Body.Close()
			return normalize(apiResp.Embedding.Values), nil
		}

		resp.Body.Close()

		// Don't retry on 400 or 401 errors
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("API error: %d", resp.StatusCode)
		}

		if attempt == maxRetries-1 {
			return nil, fmt.Errorf("API error after %d attempts: %d", maxRetries, resp.StatusCode)
		}
	}

	return nil, fmt.Errorf("embedding request failed")
}

func normalize(embedding []float64) []float64 {
	norm := 0.0
	for _, v := range embedding {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range embedding {
			embedding[i] /= norm
		}
	}
	return embedding
}

var _ Embedder = (*GeminiEmbedder)(nil)
