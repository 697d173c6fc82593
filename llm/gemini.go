package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/generative-ai-go/genai"
)

const (
	defaultModel   = "gemini-2.5-flash"
	maxRetries     = 3
	initialBackoff = time.Second

	// Hard cap on prompt size before the API rejects the request outright.
	// Rough character estimate, same heuristic as prompt assembly upstream.
	maxPromptChars = 30000
)

// GeminiGenerator implements Generator on the Gemini API
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// GeminiOption is a functional option for GeminiGenerator
type GeminiOption func(*GeminiGenerator)

// GeminiWithModel overrides the default model name
func GeminiWithModel(model string) GeminiOption {
	return func(g *GeminiGenerator) {
		if model != "" {
			g.model = model
		}
	}
}

// NewGeminiGenerator creates a generator backed by the given client
func NewGeminiGenerator(client *genai.Client, opts ...GeminiOption) *GeminiGenerator {
	g := &GeminiGenerator{
		client: client,
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate implements Generator with retry and exponential backoff
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("gemini client not set")
	}

	if len(prompt) > maxPromptChars {
		log.Printf("Warning: Prompt too long (%d chars), truncating to %d chars", len(prompt), maxPromptChars)
		prompt = prompt[:maxPromptChars] + "\n\n[Content truncated due to length...]"
	}

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(float32(temperature))
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}

	var lastErr error
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

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}

		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
		}

		text := collectText(resp)
		if text != "" {
			return text, nil
		}
		lastErr = ErrEmptyResponse
	}

	return "", fmt.Errorf("failed to generate content after %d attempts: %w", maxRetries, lastErr)
}

// collectText concatenates the text parts of every candidate
func collectText(resp *genai.GenerateContentResponse) string {
	var out string
	for i, candidate := range resp.Candidates {
		if candidate.FinishReason != genai.FinishReasonStop && candidate.FinishReason != genai.FinishReasonUnspecified {
			log.Printf("Warning: Candidate %d finished with reason: %s", i, candidate.FinishReason)
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out += string(text)
			}
		}
	}
	return out
}

var _ Generator = (*GeminiGenerator)(nil)
