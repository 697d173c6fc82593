package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aijudge-backend/llm"
	"aijudge-backend/models"
	"aijudge-backend/repository"
)

// summaryWordLimit bounds the stored previews of side material and the
// verdict
const summaryWordLimit = 200

// ErrCaseNotIndexed is returned when a similarity query targets a case
// that has no index entry yet
var ErrCaseNotIndexed = errors.New("case has not been indexed")

// SimilarityIndexer projects closed cases into the pgvector case index.
// It implements CaseObserver, so indexing failures are logged by the
// dispatcher and never affect the closing request.
type SimilarityIndexer struct {
	index    *repository.CaseIndexRepository
	embedder llm.Embedder
}

// NewSimilarityIndexer creates a new similarity indexer
func NewSimilarityIndexer(index *repository.CaseIndexRepository, embedder llm.Embedder) *SimilarityIndexer {
	return &SimilarityIndexer{index: index, embedder: embedder}
}

// OnCaseClosed summarizes and embeds the closed case, then upserts its
// index entry
func (si *SimilarityIndexer) OnCaseClosed(ctx context.Context, c *models.Case) error {
	return si.IndexCase(ctx, c)
}

// IndexCase builds and stores the index entry for a decided case
func (si *SimilarityIndexer) IndexCase(ctx context.Context, c *models.Case) error {
	if c.InitialVerdict == nil {
		return fmt.Errorf("case %q has no verdict to index", c.CaseID)
	}

	sideASummary := summarize(c.Side(models.SideA).CombinedText())
	sideBSummary := summarize(c.Side(models.SideB).CombinedText())
	verdictSummary := summarize(*c.InitialVerdict)
	winningSide := DetectWinningSide(*c.InitialVerdict)

	embedding, err := si.embedder.Embed(ctx, embeddingInput(sideASummary, sideBSummary, verdictSummary))
	if err != nil {
		return fmt.Errorf("failed to embed case %q: %w", c.CaseID, err)
	}

	return si.index.Upsert(ctx, c.CaseID, sideASummary, sideBSummary, verdictSummary, winningSide, embedding)
}

// SimilarCases returns the closest indexed cases to an already-indexed
// case
func (si *SimilarityIndexer) SimilarCases(ctx context.Context, caseID string, limit int) ([]models.CaseMatch, error) {
	if limit <= 0 {
		limit = 5
	}

	embedding, err := si.index.GetEmbedding(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if embedding == nil {
		return nil, fmt.Errorf("case %q: %w", caseID, ErrCaseNotIndexed)
	}

	return si.index.SearchSimilar(ctx, embedding, caseID, limit)
}

// summarize keeps the first 200 words of a text
func summarize(text string) string {
	words := strings.Fields(text)
	if len(words) <= summaryWordLimit {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:summaryWordLimit], " ")
}

// embeddingInput assembles a single embeddable document from the case
// previews
func embeddingInput(sideA, sideB, verdict string) string {
	return fmt.Sprintf("Side A: %s\n\nSide B: %s\n\nVerdict: %s", sideA, sideB, verdict)
}

// DetectWinningSide reads the winner out of a verdict's text. Verdicts
// that name neither side, or both, count as split decisions.
func DetectWinningSide(verdict string) string {
	lower := strings.ToLower(verdict)
	favorsA := strings.Contains(lower, "favor of side a")
	favorsB := strings.Contains(lower, "favor of side b")
	switch {
	case favorsA && !favorsB:
		return models.WinnerSideA
	case favorsB && !favorsA:
		return models.WinnerSideB
	default:
		return models.WinnerSplit
	}
}
