package repository

import (
	"context"
	"fmt"
	"strings"

	"aijudge-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CaseIndexRepository handles the pgvector-backed case similarity index.
// The index is an after-the-fact observer of closed cases: rows here are
// previews plus an embedding, never authoritative case state.
type CaseIndexRepository struct {
	db *pgxpool.Pool
}

// NewCaseIndexRepository creates a new case index repository
func NewCaseIndexRepository(db *pgxpool.Pool) *CaseIndexRepository {
	return &CaseIndexRepository{db: db}
}

// formatVector formats an embedding vector as a string for pgx
func formatVector(embedding []float64) string {
	if len(embedding) == 0 {
		return "[]"
	}
	var parts []string
	for _, v := range embedding {
		parts = append(parts, fmt.Sprintf("%.6f", v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Upsert inserts or replaces the index entry for a case
func (r *CaseIndexRepository) Upsert(
	ctx context.Context,
	caseID string,
	sideASummary, sideBSummary, verdictSummary string,
	winningSide string,
	embedding []float64,
) error {
	if len(embedding) != 768 {
		return fmt.Errorf("embedding must be 768 dimensions, got %d", len(embedding))
	}

	query := `
		INSERT INTO case_index (
			case_id, side_a_summary, side_b_summary, verdict_summary,
			winning_side, embedding, indexed_at
		) VALUES ($1, $2, $3, $4, $5, $6::vector, NOW())
		ON CONFLICT (case_id) DO UPDATE SET
			side_a_summary = EXCLUDED.side_a_summary,
			side_b_summary = EXCLUDED.side_b_summary,
			verdict_summary = EXCLUDED.verdict_summary,
			winning_side = EXCLUDED.winning_side,
			embedding = EXCLUDED.embedding,
			indexed_at = NOW()`

	_, err := r.db.Exec(
		ctx, query,
		caseID,
		sideASummary,
		sideBSummary,
		verdictSummary,
		winningSide,
		formatVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert case index entry: %w", err)
	}
	return nil
}

// SearchSimilar returns the closest indexed cases to the query embedding,
// excluding the case being queried for
func (r *CaseIndexRepository) SearchSimilar(
	ctx context.Context,
	embedding []float64,
	excludeCaseID string,
	limit int,
) ([]models.CaseMatch, error) {
	if len(embedding) != 768 {
		return nil, fmt.Errorf("embedding must be 768 dimensions, got %d", len(embedding))
	}

	vectorStr := formatVector(embedding)

	query := `
		SELECT
			case_id,
			side_a_summary,
			side_b_summary,
			verdict_summary,
			winning_side,
			indexed_at,
			embedding <=> $1::vector AS distance
		FROM case_index
		WHERE case_id != $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, vectorStr, excludeCaseID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query case index: %w", err)
	}
	defer rows.Close()

	var matches []models.CaseMatch
	for rows.Next() {
		var m models.CaseMatch
		err := rows.Scan(
			&m.CaseID,
			&m.SideASummary,
			&m.SideBSummary,
			&m.VerdictSummary,
			&m.WinningSide,
			&m.IndexedAt,
			&m.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case match: %w", err)
		}
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating case matches: %w", err)
	}

	return matches, nil
}

// GetEmbedding returns the stored embedding for a case, or nil when the
// case has not been indexed yet
func (r *CaseIndexRepository) GetEmbedding(ctx context.Context, caseID string) ([]float64, error) {
	query := `SELECT embedding::text FROM case_index WHERE case_id = $1`

	var vectorStr string
	err := r.db.QueryRow(ctx, query, caseID).Scan(&vectorStr)
	if err != nil {
		return nil, nil
	}
	return parseVector(vectorStr)
}

// parseVector parses pgvector's "[v1,v2,...]" text representation
func parseVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		var v float64
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%g", &v); err != nil {
			return nil, fmt.Errorf("failed to parse vector component %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
