package service

import (
	"strings"
	"testing"

	"aijudge-backend/models"

	"github.com/stretchr/testify/assert"
)

func TestDetectWinningSide(t *testing.T) {
	tests := []struct {
		name    string
		verdict string
		want    string
	}{
		{"side a wins", "1. VERDICT: In favor of Side A\n2. REASONING: ...", models.WinnerSideA},
		{"side b wins", "The court rules in favor of Side B on all counts.", models.WinnerSideB},
		{"case insensitive", "verdict: IN FAVOR OF SIDE A", models.WinnerSideA},
		{"split decision", "VERDICT: Split Decision between the parties.", models.WinnerSplit},
		{"names both sides", "In favor of Side A on count one, in favor of Side B on count two.", models.WinnerSplit},
		{"names neither", "The matter is remanded for further argument.", models.WinnerSplit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectWinningSide(tt.verdict))
		})
	}
}

func TestSummarize(t *testing.T) {
	short := "a few words only"
	assert.Equal(t, short, summarize(short))

	// Whitespace is normalized even below the limit
	assert.Equal(t, "a b c", summarize("a\n\n b\t c"))

	long := strings.TrimSpace(strings.Repeat("word ", summaryWordLimit+50))
	got := summarize(long)
	assert.Len(t, strings.Fields(got), summaryWordLimit)
}
