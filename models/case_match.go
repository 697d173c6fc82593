package models

import "time"

// Winning side labels stored in the similarity index. Detected from the
// verdict text, so "split" covers anything the detector cannot attribute.
const (
	WinnerSideA = "A"
	WinnerSideB = "B"
	WinnerSplit = "split"
)

// CaseMatch is one hit from the case similarity index. Summaries are
// previews, not full texts; the authoritative record is the case itself.
type CaseMatch struct {
	CaseID         string    `json:"case_id"`
	SideASummary   string    `json:"side_a_summary"`
	SideBSummary   string    `json:"side_b_summary"`
	VerdictSummary string    `json:"verdict_summary"`
	WinningSide    string    `json:"winning_side"`
	IndexedAt      time.Time `json:"indexed_at"`
	Distance       float64   `json:"distance"`
}
