package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"
)

// Side identifies one of the two adversarial parties in a case
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Valid reports whether the side is one of the two recognized parties
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// CaseStatus represents the lifecycle status of a case
type CaseStatus string

const (
	StatusCollectingEvidence CaseStatus = "collecting_evidence"
	StatusVerdictIssued      CaseStatus = "verdict_issued"
	StatusClosed             CaseStatus = "closed"
)

// SideSubmission holds all material a side has submitted so far.
// TextSegments preserves submission order: typed text first, then text
// extracted from each uploaded document in upload order.
type SideSubmission struct {
	Side         Side       `json:"side"`
	TextSegments []string   `json:"text_segments"`
	Documents    []Document `json:"documents,omitempty"`
	Truncated    bool       `json:"truncated,omitempty"`
}

// CombinedText returns the ordered concatenation of all submitted text.
// Used verbatim as prompt input, so the separator must stay fixed.
func (s *SideSubmission) CombinedText() string {
	return strings.Join(s.TextSegments, "\n\n")
}

// Clone returns a deep copy of the submission
func (s *SideSubmission) Clone() *SideSubmission {
	if s == nil {
		return nil
	}
	cp := &SideSubmission{
		Side:      s.Side,
		Truncated: s.Truncated,
	}
	if s.TextSegments != nil {
		cp.TextSegments = make([]string, len(s.TextSegments))
		copy(cp.TextSegments, s.TextSegments)
	}
	if s.Documents != nil {
		cp.Documents = make([]Document, len(s.Documents))
		copy(cp.Documents, s.Documents)
	}
	return cp
}

// Sides maps a side identifier to its accumulated submission
type Sides map[Side]*SideSubmission

// Value implements driver.Valuer for JSONB
func (s Sides) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB
func (s *Sides) Scan(value interface{}) error {
	if value == nil {
		*s = make(Sides)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*s = make(Sides)
		return nil
	}

	if len(bytes) == 0 {
		*s = make(Sides)
		return nil
	}

	return json.Unmarshal(bytes, s)
}

// FollowUpRound is one caller-submitted rebuttal plus the judge's
// reconsidered response. SequenceNumber is 1-based and assigned by the
// session manager, never by the caller.
type FollowUpRound struct {
	SequenceNumber int       `json:"sequence_number"`
	Side           Side      `json:"side"`
	ArgumentText   string    `json:"argument_text"`
	ResponseText   string    `json:"response_text"`
	CreatedAt      time.Time `json:"created_at"`
}

// FollowUpRounds is the ordered follow-up history of a case
type FollowUpRounds []FollowUpRound

// Value implements driver.Valuer for JSONB
func (f FollowUpRounds) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements sql.Scanner for JSONB
func (f *FollowUpRounds) Scan(value interface{}) error {
	if value == nil {
		*f = make(FollowUpRounds, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*f = make(FollowUpRounds, 0)
		return nil
	}

	if len(bytes) == 0 {
		*f = make(FollowUpRounds, 0)
		return nil
	}

	return json.Unmarshal(bytes, f)
}

// Case represents a mock-trial case entity. All state is owned by the
// case session manager; callers only ever see snapshots.
type Case struct {
	CaseID         string         `json:"case_id"`
	Status         CaseStatus     `json:"status"`
	Sides          Sides          `json:"sides"`
	InitialVerdict *string        `json:"initial_verdict,omitempty"`
	FollowUps      FollowUpRounds `json:"follow_ups"`

	// Version is incremented on every successful mutation and backs the
	// store's compare-and-swap. Callers must treat it as opaque.
	Version int64 `json:"version"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// NewCase returns a case in its initial lifecycle state
func NewCase(caseID string, now time.Time) *Case {
	return &Case{
		CaseID: caseID,
		Status: StatusCollectingEvidence,
		Sides: Sides{
			SideA: {Side: SideA, TextSegments: []string{}},
			SideB: {Side: SideB, TextSegments: []string{}},
		},
		FollowUps: make(FollowUpRounds, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Side returns the submission for a side, creating an empty one if the
// case predates it in the store
func (c *Case) Side(side Side) *SideSubmission {
	if c.Sides == nil {
		c.Sides = make(Sides)
	}
	sub, ok := c.Sides[side]
	if !ok {
		sub = &SideSubmission{Side: side, TextSegments: []string{}}
		c.Sides[side] = sub
	}
	return sub
}

// Clone returns a deep copy of the case, safe to hand to callers
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	cp := &Case{
		CaseID:    c.CaseID,
		Status:    c.Status,
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.InitialVerdict != nil {
		v := *c.InitialVerdict
		cp.InitialVerdict = &v
	}
	if c.ClosedAt != nil {
		t := *c.ClosedAt
		cp.ClosedAt = &t
	}
	cp.Sides = make(Sides, len(c.Sides))
	for side, sub := range c.Sides {
		cp.Sides[side] = sub.Clone()
	}
	cp.FollowUps = make(FollowUpRounds, len(c.FollowUps))
	copy(cp.FollowUps, c.FollowUps)
	return cp
}
