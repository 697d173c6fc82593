package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"aijudge-backend/models"
)

// MemoryCaseStore is an in-process CaseStore. Used in development and
// tests; swapping to Postgres is a wiring change.
type MemoryCaseStore struct {
	mu    sync.RWMutex
	cases map[string]*models.Case
}

// NewMemoryCaseStore creates an empty store
func NewMemoryCaseStore() *MemoryCaseStore {
	return &MemoryCaseStore{
		cases: make(map[string]*models.Case),
	}
}

// Put implements CaseStore
func (s *MemoryCaseStore) Put(ctx context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cases[c.CaseID]; exists {
		return ErrCaseExists
	}
	s.cases[c.CaseID] = c.Clone()
	return nil
}

// Get implements CaseStore
func (s *MemoryCaseStore) Get(ctx context.Context, caseID string) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cases[caseID]
	if !ok {
		return nil, ErrCaseNotFound
	}
	return c.Clone(), nil
}

// CompareAndSwap implements CaseStore
func (s *MemoryCaseStore) CompareAndSwap(ctx context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.cases[c.CaseID]
	if !ok {
		return ErrCaseNotFound
	}
	if stored.Version != c.Version {
		return ErrVersionConflict
	}

	next := c.Clone()
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	s.cases[c.CaseID] = next
	return nil
}

// ListIDs implements CaseStore
func (s *MemoryCaseStore) ListIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.cases))
	for id := range s.cases {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.cases[ids[i]].CreatedAt.Before(s.cases[ids[j]].CreatedAt)
	})
	return ids, nil
}

var _ CaseStore = (*MemoryCaseStore)(nil)
