package repository

import (
	"context"
	"errors"

	"aijudge-backend/models"
)

var (
	ErrCaseExists      = errors.New("case already exists")
	ErrCaseNotFound    = errors.New("case not found")
	ErrVersionConflict = errors.New("case version conflict")
)

// CaseStore is the injected persistence abstraction behind the case
// session manager. CompareAndSwap matches on Case.Version, so lifecycle
// logic stays identical whether the backing store is in-memory or
// Postgres. Implementations must never hand out aliased state: Get
// returns a copy the caller may mutate freely.
type CaseStore interface {
	// Put stores a new case; fails with ErrCaseExists on id collision
	Put(ctx context.Context, c *models.Case) error

	// Get retrieves a case by id; fails with ErrCaseNotFound
	Get(ctx context.Context, caseID string) (*models.Case, error)

	// CompareAndSwap replaces the stored case if its version still
	// matches c.Version, then increments the stored version. Fails with
	// ErrVersionConflict if another writer got there first.
	CompareAndSwap(ctx context.Context, c *models.Case) error

	// ListIDs returns all case ids in creation order
	ListIDs(ctx context.Context) ([]string, error)
}
