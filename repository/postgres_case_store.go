package repository

import (
	"context"
	"errors"

	"aijudge-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCaseStore persists cases in Postgres. Side submissions and
// follow-up history are JSONB columns; the version column backs
// optimistic compare-and-swap.
type PostgresCaseStore struct {
	db *pgxpool.Pool
}

// NewPostgresCaseStore creates a new Postgres-backed case store
func NewPostgresCaseStore(db *pgxpool.Pool) *PostgresCaseStore {
	return &PostgresCaseStore{db: db}
}

// Put implements CaseStore
func (s *PostgresCaseStore) Put(ctx context.Context, c *models.Case) error {
	query := `
		INSERT INTO cases (
			case_id, status, sides, initial_verdict, follow_ups,
			version, created_at, updated_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (case_id) DO NOTHING`

	tag, err := s.db.Exec(
		ctx, query,
		c.CaseID,
		c.Status,
		c.Sides,
		c.InitialVerdict,
		c.FollowUps,
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
		c.ClosedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCaseExists
	}
	return nil
}

// Get implements CaseStore
func (s *PostgresCaseStore) Get(ctx context.Context, caseID string) (*models.Case, error) {
	c := &models.Case{}
	query := `
		SELECT case_id, status, sides, initial_verdict, follow_ups,
			version, created_at, updated_at, closed_at
		FROM cases
		WHERE case_id = $1`

	err := s.db.QueryRow(ctx, query, caseID).Scan(
		&c.CaseID,
		&c.Status,
		&c.Sides,
		&c.InitialVerdict,
		&c.FollowUps,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.ClosedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, err
	}

	if c.Sides == nil {
		c.Sides = make(models.Sides)
	}
	if c.FollowUps == nil {
		c.FollowUps = make(models.FollowUpRounds, 0)
	}
	return c, nil
}

// CompareAndSwap implements CaseStore
func (s *PostgresCaseStore) CompareAndSwap(ctx context.Context, c *models.Case) error {
	query := `
		UPDATE cases SET
			status = $3,
			sides = $4,
			initial_verdict = $5,
			follow_ups = $6,
			version = version + 1,
			updated_at = NOW(),
			closed_at = $7
		WHERE case_id = $1 AND version = $2`

	tag, err := s.db.Exec(
		ctx, query,
		c.CaseID,
		c.Version,
		c.Status,
		c.Sides,
		c.InitialVerdict,
		c.FollowUps,
		c.ClosedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a stale version from a missing case
		if _, getErr := s.Get(ctx, c.CaseID); errors.Is(getErr, ErrCaseNotFound) {
			return ErrCaseNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// ListIDs implements CaseStore
func (s *PostgresCaseStore) ListIDs(ctx context.Context) ([]string, error) {
	query := `SELECT case_id FROM cases ORDER BY created_at`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ CaseStore = (*PostgresCaseStore)(nil)
