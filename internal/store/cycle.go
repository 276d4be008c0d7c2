package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sproutmind/sprout/internal/domain"
)

type CycleStore struct {
	db *pgxpool.Pool
}

func NewCycleStore(db *pgxpool.Pool) *CycleStore {
	return &CycleStore{db: db}
}

const cycleColumns = `id, child_id, family_id, curiosity_id, curiosity_type, focus,
	status, hypothesis_ids, created_at, completed_at`

const artifactColumns = `id, cycle_id, type, content, status, related_hypothesis_ids,
	expected_units, received_units, superseded_by, superseded_reason, created_at, updated_at`

func (s *CycleStore) Create(ctx context.Context, c *domain.ExplorationCycle) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO cycles (child_id, family_id, curiosity_id, curiosity_type, focus, status, hypothesis_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		c.ChildID, c.FamilyID, c.CuriosityID, c.CuriosityType, c.Focus, c.Status, c.HypothesisIDs,
	).Scan(&c.ID, &c.CreatedAt)
}

func (s *CycleStore) GetByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*domain.ExplorationCycle, error) {
	c := &domain.ExplorationCycle{}
	err := s.db.QueryRow(ctx,
		`SELECT `+cycleColumns+`
		 FROM cycles WHERE id = $1 AND family_id = $2`,
		id, familyID,
	).Scan(cycleFields(c)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.loadArtifacts(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CycleStore) GetOpenByCuriosity(ctx context.Context, childID, curiosityID uuid.UUID) (*domain.ExplorationCycle, error) {
	c := &domain.ExplorationCycle{}
	err := s.db.QueryRow(ctx,
		`SELECT `+cycleColumns+`
		 FROM cycles
		 WHERE child_id = $1 AND curiosity_id = $2 AND status != 'complete'`,
		childID, curiosityID,
	).Scan(cycleFields(c)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *CycleStore) ListByChild(ctx context.Context, childID, familyID uuid.UUID) ([]domain.ExplorationCycle, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+cycleColumns+`
		 FROM cycles WHERE child_id = $1 AND family_id = $2
		 ORDER BY created_at`,
		childID, familyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cycles []domain.ExplorationCycle
	for rows.Next() {
		var c domain.ExplorationCycle
		if err := rows.Scan(cycleFields(&c)...); err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range cycles {
		if err := s.loadArtifacts(ctx, &cycles[i]); err != nil {
			return nil, err
		}
	}
	return cycles, nil
}

func (s *CycleStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CycleStatus, completedAt *time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE cycles SET status = $2, completed_at = $3 WHERE id = $1`,
		id, status, completedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CycleStore) AddHypothesis(ctx context.Context, cycleID, hypothesisID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE cycles
		 SET hypothesis_ids = ARRAY(SELECT DISTINCT unnest(hypothesis_ids || ARRAY[$2]::uuid[]))
		 WHERE id = $1`,
		cycleID, hypothesisID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CycleStore) AttachArtifact(ctx context.Context, a *domain.CycleArtifact) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO cycle_artifacts (cycle_id, type, content, status, related_hypothesis_ids, expected_units, received_units)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		a.CycleID, a.Type, a.Content, a.Status, a.RelatedHypothesisIDs,
		a.ExpectedUnits, a.ReceivedUnits,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (s *CycleStore) GetArtifactByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*domain.CycleArtifact, error) {
	a := &domain.CycleArtifact{}
	err := s.db.QueryRow(ctx,
		`SELECT a.id, a.cycle_id, a.type, a.content, a.status, a.related_hypothesis_ids,
		        a.expected_units, a.received_units, a.superseded_by, a.superseded_reason,
		        a.created_at, a.updated_at
		 FROM cycle_artifacts a
		 JOIN cycles c ON c.id = a.cycle_id
		 WHERE a.id = $1 AND c.family_id = $2`,
		id, familyID,
	).Scan(artifactFields(a)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *CycleStore) UpdateArtifactStatus(ctx context.Context, id uuid.UUID, status domain.ArtifactStatus, supersededReason string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE cycle_artifacts
		 SET status = $2, superseded_reason = $3, updated_at = NOW()
		 WHERE id = $1`,
		id, status, supersededReason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CycleStore) UpdateArtifactFulfillment(ctx context.Context, id uuid.UUID, receivedUnits int, status domain.ArtifactStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE cycle_artifacts
		 SET received_units = $2, status = $3, updated_at = NOW()
		 WHERE id = $1`,
		id, receivedUnits, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CycleStore) ListArtifactsByHypothesis(ctx context.Context, childID, hypothesisID uuid.UUID) ([]domain.CycleArtifact, error) {
	rows, err := s.db.Query(ctx,
		`SELECT a.id, a.cycle_id, a.type, a.content, a.status, a.related_hypothesis_ids,
		        a.expected_units, a.received_units, a.superseded_by, a.superseded_reason,
		        a.created_at, a.updated_at
		 FROM cycle_artifacts a
		 JOIN cycles c ON c.id = a.cycle_id
		 WHERE c.child_id = $1 AND $2 = ANY(a.related_hypothesis_ids)
		 ORDER BY a.created_at`,
		childID, hypothesisID,
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts by hypothesis: %w", err)
	}
	defer rows.Close()
	return scanArtifacts(rows)
}

func (s *CycleStore) loadArtifacts(ctx context.Context, c *domain.ExplorationCycle) error {
	rows, err := s.db.Query(ctx,
		`SELECT `+artifactColumns+`
		 FROM cycle_artifacts WHERE cycle_id = $1
		 ORDER BY created_at`,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("load cycle artifacts: %w", err)
	}
	defer rows.Close()

	artifacts, err := scanArtifacts(rows)
	if err != nil {
		return err
	}
	c.Artifacts = artifacts
	return nil
}

func scanArtifacts(rows pgx.Rows) ([]domain.CycleArtifact, error) {
	var out []domain.CycleArtifact
	for rows.Next() {
		var a domain.CycleArtifact
		if err := rows.Scan(artifactFields(&a)...); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func cycleFields(c *domain.ExplorationCycle) []any {
	return []any{
		&c.ID, &c.ChildID, &c.FamilyID, &c.CuriosityID, &c.CuriosityType,
		&c.Focus, &c.Status, &c.HypothesisIDs, &c.CreatedAt, &c.CompletedAt,
	}
}

func artifactFields(a *domain.CycleArtifact) []any {
	return []any{
		&a.ID, &a.CycleID, &a.Type, &a.Content, &a.Status,
		&a.RelatedHypothesisIDs, &a.ExpectedUnits, &a.ReceivedUnits,
		&a.SupersededBy, &a.SupersededReason, &a.CreatedAt, &a.UpdatedAt,
	}
}
