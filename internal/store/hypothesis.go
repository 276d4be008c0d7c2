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

type HypothesisStore struct {
	db *pgxpool.Pool
}

func NewHypothesisStore(db *pgxpool.Pool) *HypothesisStore {
	return &HypothesisStore{db: db}
}

const hypothesisColumns = `id, child_id, family_id, theory, domain, evidence_ids, status,
	confidence, contradiction_count, formed_at, last_evidence_at,
	resolution, resolution_note, evolved_into, created_at, updated_at`

func (s *HypothesisStore) Create(ctx context.Context, h *domain.Hypothesis) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO hypotheses (child_id, family_id, theory, domain, evidence_ids, status, confidence, contradiction_count, formed_at, last_evidence_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		h.ChildID, h.FamilyID, h.Theory, h.Domain, h.EvidenceIDs, h.Status,
		h.Confidence, h.ContradictionCount, h.FormedAt, h.LastEvidenceAt,
	).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
}

func (s *HypothesisStore) GetByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*domain.Hypothesis, error) {
	h := &domain.Hypothesis{}
	err := s.db.QueryRow(ctx,
		`SELECT `+hypothesisColumns+`
		 FROM hypotheses WHERE id = $1 AND family_id = $2`,
		id, familyID,
	).Scan(hypothesisFields(h)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return h, nil
}

func (s *HypothesisStore) Update(ctx context.Context, h *domain.Hypothesis) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE hypotheses
		 SET evidence_ids = $2, status = $3, confidence = $4,
		     contradiction_count = $5, last_evidence_at = $6,
		     resolution = $7, resolution_note = $8, evolved_into = $9,
		     updated_at = NOW()
		 WHERE id = $1`,
		h.ID, h.EvidenceIDs, h.Status, h.Confidence,
		h.ContradictionCount, h.LastEvidenceAt,
		h.Resolution, h.ResolutionNote, h.EvolvedInto,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *HypothesisStore) ListByChild(ctx context.Context, childID, familyID uuid.UUID) ([]domain.Hypothesis, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+hypothesisColumns+`
		 FROM hypotheses WHERE child_id = $1 AND family_id = $2
		 ORDER BY formed_at`,
		childID, familyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHypotheses(rows)
}

func (s *HypothesisStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Hypothesis, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+hypothesisColumns+`
		 FROM hypotheses WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHypotheses(rows)
}

func (s *HypothesisStore) CountFormedAfter(ctx context.Context, childID uuid.UUID, domains []string, after time.Time, exclude []uuid.UUID) (int, error) {
	if len(domains) == 0 {
		return 0, nil
	}
	if exclude == nil {
		exclude = []uuid.UUID{}
	}
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM hypotheses
		 WHERE child_id = $1 AND domain = ANY($2) AND formed_at > $3
		   AND NOT (id = ANY($4))`,
		childID, domains, after, exclude,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count hypotheses formed after: %w", err)
	}
	return count, nil
}

func scanHypotheses(rows pgx.Rows) ([]domain.Hypothesis, error) {
	var out []domain.Hypothesis
	for rows.Next() {
		var h domain.Hypothesis
		if err := rows.Scan(hypothesisFields(&h)...); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func hypothesisFields(h *domain.Hypothesis) []any {
	return []any{
		&h.ID, &h.ChildID, &h.FamilyID, &h.Theory, &h.Domain, &h.EvidenceIDs,
		&h.Status, &h.Confidence, &h.ContradictionCount, &h.FormedAt,
		&h.LastEvidenceAt, &h.Resolution, &h.ResolutionNote, &h.EvolvedInto,
		&h.CreatedAt, &h.UpdatedAt,
	}
}
