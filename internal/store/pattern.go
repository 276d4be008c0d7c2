package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/sproutmind/sprout/internal/domain"
)

type PatternStore struct {
	db *pgxpool.Pool
}

func NewPatternStore(db *pgxpool.Pool) *PatternStore {
	return &PatternStore{db: db}
}

const patternColumns = `id, child_id, family_id, theme, normalized_theme, observation_ids,
	hypothesis_ids, domains, confidence, evidence_count, source, detected_at, updated_at`

func (s *PatternStore) Create(ctx context.Context, p *domain.Pattern) error {
	var embedding *pgvector.Vector
	if len(p.Embedding) > 0 {
		v := pgvector.NewVector(p.Embedding)
		embedding = &v
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO patterns (child_id, family_id, theme, normalized_theme, observation_ids, hypothesis_ids, domains, confidence, evidence_count, source, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, detected_at, updated_at`,
		p.ChildID, p.FamilyID, p.Theme, p.NormalizedTheme, p.ObservationIDs,
		p.HypothesisIDs, p.Domains, p.Confidence, p.EvidenceCount, p.Source, embedding,
	).Scan(&p.ID, &p.DetectedAt, &p.UpdatedAt)
}

func (s *PatternStore) GetByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*domain.Pattern, error) {
	p := &domain.Pattern{}
	err := s.db.QueryRow(ctx,
		`SELECT `+patternColumns+`
		 FROM patterns WHERE id = $1 AND family_id = $2`,
		id, familyID,
	).Scan(patternFields(p)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *PatternStore) GetByNormalizedTheme(ctx context.Context, childID, familyID uuid.UUID, normalizedTheme string) (*domain.Pattern, error) {
	p := &domain.Pattern{}
	err := s.db.QueryRow(ctx,
		`SELECT `+patternColumns+`
		 FROM patterns WHERE child_id = $1 AND family_id = $2 AND normalized_theme = $3`,
		childID, familyID, normalizedTheme,
	).Scan(patternFields(p)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *PatternStore) FindSimilarByTheme(ctx context.Context, childID, familyID uuid.UUID, embedding []float32, threshold float32) ([]domain.PatternWithScore, error) {
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT `+patternColumns+`,
		        1 - (embedding <=> $1) AS score
		 FROM patterns
		 WHERE child_id = $2 AND family_id = $3 AND embedding IS NOT NULL
		   AND 1 - (embedding <=> $1) >= $4
		 ORDER BY score DESC`,
		vec, childID, familyID, threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("find similar patterns: %w", err)
	}
	defer rows.Close()

	var results []domain.PatternWithScore
	for rows.Next() {
		var ps domain.PatternWithScore
		fields := append(patternFields(&ps.Pattern), &ps.Score)
		if err := rows.Scan(fields...); err != nil {
			return nil, fmt.Errorf("scan similar pattern: %w", err)
		}
		results = append(results, ps)
	}
	return results, rows.Err()
}

func (s *PatternStore) Update(ctx context.Context, p *domain.Pattern) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE patterns
		 SET observation_ids = $2, hypothesis_ids = $3, domains = $4,
		     confidence = $5, evidence_count = $6, updated_at = NOW()
		 WHERE id = $1`,
		p.ID, p.ObservationIDs, p.HypothesisIDs, p.Domains,
		p.Confidence, p.EvidenceCount,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PatternStore) ListByChild(ctx context.Context, childID, familyID uuid.UUID) ([]domain.Pattern, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+patternColumns+`
		 FROM patterns WHERE child_id = $1 AND family_id = $2
		 ORDER BY detected_at`,
		childID, familyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Pattern
	for rows.Next() {
		var p domain.Pattern
		if err := rows.Scan(patternFields(&p)...); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func patternFields(p *domain.Pattern) []any {
	return []any{
		&p.ID, &p.ChildID, &p.FamilyID, &p.Theme, &p.NormalizedTheme,
		&p.ObservationIDs, &p.HypothesisIDs, &p.Domains, &p.Confidence,
		&p.EvidenceCount, &p.Source, &p.DetectedAt, &p.UpdatedAt,
	}
}
