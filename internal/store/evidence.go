package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sproutmind/sprout/internal/domain"
)

type EvidenceStore struct {
	db *pgxpool.Pool
}

func NewEvidenceStore(db *pgxpool.Pool) *EvidenceStore {
	return &EvidenceStore{db: db}
}

func (s *EvidenceStore) Create(ctx context.Context, e *domain.Evidence) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO evidence (child_id, family_id, source_kind, content, domain, observed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		e.ChildID, e.FamilyID, e.SourceKind, e.Content, e.Domain, e.ObservedAt,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *EvidenceStore) GetByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*domain.Evidence, error) {
	e := &domain.Evidence{}
	err := s.db.QueryRow(ctx,
		`SELECT id, child_id, family_id, source_kind, content, domain, observed_at, created_at
		 FROM evidence WHERE id = $1 AND family_id = $2`,
		id, familyID,
	).Scan(&e.ID, &e.ChildID, &e.FamilyID, &e.SourceKind, &e.Content, &e.Domain, &e.ObservedAt, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *EvidenceStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Evidence, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, child_id, family_id, source_kind, content, domain, observed_at, created_at
		 FROM evidence WHERE id = ANY($1)
		 ORDER BY observed_at`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Evidence
	for rows.Next() {
		var e domain.Evidence
		if err := rows.Scan(&e.ID, &e.ChildID, &e.FamilyID, &e.SourceKind, &e.Content, &e.Domain, &e.ObservedAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
