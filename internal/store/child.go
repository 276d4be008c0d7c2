package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sproutmind/sprout/internal/domain"
)

type ChildStore struct {
	db *pgxpool.Pool
}

func NewChildStore(db *pgxpool.Pool) *ChildStore {
	return &ChildStore{db: db}
}

func (s *ChildStore) Create(ctx context.Context, c *domain.Child) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO children (family_id, name, birth_date)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		c.FamilyID, c.Name, c.BirthDate,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (s *ChildStore) GetByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*domain.Child, error) {
	c := &domain.Child{}
	err := s.db.QueryRow(ctx,
		`SELECT id, family_id, name, birth_date, created_at, updated_at
		 FROM children WHERE id = $1 AND family_id = $2`,
		id, familyID,
	).Scan(&c.ID, &c.FamilyID, &c.Name, &c.BirthDate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *ChildStore) ListByFamily(ctx context.Context, familyID uuid.UUID) ([]domain.Child, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, family_id, name, birth_date, created_at, updated_at
		 FROM children WHERE family_id = $1 ORDER BY created_at`,
		familyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChildren(rows)
}

func (s *ChildStore) ListAll(ctx context.Context) ([]domain.Child, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, family_id, name, birth_date, created_at, updated_at
		 FROM children ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChildren(rows)
}

func scanChildren(rows pgx.Rows) ([]domain.Child, error) {
	var children []domain.Child
	for rows.Next() {
		var c domain.Child
		if err := rows.Scan(&c.ID, &c.FamilyID, &c.Name, &c.BirthDate, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return children, rows.Err()
}
