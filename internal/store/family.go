package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sproutmind/sprout/internal/domain"
)

type FamilyStore struct {
	db *pgxpool.Pool
}

func NewFamilyStore(db *pgxpool.Pool) *FamilyStore {
	return &FamilyStore{db: db}
}

func (s *FamilyStore) Create(ctx context.Context, f *domain.Family) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO families (name, api_key_hash)
		 VALUES ($1, $2)
		 RETURNING id, created_at`,
		f.Name, f.APIKeyHash,
	).Scan(&f.ID, &f.CreatedAt)
}

func (s *FamilyStore) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Family, error) {
	f := &domain.Family{}
	err := s.db.QueryRow(ctx,
		`SELECT id, name, api_key_hash, created_at
		 FROM families WHERE api_key_hash = $1`,
		apiKeyHash,
	).Scan(&f.ID, &f.Name, &f.APIKeyHash, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}
