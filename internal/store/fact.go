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

type FactStore struct {
	db *pgxpool.Pool
}

func NewFactStore(db *pgxpool.Pool) *FactStore {
	return &FactStore{db: db}
}

const factColumns = `id, child_id, family_id, predicate, object, aspect, description,
	confidence, source_id, valid_from, valid_until, recorded_at, expired_at,
	supersedes, superseded_by`

func (s *FactStore) Insert(ctx context.Context, f *domain.TemporalFact) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO facts (child_id, family_id, predicate, object, aspect, description, confidence, source_id, valid_from, supersedes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, recorded_at`,
		f.ChildID, f.FamilyID, f.Predicate, f.Object, f.Aspect, f.Description,
		f.Confidence, f.SourceID, f.ValidFrom, f.Supersedes,
	).Scan(&f.ID, &f.RecordedAt)
}

// Supersede closes the old row and inserts the new one inside a single
// transaction, so the pair-write is indivisible. The UPDATE is guarded by
// valid_until IS NULL: if another writer already closed the row, the
// transaction aborts with ErrConcurrentModification.
func (s *FactStore) Supersede(ctx context.Context, old *domain.TemporalFact, f *domain.TemporalFact) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin supersede tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	f.Supersedes = &old.ID
	err = tx.QueryRow(ctx,
		`INSERT INTO facts (child_id, family_id, predicate, object, aspect, description, confidence, source_id, valid_from, supersedes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, recorded_at`,
		f.ChildID, f.FamilyID, f.Predicate, f.Object, f.Aspect, f.Description,
		f.Confidence, f.SourceID, f.ValidFrom, f.Supersedes,
	).Scan(&f.ID, &f.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert superseding fact: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE facts
		 SET valid_until = $2, expired_at = NOW(), superseded_by = $3
		 WHERE id = $1 AND valid_until IS NULL`,
		old.ID, f.ValidFrom, f.ID,
	)
	if err != nil {
		return fmt.Errorf("close superseded fact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentModification
	}

	return tx.Commit(ctx)
}

func (s *FactStore) GetCurrent(ctx context.Context, childID, familyID uuid.UUID, predicate string) (*domain.TemporalFact, error) {
	f := &domain.TemporalFact{}
	err := s.db.QueryRow(ctx,
		`SELECT `+factColumns+`
		 FROM facts
		 WHERE child_id = $1 AND family_id = $2 AND predicate = $3 AND valid_until IS NULL`,
		childID, familyID, predicate,
	).Scan(factFields(f)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FactStore) QueryCurrent(ctx context.Context, childID, familyID uuid.UUID, predicate string) ([]domain.TemporalFact, error) {
	query := `SELECT ` + factColumns + `
		 FROM facts
		 WHERE child_id = $1 AND family_id = $2 AND valid_until IS NULL`
	args := []any{childID, familyID}
	if predicate != "" {
		query += ` AND predicate = $3`
		args = append(args, predicate)
	}
	query += ` ORDER BY predicate`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query current facts: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

func (s *FactStore) QueryAsOf(ctx context.Context, childID, familyID uuid.UUID, predicate string, at time.Time) (*domain.TemporalFact, error) {
	f := &domain.TemporalFact{}
	err := s.db.QueryRow(ctx,
		`SELECT `+factColumns+`
		 FROM facts
		 WHERE child_id = $1 AND family_id = $2 AND predicate = $3
		   AND valid_from <= $4 AND (valid_until IS NULL OR valid_until > $4)
		 ORDER BY recorded_at DESC
		 LIMIT 1`,
		childID, familyID, predicate, at,
	).Scan(factFields(f)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FactStore) QueryHistory(ctx context.Context, childID, familyID uuid.UUID, aspect string) ([]domain.TemporalFact, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+factColumns+`
		 FROM facts
		 WHERE child_id = $1 AND family_id = $2 AND aspect = $3
		 ORDER BY valid_from, recorded_at`,
		childID, familyID, aspect,
	)
	if err != nil {
		return nil, fmt.Errorf("query fact history: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

func factFields(f *domain.TemporalFact) []any {
	return []any{
		&f.ID, &f.ChildID, &f.FamilyID, &f.Predicate, &f.Object, &f.Aspect,
		&f.Description, &f.Confidence, &f.SourceID, &f.ValidFrom, &f.ValidUntil,
		&f.RecordedAt, &f.ExpiredAt, &f.Supersedes, &f.SupersededBy,
	}
}

func scanFacts(rows pgx.Rows) ([]domain.TemporalFact, error) {
	var facts []domain.TemporalFact
	for rows.Next() {
		var f domain.TemporalFact
		if err := rows.Scan(factFields(&f)...); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
