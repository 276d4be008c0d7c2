package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sproutmind/sprout/internal/domain"
	"github.com/sproutmind/sprout/internal/store"
	"go.uber.org/zap"
)

var (
	ErrFactPredicateEmpty = errors.New("fact predicate cannot be empty")
	ErrFactObjectEmpty    = errors.New("fact object cannot be empty")
	ErrChildNotFound      = errors.New("child not found")
)

// FactService owns the bi-temporal fact log. Asserting a fact that already
// has a currently valid row for the same (child, predicate) closes that row
// and inserts the new one as a single pair-write.
type FactService struct {
	facts    domain.FactStore
	children domain.ChildStore
	locks    *ChildLocks
	logger   *zap.Logger
}

func NewFactService(facts domain.FactStore, children domain.ChildStore, locks *ChildLocks, logger *zap.Logger) *FactService {
	return &FactService{facts: facts, children: children, locks: locks, logger: logger}
}

type AssertFactInput struct {
	ChildID     uuid.UUID
	FamilyID    uuid.UUID
	Predicate   string
	Object      string
	Aspect      string
	Description string
	Confidence  float32
	SourceID    *uuid.UUID
	ValidFrom   time.Time
}

func (s *FactService) Assert(ctx context.Context, in AssertFactInput) (*domain.TemporalFact, error) {
	if in.Predicate == "" {
		return nil, ErrFactPredicateEmpty
	}
	if in.Object == "" {
		return nil, ErrFactObjectEmpty
	}
	if _, err := s.children.GetByID(ctx, in.ChildID, in.FamilyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChildNotFound
		}
		return nil, err
	}

	if in.ValidFrom.IsZero() {
		in.ValidFrom = time.Now()
	}

	f := &domain.TemporalFact{
		ChildID:     in.ChildID,
		FamilyID:    in.FamilyID,
		Predicate:   in.Predicate,
		Object:      in.Object,
		Aspect:      in.Aspect,
		Description: in.Description,
		Confidence:  in.Confidence,
		SourceID:    in.SourceID,
		ValidFrom:   in.ValidFrom,
	}

	unlock := s.locks.Lock(in.ChildID)
	defer unlock()

	current, err := s.facts.GetCurrent(ctx, in.ChildID, in.FamilyID, in.Predicate)
	switch {
	case err == nil:
		if err := s.facts.Supersede(ctx, current, f); err != nil {
			return nil, err
		}
		s.logger.Debug("fact superseded",
			zap.String("child_id", in.ChildID.String()),
			zap.String("predicate", in.Predicate),
			zap.String("old_id", current.ID.String()),
			zap.String("new_id", f.ID.String()))
	case errors.Is(err, store.ErrNotFound):
		if err := s.facts.Insert(ctx, f); err != nil {
			return nil, err
		}
		s.logger.Debug("fact asserted",
			zap.String("child_id", in.ChildID.String()),
			zap.String("predicate", in.Predicate),
			zap.String("id", f.ID.String()))
	default:
		return nil, err
	}

	return f, nil
}

// QueryCurrent returns all currently valid facts; predicate is optional.
func (s *FactService) QueryCurrent(ctx context.Context, childID, familyID uuid.UUID, predicate string) ([]domain.TemporalFact, error) {
	return s.facts.QueryCurrent(ctx, childID, familyID, predicate)
}

// QueryAsOf answers "how was X at time T". Fails with store.ErrNotFound when
// no row's valid interval covers the requested time.
func (s *FactService) QueryAsOf(ctx context.Context, childID, familyID uuid.UUID, predicate string, at time.Time) (*domain.TemporalFact, error) {
	if predicate == "" {
		return nil, ErrFactPredicateEmpty
	}
	return s.facts.QueryAsOf(ctx, childID, familyID, predicate, at)
}

// QueryHistory answers "how has X evolved": every row for the aspect,
// superseded ones included, ordered by valid time.
func (s *FactService) QueryHistory(ctx context.Context, childID, familyID uuid.UUID, aspect string) ([]domain.TemporalFact, error) {
	return s.facts.QueryHistory(ctx, childID, familyID, aspect)
}
