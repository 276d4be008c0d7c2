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

const (
	// WeakeningContradictionThreshold is the cumulative contradiction count
	// at which an active hypothesis moves to weakening.
	WeakeningContradictionThreshold = 2
	// WeakeningConfidenceFloor moves a hypothesis to weakening as soon as
	// contradicting evidence pushes confidence below it.
	WeakeningConfidenceFloor = 0.35
)

var (
	ErrHypothesisTheoryEmpty = errors.New("hypothesis theory cannot be empty")
	ErrHypothesisNotFound    = errors.New("hypothesis not found")
	ErrEvidenceNotFound      = errors.New("evidence not found")
	ErrEvidenceContentEmpty  = errors.New("evidence content cannot be empty")
	ErrInvalidEffect         = errors.New("invalid evidence effect")
	ErrInvalidResolution     = errors.New("invalid resolution")
	// ErrAlreadyResolved guards the terminal state: a resolved hypothesis
	// never accepts further evidence or a different resolution.
	ErrAlreadyResolved = errors.New("hypothesis already resolved")
)

// StalenessChecker re-evaluates artifacts that reference a hypothesis. The
// hypothesis service calls it after every mutation; the concrete
// implementation lives in StalenessService.
type StalenessChecker interface {
	CheckHypothesis(ctx context.Context, h *domain.Hypothesis) error
}

// HypothesisService owns hypotheses, their evidence chains, and their
// confidence and status transitions.
type HypothesisService struct {
	hypotheses domain.HypothesisStore
	evidence   domain.EvidenceStore
	children   domain.ChildStore
	locks      *ChildLocks
	policy     ConfidencePolicy
	staleness  StalenessChecker
	logger     *zap.Logger
}

func NewHypothesisService(
	hypotheses domain.HypothesisStore,
	evidence domain.EvidenceStore,
	children domain.ChildStore,
	locks *ChildLocks,
	logger *zap.Logger,
) *HypothesisService {
	return &HypothesisService{
		hypotheses: hypotheses,
		evidence:   evidence,
		children:   children,
		locks:      locks,
		policy:     DefaultConfidencePolicy(),
		logger:     logger,
	}
}

// SetStalenessChecker wires the artifact staleness checker. Set after
// construction to break the dependency cycle with the cycle manager.
func (s *HypothesisService) SetStalenessChecker(c StalenessChecker) {
	s.staleness = c
}

type EvidenceInput struct {
	SourceKind domain.SourceKind
	Content    string
	Domain     string
	ObservedAt time.Time
}

type FormHypothesisInput struct {
	ChildID            uuid.UUID
	FamilyID           uuid.UUID
	Theory             string
	Domain             string
	SupportingEvidence []EvidenceInput
	ConfidenceSeed     float32
}

// Form creates a hypothesis. With no supporting evidence it starts in
// forming; with evidence it starts active.
func (s *HypothesisService) Form(ctx context.Context, in FormHypothesisInput) (*domain.Hypothesis, error) {
	if in.Theory == "" {
		return nil, ErrHypothesisTheoryEmpty
	}
	if _, err := s.children.GetByID(ctx, in.ChildID, in.FamilyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChildNotFound
		}
		return nil, err
	}

	unlock := s.locks.Lock(in.ChildID)
	defer unlock()

	now := time.Now()
	h := &domain.Hypothesis{
		ChildID:        in.ChildID,
		FamilyID:       in.FamilyID,
		Theory:         in.Theory,
		Domain:         in.Domain,
		Status:         domain.HypothesisForming,
		Confidence:     float32(clampConfidence(float64(in.ConfidenceSeed))),
		FormedAt:       now,
		LastEvidenceAt: now,
		EvidenceIDs:    []uuid.UUID{},
	}

	for _, ev := range in.SupportingEvidence {
		e, err := s.createEvidence(ctx, in.ChildID, in.FamilyID, ev)
		if err != nil {
			return nil, err
		}
		h.EvidenceIDs = append(h.EvidenceIDs, e.ID)
	}
	if len(h.EvidenceIDs) > 0 {
		h.Status = domain.HypothesisActive
	}

	if err := s.hypotheses.Create(ctx, h); err != nil {
		return nil, err
	}

	s.logger.Info("hypothesis formed",
		zap.String("hypothesis_id", h.ID.String()),
		zap.String("child_id", in.ChildID.String()),
		zap.String("domain", in.Domain),
		zap.String("status", string(h.Status)),
		zap.Float32("confidence", h.Confidence))

	return h, nil
}

// AddEvidence appends a new observation to the hypothesis's evidence chain,
// adjusts confidence per the effect, and updates status. Evidence is never
// removed; a resolved hypothesis rejects further evidence.
func (s *HypothesisService) AddEvidence(ctx context.Context, hypothesisID, familyID uuid.UUID, ev EvidenceInput, effect domain.EvidenceEffect) (*domain.Hypothesis, error) {
	if !domain.ValidEvidenceEffect(string(effect)) {
		return nil, ErrInvalidEffect
	}

	h, err := s.hypotheses.GetByID(ctx, hypothesisID, familyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrHypothesisNotFound
		}
		return nil, err
	}

	unlock := s.locks.Lock(h.ChildID)
	defer unlock()

	// Re-read under the lock: another writer may have resolved it.
	h, err = s.hypotheses.GetByID(ctx, hypothesisID, familyID)
	if err != nil {
		return nil, err
	}
	if h.Resolved() {
		return nil, ErrAlreadyResolved
	}

	e, err := s.createEvidence(ctx, h.ChildID, familyID, ev)
	if err != nil {
		return nil, err
	}

	oldConfidence := h.Confidence
	h.EvidenceIDs = append(h.EvidenceIDs, e.ID)
	h.Confidence = s.policy.ApplyEffect(h.Confidence, effect)
	h.LastEvidenceAt = time.Now()

	switch effect {
	case domain.EffectContradicts:
		h.ContradictionCount++
		if h.ContradictionCount >= WeakeningContradictionThreshold || h.Confidence < WeakeningConfidenceFloor {
			h.Status = domain.HypothesisWeakening
		}
	case domain.EffectTransforms:
		h.Status = domain.HypothesisEvolving
	case domain.EffectSupports:
		if h.Status == domain.HypothesisForming {
			h.Status = domain.HypothesisActive
		}
	}

	if err := s.hypotheses.Update(ctx, h); err != nil {
		return nil, err
	}

	s.logger.Debug("evidence added",
		zap.String("hypothesis_id", h.ID.String()),
		zap.String("evidence_id", e.ID.String()),
		zap.String("effect", string(effect)),
		zap.Float32("old_confidence", oldConfidence),
		zap.Float32("new_confidence", h.Confidence),
		zap.String("status", string(h.Status)))

	s.runStaleness(ctx, h)
	return h, nil
}

// Resolve closes a hypothesis. Resolution is terminal: repeating the same
// resolution is a no-op, a different one fails with ErrAlreadyResolved.
func (s *HypothesisService) Resolve(ctx context.Context, hypothesisID, familyID uuid.UUID, resolution domain.Resolution, note string, evolvedInto *uuid.UUID) (*domain.Hypothesis, error) {
	if !domain.ValidResolution(string(resolution)) {
		return nil, ErrInvalidResolution
	}

	h, err := s.hypotheses.GetByID(ctx, hypothesisID, familyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrHypothesisNotFound
		}
		return nil, err
	}

	unlock := s.locks.Lock(h.ChildID)
	defer unlock()

	h, err = s.hypotheses.GetByID(ctx, hypothesisID, familyID)
	if err != nil {
		return nil, err
	}
	if h.Resolved() {
		if h.Resolution != nil && *h.Resolution == resolution {
			return h, nil
		}
		return nil, ErrAlreadyResolved
	}

	if evolvedInto != nil {
		if _, err := s.hypotheses.GetByID(ctx, *evolvedInto, familyID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrHypothesisNotFound
			}
			return nil, err
		}
	}

	h.Status = domain.HypothesisResolved
	h.Resolution = &resolution
	h.ResolutionNote = note
	h.EvolvedInto = evolvedInto
	h.LastEvidenceAt = time.Now()

	if err := s.hypotheses.Update(ctx, h); err != nil {
		return nil, err
	}

	s.logger.Info("hypothesis resolved",
		zap.String("hypothesis_id", h.ID.String()),
		zap.String("resolution", string(resolution)))

	s.runStaleness(ctx, h)
	return h, nil
}

func (s *HypothesisService) GetByID(ctx context.Context, id, familyID uuid.UUID) (*domain.Hypothesis, error) {
	h, err := s.hypotheses.GetByID(ctx, id, familyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrHypothesisNotFound
		}
		return nil, err
	}
	return h, nil
}

func (s *HypothesisService) ListByChild(ctx context.Context, childID, familyID uuid.UUID) ([]domain.Hypothesis, error) {
	return s.hypotheses.ListByChild(ctx, childID, familyID)
}

// ListEvidence resolves the hypothesis's evidence chain, ordered by
// observation time.
func (s *HypothesisService) ListEvidence(ctx context.Context, hypothesisID, familyID uuid.UUID) ([]domain.Evidence, error) {
	h, err := s.GetByID(ctx, hypothesisID, familyID)
	if err != nil {
		return nil, err
	}
	if len(h.EvidenceIDs) == 0 {
		return []domain.Evidence{}, nil
	}
	return s.evidence.ListByIDs(ctx, h.EvidenceIDs)
}

func (s *HypothesisService) GetEvidence(ctx context.Context, id, familyID uuid.UUID) (*domain.Evidence, error) {
	e, err := s.evidence.GetByID(ctx, id, familyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEvidenceNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *HypothesisService) createEvidence(ctx context.Context, childID, familyID uuid.UUID, in EvidenceInput) (*domain.Evidence, error) {
	if in.Content == "" {
		return nil, ErrEvidenceContentEmpty
	}
	if !domain.ValidSourceKind(string(in.SourceKind)) {
		in.SourceKind = domain.SourceConversation
	}
	if in.ObservedAt.IsZero() {
		in.ObservedAt = time.Now()
	}
	e := &domain.Evidence{
		ChildID:    childID,
		FamilyID:   familyID,
		SourceKind: in.SourceKind,
		Content:    in.Content,
		Domain:     in.Domain,
		ObservedAt: in.ObservedAt,
	}
	if err := s.evidence.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *HypothesisService) runStaleness(ctx context.Context, h *domain.Hypothesis) {
	if s.staleness == nil {
		return
	}
	if err := s.staleness.CheckHypothesis(ctx, h); err != nil {
		s.logger.Warn("staleness check failed",
			zap.String("hypothesis_id", h.ID.String()),
			zap.Error(err))
	}
}
