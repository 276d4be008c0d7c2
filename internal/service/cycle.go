package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sproutmind/sprout/internal/domain"
	"github.com/sproutmind/sprout/internal/store"
	"go.uber.org/zap"
)

var (
	ErrCycleNotFound    = errors.New("exploration cycle not found")
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrInvalidTransition is returned for any cycle or artifact state change
	// outside the allowed edge tables.
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrInvalidArtifactType = errors.New("invalid artifact type")
)

// CycleService is the exploration-cycle state machine. Transitions happen
// only through explicit calls here; each is validated against the allowed
// edges and rejected with ErrInvalidTransition otherwise.
type CycleService struct {
	cycles     domain.CycleStore
	hypotheses domain.HypothesisStore
	children   domain.ChildStore
	locks      *ChildLocks
	logger     *zap.Logger
}

func NewCycleService(cycles domain.CycleStore, hypotheses domain.HypothesisStore, children domain.ChildStore, locks *ChildLocks, logger *zap.Logger) *CycleService {
	return &CycleService{cycles: cycles, hypotheses: hypotheses, children: children, locks: locks, logger: logger}
}

// Spawn creates a cycle from a curiosity. Spawning is the only way a cycle
// comes into being, and a curiosity may have at most one open cycle.
func (s *CycleService) Spawn(ctx context.Context, familyID uuid.UUID, curiosity domain.Curiosity) (*domain.ExplorationCycle, error) {
	if err := curiosity.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.children.GetByID(ctx, curiosity.ChildID, familyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChildNotFound
		}
		return nil, err
	}
	if curiosity.ID == uuid.Nil {
		curiosity.ID = uuid.New()
	}

	unlock := s.locks.Lock(curiosity.ChildID)
	defer unlock()

	if _, err := s.cycles.GetOpenByCuriosity(ctx, curiosity.ChildID, curiosity.ID); err == nil {
		return nil, fmt.Errorf("curiosity %s already has an open cycle: %w", curiosity.ID, ErrInvalidTransition)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	c := &domain.ExplorationCycle{
		ChildID:       curiosity.ChildID,
		FamilyID:      familyID,
		CuriosityID:   curiosity.ID,
		CuriosityType: curiosity.Type,
		Focus:         curiosity.Focus,
		Status:        domain.CycleActive,
		HypothesisIDs: []uuid.UUID{},
	}
	if err := s.cycles.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("exploration cycle spawned",
		zap.String("cycle_id", c.ID.String()),
		zap.String("child_id", c.ChildID.String()),
		zap.String("curiosity_type", string(curiosity.Type)),
		zap.String("focus", curiosity.Focus))

	return c, nil
}

// AttachHypothesis adds a hypothesis to the cycle's line of inquiry.
func (s *CycleService) AttachHypothesis(ctx context.Context, cycleID, familyID, hypothesisID uuid.UUID) (*domain.ExplorationCycle, error) {
	c, err := s.get(ctx, cycleID, familyID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(c.ChildID)
	defer unlock()

	if !c.Open() {
		return nil, fmt.Errorf("cycle %s is complete: %w", cycleID, ErrInvalidTransition)
	}
	if _, err := s.hypotheses.GetByID(ctx, hypothesisID, familyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrHypothesisNotFound
		}
		return nil, err
	}
	if err := s.cycles.AddHypothesis(ctx, cycleID, hypothesisID); err != nil {
		return nil, err
	}
	return s.get(ctx, cycleID, familyID)
}

// Advance moves the cycle to its next status, validating the preconditions
// each edge requires.
func (s *CycleService) Advance(ctx context.Context, cycleID, familyID uuid.UUID) (*domain.ExplorationCycle, error) {
	c, err := s.get(ctx, cycleID, familyID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(c.ChildID)
	defer unlock()

	c, err = s.get(ctx, cycleID, familyID)
	if err != nil {
		return nil, err
	}

	next, ok := domain.NextCycleStatus(c.Status)
	if !ok {
		return nil, fmt.Errorf("cycle %s is complete: %w", cycleID, ErrInvalidTransition)
	}

	switch next {
	case domain.CycleEvidenceGathering:
		// Needs an observation request out in the world.
		a := c.LatestArtifact(domain.ArtifactGuidelineSet)
		if a == nil || (a.Status != domain.ArtifactReady && a.Status != domain.ArtifactNeedsUpdate) {
			return nil, fmt.Errorf("no ready guideline set on cycle %s: %w", cycleID, ErrInvalidTransition)
		}
	case domain.CycleSynthesizing:
		// Every requested observation artifact must be consumed.
		for i := range c.Artifacts {
			a := &c.Artifacts[i]
			if a.Type == domain.ArtifactGuidelineSet && !domain.TerminalArtifactStatus(a.Status) {
				return nil, fmt.Errorf("guideline set %s still outstanding: %w", a.ID, ErrInvalidTransition)
			}
		}
	case domain.CycleComplete:
		report := c.LatestArtifact(domain.ArtifactReport)
		analysis := c.LatestArtifact(domain.ArtifactAnalysis)
		defining := report
		if defining == nil {
			defining = analysis
		}
		if defining == nil || defining.Status == domain.ArtifactDraft {
			return nil, fmt.Errorf("no ready synthesis artifact on cycle %s: %w", cycleID, ErrInvalidTransition)
		}
	}

	var completedAt *time.Time
	if next == domain.CycleComplete {
		now := time.Now()
		completedAt = &now
	}
	if err := s.cycles.UpdateStatus(ctx, cycleID, next, completedAt); err != nil {
		return nil, err
	}

	s.logger.Info("cycle advanced",
		zap.String("cycle_id", cycleID.String()),
		zap.String("from", string(c.Status)),
		zap.String("to", string(next)))

	c.Status = next
	c.CompletedAt = completedAt
	return c, nil
}

type AttachArtifactInput struct {
	CycleID              uuid.UUID
	FamilyID             uuid.UUID
	Type                 domain.ArtifactType
	Content              json.RawMessage
	Status               domain.ArtifactStatus
	RelatedHypothesisIDs []uuid.UUID
	ExpectedUnits        int
}

// AttachArtifact adds an artifact to an open cycle. Artifacts start in draft
// unless explicitly attached ready.
func (s *CycleService) AttachArtifact(ctx context.Context, in AttachArtifactInput) (*domain.CycleArtifact, error) {
	if !domain.ValidArtifactType(string(in.Type)) {
		return nil, ErrInvalidArtifactType
	}
	if in.Status == "" {
		in.Status = domain.ArtifactDraft
	}
	if in.Status != domain.ArtifactDraft && in.Status != domain.ArtifactReady {
		return nil, fmt.Errorf("artifact cannot be attached as %s: %w", in.Status, ErrInvalidTransition)
	}

	c, err := s.get(ctx, in.CycleID, in.FamilyID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(c.ChildID)
	defer unlock()

	c, err = s.get(ctx, in.CycleID, in.FamilyID)
	if err != nil {
		return nil, err
	}
	if !c.Open() {
		return nil, fmt.Errorf("cycle %s is complete: %w", in.CycleID, ErrInvalidTransition)
	}

	related := dedupe(in.RelatedHypothesisIDs)
	if related == nil {
		related = []uuid.UUID{}
	}
	for _, id := range related {
		if _, err := s.hypotheses.GetByID(ctx, id, in.FamilyID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrHypothesisNotFound
			}
			return nil, err
		}
	}

	a := &domain.CycleArtifact{
		CycleID:              in.CycleID,
		Type:                 in.Type,
		Content:              in.Content,
		Status:               in.Status,
		RelatedHypothesisIDs: related,
		ExpectedUnits:        in.ExpectedUnits,
	}
	if err := s.cycles.AttachArtifact(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("artifact attached",
		zap.String("cycle_id", in.CycleID.String()),
		zap.String("artifact_id", a.ID.String()),
		zap.String("type", string(in.Type)),
		zap.String("status", string(a.Status)))

	return a, nil
}

// UpdateArtifactStatus applies one edge of the artifact lifecycle.
// Superseding requires a reason.
func (s *CycleService) UpdateArtifactStatus(ctx context.Context, artifactID, familyID uuid.UUID, newStatus domain.ArtifactStatus, reason string) (*domain.CycleArtifact, error) {
	if !domain.ValidArtifactStatus(string(newStatus)) {
		return nil, fmt.Errorf("unknown artifact status %q: %w", newStatus, ErrInvalidTransition)
	}

	a, err := s.getArtifact(ctx, artifactID, familyID)
	if err != nil {
		return nil, err
	}

	c, err := s.get(ctx, a.CycleID, familyID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(c.ChildID)
	defer unlock()

	a, err = s.getArtifact(ctx, artifactID, familyID)
	if err != nil {
		return nil, err
	}
	if !domain.ValidArtifactTransition(a.Status, newStatus) {
		return nil, fmt.Errorf("artifact %s: %s -> %s: %w", artifactID, a.Status, newStatus, ErrInvalidTransition)
	}
	if newStatus != domain.ArtifactSuperseded {
		reason = ""
	}

	if err := s.cycles.UpdateArtifactStatus(ctx, artifactID, newStatus, reason); err != nil {
		return nil, err
	}

	s.logger.Info("artifact status updated",
		zap.String("artifact_id", artifactID.String()),
		zap.String("from", string(a.Status)),
		zap.String("to", string(newStatus)))

	a.Status = newStatus
	a.SupersededReason = reason
	return a, nil
}

// RecordFulfillment counts received observation units against a ready
// artifact; when the expected count is met the artifact becomes fulfilled.
func (s *CycleService) RecordFulfillment(ctx context.Context, artifactID, familyID uuid.UUID, units int) (*domain.CycleArtifact, error) {
	if units <= 0 {
		units = 1
	}

	a, err := s.getArtifact(ctx, artifactID, familyID)
	if err != nil {
		return nil, err
	}

	c, err := s.get(ctx, a.CycleID, familyID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(c.ChildID)
	defer unlock()

	a, err = s.getArtifact(ctx, artifactID, familyID)
	if err != nil {
		return nil, err
	}
	if a.Status != domain.ArtifactReady {
		return nil, fmt.Errorf("artifact %s is %s, not ready: %w", artifactID, a.Status, ErrInvalidTransition)
	}

	a.ReceivedUnits += units
	status := a.Status
	if a.ExpectedUnits > 0 && a.ReceivedUnits >= a.ExpectedUnits {
		status = domain.ArtifactFulfilled
	}
	if err := s.cycles.UpdateArtifactFulfillment(ctx, artifactID, a.ReceivedUnits, status); err != nil {
		return nil, err
	}
	a.Status = status

	s.logger.Debug("fulfillment recorded",
		zap.String("artifact_id", artifactID.String()),
		zap.Int("received", a.ReceivedUnits),
		zap.Int("expected", a.ExpectedUnits),
		zap.String("status", string(a.Status)))

	return a, nil
}

// GetArtifact returns the most recent non-superseded artifact of the given
// type on the cycle, or ErrArtifactNotFound.
func (s *CycleService) GetArtifact(ctx context.Context, cycleID, familyID uuid.UUID, artifactType domain.ArtifactType) (*domain.CycleArtifact, error) {
	if !domain.ValidArtifactType(string(artifactType)) {
		return nil, ErrInvalidArtifactType
	}
	c, err := s.get(ctx, cycleID, familyID)
	if err != nil {
		return nil, err
	}
	a := c.LatestArtifact(artifactType)
	if a == nil {
		return nil, ErrArtifactNotFound
	}
	return a, nil
}

func (s *CycleService) GetByID(ctx context.Context, id, familyID uuid.UUID) (*domain.ExplorationCycle, error) {
	return s.get(ctx, id, familyID)
}

func (s *CycleService) ListByChild(ctx context.Context, childID, familyID uuid.UUID) ([]domain.ExplorationCycle, error) {
	return s.cycles.ListByChild(ctx, childID, familyID)
}

func (s *CycleService) get(ctx context.Context, id, familyID uuid.UUID) (*domain.ExplorationCycle, error) {
	c, err := s.cycles.GetByID(ctx, id, familyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCycleNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *CycleService) getArtifact(ctx context.Context, id, familyID uuid.UUID) (*domain.CycleArtifact, error) {
	a, err := s.cycles.GetArtifactByID(ctx, id, familyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrArtifactNotFound
		}
		return nil, err
	}
	return a, nil
}
