package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sproutmind/sprout/internal/domain"
	"github.com/sproutmind/sprout/internal/store"
	"go.uber.org/zap"
)

// DefaultNewHypothesisThreshold is how many hypotheses must form in an
// artifact's domains, after the artifact was produced, before the artifact is
// marked needs_update.
const DefaultNewHypothesisThreshold = 2

// StalenessService re-evaluates cycle artifacts when the understanding they
// were derived from changes. It marks artifacts superseded when a referenced
// hypothesis has moved on, and needs_update when enough new hypotheses have
// formed in the artifact's domains.
type StalenessService struct {
	cycles                 domain.CycleStore
	hypotheses             domain.HypothesisStore
	locks                  *ChildLocks
	newHypothesisThreshold int
	logger                 *zap.Logger
}

func NewStalenessService(cycles domain.CycleStore, hypotheses domain.HypothesisStore, locks *ChildLocks, newHypothesisThreshold int, logger *zap.Logger) *StalenessService {
	if newHypothesisThreshold <= 0 {
		newHypothesisThreshold = DefaultNewHypothesisThreshold
	}
	return &StalenessService{
		cycles:                 cycles,
		hypotheses:             hypotheses,
		locks:                  locks,
		newHypothesisThreshold: newHypothesisThreshold,
		logger:                 logger,
	}
}

var _ StalenessChecker = (*StalenessService)(nil)

// CheckHypothesis re-evaluates every artifact that references the hypothesis.
// The caller must hold the child lock; the hypothesis service calls this after
// each mutation.
func (s *StalenessService) CheckHypothesis(ctx context.Context, h *domain.Hypothesis) error {
	artifacts, err := s.cycles.ListArtifactsByHypothesis(ctx, h.ChildID, h.ID)
	if err != nil {
		return fmt.Errorf("listing artifacts for hypothesis %s: %w", h.ID, err)
	}
	for i := range artifacts {
		if err := s.checkArtifact(ctx, h.ChildID, &artifacts[i]); err != nil {
			return err
		}
	}
	return nil
}

// CheckByID acquires the child lock itself; use it for direct staleness checks
// outside the hypothesis mutation path.
func (s *StalenessService) CheckByID(ctx context.Context, hypothesisID, familyID uuid.UUID) error {
	h, err := s.hypotheses.GetByID(ctx, hypothesisID, familyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrHypothesisNotFound
		}
		return err
	}

	unlock := s.locks.Lock(h.ChildID)
	defer unlock()

	h, err = s.hypotheses.GetByID(ctx, hypothesisID, familyID)
	if err != nil {
		return err
	}
	return s.CheckHypothesis(ctx, h)
}

// CheckChild sweeps every open cycle's artifacts for one child. Used by the
// background reflection loop.
func (s *StalenessService) CheckChild(ctx context.Context, childID, familyID uuid.UUID) error {
	unlock := s.locks.Lock(childID)
	defer unlock()

	cycles, err := s.cycles.ListByChild(ctx, childID, familyID)
	if err != nil {
		return err
	}
	for i := range cycles {
		c := &cycles[i]
		if !c.Open() {
			continue
		}
		for j := range c.Artifacts {
			if err := s.checkArtifact(ctx, childID, &c.Artifacts[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkArtifact applies the two staleness rules to one artifact. Terminal and
// draft artifacts are left alone, so the check is idempotent.
func (s *StalenessService) checkArtifact(ctx context.Context, childID uuid.UUID, a *domain.CycleArtifact) error {
	if a.Status != domain.ArtifactReady && a.Status != domain.ArtifactNeedsUpdate {
		return nil
	}
	if len(a.RelatedHypothesisIDs) == 0 {
		return nil
	}

	related, err := s.hypotheses.ListByIDs(ctx, a.RelatedHypothesisIDs)
	if err != nil {
		return err
	}

	// Rule 1: a referenced hypothesis was weakened or resolved after the
	// artifact was produced. The artifact's basis is gone; supersede it.
	for i := range related {
		h := &related[i]
		if h.Status != domain.HypothesisWeakening && h.Status != domain.HypothesisResolved {
			continue
		}
		if !h.LastEvidenceAt.After(a.CreatedAt) {
			continue
		}
		reason := fmt.Sprintf("hypothesis %s is now %s", h.ID, h.Status)
		if err := s.cycles.UpdateArtifactStatus(ctx, a.ID, domain.ArtifactSuperseded, reason); err != nil {
			return err
		}
		a.Status = domain.ArtifactSuperseded
		a.SupersededReason = reason
		s.logger.Info("artifact superseded by staleness check",
			zap.String("artifact_id", a.ID.String()),
			zap.String("hypothesis_id", h.ID.String()),
			zap.String("reason", reason))
		return nil
	}

	// Rule 2: enough new hypotheses have formed in the artifact's domains
	// since it was produced. Only ready artifacts are flagged; needs_update
	// is already the flag.
	if a.Status != domain.ArtifactReady {
		return nil
	}
	domains := relatedDomains(related)
	if len(domains) == 0 {
		return nil
	}
	count, err := s.hypotheses.CountFormedAfter(ctx, childID, domains, a.CreatedAt, a.RelatedHypothesisIDs)
	if err != nil {
		return err
	}
	if count < s.newHypothesisThreshold {
		return nil
	}
	if err := s.cycles.UpdateArtifactStatus(ctx, a.ID, domain.ArtifactNeedsUpdate, ""); err != nil {
		return err
	}
	a.Status = domain.ArtifactNeedsUpdate
	s.logger.Info("artifact flagged for update",
		zap.String("artifact_id", a.ID.String()),
		zap.Int("new_hypotheses", count),
		zap.Strings("domains", domains))
	return nil
}

func relatedDomains(hypotheses []domain.Hypothesis) []string {
	var out []string
	for i := range hypotheses {
		if d := hypotheses[i].Domain; d != "" {
			out = append(out, d)
		}
	}
	return dedupeStrings(out)
}
