package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type FamilyStore interface {
	Create(ctx context.Context, f *Family) error
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Family, error)
}

type ChildStore interface {
	Create(ctx context.Context, c *Child) error
	GetByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*Child, error)
	ListByFamily(ctx context.Context, familyID uuid.UUID) ([]Child, error)
	// ListAll is used by the background reflection sweep.
	ListAll(ctx context.Context) ([]Child, error)
}

// FactStore persists bi-temporal facts. Insert and Supersede are the only
// writes: rows are never updated in place beyond closing their validity
// interval.
type FactStore interface {
	Insert(ctx context.Context, f *TemporalFact) error
	// Supersede atomically closes the old row (valid_until, expired_at,
	// superseded_by) and inserts the new one. Returns
	// ErrConcurrentModification if the old row is no longer current.
	Supersede(ctx context.Context, old *TemporalFact, f *TemporalFact) error
	GetCurrent(ctx context.Context, childID, familyID uuid.UUID, predicate string) (*TemporalFact, error)
	QueryCurrent(ctx context.Context, childID, familyID uuid.UUID, predicate string) ([]TemporalFact, error)
	QueryAsOf(ctx context.Context, childID, familyID uuid.UUID, predicate string, at time.Time) (*TemporalFact, error)
	QueryHistory(ctx context.Context, childID, familyID uuid.UUID, aspect string) ([]TemporalFact, error)
}

type EvidenceStore interface {
	Create(ctx context.Context, e *Evidence) error
	GetByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*Evidence, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]Evidence, error)
}

type HypothesisStore interface {
	Create(ctx context.Context, h *Hypothesis) error
	GetByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*Hypothesis, error)
	Update(ctx context.Context, h *Hypothesis) error
	ListByChild(ctx context.Context, childID, familyID uuid.UUID) ([]Hypothesis, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]Hypothesis, error)
	// CountFormedAfter counts hypotheses for the child in any of the given
	// domains formed after the cutoff, excluding the listed ids. Used by the
	// artifact staleness check.
	CountFormedAfter(ctx context.Context, childID uuid.UUID, domains []string, after time.Time, exclude []uuid.UUID) (int, error)
}

type PatternStore interface {
	Create(ctx context.Context, p *Pattern) error
	GetByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*Pattern, error)
	GetByNormalizedTheme(ctx context.Context, childID, familyID uuid.UUID, normalizedTheme string) (*Pattern, error)
	FindSimilarByTheme(ctx context.Context, childID, familyID uuid.UUID, embedding []float32, threshold float32) ([]PatternWithScore, error)
	Update(ctx context.Context, p *Pattern) error
	ListByChild(ctx context.Context, childID, familyID uuid.UUID) ([]Pattern, error)
}

type CycleStore interface {
	Create(ctx context.Context, c *ExplorationCycle) error
	GetByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*ExplorationCycle, error)
	GetOpenByCuriosity(ctx context.Context, childID, curiosityID uuid.UUID) (*ExplorationCycle, error)
	ListByChild(ctx context.Context, childID, familyID uuid.UUID) ([]ExplorationCycle, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status CycleStatus, completedAt *time.Time) error
	AddHypothesis(ctx context.Context, cycleID, hypothesisID uuid.UUID) error

	AttachArtifact(ctx context.Context, a *CycleArtifact) error
	GetArtifactByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*CycleArtifact, error)
	UpdateArtifactStatus(ctx context.Context, id uuid.UUID, status ArtifactStatus, supersededReason string) error
	UpdateArtifactFulfillment(ctx context.Context, id uuid.UUID, receivedUnits int, status ArtifactStatus) error
	ListArtifactsByHypothesis(ctx context.Context, childID, hypothesisID uuid.UUID) ([]CycleArtifact, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
