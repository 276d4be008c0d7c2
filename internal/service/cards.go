package service

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/sproutmind/sprout/internal/domain"
	"go.uber.org/zap"
)

// DefaultMaxCards caps one derivation pass; the highest-priority cards win.
const DefaultMaxCards = 4

// CardService projects cycle and artifact state into actionable cards. Cards
// are derived on every call and never stored, so they cannot drift from the
// state they describe.
type CardService struct {
	cycles   domain.CycleStore
	maxCards int
	logger   *zap.Logger
}

func NewCardService(cycles domain.CycleStore, maxCards int, logger *zap.Logger) *CardService {
	if maxCards <= 0 {
		maxCards = DefaultMaxCards
	}
	return &CardService{cycles: cycles, maxCards: maxCards, logger: logger}
}

// DeriveForChild derives the current card set for one child from their
// cycles.
func (s *CardService) DeriveForChild(ctx context.Context, childID, familyID uuid.UUID) ([]domain.Card, error) {
	cycles, err := s.cycles.ListByChild(ctx, childID, familyID)
	if err != nil {
		return nil, err
	}
	cards := DeriveCards(cycles, s.maxCards)

	s.logger.Debug("cards derived",
		zap.String("child_id", childID.String()),
		zap.Int("count", len(cards)))

	return cards, nil
}

// DeriveCards is the pure projection: cycles in, ordered cards out.
//
//	guideline_set ready        -> guidelines_ready   (9)
//	guideline_set needs_update -> guidelines_updated (10)
//	analysis ready             -> analysis_ready     (10)
//	report ready               -> report_ready       (10)
//
// A complete cycle emits only the report-ready card; its remaining artifacts
// stay silent. Draft, fulfilled, and superseded artifacts produce no card.
// Cards sort by priority descending, then artifact id for a deterministic
// order, truncated to max.
func DeriveCards(cycles []domain.ExplorationCycle, max int) []domain.Card {
	if max <= 0 {
		max = DefaultMaxCards
	}

	cards := []domain.Card{}
	for i := range cycles {
		c := &cycles[i]
		for j := range c.Artifacts {
			a := &c.Artifacts[j]
			card, ok := cardForArtifact(c, a)
			if ok {
				cards = append(cards, card)
			}
		}
	}

	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Priority != cards[j].Priority {
			return cards[i].Priority > cards[j].Priority
		}
		return cards[i].ArtifactID.String() < cards[j].ArtifactID.String()
	})

	if len(cards) > max {
		cards = cards[:max]
	}
	return cards
}

func cardForArtifact(c *domain.ExplorationCycle, a *domain.CycleArtifact) (domain.Card, bool) {
	card := domain.Card{
		CycleID:    c.ID,
		ArtifactID: a.ID,
		Focus:      c.Focus,
	}

	// Once a cycle completes, the report is the only thing left to act on.
	if !c.Open() {
		if a.Type == domain.ArtifactReport && a.Status == domain.ArtifactReady {
			card.Kind = domain.CardReportReady
			card.Priority = 10
			return card, true
		}
		return domain.Card{}, false
	}

	switch {
	case a.Type == domain.ArtifactGuidelineSet && a.Status == domain.ArtifactReady:
		card.Kind = domain.CardGuidelinesReady
		card.Priority = 9
		card.Remaining = a.Remaining()
	case a.Type == domain.ArtifactGuidelineSet && a.Status == domain.ArtifactNeedsUpdate:
		card.Kind = domain.CardGuidelinesUpdated
		card.Priority = 10
		card.Remaining = a.Remaining()
	case a.Type == domain.ArtifactAnalysis && a.Status == domain.ArtifactReady:
		card.Kind = domain.CardAnalysisReady
		card.Priority = 10
	case a.Type == domain.ArtifactReport && a.Status == domain.ArtifactReady:
		card.Kind = domain.CardReportReady
		card.Priority = 10
	default:
		return domain.Card{}, false
	}
	return card, true
}
