package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sproutmind/sprout/internal/domain"
	"github.com/sproutmind/sprout/internal/store"
	"go.uber.org/zap"
)

const (
	// ThemeSimilarityThreshold is the cosine similarity above which two
	// pattern themes are considered the same theme.
	ThemeSimilarityThreshold = 0.85
)

var (
	ErrPatternThemeEmpty    = errors.New("pattern theme cannot be empty")
	ErrPatternNotFound      = errors.New("pattern not found")
	ErrInvalidPatternSource = errors.New("invalid pattern source")
)

// PatternService notices cross-cutting themes. Matching against existing
// patterns is exact on the normalized theme by default; with an embedding
// client configured it falls back to cosine similarity over theme embeddings.
// It never mutates hypotheses: callers that want a pattern to influence a
// hypothesis call HypothesisService.AddEvidence explicitly.
type PatternService struct {
	patterns domain.PatternStore
	children domain.ChildStore
	embedder domain.EmbeddingClient
	locks    *ChildLocks
	logger   *zap.Logger
}

func NewPatternService(patterns domain.PatternStore, children domain.ChildStore, embedder domain.EmbeddingClient, locks *ChildLocks, logger *zap.Logger) *PatternService {
	return &PatternService{patterns: patterns, children: children, embedder: embedder, locks: locks, logger: logger}
}

type NotePatternInput struct {
	ChildID        uuid.UUID
	FamilyID       uuid.UUID
	Theme          string
	Domains        []string
	ObservationIDs []uuid.UUID
	HypothesisIDs  []uuid.UUID
	Confidence     float32
	Source         domain.PatternSource
}

// Note records a theme. If a matching pattern exists, the new observations
// are merged into its supporting set and confidence is recombined weighted by
// prior evidence count; noting an already-known observation set is a no-op.
func (s *PatternService) Note(ctx context.Context, in NotePatternInput) (*domain.Pattern, error) {
	if strings.TrimSpace(in.Theme) == "" {
		return nil, ErrPatternThemeEmpty
	}
	if in.Source == "" {
		in.Source = domain.PatternSourceObservation
	}
	if !domain.ValidPatternSource(string(in.Source)) {
		return nil, ErrInvalidPatternSource
	}
	if _, err := s.children.GetByID(ctx, in.ChildID, in.FamilyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChildNotFound
		}
		return nil, err
	}

	normalized := NormalizeTheme(in.Theme)

	unlock := s.locks.Lock(in.ChildID)
	defer unlock()

	existing, err := s.match(ctx, in.ChildID, in.FamilyID, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.merge(ctx, existing, in)
	}

	p := &domain.Pattern{
		ChildID:         in.ChildID,
		FamilyID:        in.FamilyID,
		Theme:           in.Theme,
		NormalizedTheme: normalized,
		ObservationIDs:  dedupe(in.ObservationIDs),
		HypothesisIDs:   dedupe(in.HypothesisIDs),
		Domains:         dedupeStrings(in.Domains),
		Confidence:      float32(clampConfidence(float64(in.Confidence))),
		EvidenceCount:   len(dedupe(in.ObservationIDs)),
		Source:          in.Source,
	}
	if p.ObservationIDs == nil {
		p.ObservationIDs = []uuid.UUID{}
	}
	if p.HypothesisIDs == nil {
		p.HypothesisIDs = []uuid.UUID{}
	}
	if p.Domains == nil {
		p.Domains = []string{}
	}

	if s.embedder != nil {
		embedding, err := s.embedder.Embed(ctx, normalized)
		if err != nil {
			s.logger.Debug("failed to embed pattern theme", zap.Error(err))
		} else {
			p.Embedding = embedding
		}
	}

	if err := s.patterns.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("pattern detected",
		zap.String("pattern_id", p.ID.String()),
		zap.String("child_id", in.ChildID.String()),
		zap.String("theme", in.Theme),
		zap.Int("evidence_count", p.EvidenceCount))

	return p, nil
}

func (s *PatternService) GetByID(ctx context.Context, id, familyID uuid.UUID) (*domain.Pattern, error) {
	p, err := s.patterns.GetByID(ctx, id, familyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPatternNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *PatternService) ListByChild(ctx context.Context, childID, familyID uuid.UUID) ([]domain.Pattern, error) {
	return s.patterns.ListByChild(ctx, childID, familyID)
}

// match finds an existing pattern with the same theme: exact normalized
// lookup first, embedding similarity second.
func (s *PatternService) match(ctx context.Context, childID, familyID uuid.UUID, normalized string) (*domain.Pattern, error) {
	p, err := s.patterns.GetByNormalizedTheme(ctx, childID, familyID, normalized)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if s.embedder == nil {
		return nil, nil
	}
	embedding, err := s.embedder.Embed(ctx, normalized)
	if err != nil {
		s.logger.Debug("failed to embed theme for matching", zap.Error(err))
		return nil, nil
	}
	similar, err := s.patterns.FindSimilarByTheme(ctx, childID, familyID, embedding, ThemeSimilarityThreshold)
	if err != nil {
		return nil, err
	}
	if len(similar) == 0 {
		return nil, nil
	}
	return &similar[0].Pattern, nil
}

func (s *PatternService) merge(ctx context.Context, p *domain.Pattern, in NotePatternInput) (*domain.Pattern, error) {
	known := make(map[uuid.UUID]bool, len(p.ObservationIDs))
	for _, id := range p.ObservationIDs {
		known[id] = true
	}

	var added int
	for _, id := range dedupe(in.ObservationIDs) {
		if !known[id] {
			p.ObservationIDs = append(p.ObservationIDs, id)
			known[id] = true
			added++
		}
	}

	// Nothing new: identical input is a no-op so Note stays idempotent.
	if added == 0 {
		return p, nil
	}

	knownHyp := make(map[uuid.UUID]bool, len(p.HypothesisIDs))
	for _, id := range p.HypothesisIDs {
		knownHyp[id] = true
	}
	for _, id := range dedupe(in.HypothesisIDs) {
		if !knownHyp[id] {
			p.HypothesisIDs = append(p.HypothesisIDs, id)
			knownHyp[id] = true
		}
	}

	knownDomain := make(map[string]bool, len(p.Domains))
	for _, d := range p.Domains {
		knownDomain[d] = true
	}
	for _, d := range dedupeStrings(in.Domains) {
		if !knownDomain[d] {
			p.Domains = append(p.Domains, d)
			knownDomain[d] = true
		}
	}

	// Existing confidence weighted by prior evidence count, new by 1.
	prior := float64(p.EvidenceCount)
	if prior < 1 {
		prior = 1
	}
	combined := (float64(p.Confidence)*prior + clampConfidence(float64(in.Confidence))) / (prior + 1)
	p.Confidence = float32(clampConfidence(combined))
	p.EvidenceCount += added

	if err := s.patterns.Update(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Debug("pattern strengthened",
		zap.String("pattern_id", p.ID.String()),
		zap.Int("added_observations", added),
		zap.Float32("confidence", p.Confidence))

	return p, nil
}

// NormalizeTheme lowercases and collapses whitespace so equivalent theme
// strings match exactly.
func NormalizeTheme(theme string) string {
	return strings.Join(strings.Fields(strings.ToLower(theme)), " ")
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	var out []uuid.UUID
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func dedupeStrings(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ss))
	var out []string
	for _, s := range ss {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
