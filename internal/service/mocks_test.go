package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sproutmind/sprout/internal/domain"
	"github.com/sproutmind/sprout/internal/store"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// mockChildStore implements domain.ChildStore for testing.
type mockChildStore struct {
	children map[uuid.UUID]*domain.Child
}

func newMockChildStore() *mockChildStore {
	return &mockChildStore{children: make(map[uuid.UUID]*domain.Child)}
}

func (m *mockChildStore) Create(ctx context.Context, c *domain.Child) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.children[c.ID] = c
	return nil
}

func (m *mockChildStore) GetByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*domain.Child, error) {
	c, ok := m.children[id]
	if !ok || c.FamilyID != familyID {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (m *mockChildStore) ListByFamily(ctx context.Context, familyID uuid.UUID) ([]domain.Child, error) {
	var out []domain.Child
	for _, c := range m.children {
		if c.FamilyID == familyID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockChildStore) ListAll(ctx context.Context) ([]domain.Child, error) {
	var out []domain.Child
	for _, c := range m.children {
		out = append(out, *c)
	}
	return out, nil
}

// mockFactStore implements domain.FactStore with the same supersession
// guarantees as the SQL store: the pair-write fails if the old row is no
// longer current.
type mockFactStore struct {
	facts map[uuid.UUID]*domain.TemporalFact
	seq   int
}

func newMockFactStore() *mockFactStore {
	return &mockFactStore{facts: make(map[uuid.UUID]*domain.TemporalFact)}
}

func (m *mockFactStore) Insert(ctx context.Context, f *domain.TemporalFact) error {
	f.ID = uuid.New()
	m.seq++
	f.RecordedAt = time.Now().Add(time.Duration(m.seq) * time.Microsecond)
	cp := *f
	m.facts[f.ID] = &cp
	return nil
}

func (m *mockFactStore) Supersede(ctx context.Context, old *domain.TemporalFact, f *domain.TemporalFact) error {
	stored, ok := m.facts[old.ID]
	if !ok || stored.ValidUntil != nil {
		return store.ErrConcurrentModification
	}
	f.Supersedes = &old.ID
	if err := m.Insert(ctx, f); err != nil {
		return err
	}
	until := f.ValidFrom
	expired := time.Now()
	stored.ValidUntil = &until
	stored.ExpiredAt = &expired
	stored.SupersededBy = &f.ID
	return nil
}

func (m *mockFactStore) GetCurrent(ctx context.Context, childID, familyID uuid.UUID, predicate string) (*domain.TemporalFact, error) {
	for _, f := range m.facts {
		if f.ChildID == childID && f.FamilyID == familyID && f.Predicate == predicate && f.ValidUntil == nil {
			cp := *f
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockFactStore) QueryCurrent(ctx context.Context, childID, familyID uuid.UUID, predicate string) ([]domain.TemporalFact, error) {
	var out []domain.TemporalFact
	for _, f := range m.facts {
		if f.ChildID != childID || f.FamilyID != familyID || f.ValidUntil != nil {
			continue
		}
		if predicate != "" && f.Predicate != predicate {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Predicate < out[j].Predicate })
	return out, nil
}

func (m *mockFactStore) QueryAsOf(ctx context.Context, childID, familyID uuid.UUID, predicate string, at time.Time) (*domain.TemporalFact, error) {
	var best *domain.TemporalFact
	for _, f := range m.facts {
		if f.ChildID != childID || f.FamilyID != familyID || f.Predicate != predicate {
			continue
		}
		if !f.CoversValidTime(at) {
			continue
		}
		if best == nil || f.RecordedAt.After(best.RecordedAt) {
			best = f
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *mockFactStore) QueryHistory(ctx context.Context, childID, familyID uuid.UUID, aspect string) ([]domain.TemporalFact, error) {
	var out []domain.TemporalFact
	for _, f := range m.facts {
		if f.ChildID == childID && f.FamilyID == familyID && f.Aspect == aspect {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ValidFrom.Equal(out[j].ValidFrom) {
			return out[i].ValidFrom.Before(out[j].ValidFrom)
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}

// mockEvidenceStore implements domain.EvidenceStore for testing.
type mockEvidenceStore struct {
	evidence map[uuid.UUID]*domain.Evidence
}

func newMockEvidenceStore() *mockEvidenceStore {
	return &mockEvidenceStore{evidence: make(map[uuid.UUID]*domain.Evidence)}
}

func (m *mockEvidenceStore) Create(ctx context.Context, e *domain.Evidence) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	m.evidence[e.ID] = e
	return nil
}

func (m *mockEvidenceStore) GetByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*domain.Evidence, error) {
	e, ok := m.evidence[id]
	if !ok || e.FamilyID != familyID {
		return nil, store.ErrNotFound
	}
	return e, nil
}

func (m *mockEvidenceStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Evidence, error) {
	var out []domain.Evidence
	for _, id := range ids {
		if e, ok := m.evidence[id]; ok {
			out = append(out, *e)
		}
	}
	return out, nil
}

// mockHypothesisStore implements domain.HypothesisStore for testing.
type mockHypothesisStore struct {
	hypotheses map[uuid.UUID]*domain.Hypothesis
}

func newMockHypothesisStore() *mockHypothesisStore {
	return &mockHypothesisStore{hypotheses: make(map[uuid.UUID]*domain.Hypothesis)}
}

func (m *mockHypothesisStore) Create(ctx context.Context, h *domain.Hypothesis) error {
	h.ID = uuid.New()
	h.CreatedAt = time.Now()
	h.UpdatedAt = h.CreatedAt
	cp := *h
	m.hypotheses[h.ID] = &cp
	return nil
}

func (m *mockHypothesisStore) GetByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*domain.Hypothesis, error) {
	h, ok := m.hypotheses[id]
	if !ok || h.FamilyID != familyID {
		return nil, store.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (m *mockHypothesisStore) Update(ctx context.Context, h *domain.Hypothesis) error {
	if _, ok := m.hypotheses[h.ID]; !ok {
		return store.ErrNotFound
	}
	h.UpdatedAt = time.Now()
	cp := *h
	m.hypotheses[h.ID] = &cp
	return nil
}

func (m *mockHypothesisStore) ListByChild(ctx context.Context, childID, familyID uuid.UUID) ([]domain.Hypothesis, error) {
	var out []domain.Hypothesis
	for _, h := range m.hypotheses {
		if h.ChildID == childID && h.FamilyID == familyID {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FormedAt.Before(out[j].FormedAt) })
	return out, nil
}

func (m *mockHypothesisStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Hypothesis, error) {
	var out []domain.Hypothesis
	for _, id := range ids {
		if h, ok := m.hypotheses[id]; ok {
			out = append(out, *h)
		}
	}
	return out, nil
}

func (m *mockHypothesisStore) CountFormedAfter(ctx context.Context, childID uuid.UUID, domains []string, after time.Time, exclude []uuid.UUID) (int, error) {
	excluded := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}
	inDomain := make(map[string]bool, len(domains))
	for _, d := range domains {
		inDomain[d] = true
	}
	count := 0
	for _, h := range m.hypotheses {
		if h.ChildID == childID && inDomain[h.Domain] && h.FormedAt.After(after) && !excluded[h.ID] {
			count++
		}
	}
	return count, nil
}

// mockPatternStore implements domain.PatternStore for testing.
type mockPatternStore struct {
	patterns map[uuid.UUID]*domain.Pattern
}

func newMockPatternStore() *mockPatternStore {
	return &mockPatternStore{patterns: make(map[uuid.UUID]*domain.Pattern)}
}

func (m *mockPatternStore) Create(ctx context.Context, p *domain.Pattern) error {
	p.ID = uuid.New()
	p.DetectedAt = time.Now()
	p.UpdatedAt = p.DetectedAt
	cp := *p
	m.patterns[p.ID] = &cp
	return nil
}

func (m *mockPatternStore) GetByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*domain.Pattern, error) {
	p, ok := m.patterns[id]
	if !ok || p.FamilyID != familyID {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatternStore) GetByNormalizedTheme(ctx context.Context, childID, familyID uuid.UUID, normalizedTheme string) (*domain.Pattern, error) {
	for _, p := range m.patterns {
		if p.ChildID == childID && p.FamilyID == familyID && p.NormalizedTheme == normalizedTheme {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockPatternStore) FindSimilarByTheme(ctx context.Context, childID, familyID uuid.UUID, embedding []float32, threshold float32) ([]domain.PatternWithScore, error) {
	var out []domain.PatternWithScore
	for _, p := range m.patterns {
		if p.ChildID != childID || p.FamilyID != familyID || len(p.Embedding) == 0 {
			continue
		}
		score := cosine(embedding, p.Embedding)
		if score >= threshold {
			out = append(out, domain.PatternWithScore{Pattern: *p, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (m *mockPatternStore) Update(ctx context.Context, p *domain.Pattern) error {
	if _, ok := m.patterns[p.ID]; !ok {
		return store.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	cp := *p
	m.patterns[p.ID] = &cp
	return nil
}

func (m *mockPatternStore) ListByChild(ctx context.Context, childID, familyID uuid.UUID) ([]domain.Pattern, error) {
	var out []domain.Pattern
	for _, p := range m.patterns {
		if p.ChildID == childID && p.FamilyID == familyID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// mockCycleStore implements domain.CycleStore for testing.
type mockCycleStore struct {
	cycles    map[uuid.UUID]*domain.ExplorationCycle
	artifacts map[uuid.UUID]*domain.CycleArtifact
	seq       int
}

func newMockCycleStore() *mockCycleStore {
	return &mockCycleStore{
		cycles:    make(map[uuid.UUID]*domain.ExplorationCycle),
		artifacts: make(map[uuid.UUID]*domain.CycleArtifact),
	}
}

func (m *mockCycleStore) Create(ctx context.Context, c *domain.ExplorationCycle) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	cp := *c
	m.cycles[c.ID] = &cp
	return nil
}

func (m *mockCycleStore) GetByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*domain.ExplorationCycle, error) {
	c, ok := m.cycles[id]
	if !ok || c.FamilyID != familyID {
		return nil, store.ErrNotFound
	}
	cp := *c
	cp.Artifacts = m.artifactsForCycle(c.ID)
	return &cp, nil
}

func (m *mockCycleStore) GetOpenByCuriosity(ctx context.Context, childID, curiosityID uuid.UUID) (*domain.ExplorationCycle, error) {
	for _, c := range m.cycles {
		if c.ChildID == childID && c.CuriosityID == curiosityID && c.Status != domain.CycleComplete {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockCycleStore) ListByChild(ctx context.Context, childID, familyID uuid.UUID) ([]domain.ExplorationCycle, error) {
	var out []domain.ExplorationCycle
	for _, c := range m.cycles {
		if c.ChildID == childID && c.FamilyID == familyID {
			cp := *c
			cp.Artifacts = m.artifactsForCycle(c.ID)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockCycleStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CycleStatus, completedAt *time.Time) error {
	c, ok := m.cycles[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Status = status
	c.CompletedAt = completedAt
	return nil
}

func (m *mockCycleStore) AddHypothesis(ctx context.Context, cycleID, hypothesisID uuid.UUID) error {
	c, ok := m.cycles[cycleID]
	if !ok {
		return store.ErrNotFound
	}
	for _, id := range c.HypothesisIDs {
		if id == hypothesisID {
			return nil
		}
	}
	c.HypothesisIDs = append(c.HypothesisIDs, hypothesisID)
	return nil
}

func (m *mockCycleStore) AttachArtifact(ctx context.Context, a *domain.CycleArtifact) error {
	a.ID = uuid.New()
	m.seq++
	a.CreatedAt = time.Now().Add(time.Duration(m.seq) * time.Microsecond)
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.artifacts[a.ID] = &cp
	return nil
}

func (m *mockCycleStore) GetArtifactByID(ctx context.Context, id uuid.UUID, familyID uuid.UUID) (*domain.CycleArtifact, error) {
	a, ok := m.artifacts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c, ok := m.cycles[a.CycleID]
	if !ok || c.FamilyID != familyID {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockCycleStore) UpdateArtifactStatus(ctx context.Context, id uuid.UUID, status domain.ArtifactStatus, supersededReason string) error {
	a, ok := m.artifacts[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Status = status
	a.SupersededReason = supersededReason
	a.UpdatedAt = time.Now()
	return nil
}

func (m *mockCycleStore) UpdateArtifactFulfillment(ctx context.Context, id uuid.UUID, receivedUnits int, status domain.ArtifactStatus) error {
	a, ok := m.artifacts[id]
	if !ok {
		return store.ErrNotFound
	}
	a.ReceivedUnits = receivedUnits
	a.Status = status
	a.UpdatedAt = time.Now()
	return nil
}

func (m *mockCycleStore) ListArtifactsByHypothesis(ctx context.Context, childID, hypothesisID uuid.UUID) ([]domain.CycleArtifact, error) {
	var out []domain.CycleArtifact
	for _, a := range m.artifacts {
		c, ok := m.cycles[a.CycleID]
		if !ok || c.ChildID != childID {
			continue
		}
		for _, id := range a.RelatedHypothesisIDs {
			if id == hypothesisID {
				out = append(out, *a)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockCycleStore) artifactsForCycle(cycleID uuid.UUID) []domain.CycleArtifact {
	var out []domain.CycleArtifact
	for _, a := range m.artifacts {
		if a.CycleID == cycleID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// mockEmbeddingClient returns a fixed unit vector so any two themes match.
type mockEmbeddingClient struct{}

func (m *mockEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 8)
	v[0] = 1
	return v, nil
}

func newTestChild(children *mockChildStore) (uuid.UUID, uuid.UUID) {
	familyID := uuid.New()
	child := &domain.Child{FamilyID: familyID, Name: "Maya"}
	_ = children.Create(context.Background(), child)
	return child.ID, familyID
}
