package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sproutmind/sprout/internal/domain"
)

type stalenessFixture struct {
	svc        *StalenessService
	cycles     *mockCycleStore
	hypotheses *mockHypothesisStore
	childID    uuid.UUID
	familyID   uuid.UUID
	cycleID    uuid.UUID
}

func setupStalenessTest(t *testing.T) *stalenessFixture {
	t.Helper()
	children := newMockChildStore()
	hypotheses := newMockHypothesisStore()
	cycles := newMockCycleStore()
	svc := NewStalenessService(cycles, hypotheses, NewChildLocks(), 2, testLogger())
	childID, familyID := newTestChild(children)

	c := &domain.ExplorationCycle{
		ChildID:       childID,
		FamilyID:      familyID,
		CuriosityID:   uuid.New(),
		CuriosityType: domain.CuriosityQuestion,
		Focus:         "sleep",
		Status:        domain.CycleEvidenceGathering,
		HypothesisIDs: []uuid.UUID{},
	}
	if err := cycles.Create(context.Background(), c); err != nil {
		t.Fatalf("create cycle: %v", err)
	}
	return &stalenessFixture{
		svc: svc, cycles: cycles, hypotheses: hypotheses,
		childID: childID, familyID: familyID, cycleID: c.ID,
	}
}

func (fx *stalenessFixture) addHypothesis(t *testing.T, status domain.HypothesisStatus, dom string, formedAt, lastEvidenceAt time.Time) *domain.Hypothesis {
	t.Helper()
	h := &domain.Hypothesis{
		ChildID: fx.childID, FamilyID: fx.familyID,
		Theory: "theory", Domain: dom, Status: status,
	}
	if err := fx.hypotheses.Create(context.Background(), h); err != nil {
		t.Fatalf("create hypothesis: %v", err)
	}
	h.FormedAt = formedAt
	h.LastEvidenceAt = lastEvidenceAt
	if err := fx.hypotheses.Update(context.Background(), h); err != nil {
		t.Fatalf("update hypothesis: %v", err)
	}
	return h
}

func (fx *stalenessFixture) addArtifact(t *testing.T, status domain.ArtifactStatus, related ...uuid.UUID) *domain.CycleArtifact {
	t.Helper()
	if related == nil {
		related = []uuid.UUID{}
	}
	a := &domain.CycleArtifact{
		CycleID:              fx.cycleID,
		Type:                 domain.ArtifactGuidelineSet,
		Status:               status,
		RelatedHypothesisIDs: related,
	}
	if err := fx.cycles.AttachArtifact(context.Background(), a); err != nil {
		t.Fatalf("attach artifact: %v", err)
	}
	return a
}

func TestStalenessService_SupersedesOnWeakenedHypothesis(t *testing.T) {
	fx := setupStalenessTest(t)
	ctx := context.Background()

	now := time.Now()
	h := fx.addHypothesis(t, domain.HypothesisWeakening, "sleep", now.Add(-48*time.Hour), now.Add(time.Hour))
	a := fx.addArtifact(t, domain.ArtifactReady, h.ID)

	if err := fx.svc.CheckByID(ctx, h.ID, fx.familyID); err != nil {
		t.Fatalf("check: %v", err)
	}

	stored := fx.cycles.artifacts[a.ID]
	if stored.Status != domain.ArtifactSuperseded {
		t.Fatalf("artifact should be superseded, got %s", stored.Status)
	}
	if stored.SupersededReason == "" {
		t.Fatal("supersession should carry a reason")
	}
}

func TestStalenessService_IgnoresEvidenceBeforeArtifact(t *testing.T) {
	fx := setupStalenessTest(t)
	ctx := context.Background()

	// The hypothesis weakened before the artifact was produced, so the
	// artifact already accounts for it.
	now := time.Now()
	h := fx.addHypothesis(t, domain.HypothesisWeakening, "sleep", now.Add(-72*time.Hour), now.Add(-24*time.Hour))
	a := fx.addArtifact(t, domain.ArtifactReady, h.ID)

	if err := fx.svc.CheckByID(ctx, h.ID, fx.familyID); err != nil {
		t.Fatalf("check: %v", err)
	}

	if got := fx.cycles.artifacts[a.ID].Status; got != domain.ArtifactReady {
		t.Fatalf("artifact should stay ready, got %s", got)
	}
}

func TestStalenessService_FlagsNeedsUpdateAtThreshold(t *testing.T) {
	fx := setupStalenessTest(t)
	ctx := context.Background()

	now := time.Now()
	h := fx.addHypothesis(t, domain.HypothesisActive, "sleep", now.Add(-48*time.Hour), now.Add(-48*time.Hour))
	a := fx.addArtifact(t, domain.ArtifactReady, h.ID)

	// One new hypothesis in the domain is below the threshold.
	fx.addHypothesis(t, domain.HypothesisForming, "sleep", now.Add(time.Hour), now.Add(time.Hour))
	if err := fx.svc.CheckByID(ctx, h.ID, fx.familyID); err != nil {
		t.Fatalf("check: %v", err)
	}
	if got := fx.cycles.artifacts[a.ID].Status; got != domain.ArtifactReady {
		t.Fatalf("one new hypothesis should not flag the artifact, got %s", got)
	}

	// A second new hypothesis meets it.
	fx.addHypothesis(t, domain.HypothesisForming, "sleep", now.Add(2*time.Hour), now.Add(2*time.Hour))
	if err := fx.svc.CheckByID(ctx, h.ID, fx.familyID); err != nil {
		t.Fatalf("check: %v", err)
	}
	if got := fx.cycles.artifacts[a.ID].Status; got != domain.ArtifactNeedsUpdate {
		t.Fatalf("artifact should be needs_update at the threshold, got %s", got)
	}

	// Re-checking is a no-op; needs_update is already the flag.
	if err := fx.svc.CheckByID(ctx, h.ID, fx.familyID); err != nil {
		t.Fatalf("repeat check: %v", err)
	}
	if got := fx.cycles.artifacts[a.ID].Status; got != domain.ArtifactNeedsUpdate {
		t.Fatalf("repeat check should not move the artifact, got %s", got)
	}
}

func TestStalenessService_CountsOnlyRelatedDomains(t *testing.T) {
	fx := setupStalenessTest(t)
	ctx := context.Background()

	now := time.Now()
	h := fx.addHypothesis(t, domain.HypothesisActive, "sleep", now.Add(-48*time.Hour), now.Add(-48*time.Hour))
	a := fx.addArtifact(t, domain.ArtifactReady, h.ID)

	// New hypotheses in an unrelated domain do not count.
	fx.addHypothesis(t, domain.HypothesisForming, "feeding", now.Add(time.Hour), now.Add(time.Hour))
	fx.addHypothesis(t, domain.HypothesisForming, "feeding", now.Add(2*time.Hour), now.Add(2*time.Hour))

	if err := fx.svc.CheckByID(ctx, h.ID, fx.familyID); err != nil {
		t.Fatalf("check: %v", err)
	}
	if got := fx.cycles.artifacts[a.ID].Status; got != domain.ArtifactReady {
		t.Fatalf("unrelated domains should not flag the artifact, got %s", got)
	}
}

func TestStalenessService_LeavesDraftAndTerminalArtifacts(t *testing.T) {
	fx := setupStalenessTest(t)
	ctx := context.Background()

	now := time.Now()
	h := fx.addHypothesis(t, domain.HypothesisWeakening, "sleep", now.Add(-48*time.Hour), now.Add(time.Hour))
	draft := fx.addArtifact(t, domain.ArtifactDraft, h.ID)
	fulfilled := fx.addArtifact(t, domain.ArtifactFulfilled, h.ID)

	if err := fx.svc.CheckByID(ctx, h.ID, fx.familyID); err != nil {
		t.Fatalf("check: %v", err)
	}
	if got := fx.cycles.artifacts[draft.ID].Status; got != domain.ArtifactDraft {
		t.Fatalf("draft artifact should be untouched, got %s", got)
	}
	if got := fx.cycles.artifacts[fulfilled.ID].Status; got != domain.ArtifactFulfilled {
		t.Fatalf("fulfilled artifact should be untouched, got %s", got)
	}
}

func TestStalenessService_CheckChild(t *testing.T) {
	fx := setupStalenessTest(t)
	ctx := context.Background()

	now := time.Now()
	h := fx.addHypothesis(t, domain.HypothesisResolved, "sleep", now.Add(-48*time.Hour), now.Add(time.Hour))
	a := fx.addArtifact(t, domain.ArtifactReady, h.ID)

	if err := fx.svc.CheckChild(ctx, fx.childID, fx.familyID); err != nil {
		t.Fatalf("check child: %v", err)
	}
	if got := fx.cycles.artifacts[a.ID].Status; got != domain.ArtifactSuperseded {
		t.Fatalf("sweep should supersede the artifact, got %s", got)
	}
}

func TestStalenessService_CheckByID_NotFound(t *testing.T) {
	fx := setupStalenessTest(t)

	if err := fx.svc.CheckByID(context.Background(), uuid.New(), fx.familyID); !errors.Is(err, ErrHypothesisNotFound) {
		t.Fatalf("expected ErrHypothesisNotFound, got %v", err)
	}
}
