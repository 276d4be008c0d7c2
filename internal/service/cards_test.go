package service

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/sproutmind/sprout/internal/domain"
)

func cardCycle(status domain.CycleStatus, artifacts ...domain.CycleArtifact) domain.ExplorationCycle {
	return domain.ExplorationCycle{
		ID:        uuid.New(),
		Status:    status,
		Focus:     "sleep",
		Artifacts: artifacts,
	}
}

func cardArtifact(t domain.ArtifactType, s domain.ArtifactStatus) domain.CycleArtifact {
	return domain.CycleArtifact{ID: uuid.New(), Type: t, Status: s}
}

func TestDeriveCards_Mapping(t *testing.T) {
	cases := []struct {
		artifactType domain.ArtifactType
		status       domain.ArtifactStatus
		kind         domain.CardKind
		priority     int
	}{
		{domain.ArtifactGuidelineSet, domain.ArtifactReady, domain.CardGuidelinesReady, 9},
		{domain.ArtifactGuidelineSet, domain.ArtifactNeedsUpdate, domain.CardGuidelinesUpdated, 10},
		{domain.ArtifactAnalysis, domain.ArtifactReady, domain.CardAnalysisReady, 10},
		{domain.ArtifactReport, domain.ArtifactReady, domain.CardReportReady, 10},
	}
	for _, tc := range cases {
		cycles := []domain.ExplorationCycle{
			cardCycle(domain.CycleEvidenceGathering, cardArtifact(tc.artifactType, tc.status)),
		}
		cards := DeriveCards(cycles, 0)
		if len(cards) != 1 {
			t.Fatalf("%s/%s: expected 1 card, got %d", tc.artifactType, tc.status, len(cards))
		}
		if cards[0].Kind != tc.kind || cards[0].Priority != tc.priority {
			t.Fatalf("%s/%s: got kind %s priority %d", tc.artifactType, tc.status, cards[0].Kind, cards[0].Priority)
		}
	}
}

func TestDeriveCards_SilentStatuses(t *testing.T) {
	cycles := []domain.ExplorationCycle{
		cardCycle(domain.CycleEvidenceGathering,
			cardArtifact(domain.ArtifactGuidelineSet, domain.ArtifactDraft),
			cardArtifact(domain.ArtifactGuidelineSet, domain.ArtifactFulfilled),
			cardArtifact(domain.ArtifactGuidelineSet, domain.ArtifactSuperseded),
			cardArtifact(domain.ArtifactAnalysis, domain.ArtifactDraft),
		),
	}
	if cards := DeriveCards(cycles, 0); len(cards) != 0 {
		t.Fatalf("draft and terminal artifacts should derive no cards, got %d", len(cards))
	}
}

func TestDeriveCards_CompleteCycleReportReady(t *testing.T) {
	cycles := []domain.ExplorationCycle{
		cardCycle(domain.CycleComplete, cardArtifact(domain.ArtifactReport, domain.ArtifactReady)),
	}
	cards := DeriveCards(cycles, 0)
	if len(cards) != 1 {
		t.Fatalf("complete cycle with ready report should emit one card, got %d", len(cards))
	}
	if cards[0].Kind != domain.CardReportReady || cards[0].Priority != 10 {
		t.Fatalf("got kind %s priority %d", cards[0].Kind, cards[0].Priority)
	}
}

func TestDeriveCards_CompleteCycleOtherArtifactsSilent(t *testing.T) {
	cycles := []domain.ExplorationCycle{
		cardCycle(domain.CycleComplete,
			cardArtifact(domain.ArtifactReport, domain.ArtifactFulfilled),
			cardArtifact(domain.ArtifactGuidelineSet, domain.ArtifactReady),
			cardArtifact(domain.ArtifactGuidelineSet, domain.ArtifactNeedsUpdate),
			cardArtifact(domain.ArtifactAnalysis, domain.ArtifactReady),
		),
	}
	if cards := DeriveCards(cycles, 0); len(cards) != 0 {
		t.Fatalf("only a ready report surfaces on a complete cycle, got %d cards", len(cards))
	}
}

func TestDeriveCards_Ordering(t *testing.T) {
	ready := cardArtifact(domain.ArtifactGuidelineSet, domain.ArtifactReady)
	flagged := cardArtifact(domain.ArtifactGuidelineSet, domain.ArtifactNeedsUpdate)
	cycles := []domain.ExplorationCycle{
		cardCycle(domain.CycleEvidenceGathering, ready, flagged),
	}

	cards := DeriveCards(cycles, 0)
	if len(cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(cards))
	}
	if cards[0].Kind != domain.CardGuidelinesUpdated {
		t.Fatalf("needs_update should outrank ready, got %s first", cards[0].Kind)
	}
	if cards[1].Kind != domain.CardGuidelinesReady {
		t.Fatalf("expected guidelines_ready second, got %s", cards[1].Kind)
	}
}

func TestDeriveCards_DeterministicTieBreak(t *testing.T) {
	a := cardArtifact(domain.ArtifactAnalysis, domain.ArtifactReady)
	b := cardArtifact(domain.ArtifactReport, domain.ArtifactReady)
	cycles := []domain.ExplorationCycle{
		cardCycle(domain.CycleSynthesizing, a, b),
	}

	first := DeriveCards(cycles, 0)
	for i := 0; i < 10; i++ {
		if got := DeriveCards(cycles, 0); !reflect.DeepEqual(got, first) {
			t.Fatal("equal-priority cards should order deterministically")
		}
	}
	if first[0].ArtifactID.String() > first[1].ArtifactID.String() {
		t.Fatal("ties should break on artifact id ascending")
	}
}

func TestDeriveCards_Truncates(t *testing.T) {
	var artifacts []domain.CycleArtifact
	for i := 0; i < 6; i++ {
		artifacts = append(artifacts, cardArtifact(domain.ArtifactGuidelineSet, domain.ArtifactReady))
	}
	cycles := []domain.ExplorationCycle{
		cardCycle(domain.CycleEvidenceGathering, artifacts...),
	}

	if cards := DeriveCards(cycles, 4); len(cards) != 4 {
		t.Fatalf("expected truncation to 4, got %d", len(cards))
	}
}

func TestDeriveCards_Remaining(t *testing.T) {
	a := cardArtifact(domain.ArtifactGuidelineSet, domain.ArtifactReady)
	a.ExpectedUnits = 3
	a.ReceivedUnits = 1
	cycles := []domain.ExplorationCycle{
		cardCycle(domain.CycleEvidenceGathering, a),
	}

	cards := DeriveCards(cycles, 0)
	if len(cards) != 1 {
		t.Fatalf("expected 1 card, got %d", len(cards))
	}
	if cards[0].Remaining != 2 {
		t.Fatalf("expected 2 remaining, got %d", cards[0].Remaining)
	}
}

func TestCardService_DeriveForChild(t *testing.T) {
	children := newMockChildStore()
	cycles := newMockCycleStore()
	svc := NewCardService(cycles, 4, testLogger())
	childID, familyID := newTestChild(children)

	c := &domain.ExplorationCycle{
		ChildID:       childID,
		FamilyID:      familyID,
		CuriosityID:   uuid.New(),
		CuriosityType: domain.CuriosityQuestion,
		Focus:         "settling at night",
		Status:        domain.CycleEvidenceGathering,
		HypothesisIDs: []uuid.UUID{},
	}
	if err := cycles.Create(context.Background(), c); err != nil {
		t.Fatalf("create cycle: %v", err)
	}
	a := &domain.CycleArtifact{
		CycleID: c.ID,
		Type:    domain.ArtifactGuidelineSet,
		Status:  domain.ArtifactReady,
	}
	if err := cycles.AttachArtifact(context.Background(), a); err != nil {
		t.Fatalf("attach artifact: %v", err)
	}

	cards, err := svc.DeriveForChild(context.Background(), childID, familyID)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("expected 1 card, got %d", len(cards))
	}
	if cards[0].Kind != domain.CardGuidelinesReady || cards[0].Focus != "settling at night" {
		t.Fatalf("unexpected card %+v", cards[0])
	}
}
