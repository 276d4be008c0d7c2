package service

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/sproutmind/sprout/internal/domain"
)

func setupPatternTest(embedder domain.EmbeddingClient) (*PatternService, *mockPatternStore, uuid.UUID, uuid.UUID) {
	children := newMockChildStore()
	patterns := newMockPatternStore()
	svc := NewPatternService(patterns, children, embedder, NewChildLocks(), testLogger())
	childID, familyID := newTestChild(children)
	return svc, patterns, childID, familyID
}

func TestPatternService_Note_Creates(t *testing.T) {
	svc, _, childID, familyID := setupPatternTest(nil)
	ctx := context.Background()

	obs := uuid.New()
	p, err := svc.Note(ctx, NotePatternInput{
		ChildID:        childID,
		FamilyID:       familyID,
		Theme:          "prefers predictable transitions",
		Domains:        []string{"sleep", "feeding"},
		ObservationIDs: []uuid.UUID{obs},
		Confidence:     0.6,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.EvidenceCount != 1 {
		t.Fatalf("expected evidence count 1, got %d", p.EvidenceCount)
	}
	if p.NormalizedTheme != "prefers predictable transitions" {
		t.Fatalf("unexpected normalized theme %q", p.NormalizedTheme)
	}
	if p.Source != domain.PatternSourceObservation {
		t.Fatalf("expected default source, got %s", p.Source)
	}
}

func TestPatternService_Note_MergesOnSameTheme(t *testing.T) {
	svc, _, childID, familyID := setupPatternTest(nil)
	ctx := context.Background()

	first := uuid.New()
	p1, err := svc.Note(ctx, NotePatternInput{
		ChildID: childID, FamilyID: familyID,
		Theme:          "Prefers predictable transitions",
		Domains:        []string{"sleep"},
		ObservationIDs: []uuid.UUID{first},
		Confidence:     0.6,
	})
	if err != nil {
		t.Fatalf("first note: %v", err)
	}

	// Same theme up to case and whitespace, a new observation.
	second := uuid.New()
	p2, err := svc.Note(ctx, NotePatternInput{
		ChildID: childID, FamilyID: familyID,
		Theme:          "prefers  predictable   transitions",
		Domains:        []string{"feeding"},
		ObservationIDs: []uuid.UUID{first, second},
		Confidence:     0.8,
	})
	if err != nil {
		t.Fatalf("second note: %v", err)
	}

	if p2.ID != p1.ID {
		t.Fatal("equivalent themes should merge into one pattern")
	}
	if p2.EvidenceCount != 2 {
		t.Fatalf("expected evidence count 2, got %d", p2.EvidenceCount)
	}
	if len(p2.Domains) != 2 {
		t.Fatalf("expected merged domains, got %v", p2.Domains)
	}

	// Weighted recombination: (0.6*1 + 0.8*1) / 2 = 0.7
	if math.Abs(float64(p2.Confidence)-0.7) > 1e-6 {
		t.Fatalf("expected confidence 0.7, got %f", p2.Confidence)
	}
}

func TestPatternService_Note_Idempotent(t *testing.T) {
	svc, _, childID, familyID := setupPatternTest(nil)
	ctx := context.Background()

	obs := uuid.New()
	in := NotePatternInput{
		ChildID: childID, FamilyID: familyID,
		Theme:          "seeks sensory input",
		ObservationIDs: []uuid.UUID{obs},
		Confidence:     0.5,
	}
	p1, err := svc.Note(ctx, in)
	if err != nil {
		t.Fatalf("first note: %v", err)
	}

	// Identical input adds nothing.
	in.Confidence = 0.9
	p2, err := svc.Note(ctx, in)
	if err != nil {
		t.Fatalf("repeat note: %v", err)
	}
	if p2.EvidenceCount != p1.EvidenceCount {
		t.Fatalf("repeat note must not grow the evidence count, got %d", p2.EvidenceCount)
	}
	if p2.Confidence != p1.Confidence {
		t.Fatalf("repeat note must not change confidence, got %f", p2.Confidence)
	}
}

func TestPatternService_Note_FuzzyMatch(t *testing.T) {
	// The mock embedder maps every theme to the same vector, so any second
	// theme matches the first by similarity.
	svc, _, childID, familyID := setupPatternTest(&mockEmbeddingClient{})
	ctx := context.Background()

	p1, err := svc.Note(ctx, NotePatternInput{
		ChildID: childID, FamilyID: familyID,
		Theme:          "prefers predictable transitions",
		ObservationIDs: []uuid.UUID{uuid.New()},
		Confidence:     0.6,
	})
	if err != nil {
		t.Fatalf("first note: %v", err)
	}

	p2, err := svc.Note(ctx, NotePatternInput{
		ChildID: childID, FamilyID: familyID,
		Theme:          "needs routine around changes",
		ObservationIDs: []uuid.UUID{uuid.New()},
		Confidence:     0.6,
	})
	if err != nil {
		t.Fatalf("second note: %v", err)
	}
	if p2.ID != p1.ID {
		t.Fatal("similar themes should merge via embedding match")
	}
	if p2.EvidenceCount != 2 {
		t.Fatalf("expected merged evidence count 2, got %d", p2.EvidenceCount)
	}
}

func TestPatternService_Note_ValidatesInput(t *testing.T) {
	svc, _, childID, familyID := setupPatternTest(nil)
	ctx := context.Background()

	if _, err := svc.Note(ctx, NotePatternInput{ChildID: childID, FamilyID: familyID, Theme: "  "}); err != ErrPatternThemeEmpty {
		t.Fatalf("expected ErrPatternThemeEmpty, got %v", err)
	}
	if _, err := svc.Note(ctx, NotePatternInput{
		ChildID: childID, FamilyID: familyID, Theme: "x", Source: "bogus",
	}); err != ErrInvalidPatternSource {
		t.Fatalf("expected ErrInvalidPatternSource, got %v", err)
	}
}

func TestNormalizeTheme(t *testing.T) {
	cases := map[string]string{
		"Prefers Predictable Transitions": "prefers predictable transitions",
		"  lots \t of   whitespace ":      "lots of whitespace",
		"already normal":                  "already normal",
	}
	for in, want := range cases {
		if got := NormalizeTheme(in); got != want {
			t.Fatalf("NormalizeTheme(%q) = %q, want %q", in, got, want)
		}
	}
}
