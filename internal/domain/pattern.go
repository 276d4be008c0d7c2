package domain

import (
	"time"

	"github.com/google/uuid"
)

type PatternSource string

const (
	PatternSourceObservation     PatternSource = "pattern"
	PatternSourceDomainKnowledge PatternSource = "domain_knowledge"
	PatternSourceContradiction   PatternSource = "contradiction"
)

func ValidPatternSource(s string) bool {
	switch PatternSource(s) {
	case PatternSourceObservation, PatternSourceDomainKnowledge, PatternSourceContradiction:
		return true
	}
	return false
}

// Pattern is a cross-cutting theme connecting evidence and hypotheses across
// domains. Patterns are never deleted; they are strengthened in place as new
// observations arrive.
type Pattern struct {
	ID              uuid.UUID     `json:"id"`
	ChildID         uuid.UUID     `json:"child_id"`
	FamilyID        uuid.UUID     `json:"family_id"`
	Theme           string        `json:"theme"`
	NormalizedTheme string        `json:"-"`
	ObservationIDs  []uuid.UUID   `json:"observation_ids"`
	HypothesisIDs   []uuid.UUID   `json:"hypothesis_ids"`
	Domains         []string      `json:"domains"`
	Confidence      float32       `json:"confidence"`
	EvidenceCount   int           `json:"evidence_count"`
	Source          PatternSource `json:"source"`
	Embedding       []float32     `json:"-"`
	DetectedAt      time.Time     `json:"detected_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type PatternWithScore struct {
	Pattern
	Score float32 `json:"score"`
}
