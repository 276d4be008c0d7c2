package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type CycleStatus string

const (
	CycleActive            CycleStatus = "active"
	CycleEvidenceGathering CycleStatus = "evidence_gathering"
	CycleSynthesizing      CycleStatus = "synthesizing"
	CycleComplete          CycleStatus = "complete"
)

// NextCycleStatus returns the forward transition for a cycle status. Cycles
// never move backwards; complete is terminal.
func NextCycleStatus(s CycleStatus) (CycleStatus, bool) {
	switch s {
	case CycleActive:
		return CycleEvidenceGathering, true
	case CycleEvidenceGathering:
		return CycleSynthesizing, true
	case CycleSynthesizing:
		return CycleComplete, true
	}
	return "", false
}

type ArtifactType string

const (
	ArtifactGuidelineSet ArtifactType = "guideline_set"
	ArtifactAnalysis     ArtifactType = "analysis"
	ArtifactReport       ArtifactType = "report"
)

func ValidArtifactType(t string) bool {
	switch ArtifactType(t) {
	case ArtifactGuidelineSet, ArtifactAnalysis, ArtifactReport:
		return true
	}
	return false
}

type ArtifactStatus string

const (
	ArtifactDraft       ArtifactStatus = "draft"
	ArtifactReady       ArtifactStatus = "ready"
	ArtifactFulfilled   ArtifactStatus = "fulfilled"
	ArtifactSuperseded  ArtifactStatus = "superseded"
	ArtifactNeedsUpdate ArtifactStatus = "needs_update"
)

func ValidArtifactStatus(s string) bool {
	switch ArtifactStatus(s) {
	case ArtifactDraft, ArtifactReady, ArtifactFulfilled, ArtifactSuperseded, ArtifactNeedsUpdate:
		return true
	}
	return false
}

// artifactEdges is the allowed artifact transition table. fulfilled and
// superseded are terminal.
var artifactEdges = map[ArtifactStatus][]ArtifactStatus{
	ArtifactDraft:       {ArtifactReady},
	ArtifactReady:       {ArtifactFulfilled, ArtifactNeedsUpdate, ArtifactSuperseded},
	ArtifactNeedsUpdate: {ArtifactReady, ArtifactSuperseded},
}

// ValidArtifactTransition reports whether from -> to is an allowed edge.
func ValidArtifactTransition(from, to ArtifactStatus) bool {
	for _, next := range artifactEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TerminalArtifactStatus reports whether the status admits no further edges.
func TerminalArtifactStatus(s ArtifactStatus) bool {
	return s == ArtifactFulfilled || s == ArtifactSuperseded
}

// CycleArtifact is an output owned by an exploration cycle, with its own
// status lifecycle and optional fulfillment counters (expected vs. received
// observation units).
type CycleArtifact struct {
	ID                   uuid.UUID       `json:"id"`
	CycleID              uuid.UUID       `json:"cycle_id"`
	Type                 ArtifactType    `json:"type"`
	Content              json.RawMessage `json:"content,omitempty"`
	Status               ArtifactStatus  `json:"status"`
	RelatedHypothesisIDs []uuid.UUID     `json:"related_hypothesis_ids"`
	ExpectedUnits        int             `json:"expected_units,omitempty"`
	ReceivedUnits        int             `json:"received_units,omitempty"`
	SupersededBy         *uuid.UUID      `json:"superseded_by,omitempty"`
	SupersededReason     string          `json:"superseded_reason,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Remaining returns how many observation units are still outstanding.
func (a *CycleArtifact) Remaining() int {
	r := a.ExpectedUnits - a.ReceivedUnits
	if r < 0 {
		return 0
	}
	return r
}

// ExplorationCycle groups hypotheses under a single line of inquiry. A cycle
// is spawned from exactly one curiosity and moves forward-only through its
// statuses.
type ExplorationCycle struct {
	ID            uuid.UUID       `json:"id"`
	ChildID       uuid.UUID       `json:"child_id"`
	FamilyID      uuid.UUID       `json:"family_id"`
	CuriosityID   uuid.UUID       `json:"curiosity_id"`
	CuriosityType CuriosityType   `json:"curiosity_type"`
	Focus         string          `json:"focus"`
	Status        CycleStatus     `json:"status"`
	HypothesisIDs []uuid.UUID     `json:"hypothesis_ids"`
	Artifacts     []CycleArtifact `json:"artifacts"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

func (c *ExplorationCycle) Open() bool {
	return c.Status != CycleComplete
}

// LatestArtifact returns the most recent non-superseded artifact of the given
// type, or nil.
func (c *ExplorationCycle) LatestArtifact(t ArtifactType) *CycleArtifact {
	var latest *CycleArtifact
	for i := range c.Artifacts {
		a := &c.Artifacts[i]
		if a.Type != t || a.Status == ArtifactSuperseded {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	return latest
}
