package domain

import (
	"time"

	"github.com/google/uuid"
)

type HypothesisStatus string

const (
	HypothesisForming   HypothesisStatus = "forming"
	HypothesisActive    HypothesisStatus = "active"
	HypothesisEvolving  HypothesisStatus = "evolving"
	HypothesisWeakening HypothesisStatus = "weakening"
	HypothesisResolved  HypothesisStatus = "resolved"
)

type Resolution string

const (
	ResolutionConfirmed Resolution = "confirmed"
	ResolutionRefuted   Resolution = "refuted"
	ResolutionEvolved   Resolution = "evolved"
	ResolutionOutgrown  Resolution = "outgrown"
)

func ValidResolution(r string) bool {
	switch Resolution(r) {
	case ResolutionConfirmed, ResolutionRefuted, ResolutionEvolved, ResolutionOutgrown:
		return true
	}
	return false
}

// Hypothesis is an evolving theory about a child. Evidence ids are appended,
// never removed. Resolution is terminal: a resolved hypothesis is never
// reopened — new evidence about the same theory spawns a successor linked
// via EvolvedInto on the old row.
type Hypothesis struct {
	ID                 uuid.UUID        `json:"id"`
	ChildID            uuid.UUID        `json:"child_id"`
	FamilyID           uuid.UUID        `json:"family_id"`
	Theory             string           `json:"theory"`
	Domain             string           `json:"domain"`
	EvidenceIDs        []uuid.UUID      `json:"evidence_ids"`
	Status             HypothesisStatus `json:"status"`
	Confidence         float32          `json:"confidence"`
	ContradictionCount int              `json:"contradiction_count"`
	FormedAt           time.Time        `json:"formed_at"`
	LastEvidenceAt     time.Time        `json:"last_evidence_at"`
	Resolution         *Resolution      `json:"resolution,omitempty"`
	ResolutionNote     string           `json:"resolution_note,omitempty"`
	EvolvedInto        *uuid.UUID       `json:"evolved_into,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func (h *Hypothesis) Resolved() bool {
	return h.Status == HypothesisResolved
}
