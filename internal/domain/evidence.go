package domain

import (
	"time"

	"github.com/google/uuid"
)

type SourceKind string

const (
	SourceConversation   SourceKind = "conversation"
	SourceVideo          SourceKind = "video"
	SourceExternalUpdate SourceKind = "external_update"
)

func ValidSourceKind(s string) bool {
	switch SourceKind(s) {
	case SourceConversation, SourceVideo, SourceExternalUpdate:
		return true
	}
	return false
}

// EvidenceEffect describes how a piece of evidence bears on a hypothesis.
type EvidenceEffect string

const (
	EffectSupports    EvidenceEffect = "supports"
	EffectContradicts EvidenceEffect = "contradicts"
	EffectTransforms  EvidenceEffect = "transforms"
)

func ValidEvidenceEffect(e string) bool {
	switch EvidenceEffect(e) {
	case EffectSupports, EffectContradicts, EffectTransforms:
		return true
	}
	return false
}

// Evidence is an immutable, timestamped observation. Created once, never
// mutated; hypotheses reference it by id.
type Evidence struct {
	ID         uuid.UUID  `json:"id"`
	ChildID    uuid.UUID  `json:"child_id"`
	FamilyID   uuid.UUID  `json:"family_id"`
	SourceKind SourceKind `json:"source_kind"`
	Content    string     `json:"content"`
	Domain     string     `json:"domain,omitempty"`
	ObservedAt time.Time  `json:"observed_at"`
	CreatedAt  time.Time  `json:"created_at"`
}
