package domain

import "github.com/google/uuid"

type CardKind string

const (
	CardGuidelinesReady   CardKind = "guidelines_ready"
	CardGuidelinesUpdated CardKind = "guidelines_updated"
	CardAnalysisReady     CardKind = "analysis_ready"
	CardReportReady       CardKind = "report_ready"
)

// Card is an actionable item projected from cycle and artifact state. Cards
// carry no state of their own: the same underlying state always derives the
// same cards.
type Card struct {
	Kind       CardKind  `json:"kind"`
	CycleID    uuid.UUID `json:"cycle_id"`
	ArtifactID uuid.UUID `json:"artifact_id"`
	Focus      string    `json:"focus,omitempty"`
	Priority   int       `json:"priority"`
	Remaining  int       `json:"remaining,omitempty"`
}
