package domain

import (
	"time"

	"github.com/google/uuid"
)

// TemporalFact is a bi-temporally tracked assertion about a child.
//
// Two independent time axes: ValidFrom/ValidUntil record when the assertion
// was true in the world; RecordedAt/ExpiredAt record when the engine learned
// and un-learned it. Rows are immutable — a correction closes the old row
// (ValidUntil, ExpiredAt, SupersededBy) and inserts a new row carrying a
// Supersedes back-reference. At most one row per (child, predicate) has
// ValidUntil = nil at any instant.
type TemporalFact struct {
	ID          uuid.UUID  `json:"id"`
	ChildID     uuid.UUID  `json:"child_id"`
	FamilyID    uuid.UUID  `json:"family_id"`
	Predicate   string     `json:"predicate"`
	Object      string     `json:"object"`
	Aspect      string     `json:"aspect,omitempty"`
	Description string     `json:"description,omitempty"`
	Confidence  float32    `json:"confidence"`
	SourceID    *uuid.UUID `json:"source_id,omitempty"`

	ValidFrom  time.Time  `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	RecordedAt time.Time  `json:"recorded_at"`
	ExpiredAt  *time.Time `json:"expired_at,omitempty"`

	Supersedes   *uuid.UUID `json:"supersedes,omitempty"`
	SupersededBy *uuid.UUID `json:"superseded_by,omitempty"`
}

// Current reports whether the row is the currently valid assertion for its
// (child, predicate) pair.
func (f *TemporalFact) Current() bool {
	return f.ValidUntil == nil && f.ExpiredAt == nil
}

// CoversValidTime reports whether t falls inside the row's valid-time interval.
func (f *TemporalFact) CoversValidTime(t time.Time) bool {
	if t.Before(f.ValidFrom) {
		return false
	}
	return f.ValidUntil == nil || t.Before(*f.ValidUntil)
}
