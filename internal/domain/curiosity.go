package domain

import (
	"errors"

	"github.com/google/uuid"
)

type CuriosityType string

const (
	CuriosityDiscovery  CuriosityType = "discovery"
	CuriosityQuestion   CuriosityType = "question"
	CuriosityHypothesis CuriosityType = "hypothesis"
	CuriosityPattern    CuriosityType = "pattern"
)

func ValidCuriosityType(t string) bool {
	switch CuriosityType(t) {
	case CuriosityDiscovery, CuriosityQuestion, CuriosityHypothesis, CuriosityPattern:
		return true
	}
	return false
}

// Curiosity is a prioritizable unit of "what we want to understand". It is a
// tagged union over the four kinds: exactly the payload matching Type must be
// set. Curiosities are transient inputs consumed at spawn time; only the
// resulting exploration cycle persists.
type Curiosity struct {
	ID         uuid.UUID     `json:"id"`
	ChildID    uuid.UUID     `json:"child_id"`
	Type       CuriosityType `json:"type"`
	Focus      string        `json:"focus"`
	Activation float32       `json:"activation"`

	Discovery  *DiscoveryPayload  `json:"discovery,omitempty"`
	Question   *QuestionPayload   `json:"question,omitempty"`
	Hypothesis *HypothesisPayload `json:"hypothesis,omitempty"`
	Pattern    *PatternPayload    `json:"pattern,omitempty"`
}

type DiscoveryPayload struct {
	Aspect string   `json:"aspect"`
	Gaps   []string `json:"gaps"`
}

type QuestionPayload struct {
	Question string `json:"question"`
}

type HypothesisPayload struct {
	Theory     string  `json:"theory"`
	Confidence float32 `json:"confidence"`
}

type PatternPayload struct {
	Observation        string      `json:"observation"`
	SupportingEvidence []uuid.UUID `json:"supporting_evidence,omitempty"`
}

var (
	ErrCuriosityFocusEmpty     = errors.New("curiosity focus cannot be empty")
	ErrCuriosityBadActivation  = errors.New("curiosity activation must be within [0,1]")
	ErrCuriosityPayloadMissing = errors.New("curiosity payload does not match its type")
)

// Validate checks the tagged-union shape: focus present, activation in range,
// and exactly the payload for Type set.
func (c *Curiosity) Validate() error {
	if c.Focus == "" {
		return ErrCuriosityFocusEmpty
	}
	if c.Activation < 0 || c.Activation > 1 {
		return ErrCuriosityBadActivation
	}
	set := 0
	if c.Discovery != nil {
		set++
	}
	if c.Question != nil {
		set++
	}
	if c.Hypothesis != nil {
		set++
	}
	if c.Pattern != nil {
		set++
	}
	if set != 1 {
		return ErrCuriosityPayloadMissing
	}
	switch c.Type {
	case CuriosityDiscovery:
		if c.Discovery == nil || c.Discovery.Aspect == "" {
			return ErrCuriosityPayloadMissing
		}
	case CuriosityQuestion:
		if c.Question == nil || c.Question.Question == "" {
			return ErrCuriosityPayloadMissing
		}
	case CuriosityHypothesis:
		if c.Hypothesis == nil || c.Hypothesis.Theory == "" {
			return ErrCuriosityPayloadMissing
		}
	case CuriosityPattern:
		if c.Pattern == nil || c.Pattern.Observation == "" {
			return ErrCuriosityPayloadMissing
		}
	default:
		return ErrCuriosityPayloadMissing
	}
	return nil
}
