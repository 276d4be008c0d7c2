package service

import (
	"math"

	"github.com/sproutmind/sprout/internal/domain"
)

// Confidence policy defaults. The exact update arithmetic is a tunable
// policy, not an invariant: only the clamp to [MinConfidence, MaxConfidence]
// is guaranteed.
const (
	DefaultSupportLogOdds    = 0.5
	DefaultContradictLogOdds = 1.0
	DefaultMaxConfidence     = 0.99
	DefaultMinConfidence     = 0.01
)

func Logit(p float64) float64 {
	p = clampConfidence(p)
	return math.Log(p / (1 - p))
}

func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func ApplyLogOddsDelta(confidence float32, logOddsDelta float64) float32 {
	logOdds := Logit(float64(confidence))
	newConf := Sigmoid(logOdds + logOddsDelta)
	return float32(clampConfidence(newConf))
}

func clampConfidence(p float64) float64 {
	if p < DefaultMinConfidence {
		return DefaultMinConfidence
	}
	if p > DefaultMaxConfidence {
		return DefaultMaxConfidence
	}
	return p
}

// ConfidencePolicy maps an evidence effect onto a confidence adjustment.
// Working in log-odds space gives supporting evidence diminishing returns as
// confidence approaches 1, and keeps every update clamped to (0, 1).
type ConfidencePolicy struct {
	SupportLogOdds    float64
	ContradictLogOdds float64
}

func DefaultConfidencePolicy() ConfidencePolicy {
	return ConfidencePolicy{
		SupportLogOdds:    DefaultSupportLogOdds,
		ContradictLogOdds: DefaultContradictLogOdds,
	}
}

// ApplyEffect returns the new confidence after a piece of evidence with the
// given effect. Transforming evidence reshapes the theory rather than
// confirming or disconfirming it, so it leaves confidence untouched.
func (p ConfidencePolicy) ApplyEffect(confidence float32, effect domain.EvidenceEffect) float32 {
	switch effect {
	case domain.EffectSupports:
		return ApplyLogOddsDelta(confidence, p.SupportLogOdds)
	case domain.EffectContradicts:
		return ApplyLogOddsDelta(confidence, -p.ContradictLogOdds)
	case domain.EffectTransforms:
		return float32(clampConfidence(float64(confidence)))
	}
	return confidence
}
