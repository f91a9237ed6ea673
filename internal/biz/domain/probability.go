package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidProbability is returned when a probability string cannot be parsed
	ErrInvalidProbability = errors.New("invalid probability")

	// ErrUnknownProbabilityKind is returned for an unknown probability kind name
	ErrUnknownProbabilityKind = errors.New("unknown probability kind")
)

// Probability is a reply probability, always within [0,1]
type Probability float64

// ClampProbability clamps a raw value into [0,1]. NaN becomes 0.
func ClampProbability(v float64) Probability {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 1:
		return 1
	default:
		return Probability(v)
	}
}

// ParseProbability parses "0.75" or "75%" into a clamped probability
func ParseProbability(s string) (Probability, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidProbability
	}

	percent := strings.HasSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidProbability, s)
	}
	if percent {
		v /= 100
	}
	return ClampProbability(v), nil
}

// Fires reports whether a uniform draw in [0,1) passes this probability
func (p Probability) Fires(draw float64) bool {
	return draw < float64(p)
}

// ProbabilityKind selects one of the three per-chat probabilities
type ProbabilityKind string

const (
	ProbabilityKeyword ProbabilityKind = "keyword"
	ProbabilityMention ProbabilityKind = "mention"
	ProbabilityGeneral ProbabilityKind = "general"
)

// ParseProbabilityKind validates a probability kind name
func ParseProbabilityKind(s string) (ProbabilityKind, error) {
	switch k := ProbabilityKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ProbabilityKeyword, ProbabilityMention, ProbabilityGeneral:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProbabilityKind, s)
	}
}
