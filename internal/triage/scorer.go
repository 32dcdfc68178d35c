package triage

import (
	"context"
	"math/rand"
	"sync"
)

// RiskLevel classifies personal triage risk or area outbreak risk.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskModerate
	RiskHigh
)

func (r RiskLevel) String() string {
	switch r {
	case RiskModerate:
		return "moderate"
	case RiskHigh:
		return "high"
	default:
		return "low"
	}
}

// MarshalText makes RiskLevel stable in JSON payloads.
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// TriageRisk maps a matched-symptom count to a risk level.
// Thresholds: >= 6 high, >= 3 moderate, otherwise low.
func TriageRisk(matchCount int) RiskLevel {
	switch {
	case matchCount >= 6:
		return RiskHigh
	case matchCount >= 3:
		return RiskModerate
	default:
		return RiskLow
	}
}

// Observation carries the area-level inputs an outbreak scorer may
// consider. Symptom data is deliberately absent: outbreak risk is
// independent of triage risk.
type Observation struct {
	Location  string
	Latitude  float64
	Longitude float64
}

// OutbreakScorer classifies area-level outbreak likelihood. It is a
// separate contract from TriageRisk so a real model (environmental or
// geospatial) can replace the placeholder without touching triage logic
// or the session orchestrator.
type OutbreakScorer interface {
	Score(ctx context.Context, obs Observation) RiskLevel
}

type randomOutbreakScorer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomOutbreakScorer returns the placeholder outbreak scorer. It
// draws uniformly from the three risk levels; there is no underlying
// signal yet.
func NewRandomOutbreakScorer(seed int64) OutbreakScorer {
	return &randomOutbreakScorer{rng: rand.New(rand.NewSource(seed))}
}

func (s *randomOutbreakScorer) Score(_ context.Context, _ Observation) RiskLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RiskLevel(s.rng.Intn(3))
}

// StaticOutbreakScorer always returns the given level. Used in tests and
// wherever a deterministic stand-in is needed.
type StaticOutbreakScorer struct {
	Level RiskLevel
}

func (s StaticOutbreakScorer) Score(context.Context, Observation) RiskLevel {
	return s.Level
}
