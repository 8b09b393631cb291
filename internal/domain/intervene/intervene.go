// Package intervene implements the discrete intervention search: bounded,
// ranked modifications to daily behavior with an estimated risk impact.
//
// The per-field reduction estimate is a deliberate linear heuristic, kept
// decoupled from the trained model for speed and stability; a sensitivity
// estimate derived from model gradients is a possible successor.
package intervene

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/aura/internal/domain/feature"
	"github.com/okian/aura/internal/domain/model"
)

// Search configuration constants.
const (
	maxCandidates = 5
	historyWindow = 14

	// reductionFactor is the linear attenuation applied to the normalized
	// distance between the current mean and the shifted candidate value.
	reductionFactor = 0.5

	confidenceFloor   = 0.05
	confidenceCeiling = 0.95
	confidenceCap     = 0.9
)

// Constraints maps field name -> bound name -> value. The only recognized
// bound is "max_delta", which caps the magnitude of change for a field.
type Constraints map[string]map[string]float64

// maxDeltaKey is the recognized constraint bound.
const maxDeltaKey = "max_delta"

// candidate is one row of the fixed search space: a directional magnitude
// range over the raw field units and a description template.
type candidate struct {
	field    string
	lo, hi   float64
	template string
}

// searchSpace is the fixed candidate table. Negative ranges reduce a field,
// positive ranges increase it.
var searchSpace = []candidate{
	{"sleep_hours", 0.5, 2.0, "Increase sleep by %.1f hours per night"},
	{"sleep_quality", 1.0, 3.0, "Improve sleep quality by %.1f points (sleep hygiene)"},
	{"stress_level", -3.0, -1.0, "Reduce stress level by %.1f points (meditation/CBT)"},
	{"hydration_liters", 0.5, 1.5, "Increase hydration by %.1f L per day"},
	{"caffeine_mg", -200.0, -50.0, "Reduce caffeine by %.0f mg per day"},
	{"alcohol_units", -2.0, -0.5, "Reduce alcohol by %.1f units per day"},
	{"exercise_minutes", 10.0, 40.0, "Increase exercise by %.0f min per day"},
}

// Optimizer proposes ranked behavior changes from recent history. It is
// stateless and safe for concurrent use.
type Optimizer struct{}

// New constructs an Optimizer.
func New() *Optimizer { return &Optimizer{} }

// Optimize returns at most five candidates sorted by descending predicted
// risk reduction. An empty history yields the two documented defaults with
// moderate confidence rather than an error.
func (o *Optimizer) Optimize(
	profile model.UserProfile,
	records []model.DailyRecord,
	constraints Constraints,
) []model.InterventionCandidate {
	_ = profile // reserved; the heuristic depends only on recent history
	if len(records) == 0 {
		return defaultCandidates()
	}

	recent := records
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}
	features := feature.Matrix(recent)

	out := make([]model.InterventionCandidate, 0, len(searchSpace))
	for _, c := range searchSpace {
		delta, reduction := optimizeField(c, features, constraints)
		if reduction <= 0 {
			continue
		}
		confidence := math.Min(confidenceCap, reduction*1.5*(float64(len(records))/30.0+0.1))
		out = append(out, model.InterventionCandidate{
			InterventionType:       c.field,
			Description:            fmt.Sprintf(c.template, math.Abs(delta)),
			PredictedRiskReduction: round3(clip01(reduction)),
			Confidence:             round3(clamp(confidence, confidenceFloor, confidenceCeiling)),
			Constraints:            fieldConstraints(constraints, c.field),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PredictedRiskReduction > out[j].PredictedRiskReduction
	})
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}

// optimizeField estimates the achievable risk reduction for one candidate.
// Unknown fields contribute zero delta and zero reduction, silently.
func optimizeField(c candidate, features [][]float64, constraints Constraints) (delta, reduction float64) {
	idx, ok := feature.Index(c.field)
	if !ok {
		return 0, 0
	}
	loRange, hiRange, _ := feature.Range(c.field)

	var current float64
	for _, row := range features {
		current += row[idx]
	}
	current /= float64(len(features))

	var deltaNorm float64
	if hiRange != loRange {
		deltaNorm = (c.hi - c.lo) / (hiRange - loRange)
	}

	// A constraint caps the normalized delta before the reduction estimate.
	if bounds, ok := constraints[c.field]; ok {
		maxDelta, ok := bounds[maxDeltaKey]
		if !ok {
			maxDelta = math.Abs(c.hi - c.lo)
		}
		deltaNorm = math.Min(math.Abs(deltaNorm), maxDelta/math.Max(1.0, hiRange-loRange))
	}

	shifted := clip01(current + deltaNorm*sign(c.hi))
	return c.hi, math.Abs(current-shifted) * reductionFactor
}

// defaultCandidates is the fixed no-history fallback.
func defaultCandidates() []model.InterventionCandidate {
	return []model.InterventionCandidate{
		{
			InterventionType:       "sleep_hours",
			Description:            "Aim for 7-9 hours of sleep per night",
			PredictedRiskReduction: 0.15,
			Confidence:             0.5,
			Constraints:            map[string]float64{},
		},
		{
			InterventionType:       "hydration_liters",
			Description:            "Drink at least 2 L of water per day",
			PredictedRiskReduction: 0.10,
			Confidence:             0.5,
			Constraints:            map[string]float64{},
		},
	}
}

func fieldConstraints(constraints Constraints, field string) map[string]float64 {
	if bounds, ok := constraints[field]; ok {
		out := make(map[string]float64, len(bounds))
		for k, v := range bounds {
			out[k] = v
		}
		return out
	}
	return map[string]float64{}
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func clip01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 { return math.Min(math.Max(v, lo), hi) }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
