// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"time"
)

// Validation errors surfaced by record and profile checks.
var (
	ErrIntensityWithoutEvent = errors.New("migraine_intensity requires migraine_occurred")
	ErrMissingUserID         = errors.New("missing user_id")
)

// DailyRecord is one day of self-reported health signals for a user.
// Raw values are unnormalized; the feature package owns the range table.
type DailyRecord struct {
	Date             time.Time `json:"date"`
	SleepHours       float64   `json:"sleep_hours"`
	SleepQuality     float64   `json:"sleep_quality"`
	StressLevel      float64   `json:"stress_level"`
	HydrationLiters  float64   `json:"hydration_liters"`
	CaffeineMg       float64   `json:"caffeine_mg"`
	AlcoholUnits     float64   `json:"alcohol_units"`
	ExerciseMinutes  float64   `json:"exercise_minutes"`
	PressureHPa      *float64  `json:"weather_pressure_hpa,omitempty"`
	CycleDay         *int      `json:"menstrual_cycle_day,omitempty"`
	MigraineOccurred bool      `json:"migraine_occurred"`
	// MigraineIntensity is > 0 iff MigraineOccurred is true.
	MigraineIntensity *float64 `json:"migraine_intensity,omitempty"`
}

// Validate checks the intensity/flag mutual exclusivity invariant.
func (r DailyRecord) Validate() error {
	if r.MigraineIntensity != nil && *r.MigraineIntensity > 0 && !r.MigraineOccurred {
		return ErrIntensityWithoutEvent
	}
	return nil
}

// Label returns the binary event target used for personalization.
func (r DailyRecord) Label() float64 {
	if r.MigraineOccurred {
		return 1.0
	}
	return 0.0
}

// UserProfile carries per-user metadata and preferences.
type UserProfile struct {
	UserID            string    `json:"user_id"`
	Age               int       `json:"age"`
	Sex               string    `json:"sex"`
	HistoryYears      float64   `json:"migraine_history_years"`
	AvgFrequency      float64   `json:"average_migraine_frequency"`
	PersonalThreshold float64   `json:"personal_threshold"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Validate checks required profile fields.
func (p UserProfile) Validate() error {
	if p.UserID == "" {
		return ErrMissingUserID
	}
	return nil
}

// VulnerabilityState is a point-in-time risk snapshot for a user.
type VulnerabilityState struct {
	UserID             string    `json:"user_id"`
	Timestamp          time.Time `json:"timestamp"`
	VulnerabilityScore float64   `json:"vulnerability_score"`
	Confidence         float64   `json:"confidence"`
}

// SimulationResult aggregates stochastic rollouts of a counterfactual.
type SimulationResult struct {
	// Trajectory is the mean vulnerability trajectory across rollouts.
	Trajectory []float64 `json:"trajectory"`
	// MigraineRisk is the last value of the mean trajectory, in [0, 1].
	MigraineRisk float64 `json:"migraine_risk"`
	// Uncertainty is the mean per-step standard deviation across rollouts.
	Uncertainty float64 `json:"uncertainty"`
}

// InterventionCandidate is a proposed bounded behavior change, ranked by
// its estimated impact on predicted risk.
type InterventionCandidate struct {
	InterventionType       string             `json:"intervention_type"`
	Description            string             `json:"description"`
	PredictedRiskReduction float64            `json:"predicted_risk_reduction"`
	Confidence             float64            `json:"confidence"`
	Constraints            map[string]float64 `json:"constraints"`
}

// FitResult reports the outcome of one personalization run.
type FitResult struct {
	LossHistory []float64 `json:"loss_history"`
}

// PersonalizeJob is the payload handed to background personalization workers.
type PersonalizeJob struct {
	JobID  string // unique id, for tracing and metrics
	UserID string
	Epochs int
}
