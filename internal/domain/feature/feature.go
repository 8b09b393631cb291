// Package feature owns the daily-signal normalization contract: the published
// range table, imputation defaults, and the fixed 8-component feature vector
// consumed by the encoder.
package feature

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/aura/internal/domain/model"
)

// Dim is the fixed length of a normalized feature vector.
const Dim = 8

// spec describes one named signal: its normalization range, its imputation
// default, and how to read/write the raw value on a record.
type spec struct {
	name     string
	lo, hi   float64
	fallback float64
	get      func(r model.DailyRecord) (float64, bool)
	set      func(r *model.DailyRecord, v float64)
}

// table is the published range table. Order is the feature-vector order and
// must not change: persisted adapter weights depend on it.
var table = []spec{
	{
		name: "sleep_hours", lo: 0, hi: 12, fallback: 7.5,
		get: func(r model.DailyRecord) (float64, bool) { return r.SleepHours, true },
		set: func(r *model.DailyRecord, v float64) { r.SleepHours = v },
	},
	{
		name: "sleep_quality", lo: 0, hi: 10, fallback: 6.0,
		get: func(r model.DailyRecord) (float64, bool) { return r.SleepQuality, true },
		set: func(r *model.DailyRecord, v float64) { r.SleepQuality = v },
	},
	{
		name: "stress_level", lo: 0, hi: 10, fallback: 4.0,
		get: func(r model.DailyRecord) (float64, bool) { return r.StressLevel, true },
		set: func(r *model.DailyRecord, v float64) { r.StressLevel = v },
	},
	{
		name: "hydration_liters", lo: 0, hi: 5, fallback: 2.0,
		get: func(r model.DailyRecord) (float64, bool) { return r.HydrationLiters, true },
		set: func(r *model.DailyRecord, v float64) { r.HydrationLiters = v },
	},
	{
		name: "caffeine_mg", lo: 0, hi: 800, fallback: 100.0,
		get: func(r model.DailyRecord) (float64, bool) { return r.CaffeineMg, true },
		set: func(r *model.DailyRecord, v float64) { r.CaffeineMg = v },
	},
	{
		name: "alcohol_units", lo: 0, hi: 10, fallback: 0.0,
		get: func(r model.DailyRecord) (float64, bool) { return r.AlcoholUnits, true },
		set: func(r *model.DailyRecord, v float64) { r.AlcoholUnits = v },
	},
	{
		name: "exercise_minutes", lo: 0, hi: 180, fallback: 20.0,
		get: func(r model.DailyRecord) (float64, bool) { return r.ExerciseMinutes, true },
		set: func(r *model.DailyRecord, v float64) { r.ExerciseMinutes = v },
	},
	{
		name: "weather_pressure_hpa", lo: 950, hi: 1050, fallback: 1013.25,
		get: func(r model.DailyRecord) (float64, bool) {
			if r.PressureHPa == nil {
				return 0, false
			}
			return *r.PressureHPa, true
		},
		set: func(r *model.DailyRecord, v float64) { r.PressureHPa = &v },
	},
}

// Names returns field names in feature-vector order.
func Names() []string {
	names := make([]string, len(table))
	for i, s := range table {
		names[i] = s.name
	}
	return names
}

// Index returns the vector position of a named field.
func Index(name string) (int, bool) {
	for i, s := range table {
		if s.name == name {
			return i, true
		}
	}
	return 0, false
}

// Range returns the published [lo, hi] normalization range for a field.
func Range(name string) (lo, hi float64, ok bool) {
	for _, s := range table {
		if s.name == name {
			return s.lo, s.hi, true
		}
	}
	return 0, 0, false
}

// Normalize imputes, range-clips, and min-max scales a record into a fixed
// Dim-length vector with every component in [0, 1].
func Normalize(r model.DailyRecord) []float64 {
	out := make([]float64, len(table))
	for i, s := range table {
		raw, ok := s.get(r)
		if !ok {
			raw = s.fallback
		}
		clipped := math.Min(math.Max(raw, s.lo), s.hi)
		if s.hi > s.lo {
			out[i] = (clipped - s.lo) / (s.hi - s.lo)
		}
	}
	return out
}

// Matrix normalizes an ordered slice of records into a row-per-day matrix.
func Matrix(records []model.DailyRecord) [][]float64 {
	m := make([][]float64, len(records))
	for i, r := range records {
		m[i] = Normalize(r)
	}
	return m
}

// Apply returns a copy of r with each named override written into the raw
// record before normalization. Unknown field names are ignored.
func Apply(r model.DailyRecord, overrides map[string]float64) model.DailyRecord {
	if len(overrides) == 0 {
		return r
	}
	for i := range table {
		if v, ok := overrides[table[i].name]; ok {
			table[i].set(&r, v)
		}
	}
	return r
}

// Validate returns human-readable warnings about suspicious raw values.
// Warnings do not block ingestion.
func Validate(r model.DailyRecord) []string {
	var warnings []string
	if r.SleepHours < 4.0 {
		warnings = append(warnings, fmt.Sprintf("very low sleep (%.1f h); possible entry error", r.SleepHours))
	}
	if r.SleepHours > 12.0 {
		warnings = append(warnings, fmt.Sprintf("unusually high sleep (%.1f h)", r.SleepHours))
	}
	if r.StressLevel >= 9.0 {
		warnings = append(warnings, "extremely high stress recorded (>=9/10)")
	}
	if r.HydrationLiters < 0.5 {
		warnings = append(warnings, "very low hydration (<0.5 L); check entry")
	}
	if r.CaffeineMg > 600.0 {
		warnings = append(warnings, fmt.Sprintf("high caffeine intake (%.0f mg); FDA advises <400 mg/day", r.CaffeineMg))
	}
	if r.AlcoholUnits > 6.0 {
		warnings = append(warnings, fmt.Sprintf("high alcohol intake (%.1f units)", r.AlcoholUnits))
	}
	if r.MigraineOccurred && r.MigraineIntensity == nil {
		warnings = append(warnings, "migraine occurred but intensity not recorded")
	}
	return warnings
}

// IngestResult bundles the outcome of processing one submitted record.
type IngestResult struct {
	UserID     string            `json:"user_id"`
	Date       string            `json:"date"`
	Record     model.DailyRecord `json:"processed_log"`
	Warnings   []string          `json:"warnings"`
	Features   []float64         `json:"normalized_features"`
	IngestedAt time.Time         `json:"ingested_at"`
}

// Ingest validates and normalizes one record for a user.
func Ingest(r model.DailyRecord, userID string) IngestResult {
	return IngestResult{
		UserID:     userID,
		Date:       r.Date.Format("2006-01-02"),
		Record:     r,
		Warnings:   Validate(r),
		Features:   Normalize(r),
		IngestedAt: time.Now().UTC(),
	}
}
