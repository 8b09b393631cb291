package feature_test

import (
	"testing"
	"time"

	"github.com/okian/aura/internal/domain/feature"
	"github.com/okian/aura/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func typicalRecord() model.DailyRecord {
	return model.DailyRecord{
		Date:            time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		SleepHours:      7.5,
		SleepQuality:    6,
		StressLevel:     4,
		HydrationLiters: 2,
		CaffeineMg:      100,
		AlcoholUnits:    0,
		ExerciseMinutes: 20,
	}
}

func TestNormalize(t *testing.T) {
	Convey("Given a typical daily record", t, func() {
		record := typicalRecord()

		Convey("When normalizing", func() {
			vec := feature.Normalize(record)

			Convey("Then it should produce a fixed-length vector in [0, 1]", func() {
				So(len(vec), ShouldEqual, feature.Dim)
				for _, v := range vec {
					So(v, ShouldBeGreaterThanOrEqualTo, 0)
					So(v, ShouldBeLessThanOrEqualTo, 1)
				}
			})

			Convey("And missing pressure should be imputed at standard pressure", func() {
				idx, ok := feature.Index("weather_pressure_hpa")
				So(ok, ShouldBeTrue)
				// (1013.25 - 950) / (1050 - 950)
				So(vec[idx], ShouldAlmostEqual, 0.6325, 1e-9)
			})
		})

		Convey("When a value exceeds its published range", func() {
			record.CaffeineMg = 5000
			vec := feature.Normalize(record)

			Convey("Then it should clip to the range before scaling", func() {
				idx, _ := feature.Index("caffeine_mg")
				So(vec[idx], ShouldEqual, 1.0)
			})
		})

		Convey("When a value sits at the range floor", func() {
			record.SleepHours = -3
			vec := feature.Normalize(record)

			Convey("Then it should clip to zero", func() {
				idx, _ := feature.Index("sleep_hours")
				So(vec[idx], ShouldEqual, 0.0)
			})
		})
	})
}

func TestApply(t *testing.T) {
	Convey("Given a record and a set of overrides", t, func() {
		record := typicalRecord()

		Convey("When applying a known override", func() {
			out := feature.Apply(record, map[string]float64{"sleep_hours": 9})

			Convey("Then it should write the raw value onto a copy", func() {
				So(out.SleepHours, ShouldEqual, 9)
				So(record.SleepHours, ShouldEqual, 7.5)
			})
		})

		Convey("When applying an unknown field name", func() {
			out := feature.Apply(record, map[string]float64{"moon_phase": 3})

			Convey("Then it should be ignored", func() {
				So(out, ShouldResemble, record)
			})
		})

		Convey("When overrides are empty", func() {
			out := feature.Apply(record, nil)

			Convey("Then the record should pass through unchanged", func() {
				So(out, ShouldResemble, record)
			})
		})
	})
}

func TestMatrix(t *testing.T) {
	Convey("Given an ordered slice of records", t, func() {
		records := []model.DailyRecord{typicalRecord(), typicalRecord(), typicalRecord()}

		Convey("When building the feature matrix", func() {
			m := feature.Matrix(records)

			Convey("Then it should have one row per day", func() {
				So(len(m), ShouldEqual, 3)
				for _, row := range m {
					So(len(row), ShouldEqual, feature.Dim)
				}
			})
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given records with suspicious values", t, func() {
		Convey("When sleep is very low", func() {
			r := typicalRecord()
			r.SleepHours = 2
			warnings := feature.Validate(r)
			So(len(warnings), ShouldBeGreaterThanOrEqualTo, 1)
			So(warnings[0], ShouldContainSubstring, "very low sleep")
		})

		Convey("When caffeine is above the advisory limit", func() {
			r := typicalRecord()
			r.CaffeineMg = 700
			warnings := feature.Validate(r)
			So(warnings, ShouldContain, "high caffeine intake (700 mg); FDA advises <400 mg/day")
		})

		Convey("When a migraine occurred without an intensity", func() {
			r := typicalRecord()
			r.MigraineOccurred = true
			warnings := feature.Validate(r)
			So(warnings, ShouldContain, "migraine occurred but intensity not recorded")
		})

		Convey("When everything is nominal", func() {
			warnings := feature.Validate(typicalRecord())
			So(warnings, ShouldBeEmpty)
		})
	})
}

func TestRangeTable(t *testing.T) {
	Convey("Given the published range table", t, func() {
		Convey("Then names should be in feature-vector order", func() {
			names := feature.Names()
			So(len(names), ShouldEqual, feature.Dim)
			So(names[0], ShouldEqual, "sleep_hours")
			So(names[feature.Dim-1], ShouldEqual, "weather_pressure_hpa")
		})

		Convey("Then ranges should resolve for known fields", func() {
			lo, hi, ok := feature.Range("stress_level")
			So(ok, ShouldBeTrue)
			So(lo, ShouldEqual, 0)
			So(hi, ShouldEqual, 10)
		})

		Convey("Then unknown fields should not resolve", func() {
			_, _, ok := feature.Range("nope")
			So(ok, ShouldBeFalse)
			_, ok = feature.Index("nope")
			So(ok, ShouldBeFalse)
		})
	})
}
