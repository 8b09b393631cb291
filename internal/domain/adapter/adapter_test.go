package adapter_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/aura/internal/domain/adapter"
	"github.com/okian/aura/internal/domain/encoder"
	"github.com/okian/aura/internal/domain/feature"
	"github.com/okian/aura/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func history(days int) []model.DailyRecord {
	records := make([]model.DailyRecord, days)
	for i := range records {
		records[i] = model.DailyRecord{
			Date:             time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			SleepHours:       6 + float64(i%3),
			SleepQuality:     5 + float64(i%4),
			StressLevel:      float64(3 + i%5),
			HydrationLiters:  1.5 + 0.2*float64(i%3),
			CaffeineMg:       float64(80 + 40*(i%3)),
			ExerciseMinutes:  float64(15 * (i % 4)),
			MigraineOccurred: i%4 == 0,
		}
	}
	return records
}

func TestFreshAdapter(t *testing.T) {
	Convey("Given a fresh adapter over a shared encoder", t, func() {
		base := encoder.New(encoder.WithInitSeed(5))
		a := adapter.New(base, "user-1")
		x := feature.Matrix(history(7))

		Convey("Then it should carry the shared threshold", func() {
			So(a.Threshold(), ShouldEqual, base.Threshold())
			So(a.UserID(), ShouldEqual, "user-1")
		})

		Convey("When forwarding a sequence", func() {
			vulnA, probsA, errA := a.Trajectory(x)
			vulnB, probsB, errB := base.Trajectory(x)

			Convey("Then the identity remap should reproduce the encoder exactly", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(vulnA, ShouldResemble, vulnB)
				So(probsA, ShouldResemble, probsB)
			})
		})
	})
}

func TestFitPersonal(t *testing.T) {
	Convey("Given an adapter and a month of records", t, func() {
		base := encoder.New(encoder.WithInitSeed(5))
		a := adapter.New(base, "user-1", adapter.WithLearningRate(1e-2))
		records := history(30)

		Convey("When fitting for a fixed number of epochs", func() {
			result := a.FitPersonal(records, 25)

			Convey("Then the loss history should have one entry per epoch", func() {
				So(len(result.LossHistory), ShouldEqual, 25)
			})

			Convey("And every loss should be finite and positive", func() {
				for _, loss := range result.LossHistory {
					So(math.IsNaN(loss), ShouldBeFalse)
					So(math.IsInf(loss, 0), ShouldBeFalse)
					So(loss, ShouldBeGreaterThan, 0)
				}
			})

			Convey("And the loss should not increase overall", func() {
				first := result.LossHistory[0]
				last := result.LossHistory[len(result.LossHistory)-1]
				So(last, ShouldBeLessThanOrEqualTo, first)
			})

			Convey("And the personal parameters should have moved", func() {
				fresh := adapter.New(base, "user-1")
				So(a.State().Remap, ShouldNotResemble, fresh.State().Remap)
			})
		})

		Convey("When fitting with nonpositive epochs", func() {
			result := a.FitPersonal(records, 0)

			Convey("Then it should fall back to the default epoch count", func() {
				So(len(result.LossHistory), ShouldEqual, adapter.DefaultEpochs)
			})
		})

		Convey("When the history is too short", func() {
			short := adapter.New(base, "user-2")
			before := short.State()
			result := short.FitPersonal(records[:1], 10)

			Convey("Then the fit should be a no-op with an empty history", func() {
				So(result.LossHistory, ShouldBeEmpty)
				So(result.LossHistory, ShouldNotBeNil)
				So(short.State(), ShouldResemble, before)
			})
		})

		Convey("When the history is empty", func() {
			empty := adapter.New(base, "user-3")
			result := empty.FitPersonal(nil, 10)

			Convey("Then the fit should be a no-op", func() {
				So(result.LossHistory, ShouldBeEmpty)
			})
		})
	})
}

func TestSharedWeightsFrozen(t *testing.T) {
	Convey("Given two adapters over one shared encoder", t, func() {
		base := encoder.New(encoder.WithInitSeed(5))
		first := adapter.New(base, "user-1", adapter.WithLearningRate(1e-2))
		second := adapter.New(base, "user-2")
		x := feature.Matrix(history(7))

		_, beforeProbs, _ := second.Trajectory(x)

		Convey("When one adapter personalizes aggressively", func() {
			first.FitPersonal(history(30), 50)

			Convey("Then the other adapter's behavior should be untouched", func() {
				_, afterProbs, _ := second.Trajectory(x)
				So(afterProbs, ShouldResemble, beforeProbs)
			})

			Convey("And the shared encoder itself should be untouched", func() {
				restored, err := encoder.FromState(encoder.New(encoder.WithInitSeed(5)).State())
				So(err, ShouldBeNil)
				_, want, _ := restored.Trajectory(x)
				_, got, _ := base.Trajectory(x)
				So(got, ShouldResemble, want)
			})
		})
	})
}

func TestStateRestore(t *testing.T) {
	Convey("Given a personalized adapter", t, func() {
		base := encoder.New(encoder.WithInitSeed(5))
		a := adapter.New(base, "user-1", adapter.WithLearningRate(1e-2))
		a.FitPersonal(history(20), 30)
		x := feature.Matrix(history(7))

		Convey("When restoring its snapshot into a fresh adapter", func() {
			fresh := adapter.New(base, "user-1")
			err := fresh.Restore(a.State())

			Convey("Then the restored adapter should behave identically", func() {
				So(err, ShouldBeNil)
				_, want, _ := a.Trajectory(x)
				_, got, _ := fresh.Trajectory(x)
				So(got, ShouldResemble, want)
			})
		})

		Convey("When restoring a snapshot with mismatched dimensions", func() {
			fresh := adapter.New(base, "user-1")
			bad := a.State()
			bad.Bias = bad.Bias[:1]
			err := fresh.Restore(bad)

			Convey("Then restoration should fail", func() {
				So(errors.Is(err, adapter.ErrDimensionMismatch), ShouldBeTrue)
			})
		})
	})
}
