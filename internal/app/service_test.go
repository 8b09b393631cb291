package service_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/aura/internal/adapters/persistence"
	"github.com/okian/aura/internal/adapters/repository"
	app "github.com/okian/aura/internal/app"
	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/internal/domain/simulate"
	"github.com/okian/aura/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

func startService(opts ...app.Option) (*app.Service, func()) {
	svc := app.New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	return svc, svc.Stop
}

func week(days int) []model.DailyRecord {
	records := make([]model.DailyRecord, days)
	for i := range records {
		records[i] = model.DailyRecord{
			Date:             time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			SleepHours:       6 + float64(i%3),
			SleepQuality:     6,
			StressLevel:      float64(3 + i%4),
			HydrationLiters:  2,
			CaffeineMg:       120,
			ExerciseMinutes:  25,
			MigraineOccurred: i%4 == 0,
		}
	}
	return records
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a service", t, func() {
		svc, stop := startService(app.WithWorkerCount(2), app.WithQueueSize(16))
		defer stop()
		ctx := context.Background()

		Convey("Then stats should describe a running service", func() {
			stats := svc.Stats(ctx)
			So(stats["started"], ShouldBeTrue)
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["users"], ShouldEqual, 0)
		})

		Convey("And starting again should be a no-op", func() {
			So(svc.Start(ctx), ShouldBeNil)
		})
	})
}

func TestUserFlow(t *testing.T) {
	Convey("Given a running service", t, func() {
		svc, stop := startService()
		defer stop()
		ctx := context.Background()

		Convey("When creating a user", func() {
			created, err := svc.CreateUser(ctx, model.UserProfile{UserID: "user-1", Age: 29})

			Convey("Then the profile should be stamped and retrievable", func() {
				So(err, ShouldBeNil)
				So(created.CreatedAt.IsZero(), ShouldBeFalse)
				got, gerr := svc.User(ctx, "user-1")
				So(gerr, ShouldBeNil)
				So(got.Age, ShouldEqual, 29)
			})

			Convey("And a duplicate should conflict", func() {
				_, derr := svc.CreateUser(ctx, model.UserProfile{UserID: "user-1"})
				So(errors.Is(derr, repository.ErrAlreadyExists), ShouldBeTrue)
			})
		})

		Convey("When submitting records", func() {
			_, err := svc.CreateUser(ctx, model.UserProfile{UserID: "user-1"})
			So(err, ShouldBeNil)

			result, serr := svc.SubmitRecord(ctx, "user-1", model.DailyRecord{SleepHours: 2})

			Convey("Then the record should be stored with warnings", func() {
				So(serr, ShouldBeNil)
				So(len(result.Warnings), ShouldBeGreaterThan, 0)
				So(len(result.Features), ShouldEqual, 8)
			})

			Convey("And an invalid record should be rejected", func() {
				intensity := 5.0
				_, verr := svc.SubmitRecord(ctx, "user-1", model.DailyRecord{MigraineIntensity: &intensity})
				So(errors.Is(verr, model.ErrIntensityWithoutEvent), ShouldBeTrue)
			})
		})
	})
}

func TestVulnerabilityQuery(t *testing.T) {
	Convey("Given a running service with one user", t, func() {
		svc, stop := startService()
		defer stop()
		ctx := context.Background()
		_, err := svc.CreateUser(ctx, model.UserProfile{UserID: "user-1"})
		So(err, ShouldBeNil)

		Convey("When the user has no history", func() {
			state, verr := svc.Vulnerability(ctx, "user-1")

			Convey("Then the score should be neutral with zero confidence", func() {
				So(verr, ShouldBeNil)
				So(state.VulnerabilityScore, ShouldEqual, 0.5)
				So(state.Confidence, ShouldEqual, 0)
			})
		})

		Convey("When the user has fifteen days of history", func() {
			for _, r := range week(15) {
				_, serr := svc.SubmitRecord(ctx, "user-1", r)
				So(serr, ShouldBeNil)
			}
			state, verr := svc.Vulnerability(ctx, "user-1")

			Convey("Then the score should be a model probability", func() {
				So(verr, ShouldBeNil)
				So(state.VulnerabilityScore, ShouldBeGreaterThanOrEqualTo, 0)
				So(state.VulnerabilityScore, ShouldBeLessThanOrEqualTo, 1)
			})

			Convey("And confidence should scale with history length", func() {
				So(verr, ShouldBeNil)
				So(state.Confidence, ShouldAlmostEqual, 0.5, 1e-9)
			})
		})

		Convey("When the user is unknown", func() {
			_, verr := svc.Vulnerability(ctx, "ghost")
			So(errors.Is(verr, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestSimulateAndIntervene(t *testing.T) {
	Convey("Given a running service with history", t, func() {
		svc, stop := startService(app.WithRollouts(5))
		defer stop()
		ctx := context.Background()
		_, err := svc.CreateUser(ctx, model.UserProfile{UserID: "user-1"})
		So(err, ShouldBeNil)
		for _, r := range week(10) {
			_, serr := svc.SubmitRecord(ctx, "user-1", r)
			So(serr, ShouldBeNil)
		}

		Convey("When simulating a counterfactual", func() {
			result, serr := svc.Simulate(ctx, "user-1", week(10), map[string]float64{"sleep_hours": 9})

			Convey("Then it should aggregate into a bounded result", func() {
				So(serr, ShouldBeNil)
				So(len(result.Trajectory), ShouldEqual, 7)
				So(result.MigraineRisk, ShouldBeGreaterThanOrEqualTo, 0)
				So(result.MigraineRisk, ShouldBeLessThanOrEqualTo, 1)
			})
		})

		Convey("When simulating with an empty baseline", func() {
			_, serr := svc.Simulate(ctx, "user-1", nil, nil)
			So(errors.Is(serr, simulate.ErrNoRecords), ShouldBeTrue)
		})

		Convey("When requesting interventions", func() {
			candidates, ierr := svc.Interventions(ctx, "user-1", nil)

			Convey("Then a ranked list should come back", func() {
				So(ierr, ShouldBeNil)
				So(len(candidates), ShouldBeGreaterThan, 0)
				So(len(candidates), ShouldBeLessThanOrEqualTo, 5)
			})
		})
	})
}

func TestPersonalization(t *testing.T) {
	Convey("Given a running service with history", t, func() {
		svc, stop := startService(app.WithTraining(10, 1e-2))
		defer stop()
		ctx := context.Background()
		_, err := svc.CreateUser(ctx, model.UserProfile{UserID: "user-1"})
		So(err, ShouldBeNil)
		for _, r := range week(20) {
			_, serr := svc.SubmitRecord(ctx, "user-1", r)
			So(serr, ShouldBeNil)
		}

		Convey("When personalizing synchronously", func() {
			result, perr := svc.Personalize(ctx, "user-1", 0)

			Convey("Then the configured epoch count should apply", func() {
				So(perr, ShouldBeNil)
				So(len(result.LossHistory), ShouldEqual, 10)
			})
		})

		Convey("When personalizing a user with no history", func() {
			_, cerr := svc.CreateUser(ctx, model.UserProfile{UserID: "user-2"})
			So(cerr, ShouldBeNil)
			result, perr := svc.Personalize(ctx, "user-2", 5)

			Convey("Then the fit should be an empty-history no-op", func() {
				So(perr, ShouldBeNil)
				So(result.LossHistory, ShouldBeEmpty)
			})
		})

		Convey("When enqueuing a background fit", func() {
			jobID, ok := svc.EnqueuePersonalize(ctx, "user-1", 5)

			Convey("Then the job should be accepted with an id", func() {
				So(ok, ShouldBeTrue)
				So(jobID, ShouldNotBeEmpty)
			})
		})
	})
}

func TestPersonalizationSurvivesRestart(t *testing.T) {
	Convey("Given a service with on-disk snapshots and a personalized user", t, func() {
		dir := t.TempDir()
		ctx := context.Background()
		records := week(20)

		seed := func(svc *app.Service) {
			_, err := svc.CreateUser(ctx, model.UserProfile{UserID: "user-1"})
			So(err, ShouldBeNil)
			for _, r := range records {
				_, serr := svc.SubmitRecord(ctx, "user-1", r)
				So(serr, ShouldBeNil)
			}
		}

		svc, stop := startService(app.WithSnapshotPath(dir), app.WithTraining(30, 1e-2))
		seed(svc)

		before, err := svc.Vulnerability(ctx, "user-1")
		So(err, ShouldBeNil)
		_, perr := svc.Personalize(ctx, "user-1", 30)
		So(perr, ShouldBeNil)
		after, err := svc.Vulnerability(ctx, "user-1")
		So(err, ShouldBeNil)
		So(after.VulnerabilityScore, ShouldNotAlmostEqual, before.VulnerabilityScore, 1e-9)

		stop()

		Convey("When a new service starts over the same snapshot directory", func() {
			restarted, rstop := startService(app.WithSnapshotPath(dir), app.WithTraining(30, 1e-2))
			defer rstop()
			seed(restarted)

			Convey("Then the risk query should reproduce the personalized score", func() {
				state, verr := restarted.Vulnerability(ctx, "user-1")
				So(verr, ShouldBeNil)
				So(state.VulnerabilityScore, ShouldAlmostEqual, after.VulnerabilityScore, 1e-9)
			})
		})
	})
}

func TestRefitAll(t *testing.T) {
	Convey("Given a service with users of varying history lengths", t, func() {
		dir := t.TempDir()
		ctx := context.Background()
		svc, stop := startService(app.WithSnapshotPath(dir), app.WithWorkerCount(2))

		_, err := svc.CreateUser(ctx, model.UserProfile{UserID: "user-1"})
		So(err, ShouldBeNil)
		for _, r := range week(20) {
			_, serr := svc.SubmitRecord(ctx, "user-1", r)
			So(serr, ShouldBeNil)
		}
		_, err = svc.CreateUser(ctx, model.UserProfile{UserID: "user-2"})
		So(err, ShouldBeNil)
		_, err = svc.SubmitRecord(ctx, "user-2", week(1)[0])
		So(err, ShouldBeNil)

		Convey("When a refit sweep runs and the service drains", func() {
			svc.RefitAll(ctx)
			stop()

			snapshots, oerr := persistence.Open(persistence.WithPath(dir))
			So(oerr, ShouldBeNil)
			defer snapshots.Close()

			Convey("Then the user with enough history should have a persisted snapshot", func() {
				state, lerr := snapshots.LoadAdapter(ctx, "user-1")
				So(lerr, ShouldBeNil)
				So(state.UserID, ShouldEqual, "user-1")
			})

			Convey("And the short-history user should be skipped", func() {
				_, lerr := snapshots.LoadAdapter(ctx, "user-2")
				So(errors.Is(lerr, persistence.ErrNoSnapshot), ShouldBeTrue)
			})
		})
	})
}

func TestStartRejectsBadRefitSchedule(t *testing.T) {
	Convey("Given a service configured with a malformed refit schedule", t, func() {
		svc := app.New(app.WithRefitSchedule("not-a-cron"))

		Convey("When starting", func() {
			err := svc.Start(context.Background())

			Convey("Then startup should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
