package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/aura/internal/adapters/repository"
	"github.com/okian/aura/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryStoreProfiles(t *testing.T) {
	Convey("Given a new in-memory store", t, func() {
		store := repository.NewMemoryStore()
		ctx := context.Background()
		profile := model.UserProfile{UserID: "user-1", Age: 34}

		Convey("When creating a profile", func() {
			err := store.CreateProfile(ctx, profile)

			Convey("Then it should be retrievable", func() {
				So(err, ShouldBeNil)
				got, gerr := store.Profile(ctx, "user-1")
				So(gerr, ShouldBeNil)
				So(got, ShouldResemble, profile)
			})

			Convey("And creating it again should conflict", func() {
				So(store.CreateProfile(ctx, profile), ShouldEqual, repository.ErrAlreadyExists)
			})

			Convey("And the user count should reflect it", func() {
				So(store.Count(ctx), ShouldEqual, 1)
				So(store.UserIDs(ctx), ShouldContain, "user-1")
			})
		})

		Convey("When creating a profile without a user id", func() {
			err := store.CreateProfile(ctx, model.UserProfile{})

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, model.ErrMissingUserID), ShouldBeTrue)
			})
		})

		Convey("When looking up an unknown user", func() {
			_, err := store.Profile(ctx, "ghost")

			Convey("Then it should report not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestMemoryStoreRecords(t *testing.T) {
	Convey("Given a store with a registered user", t, func() {
		store := repository.NewMemoryStore(repository.WithShardCount(4))
		ctx := context.Background()
		So(store.CreateProfile(ctx, model.UserProfile{UserID: "user-1"}), ShouldBeNil)

		record := func(day int) model.DailyRecord {
			return model.DailyRecord{
				Date:       time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
				SleepHours: float64(day),
			}
		}

		Convey("When appending records", func() {
			for i := 0; i < 5; i++ {
				n, err := store.AppendRecord(ctx, "user-1", record(i))
				So(err, ShouldBeNil)
				So(n, ShouldEqual, i+1)
			}

			Convey("Then the full history should come back in order", func() {
				history, err := store.Records(ctx, "user-1")
				So(err, ShouldBeNil)
				So(len(history), ShouldEqual, 5)
				So(history[0].SleepHours, ShouldEqual, 0)
				So(history[4].SleepHours, ShouldEqual, 4)
			})

			Convey("And mutating the returned history should not affect the store", func() {
				history, _ := store.Records(ctx, "user-1")
				history[0].SleepHours = 99
				again, _ := store.Records(ctx, "user-1")
				So(again[0].SleepHours, ShouldEqual, 0)
			})
		})

		Convey("When appending for an unknown user", func() {
			_, err := store.AppendRecord(ctx, "ghost", record(0))

			Convey("Then it should report not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestMemoryStoreConcurrency(t *testing.T) {
	Convey("Given concurrent writers across many users", t, func() {
		store := repository.NewMemoryStore()
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				userID := fmt.Sprintf("user-%d", i)
				_ = store.CreateProfile(ctx, model.UserProfile{UserID: userID})
				for j := 0; j < 10; j++ {
					_, _ = store.AppendRecord(ctx, userID, model.DailyRecord{SleepHours: float64(j)})
				}
			}()
		}
		wg.Wait()

		Convey("Then every user and record should land", func() {
			So(store.Count(ctx), ShouldEqual, 32)
			for i := 0; i < 32; i++ {
				history, err := store.Records(ctx, fmt.Sprintf("user-%d", i))
				So(err, ShouldBeNil)
				So(len(history), ShouldEqual, 10)
			}
		})
	})
}
