package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/aura/internal/adapters/mq/queue"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a bounded in-memory queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(2))
		ctx := context.Background()

		Convey("When enqueuing within capacity", func() {
			ok1 := q.Enqueue(ctx, queue.Job{JobID: "j1", UserID: "user-1"})
			ok2 := q.Enqueue(ctx, queue.Job{JobID: "j2", UserID: "user-2"})

			Convey("Then both jobs should be accepted", func() {
				So(ok1, ShouldBeTrue)
				So(ok2, ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 2)
			})

			Convey("And a third job should be rejected without blocking", func() {
				So(q.Enqueue(ctx, queue.Job{JobID: "j3"}), ShouldBeFalse)
			})

			Convey("And dequeuing should deliver jobs in order", func() {
				jobs := q.Dequeue(ctx)
				first := <-jobs
				second := <-jobs
				So(first.JobID, ShouldEqual, "j1")
				So(second.JobID, ShouldEqual, "j2")
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Enqueue(ctx, queue.Job{JobID: "j1"}), ShouldBeTrue)
			So(q.Close(), ShouldBeNil)

			Convey("Then new jobs should be rejected", func() {
				So(q.Enqueue(ctx, queue.Job{JobID: "j2"}), ShouldBeFalse)
			})

			Convey("And closing again should be a no-op", func() {
				So(q.Close(), ShouldBeNil)
			})

			Convey("And the dequeue channel should drain and close", func() {
				jobs := q.Dequeue(ctx)
				job, ok := <-jobs
				So(ok, ShouldBeTrue)
				So(job.JobID, ShouldEqual, "j1")

				select {
				case _, open := <-jobs:
					So(open, ShouldBeFalse)
				case <-time.After(time.Second):
					t.Fatal("dequeue channel did not close")
				}
			})
		})

		Convey("When the consumer context is canceled", func() {
			consumerCtx, cancel := context.WithCancel(ctx)
			jobs := q.Dequeue(consumerCtx)
			cancel()

			So(q.Enqueue(ctx, queue.Job{JobID: "j1"}), ShouldBeTrue)

			Convey("Then the delivery goroutine should stop", func() {
				// With no receiver attached, cancellation is the only exit.
				time.Sleep(50 * time.Millisecond)
				select {
				case _, open := <-jobs:
					So(open, ShouldBeFalse)
				case <-time.After(time.Second):
					t.Fatal("dequeue channel did not close after cancel")
				}
			})
		})
	})
}
