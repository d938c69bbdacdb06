package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	worker "github.com/okian/streamrec/internal/adapters/mq/worker"
	logging "github.com/okian/streamrec/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// funcTask adapts a function to worker.Task.
type funcTask struct {
	name string
	fn   func(ctx context.Context) error
}

func (t funcTask) Name() string                  { return t.name }
func (t funcTask) Run(ctx context.Context) error { return t.fn(ctx) }

func TestPool(t *testing.T) {
	convey.Convey("Given a started pool of two workers", t, func() {
		_ = logging.Init()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool := worker.NewPool(2, worker.WithMetricsInterval(10*time.Millisecond))
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 2)

		convey.Convey("When tasks succeed", func() {
			var ran atomic.Int32
			var futures []*worker.Future
			for i := 0; i < 5; i++ {
				f, err := pool.Submit(ctx, funcTask{name: "ok", fn: func(context.Context) error {
					ran.Add(1)
					return nil
				}})
				convey.So(err, convey.ShouldBeNil)
				futures = append(futures, f)
			}

			convey.Convey("Then every future resolves without error", func() {
				for _, f := range futures {
					convey.So(f.Wait(ctx), convey.ShouldBeNil)
					convey.So(f.Name(), convey.ShouldEqual, "ok")
				}
				convey.So(ran.Load(), convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When one task fails and another panics", func() {
			boom := errors.New("boom")
			failed, _ := pool.Submit(ctx, funcTask{name: "fail", fn: func(context.Context) error { return boom }})
			panicked, _ := pool.Submit(ctx, funcTask{name: "panic", fn: func(context.Context) error { panic("bad state") }})
			fine, _ := pool.Submit(ctx, funcTask{name: "fine", fn: func(context.Context) error { return nil }})

			convey.Convey("Then each failure is carried by its own future", func() {
				convey.So(errors.Is(failed.Wait(ctx), boom), convey.ShouldBeTrue)
				err := panicked.Wait(ctx)
				convey.So(errors.Is(err, worker.ErrPanic), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "bad state")
				convey.So(fine.Wait(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When more tasks than workers are submitted", func() {
			var mu sync.Mutex
			running, peak := 0, 0
			release := make(chan struct{})
			var futures []*worker.Future
			for i := 0; i < 4; i++ {
				f, _ := pool.Submit(ctx, funcTask{name: "slow", fn: func(context.Context) error {
					mu.Lock()
					running++
					peak = max(peak, running)
					mu.Unlock()
					<-release
					mu.Lock()
					running--
					mu.Unlock()
					return nil
				}})
				futures = append(futures, f)
			}
			time.Sleep(50 * time.Millisecond)
			close(release)

			convey.Convey("Then at most two run at once and all finish", func() {
				for _, f := range futures {
					convey.So(f.Wait(ctx), convey.ShouldBeNil)
				}
				convey.So(peak, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the pool is shut down", func() {
			f, _ := pool.Submit(ctx, funcTask{name: "last", fn: func(context.Context) error {
				time.Sleep(20 * time.Millisecond)
				return nil
			}})
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)

			convey.Convey("Then queued work has finished and new work is refused", func() {
				select {
				case <-f.Done():
				default:
					convey.So("task still pending", convey.ShouldBeEmpty)
				}
				_, err := pool.Submit(ctx, funcTask{name: "late", fn: func(context.Context) error { return nil }})
				convey.So(errors.Is(err, worker.ErrStopped), convey.ShouldBeTrue)
			})
		})
	})
}

func TestPoolQueueFull(t *testing.T) {
	convey.Convey("Given an unstarted pool with a one-slot queue", t, func() {
		_ = logging.Init()
		ctx := context.Background()
		pool := worker.NewPool(1, worker.WithQueueCapacity(1))

		_, err := pool.Submit(ctx, funcTask{name: "a", fn: func(context.Context) error { return nil }})
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then a second submit is rejected", func() {
			_, err := pool.Submit(ctx, funcTask{name: "b", fn: func(context.Context) error { return nil }})
			convey.So(errors.Is(err, worker.ErrQueueFull), convey.ShouldBeTrue)
		})
	})
}

func TestFutureWait(t *testing.T) {
	convey.Convey("Given a task that never finishes", t, func() {
		_ = logging.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool := worker.NewPool(1)
		pool.Start(ctx)
		block := make(chan struct{})
		defer close(block)

		f, err := pool.Submit(ctx, funcTask{name: "stuck", fn: func(context.Context) error {
			<-block
			return nil
		}})
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then Wait returns when its context ends", func() {
			waitCtx, waitCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer waitCancel()
			convey.So(errors.Is(f.Wait(waitCtx), context.DeadlineExceeded), convey.ShouldBeTrue)
		})
	})
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker on a closed channel", t, func() {
		_ = logging.Init()

		w := worker.NewInMemoryWorker(emptyQueue{}, worker.WithName("solo"), worker.WithLogger(logging.Get()))

		convey.Convey("Then Run returns once the queue is drained", func() {
			done := make(chan struct{})
			go func() {
				w.Run(context.Background())
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				convey.So("worker still running", convey.ShouldBeEmpty)
			}
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})
}

// emptyQueue is already closed and drained.
type emptyQueue struct{}

func (emptyQueue) Dequeue(context.Context) <-chan worker.Job {
	ch := make(chan worker.Job)
	close(ch)
	return ch
}
