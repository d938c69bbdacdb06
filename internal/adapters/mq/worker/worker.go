// Package worker runs tasks on a bounded pool of goroutines and reports
// each task's outcome through a Future.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/streamrec/internal/adapters/mq/queue"
	"github.com/okian/streamrec/pkg/logger"
	"github.com/okian/streamrec/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultMetricsInterval = 5 * time.Second
	poolShutdownTimeout    = 30 * time.Second
)

// Task is one unit of work. A task runs to completion on one worker.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Future is the pending outcome of a submitted task.
type Future struct {
	name string
	done chan struct{}
	err  error
}

func newFuture(name string) *Future {
	return &Future{name: name, done: make(chan struct{})}
}

func (f *Future) complete(err error) {
	f.err = err
	close(f.done)
}

// Name returns the task name.
func (f *Future) Name() string { return f.name }

// Done is closed when the task has finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the task has finished and returns its error, or until
// ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s: %w", f.name, ctx.Err())
	}
}

// Job pairs a task with its future on the queue.
type Job struct {
	task   Task
	future *Future
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker executes jobs until the queue drains or ctx is canceled.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current task.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue Queue
	name  string
	busy  *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		name:     "worker",
		busy:     &atomic.Int64{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.execute(ctx, j)
		}
	}
}

// Shutdown stops the worker after its current task.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// execute runs one job. Panics are converted into the job's error.
func (w *InMemoryWorker) execute(ctx context.Context, j Job) {
	start := time.Now()
	metrics.UpdateWorkerBusyCount(int(w.busy.Add(1)))
	defer func() {
		metrics.UpdateWorkerBusyCount(int(w.busy.Add(-1)))
		metrics.RecordWorkerTaskDuration(time.Since(start).Seconds())
	}()

	err := w.run(ctx, j.task)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "task_failed")
		w.logger.Error(ctx, "task failed",
			logger.String("task", j.task.Name()),
			logger.Error(err),
		)
	} else {
		w.logger.Debug(ctx, "task finished",
			logger.String("task", j.task.Name()),
			logger.Duration("elapsed", time.Since(start)),
		)
	}
	j.future.complete(err)
}

func (w *InMemoryWorker) run(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("worker", "panic")
			w.logger.Error(ctx, "task panicked",
				logger.String("task", t.Name()),
				logger.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return t.Run(ctx)
}

// Pool manages multiple workers fed by one bounded queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   *queue.InMemoryQueue[Job]
	busy    atomic.Int64

	capacity        int
	metricsInterval time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup

	logger logger.Logger
}

// DefaultWorkerCount leaves one core to the driver.
func DefaultWorkerCount() int {
	return max(1, runtime.NumCPU()-1)
}

// NewPool creates a pool of workerCount workers. A count below one means
// DefaultWorkerCount.
func NewPool(workerCount int, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = DefaultWorkerCount()
	}

	p := &Pool{
		workers:         make([]*InMemoryWorker, workerCount),
		capacity:        queueCapacityFor(workerCount),
		metricsInterval: defaultMetricsInterval,
		shutdown:        make(chan struct{}),
		logger:          logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.queue = queue.NewInMemoryQueue[Job](queue.WithCapacity(p.capacity))
	for i := 0; i < workerCount; i++ {
		w := NewInMemoryWorker(p.queue, WithName("worker-"+strconv.Itoa(i)))
		w.busy = &p.busy
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerBusyCount(0)

	return p
}

func queueCapacityFor(workers int) int {
	return max(1024, workers*16)
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
	go p.startMetricsUpdater(ctx)
}

// Submit queues a task. It fails when the pool is shut down or the queue
// is full.
func (p *Pool) Submit(ctx context.Context, t Task) (*Future, error) {
	f := newFuture(t.Name())
	if p.queue.IsClosed() {
		return nil, ErrStopped
	}
	if !p.queue.Enqueue(ctx, Job{task: t, future: f}) {
		if p.queue.IsClosed() {
			return nil, ErrStopped
		}
		return nil, fmt.Errorf("%w: %s", ErrQueueFull, t.Name())
	}
	return f, nil
}

// startMetricsUpdater periodically publishes runtime metrics.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(p.metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	metrics.UpdateSystemMemoryUsage(ms.HeapAlloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if ms.NumGC > 0 {
		metrics.RecordSystemGCPauseTime(float64(ms.PauseTotalNs) / float64(ms.NumGC) / float64(time.Millisecond))
	}
}

// Shutdown closes the queue and waits for queued tasks to finish, bounded
// by ctx and an overall timeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}
	p.shutdownOnce.Do(func() { close(p.shutdown) })

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownCtx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out", logger.Int("workers", len(p.workers)))
		return fmt.Errorf("pool shutdown: %w", shutdownCtx.Err())
	}
}
