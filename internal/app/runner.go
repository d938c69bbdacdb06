package app

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/streamrec/internal/adapters/mq/worker"
	"github.com/okian/streamrec/internal/domain/algorithm"
	"github.com/okian/streamrec/internal/domain/metric"
	"github.com/okian/streamrec/internal/domain/model"
	"github.com/okian/streamrec/internal/domain/progress"
	"github.com/okian/streamrec/pkg/logger"
	"github.com/okian/streamrec/pkg/metrics"
)

// ResultWriter persists the final metrics of one algorithm.
type ResultWriter interface {
	WriteResult(ctx context.Context, algorithm string, ms []metric.Metric) error
}

// ReplayInput is shared read-only by all runners of one evaluation.
type ReplayInput struct {
	TrainingItems  []*model.Item
	TrainingClicks []*model.ClickData
	Packages       []model.WorkPackage
}

// Runner replays the input past one algorithm and scores it. It is a
// worker.Task; one runner owns its algorithm and metrics exclusively.
type Runner struct {
	name     string
	alg      *algorithm.Algorithm
	metrics  []metric.Metric
	input    *ReplayInput
	results  ResultWriter
	progress *progress.Reporter
	logger   logger.Logger
}

// NewRunner creates a runner. results and reporter may be nil.
func NewRunner(alg *algorithm.Algorithm, ms []metric.Metric, input *ReplayInput, results ResultWriter, reporter *progress.Reporter) *Runner {
	return &Runner{
		name:     alg.Name(),
		alg:      alg,
		metrics:  ms,
		input:    input,
		results:  results,
		progress: reporter,
		logger:   logger.Get().Named("runner"),
	}
}

// Name implements worker.Task.
func (r *Runner) Name() string { return r.name }

// Metrics returns the runner's metric instances.
func (r *Runner) Metrics() []metric.Metric { return r.metrics }

type phaseTimes struct {
	training  time.Duration
	inBetween time.Duration
	testing   time.Duration
}

// Run implements worker.Task. Any error, including a panic inside the
// algorithm, is returned as "<algorithm>: <cause>". A runner runs once:
// the algorithm and the shared input are released when it returns.
func (r *Runner) Run(ctx context.Context) (err error) {
	name := r.name
	metrics.RecordRunStarted()
	defer func() {
		r.alg, r.input = nil, nil
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", worker.ErrPanic, rec)
		}
		if err != nil {
			err = fmt.Errorf("%s: %w", name, err)
			metrics.RecordRunFailed()
			return
		}
		metrics.RecordRunCompleted()
	}()

	r.logger.Info(ctx, "training", logger.String("algorithm", name),
		logger.Int("items", len(r.input.TrainingItems)), logger.Int("clicks", len(r.input.TrainingClicks)))

	var times phaseTimes
	start := time.Now()
	if err := r.alg.Train(ctx, r.input.TrainingItems, r.input.TrainingClicks); err != nil {
		return fmt.Errorf("training: %w", err)
	}
	times.training = time.Since(start)
	metrics.RecordTrainLatency(name, string(metric.Training), ms(times.training))

	if err := r.replay(ctx, &times); err != nil {
		return err
	}

	r.finalize(len(r.input.Packages), times)
	r.logger.Info(ctx, "replay finished", logger.String("algorithm", name),
		logger.Duration("training", times.training),
		logger.Duration("in_between_training", times.inBetween),
		logger.Duration("testing", times.testing),
		logger.Float64("testing_ms_per_package", testingPerPackage(len(r.input.Packages), times.testing)))

	// The store logs and counts write failures; the computed metrics stay
	// in the report.
	if r.results != nil {
		if err := r.results.WriteResult(ctx, name, r.metrics); err != nil {
			r.logger.Warn(ctx, "results not persisted", logger.String("algorithm", name), logger.Error(err))
		}
	}
	return nil
}

func (r *Runner) replay(ctx context.Context, times *phaseTimes) error {
	name := r.name
	packages := r.input.Packages

	var tracker *progress.Tracker
	if r.progress != nil {
		tracker = r.progress.Track(name, len(packages))
	}

	for i, wp := range packages {
		if tracker != nil {
			if _, reported := tracker.Step(i); reported {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}

		switch p := wp.(type) {
		case model.Announcement:
			start := time.Now()
			if err := r.alg.Train(ctx, []*model.Item{p.Item}, nil); err != nil {
				return fmt.Errorf("training on item %d: %w", p.Item.ID, err)
			}
			d := time.Since(start)
			times.inBetween += d
			metrics.RecordTrainLatency(name, string(metric.InBetweenTraining), ms(d))
			metrics.RecordPackageProcessed(name, "announcement")

		case model.Evaluation:
			start := time.Now()
			recs, err := r.alg.Recommend(ctx, p.Data)
			if err != nil {
				return fmt.Errorf("recommending for user %d: %w", p.Data.Click.UserID, err)
			}
			d := time.Since(start)
			times.testing += d
			metrics.RecordRecommendLatency(name, ms(d))

			start = time.Now()
			if err := r.alg.Train(ctx, nil, []*model.ClickData{p.Data}); err != nil {
				return fmt.Errorf("training on click: %w", err)
			}
			d = time.Since(start)
			times.inBetween += d
			metrics.RecordTrainLatency(name, string(metric.InBetweenTraining), ms(d))

			for _, m := range r.metrics {
				if err := m.Evaluate(p.Data.Click, recs, p.GroundTruth); err != nil {
					return fmt.Errorf("metric %s: %w", m.Name(), err)
				}
			}
			metrics.RecordPackageProcessed(name, "evaluation")
		}
	}
	return nil
}

// finalize hands the measured durations to the runtime metrics. Testing
// time is reported per work package.
func (r *Runner) finalize(packages int, times phaseTimes) {
	for _, m := range r.metrics {
		rt, ok := m.(*metric.Runtime)
		if !ok {
			continue
		}
		switch rt.Phase() {
		case metric.Training:
			rt.SetRuntime(ms(times.training))
		case metric.InBetweenTraining:
			rt.SetRuntime(ms(times.inBetween))
		case metric.Testing:
			rt.SetRuntime(testingPerPackage(packages, times.testing))
		}
	}
}

func testingPerPackage(packages int, d time.Duration) float64 {
	if packages == 0 {
		return 0
	}
	return ms(d) / float64(packages)
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
