// Package app wires the evaluation: it loads the dataset, builds the replay
// sequence once, runs one Runner per algorithm on a bounded worker pool and
// reports results.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/okian/streamrec/internal/adapters/loader"
	"github.com/okian/streamrec/internal/adapters/mq/worker"
	"github.com/okian/streamrec/internal/adapters/repository"
	"github.com/okian/streamrec/internal/config"
	"github.com/okian/streamrec/internal/domain/algorithm"
	"github.com/okian/streamrec/internal/domain/component"
	"github.com/okian/streamrec/internal/domain/dedupe"
	"github.com/okian/streamrec/internal/domain/metric"
	"github.com/okian/streamrec/internal/domain/model"
	"github.com/okian/streamrec/internal/domain/progress"
	"github.com/okian/streamrec/internal/domain/session"
	"github.com/okian/streamrec/internal/domain/split"
	"github.com/okian/streamrec/internal/domain/stattest"
	"github.com/okian/streamrec/internal/domain/workpackage"
	"github.com/okian/streamrec/pkg/logger"
	"github.com/okian/streamrec/pkg/metrics"
)

// Tag properties of the component files.
const (
	AlgorithmTag = "algorithm"
	MetricTag    = "metric"
)

// AlgorithmResult is the outcome of one runner.
type AlgorithmResult struct {
	Name    string
	Metrics []metric.Metric
	Err     error
}

// Report summarizes a finished evaluation.
type Report struct {
	RunID       string
	Start       string
	ResultsPath string
	Results     []AlgorithmResult
	Matrices    []stattest.Matrix
	Dataset     *DatasetStats
}

// Failed returns the results of algorithms that did not finish.
func (r *Report) Failed() []AlgorithmResult {
	var out []AlgorithmResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Evaluator is the composition root of one evaluation run.
type Evaluator struct {
	mu sync.RWMutex

	cfg        *config.Config
	algorithms *algorithm.Registry
	metrics    *metric.Registry
	out        io.Writer
	now        func() time.Time

	// State
	runID    string
	start    string
	running  bool
	packages int
	names    []string

	logger logger.Logger
}

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithAlgorithmRegistry replaces the baseline algorithm registry.
func WithAlgorithmRegistry(r *algorithm.Registry) Option {
	return func(e *Evaluator) {
		if r != nil {
			e.algorithms = r
		}
	}
}

// WithMetricRegistry replaces the built-in metric registry.
func WithMetricRegistry(r *metric.Registry) Option {
	return func(e *Evaluator) {
		if r != nil {
			e.metrics = r
		}
	}
}

// WithOutput sets where progress, summaries and statistics are printed.
func WithOutput(w io.Writer) Option {
	return func(e *Evaluator) {
		if w != nil {
			e.out = w
		}
	}
}

// WithClock sets the clock that names the run.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets a custom logger for the evaluator.
func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEvaluator constructs an evaluator for cfg.
func NewEvaluator(cfg *config.Config, opts ...Option) *Evaluator {
	e := &Evaluator{
		cfg:        cfg,
		algorithms: algorithm.NewRegistry(),
		metrics:    metric.NewRegistry(),
		out:        os.Stdout,
		now:        time.Now,
		runID:      uuid.NewString(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("evaluator")
	}
	e.start = e.now().Format(repository.StartTimeLayout)
	return e
}

// RunID returns the identifier of this run.
func (e *Evaluator) RunID() string { return e.runID }

// Start returns the formatted start time naming the run folder.
func (e *Evaluator) Start() string { return e.start }

// OutputDir returns the run folder.
func (e *Evaluator) OutputDir() string {
	return filepath.Join(e.cfg.OutputDir, e.start)
}

// Rule returns the session rule of the configuration.
func (e *Evaluator) Rule() (session.Rule, error) {
	loc, err := e.cfg.Location()
	if err != nil {
		return session.Rule{}, err
	}
	return session.Rule{
		Inactivity: e.cfg.SessionInactivityThreshold,
		Threshold:  e.cfg.SessionThreshold(),
		Location:   loc,
	}, nil
}

func (e *Evaluator) header() repository.Header {
	return repository.Header{
		ItemsFile:           e.cfg.ItemsFile,
		ClicksFile:          e.cfg.ClicksFile,
		AlgorithmConfig:     e.cfg.AlgorithmConfig,
		MetricsConfig:       e.cfg.MetricsConfig,
		SessionInactivity:   e.cfg.SessionInactivityThreshold,
		SessionThreshold:    e.cfg.SessionThreshold(),
		SessionLengthFilter: e.cfg.SessionLengthFilter,
		SplitThreshold:      e.cfg.SplitThreshold,
	}
}

// Run executes the whole evaluation. Configuration errors abort before any
// data is loaded; a failing algorithm only ends its own runner and is listed
// in the report, in which case the error wraps ErrRunnersFailed.
func (e *Evaluator) Run(ctx context.Context) (*Report, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	rule, err := e.Rule()
	if err != nil {
		return nil, err
	}

	algs, metricDefs, err := e.components()
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	report := &Report{RunID: e.runID, Start: e.start}

	raw, err := e.load(ctx, rule)
	if err != nil {
		return nil, err
	}
	if e.cfg.OutputStats {
		stats := DescribeDataset(raw, rule)
		report.Dataset = &stats
		stats.Render(e.out)
	}

	input, err := e.prepare(ctx, raw, rule)
	if err != nil {
		return nil, err
	}

	runners := make([]*Runner, 0, len(algs))
	store := repository.NewFileStore(e.cfg.OutputDir, e.start, e.header(),
		repository.WithRunID(e.runID))
	report.ResultsPath = store.ResultsPath()
	reporter := progress.NewReporter(len(algs), progress.WithWriter(e.out))
	for _, alg := range algs {
		ms, err := e.metrics.Build(metricDefs, alg.Name())
		if err != nil {
			return nil, err
		}
		runners = append(runners, NewRunner(alg, ms, input, store, reporter))
	}

	report.Results = e.execute(ctx, runners)
	e.printSummary(report.Results)

	if e.cfg.OutputStats {
		report.Matrices = e.significance(ctx, report.Results)
	}

	if failed := report.Failed(); len(failed) > 0 {
		errs := make([]error, 0, len(failed))
		for _, f := range failed {
			errs = append(errs, f.Err)
		}
		return report, fmt.Errorf("%w: %w", ErrRunnersFailed, errors.Join(errs...))
	}
	return report, nil
}

// components reads both component files and instantiates the algorithms.
func (e *Evaluator) components() ([]*algorithm.Algorithm, []component.Definition, error) {
	algDefs, err := component.ReadFile(e.cfg.AlgorithmConfig, AlgorithmTag)
	if err != nil {
		return nil, nil, err
	}
	if len(algDefs) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoAlgorithms, e.cfg.AlgorithmConfig)
	}
	if err := algorithm.CheckNames(algDefs); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrDuplicateAlgorithm, err)
	}
	metricDefs, err := component.ReadFile(e.cfg.MetricsConfig, MetricTag)
	if err != nil {
		return nil, nil, err
	}
	if err := e.metrics.Validate(metricDefs); err != nil {
		return nil, nil, err
	}
	algs, err := e.algorithms.Build(algDefs)
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, len(algs))
	for i, a := range algs {
		names[i] = a.Name()
	}
	e.mu.Lock()
	e.names = names
	e.mu.Unlock()
	return algs, metricDefs, nil
}

// load reads the dataset, deduplicates it when configured and drops short
// sessions.
func (e *Evaluator) load(ctx context.Context, rule session.Rule) (*model.RawData, error) {
	var opts []loader.Option
	opts = append(opts, loader.WithOldFormat(e.cfg.OldFileFormat))
	if e.cfg.Deduplicate {
		opts = append(opts, loader.WithDeduper(dedupe.NewClickDeduper(dedupe.WithWindow(e.cfg.DedupeWindow()))))
	}
	raw, st, err := loader.NewReader(e.cfg.ItemsFile, e.cfg.ClicksFile, opts...).Read(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Info(ctx, "dataset loaded",
		logger.Int("items", st.Items),
		logger.Int("clicks", st.Clicks()),
		logger.Int("duplicates", st.Duplicates),
		logger.Int("unknown_items", st.Unknown))

	if e.cfg.SessionLengthFilter > 0 {
		before := len(raw.Clicks)
		raw.Clicks = session.FilterShortSessions(raw.Clicks, rule, e.cfg.SessionLengthFilter)
		removed := before - len(raw.Clicks)
		metrics.RecordClicksFiltered(removed)
		e.logger.Info(ctx, "short sessions removed",
			logger.Int("removed_clicks", removed),
			logger.Int("removed_percent", removed*100/before),
			logger.Int("clicks", len(raw.Clicks)))
	}
	return raw, nil
}

// prepare splits the data and builds the shared replay input.
func (e *Evaluator) prepare(ctx context.Context, raw *model.RawData, rule session.Rule) (*ReplayInput, error) {
	mode := split.ByEventCount
	if e.cfg.SplitByTime {
		mode = split.ByTime
	}
	splitter, err := split.New(split.WithMode(mode), split.WithThreshold(e.cfg.SplitThreshold))
	if err != nil {
		return nil, err
	}
	data := splitter.Split(raw)
	if len(data.Test) == 0 {
		return nil, ErrNoTestData
	}

	trainItems, trainClicks := model.Partition(data.Training)
	builder := workpackage.New(rule, workpackage.WithLogger(e.logger))
	trainData := builder.TrainingClicks(trainClicks)

	_, testClicks := model.Partition(data.Test)
	oracle := session.NewOracleTracker(rule, testClicks)
	packages := builder.Build(ctx, data.Test, oracle)

	metrics.UpdateWorkPackages(len(packages))
	e.mu.Lock()
	e.packages = len(packages)
	e.mu.Unlock()
	e.logger.Info(ctx, "replay prepared",
		logger.Int("training_items", len(trainItems)),
		logger.Int("training_clicks", len(trainData)),
		logger.Int("work_packages", len(packages)))

	return &ReplayInput{TrainingItems: trainItems, TrainingClicks: trainData, Packages: packages}, nil
}

// execute runs all runners on the bounded pool and waits for every future.
func (e *Evaluator) execute(ctx context.Context, runners []*Runner) []AlgorithmResult {
	pool := worker.NewPool(e.cfg.ThreadCount, worker.WithPoolLogger(e.logger.Named("pool")))
	pool.Start(ctx)

	results := make([]AlgorithmResult, len(runners))
	futures := make([]*worker.Future, len(runners))
	for i, r := range runners {
		results[i] = AlgorithmResult{Name: r.Name(), Metrics: r.Metrics()}
		f, err := pool.Submit(ctx, r)
		if err != nil {
			results[i].Err = fmt.Errorf("%s: %w", r.Name(), err)
			continue
		}
		futures[i] = f
	}

	for i, f := range futures {
		if f == nil {
			continue
		}
		if err := f.Wait(ctx); err != nil {
			results[i].Err = err
			e.logger.Error(ctx, "algorithm failed", logger.String("algorithm", f.Name()), logger.Error(err))
		}
	}

	if err := pool.Shutdown(context.WithoutCancel(ctx)); err != nil {
		e.logger.Warn(ctx, "pool shutdown", logger.Error(err))
	}
	return results
}

// printSummary repeats the run parameters and prints every metric grouped
// by name, in configuration order.
func (e *Evaluator) printSummary(results []AlgorithmResult) {
	fmt.Fprintln(e.out)
	for _, line := range e.header().Lines() {
		if line == "#" {
			continue
		}
		fmt.Fprintln(e.out, line[1:])
	}
	fmt.Fprintln(e.out)

	tw := table.NewWriter()
	tw.SetOutputMirror(e.out)
	tw.AppendHeader(table.Row{"Metric", "Algorithm", "Value"})
	for _, group := range groupByMetric(results) {
		for _, m := range group {
			tw.AppendRow(table.Row{m.Name(), m.Algorithm(), repository.FormatValue(m.Result())})
		}
		tw.AppendSeparator()
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 1, AutoMerge: true}})
	tw.SetStyle(table.StyleLight)
	tw.Render()
}

// groupByMetric lists the metrics of successful algorithms grouped by
// metric name in first-appearance order.
func groupByMetric(results []AlgorithmResult) [][]metric.Metric {
	index := make(map[string]int)
	var groups [][]metric.Metric
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		for _, m := range res.Metrics {
			i, ok := index[m.Name()]
			if !ok {
				i = len(groups)
				index[m.Name()] = i
				groups = append(groups, nil)
			}
			groups[i] = append(groups[i], m)
		}
	}
	return groups
}

// significance tests every testable metric pairwise across algorithms.
func (e *Evaluator) significance(ctx context.Context, results []AlgorithmResult) []stattest.Matrix {
	var series []stattest.Series
	for _, group := range groupByMetric(results) {
		for _, m := range group {
			t, ok := m.(metric.Testable)
			if !ok {
				break
			}
			series = append(series, stattest.Series{Algorithm: m.Algorithm(), Metric: m.Name(), Values: t.Detailed()})
		}
	}
	tester, err := stattest.New(stattest.Kind(e.cfg.StatTest), stattest.WithLogger(e.logger))
	if err != nil {
		e.logger.Error(ctx, "statistical tests skipped", logger.Error(err))
		return nil
	}
	matrices := tester.Execute(ctx, series)
	fmt.Fprintln(e.out)
	fmt.Fprintln(e.out, "---- STATISTICAL RESULTS ----")
	fmt.Fprintln(e.out)
	fmt.Fprint(e.out, stattest.Format(matrices))
	return matrices
}

// GetStats returns evaluator statistics for monitoring.
func (e *Evaluator) GetStats() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return map[string]interface{}{
		"runId":        e.runID,
		"start":        e.start,
		"running":      e.running,
		"threadCount":  e.cfg.ThreadCount,
		"algorithms":   append([]string(nil), e.names...),
		"workPackages": e.packages,
	}
}
