// Package repository persists evaluation results as file artifacts: the
// shared results file, per-algorithm detailed results for significance
// testing, and merged CSV summaries.
package repository

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/okian/streamrec/internal/domain/metric"
	"github.com/okian/streamrec/internal/domain/stattest"
	"github.com/okian/streamrec/pkg/logger"
	"github.com/okian/streamrec/pkg/metrics"
)

// File name parts of the run artifacts.
const (
	ResultsPrefix  = "tmp_results_"
	ResultsSuffix  = ".txt"
	DetailedPrefix = "stat_results_"
	DetailedSuffix = ".jsonl"
)

// StartTimeLayout formats the run start time used in artifact paths.
const StartTimeLayout = "2006-01-02-03-04-05"

// Header describes the run configuration at the top of the results file.
type Header struct {
	ItemsFile           string
	ClicksFile          string
	AlgorithmConfig     string
	MetricsConfig       string
	SessionInactivity   bool
	SessionThreshold    time.Duration
	SessionLengthFilter int
	SplitThreshold      float64
}

// Lines returns the comment lines of the header.
func (h Header) Lines() []string {
	lines := []string{
		`#Input files: "` + h.ItemsFile + `" & "` + h.ClicksFile + `"`,
		`#Config files: "` + h.AlgorithmConfig + `" & "` + h.MetricsConfig + `"`,
	}
	if h.SessionInactivity {
		lines = append(lines, `#session Time Thresholds: "`+FormatPeriod(h.SessionThreshold)+`"`)
	} else {
		lines = append(lines, "#sessions based on cut off at midnight")
	}
	return append(lines,
		"#Session length filter: "+strconv.Itoa(h.SessionLengthFilter),
		"#Split threshold: "+FormatThreshold(h.SplitThreshold),
		"#",
	)
}

// DetailedRecord is one line of a detailed artifact.
type DetailedRecord struct {
	RunID string `json:"run_id,omitempty"`
	stattest.Series
}

// FileStore appends algorithm results to the run directory. It is shared by
// all runners; writes are serialized.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	start  string
	runID  string
	header Header
	logger logger.Logger
}

// NewFileStore creates a store writing below outputDir/start.
func NewFileStore(outputDir, start string, header Header, opts ...Option) *FileStore {
	s := &FileStore{
		dir:    filepath.Join(outputDir, start),
		start:  start,
		header: header,
		logger: logger.Get().Named("repository"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the run directory.
func (s *FileStore) Dir() string { return s.dir }

// ResultsPath returns the path of the shared results file.
func (s *FileStore) ResultsPath() string {
	return filepath.Join(s.dir, ResultsPrefix+s.start+ResultsSuffix)
}

// DetailedPath returns the path of an algorithm's detailed artifact.
func (s *FileStore) DetailedPath(algorithm string) string {
	return filepath.Join(s.dir, DetailedPrefix+s.start+url.QueryEscape(algorithm)+DetailedSuffix)
}

// ResultLine renders "name;metric;value;...;".
func ResultLine(algorithm string, ms []metric.Metric) string {
	var sb strings.Builder
	sb.WriteString(algorithm)
	sb.WriteString(";")
	for _, m := range ms {
		sb.WriteString(m.Name())
		sb.WriteString(";")
		sb.WriteString(FormatValue(m.Result()))
		sb.WriteString(";")
	}
	return sb.String()
}

// WriteResult appends the algorithm's result line, preceded by the header
// when the file is new, and its testable metrics' per-sample values.
func (s *FileStore) WriteResult(ctx context.Context, algorithm string, ms []metric.Metric) error {
	line := ResultLine(algorithm, ms)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return s.fail(ctx, "mkdir", fmt.Errorf("create %s: %w", s.dir, err))
	}
	if err := s.appendResult(line); err != nil {
		return s.fail(ctx, "write_results", err)
	}
	metrics.RecordResultWritten()
	if err := s.appendDetailed(algorithm, ms); err != nil {
		return s.fail(ctx, "write_detailed", err)
	}
	return nil
}

func (s *FileStore) appendResult(line string) error {
	path := s.ResultsPath()
	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	if os.IsNotExist(statErr) {
		for _, h := range s.header.Lines() {
			sb.WriteString(h)
			sb.WriteString("\n")
		}
	}
	sb.WriteString(line)
	sb.WriteString("\n")
	if _, err := f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) appendDetailed(algorithm string, ms []metric.Metric) error {
	var records []DetailedRecord
	for _, m := range ms {
		t, ok := m.(metric.Testable)
		if !ok {
			continue
		}
		records = append(records, DetailedRecord{
			RunID:  s.runID,
			Series: stattest.Series{Algorithm: algorithm, Metric: m.Name(), Values: t.Detailed()},
		})
	}
	if len(records) == 0 {
		return nil
	}

	path := s.DetailedPath(algorithm)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode %s/%s: %w", algorithm, r.Metric, err)
		}
	}
	return nil
}

func (s *FileStore) fail(ctx context.Context, kind string, err error) error {
	metrics.RecordErrorByComponent("repository", kind)
	s.logger.Error(ctx, "writing results failed", logger.Error(err))
	return err
}
