package repository

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// NoPublisher is the publisher key used when no pattern is given.
const NoPublisher = -1

// mergedResults maps publisher -> metric -> algorithm -> value, remembering
// first-appearance order of each key.
type mergedResults struct {
	publishers []int
	metrics    []string
	algorithms []string
	values     map[int]map[string]map[string]string

	seenMetric map[string]bool
	seenAlg    map[string]bool
}

func newMergedResults() *mergedResults {
	return &mergedResults{
		values:     make(map[int]map[string]map[string]string),
		seenMetric: make(map[string]bool),
		seenAlg:    make(map[string]bool),
	}
}

func (m *mergedResults) add(publisher int, metric, algorithm, value string) {
	byMetric, ok := m.values[publisher]
	if !ok {
		byMetric = make(map[string]map[string]string)
		m.values[publisher] = byMetric
		m.publishers = append(m.publishers, publisher)
	}
	byAlg, ok := byMetric[metric]
	if !ok {
		byAlg = make(map[string]string)
		byMetric[metric] = byAlg
	}
	byAlg[algorithm] = value
	if !m.seenMetric[metric] {
		m.seenMetric[metric] = true
		m.metrics = append(m.metrics, metric)
	}
	if !m.seenAlg[algorithm] {
		m.seenAlg[algorithm] = true
		m.algorithms = append(m.algorithms, algorithm)
	}
}

// MergeResults combines results files into one CSV table: a publisher row,
// a metric row, then one row per algorithm with "n/a" for missing values.
// When publisher is set, its first group is parsed from each file's
// "#Input files:" line.
func MergeResults(paths []string, publisher *regexp.Regexp, w io.Writer) error {
	merged := newMergedResults()
	for _, path := range paths {
		if err := mergeFile(path, publisher, merged); err != nil {
			return err
		}
	}
	return merged.write(w)
}

// MergeResultFiles merges paths into the CSV file out.
func MergeResultFiles(paths []string, publisher *regexp.Regexp, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := MergeResults(paths, publisher, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func mergeFile(path string, pattern *regexp.Regexp, merged *mergedResults) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	publisher := NoPublisher
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(line, "#") {
			if pattern != nil && strings.HasPrefix(line, "#Input files: ") {
				p, err := parsePublisher(pattern, line)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				publisher = p
			}
			continue
		}
		if line == "" {
			continue
		}
		fields := strings.Split(strings.TrimSuffix(line, ";"), ";")
		if len(fields)%2 != 1 {
			return fmt.Errorf("%w in %s: %q", ErrMalformedLine, path, line)
		}
		for i := 1; i+1 < len(fields); i += 2 {
			merged.add(publisher, fields[i], fields[0], strings.TrimSpace(fields[i+1]))
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func parsePublisher(pattern *regexp.Regexp, line string) (int, error) {
	match := pattern.FindStringSubmatch(line)
	if len(match) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrPublisherMatch, line)
	}
	p, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrPublisherMatch, match[1])
	}
	return p, nil
}

func (m *mergedResults) write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	bw.WriteString(";")
	for range m.metrics {
		for _, p := range m.publishers {
			bw.WriteString(strconv.Itoa(p))
			bw.WriteString(";")
		}
	}
	bw.WriteString("\n;")
	for _, metric := range m.metrics {
		for range m.publishers {
			bw.WriteString(metric)
			bw.WriteString(";")
		}
	}
	bw.WriteString("\n")

	for _, alg := range m.algorithms {
		bw.WriteString(alg)
		bw.WriteString(";")
		for _, metric := range m.metrics {
			for _, p := range m.publishers {
				v, ok := m.values[p][metric][alg]
				if !ok {
					v = "n/a"
				}
				bw.WriteString(v)
				bw.WriteString(";")
			}
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}
