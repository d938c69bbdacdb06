package repository

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/okian/streamrec/internal/domain/stattest"
)

// ReadDetailed loads every detailed artifact in dir, in file name order.
func ReadDetailed(dir string) ([]stattest.Series, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), DetailedPrefix) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoArtifacts, dir)
	}
	sort.Strings(names)

	var out []stattest.Series
	for _, name := range names {
		series, err := readDetailedFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, series...)
	}
	return out, nil
}

func readDetailedFile(path string) ([]stattest.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out []stattest.Series
	dec := json.NewDecoder(bufio.NewReader(f))
	for {
		var r DetailedRecord
		if err := dec.Decode(&r); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		out = append(out, r.Series)
	}
}
