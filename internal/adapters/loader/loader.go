// Package loader reads and writes the item and click CSV files of a dataset.
package loader

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/streamrec/internal/domain/dedupe"
	"github.com/okian/streamrec/internal/domain/model"
	"github.com/okian/streamrec/pkg/logger"
	"github.com/okian/streamrec/pkg/metrics"
)

// CreatedAtLayout is the layout of an item's publication time.
const CreatedAtLayout = "2006-01-02 15:04:05"

// Header lines written in front of the CSV files.
const (
	ItemsHeader  = "Publisher,CreatedAt,ItemID,URL,Title,Category,Text,Keywords"
	ClicksHeader = "ItemID,UserId,TimeStamp"
)

// Stats counts what happened to the click lines while reading.
type Stats struct {
	Items      int
	ClickLines int
	Unknown    int // clicks on items missing from the item file
	Duplicates int
}

// Clicks returns how many clicks were kept.
func (s Stats) Clicks() int { return s.ClickLines - s.Unknown - s.Duplicates }

// Reader loads a dataset from an item file and a click file.
type Reader struct {
	itemsPath  string
	clicksPath string
	oldFormat  bool
	deduper    dedupe.Deduper
	logger     logger.Logger
}

// NewReader creates a reader for the given files.
func NewReader(itemsPath, clicksPath string, opts ...Option) *Reader {
	r := &Reader{
		itemsPath:  itemsPath,
		clicksPath: clicksPath,
		logger:     logger.Get().Named("loader"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read loads items and clicks. Clicks are returned in time order; ties keep
// their file order.
func (r *Reader) Read(ctx context.Context) (*model.RawData, Stats, error) {
	var st Stats

	items, err := readFile(r.itemsPath, ReadItems)
	if err != nil {
		return nil, st, err
	}
	st.Items = len(items)
	r.logger.Info(ctx, "items loaded", logger.Int("items", len(items)), logger.String("file", r.itemsPath))

	clicks, lines, unknown, err := readClicksFile(ctx, r.clicksPath, items, r.oldFormat)
	if err != nil {
		return nil, st, err
	}
	st.ClickLines = lines
	st.Unknown = unknown
	if unknown > 0 {
		metrics.RecordClicksDropped(unknown)
		r.logger.Warn(ctx, "clicks on unknown items dropped; check the click file format",
			logger.Int("dropped", unknown), logger.Bool("old_format", r.oldFormat))
	}

	sort.SliceStable(clicks, func(i, j int) bool { return clicks[i].Timestamp.Before(clicks[j].Timestamp) })

	if r.deduper != nil {
		clicks, st.Duplicates = dedupe.Filter(ctx, r.deduper, clicks)
		metrics.RecordClicksDuplicate(st.Duplicates)
		r.logger.Info(ctx, "clicks deduplicated", logger.Int("duplicates", st.Duplicates))
	}
	if len(clicks) == 0 {
		return nil, st, fmt.Errorf("%w: %s", ErrNoClicks, r.clicksPath)
	}

	metrics.UpdateDatasetSize(len(items), len(clicks))
	r.logger.Info(ctx, "clicks loaded", logger.Int("clicks", len(clicks)), logger.Int("lines", lines))
	return &model.RawData{Items: items, Clicks: clicks}, st, nil
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	v, err := read(bufio.NewReader(f))
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func readClicksFile(ctx context.Context, path string, items map[int64]*model.Item, old bool) ([]*model.Click, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	clicks, lines, unknown, err := ReadClicks(ctx, bufio.NewReader(f), items, old)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%s: %w", path, err)
	}
	return clicks, lines, unknown, nil
}

func newCSVReader(in io.Reader) *csv.Reader {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return cr
}

// ReadItems parses an item CSV with a header line.
func ReadItems(in io.Reader) (map[int64]*model.Item, error) {
	cr := newCSVReader(in)
	items := make(map[int64]*model.Item)
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedItem, err)
		}
		if first {
			first = false
			continue
		}
		it, err := parseItem(rec)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		items[it.ID] = it
	}
}

func parseItem(rec []string) (*model.Item, error) {
	if len(rec) < 5 {
		return nil, fmt.Errorf("%w: %d fields", ErrMalformedItem, len(rec))
	}
	publisher, err := strconv.Atoi(strings.TrimSpace(rec[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: publisher: %w", ErrMalformedItem, err)
	}
	created, err := time.ParseInLocation(CreatedAtLayout, strings.TrimSpace(rec[1]), time.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: created at: %w", ErrMalformedItem, err)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(rec[2]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: id: %w", ErrMalformedItem, err)
	}
	it := &model.Item{
		ID:        id,
		Publisher: publisher,
		CreatedAt: created,
		URL:       rec[3],
		Title:     rec[4],
	}
	if len(rec) > 5 && rec[5] != "" {
		if it.Category, err = strconv.Atoi(strings.TrimSpace(rec[5])); err != nil {
			return nil, fmt.Errorf("%w: category: %w", ErrMalformedItem, err)
		}
	}
	if len(rec) > 6 {
		it.Text = rec[6]
	}
	if len(rec) > 7 && rec[7] != "" {
		if it.Keywords, err = parseKeywords(rec[7]); err != nil {
			return nil, err
		}
	}
	return it, nil
}

// parseKeywords reads "word-weight#word-weight"; repeated words add up.
func parseKeywords(s string) (map[string]int, error) {
	kw := make(map[string]int)
	for _, pair := range strings.Split(s, "#") {
		word, weight, ok := strings.Cut(pair, "-")
		if !ok {
			return nil, fmt.Errorf("%w: keyword %q", ErrMalformedItem, pair)
		}
		n, err := strconv.Atoi(weight)
		if err != nil {
			return nil, fmt.Errorf("%w: keyword weight %q", ErrMalformedItem, pair)
		}
		kw[word] += n
	}
	return kw, nil
}

// ReadClicks parses a click CSV with a header line. It returns the clicks in
// file order, the number of data lines and how many lines named an unknown
// item.
func ReadClicks(ctx context.Context, in io.Reader, items map[int64]*model.Item, old bool) ([]*model.Click, int, int, error) {
	itemCol, userCol, tsCol := 0, 1, 2
	if old {
		itemCol, userCol, tsCol = 2, 3, 4
	}

	cr := newCSVReader(in)
	var clicks []*model.Click
	lines, unknown := 0, 0
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return clicks, lines, unknown, nil
		}
		if err != nil {
			return nil, 0, 0, fmt.Errorf("%w: %w", ErrMalformedClick, err)
		}
		if first {
			first = false
			continue
		}
		lines++
		if lines%1_000_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, 0, err
			}
			logger.Get().Debug(ctx, "reading clicks", logger.Int("lines", lines))
		}
		if len(rec) <= tsCol {
			return nil, 0, 0, fmt.Errorf("%w: line %d has %d fields", ErrMalformedClick, lines+1, len(rec))
		}
		itemID, err1 := strconv.ParseInt(strings.TrimSpace(rec[itemCol]), 10, 64)
		userID, err2 := strconv.ParseInt(strings.TrimSpace(rec[userCol]), 10, 64)
		ts, err3 := strconv.ParseInt(strings.TrimSpace(rec[tsCol]), 10, 64)
		if err := errors.Join(err1, err2, err3); err != nil {
			return nil, 0, 0, fmt.Errorf("%w: line %d: %w", ErrMalformedClick, lines+1, err)
		}
		it, ok := items[itemID]
		if !ok {
			unknown++
			continue
		}
		clicks = append(clicks, &model.Click{Item: it, UserID: userID, Timestamp: time.UnixMilli(ts)})
	}
}

// WriteClicks writes clicks in the current click format.
func WriteClicks(w io.Writer, clicks []*model.Click) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(ClicksHeader)
	bw.WriteString("\n")
	for _, c := range clicks {
		bw.WriteString(strconv.FormatInt(c.ItemID(), 10))
		bw.WriteString(",")
		bw.WriteString(strconv.FormatInt(c.UserID, 10))
		bw.WriteString(",")
		bw.WriteString(strconv.FormatInt(c.Timestamp.UnixMilli(), 10))
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// WriteItems writes items with all optional columns. Keyword words lose any
// "-" and "#" so that they read back unchanged.
func WriteItems(w io.Writer, items []*model.Item) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(ItemsHeader, ",")); err != nil {
		return err
	}
	for _, it := range items {
		rec := []string{
			strconv.Itoa(it.Publisher),
			it.CreatedAt.In(time.Local).Format(CreatedAtLayout),
			strconv.FormatInt(it.ID, 10),
			it.URL,
			it.Title,
			strconv.Itoa(it.Category),
			it.Text,
			formatKeywords(it.Keywords),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatKeywords(kw map[string]int) string {
	words := make([]string, 0, len(kw))
	for w := range kw {
		words = append(words, w)
	}
	sort.Strings(words)
	clean := strings.NewReplacer("-", "", "#", "")
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, clean.Replace(w)+"-"+strconv.Itoa(kw[w]))
	}
	return strings.Join(parts, "#")
}

// WriteClicksFile writes clicks to path.
func WriteClicksFile(path string, clicks []*model.Click) error {
	return writeFile(path, func(w io.Writer) error { return WriteClicks(w, clicks) })
}

// WriteItemsFile writes items to path.
func WriteItemsFile(path string, items []*model.Item) error {
	return writeFile(path, func(w io.Writer) error { return WriteItems(w, items) })
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
