// Package synthetic generates click-stream datasets with popularity skew
// and session structure for smoke runs of the evaluation.
package synthetic

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okian/streamrec/internal/domain/model"
	"github.com/okian/streamrec/pkg/logger"
)

// Constants for session generation.
const (
	maxSessionClicks = 6
	minClickGap      = 30 * time.Second
	maxClickGap      = 5 * time.Minute
	popularitySkew   = 2.5 // higher values favour fewer items
	publishShare     = 0.8 // items are published within this share of the span
)

// Generate creates a dataset. Each user is generated from its own random
// stream, so the result only depends on cfg and not on the worker count.
func Generate(ctx context.Context, cfg Config) (*model.RawData, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger.Get().Info(ctx, "generating dataset",
		logger.Int("items", cfg.Items), logger.Int("users", cfg.Users), logger.Int("workers", cfg.Workers))

	items := generateItems(cfg)

	type userResult struct {
		index  int
		clicks []*model.Click
		err    error
	}

	workerCount := max(1, min(cfg.Workers, cfg.Users))
	usersPerWorker := cfg.Users / workerCount
	resultChan := make(chan userResult, cfg.Users)

	for worker := 0; worker < workerCount; worker++ {
		start := worker * usersPerWorker
		end := start + usersPerWorker
		if worker == workerCount-1 {
			end = cfg.Users // Last worker gets remaining users
		}

		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- userResult{index: i, err: ctx.Err()}
					return
				default:
					resultChan <- userResult{index: i, clicks: generateUser(cfg, items, i)}
				}
			}
		}(start, end)
	}

	perUser := make([][]*model.Click, cfg.Users)
	for i := 0; i < cfg.Users; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during generation: %w", ctx.Err())
		case res := <-resultChan:
			if res.err != nil {
				return nil, fmt.Errorf("failed to generate user %d: %w", res.index, res.err)
			}
			perUser[res.index] = res.clicks
		}
	}

	var clicks []*model.Click
	for _, uc := range perUser {
		clicks = append(clicks, uc...)
	}
	sort.SliceStable(clicks, func(i, j int) bool { return clicks[i].Timestamp.Before(clicks[j].Timestamp) })

	byID := make(map[int64]*model.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	logger.Get().Info(ctx, "generated dataset", logger.Int("items", len(items)), logger.Int("clicks", len(clicks)))
	return &model.RawData{Items: byID, Clicks: clicks}, nil
}

// generateItems publishes items at increasing times, truncated to seconds.
func generateItems(cfg Config) []*model.Item {
	rng := rand.New(rand.NewPCG(cfg.Seed, math.MaxUint64))
	window := time.Duration(float64(cfg.Span) * publishShare)
	items := make([]*model.Item, cfg.Items)
	for i := range items {
		offset := time.Duration(float64(window) * float64(i) / float64(cfg.Items))
		it := &model.Item{
			ID:        int64(i + 1),
			Publisher: rng.IntN(cfg.Publishers) + 1,
			CreatedAt: cfg.Start.Add(offset).Truncate(time.Second),
			URL:       "https://example.org/" + uuid.NewString(),
			Title:     "Item " + fmt.Sprint(i+1),
		}
		if cfg.Categories > 0 {
			it.Category = rng.IntN(cfg.Categories) + 1
		}
		items[i] = it
	}
	return items
}

// generateUser draws sessions at random times; every click picks an item
// already published, newer and lower-ranked items being more likely.
func generateUser(cfg Config, items []*model.Item, index int) []*model.Click {
	rng := rand.New(rand.NewPCG(cfg.Seed, uint64(index)))
	userID := int64(index + 1)
	sessions := rng.IntN(cfg.Sessions) + 1

	var clicks []*model.Click
	for s := 0; s < sessions; s++ {
		t := cfg.Start.Add(time.Duration(rng.Int64N(int64(cfg.Span))))
		n := rng.IntN(maxSessionClicks) + 1
		for c := 0; c < n; c++ {
			published := sort.Search(len(items), func(i int) bool { return items[i].CreatedAt.After(t) })
			if published == 0 {
				break
			}
			pick := int(math.Pow(rng.Float64(), popularitySkew) * float64(published))
			clicks = append(clicks, &model.Click{
				Item:      items[published-1-pick],
				UserID:    userID,
				Timestamp: t.Truncate(time.Millisecond),
			})
			t = t.Add(minClickGap + time.Duration(rng.Int64N(int64(maxClickGap-minClickGap))))
		}
	}
	return clicks
}
