package synthetic

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned for impossible generator settings.
var ErrInvalidConfig = errors.New("invalid generator config")

// Config holds the shape of a generated dataset.
type Config struct {
	Items      int           // number of items
	Users      int           // number of users
	Sessions   int           // maximum sessions per user
	Publishers int           // number of publishers
	Categories int           // number of categories, 0 leaves items uncategorized
	Start      time.Time     // first publication time
	Span       time.Duration // time covered by the dataset
	Seed       uint64        // same seed, same dataset
	Workers    int           // goroutines generating users
}

// DefaultConfig returns a small dataset spanning two days.
func DefaultConfig() Config {
	return Config{
		Items:      500,
		Users:      2000,
		Sessions:   4,
		Publishers: 2,
		Categories: 10,
		Start:      time.Date(2017, 1, 2, 0, 0, 0, 0, time.Local),
		Span:       48 * time.Hour,
		Seed:       1,
		Workers:    4,
	}
}

func (c Config) validate() error {
	switch {
	case c.Items < 1 || c.Users < 1 || c.Sessions < 1:
		return fmt.Errorf("%w: items, users and sessions must be positive", ErrInvalidConfig)
	case c.Publishers < 1:
		return fmt.Errorf("%w: publishers must be positive", ErrInvalidConfig)
	case c.Span < time.Hour:
		return fmt.Errorf("%w: span must be at least one hour", ErrInvalidConfig)
	}
	return nil
}

// Stats holds generation statistics.
type Stats struct {
	Items     int
	Clicks    int
	Users     int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}
