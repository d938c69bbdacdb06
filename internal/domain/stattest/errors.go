package stattest

import "errors"

// Sentinel errors for significance tests.
var (
	ErrDimensionMismatch = errors.New("sample sizes differ")
	ErrTooFewSamples     = errors.New("too few samples")
	ErrMissingSeries     = errors.New("no detailed results for algorithm")
	ErrUnknownTest       = errors.New("unknown significance test")
)
