package app

import "errors"

// Sentinel error kinds for this package.
var (
	ErrDuplicateAlgorithm = errors.New("duplicate algorithm name")
	ErrNoAlgorithms       = errors.New("no algorithms configured")
	ErrNoTestData         = errors.New("split left no test events")
	ErrRunnersFailed      = errors.New("some algorithms failed")
)
