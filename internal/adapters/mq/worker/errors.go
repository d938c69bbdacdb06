package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrStopped   = errors.New("worker pool stopped")
	ErrQueueFull = errors.New("worker queue full")
	ErrPanic     = errors.New("task panicked")
)
