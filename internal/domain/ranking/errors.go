package ranking

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrNotFound     = errors.New("item not ranked")
	ErrInvalidLimit = errors.New("invalid ranking limit")
)
