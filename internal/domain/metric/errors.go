package metric

import "errors"

// Sentinel errors for metric evaluation and construction.
var (
	ErrDuplicateRecommendation = errors.New("recommendation list contains duplicate items")
	ErrInvalidType             = errors.New("invalid metric parameter")
)
