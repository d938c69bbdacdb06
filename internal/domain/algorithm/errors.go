package algorithm

import "errors"

// Sentinel errors for algorithm construction.
var (
	ErrDuplicateName = errors.New("duplicate algorithm name")
	ErrInvalidParam  = errors.New("invalid algorithm parameter")
)
