package loader

import "errors"

// Sentinel kinds for dataset reading errors.
var (
	ErrMalformedItem  = errors.New("malformed item line")
	ErrMalformedClick = errors.New("malformed click line")
	ErrNoClicks       = errors.New("click file holds no usable clicks")
)
