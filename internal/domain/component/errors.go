package component

import "errors"

// Sentinel errors for component definitions.
var (
	ErrMalformed   = errors.New("malformed component definition")
	ErrMissingType = errors.New("missing component type")
	ErrUnknownType = errors.New("unknown component type")
)
