package repository

import "errors"

// Sentinel kinds for result artifact errors.
var (
	ErrNoArtifacts    = errors.New("no detailed result artifacts found")
	ErrPublisherMatch = errors.New("publisher pattern did not match")
	ErrMalformedLine  = errors.New("malformed result line")
)
