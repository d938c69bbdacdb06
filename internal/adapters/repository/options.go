package repository

import (
	"github.com/okian/streamrec/pkg/logger"
)

// Option applies a configuration option to the FileStore.
type Option func(*FileStore)

// WithRunID tags detailed artifacts with a run identifier.
func WithRunID(id string) Option {
	return func(s *FileStore) {
		s.runID = id
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}
