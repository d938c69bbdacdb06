package loader

import (
	"github.com/okian/streamrec/internal/domain/dedupe"
	"github.com/okian/streamrec/pkg/logger"
)

// Option applies a configuration option to the Reader.
type Option func(*Reader)

// WithOldFormat reads clicks from columns 2, 3 and 4 instead of 0, 1 and 2.
func WithOldFormat(old bool) Option {
	return func(r *Reader) {
		r.oldFormat = old
	}
}

// WithDeduper drops clicks the deduper has already seen within its window.
func WithDeduper(d dedupe.Deduper) Option {
	return func(r *Reader) {
		r.deduper = d
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}
