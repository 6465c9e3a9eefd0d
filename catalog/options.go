package catalog

import (
	"github.com/hashicorp/go-hclog"

	"github.com/robert-malhotra/h5cat/container"
	"github.com/robert-malhotra/h5cat/internal/config"
)

// Option configures Discover.
type Option func(*options)

type options struct {
	opener    container.Opener
	logger    hclog.Logger
	limits    config.Limits
	strict    bool
	recursive bool
}

func defaultOptions() *options {
	return &options{
		opener: container.HDF5{},
		logger: hclog.NewNullLogger(),
		limits: config.Default().Limits,
	}
}

// WithOpener sets how containers are opened.
func WithOpener(o container.Opener) Option {
	return func(opts *options) {
		if o != nil {
			opts.opener = o
		}
	}
}

// WithLogger sets the logger for skipped links and open failures.
func WithLogger(l hclog.Logger) Option {
	return func(opts *options) {
		if l != nil {
			opts.logger = l
		}
	}
}

// WithLimits overrides the capacity and depth bounds. Zero fields keep
// their defaults.
func WithLimits(l config.Limits) Option {
	return func(opts *options) {
		if l.MaxDatasets > 0 {
			opts.limits.MaxDatasets = l.MaxDatasets
		}
		if l.MaxDepth > 0 {
			opts.limits.MaxDepth = l.MaxDepth
		}
	}
}

// WithStrict makes Discover return ErrCapacityExceeded instead of silently
// truncating.
func WithStrict() Option {
	return func(opts *options) {
		opts.strict = true
	}
}

// WithRecursive descends into groups. Nested datasets are named by their
// slash-joined path, e.g. "entry/data/counts".
func WithRecursive() Option {
	return func(opts *options) {
		opts.recursive = true
	}
}
