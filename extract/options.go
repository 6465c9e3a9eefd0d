package extract

import (
	"github.com/hashicorp/go-hclog"

	"github.com/robert-malhotra/h5cat/container"
	"github.com/robert-malhotra/h5cat/internal/config"
)

// Option configures Extract.
type Option func(*options)

type options struct {
	opener container.Opener
	logger hclog.Logger
	limits config.Limits
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

// WithLogger sets the logger for failures and undecodable attributes.
func WithLogger(l hclog.Logger) Option {
	return func(opts *options) {
		if l != nil {
			opts.logger = l
		}
	}
}

// WithLimits overrides the maximum rank. A zero MaxRank keeps the default.
func WithLimits(l config.Limits) Option {
	return func(opts *options) {
		if l.MaxRank > 0 {
			opts.limits.MaxRank = l.MaxRank
		}
	}
}
