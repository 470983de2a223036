package codec

import (
	"go.uber.org/zap"

	"github.com/ssargent/recordstore/pkg/metrics"
)

// DefaultMaxDepth bounds nested record recursion
const DefaultMaxDepth = 16

type options struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	maxDepth int
	sync     bool
}

// Option configures encoding and decoding
type Option func(*options)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the collectors updated while encoding and decoding
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithMaxDepth bounds how many schema levels a record may span
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		if depth > 0 {
			o.maxDepth = depth
		}
	}
}

// WithSync fsyncs written files before Encode returns
func WithSync(sync bool) Option {
	return func(o *options) {
		o.sync = sync
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   zap.NewNop(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
