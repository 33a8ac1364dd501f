package compiler

import (
	"runtime"

	"github.com/tliron/commonlog"
)

// Option configures the compiler.
type Option func(*options)

type options struct {
	perIteration bool
	cacheStatic  bool
	workers      int
	logger       commonlog.Logger
}

func defaultOptions() *options {
	return &options{
		perIteration: true,
		cacheStatic:  true,
		workers:      runtime.GOMAXPROCS(0),
		logger:       commonlog.GetLogger("lowering.compiler"),
	}
}

// WithPerIterationCapture selects whether the variables declared in a loop
// header get a fresh frame per iteration (the default) or one frame shared
// by all iterations.
func WithPerIterationCapture(enabled bool) Option {
	return func(o *options) {
		o.perIteration = enabled
	}
}

// WithCachedStaticLambdas selects whether lambdas that capture nothing are
// materialized once and shared.
func WithCachedStaticLambdas(enabled bool) Option {
	return func(o *options) {
		o.cacheStatic = enabled
	}
}

// WithWorkers bounds the number of methods lowered concurrently. Values
// below one are ignored.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger sets the logger receiving phase and per-method lines. A nil
// logger keeps the default.
func WithLogger(logger commonlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
