package periodic

import (
	"time"

	"github.com/bft-labs/workerservice/pkg/lifecycle"
	"github.com/bft-labs/workerservice/pkg/log"
	"github.com/bft-labs/workerservice/pkg/metrics"
)

// Option configures optional behavior of a Runtime.
type Option func(*options)

type options struct {
	logger   log.Logger
	recorder metrics.Recorder
	emitter  lifecycle.EventEmitter
	interval time.Duration
}

func defaultOptions() options {
	return options{
		logger:   log.NewNoopLogger(),
		recorder: metrics.Noop{},
		interval: DefaultTickInterval,
	}
}

// WithLogger sets the logger. A "unit" field is added automatically.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithEventEmitter receives every state transition of the runtime.
func WithEventEmitter(e lifecycle.EventEmitter) Option {
	return func(o *options) {
		o.emitter = e
	}
}

// WithTickInterval sets the runtime's cadence. It is ignored when the unit
// implements TickIntervaler.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}
