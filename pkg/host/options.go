package host

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/workerservice/pkg/log"
)

// Option configures optional behavior of a Manager.
type Option func(*options)

type options struct {
	logger      log.Logger
	logOutput   io.Writer
	configDir   string
	environment string
	defaults    map[string]any
	registry    *prometheus.Registry
}

// WithLogger uses logger instead of building one from configuration.
// The host still adds its app, instance_id and environment fields.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogOutput sets where the configured logger writes. Default: os.Stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		o.logOutput = w
	}
}

// WithConfigDir sets the settings directory. An override for config_dir
// on the command line still wins.
func WithConfigDir(dir string) Option {
	return func(o *options) {
		o.configDir = dir
	}
}

// WithEnvironment sets the environment name used to select
// appsettings.{Environment}.
func WithEnvironment(env string) Option {
	return func(o *options) {
		o.environment = env
	}
}

// WithDefaults adds configuration defaults. They take precedence over the
// host's own defaults and are overridden by every other source.
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) {
		if o.defaults == nil {
			o.defaults = make(map[string]any, len(defaults))
		}
		for k, v := range defaults {
			o.defaults[k] = v
		}
	}
}

// WithRegistry sets the Prometheus registry for unit metrics and the
// status server's /metrics endpoint. Default: a new registry per Manager.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}
