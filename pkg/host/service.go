package host

import (
	"context"

	"github.com/bft-labs/workerservice/internal/appinfo"
	"github.com/bft-labs/workerservice/pkg/config"
	"github.com/bft-labs/workerservice/pkg/lifecycle"
	"github.com/bft-labs/workerservice/pkg/log"
	"github.com/bft-labs/workerservice/pkg/metrics"
	"github.com/bft-labs/workerservice/pkg/periodic"
)

// Service is a unit the host starts and stops. Start should return once
// the service is running; background work continues until ctx is done or
// Stop is called. Services implementing io.Closer are closed after every
// service has stopped, in reverse registration order.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Stater is implemented by services that report a lifecycle state.
type Stater interface {
	State() lifecycle.State
}

// AppInfo identifies the running application.
type AppInfo = appinfo.Info

// BuildContext is passed to a Factory when the host is built.
type BuildContext struct {
	// Name is the registered unit name.
	Name string

	// Config yields the current configuration. It reflects reloads when
	// host.watch_config is enabled.
	Config config.Source

	// Logger carries the unit name in a "unit" field.
	Logger log.Logger

	// Metrics receives runtime observations.
	Metrics metrics.Recorder

	// App identifies the running application.
	App AppInfo

	hostLogger log.Logger
}

// Factory creates a Service when the host is built.
type Factory func(bc BuildContext) (Service, error)

// UnitFactory creates a periodic unit when the host is built.
type UnitFactory func(bc BuildContext) (periodic.Unit, error)
