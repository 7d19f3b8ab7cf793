package host

import (
	"context"
	"sync/atomic"

	"github.com/bft-labs/workerservice/pkg/log"
)

// bannerName is the reserved name of the built-in banner service.
const bannerName = "host.banner"

// banner announces the application on start and stop. It is always the
// first service, so its stop messages are the last ones logged.
type banner struct {
	info    AppInfo
	logger  log.Logger
	onStop  func()
	started atomic.Bool
}

func (b *banner) Start(ctx context.Context) error {
	b.logger.Info("Starting " + b.info.Name)
	if err := ctx.Err(); err != nil {
		return err
	}
	b.started.Store(true)
	b.logger.Info(b.info.Name + " " + b.info.Version)
	b.logger.Info(b.info.Name + " Started")
	return nil
}

func (b *banner) Stop(ctx context.Context) error {
	if b.onStop != nil {
		b.onStop()
	}
	if !b.started.Load() {
		return nil
	}
	b.logger.Info("Stopping " + b.info.Name)
	b.logger.Info(b.info.Name + " Stopped")
	return nil
}
