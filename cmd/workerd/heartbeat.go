package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bft-labs/workerservice/pkg/config"
	"github.com/bft-labs/workerservice/pkg/host"
	"github.com/bft-labs/workerservice/pkg/log"
	"github.com/bft-labs/workerservice/pkg/periodic"
)

// Heartbeat settings.
const (
	keyHeartbeatInterval = "heartbeat.interval"
	keyHeartbeatFile     = "heartbeat.file"

	defaultHeartbeatInterval = time.Second
)

// heartbeat logs liveness at a configurable cadence and optionally writes
// the time of the last beat to a file, for container liveness probes.
type heartbeat struct {
	periodic.Cadence

	cfg    config.Source
	logger log.Logger
	file   string
	beats  atomic.Int64
	now    func() time.Time
}

func newHeartbeat(bc host.BuildContext) (periodic.Unit, error) {
	hb := &heartbeat{
		cfg:    bc.Config,
		logger: bc.Logger,
		file:   bc.Config.Current().String(keyHeartbeatFile, ""),
		now:    time.Now,
	}
	hb.refreshInterval()
	return hb, nil
}

// refreshInterval picks up interval changes after a configuration reload.
func (h *heartbeat) refreshInterval() {
	d := h.cfg.Current().Duration(keyHeartbeatInterval, defaultHeartbeatInterval)
	if d <= 0 {
		d = defaultHeartbeatInterval
	}
	if d != h.TickInterval() {
		h.SetTickInterval(d)
		h.logger.Info("heartbeat interval set", log.Duration("interval", h.TickInterval()))
	}
}

func (h *heartbeat) Start(ctx context.Context) error {
	if h.file == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(h.file), 0o755); err != nil {
		return fmt.Errorf("create heartbeat dir: %w", err)
	}
	return h.write()
}

func (h *heartbeat) Tick(ctx context.Context) error {
	n := h.beats.Add(1)
	h.logger.Debug("heartbeat", log.Int64("beat", n))

	if h.file != "" {
		if err := h.write(); err != nil {
			return err
		}
	}
	h.refreshInterval()
	return nil
}

func (h *heartbeat) Stop(ctx context.Context) error {
	h.logger.Info("heartbeat stopped", log.Int64("beats", h.beats.Load()))
	if h.file == "" {
		return nil
	}
	if err := os.Remove(h.file); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove heartbeat file: %w", err)
	}
	return nil
}

// write replaces the heartbeat file atomically.
func (h *heartbeat) write() error {
	tmp := h.file + ".tmp"
	stamp := h.now().UTC().Format(time.RFC3339Nano) + " " + strconv.FormatInt(h.beats.Load(), 10) + "\n"
	if err := os.WriteFile(tmp, []byte(stamp), 0o644); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	if err := os.Rename(tmp, h.file); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	return nil
}
