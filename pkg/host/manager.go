package host

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/workerservice/internal/appinfo"
	"github.com/bft-labs/workerservice/internal/statusserver"
	"github.com/bft-labs/workerservice/pkg/config"
	"github.com/bft-labs/workerservice/pkg/lifecycle"
	"github.com/bft-labs/workerservice/pkg/log"
	"github.com/bft-labs/workerservice/pkg/metrics"
	"github.com/bft-labs/workerservice/pkg/periodic"
)

// Configuration keys read by the host.
const (
	KeyShutdownTimeout = "host.shutdown_timeout"
	KeyWatchConfig     = "host.watch_config"
	KeyLockFile        = "host.lock_file"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
	KeyStatusListen    = "status.listen"
)

// Reserved names of built-in services.
const (
	configWatcherName = "host.config-watcher"
	statusServerName  = "host.status-server"
)

func hostDefaults() map[string]any {
	return map[string]any{
		KeyShutdownTimeout: DefaultShutdownTimeout.String(),
		KeyWatchConfig:     false,
		KeyLockFile:        "",
		KeyLogLevel:        "info",
		KeyLogFormat:       log.FormatAuto,
		KeyStatusListen:    "",
	}
}

type registration struct {
	name    string
	factory Factory
}

// scaffold is everything Initialize builds once.
type scaffold struct {
	loader     *config.Loader
	snap       *config.Snapshot
	source     config.Source
	watcher    *config.Watcher
	logger     log.Logger
	info       func() appinfo.Info
	instanceID string
	registry   *prometheus.Registry
	metrics    metrics.Recorder
}

// Manager owns the host for one process. Create it with NewManager.
type Manager struct {
	opts options

	mu            sync.Mutex
	scaffold      *scaffold
	buildCount    int
	registrations []registration
	names         map[string]bool
	runInvoked    bool

	host              atomic.Pointer[Host]
	shutdownRequested atomic.Bool
	shutdownCh        chan struct{}
	shutdownOnce      sync.Once
}

// NewManager creates a Manager. Call Initialize before anything else.
func NewManager(opts ...Option) *Manager {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager{
		opts:       o,
		names:      make(map[string]bool),
		shutdownCh: make(chan struct{}),
	}
}

// Initialize loads configuration, builds the logger and resolves the
// application info. Only the first successful call has any effect; it is
// safe to call concurrently. A failed call may be retried.
func (m *Manager) Initialize(args []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scaffold != nil {
		return nil
	}

	m.buildCount++
	sc, err := m.buildScaffold(args)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	m.scaffold = sc
	for _, name := range []string{bannerName, configWatcherName, statusServerName} {
		m.names[name] = true
	}

	sc.logger.Debug("host initialized",
		log.String("config_dir", sc.snap.Dir()),
		log.Int("config_files", len(sc.snap.Files())),
	)
	return nil
}

func (m *Manager) buildScaffold(args []string) (*scaffold, error) {
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	overrides, err := config.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	defaults := hostDefaults()
	for k, v := range m.opts.defaults {
		defaults[k] = v
	}

	loader := &config.Loader{
		Dir:         m.opts.configDir,
		Environment: m.opts.environment,
		Defaults:    defaults,
		Overrides:   overrides,
	}
	snap, err := loader.Load()
	if err != nil {
		return nil, err
	}

	info := appinfo.Lazy(snap)
	instanceID := uuid.NewString()

	base := m.opts.logger
	if base == nil {
		zl, err := log.New(log.Options{
			Level:  snap.String(KeyLogLevel, "info"),
			Format: snap.String(KeyLogFormat, log.FormatAuto),
			Output: m.opts.logOutput,
		})
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
		base = zl
	}
	logger := base.With(
		log.String("app", info().Name),
		log.String("instance_id", instanceID),
		log.String("environment", snap.Environment()),
	)

	registry := m.opts.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	sc := &scaffold{
		loader:     loader,
		snap:       snap,
		source:     config.Static(snap),
		logger:     logger,
		info:       info,
		instanceID: instanceID,
		registry:   registry,
		metrics:    metrics.NewPrometheus(registry),
	}
	if snap.Bool(KeyWatchConfig, false) {
		sc.watcher = config.NewWatcher(loader, snap, logger)
		sc.source = sc.watcher
	}
	return sc, nil
}

// RegisterUnit adds a service built by factory when Run builds the host.
// Services start in parallel and stop in reverse registration order.
func (m *Manager) RegisterUnit(name string, factory Factory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scaffold == nil {
		return ErrNotInitialized
	}
	if m.runInvoked {
		return ErrAlreadyRun
	}

	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return ErrInvalidUnit
	}
	if m.names[name] {
		return fmt.Errorf("%w: %s", ErrDuplicateUnit, name)
	}

	m.names[name] = true
	m.registrations = append(m.registrations, registration{name: name, factory: factory})
	return nil
}

// RegisterPeriodic registers a unit driven by a periodic.Runtime. The
// runtime logs through the host logger and reports to the host metrics.
// A positive units.{name}.tick_interval setting overrides the runtime's
// own cadence.
func (m *Manager) RegisterPeriodic(name string, factory UnitFactory, opts ...periodic.Option) error {
	if factory == nil {
		return m.RegisterUnit(name, nil)
	}
	return m.RegisterUnit(name, func(bc BuildContext) (Service, error) {
		unit, err := factory(bc)
		if err != nil {
			return nil, err
		}
		if unit == nil {
			return nil, fmt.Errorf("%w: factory for %s returned nil", ErrInvalidUnit, bc.Name)
		}

		all := []periodic.Option{
			periodic.WithLogger(bc.hostLogger),
			periodic.WithRecorder(bc.Metrics),
		}
		all = append(all, opts...)
		if d := bc.Config.Current().Duration("units."+bc.Name+".tick_interval", 0); d > 0 {
			all = append(all, periodic.WithTickInterval(d))
		}
		return periodic.New(bc.Name, unit, all...), nil
	})
}

// Run builds the host, starts every unit and blocks until SIGINT, SIGTERM
// or Shutdown. It returns ErrNotInitialized or ErrAlreadyRun on misuse,
// a *HostError when the host fails, and nil after a graceful shutdown.
func (m *Manager) Run() error {
	sc, regs, err := m.claimRun()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		// Interrupt signal sent from terminal
		os.Interrupt,
		// Termination signal sent from Kubernetes or other orchestrators
		syscall.SIGTERM,
	)
	defer stop()

	return m.run(ctx, sc, regs)
}

// RunContext is Run with cancellation of ctx in place of the signals.
func (m *Manager) RunContext(ctx context.Context) error {
	sc, regs, err := m.claimRun()
	if err != nil {
		return err
	}
	return m.run(ctx, sc, regs)
}

func (m *Manager) claimRun() (*scaffold, []registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scaffold == nil {
		return nil, nil, ErrNotInitialized
	}
	if m.runInvoked {
		return nil, nil, ErrAlreadyRun
	}
	m.runInvoked = true
	return m.scaffold, append([]registration(nil), m.registrations...), nil
}

func (m *Manager) run(ctx context.Context, sc *scaffold, regs []registration) (err error) {
	logger := sc.logger
	defer func() {
		if r := recover(); r != nil {
			err = &HostError{Phase: PhaseRun, Err: fmt.Errorf("panic: %v", r)}
			logger.Critical("host terminated unexpectedly", log.Err(err))
		}
	}()

	h, err := m.build(sc, regs)
	if err != nil {
		herr := &HostError{Phase: PhaseBuild, Err: err}
		logger.Critical("host terminated unexpectedly", log.Err(herr))
		return herr
	}
	m.host.Store(h)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.shutdownCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	if err := h.Start(runCtx); err != nil {
		if !periodic.IsCancellation(runCtx, err) {
			herr := &HostError{Phase: PhaseRun, Err: err}
			logger.Critical("host terminated unexpectedly", log.Err(herr))
			m.teardown(h)
			return herr
		}
		logger.Info("startup interrupted by shutdown request")
	} else {
		<-runCtx.Done()
	}

	m.shutdownRequested.Store(true)
	logger.Info("shutdown requested")
	m.teardown(h)
	return nil
}

// teardown stops and disposes h. Stop failures are already logged.
func (m *Manager) teardown(h *Host) {
	m.shutdownRequested.Store(true)
	_ = h.Stop()
	h.Dispose()
}

// build creates every service. On failure the partially built host is
// disposed.
func (m *Manager) build(sc *scaffold, regs []registration) (*Host, error) {
	snap := sc.snap
	h := newHost(sc.logger, snap.Duration(KeyShutdownTimeout, DefaultShutdownTimeout))
	built := false
	defer func() {
		if !built {
			h.Dispose()
		}
	}()

	if path := snap.String(KeyLockFile, ""); path != "" {
		unlock, err := acquireLock(path)
		if err != nil {
			return nil, err
		}
		h.addCloser("host.lock", unlock)
	}

	info := sc.info()
	h.add(bannerName, &banner{
		info:   info,
		logger: sc.logger,
		onStop: func() { m.shutdownRequested.Store(true) },
	}, true)

	if sc.watcher != nil {
		h.add(configWatcherName, sc.watcher, true)
	}

	if addr := snap.String(KeyStatusListen, ""); addr != "" {
		h.add(statusServerName, statusserver.New(
			statusserver.Config{Addr: addr},
			info,
			statusUnits(h),
			sc.registry,
			sc.logger,
		), true)
	}

	for _, reg := range regs {
		bc := BuildContext{
			Name:       reg.name,
			Config:     sc.source,
			Logger:     sc.logger.With(log.String("unit", reg.name)),
			Metrics:    sc.metrics,
			App:        info,
			hostLogger: sc.logger,
		}
		svc, err := buildSafe(reg.factory, bc)
		if err != nil {
			return nil, fmt.Errorf("build unit %s: %w", reg.name, err)
		}
		if svc == nil {
			return nil, fmt.Errorf("build unit %s: %w: factory returned nil", reg.name, ErrInvalidUnit)
		}
		h.add(reg.name, svc, false)
	}

	built = true
	sc.logger.Debug("host built", log.Int("services", len(h.entries)))
	return h, nil
}

func buildSafe(factory Factory, bc BuildContext) (svc Service, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in factory: %v", r)
		}
	}()
	return factory(bc)
}

func statusUnits(h *Host) statusserver.StatusFunc {
	return func() []statusserver.UnitStatus {
		units := h.Units()
		out := make([]statusserver.UnitStatus, len(units))
		for i, u := range units {
			out[i] = statusserver.UnitStatus{Name: u.Name, State: u.State}
		}
		return out
	}
}

// Shutdown requests termination, with the same effect as SIGTERM. It may
// be called before Run, in which case Run stops as soon as it has started.
func (m *Manager) Shutdown() {
	m.shutdownRequested.Store(true)
	m.shutdownOnce.Do(func() { close(m.shutdownCh) })
}

// ShutdownRequested reports whether termination has begun. Once true it
// stays true.
func (m *Manager) ShutdownRequested() bool {
	return m.shutdownRequested.Load()
}

// Initialized reports whether Initialize has succeeded.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scaffold != nil
}

// BuildCount returns how many times Initialize built the scaffold.
func (m *Manager) BuildCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buildCount
}

// Config returns the current configuration, or nil before Initialize.
func (m *Manager) Config() *config.Snapshot {
	sc := m.current()
	if sc == nil {
		return nil
	}
	return sc.source.Current()
}

// Logger returns the host logger, or a no-op logger before Initialize.
func (m *Manager) Logger() log.Logger {
	sc := m.current()
	if sc == nil {
		return log.NewNoopLogger()
	}
	return sc.logger
}

// AppInfo returns the application info, or the zero value before Initialize.
func (m *Manager) AppInfo() AppInfo {
	sc := m.current()
	if sc == nil {
		return AppInfo{}
	}
	return sc.info()
}

// InstanceID returns the id attached to every log entry of this process.
func (m *Manager) InstanceID() string {
	sc := m.current()
	if sc == nil {
		return ""
	}
	return sc.instanceID
}

// Units returns the state of every registered unit once Run has built
// the host, and nil before.
func (m *Manager) Units() []UnitStatus {
	h := m.host.Load()
	if h == nil {
		return nil
	}
	return h.Units()
}

// Registry returns the Prometheus registry used for unit metrics.
func (m *Manager) Registry() *prometheus.Registry {
	sc := m.current()
	if sc == nil {
		return nil
	}
	return sc.registry
}

func (m *Manager) current() *scaffold {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scaffold
}

// validateModuleVersions checks that all module versions are compatible.
func validateModuleVersions() error {
	modules := map[string]struct {
		version    string
		minVersion string
	}{
		"log":       {log.Version, log.MinCompatibleVersion},
		"lifecycle": {lifecycle.Version, lifecycle.MinCompatibleVersion},
		"config":    {config.Version, config.MinCompatibleVersion},
		"periodic":  {periodic.Version, periodic.MinCompatibleVersion},
		"host":      {Version, MinCompatibleVersion},
	}

	for name, mod := range modules {
		if !appinfo.Compatible(mod.version, mod.minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, mod.version, mod.minVersion)
		}
	}
	return nil
}
