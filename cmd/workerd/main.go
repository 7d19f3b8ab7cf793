package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/workerservice/internal/appinfo"
	"github.com/bft-labs/workerservice/pkg/host"
)

const longHelp = `Run hosted periodic workers until SIGINT or SIGTERM.

Configuration is read from hostsettings, appsettings and
appsettings.{Environment} (.toml or .json) in the config directory, then
WORKER_* environment variables, then flags and key=value arguments.`

var exampleUsage = strings.TrimSpace(`
  workerd --config-dir ./conf --environment Development
  workerd heartbeat.interval=250ms status.listen=:9090
`)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"config-dir":         "config_dir",
	"environment":        "environment",
	"log-level":          "log.level",
	"log-format":         "log.format",
	"status-listen":      "status.listen",
	"lock-file":          "host.lock_file",
	"watch-config":       "host.watch_config",
	"shutdown-timeout":   "host.shutdown_timeout",
	"heartbeat-interval": "heartbeat.interval",
	"heartbeat-file":     "heartbeat.file",
}

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	root := newRootCmd(host.NewManager())
	root.SetArgs(args)

	err := root.Execute()
	code := exitCode(err)
	if err != nil && code == exitUsage {
		fmt.Fprintln(os.Stderr, "workerd:", err)
	}
	return code
}

func newRootCmd(m *host.Manager) *cobra.Command {
	root := &cobra.Command{
		Use:           "workerd [key=value ...]",
		Short:         "Run hosted periodic workers",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", appinfo.Resolve(nil).Version, runtime.GOOS, runtime.GOARCH),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := overrideArgs(cmd.Flags(), args)
			if err := m.Initialize(overrides); err != nil {
				return err
			}
			if err := m.RegisterPeriodic("heartbeat", newHeartbeat); err != nil {
				return err
			}
			return m.Run()
		},
	}

	f := root.Flags()
	f.String("config-dir", "", "settings directory (default /conf, env WORKER_CONFIG_DIR)")
	f.String("environment", "", "environment name selecting appsettings.{Environment} (default Production)")
	f.String("log-level", "", "minimum log level: debug, info, warn, error, critical")
	f.String("log-format", "", "log format: auto, console or json")
	f.String("status-listen", "", "address for /healthz, /status and /metrics (disabled when empty)")
	f.String("lock-file", "", "refuse to start while another instance holds this file")
	f.Bool("watch-config", false, "reload configuration when settings files change")
	f.Duration("shutdown-timeout", 0, "upper bound for stopping all units")
	f.Duration("heartbeat-interval", 0, "heartbeat cadence (default 1s)")
	f.String("heartbeat-file", "", "file updated on every heartbeat")

	return root
}

// overrideArgs converts explicitly set flags into key=value overrides and
// appends the positional arguments, which take precedence.
func overrideArgs(flags *pflag.FlagSet, args []string) []string {
	var out []string
	flags.Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			out = append(out, key+"="+f.Value.String())
		}
	})
	return append(out, args...)
}

// exitCode maps Run results to process exit codes. Host failures are
// already logged by the manager.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, host.ErrHostBuild), errors.Is(err, host.ErrHostRun):
		return exitFailure
	default:
		return exitUsage
	}
}
