// Command faultfs mounts a pass-through FUSE file system that selectively
// injects faults into the operations it sees, per an INI-style fault
// plan. Grounded on chaos-runner's single-root-command cobra layout
// (cmd/chaos-runner/main.go), collapsed to one command since faultfs has
// no subcommands: it runs one mount for its lifetime.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/faultfs/faultfs/backend"
	"github.com/faultfs/faultfs/config"
	"github.com/faultfs/faultfs/faultengine"
	"github.com/faultfs/faultfs/internal/transport"
	"github.com/faultfs/faultfs/ledger"
	"github.com/faultfs/faultfs/logging"
	"github.com/faultfs/faultfs/oracle"
	"github.com/faultfs/faultfs/shim"
)

var (
	version = "dev"

	flagStorage     string
	flagLog         string
	flagLogLevel    int
	flagConfig      string
	flagMetricsAddr string
)

var rootCmd = &cobra.Command{
	Use:     "faultfs <mountpoint>",
	Short:   "Pass-through FUSE file system with configurable fault injection",
	Args:    cobra.ExactArgs(1),
	Version: version,
	RunE:    run,
}

func init() {
	rootCmd.Flags().StringVar(&flagStorage, "storage", "", "backing storage directory (default \"/var/faultfs-storage\")")
	rootCmd.Flags().StringVar(&flagLog, "log", "", "log file path, or \"stdout\" (default \"stdout\")")
	rootCmd.Flags().IntVar(&flagLogLevel, "loglevel", -1, "0=ERROR 1=WARN 2=INFO 3=DEBUG (default 2)")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to an INI fault-plan config file")
	rootCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on (empty disables)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitErr carries the process exit code spec.md §6 assigns to a failure
// mode alongside the error cobra prints.
type exitErr struct {
	code int
	err  error
}

func (e *exitErr) Error() string { return e.err.Error() }
func (e *exitErr) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var ee *exitErr
	if e, ok := err.(*exitErr); ok {
		ee = e
	}
	if ee != nil {
		return ee.code
	}
	return 1
}

func run(cmd *cobra.Command, args []string) error {
	mountpoint := args[0]

	cfg := config.Defaults()
	cfg.MountPoint = mountpoint
	cfg.ApplyEnv()

	if flagConfig != "" {
		if err := config.Load(flagConfig, cfg); err != nil {
			return &exitErr{code: 2, err: fmt.Errorf("faultfs: %w", err)}
		}
	}

	// CLI flags take precedence over everything else (spec.md §6).
	if flagStorage != "" {
		cfg.StoragePath = flagStorage
	}
	if flagLog != "" {
		cfg.LogFile = flagLog
	}
	if flagLogLevel >= 0 {
		cfg.LogLevel = fmt.Sprintf("%d", flagLogLevel)
	}
	cfg.MountPoint = mountpoint

	logOut, err := openLogOutput(cfg.LogFile)
	if err != nil {
		return &exitErr{code: 1, err: fmt.Errorf("faultfs: opening log file: %w", err)}
	}
	if f, ok := logOut.(*os.File); ok && f != os.Stdout {
		defer f.Close()
	}

	log := logging.New(logging.Config{Level: logging.ParseLevel(cfg.LogLevel), Output: logOut})
	log.Info("starting faultfs", "config", cfg.String())

	be, err := backend.New(cfg.StoragePath)
	if err != nil {
		return &exitErr{code: 3, err: fmt.Errorf("faultfs: %w", err)}
	}

	l := ledger.New()
	if flagMetricsAddr != "" {
		l.EnableMetrics()
	}

	src := oracle.New(newSeed())
	engine := faultengine.New(cfg.Plan, l, src, log)
	fsys := shim.New(be, engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagMetricsAddr != "" {
		go func() {
			if err := l.ServeMetrics(ctx, flagMetricsAddr); err != nil {
				log.Error("metrics server stopped", "error", err.Error())
			}
		}()
	}

	if err := transport.Mount(ctx, mountpoint, fsys, log); err != nil {
		return &exitErr{code: 1, err: fmt.Errorf("faultfs: %w", err)}
	}

	log.Info("unmounted cleanly", "mountpoint", mountpoint)
	return nil
}

func openLogOutput(path string) (io.Writer, error) {
	if path == "" || path == "stdout" {
		return os.Stdout, nil
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// newSeed draws a process-lifetime seed for the oracle's random source
// from the OS's own randomness rather than a fixed constant, so repeated
// mounts don't replay identical fault sequences.
func newSeed() int64 {
	var b [8]byte
	if f, err := os.Open("/dev/urandom"); err == nil {
		f.Read(b[:])
		f.Close()
	}
	var seed int64
	for _, v := range b {
		seed = seed<<8 | int64(v)
	}
	if seed == 0 {
		seed = int64(os.Getpid())
	}
	return seed
}
