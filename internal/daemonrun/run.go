// Package daemonrun hosts the foreground daemon process: configuration and
// .env loading, logger setup, the pid file, the IPC socket and signal
// handling around a daemon.Daemon.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"mangawatch/internal/config"
	"mangawatch/internal/daemon"
	"mangawatch/internal/ipc"
	"mangawatch/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	// Once runs a single reconciliation cycle and exits instead of polling.
	Once bool
}

// loadDotEnv is swapped in tests.
var loadDotEnv = func(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, godotenv.Load(path)
}

// LoadConfig reads the configuration, then the .env file in the state
// directory. When a .env file exists the configuration is read again so its
// variables reach the environment fallbacks. Variables already set in the
// process environment win over .env entries.
func LoadConfig(path string) (*config.Config, error) {
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	loaded, err := loadDotEnv(cfg.EnvFilePath())
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.EnvFilePath(), err)
	}
	if !loaded {
		return cfg, nil
	}
	cfg, _, _, err = config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// PIDPath returns the pid file written while the daemon runs.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, "mangawatch.pid")
}

// Run starts the mangawatch daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logCfg := *cfg
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		logCfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(&logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "create daemon", "daemon_init_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the watch list file and history database paths"))
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if opts.Once {
		return runOnce(signalCtx, d, logger)
	}

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger, ipc.WithStopHandler(cancel))
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("mangawatch daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("socket", cfg.SocketPath()),
		logging.String("watchlist", cfg.Paths.WatchlistFile),
	)

	<-signalCtx.Done()
	logger.Info("mangawatch daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func runOnce(ctx context.Context, d *daemon.Daemon, logger *slog.Logger) error {
	cycle, err := d.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation cycle: %w", err)
	}
	summary := cycle.Summarize()
	logger.Info("single cycle finished",
		logging.String(logging.FieldEventType, "single_cycle_finished"),
		logging.Int("checked", summary.Checked),
		logging.Int("updates", summary.Updates),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
	)
	if summary.Failed > 0 {
		return fmt.Errorf("%d series could not be saved", summary.Failed)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
