package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"go.aimuz.me/speech2text/config"
	"go.aimuz.me/speech2text/internal/app"
	"go.aimuz.me/speech2text/internal/instance"
	"go.aimuz.me/speech2text/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the daemon and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) (code int) {
	fs := flag.NewFlagSet("speech2text", flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if flags.Version {
		fmt.Fprintf(stdout, "speech2text %s (commit %s, built %s)\n", version, commit, date)
		return 0
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintf(stderr, "speech2text: %v\n", err)
		return 1
	}

	if flags.Stop {
		return stop(cfg, stdout, stderr)
	}
	if flags.WriteConfig {
		return saveConfig(cfg, flags.ConfigPath, stdout, stderr)
	}

	// The lock comes first: a second instance must exit before it touches
	// the log file.
	lock, err := instance.Acquire(cfg.LockFile, cfg.PIDFile)
	unguarded := errors.Is(err, instance.ErrUnsupported)
	switch {
	case errors.Is(err, instance.ErrAlreadyRunning):
		fmt.Fprintln(stderr, "speech2text is already running.")
		fmt.Fprintln(stderr, "Stop it with: speech2text -stop")
		fmt.Fprintf(stderr, "Or: kill $(cat %s)\n", cfg.PIDFile)
		return 1
	case err != nil && !unguarded:
		fmt.Fprintf(stderr, "speech2text: acquire instance lock: %v\n", err)
		return 1
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Error("release instance lock", "error", err)
		}
	}()

	closeLog, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		// The log file is optional; keep going with stderr only.
		closeLog, _ = logging.Setup(cfg.LogLevel, "")
		slog.Warn("open log file, logging to stderr only", "path", cfg.LogFile, "error", err)
		cfg.LogFile = ""
	}
	defer closeLog()
	if unguarded {
		slog.Warn("single-instance guard unavailable on this platform")
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("unexpected failure", "panic", r, "stack", string(debug.Stack()))
			if cfg.LogFile != "" {
				fmt.Fprintf(stderr, "speech2text crashed, details in %s\n", cfg.LogFile)
			}
			code = 1
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc := app.New(cfg, version)
	svc.PrintBanner(stderr)

	if err := svc.Init(ctx); err != nil {
		slog.Error("start speech2text", "error", err)
		svc.Shutdown()
		return 1
	}
	defer svc.Shutdown()

	if err := svc.Run(ctx); err != nil {
		slog.Error("run speech2text", "error", err)
		return 1
	}
	return 0
}

func loadConfig(flags *config.Flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.ConfigPath != "" {
		cfg, err = config.LoadFile(flags.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// saveConfig writes the effective configuration, flags applied, to path
// or to the default location.
func saveConfig(cfg *config.Config, path string, stdout, stderr io.Writer) int {
	var err error
	if path != "" {
		err = cfg.SaveFile(path)
	} else {
		path, _ = config.Path()
		err = cfg.Save()
	}
	if err != nil {
		fmt.Fprintf(stderr, "speech2text: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote config to %s\n", path)
	return 0
}

// stop signals the running instance, replacing a separate stop script.
func stop(cfg *config.Config, stdout, stderr io.Writer) int {
	pid, err := instance.Stop(cfg.PIDFile)
	if errors.Is(err, instance.ErrNotRunning) {
		fmt.Fprintln(stderr, "speech2text is not running")
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "speech2text: stop: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "sent SIGTERM to speech2text (pid %d)\n", pid)
	return 0
}
