package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/1broseidon/winrestore/internal/config"
	"github.com/1broseidon/winrestore/internal/daemon"
	"github.com/1broseidon/winrestore/internal/hotkeys"
	"github.com/1broseidon/winrestore/internal/ipc"
	"github.com/1broseidon/winrestore/internal/metrics"
	"github.com/1broseidon/winrestore/internal/platform"
)

const shutdownTimeout = 3 * time.Second

var errEventLoopExited = errors.New("X11 event loop exited")

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path (default: ~/.config/winrestore/config.yaml)")
	dryRun := fs.Bool("dry-run", false, "Log restores instead of moving windows (until the next reload)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winrestore daemon [--config PATH] [--dry-run]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run the layout daemon in the foreground.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	configPath := *path
	if configPath == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		configPath = p
	}
	res, err := config.LoadFromPath(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	cfg := res.Config
	if *dryRun {
		cfg.DryRun = true
	}

	level := new(slog.LevelVar)
	level.Set(cfg.SlogLevel())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	if res.File != "" {
		logger.Info("configuration loaded", "file", res.File)
	} else {
		logger.Info("no configuration file, using defaults", "path", configPath)
	}

	backend, err := platform.NewLinuxBackendFromDisplay(cfg.Display)
	if err != nil {
		logger.Error("failed to connect to display", "error", err)
		return 1
	}
	defer backend.Disconnect()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	startCtx, cancelStart := context.WithTimeout(ctx, cfg.EventTimeout)
	d, err := daemon.New(startCtx, backend, daemon.Options{
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     logger,
		Level:      level,
		Recorder:   m,
		SelfPID:    os.Getpid(),
	})
	cancelStart()
	if err != nil {
		logger.Error("failed to start layout engine", "error", err)
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		d.Close(closeCtx)
	}()
	if err := d.Start(); err != nil {
		logger.Error("failed to subscribe to window system events", "error", err)
		return 1
	}

	if cfg.RestoreHotkey != "" {
		h := hotkeys.NewHandler(backend, logger.With("component", "hotkeys"))
		if err := h.RegisterRestore(cfg.RestoreHotkey, d); err != nil {
			logger.Warn("restore hotkey not available", "error", err)
		} else {
			logger.Info("restore hotkey registered", "key", cfg.RestoreHotkey)
		}
	}

	ipcServer, err := ipc.NewServer("", d, logger.With("component", "ipc"))
	if err != nil {
		logger.Error("failed to create IPC server", "error", err)
		return 1
	}
	if err := ipcServer.Start(); err != nil {
		logger.Error("failed to start IPC server", "error", err)
		return 1
	}
	defer ipcServer.Stop()

	g, gctx := errgroup.WithContext(ctx)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		logger.Debug("entering X11 event loop")
		backend.EventLoop()
	}()
	g.Go(func() error {
		select {
		case <-loopDone:
			return errEventLoopExited
		case <-gctx.Done():
			backend.Quit()
			// The loop only notices Quit on its next event.
			select {
			case <-loopDone:
			case <-time.After(shutdownTimeout):
				logger.Debug("event loop still blocked, disconnecting")
			}
			return nil
		}
	})

	reconciler := daemon.NewReconciler(daemon.ReconcilerConfig{
		Interval: d.PollInterval(),
		Logger:   logger.With("component", "reconciler"),
	}, d.Tick)
	if d.PollInterval() > 0 {
		g.Go(func() error {
			reconciler.Run(gctx)
			return nil
		})
	}

	reload := func(reason string) {
		if err := d.Reload(); err != nil {
			logger.Warn("config reload failed, keeping previous settings", "reason", reason, "error", err)
			return
		}
		logger.Info("config reloaded", "reason", reason)
		// Pick up a signature mode or display change right away.
		reconciler.ReconcileNow(gctx)
	}

	watcher := config.NewWatcher(configPath, logger.With("component", "config"), func() { reload("file changed") })
	g.Go(func() error {
		if err := watcher.Run(gctx); err != nil {
			logger.Warn("config watcher disabled", "error", err)
		}
		return nil
	})

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				reload("SIGHUP")
			}
		}
	})

	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.MetricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.MetricsListen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("winrestore daemon started", "socket", ipcServer.SocketPath(), "pid", os.Getpid())
	err = g.Wait()
	logger.Info("shutting down winrestore daemon")
	if err != nil {
		logger.Error("daemon stopped", "error", err)
		return 1
	}
	return 0
}
