package main

import (
	"codeberg.org/miketth/klmd/pkg/config"
	"codeberg.org/miketth/klmd/pkg/driver"
	"codeberg.org/miketth/klmd/pkg/driver/ms1563"
	"codeberg.org/miketth/klmd/pkg/driver/virtual"
	"codeberg.org/miketth/klmd/pkg/klm"
	"codeberg.org/miketth/klmd/pkg/listener"
	"codeberg.org/miketth/klmd/pkg/metrics"
	"codeberg.org/miketth/klmd/pkg/proto"
	"codeberg.org/miketth/klmd/pkg/statestore/file"
	"codeberg.org/miketth/klmd/pkg/statestore/memory"
	"codeberg.org/miketth/klmd/pkg/statestore/sqlite"
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

var backends = []driver.Backend{
	ms1563.Backend,
	virtual.Backend,
}

func main() {
	err := run()
	if err != nil {
		log.Fatalf("error: %+v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.yaml (default: search XDG config dirs)")
	debug := flag.Bool("debug", false, "enable debug logging")
	socketPath := flag.String("socket", "", "override socket.path")
	driverName := flag.String("driver", "", "override device.driver (auto, ms1563, virtual)")
	resetState := flag.Bool("reset-state", false, "forget the persisted lighting state on startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *socketPath != "" {
		cfg.Socket.Path = *socketPath
	}
	if *driverName != "" {
		cfg.Device.Driver = *driverName
	}

	log, err := newLogger(*debug || cfg.Log.Debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)

	drv, name, err := driver.Probe(backends, cfg.Device.Driver, log)
	if err != nil {
		return fmt.Errorf("open keyboard: %w", err)
	}
	defer func() {
		if err := drv.Close(); err != nil {
			log.Warnw("failed to close keyboard", "error", err)
		}
	}()
	log.Infow("using driver", "driver", name, "modes", drv.Modes())

	store, closeStore, err := newStateStore(cfg.State, log)
	if err != nil {
		return fmt.Errorf("create state store: %w", err)
	}
	defer closeStore()

	if *resetState {
		log.Info("clearing persisted state")
		if err := store.ClearState(); err != nil {
			return fmt.Errorf("clear state: %w", err)
		}
	}

	kb := klm.NewKeyboard(recorder.InstrumentDriver(drv), store, log)
	found, err := kb.LoadStateIfExists()
	switch {
	case err != nil:
		log.Warnw("ignoring persisted state", "error", err)
	case found:
		log.Infow("restored lighting state", "mode", kb.State().Mode, "power", kb.State().Power)
	}
	_ = kb.Sync()

	dispatcher := proto.NewDispatcher(kb, log,
		proto.WithHardwareErrors(cfg.Protocol.ReportHardwareErrors),
		proto.WithObserver(recorder),
	)

	ln, err := listener.Listen(cfg.Socket.Path, cfg.Socket.Mode.FileMode(), log)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := listener.NewServer(ln, dispatcher, cfg.Socket.RequestTimeout.Duration(), log)

	log.Info("started klmd")

	errChan := make(chan error, 3)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		err := srv.Serve(ctx)
		if err != nil {
			errChan <- fmt.Errorf("serve: %w", err)
		}
	}()

	go func() {
		defer wg.Done()
		err := systemdNotifyLoop(ctx)
		if err != nil {
			errChan <- fmt.Errorf("systemd notify: %w", err)
		}
	}()

	if cfg.Metrics.Address != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := serveMetrics(ctx, cfg.Metrics.Address, metrics.Handler(reg), log)
			if err != nil {
				errChan <- fmt.Errorf("metrics: %w", err)
			}
		}()
	}

	err = <-errChan
	stop()
	wg.Wait()

	// the serve loop has stopped, nothing else touches the keyboard
	if saveErr := kb.SaveState(); saveErr != nil {
		log.Errorw("failed to persist state on shutdown", "error", saveErr)
	}

	if errors.Is(err, context.Canceled) {
		log.Info("shutting down")
		return nil
	}
	return err
}

func newStateStore(cfg config.StateConfig, log *zap.SugaredLogger) (klm.StateStore, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case config.BackendMemory:
		log.Warn("state is kept in memory only and will not survive a restart")
		return memory.NewStateStore(), noop, nil
	case config.BackendSQLite:
		store, err := sqlite.NewStateStore(cfg.Path, log)
		if err != nil {
			return nil, nil, err
		}
		log.Infow("persisting state", "backend", cfg.Backend, "path", cfg.Path)
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warnw("failed to close state db", "error", err)
			}
		}, nil
	default:
		store, err := file.NewStateStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		log.Infow("persisting state", "backend", config.BackendFile, "path", store.Path())
		return store, noop, nil
	}
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler, log *zap.SugaredLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return ctx.Err()
	}
}

func systemdNotifyLoop(ctx context.Context) error {
	// tell systemd that we're ready
	supported, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		return fmt.Errorf("notify systemd: %w", err)
	}
	if !supported {
		return nil
	}

	_, _ = daemon.SdNotify(false, "STATUS=Serving keyboard lighting requests")

	t, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return fmt.Errorf("check watchdog: %w", err)
	}
	if t == 0 {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
			return ctx.Err()

		case <-time.After(t / 2):
			_, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			if err != nil {
				return fmt.Errorf("notify watchdog: %w", err)
			}
		}
	}
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	loggerConfig := zap.NewDevelopmentConfig()

	loggerConfig.OutputPaths = []string{"stdout"}
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger.Sugar(), nil
}
