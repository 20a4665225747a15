package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/five82/shopfront/internal/cartapi"
	"github.com/five82/shopfront/internal/cartsync"
	"github.com/five82/shopfront/internal/cartview"
	"github.com/five82/shopfront/internal/config"
	"github.com/five82/shopfront/internal/connectivity"
	"github.com/five82/shopfront/internal/events"
	"github.com/five82/shopfront/internal/pending"
	"github.com/five82/shopfront/internal/report"
	"github.com/five82/shopfront/internal/storage"
	"github.com/five82/shopfront/internal/toast"
)

// Runtime holds the wired collaborators shared by the TUI and the CLI
// commands.
type Runtime struct {
	Config  config.Config
	Logger  *logrus.Logger
	Store   *storage.Store
	Bus     *events.Bus
	Monitor *connectivity.Monitor
	Queue   *pending.Queue
	Client  *cartapi.Client
	Sync    *cartsync.Synchronizer
	View    *cartview.Store
	Toasts  *toast.Center

	offline bool
	closers []io.Closer
}

// BuildOptions tune Build.
type BuildOptions struct {
	// Offline starts disconnected and never probes the backend.
	Offline bool
	// LogFallback receives logs when no log file is configured. Nil discards.
	LogFallback io.Writer
}

// Build wires the synchronizer stack from cfg. The caller must Close the
// runtime.
func Build(cfg config.Config, opts BuildOptions) (*Runtime, error) {
	rt := &Runtime{Config: cfg, offline: opts.Offline}

	logger, logFile, err := newLogger(cfg.Log, opts.LogFallback)
	if err != nil {
		return nil, err
	}
	rt.Logger = logger
	if logFile != nil {
		rt.closers = append(rt.closers, logFile)
	}
	reporter := report.NewLogrus(logger)

	medium, closer := openMedium(cfg.Storage, logger)
	if closer != nil {
		rt.closers = append(rt.closers, closer)
	}
	rt.Store = storage.New(medium, cfg.Storage.Namespace, reporter)
	rt.Bus = events.New(reporter)
	rt.Monitor = connectivity.NewMonitor(!opts.Offline, rt.Bus)
	rt.Queue = pending.New(pending.Options{
		Store:      rt.Store,
		Bus:        rt.Bus,
		Reporter:   reporter,
		MaxRetries: cfg.Sync.MaxRetries,
	})

	rt.Client, err = cartapi.NewClient(cfg.API.BaseURL,
		cartapi.WithTimeout(cfg.API.RequestTimeout),
		cartapi.WithLogger(logger),
	)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("init cart client: %w", err)
	}

	rt.Sync, err = cartsync.New(cartsync.Deps{
		API:      rt.Client,
		Store:    rt.Store,
		Bus:      rt.Bus,
		Queue:    rt.Queue,
		Monitor:  rt.Monitor,
		Reporter: reporter,
		Logger:   logger,
	})
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("init synchronizer: %w", err)
	}

	rt.View = cartview.NewStore(rt.Sync.LocalItems(), rt.Monitor.Online())
	rt.Toasts = toast.NewCenter(0, nil)
	return rt, nil
}

// Start attaches the background behaviour: view binding, replay on
// reconnect, the connectivity prober and the refresh poller. The returned
// func blocks until the goroutines have exited after ctx is cancelled.
func (rt *Runtime) Start(ctx context.Context) (wait func()) {
	unbind := rt.View.Bind(rt.Bus)
	rt.Sync.WatchConnectivity(ctx)

	var done []<-chan struct{}
	if !rt.offline {
		prober := &connectivity.Prober{
			Monitor:   rt.Monitor,
			Probe:     probeBackend(rt.Client),
			Interval:  rt.Config.Connectivity.ProbeInterval,
			Threshold: rt.Config.Connectivity.FailureThreshold,
			Logger:    rt.Logger,
		}
		done = append(done, prober.Start(ctx))
		done = append(done, StartPoller(ctx, rt.Sync, rt.Config.Sync.RefreshInterval, rt.Logger))
	}

	return func() {
		for _, ch := range done {
			<-ch
		}
		unbind()
	}
}

// CheckConnectivity probes the backend once and updates the monitor. It is a
// no-op for offline runtimes. Returns the resulting state.
func (rt *Runtime) CheckConnectivity(ctx context.Context) bool {
	if rt.offline {
		return false
	}
	prober := &connectivity.Prober{
		Monitor:   rt.Monitor,
		Probe:     probeBackend(rt.Client),
		Threshold: 1,
		Logger:    rt.Logger,
	}
	prober.Step(ctx)
	return rt.Monitor.Online()
}

// Close releases the log file and storage connections.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// probeBackend treats any HTTP answer other than a transient failure as
// reachable.
func probeBackend(client *cartapi.Client) connectivity.ProbeFunc {
	return func(ctx context.Context) error {
		_, err := client.FetchProducts(ctx)
		var ne *cartapi.NetworkError
		if errors.As(err, &ne) && !ne.Transient() {
			return nil
		}
		return err
	}
}

// openMedium picks the storage backend. A backend that cannot be opened
// degrades to a store without durable storage.
func openMedium(cfg config.StorageConfig, logger logrus.FieldLogger) (storage.Medium, io.Closer) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemoryMedium(), nil
	case config.BackendRedis:
		medium, err := storage.NewRedisMedium(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("redis storage unavailable; cart will not persist")
			return nil, nil
		}
		return medium, medium
	default:
		medium, err := storage.NewFileMedium(cfg.Dir)
		if err != nil {
			logger.WithError(err).WithField("dir", cfg.Dir).Warn("file storage unavailable; cart will not persist")
			return nil, nil
		}
		return medium, nil
	}
}

func newLogger(cfg config.LogConfig, fallback io.Writer) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	}

	if cfg.File == "" {
		if fallback == nil {
			fallback = io.Discard
		}
		logger.SetOutput(fallback)
		return logger, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(file)
	return logger, file, nil
}
