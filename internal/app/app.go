// Package app provides the main application struct for centralized dependency
// management and lifecycle control of the log collection server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gomodel/config"
	"gomodel/internal/admission"
	"gomodel/internal/api"
	"gomodel/internal/ingest"
	"gomodel/internal/logrecord"
	"gomodel/internal/metrics"
	"gomodel/internal/retention"
	"gomodel/internal/storage"
	"gomodel/internal/writer"
	"gomodel/webui"
)

// writerChannelSize bounds how far the writer can lag the ingest paths
// before a TCP connection's blocking send starts applying backpressure.
const writerChannelSize = 4096

// registerMetricsOnce guards against MustRegister panicking when New is
// called more than once in the same process, as tests do.
var registerMetricsOnce sync.Once

// App wires together the store, admission cache, TCP listener, batch
// writer, retention sweeper, and HTTP query API, and owns their
// combined startup and shutdown.
type App struct {
	config *config.Config

	store     *storage.Store
	admission admission.Cache
	listener  *ingest.Listener
	writer    *writer.Writer
	sweeper   *retention.Sweeper
	server    *api.Server

	records    chan logrecord.Record
	writerDone chan struct{}

	shutdownMu sync.Mutex
	shutdown   bool
	started    bool
}

// New creates a new App with all dependencies initialized. The caller
// must call Shutdown to release resources.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	store, err := storage.Open(storage.Config{Path: cfg.Storage.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	cache, err := admission.New(admission.Config{
		Backend:   cfg.Admission.Backend,
		MaxHashes: cfg.Admission.MaxHashes,
		Redis: admission.RedisConfig{
			URL: cfg.Admission.Redis.URL,
			Key: cfg.Admission.Redis.Key,
		},
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize admission cache: %w", err)
	}

	registerMetricsOnce.Do(func() { metrics.Register(prometheus.DefaultRegisterer) })

	records := make(chan logrecord.Record, writerChannelSize)

	app := &App{
		config:     cfg,
		store:      store,
		admission:  cache,
		records:    records,
		writerDone: make(chan struct{}),
	}

	tcpAddr := config.Addr(cfg.TCP.IP, cfg.TCP.Port)
	app.listener = ingest.New(tcpAddr, cache, cfg.Ingest.MaxLogLength, records)

	app.writer = writer.New(store, records)

	app.sweeper = retention.New(store, cache, retention.Config{
		Interval:    time.Duration(cfg.Retention.IntervalSeconds) * time.Second,
		MaxHashes:   cfg.Admission.MaxHashes,
		MaxLogCount: cfg.Retention.MaxLogCount,
	})

	ui, err := webui.FS()
	if err != nil {
		_ = store.Close()
		_ = cache.Close()
		return nil, fmt.Errorf("failed to load embedded UI bundle: %w", err)
	}

	app.server = api.New(store, cache, api.Config{
		BodySizeLimit:   cfg.API.BodySizeLimit,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		SwaggerEnabled:  cfg.Swagger.Enabled,
		UI:              ui,
		MaxLogLength:    cfg.Ingest.MaxLogLength,
		MaxLogCount:     cfg.Retention.MaxLogCount,
	})

	app.logStartupInfo()

	return app, nil
}

// Start brings up the TCP listener, writer, and sweeper in the
// background, then blocks serving the HTTP query API on addr until
// Shutdown is called.
func (a *App) Start(addr string) error {
	a.shutdownMu.Lock()
	a.started = true
	a.shutdownMu.Unlock()

	go func() {
		if err := a.listener.Serve(); err != nil {
			slog.Error("tcp listener stopped", "error", err)
		}
	}()

	go func() {
		a.writer.Run()
		close(a.writerDone)
	}()

	go a.sweeper.Run()

	slog.Info("starting api server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		return fmt.Errorf("api server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down all components in order:
//  1. stop accepting new TCP connections and wait for in-flight ones to drain
//  2. close the writer channel and wait for the final batch to flush
//  3. stop the retention sweeper
//  4. stop the HTTP server
//  5. close the store
//
// Safe to call multiple times; subsequent calls are no-ops.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	started := a.started
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	if err := a.listener.Close(); err != nil {
		slog.Error("listener close error", "error", err)
		errs = append(errs, fmt.Errorf("listener close: %w", err))
	}

	close(a.records)
	if started {
		select {
		case <-a.writerDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("writer flush: %w", ctx.Err()))
		}
	}

	if err := a.sweeper.Close(); err != nil {
		slog.Error("sweeper close error", "error", err)
		errs = append(errs, fmt.Errorf("sweeper close: %w", err))
	}

	if err := a.server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	if err := a.store.Close(); err != nil {
		slog.Error("store close error", "error", err)
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if err := a.admission.Close(); err != nil {
		slog.Error("admission cache close error", "error", err)
		errs = append(errs, fmt.Errorf("admission close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	slog.Info("storage configured", "path", cfg.Storage.Path)
	slog.Info("tcp listener configured", "addr", config.Addr(cfg.TCP.IP, cfg.TCP.Port))
	slog.Info("api server configured", "addr", config.Addr(cfg.API.IP, cfg.API.Port))
	slog.Info("admission cache configured", "backend", cfg.Admission.Backend, "max_hashes", cfg.Admission.MaxHashes)
	slog.Info("retention configured", "max_log_count", cfg.Retention.MaxLogCount, "interval", time.Duration(cfg.Retention.IntervalSeconds)*time.Second)

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	if cfg.Swagger.Enabled {
		slog.Info("swagger docs enabled", "url", "/swagger/index.html")
	}
}
