// Package daemon wires the bot together and runs it until shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harun/lynae/internal/bridge"
	"github.com/harun/lynae/internal/config"
	"github.com/harun/lynae/internal/logger"
	"github.com/harun/lynae/internal/metrics"
	"github.com/harun/lynae/internal/tracing"
	"github.com/harun/lynae/pkg/commands"
	"github.com/harun/lynae/pkg/dispatch"
	"github.com/harun/lynae/pkg/downloadcache"
	"github.com/harun/lynae/pkg/identity"
	"github.com/harun/lynae/pkg/normalizer"
	"github.com/harun/lynae/pkg/plugin"
	"github.com/harun/lynae/pkg/transport"
	"github.com/harun/lynae/plugins"
)

// Version is the release of the bot, reported by the CLI and in traces.
const Version = "0.1.0"

const shutdownTimeout = 5 * time.Second

// Daemon represents the Lynae daemon service
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	metrics *metrics.Metrics
	client  transport.Client
	// bridge is nil when a client was injected.
	bridge    *bridge.Client
	loader    *plugin.Loader
	watcher   *plugin.Watcher
	cache     *downloadcache.Cache
	engine    *dispatch.Engine
	scheduler *cron.Cron
	lifecycle *LifecycleManager

	server     *http.Server
	serverAddr string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	fatal  chan error

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracer *tracing.Provider
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithClient replaces the bridge connection with client.
func WithClient(client transport.Client) Option {
	return func(d *Daemon) {
		d.client = client
	}
}

// Status is a point-in-time view of the daemon.
type Status struct {
	Running   bool
	Connected bool
	Plugins   int
	Uptime    time.Duration
	StartTime time.Time
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger, opts ...Option) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:  cfg,
		logger:  log,
		metrics: metrics.NewMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		fatal:   make(chan error, 1),
	}
	for _, opt := range opts {
		opt(d)
	}

	if cfg.Telemetry.Enabled {
		tracer, err := tracing.Setup(tracing.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Version:     Version,
			SampleRatio: 1,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			d.tracer = tracer
			log.Info().Msg("Tracing initialized successfully")
		}
	}

	if err := d.initializeModules(); err != nil {
		cancel()
		d.shutdownTracing()
		return nil, fmt.Errorf("failed to initialize modules: %w", err)
	}

	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

// initializeModules builds every component in dependency order.
func (d *Daemon) initializeModules() error {
	cfg := d.config
	zl := d.logger.GetZerolog()

	if d.client == nil {
		d.bridge = bridge.New(bridge.Config{
			URL:               cfg.Bridge.URL,
			Token:             cfg.Bridge.Token,
			ReconnectInterval: cfg.Bridge.ReconnectInterval,
			RestartDelay:      cfg.Bridge.RestartDelay,
			RequestTimeout:    cfg.Bridge.RequestTimeout,
			PingInterval:      cfg.Bridge.PingInterval,
			Bio:               cfg.Bot.Bio,
			Noise:             logger.NewNoiseFilter(),
			Recorder:          d.metrics,
		}, zl)
		d.client = d.bridge
	}

	cache, err := downloadcache.New(downloadcache.Config{
		Path: cfg.Cache.Path,
		TTL:  cfg.Cache.TTL,
	}, zl)
	if err != nil {
		return fmt.Errorf("download cache: %w", err)
	}
	d.cache = cache

	catalog := plugin.NewCatalog()
	if err := commands.Register(catalog, commands.Deps{
		BotName:            cfg.Bot.Name,
		Owners:             cfg.Bot.Owners,
		Cache:              cache,
		HTTP:               &http.Client{Timeout: cfg.Commands.HTTPTimeout},
		StartedAt:          time.Now(),
		TranslateURL:       cfg.Commands.TranslateURL,
		TikTokEndpoints:    cfg.Commands.TikTokEndpoints,
		InstagramEndpoints: cfg.Commands.InstagramEndpoints,
		LyricsSearchURL:    cfg.Commands.LyricsSearchURL,
		GeniusToken:        cfg.Commands.GeniusToken,
		PluginDir:          cfg.Plugins.Dir,
	}); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}

	d.loader = plugin.NewLoader(plugin.LoaderConfig{
		Dir:       cfg.Plugins.Dir,
		Catalog:   catalog,
		Recorder:  d.metrics,
		Overrides: cfg.Plugins.Overrides,
	}, zl)

	if cfg.Plugins.Watch {
		watcher, err := plugin.NewWatcher(d.loader, time.Duration(cfg.Plugins.DebounceMS)*time.Millisecond, zl)
		if err != nil {
			return fmt.Errorf("plugin watcher: %w", err)
		}
		d.watcher = watcher
	}

	d.engine = dispatch.New(dispatch.Config{
		Client:   d.client,
		Registry: d.loader.Registry(),
		Normalizer: normalizer.New(normalizer.Config{
			Prefixes: cfg.Bot.Prefixes,
			MaxAge:   cfg.Dispatch.MaxMessageAge,
		}),
		Resolver:      identity.NewResolver(d.client, cfg.Bot.Number, zl),
		Processed:     dispatch.NewProcessedSet(cfg.Dispatch.DedupCapacity),
		Recorder:      d.metrics,
		GuardRecorder: d.metrics,
	}, zl)

	scheduler, err := d.newScheduler()
	if err != nil {
		return err
	}
	d.scheduler = scheduler

	return nil
}

// Start starts the daemon
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	logger := d.logger.GetZerolog().With().Str("trace_id", tracing.NewTraceID()).Logger()
	logger.Info().Msg("Starting Lynae daemon")

	if err := d.lifecycle.Start(); err != nil {
		d.setStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if err := d.startModules(); err != nil {
		d.cancel()
		d.scheduler.Stop()
		if d.watcher != nil {
			_ = d.watcher.Stop()
		}
		d.wg.Wait()
		d.loader.Close()
		_ = d.lifecycle.Stop()
		d.setStopped()
		return err
	}

	logger.Info().
		Strs("plugins", d.loader.Registry().Names()).
		Msg("Daemon started successfully")

	return nil
}

func (d *Daemon) startModules() error {
	if err := seedPlugins(d.config.Plugins.Dir); err != nil {
		return fmt.Errorf("failed to prepare plugin directory: %w", err)
	}

	if _, err := d.loader.LoadAll(d.ctx); err != nil {
		return fmt.Errorf("failed to load plugins: %w", err)
	}

	if d.watcher != nil {
		if err := d.watcher.Start(d.ctx); err != nil {
			return fmt.Errorf("failed to start plugin watcher: %w", err)
		}
	}

	if d.bridge != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.bridge.Run(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.fail(fmt.Errorf("bridge stopped: %w", err))
			}
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.consumeUpserts()
	}()

	d.scheduler.Start()

	if d.config.Metrics.Enabled {
		if err := d.startServer(); err != nil {
			return err
		}
	}

	d.reportStats()
	return nil
}

// consumeUpserts feeds inbound batches to the engine one at a time.
func (d *Daemon) consumeUpserts() {
	upserts := d.client.Upserts()
	for {
		select {
		case <-d.ctx.Done():
			return
		case u, ok := <-upserts:
			if !ok {
				return
			}
			d.engine.HandleUpsert(d.ctx, u)
		}
	}
}

// fail records a fatal error; Run returns it.
func (d *Daemon) fail(err error) {
	select {
	case d.fatal <- err:
	default:
	}
}

// Run starts the daemon, blocks until ctx is done or a component fails,
// then stops it.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		d.logger.Info().Msg("Shutdown requested")
	case runErr = <-d.fatal:
		d.logger.Error().Err(runErr).Msg("Daemon stopping after fatal error")
	}

	if err := d.Stop(); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// Stop stops the daemon
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	logger := d.logger.GetZerolog().With().Str("trace_id", tracing.NewTraceID()).Logger()
	logger.Info().Msg("Stopping Lynae daemon")

	d.cancel()

	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop plugin watcher")
		}
	}

	// Stop cron scheduler
	select {
	case <-d.scheduler.Stop().Done():
	case <-time.After(shutdownTimeout):
		logger.Warn().Msg("Timeout waiting for scheduled jobs")
	}

	if d.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to stop metrics server")
		}
		cancel()
	}

	// Wait for goroutines to finish (with timeout)
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("All goroutines stopped")
	case <-time.After(shutdownTimeout):
		logger.Warn().Msg("Timeout waiting for goroutines to stop")
	}

	// Stops exec plugin processes
	d.loader.Close()

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	d.shutdownTracing()

	logger.Info().Msg("Daemon stopped successfully")

	return nil
}

func (d *Daemon) setStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

func (d *Daemon) shutdownTracing() {
	if d.tracer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.tracer.Shutdown(ctx); err != nil {
		d.logger.Error().Err(err).Msg("Failed to shutdown tracing")
	}
	d.tracer = nil
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
		Plugins: d.loader.Registry().Len(),
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
		status.Connected = d.bridge == nil || d.bridge.Connected()
	}

	return status
}

// GetConfig returns the daemon config
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetEngine returns the dispatch engine
func (d *Daemon) GetEngine() *dispatch.Engine {
	return d.engine
}

// GetLoader returns the plugin loader
func (d *Daemon) GetLoader() *plugin.Loader {
	return d.loader
}

// GetMetrics returns the metrics registry
func (d *Daemon) GetMetrics() *metrics.Metrics {
	return d.metrics
}

// ServerAddr returns the address the metrics server listens on, or ""
// when it is disabled.
func (d *Daemon) ServerAddr() string {
	return d.serverAddr
}

// seedPlugins creates dir with the shipped manifests when it does not exist
// yet. An existing directory is left alone, even when empty.
func seedPlugins(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	entries, err := fs.ReadDir(plugins.FS, ".")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		data, err := plugins.FS.ReadFile(entry.Name())
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, entry.Name()), data, 0644); err != nil {
			return err
		}
	}
	return nil
}
