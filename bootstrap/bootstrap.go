// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from an optional YAML file and RDMON_* environment
// variables; user settings come from the settings store.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rdmonitor/rdmon/adapters/clock"
	apihttp "github.com/rdmonitor/rdmon/adapters/http"
	"github.com/rdmonitor/rdmon/adapters/idgen"
	"github.com/rdmonitor/rdmon/adapters/memory"
	"github.com/rdmonitor/rdmon/adapters/metrics"
	"github.com/rdmonitor/rdmon/adapters/random"
	"github.com/rdmonitor/rdmon/adapters/remote"
	"github.com/rdmonitor/rdmon/adapters/sealer"
	"github.com/rdmonitor/rdmon/adapters/sqlite"
	"github.com/rdmonitor/rdmon/app"
	"github.com/rdmonitor/rdmon/config"
	"github.com/rdmonitor/rdmon/domain/demo"
	"github.com/rdmonitor/rdmon/ports"
	"github.com/rs/zerolog"
)

// Environment variables read before the config is loaded.
const (
	EnvLogLevel  = "RDMON_LOG_LEVEL"
	EnvLogFormat = "RDMON_LOG_FORMAT"
)

// Options configures application initialization.
type Options struct {
	// ConfigPath is the YAML config file. When empty, DefaultPath is used
	// if it exists and the environment otherwise. A file-backed config is
	// watched for changes by Run.
	ConfigPath string

	Version string

	// Logger replaces the logger built from the config (tests).
	Logger *zerolog.Logger

	// Registry receives the metrics instead of a fresh registry (tests).
	Registry *prometheus.Registry
}

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	DB         *sqlite.DB // nil with the memory store
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	Settings   *app.SettingsService
	Traffic    *app.TrafficService
	Details    *app.DetailsService
	Connection *app.ConnectionService
	Scheduler  *Scheduler

	client       *remote.Client
	shutdownOnce sync.Once
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	logger := setupLoggerFromEnv()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	holder, err := loadConfig(opts.ConfigPath, logger)
	if err != nil {
		return nil, err
	}
	cfg := holder.Get()
	if opts.Logger == nil {
		logger = NewLogger(cfg.Logging, os.Stderr)
	}

	logger.Info().Str("version", opts.Version).Msg("initializing rdmon")

	a := &App{
		Logger: logger,
		Config: holder,
	}

	store, err := a.initStore(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("init settings store: %w", err)
	}

	seal, err := sealer.New(cfg.Secret)
	if err != nil {
		a.closeDB()
		return nil, fmt.Errorf("init sealer: %w", err)
	}

	a.Settings = app.NewSettingsService(app.SettingsDeps{
		Store:     store,
		Sealer:    seal,
		Overrides: settingsOverrides(cfg),
		Logger:    logger,
	})
	if err := a.Settings.Load(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("failed to load settings, using defaults")
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := opts.Registry
		if reg == nil {
			reg = prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}
		a.Metrics = metrics.NewWithRegistry(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	a.client = remote.NewClient(remote.ClientConfig{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Headers: map[string]string{"User-Agent": userAgent(opts.Version)},
	})

	a.initServices(cfg)
	a.initHTTPServer(cfg, metricsHandler, opts.Version)

	a.Scheduler = NewScheduler(a.Traffic, a.Settings, ConfigIntervals(func() config.RefreshConfig {
		return a.Config.Get().Refresh
	}), logger)

	holder.OnChange(a.applyConfig)
	holder.OnError(func(err error) {
		a.Metrics.ConfigReloaded(time.Now(), err)
	})

	return a, nil
}

func loadConfig(path string, logger zerolog.Logger) (*config.Holder, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultPath); err != nil {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return nil, fmt.Errorf("load config: %w", err)
			}
			return config.NewStaticHolder(cfg, logger), nil
		}
		path = config.DefaultPath
	}
	return config.NewHolder(path, logger)
}

func (a *App) initStore(dsn string) (ports.SettingsStore, error) {
	if dsn == config.MemoryDSN {
		a.Logger.Info().Msg("using in-memory settings store")
		return memory.NewSettingsStore(), nil
	}

	db, err := sqlite.Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a.DB = db
	a.Logger.Info().Str("dsn", dsn).Msg("database initialized")
	return sqlite.NewSettingsStore(db), nil
}

func (a *App) initServices(cfg *config.Config) {
	deps := app.TrafficDeps{
		Sources:   a.client.TrafficSource,
		Generator: demo.NewGenerator(random.Real{}),
		Clock:     clock.Real{},
		IDGen:     idgen.UUID{},
		Metrics:   a.Metrics,
		Logger:    a.Logger,
	}
	a.Traffic = app.NewTrafficService(deps, trafficConfig(cfg))
	a.Details = app.NewDetailsService(deps, a.Traffic)
	a.Connection = app.NewConnectionService(app.ConnectionDeps{
		Accounts: a.client,
		Clock:    deps.Clock,
		Metrics:  a.Metrics,
		Logger:   a.Logger,
	})
}

func (a *App) initHTTPServer(cfg *config.Config, metricsHandler http.Handler, version string) {
	router := apihttp.NewRouter(apihttp.Deps{
		Traffic:    a.Traffic,
		Details:    a.Details,
		Connection: a.Connection,
		Settings:   a.Settings,
		Logger:     a.Logger,
	}, apihttp.RouterConfig{
		Metrics:        a.Metrics,
		MetricsHandler: metricsHandler,
		MetricsPath:    cfg.Metrics.Path,
		RequestTimeout: cfg.Server.WriteTimeout,
		Version:        version,
	})

	addr := cfg.Server.Addr()
	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	a.Logger.Info().Str("addr", addr).Msg("http server configured")
}

// applyConfig applies the reloadable parts of a new config.
func (a *App) applyConfig(cfg *config.Config) {
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	a.Traffic.UpdateConfig(trafficConfig(cfg))

	before := a.Settings.RefreshConfig()
	a.Settings.SetOverrides(settingsOverrides(cfg))
	if a.Settings.RefreshConfig() != before {
		a.Logger.Info().Msg("credentials changed, refreshing")
		a.Scheduler.Trigger()
	}

	a.Metrics.ConfigReloaded(time.Now(), nil)
}

// RefreshAndWait runs one cycle to completion and returns the final view.
func (a *App) RefreshAndWait(ctx context.Context) (app.TrafficView, error) {
	cycle, err := a.Traffic.Refresh(ctx, a.Settings.RefreshConfig())
	if err != nil {
		return app.TrafficView{}, err
	}
	if err := cycle.Wait(ctx); err != nil {
		return app.TrafficView{}, err
	}
	return a.Traffic.Snapshot(), nil
}

// Run starts the scheduler and the HTTP server and blocks until ctx ends,
// a termination signal arrives, or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.Scheduler.Start(ctx)

	if a.Config.Path() != "" {
		if err := a.Config.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		a.Config.WatchSignals()
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
		a.Logger.Info().Msg("context done, shutting down")
	}

	if err := a.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown gracefully stops the application. It is safe to call more
// than once.
func (a *App) Shutdown() error {
	a.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if a.Scheduler != nil {
			a.Scheduler.Stop()
		}
		if a.Config != nil {
			a.Config.Stop()
		}
		if a.HTTPServer != nil {
			if err := a.HTTPServer.Shutdown(ctx); err != nil {
				a.Logger.Error().Err(err).Msg("http server shutdown error")
			}
		}
		a.closeDB()

		a.Logger.Info().Msg("shutdown complete")
	})
	return nil
}

func (a *App) closeDB() {
	if a.DB == nil {
		return
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("database close error")
	}
}

func trafficConfig(cfg *config.Config) app.TrafficConfig {
	return app.TrafficConfig{
		DemoMinLatency: cfg.Refresh.DemoMinLatency,
		DemoMaxLatency: cfg.Refresh.DemoMaxLatency,
	}
}

func settingsOverrides(cfg *config.Config) app.SettingsOverrides {
	return app.SettingsOverrides{
		APIKey:   cfg.API.APIKey,
		DemoMode: cfg.API.DemoMode,
	}
}

func userAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	return "rdmon/" + version
}

// NewLogger builds the application logger. Format "console" writes
// human-readable lines; anything else writes JSON.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func setupLoggerFromEnv() zerolog.Logger {
	return NewLogger(config.LoggingConfig{
		Level:  os.Getenv(EnvLogLevel),
		Format: os.Getenv(EnvLogFormat),
	}, os.Stderr)
}
