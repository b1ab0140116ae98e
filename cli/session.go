package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/glyph-labs/glyphflow/bus"
	"github.com/glyph-labs/glyphflow/host"
	"github.com/glyph-labs/glyphflow/job"
	glyphotel "github.com/glyph-labs/glyphflow/otel"
	"github.com/glyph-labs/glyphflow/plugin"
	"github.com/glyph-labs/glyphflow/plugins/configplug"
	"github.com/glyph-labs/glyphflow/plugins/envplug"
	"github.com/glyph-labs/glyphflow/plugins/mathplug"
	"github.com/glyph-labs/glyphflow/plugins/timerplug"
	"github.com/glyph-labs/glyphflow/registry"
	"github.com/glyph-labs/glyphflow/runtime"
	"github.com/glyph-labs/glyphflow/timer"
)

// session is one fully wired host runtime: registry, engine, plugin
// manager, and the built-in plugins loaded. Commands that execute or
// listen to nodes open a session, use it, and Close it on the way out.
type session struct {
	cfg     host.Config
	log     zerolog.Logger
	reg     *registry.Registry
	engine  *runtime.Engine
	manager *plugin.Manager
	bus     *bus.MemBus

	closers []func()
}

// sessionOptions tune what openSession wires beyond the defaults.
type sessionOptions struct {
	// extraHandlers receive every engine event after the bus publish.
	extraHandlers []runtime.EventHandler
}

// openSession builds the runtime from the discovered config and loads the
// built-in plugins. The caller must Close the returned session.
func openSession(cmd *cobra.Command, opts sessionOptions) (*session, error) {
	cfg, err := loadSessionConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := sessionLogger(cmd, cfg.LogLevel)

	s := &session{
		cfg: cfg,
		log: logger,
		reg: registry.New(),
	}

	timers := timer.NewService(logger)
	jobs := job.NewService(cfg.Jobs.Workers, cfg.Jobs.QueueDepth, logger)
	s.closers = append(s.closers, timers.Close, jobs.Close)

	store, err := openSettingsStore(cmd)
	if err != nil {
		s.Close()
		return nil, err
	}
	var source host.SettingsSource
	var settings plugin.SettingsStore
	if store != nil {
		source = store
		settings = store
		s.closers = append(s.closers, func() { _ = store.Close() })
	}

	hostSvc := host.New(host.Options{
		Logger:       logger,
		Timers:       timers,
		Jobs:         jobs,
		DataDir:      cfg.Paths.DataDir,
		CacheDir:     cfg.Paths.CacheDir,
		FlowsDir:     cfg.Paths.FlowsDir,
		Capabilities: cfg.CapabilitySet(),
		Settings:     source,
		HostSettings: cfg.Settings,
	})

	s.bus = bus.NewMemBus(bus.MemBusConfig{})
	s.closers = append(s.closers, func() { _ = s.bus.Close() })

	handlers := []runtime.EventHandler{s.bus.Publish}
	handlers = append(handlers, opts.extraHandlers...)

	var pluginObs plugin.Observer
	if endpoint := stringFlag(cmd, "otlp-endpoint"); endpoint != "" {
		shutdown, err := installTraceProvider(cmd.Context(), endpoint)
		if err != nil {
			s.Close()
			return nil, exitError(exitConfig, "initializing trace exporter: %v", err)
		}
		s.closers = append(s.closers, shutdown)

		tracer := otelapi.GetTracerProvider().Tracer("glyphflow/engine")
		meter := otelapi.GetMeterProvider().Meter("glyphflow/engine")

		tracing := glyphotel.NewTracingHandler(tracer)
		metrics, err := glyphotel.NewMetricsHandler(meter)
		if err != nil {
			s.Close()
			return nil, exitError(exitConfig, "initializing engine metrics: %v", err)
		}
		obs, err := glyphotel.NewPluginObserver(meter, tracer)
		if err != nil {
			s.Close()
			return nil, exitError(exitConfig, "initializing plugin observability: %v", err)
		}
		pluginObs = obs

		publish := handlers
		enriched := glyphotel.EnrichHandler(func(e runtime.Event) {
			for _, h := range publish {
				h(e)
			}
		}, tracing)
		handlers = []runtime.EventHandler{tracing.Handle, metrics.Handle, enriched}
	}

	s.engine = runtime.NewEngine(s.reg, hostSvc, runtime.Options{
		TriggerQueueDepth: cfg.TriggerQueueDepth,
		EventHandler: func(e runtime.Event) {
			for _, h := range handlers {
				h(e)
			}
		},
		Logger: logger,
	})

	s.manager = plugin.NewManager(s.reg, s.engine, hostSvc, settings, logger)
	if pluginObs != nil {
		s.manager.SetObserver(pluginObs)
	}

	builtins := []plugin.Plugin{
		mathplug.New(),
		timerplug.New(),
		envplug.New(),
		configplug.New(),
	}
	for _, p := range builtins {
		if err := s.manager.Load(p); err != nil {
			s.Close()
			return nil, exitError(exitRuntime, "loading plugin %s: %v", p.Info().ID, err)
		}
	}
	return s, nil
}

// Close unloads plugins and releases every resource the session opened.
func (s *session) Close() {
	if s.manager != nil {
		for _, info := range s.manager.Plugins() {
			if err := s.manager.Unload(info.ID); err != nil {
				s.log.Warn().Err(err).Str("plugin", info.ID).Msg("unload failed")
			}
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// loadSessionConfig resolves the host config: the --config flag when given,
// otherwise the discovery chain, otherwise built-in defaults.
func loadSessionConfig(cmd *cobra.Command) (host.Config, error) {
	explicit := stringFlag(cmd, "config")
	path, found, err := host.DiscoverConfigPath(explicit)
	if err != nil {
		return host.Config{}, exitError(exitConfig, "%v", err)
	}
	if !found {
		return host.DefaultConfig(), nil
	}
	cfg, err := host.LoadConfig(path)
	if err != nil {
		return host.Config{}, exitError(exitConfig, "%v", err)
	}
	return cfg, nil
}

// sessionLogger builds the CLI logger on stderr. --verbose and --quiet
// override the configured level.
func sessionLogger(cmd *cobra.Command, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if boolFlag(cmd, "verbose") {
		lvl = zerolog.DebugLevel
	}
	if boolFlag(cmd, "quiet") {
		lvl = zerolog.ErrorLevel
	}
	writer := zerolog.ConsoleWriter{
		Out:     cmd.ErrOrStderr(),
		NoColor: boolFlag(cmd, "no-color"),
	}
	return zerolog.New(writer).With().Timestamp().Logger().Level(lvl)
}

func openSettingsStore(cmd *cobra.Command) (*plugin.SQLiteSettingsStore, error) {
	path := stringFlag(cmd, "settings-db")
	if path == "" {
		return nil, nil
	}
	store, err := plugin.NewSQLiteSettingsStore(path)
	if err != nil {
		return nil, exitError(exitConfig, "opening settings store: %v", err)
	}
	return store, nil
}

// stringFlag reads a flag that may not be registered on every command.
func stringFlag(cmd *cobra.Command, name string) string {
	if cmd.Flags().Lookup(name) == nil {
		return ""
	}
	v, _ := cmd.Flags().GetString(name)
	return v
}

func boolFlag(cmd *cobra.Command, name string) bool {
	if cmd.Flags().Lookup(name) == nil {
		return false
	}
	v, _ := cmd.Flags().GetBool(name)
	return v
}

// addSessionFlags registers the flags shared by every command that opens a
// runtime session.
func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to glyphflow.yaml host config")
	cmd.Flags().String("settings-db", "", "Path to the SQLite plugin-settings database")
	cmd.Flags().String("otlp-endpoint", "", "OTLP/HTTP trace endpoint (enables engine tracing and metrics)")
}
