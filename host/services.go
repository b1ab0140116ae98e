// Package host implements the service façade handed to plugins: logging,
// timers, job submission, environment namespaces, settings lookup, paths,
// and the data-format utilities. One Services value is shared by every
// plugin instance in the process and is safe for concurrent use.
package host

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/glyph-labs/glyphflow/core"
	"github.com/glyph-labs/glyphflow/dataformat"
	"github.com/glyph-labs/glyphflow/job"
	"github.com/glyph-labs/glyphflow/timer"
)

// SettingsSource supplies stored plugin settings documents. The plugin
// manager's settings store implements it.
type SettingsSource interface {
	// PluginSettings returns the serialized settings for a plugin ID.
	PluginSettings(pluginID string) (string, bool)
}

// Options configure a Services value. Zero-value fields fall back to
// sensible defaults; nil Timers/Jobs are created internally.
type Options struct {
	Logger zerolog.Logger

	Timers *timer.Service
	Jobs   *job.Service

	// DataDir is the root under which per-plugin data directories live.
	DataDir  string
	CacheDir string
	FlowsDir string

	// Capabilities is the grant set checked by HasCapability. Ungranted
	// capabilities gate the corresponding service calls.
	Capabilities map[string]bool

	// Settings resolves stored plugin settings; nil means none stored.
	Settings SettingsSource

	// HostSettings are application-level settings exposed read-only.
	HostSettings map[string]string
}

// Services implements core.HostServices.
type Services struct {
	log    zerolog.Logger
	timers *timer.Service
	jobs   *job.Service

	dataDir  string
	cacheDir string
	flowsDir string

	caps     map[string]bool
	settings SettingsSource
	hostSet  map[string]string

	json dataformat.JSON
	csv  dataformat.CSV
	ini  dataformat.INI

	flowEnv core.EnvScope
	appEnv  core.EnvScope
	osEnv   core.EnvScope
}

// New builds the host services façade.
func New(opts Options) *Services {
	if opts.Timers == nil {
		opts.Timers = timer.NewService(opts.Logger)
	}
	if opts.Jobs == nil {
		opts.Jobs = job.NewService(4, 64, opts.Logger)
	}
	s := &Services{
		log:      opts.Logger,
		timers:   opts.Timers,
		jobs:     opts.Jobs,
		dataDir:  opts.DataDir,
		cacheDir: opts.CacheDir,
		flowsDir: opts.FlowsDir,
		caps:     opts.Capabilities,
		settings: opts.Settings,
		hostSet:  opts.HostSettings,
	}
	s.flowEnv = newMapScope(s, "env.flow.read", "env.flow.write")
	s.appEnv = newMapScope(s, "env.app.read", "env.app.write")
	s.osEnv = newOSScope(s, "env.os.read", "env.os.write")
	return s
}

// Close stops the owned timer and job services.
func (s *Services) Close() {
	s.timers.Close()
	s.jobs.Close()
}

// Version returns the boundary version of this host build.
func (s *Services) Version() uint32 {
	return core.BoundaryVersion
}

func (s *Services) Log(level core.LogLevel, msg string) {
	s.event(level).Msg(msg)
}

func (s *Services) Logf(level core.LogLevel, format string, args ...any) {
	s.event(level).Msg(fmt.Sprintf(format, args...))
}

func (s *Services) event(level core.LogLevel) *zerolog.Event {
	switch level {
	case core.LogDebug:
		return s.log.Debug()
	case core.LogWarn:
		return s.log.Warn()
	case core.LogError:
		return s.log.Error()
	default:
		return s.log.Info()
	}
}

func (s *Services) SubmitJob(fn func(), onComplete func(success bool)) core.JobHandle {
	return s.jobs.Submit(fn, onComplete)
}

func (s *Services) PollJob(h core.JobHandle) bool {
	return s.jobs.Poll(h)
}

func (s *Services) CancelJob(h core.JobHandle) {
	s.jobs.Cancel(h)
}

// PluginDataDir returns the writable data directory for one plugin.
func (s *Services) PluginDataDir(pluginID string) string {
	if pluginID == "" {
		return ""
	}
	return filepath.Join(s.dataDir, pluginID)
}

func (s *Services) CacheDir() string {
	return s.cacheDir
}

func (s *Services) FlowsDir() string {
	return s.flowsDir
}

// HasCapability reports whether the named capability was granted in the
// host configuration.
func (s *Services) HasCapability(name string) bool {
	return s.caps[name]
}

func (s *Services) CreateTimer(interval time.Duration, fn func()) core.TimerHandle {
	return s.timers.Create(interval, fn)
}

func (s *Services) CreateCronTimer(spec string, fn func()) core.TimerHandle {
	return s.timers.CreateCron(spec, fn)
}

func (s *Services) DestroyTimer(h core.TimerHandle) {
	s.timers.Destroy(h)
}

func (s *Services) JSON() core.JSONService { return s.json }
func (s *Services) CSV() core.CSVService   { return s.csv }
func (s *Services) INI() core.INIService   { return s.ini }

func (s *Services) FlowEnv() core.EnvScope { return s.flowEnv }
func (s *Services) AppEnv() core.EnvScope  { return s.appEnv }
func (s *Services) OSEnv() core.EnvScope   { return s.osEnv }

// PluginSettings returns the stored settings document for a plugin, or the
// empty object when none are stored.
func (s *Services) PluginSettings(pluginID string) string {
	if s.settings != nil {
		if doc, ok := s.settings.PluginSettings(pluginID); ok {
			return doc
		}
	}
	return "{}"
}

// HostSetting returns a host application setting value, or "".
func (s *Services) HostSetting(name string) string {
	return s.hostSet[name]
}

var _ core.HostServices = (*Services)(nil)
