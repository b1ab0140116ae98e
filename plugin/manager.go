package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/glyph-labs/glyphflow/core"
	"github.com/glyph-labs/glyphflow/registry"
	"github.com/glyph-labs/glyphflow/runtime"
)

// Manager errors.
var (
	ErrBoundaryVersion   = errors.New("plugin built for a different boundary version")
	ErrEmptyPluginID     = errors.New("plugin ID is empty")
	ErrDuplicatePlugin   = errors.New("plugin ID already loaded")
	ErrUnknownPlugin     = errors.New("unknown plugin")
	ErrLoadFaulted       = errors.New("plugin load faulted")
	ErrRegisterFailed    = errors.New("plugin registration failed")
	ErrPluginUnavailable = errors.New("plugin unavailable after contained fault")
	ErrNoMenuActions     = errors.New("plugin handles no menu actions")
)

// SettingsStore persists plugin settings documents. It doubles as the
// host.SettingsSource behind HostServices.PluginSettings.
type SettingsStore interface {
	PluginSettings(pluginID string) (string, bool)
	PutPluginSettings(pluginID, doc string) error
}

// loaded tracks one plugin's runtime record: the types it registered and
// whether a lifecycle fault has marked it unavailable.
type loaded struct {
	plugin Plugin
	info   core.PluginInfo
	types  []core.NodeTypeID

	unavailable bool
}

// Manager owns plugin lifecycle. All plugin hooks run behind the
// containment barrier; a hook fault marks the plugin unavailable, which
// skips it for ticks, flow notifications, settings delivery, and menus
// until it is unloaded.
type Manager struct {
	reg     *registry.Registry
	engine  *runtime.Engine
	host    core.HostServices
	store   SettingsStore
	scripts core.ScriptRegistry
	log     zerolog.Logger

	mu      sync.Mutex
	obs     Observer
	plugins map[string]*loaded
	order   []string
}

// NewManager builds a plugin manager. store may be nil when settings
// persistence is not configured.
func NewManager(reg *registry.Registry, engine *runtime.Engine, host core.HostServices, store SettingsStore, log zerolog.Logger) *Manager {
	return &Manager{
		reg:     reg,
		engine:  engine,
		host:    host,
		store:   store,
		scripts: nopScriptRegistry{},
		log:     log,
		plugins: make(map[string]*loaded),
	}
}

// SetObserver attaches a lifecycle observer. Call it before the first Load.
func (m *Manager) SetObserver(obs Observer) {
	m.mu.Lock()
	m.obs = obs
	m.mu.Unlock()
}

// SetScriptRegistry attaches the scripting engine's binding surface, passed
// to every subsequent OnRegister. Call it before the first Load.
func (m *Manager) SetScriptRegistry(scripts core.ScriptRegistry) {
	if scripts == nil {
		scripts = nopScriptRegistry{}
	}
	m.mu.Lock()
	m.scripts = scripts
	m.mu.Unlock()
}

func (m *Manager) scriptRegistry() core.ScriptRegistry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scripts
}

func (m *Manager) observer() Observer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.obs
}

func (m *Manager) observeLoad(o LoadObservation) {
	if obs := m.observer(); obs != nil {
		obs.ObserveLoad(o)
	}
}

// recordingRegistry wraps the node registry during OnRegister so the
// manager learns which type IDs a plugin registered and can quiesce and
// unregister them at unload.
type recordingRegistry struct {
	core.NodeRegistry
	types []core.NodeTypeID
}

func (r *recordingRegistry) RegisterNode(desc core.NodeDesc, caps core.Capabilities) (core.NodeTypeID, error) {
	id, err := r.NodeRegistry.RegisterNode(desc, caps)
	if err == nil {
		r.types = append(r.types, id)
	}
	return id, err
}

// Load runs a plugin through its load sequence: boundary version check,
// OnLoad, OnRegister, then initial settings delivery. A failure at any
// stage rolls back everything the plugin registered.
func (m *Manager) Load(p Plugin) error {
	start := time.Now()
	info := p.Info()
	if info.ID == "" {
		return ErrEmptyPluginID
	}
	if info.BoundaryVersion != core.BoundaryVersion {
		m.observeLoad(LoadObservation{PluginID: info.ID, Version: info.Version, Stage: "boundary", Duration: time.Since(start)})
		return fmt.Errorf("%w: plugin %q reports %d, host is %d",
			ErrBoundaryVersion, info.ID, info.BoundaryVersion, core.BoundaryVersion)
	}

	m.mu.Lock()
	if _, dup := m.plugins[info.ID]; dup {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDuplicatePlugin, info.ID)
	}
	// Reserve the slot so concurrent loads of the same ID collide here.
	m.plugins[info.ID] = nil
	m.mu.Unlock()

	fail := func(err error) error {
		m.mu.Lock()
		delete(m.plugins, info.ID)
		m.mu.Unlock()
		return err
	}

	var loadErr error
	ok := runtime.Contain(m.log, "on_load", func() bool {
		loadErr = p.OnLoad(m.host)
		return loadErr == nil
	})
	if !ok {
		m.observeLoad(LoadObservation{PluginID: info.ID, Version: info.Version, Stage: "on_load", Duration: time.Since(start)})
		if loadErr != nil {
			return fail(fmt.Errorf("plugin %q: on_load: %w", info.ID, loadErr))
		}
		return fail(fmt.Errorf("%w: %q", ErrLoadFaulted, info.ID))
	}

	rec := &recordingRegistry{NodeRegistry: m.reg}
	scripts := m.scriptRegistry()
	var regErr error
	ok = runtime.Contain(m.log, "on_register", func() bool {
		regErr = p.OnRegister(rec, scripts)
		return regErr == nil
	})
	if !ok {
		for _, id := range rec.types {
			m.reg.UnregisterNode(id)
		}
		runtime.Contain(m.log, "on_unload", func() bool { p.OnUnload(); return true })
		m.observeLoad(LoadObservation{PluginID: info.ID, Version: info.Version, Stage: "on_register", Duration: time.Since(start)})
		if regErr != nil {
			return fail(fmt.Errorf("plugin %q: on_register: %w", info.ID, regErr))
		}
		return fail(fmt.Errorf("%w: %q faulted", ErrRegisterFailed, info.ID))
	}

	rec2 := &loaded{plugin: p, info: info, types: rec.types}
	m.mu.Lock()
	m.plugins[info.ID] = rec2
	m.order = append(m.order, info.ID)
	m.mu.Unlock()

	m.deliverSettings(rec2)
	m.observeLoad(LoadObservation{
		PluginID:  info.ID,
		Version:   info.Version,
		NodeTypes: len(rec.types),
		Success:   true,
		Duration:  time.Since(start),
	})

	m.log.Info().
		Str("plugin", info.ID).
		Str("version", info.Version).
		Int("node_types", len(rec.types)).
		Msg("plugin loaded")
	return nil
}

// deliverSettings pushes the stored settings document (or the schema's
// defaults when nothing is stored yet) to a SettingsHandler plugin.
func (m *Manager) deliverSettings(rec *loaded) {
	h, ok := rec.plugin.(SettingsHandler)
	if !ok {
		return
	}
	doc := "{}"
	if m.store != nil {
		if stored, ok := m.store.PluginSettings(rec.info.ID); ok {
			doc = stored
		}
	}
	if !runtime.Contain(m.log, "on_settings_changed", func() bool {
		h.OnSettingsChanged(doc)
		return true
	}) {
		m.markUnavailable(rec.info.ID, "on_settings_changed")
	}
}

// Unload quiesces every node type the plugin registered, unregisters them,
// and runs OnUnload exactly once.
func (m *Manager) Unload(pluginID string) error {
	m.mu.Lock()
	rec, ok := m.plugins[pluginID]
	if !ok || rec == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownPlugin, pluginID)
	}
	delete(m.plugins, pluginID)
	for i, id := range m.order {
		if id == pluginID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	for _, typeID := range rec.types {
		m.engine.Quiesce(typeID)
		m.reg.UnregisterNode(typeID)
	}

	runtime.Contain(m.log, "on_unload", func() bool {
		rec.plugin.OnUnload()
		return true
	})

	if obs := m.observer(); obs != nil {
		obs.ObserveUnload(UnloadObservation{PluginID: pluginID, NodeTypes: len(rec.types)})
	}
	m.log.Info().Str("plugin", pluginID).Msg("plugin unloaded")
	return nil
}

// Reload unloads and reloads one plugin, used for hot reload.
func (m *Manager) Reload(pluginID string, next Plugin) error {
	if err := m.Unload(pluginID); err != nil {
		return err
	}
	return m.Load(next)
}

// UpdateSettings persists a new settings document and redelivers it to the
// plugin.
func (m *Manager) UpdateSettings(pluginID, doc string) error {
	m.mu.Lock()
	rec, ok := m.plugins[pluginID]
	m.mu.Unlock()
	if !ok || rec == nil {
		return fmt.Errorf("%w: %q", ErrUnknownPlugin, pluginID)
	}

	if m.store != nil {
		if err := m.store.PutPluginSettings(pluginID, doc); err != nil {
			return fmt.Errorf("persist settings for %q: %w", pluginID, err)
		}
	}

	if h, ok := rec.plugin.(SettingsHandler); ok && m.available(pluginID) {
		if !runtime.Contain(m.log, "on_settings_changed", func() bool {
			h.OnSettingsChanged(doc)
			return true
		}) {
			m.markUnavailable(pluginID, "on_settings_changed")
		}
	}
	return nil
}

// SettingsSchema returns the plugin's declared settings schema, or ""
// when the plugin exposes no settings.
func (m *Manager) SettingsSchema(pluginID string) string {
	m.mu.Lock()
	rec, ok := m.plugins[pluginID]
	m.mu.Unlock()
	if !ok || rec == nil {
		return ""
	}
	h, ok := rec.plugin.(SettingsHandler)
	if !ok {
		return ""
	}
	var schema string
	if !runtime.Contain(m.log, "settings_schema", func() bool {
		schema = h.SettingsSchema()
		return true
	}) {
		m.markUnavailable(pluginID, "settings_schema")
		return ""
	}
	return schema
}

// Tick forwards the periodic host tick to every available Ticker plugin.
func (m *Manager) Tick(elapsed time.Duration) {
	for _, rec := range m.snapshot() {
		tk, ok := rec.plugin.(Ticker)
		if !ok {
			continue
		}
		if !runtime.Contain(m.log, "tick", func() bool {
			tk.Tick(elapsed)
			return true
		}) {
			m.markUnavailable(rec.info.ID, "tick")
		}
	}
}

// FlowLoaded notifies flow observers that a flow entered the runtime.
func (m *Manager) FlowLoaded(flowID string) {
	m.notifyFlow(flowID, true)
}

// FlowUnloaded notifies flow observers that a flow left the runtime.
func (m *Manager) FlowUnloaded(flowID string) {
	m.notifyFlow(flowID, false)
}

func (m *Manager) notifyFlow(flowID string, open bool) {
	for _, rec := range m.snapshot() {
		obs, ok := rec.plugin.(FlowObserver)
		if !ok {
			continue
		}
		if !runtime.Contain(m.log, "flow_notify", func() bool {
			if open {
				obs.FlowLoaded(flowID)
			} else {
				obs.FlowUnloaded(flowID)
			}
			return true
		}) {
			m.markUnavailable(rec.info.ID, "flow_notify")
		}
	}
}

// Menus aggregates menu contributions from every available plugin, in load
// order, stamped with the owning plugin ID.
func (m *Manager) Menus() []Menu {
	var out []Menu
	for _, rec := range m.snapshot() {
		mp, ok := rec.plugin.(MenuProvider)
		if !ok {
			continue
		}
		var regs []MenuRegistration
		if !runtime.Contain(m.log, "menus", func() bool {
			regs = mp.Menus()
			return true
		}) {
			m.markUnavailable(rec.info.ID, "menus")
			continue
		}
		for _, r := range regs {
			if len(r.Items) == 0 {
				continue
			}
			out = append(out, Menu{PluginID: rec.info.ID, Path: r.Path, Items: r.Items})
		}
	}
	return out
}

// InvokeMenuAction routes an activated menu item back to its owning plugin.
// The plugin must be available and implement MenuActionHandler; a fault in
// the handler marks it unavailable.
func (m *Manager) InvokeMenuAction(pluginID, actionID string) error {
	m.mu.Lock()
	rec, ok := m.plugins[pluginID]
	m.mu.Unlock()
	if !ok || rec == nil {
		return fmt.Errorf("%w: %q", ErrUnknownPlugin, pluginID)
	}
	if !m.available(pluginID) {
		return fmt.Errorf("%w: %q", ErrPluginUnavailable, pluginID)
	}
	h, ok := rec.plugin.(MenuActionHandler)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoMenuActions, pluginID)
	}
	if !runtime.Contain(m.log, "menu_action", func() bool {
		h.OnMenuAction(actionID)
		return true
	}) {
		m.markUnavailable(pluginID, "menu_action")
		return fmt.Errorf("plugin %q faulted on menu action %q", pluginID, actionID)
	}
	return nil
}

// Plugins lists the loaded plugins sorted by ID.
func (m *Manager) Plugins() []core.PluginInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.PluginInfo, 0, len(m.plugins))
	for _, rec := range m.plugins {
		if rec != nil {
			out = append(out, rec.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Available reports whether a plugin is loaded and has not been marked
// unavailable by a contained fault.
func (m *Manager) Available(pluginID string) bool {
	return m.available(pluginID)
}

func (m *Manager) available(pluginID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.plugins[pluginID]
	return ok && rec != nil && !rec.unavailable
}

func (m *Manager) markUnavailable(pluginID, hook string) {
	m.mu.Lock()
	if rec, ok := m.plugins[pluginID]; ok && rec != nil && !rec.unavailable {
		rec.unavailable = true
		obs := m.obs
		m.mu.Unlock()
		if obs != nil {
			obs.ObserveHookFault(HookFaultObservation{PluginID: pluginID, Hook: hook})
		}
		m.log.Warn().
			Str("plugin", pluginID).
			Str("hook", hook).
			Msg("plugin marked unavailable after contained fault")
		return
	}
	m.mu.Unlock()
}

// snapshot returns the available plugins in load order without holding the
// lock across plugin calls.
func (m *Manager) snapshot() []*loaded {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*loaded, 0, len(m.order))
	for _, id := range m.order {
		if rec := m.plugins[id]; rec != nil && !rec.unavailable {
			out = append(out, rec)
		}
	}
	return out
}
