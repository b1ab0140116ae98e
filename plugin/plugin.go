// Package plugin defines the plugin lifecycle contract and the manager that
// drives it: load, node registration, settings delivery, periodic ticks,
// flow notifications, and unload. Every plugin call crosses the containment
// barrier; a faulting plugin is marked unavailable instead of taking the
// host down.
package plugin

import (
	"time"

	"github.com/glyph-labs/glyphflow/core"
)

// Plugin is the mandatory lifecycle surface every plugin implements.
// Hooks are called in order: Info (pre-load), OnLoad, OnRegister, and
// OnUnload exactly once at the end of life.
type Plugin interface {
	// Info identifies the plugin. BoundaryVersion must match
	// core.BoundaryVersion or the load is rejected.
	Info() core.PluginInfo

	// OnLoad receives the host services handle. The plugin may retain it
	// for its whole life.
	OnLoad(host core.HostServices) error

	// OnRegister declares the plugin's node types and custom pin types.
	// scripts is the binding surface of the embedded scripting engine;
	// plugins without script bindings ignore it.
	OnRegister(reg core.NodeRegistry, scripts core.ScriptRegistry) error

	// OnUnload releases plugin resources. Node instances are quiesced by
	// the host before this is called.
	OnUnload()
}

// Ticker is implemented by plugins that want the periodic host tick.
type Ticker interface {
	Tick(elapsed time.Duration)
}

// FlowObserver is implemented by plugins that observe flow lifecycle.
type FlowObserver interface {
	FlowLoaded(flowID string)
	FlowUnloaded(flowID string)
}

// SettingsHandler is implemented by plugins that expose user settings.
// The manager delivers the stored settings document after OnRegister and
// again on every update.
type SettingsHandler interface {
	// SettingsSchema returns the JSON schema document describing the
	// plugin's settings, including defaults.
	SettingsSchema() string

	OnSettingsChanged(settings string)
}

// MenuProvider is implemented by plugins that contribute editor menus.
type MenuProvider interface {
	Menus() []MenuRegistration
}

// MenuActionHandler is implemented by menu providers that receive the
// activation of a leaf item. The host dispatches through
// Manager.InvokeMenuAction with the item's ActionID.
type MenuActionHandler interface {
	OnMenuAction(actionID string)
}
