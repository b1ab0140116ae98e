package plugin

import "time"

// LoadObservation records the outcome of one plugin load attempt.
type LoadObservation struct {
	PluginID  string
	Version   string
	NodeTypes int
	Success   bool

	// Stage names the load stage that failed: "boundary", "on_load",
	// "on_register". Empty on success.
	Stage string

	Duration time.Duration
}

// UnloadObservation records one plugin unload.
type UnloadObservation struct {
	PluginID  string
	NodeTypes int
}

// HookFaultObservation records a contained fault in a lifecycle hook that
// marked the plugin unavailable.
type HookFaultObservation struct {
	PluginID string
	Hook     string
}

// Observer receives plugin lifecycle hardening signals. Implementations
// must be safe for concurrent use; the manager calls them from whatever
// goroutine drove the lifecycle operation.
type Observer interface {
	ObserveLoad(LoadObservation)
	ObserveUnload(UnloadObservation)
	ObserveHookFault(HookFaultObservation)
}
