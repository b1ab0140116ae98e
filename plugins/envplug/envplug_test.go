package envplug

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/glyph-labs/glyphflow/host"
	"github.com/glyph-labs/glyphflow/plugin"
	"github.com/glyph-labs/glyphflow/registry"
	"github.com/glyph-labs/glyphflow/runtime"
)

type rig struct {
	engine *runtime.Engine
	reg    *registry.Registry
	mgr    *plugin.Manager
	svcs   *host.Services
	store  *plugin.MemSettingsStore
}

func newRig(t *testing.T) *rig {
	t.Helper()
	reg := registry.New()
	store := plugin.NewMemSettingsStore()
	svcs := host.New(host.Options{
		Logger:   zerolog.Nop(),
		Settings: store,
		Capabilities: map[string]bool{
			"env.flow.read":  true,
			"env.flow.write": true,
			"env.os.read":    true,
		},
		HostSettings: map[string]string{
			"cache_directory": "/var/cache/glyphflow",
		},
	})
	t.Cleanup(svcs.Close)
	engine := runtime.NewEngine(reg, svcs, runtime.Options{Logger: zerolog.Nop()})
	mgr := plugin.NewManager(reg, engine, svcs, store, zerolog.Nop())
	if err := mgr.Load(New()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return &rig{engine: engine, reg: reg, mgr: mgr, svcs: svcs, store: store}
}

func (r *rig) run(t *testing.T, uniqueName string, inputs map[string]any) *runtime.ExecResult {
	t.Helper()
	typeID, ok := r.reg.Lookup(uniqueName)
	if !ok {
		t.Fatalf("node %q not registered", uniqueName)
	}
	id, err := r.engine.CreateInstance(typeID)
	if err != nil {
		t.Fatalf("CreateInstance() error: %v", err)
	}
	res, err := r.engine.Execute(id, runtime.ExecParams{Inputs: inputs})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	return res
}

func TestGetEnvFromFlowScope(t *testing.T) {
	r := newRig(t)
	r.svcs.FlowEnv().Set("API_URL", "https://example.test")

	res := r.run(t, PluginID+".get_env", map[string]any{"Name": "API_URL"})
	if !res.Success {
		t.Fatalf("node failed: %s", res.Err)
	}
	if got := res.Outputs["Exists"]; got != true {
		t.Errorf("Exists = %v, want true", got)
	}
	if got := res.Outputs["Value"]; got != "https://example.test" {
		t.Errorf("Value = %v", got)
	}
}

func TestGetEnvFallsBackToOS(t *testing.T) {
	r := newRig(t)
	t.Setenv("GLYPHFLOW_ENV_TEST", "from-os")

	res := r.run(t, PluginID+".get_env", map[string]any{"Name": "GLYPHFLOW_ENV_TEST"})
	if got := res.Outputs["Value"]; got != "from-os" {
		t.Errorf("Value = %v, want from-os", got)
	}
	if got := res.Outputs["Exists"]; got != true {
		t.Errorf("Exists = %v, want true", got)
	}
}

func TestGetEnvMissing(t *testing.T) {
	r := newRig(t)
	res := r.run(t, PluginID+".get_env", map[string]any{"Name": "GLYPHFLOW_DEFINITELY_UNSET"})
	if got := res.Outputs["Exists"]; got != false {
		t.Errorf("Exists = %v, want false", got)
	}
	if got := res.Outputs["Value"]; got != "" {
		t.Errorf("Value = %v, want empty", got)
	}
}

func TestGetPluginSettings(t *testing.T) {
	r := newRig(t)
	if err := r.store.PutPluginSettings("com.example.other", `{"mode":"fast"}`); err != nil {
		t.Fatal(err)
	}

	res := r.run(t, PluginID+".get_plugin_settings", map[string]any{"PluginID": "com.example.other"})
	if got := res.Outputs["Settings"]; got != `{"mode":"fast"}` {
		t.Errorf("Settings = %v", got)
	}

	res = r.run(t, PluginID+".get_plugin_settings", map[string]any{"PluginID": "com.example.unknown"})
	if got := res.Outputs["Settings"]; got != "{}" {
		t.Errorf("Settings for unknown plugin = %v, want {}", got)
	}
}

func TestGetHostSetting(t *testing.T) {
	r := newRig(t)

	res := r.run(t, PluginID+".get_host_setting", map[string]any{"Setting": "cache_directory"})
	if got := res.Outputs["Value"]; got != "/var/cache/glyphflow" {
		t.Errorf("Value = %v", got)
	}
	if got := res.Outputs["Found"]; got != true {
		t.Errorf("Found = %v, want true", got)
	}

	res = r.run(t, PluginID+".get_host_setting", map[string]any{"Setting": "nonexistent"})
	if got := res.Outputs["Found"]; got != false {
		t.Errorf("Found for unknown setting = %v, want false", got)
	}
}

func TestSettingsSchemaExposed(t *testing.T) {
	r := newRig(t)
	schema := r.mgr.SettingsSchema(PluginID)
	if schema == "" {
		t.Fatal("SettingsSchema() empty")
	}
	if v, ok := r.svcs.JSON().Lookup(schema, "properties.default_env_var.default"); !ok || v != "PATH" {
		t.Errorf("schema default_env_var default = (%q, %v), want PATH", v, ok)
	}
}
