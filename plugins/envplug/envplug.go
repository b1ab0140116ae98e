// Package envplug is an example plugin exposing host environment and
// settings lookups as nodes: environment variables, plugin settings, and
// host application settings.
package envplug

import (
	"github.com/glyph-labs/glyphflow/core"
	"github.com/glyph-labs/glyphflow/plugin"
)

// PluginID is the stable reverse-DNS identifier of this plugin.
const PluginID = "com.glyphflow.example.env"

const settingsSchema = `{
	"type": "object",
	"properties": {
		"default_env_var": {
			"type": "string",
			"title": "Default Environment Variable",
			"description": "Default environment variable name to look up",
			"default": "PATH"
		},
		"show_debug_info": {
			"type": "boolean",
			"title": "Show Debug Info",
			"description": "Log additional debug information",
			"default": false
		}
	}
}`

// Plugin implements plugin.Plugin and plugin.SettingsHandler.
type Plugin struct {
	host core.HostServices
}

// New returns a fresh environment plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Info() core.PluginInfo {
	return core.PluginInfo{
		ID:              PluginID,
		Name:            "Environment Plugin",
		Version:         "1.0.0",
		Author:          "GlyphFlow Team",
		Description:     "Example plugin demonstrating environment variable and settings access",
		BoundaryVersion: core.BoundaryVersion,
	}
}

func (p *Plugin) OnLoad(host core.HostServices) error {
	p.host = host
	host.Log(core.LogInfo, "environment plugin loaded")
	if host.OSEnv().Has("PATH") {
		host.Log(core.LogDebug, "PATH environment variable is accessible")
	}
	return nil
}

func (p *Plugin) OnRegister(reg core.NodeRegistry, _ core.ScriptRegistry) error {
	envColor := &core.RGB{R: 80, G: 160, B: 120}

	nodes := []struct {
		desc core.NodeDesc
		caps core.Capabilities
	}{
		{
			desc: core.NodeDesc{
				Name:        "Get Env Variable",
				Category:    "Environment",
				UniqueName:  PluginID + ".get_env",
				Description: "Get environment variable value from the flow or OS environment",
				Pins: []core.PinDesc{
					core.ExecPinIn("Execute"),
					core.DataPinIn("Name", "string"),
					core.ExecPinOut("Done"),
					core.DataPinOut("Value", "string"),
					core.DataPinOut("Exists", "bool"),
				},
				Color: envColor,
			},
			caps: core.Capabilities{Execute: p.getEnvExecute},
		},
		{
			desc: core.NodeDesc{
				Name:        "Get Plugin Settings",
				Category:    "Environment",
				UniqueName:  PluginID + ".get_plugin_settings",
				Description: "Get a plugin's current settings as JSON",
				Pins: []core.PinDesc{
					core.ExecPinIn("Execute"),
					core.DataPinIn("PluginID", "string"),
					core.ExecPinOut("Done"),
					core.DataPinOut("Settings", "json"),
				},
				Color: &core.RGB{R: 120, G: 100, B: 180},
			},
			caps: core.Capabilities{Execute: p.pluginSettingsExecute},
		},
		{
			desc: core.NodeDesc{
				Name:        "Get Host Setting",
				Category:    "Environment",
				UniqueName:  PluginID + ".get_host_setting",
				Description: "Get a host application setting (cache_directory, flows_directory, ...)",
				Pins: []core.PinDesc{
					core.ExecPinIn("Execute"),
					core.DataPinIn("Setting", "string"),
					core.ExecPinOut("Done"),
					core.DataPinOut("Value", "string"),
					core.DataPinOut("Found", "bool"),
				},
				Color: &core.RGB{R: 180, G: 100, B: 100},
			},
			caps: core.Capabilities{Execute: p.hostSettingExecute},
		},
	}

	for _, n := range nodes {
		if _, err := reg.RegisterNode(n.desc, n.caps); err != nil {
			return err
		}
	}
	if p.host != nil {
		p.host.Logf(core.LogInfo, "environment plugin registered %d nodes", len(nodes))
	}
	return nil
}

func (p *Plugin) OnUnload() {
	if p.host != nil {
		p.host.Log(core.LogInfo, "environment plugin unloaded")
	}
	p.host = nil
}

// SettingsSchema declares the plugin's settings shape.
func (p *Plugin) SettingsSchema() string { return settingsSchema }

func (p *Plugin) OnSettingsChanged(settings string) {
	if p.host == nil {
		return
	}
	p.host.Log(core.LogInfo, "environment plugin settings changed")
	if v, ok := p.host.JSON().Lookup(settings, "show_debug_info"); ok && v == "true" {
		p.host.Log(core.LogDebug, "debug mode enabled")
	}
}

// getEnvExecute resolves a name against the flow environment first, then
// the OS environment.
func (p *Plugin) getEnvExecute(inst core.Instance, ctx core.ExecContext) bool {
	name := ctx.InputString("Name")
	host := ctx.Host()

	value, exists := host.FlowEnv().Get(name)
	if !exists {
		value, exists = host.OSEnv().Get(name)
	}
	ctx.SetOutputBool("Exists", exists)
	ctx.SetOutputString("Value", value)
	return true
}

func (p *Plugin) pluginSettingsExecute(inst core.Instance, ctx core.ExecContext) bool {
	id := ctx.InputString("PluginID")
	ctx.SetOutputJSON("Settings", ctx.Host().PluginSettings(id))
	return true
}

func (p *Plugin) hostSettingExecute(inst core.Instance, ctx core.ExecContext) bool {
	name := ctx.InputString("Setting")
	value := ctx.Host().HostSetting(name)
	ctx.SetOutputString("Value", value)
	ctx.SetOutputBool("Found", value != "")
	return true
}

var (
	_ plugin.Plugin          = (*Plugin)(nil)
	_ plugin.SettingsHandler = (*Plugin)(nil)
)
