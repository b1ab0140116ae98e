// Package configplug is an example plugin exercising the host data-format
// services (JSON path lookup, CSV parsing, INI access), a settings schema,
// and nested editor menus.
package configplug

import (
	"github.com/glyph-labs/glyphflow/core"
	"github.com/glyph-labs/glyphflow/plugin"
)

// PluginID is the stable reverse-DNS identifier of this plugin.
const PluginID = "com.glyphflow.example.config"

const settingsSchema = `{
	"type": "object",
	"properties": {
		"enabled": {
			"type": "boolean",
			"title": "Enable Plugin",
			"description": "Enable or disable the plugin functionality",
			"default": true
		},
		"log_level": {
			"type": "string",
			"title": "Log Level",
			"enum": ["debug", "info", "warn", "error"],
			"default": "info"
		},
		"max_items": {
			"type": "integer",
			"title": "Maximum Items",
			"minimum": 1,
			"maximum": 1000,
			"default": 100
		},
		"api_key": {
			"type": "string",
			"title": "API Key",
			"description": "Optional API key for external services",
			"default": ""
		}
	},
	"required": ["enabled", "log_level"]
}`

// Plugin implements plugin.Plugin, plugin.SettingsHandler, and
// plugin.MenuProvider.
type Plugin struct {
	host core.HostServices
}

// New returns a fresh config plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Info() core.PluginInfo {
	return core.PluginInfo{
		ID:              PluginID,
		Name:            "Config Plugin",
		Version:         "1.0.0",
		Author:          "GlyphFlow Team",
		Description:     "Example plugin demonstrating settings, menus, and data formats",
		BoundaryVersion: core.BoundaryVersion,
	}
}

func (p *Plugin) OnLoad(host core.HostServices) error {
	p.host = host
	host.Log(core.LogInfo, "config plugin loaded")
	if host.JSON().Validate(`{"test": 123}`) {
		host.Log(core.LogDebug, "JSON validation test passed")
	}
	return nil
}

func (p *Plugin) OnRegister(reg core.NodeRegistry, _ core.ScriptRegistry) error {
	jsonColor := &core.RGB{R: 100, G: 150, B: 200}

	nodes := []struct {
		desc core.NodeDesc
		caps core.Capabilities
	}{
		{
			desc: core.NodeDesc{
				Name:        "Parse JSON",
				Category:    "Config",
				UniqueName:  PluginID + ".json_parse",
				Description: "Parse JSON and extract value at path",
				Pins: []core.PinDesc{
					core.ExecPinIn("Execute"),
					core.DataPinIn("JSON", "string"),
					core.DataPinIn("Path", "string"),
					core.ExecPinOut("Done"),
					core.DataPinOut("Value", "string"),
					core.DataPinOut("Valid", "bool"),
				},
				Color: jsonColor,
			},
			caps: core.Capabilities{Execute: jsonParseExecute},
		},
		{
			desc: core.NodeDesc{
				Name:        "Parse CSV",
				Category:    "Config",
				UniqueName:  PluginID + ".csv_parse",
				Description: "Parse CSV data",
				Pins: []core.PinDesc{
					core.ExecPinIn("Execute"),
					core.DataPinIn("CSV", "string"),
					core.DataPinIn("Delimiter", "string"),
					core.ExecPinOut("Done"),
					core.DataPinOut("RowCount", "int"),
					core.DataPinOut("FirstCell", "string"),
				},
				Color: jsonColor,
			},
			caps: core.Capabilities{Execute: csvParseExecute},
		},
		{
			desc: core.NodeDesc{
				Name:        "INI Get",
				Category:    "Config",
				UniqueName:  PluginID + ".ini_get",
				Description: "Get value from INI configuration",
				Pins: []core.PinDesc{
					core.ExecPinIn("Execute"),
					core.DataPinIn("INI", "string"),
					core.DataPinIn("Section", "string"),
					core.DataPinIn("Key", "string"),
					core.ExecPinOut("Done"),
					core.DataPinOut("Value", "string"),
					core.DataPinOut("Found", "bool"),
				},
				Color: &core.RGB{R: 150, G: 120, B: 180},
			},
			caps: core.Capabilities{Execute: iniGetExecute},
		},
	}

	for _, n := range nodes {
		if _, err := reg.RegisterNode(n.desc, n.caps); err != nil {
			return err
		}
	}
	if p.host != nil {
		p.host.Logf(core.LogInfo, "config plugin registered %d nodes", len(nodes))
	}
	return nil
}

func (p *Plugin) OnUnload() {
	if p.host != nil {
		p.host.Log(core.LogInfo, "config plugin unloaded")
	}
	p.host = nil
}

// SettingsSchema declares the plugin's settings shape.
func (p *Plugin) SettingsSchema() string { return settingsSchema }

func (p *Plugin) OnSettingsChanged(settings string) {
	if p.host == nil {
		return
	}
	p.host.Log(core.LogInfo, "config plugin settings changed")
	if enabled, ok := p.host.JSON().Lookup(settings, "enabled"); ok {
		p.host.Logf(core.LogDebug, "enabled = %s", enabled)
	}
}

// Menus contributes a plugin menu with a nested export submenu.
func (p *Plugin) Menus() []plugin.MenuRegistration {
	return []plugin.MenuRegistration{
		{
			Path: "Plugins/Config",
			Items: []plugin.MenuItem{
				{Label: "Show Settings", ActionID: PluginID + ".show_settings"},
				{Label: "Reload Config", ActionID: PluginID + ".reload"},
				plugin.Separator(),
				{
					Label: "Export",
					Children: []plugin.MenuItem{
						{Label: "As JSON...", ActionID: PluginID + ".export.json"},
						{Label: "As CSV...", ActionID: PluginID + ".export.csv"},
						{Label: "As INI...", ActionID: PluginID + ".export.ini"},
					},
				},
			},
		},
	}
}

// OnMenuAction handles menu item activations.
func (p *Plugin) OnMenuAction(actionID string) {
	if p.host == nil {
		return
	}
	p.host.Logf(core.LogInfo, "config plugin menu action %s", actionID)
}

func jsonParseExecute(inst core.Instance, ctx core.ExecContext) bool {
	doc := ctx.InputString("JSON")
	path := ctx.InputString("Path")

	value, ok := ctx.Host().JSON().Lookup(doc, path)
	ctx.SetOutputString("Value", value)
	ctx.SetOutputBool("Valid", ok)
	return true
}

func csvParseExecute(inst core.Instance, ctx core.ExecContext) bool {
	doc := ctx.InputString("CSV")
	delim := rune(0)
	if s := ctx.InputString("Delimiter"); s != "" {
		delim = rune(s[0])
	}

	rows, err := ctx.Host().CSV().Parse(doc, delim)
	if err != nil {
		ctx.SetOutputInt("RowCount", 0)
		ctx.SetOutputString("FirstCell", "")
		return true
	}

	ctx.SetOutputInt("RowCount", int64(len(rows)))
	first := ""
	if len(rows) > 0 && len(rows[0]) > 0 {
		first = rows[0][0]
	}
	ctx.SetOutputString("FirstCell", first)
	return true
}

func iniGetExecute(inst core.Instance, ctx core.ExecContext) bool {
	doc := ctx.InputString("INI")
	section := ctx.InputString("Section")
	key := ctx.InputString("Key")

	value, found := ctx.Host().INI().Get(doc, section, key)
	ctx.SetOutputString("Value", value)
	ctx.SetOutputBool("Found", found)
	return true
}

var (
	_ plugin.Plugin            = (*Plugin)(nil)
	_ plugin.SettingsHandler   = (*Plugin)(nil)
	_ plugin.MenuProvider      = (*Plugin)(nil)
	_ plugin.MenuActionHandler = (*Plugin)(nil)
)
