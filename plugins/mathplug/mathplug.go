// Package mathplug is an example plugin providing pure-data math nodes.
// None of its nodes carry execution pins: the graph evaluates them on
// demand when a downstream node pulls their outputs.
package mathplug

import (
	"math"

	"github.com/glyph-labs/glyphflow/core"
	"github.com/glyph-labs/glyphflow/plugin"
)

// PluginID is the stable reverse-DNS identifier of this plugin.
const PluginID = "com.glyphflow.example.math"

var mathColor = &core.RGB{R: 100, G: 200, B: 100}

// Plugin implements plugin.Plugin.
type Plugin struct {
	host core.HostServices
}

// New returns a fresh math plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Info() core.PluginInfo {
	return core.PluginInfo{
		ID:              PluginID,
		Name:            "Math Plugin",
		Version:         "1.0.0",
		Author:          "GlyphFlow Team",
		Description:     "Example plugin providing pure data math nodes",
		BoundaryVersion: core.BoundaryVersion,
	}
}

func (p *Plugin) OnLoad(host core.HostServices) error {
	p.host = host
	host.Log(core.LogInfo, "math plugin loaded")
	return nil
}

func (p *Plugin) OnRegister(reg core.NodeRegistry, _ core.ScriptRegistry) error {
	binaryPins := []core.PinDesc{
		core.DataPinIn("A", "float"),
		core.DataPinIn("B", "float"),
		core.DataPinOut("Result", "float"),
	}

	nodes := []struct {
		desc core.NodeDesc
		caps core.Capabilities
	}{
		{
			desc: core.NodeDesc{
				Name:        "Add",
				Category:    "Math",
				UniqueName:  PluginID + ".add",
				Description: "Add two numbers together",
				Pins:        binaryPins,
				Flags:       core.FlagPureData,
				Color:       mathColor,
			},
			caps: core.Capabilities{
				Execute: func(inst core.Instance, ctx core.ExecContext) bool {
					ctx.SetOutputFloat("Result", ctx.InputFloat("A")+ctx.InputFloat("B"))
					return true
				},
			},
		},
		{
			desc: core.NodeDesc{
				Name:        "Multiply",
				Category:    "Math",
				UniqueName:  PluginID + ".multiply",
				Description: "Multiply two numbers",
				Pins:        binaryPins,
				Flags:       core.FlagPureData,
				Color:       mathColor,
			},
			caps: core.Capabilities{
				Execute: func(inst core.Instance, ctx core.ExecContext) bool {
					ctx.SetOutputFloat("Result", ctx.InputFloat("A")*ctx.InputFloat("B"))
					return true
				},
			},
		},
		{
			desc: core.NodeDesc{
				Name:        "Divide",
				Category:    "Math",
				UniqueName:  PluginID + ".divide",
				Description: "Divide A by B",
				Pins:        binaryPins,
				Flags:       core.FlagPureData,
				Color:       mathColor,
			},
			caps: core.Capabilities{
				Execute: func(inst core.Instance, ctx core.ExecContext) bool {
					b := ctx.InputFloat("B")
					if b == 0 {
						ctx.SetError("Division by zero")
						return false
					}
					ctx.SetOutputFloat("Result", ctx.InputFloat("A")/b)
					return true
				},
			},
		},
		{
			desc: core.NodeDesc{
				Name:        "Power",
				Category:    "Math",
				UniqueName:  PluginID + ".power",
				Description: "Raise Base to the power of Exponent",
				Pins: []core.PinDesc{
					core.DataPinIn("Base", "float"),
					core.DataPinIn("Exponent", "float"),
					core.DataPinOut("Result", "float"),
				},
				Flags: core.FlagPureData,
				Color: mathColor,
			},
			caps: core.Capabilities{
				Execute: func(inst core.Instance, ctx core.ExecContext) bool {
					ctx.SetOutputFloat("Result", math.Pow(ctx.InputFloat("Base"), ctx.InputFloat("Exponent")))
					return true
				},
			},
		},
	}

	for _, n := range nodes {
		if _, err := reg.RegisterNode(n.desc, n.caps); err != nil {
			return err
		}
	}
	if p.host != nil {
		p.host.Logf(core.LogInfo, "math plugin registered %d nodes", len(nodes))
	}
	return nil
}

func (p *Plugin) OnUnload() {
	if p.host != nil {
		p.host.Log(core.LogInfo, "math plugin unloaded")
	}
	p.host = nil
}

var _ plugin.Plugin = (*Plugin)(nil)
