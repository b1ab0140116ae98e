// Package timerplug is an example plugin providing time-driven nodes: a
// trigger-event node firing on a configurable interval and an async delay
// node. It also carries fault-injection hooks, enabled through application
// environment flags, used to exercise the host containment barrier.
package timerplug

import (
	"strconv"
	"sync"
	"time"

	"github.com/glyph-labs/glyphflow/core"
	"github.com/glyph-labs/glyphflow/plugin"
)

// PluginID is the stable reverse-DNS identifier of this plugin.
const PluginID = "com.glyphflow.example.timer"

// Application environment flags that arm deliberate panics, used by host
// containment tests. Unset in normal operation.
const (
	FlagPanicOnLoad       = "GLYPHFLOW_TEST_TIMER_PANIC_ON_LOAD"
	FlagPanicOnRegister   = "GLYPHFLOW_TEST_TIMER_PANIC_ON_REGISTER"
	FlagPanicDelayExecute = "GLYPHFLOW_TEST_TIMER_PANIC_IN_DELAY_EXECUTE"
)

func testFlagEnabled(host core.HostServices, key string) bool {
	if host == nil {
		return false
	}
	v, ok := host.AppEnv().Get(key)
	if !ok {
		return false
	}
	return v == "1" || v == "true" || v == "TRUE"
}

// Plugin implements plugin.Plugin.
type Plugin struct {
	host core.HostServices
}

// New returns a fresh timer plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Info() core.PluginInfo {
	return core.PluginInfo{
		ID:              PluginID,
		Name:            "Timer Plugin",
		Version:         "1.0.0",
		Author:          "GlyphFlow Team",
		Description:     "Example plugin providing trigger-event and async delay nodes",
		BoundaryVersion: core.BoundaryVersion,
	}
}

func (p *Plugin) OnLoad(host core.HostServices) error {
	p.host = host
	if testFlagEnabled(host, FlagPanicOnLoad) {
		panic("timer plugin test panic in OnLoad")
	}
	host.Log(core.LogInfo, "timer plugin loaded")
	return nil
}

func (p *Plugin) OnRegister(reg core.NodeRegistry, _ core.ScriptRegistry) error {
	if testFlagEnabled(p.host, FlagPanicOnRegister) {
		panic("timer plugin test panic in OnRegister")
	}

	if _, err := reg.RegisterNode(p.timerEventDesc(), p.timerEventCaps()); err != nil {
		return err
	}
	if _, err := reg.RegisterNode(p.delayDesc(), p.delayCaps()); err != nil {
		return err
	}
	if p.host != nil {
		p.host.Log(core.LogInfo, "timer plugin registered 2 nodes")
	}
	return nil
}

func (p *Plugin) OnUnload() {
	if p.host != nil {
		p.host.Log(core.LogInfo, "timer plugin unloaded")
	}
	p.host = nil
}

// timerInstance is the per-node state of one Timer Event node. The timer
// callback fires on the host timing thread while the graph loop may be
// stopping the node, so everything is guarded by mu.
type timerInstance struct {
	mu        sync.Mutex
	timerID   core.TimerHandle
	ctx       core.ExecContext
	active    bool
	tickCount int64
}

func (n *timerInstance) fire() {
	n.mu.Lock()
	if !n.active || n.ctx == nil {
		n.mu.Unlock()
		return
	}
	n.tickCount++
	count := n.tickCount
	ctx := n.ctx
	n.mu.Unlock()

	ctx.SetOutputInt("TickCount", count)
	ctx.TriggerOutput("OnTimer")
}

func (p *Plugin) timerEventDesc() core.NodeDesc {
	return core.NodeDesc{
		Name:        "Timer Event",
		Category:    "Events",
		UniqueName:  PluginID + ".event",
		Description: "Fires at a configurable interval",
		Pins: []core.PinDesc{
			core.DataPinIn("IntervalMs", "int"),
			core.ExecPinOut("OnTimer"),
			core.DataPinOut("TickCount", "int"),
		},
		Flags: core.FlagTriggerEvent | core.FlagStateful,
		Color: &core.RGB{R: 200, G: 150, B: 100},
	}
}

func (p *Plugin) timerEventCaps() core.Capabilities {
	return core.Capabilities{
		Create: func() core.Instance { return &timerInstance{} },
		Destroy: func(inst core.Instance) {
			n := inst.(*timerInstance)
			n.mu.Lock()
			id := n.timerID
			n.timerID = 0
			n.active = false
			n.mu.Unlock()
			if id != 0 && p.host != nil {
				p.host.DestroyTimer(id)
			}
		},
		StartListening: func(inst core.Instance, ctx core.ExecContext) bool {
			if p.host == nil {
				return false
			}
			n := inst.(*timerInstance)

			intervalMs := 1000
			if s := ctx.Property("IntervalMs"); s != "" {
				if v, err := strconv.Atoi(s); err == nil && v > 0 {
					intervalMs = v
				}
			}

			n.mu.Lock()
			n.ctx = ctx
			n.active = true
			n.tickCount = 0
			n.mu.Unlock()

			id := p.host.CreateTimer(time.Duration(intervalMs)*time.Millisecond, n.fire)
			if id == 0 {
				p.host.Log(core.LogError, "failed to create timer")
				n.mu.Lock()
				n.active = false
				n.mu.Unlock()
				return false
			}

			n.mu.Lock()
			n.timerID = id
			n.mu.Unlock()
			p.host.Logf(core.LogInfo, "timer started with interval %d ms", intervalMs)
			return true
		},
		StopListening: func(inst core.Instance) {
			n := inst.(*timerInstance)
			n.mu.Lock()
			id := n.timerID
			n.timerID = 0
			n.active = false
			n.ctx = nil
			n.mu.Unlock()
			if id != 0 && p.host != nil {
				p.host.DestroyTimer(id)
				p.host.Log(core.LogInfo, "timer stopped")
			}
		},
	}
}

// delayInstance is the per-node state of one Delay node.
type delayInstance struct {
	mu        sync.Mutex
	timerID   core.TimerHandle
	ctx       core.ExecContext
	completed bool
}

func (p *Plugin) delayDesc() core.NodeDesc {
	return core.NodeDesc{
		Name:        "Delay",
		Category:    "Flow Control",
		UniqueName:  PluginID + ".delay",
		Description: "Delays execution by specified milliseconds",
		Pins: []core.PinDesc{
			core.ExecPinIn("Execute"),
			core.DataPinIn("DelayMs", "int"),
			core.ExecPinOut("OnComplete"),
		},
		Flags: core.FlagAsync | core.FlagStateful,
		Color: &core.RGB{R: 150, G: 150, B: 200},
	}
}

func (p *Plugin) delayCaps() core.Capabilities {
	return core.Capabilities{
		Create: func() core.Instance { return &delayInstance{} },
		Destroy: func(inst core.Instance) {
			n := inst.(*delayInstance)
			n.mu.Lock()
			id := n.timerID
			n.timerID = 0
			n.mu.Unlock()
			if id != 0 && p.host != nil {
				p.host.DestroyTimer(id)
			}
		},
		Execute: func(inst core.Instance, ctx core.ExecContext) bool {
			if testFlagEnabled(p.host, FlagPanicDelayExecute) {
				panic("timer plugin test panic in delay execute")
			}
			if p.host == nil {
				ctx.SetError("host services unavailable")
				return false
			}
			n := inst.(*delayInstance)

			delayMs := ctx.InputInt("DelayMs")
			if delayMs <= 0 {
				delayMs = 1000
			}

			n.mu.Lock()
			n.ctx = ctx
			n.completed = false
			n.mu.Unlock()

			// One-shot: the guard swallows repeat firings; the handle is
			// released on the poll path, never from inside the callback.
			id := p.host.CreateTimer(time.Duration(delayMs)*time.Millisecond, func() {
				n.mu.Lock()
				if n.completed {
					n.mu.Unlock()
					return
				}
				n.completed = true
				doneCtx := n.ctx
				n.mu.Unlock()

				if doneCtx != nil {
					doneCtx.TriggerOutput("OnComplete")
				}
			})
			if id == 0 {
				p.host.Log(core.LogError, "failed to create delay timer")
				ctx.SetError("failed to create delay timer")
				return false
			}

			n.mu.Lock()
			n.timerID = id
			n.mu.Unlock()
			p.host.Logf(core.LogDebug, "delay started: %d ms", delayMs)
			return true
		},
		IsComplete: func(inst core.Instance) bool {
			n := inst.(*delayInstance)
			n.mu.Lock()
			done := n.completed
			var release core.TimerHandle
			if done && n.timerID != 0 {
				release = n.timerID
				n.timerID = 0
			}
			n.mu.Unlock()
			if release != 0 && p.host != nil {
				p.host.DestroyTimer(release)
			}
			return done
		},
	}
}

var _ plugin.Plugin = (*Plugin)(nil)
