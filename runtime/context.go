package runtime

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glyph-labs/glyphflow/core"
)

// execContext is the host-side core.ExecContext implementation. One is built
// per execution step (or per listening session for trigger-event nodes) and
// bound to the instance's declared pins.
//
// Event and async nodes retain their context and call into it from timer and
// job threads, so all mutable access is guarded by mu.
type execContext struct {
	engine *Engine
	inst   *instance

	mu        sync.Mutex
	inputs    map[string]any
	outputs   map[string]any
	props     map[string]string
	errMsg    string
	fired     []string
	execID    string
	buffering bool
	pending   []TriggerRequest
}

func newExecContext(e *Engine, inst *instance, inputs map[string]any, props map[string]string) *execContext {
	if inputs == nil {
		inputs = map[string]any{}
	}
	if props == nil {
		props = map[string]string{}
	}
	return &execContext{
		engine:  e,
		inst:    inst,
		inputs:  inputs,
		outputs: map[string]any{},
		props:   props,
		execID:  uuid.NewString(),
	}
}

// input returns the raw connected value for a data input pin.
func (c *execContext) input(pin string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.inputs[pin]
	return v, ok
}

// Typed input accessors. A missing connection or a type mismatch yields the
// documented default rather than an error; domain validation is the node's
// job.

func (c *execContext) InputString(pin string) string {
	if v, ok := c.input(pin); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (c *execContext) InputInt(pin string) int64 {
	v, ok := c.input(pin)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func (c *execContext) InputFloat(pin string) float64 {
	v, ok := c.input(pin)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func (c *execContext) InputBool(pin string) bool {
	if v, ok := c.input(pin); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func (c *execContext) InputJSON(pin string) string {
	return c.InputString(pin)
}

// setOutput buffers a value for a declared data output pin. Writes to
// undeclared pins are dropped; the declared pin layout is the contract.
func (c *execContext) setOutput(pin string, v any) {
	desc, ok := c.inst.pins[pin]
	if !ok || desc.Direction != core.PinOut || desc.Kind != core.PinData {
		c.engine.host.Logf(core.LogDebug, "node %s wrote to undeclared output pin %q", c.inst.typeName(), pin)
		return
	}
	c.mu.Lock()
	c.outputs[pin] = v
	c.mu.Unlock()
}

func (c *execContext) SetOutputString(pin string, v string) { c.setOutput(pin, v) }
func (c *execContext) SetOutputInt(pin string, v int64)     { c.setOutput(pin, v) }
func (c *execContext) SetOutputFloat(pin string, v float64) { c.setOutput(pin, v) }
func (c *execContext) SetOutputBool(pin string, v bool)     { c.setOutput(pin, v) }
func (c *execContext) SetOutputJSON(pin string, v string)   { c.setOutput(pin, v) }

func (c *execContext) Property(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.props[name]
}

func (c *execContext) SetError(msg string) {
	c.mu.Lock()
	c.errMsg = msg
	c.mu.Unlock()
}

// TriggerOutput enqueues a graph-execution request for the named execution
// output pin. Never executes in place: timer chains must not grow the call
// stack, and graph mutation stays serialized on the host loop.
//
// During a synchronous step the request is buffered instead; the engine
// flushes it after the step succeeds, so a step that later calls set_error
// or returns false emits nothing downstream.
func (c *execContext) TriggerOutput(execPin string) {
	desc, ok := c.inst.pins[execPin]
	if !ok || desc.Direction != core.PinOut || desc.Kind != core.PinExecution {
		c.engine.host.Logf(core.LogWarn, "node %s triggered unknown execution pin %q", c.inst.typeName(), execPin)
		return
	}

	c.mu.Lock()
	c.fired = append(c.fired, execPin)
	outputs := make(map[string]any, len(c.outputs))
	for k, v := range c.outputs {
		outputs[k] = v
	}
	req := TriggerRequest{
		ID:       uuid.NewString(),
		Instance: c.inst.id,
		Type:     c.inst.typeName(),
		Pin:      execPin,
		Outputs:  outputs,
		At:       time.Now(),
	}
	if c.buffering {
		c.pending = append(c.pending, req)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.engine.enqueueTrigger(req)
}

// bufferTriggers holds TriggerOutput requests until the step's outcome is
// known.
func (c *execContext) bufferTriggers() {
	c.mu.Lock()
	c.buffering = true
	c.mu.Unlock()
}

// flushTriggers releases buffered requests to the engine queue and returns
// the context to immediate delivery (async nodes keep firing after the
// synchronous step returns).
func (c *execContext) flushTriggers() {
	c.mu.Lock()
	reqs := c.pending
	c.pending = nil
	c.buffering = false
	c.mu.Unlock()
	for _, req := range reqs {
		c.engine.enqueueTrigger(req)
	}
}

// discardTriggers drops buffered requests after a failed step.
func (c *execContext) discardTriggers() {
	c.mu.Lock()
	c.pending = nil
	c.buffering = false
	c.mu.Unlock()
}

func (c *execContext) Host() core.HostServices {
	return c.engine.host
}

// failed reports whether set_error was called during this step.
func (c *execContext) failed() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg, c.errMsg != ""
}

// snapshotOutputs copies the buffered outputs for publication after a
// successful step.
func (c *execContext) snapshotOutputs() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.outputs))
	for k, v := range c.outputs {
		out[k] = v
	}
	return out
}

// snapshotFired copies the execution pins fired during this step.
func (c *execContext) snapshotFired() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.fired...)
}

var _ core.ExecContext = (*execContext)(nil)
