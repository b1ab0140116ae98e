package runtime

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/glyph-labs/glyphflow/core"
	"github.com/glyph-labs/glyphflow/registry"
)

// Engine errors.
var (
	ErrUnknownType     = errors.New("unknown node type")
	ErrUnknownInstance = errors.New("unknown instance")
	ErrBusy            = errors.New("instance is executing")
	ErrBadState        = errors.New("operation not valid in current state")
	ErrExecution       = errors.New("node execution failed")
	ErrListenRefused   = errors.New("start_listening refused")
)

// InstanceID is the opaque handle for a node instance in the arena.
// Zero is never a valid handle.
type InstanceID uint64

// InstanceState is the lifecycle state of a node instance.
type InstanceState int32

const (
	StateCreated InstanceState = iota
	StateIdle
	StateExecuting
	StateListening
	StateAwaitingAsync
	StateDestroyed
)

// String returns the lowercase name of the state.
func (s InstanceState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateIdle:
		return "idle"
	case StateExecuting:
		return "executing"
	case StateListening:
		return "listening"
	case StateAwaitingAsync:
		return "awaiting-async"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// instance is one arena entry: plugin state boxed behind the handle, the
// resolved registry entry, and the lifecycle state. The state mutex also
// provides the single-flight guarantee per instance.
type instance struct {
	id    InstanceID
	entry *registry.Entry
	state InstanceState
	mu    sync.Mutex

	// declared pin layout by name, resolved once at creation
	pins map[string]core.PinDesc

	// boxed plugin state; nil is legal for stateless types
	inst core.Instance

	// retained context for listening and awaiting-async instances
	liveCtx *execContext
}

func (n *instance) typeName() string {
	return n.entry.Desc.UniqueName
}

// Options configure an Engine.
type Options struct {
	// TriggerQueueDepth bounds the trigger queue (default 256). Requests
	// arriving while the queue is full are dropped and logged.
	TriggerQueueDepth int

	// EventBufferDepth bounds the engine event channel (default 128).
	EventBufferDepth int

	// EventHandler, if set, receives every event synchronously.
	EventHandler EventHandler

	// Logger receives engine and containment logging. Defaults to a
	// disabled logger.
	Logger zerolog.Logger
}

// Engine owns the instance arena and dispatches capability calls across the
// plugin boundary. Every plugin-supplied call goes through the containment
// barrier: a fault inside plugin code is logged and converted to a failed
// call, never allowed to unwind host frames.
type Engine struct {
	reg  *registry.Registry
	host core.HostServices
	log  zerolog.Logger

	handler  EventHandler
	events   chan Event
	triggers chan TriggerRequest

	mu        sync.Mutex
	instances map[InstanceID]*instance
	nextID    InstanceID
}

// NewEngine creates an engine over the given registry and host services.
func NewEngine(reg *registry.Registry, host core.HostServices, opts Options) *Engine {
	if opts.TriggerQueueDepth <= 0 {
		opts.TriggerQueueDepth = 256
	}
	if opts.EventBufferDepth <= 0 {
		opts.EventBufferDepth = 128
	}
	return &Engine{
		reg:       reg,
		host:      host,
		log:       opts.Logger,
		handler:   opts.EventHandler,
		events:    make(chan Event, opts.EventBufferDepth),
		triggers:  make(chan TriggerRequest, opts.TriggerQueueDepth),
		instances: make(map[InstanceID]*instance),
		nextID:    1,
	}
}

// Events returns the engine event channel. Events are dropped when the
// channel is full; attach an EventHandler for lossless delivery.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Triggers returns the graph-execution request queue. The host graph
// scheduler drains it on a single goroutine. Requests enqueued before the
// scheduler starts draining are retained in the buffer, not dropped; only a
// full buffer drops (with a warning and an EventTriggerDropped).
func (e *Engine) Triggers() <-chan TriggerRequest {
	return e.triggers
}

func (e *Engine) emit(ev Event) {
	if e.handler != nil {
		e.handler(ev)
	}
	select {
	case e.events <- ev:
	default:
		// Drop if channel is full
	}
}

func (e *Engine) enqueueTrigger(req TriggerRequest) {
	select {
	case e.triggers <- req:
		e.emit(NewEvent(EventTriggerEnqueued, req.Instance, req.Type).
			WithExec(req.ID).
			WithPayload("pin", req.Pin))
	default:
		e.log.Warn().
			Uint64("instance", uint64(req.Instance)).
			Str("type", req.Type).
			Str("pin", req.Pin).
			Msg("trigger queue full, request dropped")
		e.emit(NewEvent(EventTriggerDropped, req.Instance, req.Type).
			WithExec(req.ID).
			WithPayload("pin", req.Pin))
	}
}

// CreateInstance runs the factory capability (if any) and enters the
// instance into the arena in the Idle state.
func (e *Engine) CreateInstance(typeID core.NodeTypeID) (InstanceID, error) {
	entry, ok := e.reg.Get(typeID)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownType, typeID)
	}

	var boxed core.Instance
	if entry.Capabilities.Create != nil {
		ok := e.contain("create", 0, entry.Desc.UniqueName, func() bool {
			boxed = entry.Capabilities.Create()
			return true
		})
		if !ok {
			return 0, fmt.Errorf("%w: create faulted for %q", ErrExecution, entry.Desc.UniqueName)
		}
	}

	n := &instance{
		entry: entry,
		state: StateIdle,
		inst:  boxed,
		pins:  make(map[string]core.PinDesc, len(entry.Desc.Pins)),
	}
	for _, p := range entry.Desc.Pins {
		n.pins[p.Name] = p
	}

	e.mu.Lock()
	n.id = e.nextID
	e.nextID++
	e.instances[n.id] = n
	e.mu.Unlock()

	e.emit(NewEvent(EventInstanceCreated, n.id, entry.Desc.UniqueName))
	return n.id, nil
}

// DestroyInstance runs the destructor capability exactly once and removes
// the instance from the arena. Valid from Idle, Listening (stop_listening is
// invoked first), and AwaitingAsyncCompletion (the destructor releases any
// outstanding timer or job itself). Invalid while Executing.
func (e *Engine) DestroyInstance(id InstanceID) error {
	n, err := e.get(id)
	if err != nil {
		return err
	}

	n.mu.Lock()
	switch n.state {
	case StateExecuting:
		n.mu.Unlock()
		return fmt.Errorf("%w: destroy while executing", ErrBusy)
	case StateDestroyed:
		n.mu.Unlock()
		return fmt.Errorf("%w: already destroyed", ErrBadState)
	case StateListening:
		e.stopListeningLocked(n)
	}
	n.state = StateDestroyed
	n.liveCtx = nil
	n.mu.Unlock()

	if n.entry.Capabilities.Destroy != nil {
		e.contain("destroy", id, n.typeName(), func() bool {
			n.entry.Capabilities.Destroy(n.inst)
			return true
		})
	}

	e.mu.Lock()
	delete(e.instances, id)
	e.mu.Unlock()

	e.emit(NewEvent(EventInstanceDestroyed, id, n.typeName()))
	return nil
}

// State reports the lifecycle state of an instance. Destroyed instances
// leave the arena, so unknown handles report StateDestroyed.
func (e *Engine) State(id InstanceID) InstanceState {
	e.mu.Lock()
	n, ok := e.instances[id]
	e.mu.Unlock()
	if !ok {
		return StateDestroyed
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// ExecParams carry the per-step bindings for one execution: upstream input
// values keyed by pin name and editor-set properties.
type ExecParams struct {
	Inputs map[string]any
	Props  map[string]string
}

// ExecResult is the outcome of one execution step.
type ExecResult struct {
	// Success is false when execute returned false, set_error was
	// called, or a fault was contained.
	Success bool

	// Err is the node's error message, if any.
	Err string

	// Outputs holds the buffered pin outputs. Nil on failure: a failed
	// step publishes nothing downstream.
	Outputs map[string]any

	// FiredPins lists execution-output pins triggered during the step.
	// Empty on failure: failure suppresses execution-edge propagation.
	FiredPins []string

	// AsyncPending is true when an async node's completion is still
	// outstanding and must be discovered through PollComplete.
	AsyncPending bool

	// ExecID identifies the step in the event stream.
	ExecID string
}

// Execute drives one synchronous execution step: Idle -> Executing ->
// back to Idle (or AwaitingAsyncCompletion for async types). The engine
// guarantees single-flight per instance; concurrent Execute on the same
// handle fails with ErrBusy.
func (e *Engine) Execute(id InstanceID, params ExecParams) (*ExecResult, error) {
	n, err := e.get(id)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	if n.state != StateIdle {
		state := n.state
		n.mu.Unlock()
		if state == StateExecuting {
			return nil, fmt.Errorf("%w: instance %d", ErrBusy, id)
		}
		return nil, fmt.Errorf("%w: execute from %s", ErrBadState, state)
	}
	n.state = StateExecuting
	n.mu.Unlock()

	ctx := newExecContext(e, n, params.Inputs, params.Props)
	ctx.bufferTriggers()
	start := time.Now()
	e.emit(NewEvent(EventNodeStarted, id, n.typeName()).WithExec(ctx.execID))

	caps := n.entry.Capabilities
	if caps.PreExecute != nil {
		e.contain("on_pre_execute", id, n.typeName(), func() bool {
			caps.PreExecute(n.inst, ctx)
			return true
		})
	}

	// A type without execute is a valid no-op (the table entry is
	// optional); registration already enforced execute where mandatory.
	success := true
	if caps.Execute != nil {
		success = e.contain("execute", id, n.typeName(), func() bool {
			return caps.Execute(n.inst, ctx)
		})
	}
	if _, failed := ctx.failed(); failed {
		success = false
	}

	if caps.PostExecute != nil {
		e.contain("on_post_execute", id, n.typeName(), func() bool {
			caps.PostExecute(n.inst, ctx, success)
			return true
		})
	}

	elapsed := time.Since(start)
	result := &ExecResult{Success: success, ExecID: ctx.execID}
	result.Err, _ = ctx.failed()

	if !success {
		ctx.discardTriggers()
		n.mu.Lock()
		n.state = StateIdle
		n.mu.Unlock()
		e.emit(NewEvent(EventNodeFailed, id, n.typeName()).
			WithExec(ctx.execID).
			WithElapsed(elapsed).
			WithPayload("error", result.Err))
		return result, nil
	}

	// Async types stay pending until is_complete reports true; the
	// context is retained so late outputs and triggers still land.
	if n.entry.Desc.Flags.Has(core.FlagAsync) {
		complete := e.contain("is_complete", id, n.typeName(), func() bool {
			return caps.IsComplete(n.inst)
		})
		if !complete {
			n.mu.Lock()
			n.state = StateAwaitingAsync
			n.liveCtx = ctx
			n.mu.Unlock()
			ctx.flushTriggers()
			result.AsyncPending = true
			e.emit(NewEvent(EventAsyncPending, id, n.typeName()).
				WithExec(ctx.execID).
				WithElapsed(elapsed))
			return result, nil
		}
	}

	ctx.flushTriggers()
	result.Outputs = ctx.snapshotOutputs()
	result.FiredPins = ctx.snapshotFired()

	n.mu.Lock()
	n.state = StateIdle
	n.mu.Unlock()

	e.emit(NewEvent(EventNodeFinished, id, n.typeName()).
		WithExec(ctx.execID).
		WithElapsed(elapsed))
	return result, nil
}

// PollComplete polls an awaiting-async instance. Returns the final result
// once is_complete reports true; (nil, false) while still pending.
// Completion is idempotent: polling a non-awaiting instance reports done.
func (e *Engine) PollComplete(id InstanceID) (*ExecResult, bool) {
	n, err := e.get(id)
	if err != nil {
		return nil, true
	}

	n.mu.Lock()
	if n.state != StateAwaitingAsync {
		n.mu.Unlock()
		return nil, true
	}
	ctx := n.liveCtx
	n.mu.Unlock()

	complete := e.contain("is_complete", id, n.typeName(), func() bool {
		return n.entry.Capabilities.IsComplete(n.inst)
	})
	if !complete {
		return nil, false
	}

	// Only the poller that wins the transition finalizes; a concurrent
	// poll (or a destroy) may have claimed the step while is_complete ran.
	n.mu.Lock()
	if n.state != StateAwaitingAsync || n.liveCtx != ctx {
		n.mu.Unlock()
		return nil, true
	}
	n.state = StateIdle
	n.liveCtx = nil
	n.mu.Unlock()

	result := &ExecResult{
		Success:   true,
		Outputs:   ctx.snapshotOutputs(),
		FiredPins: ctx.snapshotFired(),
		ExecID:    ctx.execID,
	}
	if msg, failed := ctx.failed(); failed {
		result.Success = false
		result.Err = msg
		result.Outputs = nil
		result.FiredPins = nil
	}

	e.emit(NewEvent(EventAsyncCompleted, id, n.typeName()).WithExec(ctx.execID))
	return result, true
}

// StartListening arms a trigger-event instance: Idle -> Listening. The
// context stays live until StopListening or DestroyInstance.
func (e *Engine) StartListening(id InstanceID, props map[string]string) error {
	n, err := e.get(id)
	if err != nil {
		return err
	}
	if n.entry.Capabilities.StartListening == nil {
		return fmt.Errorf("%w: %q has no start_listening", ErrBadState, n.typeName())
	}

	n.mu.Lock()
	if n.state != StateIdle {
		state := n.state
		n.mu.Unlock()
		return fmt.Errorf("%w: start_listening from %s", ErrBadState, state)
	}
	ctx := newExecContext(e, n, nil, props)
	n.mu.Unlock()

	ok := e.contain("start_listening", id, n.typeName(), func() bool {
		return n.entry.Capabilities.StartListening(n.inst, ctx)
	})
	if !ok {
		return fmt.Errorf("%w: %q", ErrListenRefused, n.typeName())
	}

	n.mu.Lock()
	n.state = StateListening
	n.liveCtx = ctx
	n.mu.Unlock()

	e.emit(NewEvent(EventListenStarted, id, n.typeName()).WithExec(ctx.execID))
	return nil
}

// StopListening disarms a trigger-event instance. Idempotent: stopping an
// instance that is not listening is a no-op. After it returns, the plugin
// has guaranteed quiescence (no further triggers).
func (e *Engine) StopListening(id InstanceID) error {
	n, err := e.get(id)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StateListening {
		return nil
	}
	e.stopListeningLocked(n)
	n.state = StateIdle
	n.liveCtx = nil
	return nil
}

// stopListeningLocked runs the stop_listening capability under containment.
// Caller holds n.mu.
func (e *Engine) stopListeningLocked(n *instance) {
	if n.entry.Capabilities.StopListening != nil {
		e.contain("stop_listening", n.id, n.typeName(), func() bool {
			n.entry.Capabilities.StopListening(n.inst)
			return true
		})
	}
	e.emit(NewEvent(EventListenStopped, n.id, n.typeName()))
}

// Serialize snapshots instance state through the serialize capability.
// Types without one report (nil, false): never invoked, never an error.
func (e *Engine) Serialize(id InstanceID) ([]byte, bool) {
	n, err := e.get(id)
	if err != nil || n.entry.Capabilities.Serialize == nil {
		return nil, false
	}
	var data []byte
	var ok bool
	contained := e.contain("serialize", id, n.typeName(), func() bool {
		data, ok = n.entry.Capabilities.Serialize(n.inst)
		return ok
	})
	if !contained {
		return nil, false
	}
	return data, ok
}

// Deserialize restores instance state through the deserialize capability.
func (e *Engine) Deserialize(id InstanceID, data []byte) bool {
	n, err := e.get(id)
	if err != nil || n.entry.Capabilities.Deserialize == nil {
		return false
	}
	return e.contain("deserialize", id, n.typeName(), func() bool {
		return n.entry.Capabilities.Deserialize(n.inst, data)
	})
}

// Quiesce stops every listening instance of the given type and destroys all
// of its instances. Hot reload calls this before unregistering the type so
// the registry never sees a live instance.
func (e *Engine) Quiesce(typeID core.NodeTypeID) {
	e.mu.Lock()
	var ids []InstanceID
	for id, n := range e.instances {
		if n.entry.ID == typeID {
			ids = append(ids, id)
		}
	}
	e.mu.Unlock()

	for _, id := range ids {
		_ = e.StopListening(id)
		if err := e.DestroyInstance(id); err != nil {
			e.log.Warn().Uint64("instance", uint64(id)).Err(err).Msg("quiesce: destroy failed")
		}
	}
}

func (e *Engine) get(id InstanceID) (*instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownInstance, id)
	}
	return n, nil
}
