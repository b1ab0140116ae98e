// Package runtime provides the host-side execution engine for glyphflow
// node instances: the instance arena and lifecycle state machine, capability
// dispatch behind the failure-containment barrier, execution-context pin
// marshaling, and the trigger queue that re-enters the graph from timer and
// job threads.
package runtime

import "time"

// EventKind identifies the type of event emitted by the engine.
type EventKind string

const (
	// EventInstanceCreated is emitted when a node instance enters the arena.
	EventInstanceCreated EventKind = "instance.created"

	// EventInstanceDestroyed is emitted after the destructor capability ran.
	EventInstanceDestroyed EventKind = "instance.destroyed"

	// EventNodeStarted is emitted when an execution step begins.
	EventNodeStarted EventKind = "node.started"

	// EventNodeFinished is emitted when an execution step completes
	// successfully.
	EventNodeFinished EventKind = "node.finished"

	// EventNodeFailed is emitted when a step fails: the capability
	// returned false, set_error was called, or a fault was contained.
	EventNodeFailed EventKind = "node.failed"

	// EventListenStarted is emitted when a trigger-event node is armed.
	EventListenStarted EventKind = "listen.started"

	// EventListenStopped is emitted when a trigger-event node is disarmed.
	EventListenStopped EventKind = "listen.stopped"

	// EventAsyncPending is emitted when an async node's execute returned
	// success with completion still outstanding.
	EventAsyncPending EventKind = "async.pending"

	// EventAsyncCompleted is emitted when is_complete first reports true.
	EventAsyncCompleted EventKind = "async.completed"

	// EventTriggerEnqueued is emitted when trigger_output queued a
	// graph-execution request.
	EventTriggerEnqueued EventKind = "trigger.enqueued"

	// EventTriggerDropped is emitted when the trigger queue was full and
	// the request was discarded.
	EventTriggerDropped EventKind = "trigger.dropped"

	// EventFaultContained is emitted when a fault inside plugin code was
	// stopped at the boundary and converted to a failed call.
	EventFaultContained EventKind = "fault.contained"
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Event is a structured record of what happened inside the engine.
// Events should stay small; pin payloads are not copied into them.
type Event struct {
	// Kind identifies the event type.
	Kind EventKind

	// ExecID identifies one execution step (empty for non-step events).
	ExecID string

	// Instance is the node instance the event concerns (0 for none).
	Instance InstanceID

	// Type is the unique name of the instance's node type.
	Type string

	// Time is when the event occurred.
	Time time.Time

	// Elapsed is the duration since the step started, where applicable.
	Elapsed time.Duration

	// Payload contains event-specific data. Keep it small.
	Payload map[string]any
}

// NewEvent creates an event with the current timestamp.
func NewEvent(kind EventKind, inst InstanceID, typ string) Event {
	return Event{
		Kind:     kind,
		Instance: inst,
		Type:     typ,
		Time:     time.Now(),
		Payload:  map[string]any{},
	}
}

// WithExec sets the execution step ID and returns the event for chaining.
func (e Event) WithExec(execID string) Event {
	e.ExecID = execID
	return e
}

// WithElapsed sets the elapsed duration and returns the event for chaining.
func (e Event) WithElapsed(d time.Duration) Event {
	e.Elapsed = d
	return e
}

// WithPayload adds a payload entry and returns the event for chaining.
func (e Event) WithPayload(key string, value any) Event {
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}
	e.Payload[key] = value
	return e
}

// EventHandler receives events during engine operation.
type EventHandler func(Event)

// TriggerRequest is one graph-execution request enqueued by trigger_output.
// The host graph scheduler drains these and performs the downstream state
// transition on its own thread; plugin threads never mutate graph state.
type TriggerRequest struct {
	// ID is a unique identifier for this request.
	ID string

	// Instance is the node that fired.
	Instance InstanceID

	// Type is the unique name of the firing node's type.
	Type string

	// Pin is the execution-output pin that fired.
	Pin string

	// Outputs is a snapshot of the context's buffered outputs at the
	// moment of the trigger.
	Outputs map[string]any

	// At is when the trigger was enqueued.
	At time.Time
}
