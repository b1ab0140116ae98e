// Package core defines the contract between the glyphflow host and its node
// plugins.
//
// This package contains:
//   - Descriptors: PinDesc, NodeDesc, and the flag sets that classify them
//   - Handles: NodeTypeID, PinTypeID, TimerHandle, JobHandle
//   - Boundary interfaces: ExecContext, HostServices, NodeRegistry
//   - The Capabilities table supplied per registered node type
//
// Everything crossing the host/plugin boundary is declared here so that a
// plugin only ever depends on core. The boundary is versioned by
// BoundaryVersion, checked when a plugin is loaded.
package core

import "time"

// BoundaryVersion is the current version of the host/plugin contract.
// A plugin whose Info reports a different value is rejected at load time.
const BoundaryVersion uint32 = 1

// LogLevel classifies messages sent through the host logging channel.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

// String returns the lowercase name of the level.
func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "debug"
	case LogInfo:
		return "info"
	case LogWarn:
		return "warn"
	case LogError:
		return "error"
	}
	return "unknown"
}

// PinDirection indicates whether a pin receives or produces values.
type PinDirection int

const (
	PinIn PinDirection = iota
	PinOut
)

// PinKind separates data-carrying pins from execution (control-flow) pins.
// Execution pins carry no payload.
type PinKind int

const (
	PinData PinKind = iota
	PinExecution
)

// PinFlags qualify how a pin may be connected and displayed.
type PinFlags uint32

const (
	PinOptional     PinFlags = 1 << 0
	PinMultiConnect PinFlags = 1 << 1
	PinHidden       PinFlags = 1 << 2
)

// PinTypeID identifies a pin value type. Built-in types have fixed IDs;
// plugin-registered custom types are assigned IDs from PinTypeCustomStart up.
type PinTypeID uint64

const (
	PinTypeNone      PinTypeID = 0
	PinTypeString    PinTypeID = 1
	PinTypeInt       PinTypeID = 2
	PinTypeFloat     PinTypeID = 3
	PinTypeBool      PinTypeID = 4
	PinTypeJSON      PinTypeID = 5
	PinTypeBlob      PinTypeID = 6
	PinTypePath      PinTypeID = 7
	PinTypeExecution PinTypeID = 100

	// PinTypeCustomStart is the first ID handed out to custom pin types.
	PinTypeCustomStart PinTypeID = 1000
)

// PinDesc describes one connector on a node type.
// Type is the declared type tag: "string", "int", "float", "bool", "json",
// "blob", "path", "execution", or the name of a registered custom type.
type PinDesc struct {
	Name      string
	Type      string
	Direction PinDirection
	Kind      PinKind
	Flags     PinFlags
}

// DataPinIn returns an input data pin descriptor.
func DataPinIn(name, typ string) PinDesc {
	return PinDesc{Name: name, Type: typ, Direction: PinIn, Kind: PinData}
}

// DataPinOut returns an output data pin descriptor.
func DataPinOut(name, typ string) PinDesc {
	return PinDesc{Name: name, Type: typ, Direction: PinOut, Kind: PinData}
}

// ExecPinIn returns an execution input pin descriptor.
func ExecPinIn(name string) PinDesc {
	return PinDesc{Name: name, Type: "execution", Direction: PinIn, Kind: PinExecution}
}

// ExecPinOut returns an execution output pin descriptor.
func ExecPinOut(name string) PinDesc {
	return PinDesc{Name: name, Type: "execution", Direction: PinOut, Kind: PinExecution}
}

// NodeFlags classify a node type and determine which Capabilities entries
// are mandatory at registration time.
type NodeFlags uint32

const (
	// FlagTriggerEvent marks a graph entry point fired by an external
	// stimulus. Requires StartListening/StopListening; forbids execution
	// input pins.
	FlagTriggerEvent NodeFlags = 1 << 0

	// FlagPureData marks a node with data pins only. Requires Execute;
	// forbids execution pins of either direction.
	FlagPureData NodeFlags = 1 << 1

	// FlagAsync marks a node whose completion is discovered by polling.
	// Requires IsComplete.
	FlagAsync NodeFlags = 1 << 2

	// FlagStateful marks a node that keeps state between executions.
	// Requires Create and Destroy.
	FlagStateful NodeFlags = 1 << 3

	// FlagHidden keeps the type out of host-side node menus.
	FlagHidden NodeFlags = 1 << 4
)

// Has reports whether all bits of flag are set.
func (f NodeFlags) Has(flag NodeFlags) bool {
	return f&flag == flag
}

// NodeTypeID identifies a registered node type. IDs are unique for the
// lifetime of the process and are never reused after unregistration.
// Zero is never a valid ID.
type NodeTypeID uint64

// RGB is an optional display color for a node type.
type RGB struct {
	R, G, B uint8
}

// NodeDesc describes a node type: its identity, pin layout, and flags.
// UniqueName is the stable serialization identifier and must not change
// across plugin versions.
type NodeDesc struct {
	Name        string
	Category    string
	UniqueName  string
	Description string
	Pins        []PinDesc
	Flags       NodeFlags
	Color       *RGB   // nil for host default
	Icon        string // empty for host default
}

// Instance is opaque plugin-owned per-node state. The host stores it behind
// an instance handle and passes it back to capability calls; it never
// inspects it. A stateless node type may use a nil Instance.
type Instance any

// Capabilities is the fixed-shape table of optional operations a plugin
// supplies for one node type. A nil entry is a valid no-op, never an error;
// which entries are mandatory is determined by the NodeDesc flags and
// enforced at registration.
type Capabilities struct {
	// Create builds a fresh Instance. Required for FlagStateful types.
	Create func() Instance

	// Destroy releases an Instance, including any timer or job resource
	// the instance still holds. Required for FlagStateful types. Called
	// exactly once per instance.
	Destroy func(inst Instance)

	// Serialize snapshots instance state for persistence.
	Serialize func(inst Instance) ([]byte, bool)

	// Deserialize restores instance state from a snapshot.
	Deserialize func(inst Instance, data []byte) bool

	// Execute performs one execution step. Required for FlagPureData
	// types. A false return marks the step failed and suppresses the
	// node's execution-output edges.
	Execute func(inst Instance, ctx ExecContext) bool

	// PreExecute runs immediately before Execute.
	PreExecute func(inst Instance, ctx ExecContext)

	// PostExecute runs after Execute with its success result.
	PostExecute func(inst Instance, ctx ExecContext, success bool)

	// StartListening arms a trigger-event node. Required for
	// FlagTriggerEvent types. The node may retain ctx until
	// StopListening.
	StartListening func(inst Instance, ctx ExecContext) bool

	// StopListening disarms a trigger-event node. Required for
	// FlagTriggerEvent types. Must be idempotent; no triggers may occur
	// after it returns.
	StopListening func(inst Instance)

	// IsComplete polls an async node for completion. Required for
	// FlagAsync types. Once true it must stay true.
	IsComplete func(inst Instance) bool
}

// ExecContext binds one node instance to one execution step. It is live
// from the start of the capability call until the call returns, except for
// trigger-event and async nodes, which may retain it until they stop
// listening or report completion.
//
// Input accessors are typed by the accessor, not by the declared pin type;
// a missing connection or a type mismatch yields the documented default
// (empty string, zero, false) rather than an error. Outputs are buffered
// and become visible downstream only after the execution call returns
// successfully.
type ExecContext interface {
	InputString(pin string) string
	InputInt(pin string) int64
	InputFloat(pin string) float64
	InputBool(pin string) bool
	InputJSON(pin string) string

	SetOutputString(pin string, v string)
	SetOutputInt(pin string, v int64)
	SetOutputFloat(pin string, v float64)
	SetOutputBool(pin string, v bool)
	SetOutputJSON(pin string, v string)

	// Property returns a node property value set by the host editor,
	// or "" when unset.
	Property(name string) string

	// SetError records a node-domain failure message for this step.
	// Setting an error suppresses execution-output propagation.
	SetError(msg string)

	// TriggerOutput requests graph re-entry through the named execution
	// output pin. Safe to call from any goroutine; the request is
	// enqueued for the host graph loop, never executed in place.
	TriggerOutput(execPin string)

	// Host returns the shared host services handle.
	Host() HostServices
}

// TimerHandle identifies a timer registration. Zero means none/failed.
type TimerHandle uint64

// JobHandle identifies a submitted unit of off-thread work.
// Zero means none/failed.
type JobHandle uint64

// EnvScope is host-mediated access to one variable namespace. Reads and
// writes are gated by host capability checks; a gated call reports failure
// rather than touching the namespace.
type EnvScope interface {
	Get(key string) (string, bool)
	Set(key, value string) bool
	Has(key string) bool
}

// JSONService exposes the host JSON utilities. Returned strings are copies
// owned by the caller; in a single-runtime process the C-style
// view-until-next-call and release-through-host rules both collapse to
// plain value ownership.
type JSONService interface {
	// Lookup evaluates a dotted path ("a.b.0.c") against a JSON document.
	Lookup(doc, path string) (string, bool)

	// Stringify re-encodes a JSON document in compact form.
	Stringify(doc string) (string, error)

	// Validate reports whether doc is well-formed JSON.
	Validate(doc string) bool
}

// CSVService exposes the host CSV utilities.
type CSVService interface {
	Parse(doc string, delim rune) ([][]string, error)
	Stringify(rows [][]string, delim rune) string
}

// INIService exposes the host INI utilities.
type INIService interface {
	Get(doc, section, key string) (string, bool)

	// Set returns a new document with the key written; doc is unchanged.
	Set(doc, section, key, value string) (string, error)

	Sections(doc string) []string
	Keys(doc, section string) []string
}

// HostServices is the façade the host exposes to plugins: logging, paths,
// capability queries, timers, job submission, environment namespaces,
// settings lookup, and data-format utilities. Implementations are shared
// across all plugin instances and safe for concurrent use from the graph
// loop, the timer thread, and job workers.
type HostServices interface {
	// Version returns the boundary version the host was built against.
	Version() uint32

	Log(level LogLevel, msg string)
	Logf(level LogLevel, format string, args ...any)

	// SubmitJob queues fn on a host worker. onComplete, if non-nil, is
	// invoked on the worker once fn returns (success=false when fn
	// faulted or the job was canceled before running). Returns zero on
	// failure.
	SubmitJob(fn func(), onComplete func(success bool)) JobHandle

	// PollJob reports whether the job has finished (including canceled
	// and faulted jobs). Unknown handles report true.
	PollJob(h JobHandle) bool

	// CancelJob suppresses future scheduling of the job. Best-effort: a
	// job already running completes and still invokes its callback.
	CancelJob(h JobHandle)

	PluginDataDir(pluginID string) string
	CacheDir() string
	FlowsDir() string

	// HasCapability reports whether the host grants the named capability
	// (for example "env.flow.write" or "net.outbound").
	HasCapability(name string) bool

	// CreateTimer registers fn to fire every interval on the host timing
	// thread. Returns zero on failure.
	CreateTimer(interval time.Duration, fn func()) TimerHandle

	// CreateCronTimer registers fn on a cron schedule ("*/5 * * * *").
	// Returns zero when the expression does not parse.
	CreateCronTimer(spec string, fn func()) TimerHandle

	// DestroyTimer stops a timer. When it returns, no further firings of
	// fn will occur.
	DestroyTimer(h TimerHandle)

	JSON() JSONService
	CSV() CSVService
	INI() INIService

	// FlowEnv, AppEnv, and OSEnv are the three variable namespaces, each
	// independently capability-gated.
	FlowEnv() EnvScope
	AppEnv() EnvScope
	OSEnv() EnvScope

	// PluginSettings returns the current serialized settings for a
	// plugin, or "{}" when none are stored.
	PluginSettings(pluginID string) string

	// HostSetting returns a host application setting value, or "".
	HostSetting(name string) string
}

// NodeRegistry is the registration surface handed to a plugin during
// OnRegister.
type NodeRegistry interface {
	// RegisterNode validates desc against caps per the flag rules and
	// returns a stable type ID.
	RegisterNode(desc NodeDesc, caps Capabilities) (NodeTypeID, error)

	// UnregisterNode invalidates a type ID. The host must quiesce all
	// instances of the type first; the registry does no instance
	// tracking.
	UnregisterNode(id NodeTypeID)

	// RegisterPinType registers a custom pin type and returns its ID.
	RegisterPinType(name string, size uint32, flags uint32) (PinTypeID, error)

	// PinTypeID resolves a built-in or custom pin type name.
	PinTypeID(name string) (PinTypeID, bool)
}

// ScriptRegistry is the binding surface of the embedded scripting engine,
// passed alongside NodeRegistry during OnRegister. The host treats it as an
// opaque capability owned by the scripting subsystem.
type ScriptRegistry interface {
	// PluginState returns the isolated script state for a plugin.
	PluginState(pluginID string) any

	// RegisterGlobal binds a host function into a script state.
	RegisterGlobal(state any, name string, fn func(state any) int)

	// RegisterLibrary binds a named table of functions into a script state.
	RegisterLibrary(state any, library string, fns map[string]func(state any) int)
}

// PluginInfo identifies a plugin and the boundary version it was built for.
type PluginInfo struct {
	ID          string // unique reverse-DNS ID, e.g. "com.example.math"
	Name        string
	Version     string
	Author      string
	Description string

	// BoundaryVersion must equal core.BoundaryVersion or the plugin is
	// rejected at load.
	BoundaryVersion uint32
}
