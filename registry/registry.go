// Package registry provides the host-owned node-type registry for glyphflow.
// It maps node descriptors and their capability tables to stable numeric
// type IDs used by the runtime, the serializer, and the UI, and it owns the
// pin-type namespace (built-in and plugin-registered custom types).
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/glyph-labs/glyphflow/core"
)

// Registration errors. All of them are detected at register time; a
// descriptor that passes Register never fails these checks at runtime.
var (
	ErrEmptyUniqueName   = errors.New("node descriptor has no unique name")
	ErrDuplicateUnique   = errors.New("unique name already registered")
	ErrDuplicatePin      = errors.New("duplicate pin name")
	ErrUnknownPinType    = errors.New("unknown pin type")
	ErrPinKindMismatch   = errors.New("pin kind does not match declared type")
	ErrMissingCapability = errors.New("missing mandatory capability")
	ErrForbiddenExecPin  = errors.New("execution pin not permitted by node flags")
	ErrDuplicatePinType  = errors.New("pin type name already registered")
)

// Entry is one registered node type: the descriptor and capability table
// bound to the stable ID handed out at registration.
type Entry struct {
	ID           core.NodeTypeID
	Desc         core.NodeDesc
	Capabilities core.Capabilities
}

// Registry holds all registered node types and pin types. Safe for
// concurrent use. IDs are monotonically assigned and never reused, so an
// unregistered ID stays invalid for the life of the process.
type Registry struct {
	mu         sync.RWMutex
	types      map[core.NodeTypeID]*Entry
	byUnique   map[string]core.NodeTypeID
	order      []core.NodeTypeID // preserves registration order
	pinTypes   map[string]core.PinTypeID
	nextTypeID core.NodeTypeID
	nextPinID  core.PinTypeID
}

// New creates a registry with the built-in pin types installed.
func New() *Registry {
	r := &Registry{
		types:      make(map[core.NodeTypeID]*Entry),
		byUnique:   make(map[string]core.NodeTypeID),
		pinTypes:   make(map[string]core.PinTypeID),
		nextTypeID: 1,
		nextPinID:  core.PinTypeCustomStart,
	}
	registerBuiltinPinTypes(r)
	return r
}

// RegisterNode validates the descriptor/capability combination and assigns
// a type ID. Validation failures are returned to the registering caller and
// leave the registry unchanged.
func (r *Registry) RegisterNode(desc core.NodeDesc, caps core.Capabilities) (core.NodeTypeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if desc.UniqueName == "" {
		return 0, ErrEmptyUniqueName
	}
	if _, exists := r.byUnique[desc.UniqueName]; exists {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateUnique, desc.UniqueName)
	}
	if err := r.validatePinsLocked(desc); err != nil {
		return 0, err
	}
	if err := validateCapabilities(desc, caps); err != nil {
		return 0, err
	}

	id := r.nextTypeID
	r.nextTypeID++
	r.types[id] = &Entry{ID: id, Desc: desc, Capabilities: caps}
	r.byUnique[desc.UniqueName] = id
	r.order = append(r.order, id)
	return id, nil
}

// UnregisterNode removes a node type (hot reload). The ID is invalidated,
// not recycled. The caller must have quiesced all live instances of the
// type first; the registry performs no instance tracking.
func (r *Registry) UnregisterNode(id core.NodeTypeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.types[id]
	if !ok {
		return
	}
	delete(r.types, id)
	delete(r.byUnique, entry.Desc.UniqueName)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// RegisterPinType adds a custom pin type and returns its ID. Size and flags
// are recorded only for the editor; the runtime treats custom-typed pins as
// JSON payloads. Re-registering a name fails.
func (r *Registry) RegisterPinType(name string, size uint32, flags uint32) (core.PinTypeID, error) {
	_ = size
	_ = flags

	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return 0, fmt.Errorf("%w: empty name", ErrDuplicatePinType)
	}
	if _, exists := r.pinTypes[name]; exists {
		return 0, fmt.Errorf("%w: %q", ErrDuplicatePinType, name)
	}
	id := r.nextPinID
	r.nextPinID++
	r.pinTypes[name] = id
	return id, nil
}

// PinTypeID resolves a built-in or custom pin type name.
func (r *Registry) PinTypeID(name string) (core.PinTypeID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.pinTypes[name]
	return id, ok
}

// Get returns a registered entry by type ID.
func (r *Registry) Get(id core.NodeTypeID) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.types[id]
	return entry, ok
}

// Lookup returns the type ID for a unique serialization name.
func (r *Registry) Lookup(uniqueName string) (core.NodeTypeID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUnique[uniqueName]
	return id, ok
}

// All returns entries in registration order. Used by the node menu and the
// CLI listing.
func (r *Registry) All() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Entry, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.types[id])
	}
	return result
}

// Len returns the number of registered node types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// validatePinsLocked checks pin-name uniqueness, pin-type existence, and
// flag/pin compatibility.
func (r *Registry) validatePinsLocked(desc core.NodeDesc) error {
	seen := make(map[string]bool, len(desc.Pins))
	for _, pin := range desc.Pins {
		if seen[pin.Name] {
			return fmt.Errorf("%w: %q on %q", ErrDuplicatePin, pin.Name, desc.UniqueName)
		}
		seen[pin.Name] = true

		if _, ok := r.pinTypes[pin.Type]; !ok {
			return fmt.Errorf("%w: %q on pin %q", ErrUnknownPinType, pin.Type, pin.Name)
		}
		if (pin.Kind == core.PinExecution) != (pin.Type == "execution") {
			return fmt.Errorf("%w: pin %q", ErrPinKindMismatch, pin.Name)
		}

		if pin.Kind != core.PinExecution {
			continue
		}
		if desc.Flags.Has(core.FlagPureData) {
			return fmt.Errorf("%w: pure-data node %q declares %q", ErrForbiddenExecPin, desc.UniqueName, pin.Name)
		}
		if desc.Flags.Has(core.FlagTriggerEvent) && pin.Direction == core.PinIn {
			return fmt.Errorf("%w: trigger-event node %q declares input %q", ErrForbiddenExecPin, desc.UniqueName, pin.Name)
		}
	}
	return nil
}

// validateCapabilities enforces the flag-to-capability rules of the
// contract: trigger-event needs start/stop listening, pure-data needs
// execute, async needs is_complete, stateful needs create/destroy.
func validateCapabilities(desc core.NodeDesc, caps core.Capabilities) error {
	missing := func(name string) error {
		return fmt.Errorf("%w: %q requires %s", ErrMissingCapability, desc.UniqueName, name)
	}

	if desc.Flags.Has(core.FlagTriggerEvent) {
		if caps.StartListening == nil {
			return missing("start_listening")
		}
		if caps.StopListening == nil {
			return missing("stop_listening")
		}
	}
	if desc.Flags.Has(core.FlagPureData) && caps.Execute == nil {
		return missing("execute")
	}
	if desc.Flags.Has(core.FlagAsync) && caps.IsComplete == nil {
		return missing("is_complete")
	}
	if desc.Flags.Has(core.FlagStateful) {
		if caps.Create == nil {
			return missing("create")
		}
		if caps.Destroy == nil {
			return missing("destroy")
		}
	}
	return nil
}

// Registry implements the registration surface plugins see.
var _ core.NodeRegistry = (*Registry)(nil)
