package host

import (
	"os"
	"sync"

	"github.com/glyph-labs/glyphflow/core"
)

// mapScope is a host-owned in-memory variable namespace (flow and app
// scopes). Reads and writes are independently capability-gated; a gated
// call reports failure without touching the namespace.
type mapScope struct {
	host     *Services
	readCap  string
	writeCap string

	mu   sync.RWMutex
	vars map[string]string
}

func newMapScope(host *Services, readCap, writeCap string) *mapScope {
	return &mapScope{
		host:     host,
		readCap:  readCap,
		writeCap: writeCap,
		vars:     make(map[string]string),
	}
}

func (s *mapScope) Get(key string) (string, bool) {
	if !s.host.HasCapability(s.readCap) {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[key]
	return v, ok
}

func (s *mapScope) Set(key, value string) bool {
	if !s.host.HasCapability(s.writeCap) {
		return false
	}
	s.mu.Lock()
	s.vars[key] = value
	s.mu.Unlock()
	return true
}

func (s *mapScope) Has(key string) bool {
	if !s.host.HasCapability(s.readCap) {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.vars[key]
	return ok
}

// osScope exposes the process environment. Writes mutate the process
// environment and are gated separately from reads.
type osScope struct {
	host     *Services
	readCap  string
	writeCap string
}

func newOSScope(host *Services, readCap, writeCap string) *osScope {
	return &osScope{host: host, readCap: readCap, writeCap: writeCap}
}

func (s *osScope) Get(key string) (string, bool) {
	if !s.host.HasCapability(s.readCap) {
		return "", false
	}
	return os.LookupEnv(key)
}

func (s *osScope) Set(key, value string) bool {
	if !s.host.HasCapability(s.writeCap) {
		return false
	}
	return os.Setenv(key, value) == nil
}

func (s *osScope) Has(key string) bool {
	if !s.host.HasCapability(s.readCap) {
		return false
	}
	_, ok := os.LookupEnv(key)
	return ok
}

var (
	_ core.EnvScope = (*mapScope)(nil)
	_ core.EnvScope = (*osScope)(nil)
)
