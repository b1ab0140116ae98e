package plugin

import "sync"

// MemSettingsStore is an in-memory SettingsStore for tests and hosts that
// do not persist settings.
type MemSettingsStore struct {
	mu   sync.RWMutex
	docs map[string]string
}

// NewMemSettingsStore creates an empty in-memory settings store.
func NewMemSettingsStore() *MemSettingsStore {
	return &MemSettingsStore{docs: make(map[string]string)}
}

func (s *MemSettingsStore) PluginSettings(pluginID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[pluginID]
	return doc, ok
}

func (s *MemSettingsStore) PutPluginSettings(pluginID, doc string) error {
	s.mu.Lock()
	s.docs[pluginID] = doc
	s.mu.Unlock()
	return nil
}

var _ SettingsStore = (*MemSettingsStore)(nil)
