package dns

import "sync"

// Remapper rewrites hostnames before resolution, so the proxy can redirect
// traffic for one host to another without touching the request.
type Remapper struct {
	mu     sync.RWMutex
	remaps map[string]string
}

func NewRemapper() *Remapper {
	return &Remapper{remaps: make(map[string]string)}
}

// Apply returns the remapped hostname, or the input unchanged when no
// remapping is set for it. Remappings are not chained.
func (m *Remapper) Apply(host string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if to, ok := m.remaps[host]; ok {
		return to
	}
	return host
}

func (m *Remapper) Set(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remaps[from] = to
}

func (m *Remapper) Remove(from string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.remaps, from)
}

func (m *Remapper) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remaps = make(map[string]string)
}

// Snapshot returns a copy of the current remappings.
func (m *Remapper) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]string, len(m.remaps))
	for from, to := range m.remaps {
		snapshot[from] = to
	}
	return snapshot
}
