package graph

import "sync"

type memoryStore struct {
	mu      sync.Mutex
	edges   map[EdgeKey]*TrustEdge
	version uint64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{edges: make(map[EdgeKey]*TrustEdge)}
}

func (m *memoryStore) GetEdge(key EdgeKey) (*TrustEdge, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.edges[key]
	if !ok {
		return nil, false, nil
	}
	return e.Clone(), true, nil
}

func (m *memoryStore) PutEdge(edge *TrustEdge) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[edge.Key()] = edge.Clone()
	m.version++
	return m.version, nil
}

func (m *memoryStore) Deactivate(key EdgeKey) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.edges[key]
	if !ok {
		return m.version, ErrEdgeNotFound
	}
	e.Active = false
	m.version++
	return m.version, nil
}

func (m *memoryStore) OutgoingActive(from string) ([]*TrustEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*TrustEdge
	for _, e := range m.edges {
		if e.From == from && e.Active {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (m *memoryStore) IncomingActive(to string) ([]*TrustEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*TrustEdge
	for _, e := range m.edges {
		if e.To == to && e.Active {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (m *memoryStore) AllActive() ([]*TrustEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*TrustEdge
	for _, e := range m.edges {
		if e.Active {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (m *memoryStore) Version() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version, nil
}
