package graph

import (
	"strings"
	"time"
)

// Graph wires edge mutations through the merge policy and version-counter
// discipline required by the store.
type Graph struct {
	store Store
	nowFn func() time.Time
}

// NewGraph constructs a graph backed by the provided store.
func NewGraph(store Store) *Graph {
	return &Graph{store: store, nowFn: time.Now}
}

// SetNowFunc overrides the wall clock used for edge timestamps.
func (g *Graph) SetNowFunc(now func() time.Time) {
	if g == nil {
		return
	}
	if now == nil {
		g.nowFn = time.Now
		return
	}
	g.nowFn = now
}

func (g *Graph) now() time.Time {
	if g == nil || g.nowFn == nil {
		return time.Now()
	}
	return g.nowFn()
}

// Upsert creates or merges an edge at (from, to, type). When an active edge
// already occupies the slot, weight becomes the running arithmetic mean of
// the prior and new value, categories union, and the source reference is
// replaced by the most recent one. Returns the resulting graph version.
func (g *Graph) Upsert(from, to string, typ EdgeType, weight float64, categories []string, sourceRef string) (*TrustEdge, uint64, error) {
	if g == nil || g.store == nil {
		return nil, 0, ErrEdgeNotFound
	}
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" || to == "" || from == to {
		return nil, 0, ErrSelfEdge
	}

	key := EdgeKey{From: from, To: to, Type: typ}
	existing, ok, err := g.store.GetEdge(key)
	if err != nil {
		return nil, 0, err
	}

	now := g.now()
	edge := &TrustEdge{
		From:       from,
		To:         to,
		Type:       typ,
		Weight:     weight,
		Categories: dedupeCategories(categories),
		SourceRef:  sourceRef,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if ok && existing.Active {
		edge.Weight = (existing.Weight + weight) / 2
		edge.Categories = unionCategories(existing.Categories, categories)
		edge.CreatedAt = existing.CreatedAt
	}

	version, err := g.store.PutEdge(edge)
	if err != nil {
		return nil, 0, err
	}
	return edge, version, nil
}

// Deactivate marks the edge slot inactive. Revocation is irreversible; a
// later Upsert to the same slot creates a fresh active edge rather than
// reviving this one.
func (g *Graph) Deactivate(from, to string, typ EdgeType) (uint64, error) {
	if g == nil || g.store == nil {
		return 0, ErrEdgeNotFound
	}
	return g.store.Deactivate(EdgeKey{From: strings.TrimSpace(from), To: strings.TrimSpace(to), Type: typ})
}

// Edge returns the current edge occupying (from, to, type), active or not.
func (g *Graph) Edge(from, to string, typ EdgeType) (*TrustEdge, bool, error) {
	if g == nil || g.store == nil {
		return nil, false, nil
	}
	return g.store.GetEdge(EdgeKey{From: strings.TrimSpace(from), To: strings.TrimSpace(to), Type: typ})
}

// OutgoingActive returns every active edge with From == from.
func (g *Graph) OutgoingActive(from string) ([]*TrustEdge, error) {
	if g == nil || g.store == nil {
		return nil, nil
	}
	return g.store.OutgoingActive(strings.TrimSpace(from))
}

// IncomingActive returns every active edge with To == to.
func (g *Graph) IncomingActive(to string) ([]*TrustEdge, error) {
	if g == nil || g.store == nil {
		return nil, nil
	}
	return g.store.IncomingActive(strings.TrimSpace(to))
}

// AllActive returns every active edge in the graph, used by the authority
// and path engines to take a consistent snapshot at the start of a pass.
func (g *Graph) AllActive() ([]*TrustEdge, error) {
	if g == nil || g.store == nil {
		return nil, nil
	}
	return g.store.AllActive()
}

// Version returns the current graph version counter.
func (g *Graph) Version() (uint64, error) {
	if g == nil || g.store == nil {
		return 0, nil
	}
	return g.store.Version()
}

func dedupeCategories(categories []string) []string {
	return unionCategories(nil, categories)
}

func unionCategories(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, c := range a {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	for _, c := range b {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
