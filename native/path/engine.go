package path

import (
	"sort"
	"strings"
	"time"

	"trustmesh/native/graph"
)

// Engine discovers and caches bounded trust paths.
type Engine struct {
	store Store
	graph *graph.Graph
	nowFn func() time.Time
}

// NewEngine constructs a path engine backed by the provided cache store and
// graph.
func NewEngine(store Store, g *graph.Graph) *Engine {
	return &Engine{store: store, graph: g, nowFn: time.Now}
}

// SetNowFunc overrides the wall clock used for cache expiry.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

func (e *Engine) now() time.Time {
	if e == nil || e.nowFn == nil {
		return time.Now()
	}
	return e.nowFn()
}

// ShortestPath returns the bounded trust path from `from` to `to`, using the
// cache when a valid entry exists and recomputing otherwise.
func (e *Engine) ShortestPath(from, to string) (*TrustPath, error) {
	if e == nil || e.graph == nil {
		return nil, ErrNotFound
	}
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)

	version, err := e.graph.Version()
	if err != nil {
		return nil, err
	}

	if e.store != nil {
		if cached, ok, err := e.store.GetPath(from, to); err == nil && ok && cached.Valid(version, e.now()) {
			if len(cached.Nodes) == 0 {
				return nil, ErrNotFound
			}
			return cached, nil
		}
	}

	computed, err := e.compute(from, to)
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	entry := &TrustPath{From: from, To: to, GraphVersion: version, CalculatedAt: e.now(), ExpiresAt: e.now().Add(CacheTTL)}
	if computed != nil {
		entry.Nodes = computed.Nodes
		entry.HopWeights = computed.HopWeights
		entry.Confidence = computed.Confidence
	}
	if e.store != nil {
		if putErr := e.store.PutPath(entry); putErr != nil {
			return nil, putErr
		}
	}
	if computed == nil {
		return nil, ErrNotFound
	}
	return entry, nil
}

type candidate struct {
	nodes      []string
	weights    []float64
	confidence float64
}

// compute performs a bounded breadth-first search for the shortest path
// between from and to. Among all minimum-length paths it picks the one with
// the greatest aggregate confidence, tie-breaking by lexicographic order of
// the node-id sequence.
func (e *Engine) compute(from, to string) (*TrustPath, error) {
	if from == "" || to == "" || from == to {
		return nil, ErrNotFound
	}

	frontier := []candidate{{nodes: []string{from}, weights: nil, confidence: 100}}
	for hop := 0; hop < MaxHops; hop++ {
		var next []candidate
		var found []candidate
		for _, c := range frontier {
			current := c.nodes[len(c.nodes)-1]
			edges, err := e.graph.OutgoingActive(current)
			if err != nil {
				return nil, err
			}
			sort.Slice(edges, func(i, j int) bool { return edges[i].To < edges[j].To })
			for _, edge := range edges {
				if containsNode(c.nodes, edge.To) {
					continue
				}
				nodes := append(append([]string(nil), c.nodes...), edge.To)
				weights := append(append([]float64(nil), c.weights...), edge.Weight)
				conf := c.confidence * Decay * (edge.Weight / 100)
				nc := candidate{nodes: nodes, weights: weights, confidence: conf}
				if edge.To == to {
					found = append(found, nc)
				} else {
					next = append(next, nc)
				}
			}
		}
		if len(found) > 0 {
			best := bestCandidate(found)
			return &TrustPath{Nodes: best.nodes, HopWeights: best.weights, Confidence: best.confidence}, nil
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	return nil, ErrNotFound
}

func bestCandidate(candidates []candidate) candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.confidence > best.confidence {
			best = c
			continue
		}
		if c.confidence == best.confidence && strings.Join(c.nodes, ",") < strings.Join(best.nodes, ",") {
			best = c
		}
	}
	return best
}

func containsNode(nodes []string, id string) bool {
	for _, n := range nodes {
		if n == id {
			return true
		}
	}
	return false
}

// TransitiveTrust combines the direct active edge weight from a to b (0 if
// none) with the cached path's aggregate confidence (0 if none).
func (e *Engine) TransitiveTrust(a, b string) (direct, transitive, combined float64, err error) {
	if e == nil || e.graph == nil {
		return 0, 0, 0, nil
	}
	edges, err := e.graph.OutgoingActive(a)
	if err != nil {
		return 0, 0, 0, err
	}
	for _, edge := range edges {
		if edge.To == b && edge.Weight > direct {
			direct = edge.Weight
		}
	}

	if p, err := e.ShortestPath(a, b); err == nil {
		transitive = p.Confidence
	} else if err != ErrNotFound {
		return 0, 0, 0, err
	}

	combined = 0.7*direct + 0.3*transitive
	if combined < 0 {
		combined = 0
	}
	if combined > 100 {
		combined = 100
	}
	return direct, transitive, combined, nil
}
