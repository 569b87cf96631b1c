package authority

import (
	"math"

	"trustmesh/native/directory"
	"trustmesh/native/graph"
	"trustmesh/observability/metrics"
)

// Engine computes and publishes authority metrics over the active trust
// graph.
type Engine struct {
	store    Store
	graph    *graph.Graph
	registry *directory.Registry
	params   Params

	lastIterations int
}

// NewEngine constructs an authority engine with the default parameters.
func NewEngine(store Store, g *graph.Graph, registry *directory.Registry) *Engine {
	return &Engine{store: store, graph: g, registry: registry, params: DefaultParams()}
}

// SetParams overrides the PageRank parameters. Intended for tests that need
// to exercise convergence at smaller iteration caps or looser thresholds.
func (e *Engine) SetParams(p Params) {
	if e == nil {
		return
	}
	e.params = p
}

// LastIterations reports how many iterations the most recent Recompute pass
// ran before stopping, for metrics and testing.
func (e *Engine) LastIterations() int {
	if e == nil {
		return 0
	}
	return e.lastIterations
}

type edgeRef struct {
	from, to string
	weight   float64
}

// Recompute takes a snapshot of active agents and edges, runs the damped
// PageRank iteration to convergence or the iteration cap, records the
// iteration count and final delta in metrics, sum-normalizes the raw scores
// to 1, and publishes AgentMetrics for every agent (active or not). If the active agent set is
// empty this is a no-op.
func (e *Engine) Recompute() error {
	if e == nil || e.store == nil || e.graph == nil || e.registry == nil {
		return nil
	}

	agents, err := e.registry.List()
	if err != nil {
		return err
	}
	active := make(map[string]bool)
	var order []string
	for _, a := range agents {
		if a.Active {
			active[a.AgentID] = true
			order = append(order, a.AgentID)
		}
	}
	n := len(order)
	if n == 0 {
		return nil
	}

	edges, err := e.graph.AllActive()
	if err != nil {
		return err
	}

	version, err := e.graph.Version()
	if err != nil {
		return err
	}

	outCount := make(map[string]int)
	inCount := make(map[string]int)
	var refs []edgeRef
	for _, edge := range edges {
		if !active[edge.From] || !active[edge.To] {
			continue
		}
		outCount[edge.From]++
		inCount[edge.To]++
		refs = append(refs, edgeRef{from: edge.From, to: edge.To, weight: edge.Weight / 100})
	}

	incoming := make(map[string][]edgeRef)
	for _, r := range refs {
		incoming[r.to] = append(incoming[r.to], r)
	}

	rank := make(map[string]float64, n)
	for _, id := range order {
		rank[id] = 1.0 / float64(n)
	}

	teleport := (1 - e.params.Damping) / float64(n)
	iterations := 0
	lastDelta := 0.0
	for iterations < e.params.MaxIterations {
		next := make(map[string]float64, n)
		maxDelta := 0.0
		for _, v := range order {
			sum := 0.0
			for _, r := range incoming[v] {
				denom := outCount[r.from]
				if denom < 1 {
					denom = 1
				}
				sum += rank[r.from] * r.weight / float64(denom)
			}
			next[v] = teleport + e.params.Damping*sum
			if delta := math.Abs(next[v] - rank[v]); delta > maxDelta {
				maxDelta = delta
			}
		}
		rank = next
		iterations++
		lastDelta = maxDelta
		if maxDelta < e.params.Epsilon {
			break
		}
	}
	e.lastIterations = iterations
	metrics.TrustMesh().ObservePageRank(iterations, lastDelta)

	total := 0.0
	for _, id := range order {
		total += rank[id]
	}
	if total > 0 {
		for _, id := range order {
			rank[id] /= total
		}
	}

	for _, a := range agents {
		metrics := &AgentMetrics{
			AgentID:      a.AgentID,
			OutDegree:    outCount[a.AgentID],
			InDegree:     inCount[a.AgentID],
			GraphVersion: version,
		}
		if active[a.AgentID] {
			r := rank[a.AgentID]
			metrics.PageRank = r
			normalized := math.Round(r * float64(n) * 100)
			if normalized < 0 {
				normalized = 0
			}
			metrics.PageRankNormalized = int(normalized)
		}
		if err := e.store.PutAgentMetrics(metrics); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the published metrics for an agent.
func (e *Engine) Get(agentID string) (*AgentMetrics, bool, error) {
	if e == nil || e.store == nil {
		return nil, false, nil
	}
	return e.store.GetAgentMetrics(agentID)
}
