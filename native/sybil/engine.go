package sybil

import (
	"trustmesh/native/directory"
	"trustmesh/native/graph"
)

// Engine computes and publishes structural sybil-resistance indicators over
// the active trust graph.
type Engine struct {
	store    Store
	graph    *graph.Graph
	registry *directory.Registry
}

// NewEngine constructs a sybil engine wired to its collaborators.
func NewEngine(store Store, g *graph.Graph, registry *directory.Registry) *Engine {
	return &Engine{store: store, graph: g, registry: registry}
}

// Recompute walks every registered agent and publishes fresh metrics.
func (e *Engine) Recompute() error {
	if e == nil || e.store == nil || e.graph == nil || e.registry == nil {
		return nil
	}
	agents, err := e.registry.List()
	if err != nil {
		return err
	}
	for _, a := range agents {
		metrics, err := e.compute(a.AgentID)
		if err != nil {
			return err
		}
		if err := e.store.PutMetrics(metrics); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) compute(agentID string) (*Metrics, error) {
	incoming, err := e.graph.IncomingActive(agentID)
	if err != nil {
		return nil, err
	}
	outgoing, err := e.graph.OutgoingActive(agentID)
	if err != nil {
		return nil, err
	}

	uniqueEndorsers := make(map[string]struct{})
	for _, edge := range incoming {
		if edge.Type == graph.EdgeEndorsement {
			uniqueEndorsers[edge.From] = struct{}{}
		}
	}

	outTo := make(map[string]bool, len(outgoing))
	for _, edge := range outgoing {
		outTo[edge.To] = true
	}
	circular := 0
	seenIn := make(map[string]bool, len(incoming))
	for _, edge := range incoming {
		if seenIn[edge.From] {
			continue
		}
		seenIn[edge.From] = true
		if outTo[edge.From] {
			circular++
		}
	}

	diversity := 100 * float64(len(uniqueEndorsers)) / MinDiversity
	if diversity > 100 {
		diversity = 100
	}

	risk := 0.0
	if len(uniqueEndorsers) < MinDiversity {
		risk += 30
	}
	if circularPenalty := 10 * float64(circular); circularPenalty > 0 {
		if circularPenalty > 50 {
			circularPenalty = 50
		}
		risk += circularPenalty
	}
	if len(incoming) > 10 && len(outgoing) < 2 {
		risk += 20
	}
	if risk < 0 {
		risk = 0
	}
	if risk > 100 {
		risk = 100
	}

	return &Metrics{AgentID: agentID, Diversity: diversity, Circular: circular, RiskScore: risk}, nil
}

// Get returns the published metrics for an agent.
func (e *Engine) Get(agentID string) (*Metrics, bool, error) {
	if e == nil || e.store == nil {
		return nil, false, nil
	}
	return e.store.GetMetrics(agentID)
}
