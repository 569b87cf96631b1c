package authority_test

import (
	"math"
	"testing"

	"trustmesh/native/authority"
	"trustmesh/native/directory"
	"trustmesh/native/graph"
	"trustmesh/storage"
)

func TestRecomputeIsolatedAgent(t *testing.T) {
	mem := storage.NewMemory()
	registry := directory.NewRegistry(mem)
	g := graph.NewGraph(mem)
	engine := authority.NewEngine(mem, g, registry)

	agent, err := registry.EnsureAgent("ADDR_SOLO")
	if err != nil {
		t.Fatalf("ensure agent: %v", err)
	}
	if err := engine.Recompute(); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	metrics, ok, err := engine.Get(agent.AgentID)
	if err != nil || !ok {
		t.Fatalf("get metrics: err=%v ok=%v", err, ok)
	}
	if math.Abs(metrics.PageRank-1.0) > 1e-9 {
		t.Fatalf("expected pagerank 1.0 for isolated agent, got %v", metrics.PageRank)
	}
	if metrics.PageRankNormalized != 100 {
		t.Fatalf("expected normalized pagerank ~100, got %d", metrics.PageRankNormalized)
	}
}

func TestRecomputeThreeAgentCycleConverges(t *testing.T) {
	mem := storage.NewMemory()
	registry := directory.NewRegistry(mem)
	g := graph.NewGraph(mem)
	engine := authority.NewEngine(mem, g, registry)

	a, _ := registry.EnsureAgent("ADDR_A")
	b, _ := registry.EnsureAgent("ADDR_B")
	c, _ := registry.EnsureAgent("ADDR_C")

	if _, _, err := g.Upsert(a.AgentID, b.AgentID, graph.EdgeVote, 100, nil, "s1"); err != nil {
		t.Fatalf("upsert a->b: %v", err)
	}
	if _, _, err := g.Upsert(b.AgentID, c.AgentID, graph.EdgeVote, 100, nil, "s2"); err != nil {
		t.Fatalf("upsert b->c: %v", err)
	}
	if _, _, err := g.Upsert(c.AgentID, a.AgentID, graph.EdgeVote, 100, nil, "s3"); err != nil {
		t.Fatalf("upsert c->a: %v", err)
	}

	if err := engine.Recompute(); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	var sum float64
	for _, id := range []string{a.AgentID, b.AgentID, c.AgentID} {
		m, ok, err := engine.Get(id)
		if err != nil || !ok {
			t.Fatalf("get metrics for %s: err=%v ok=%v", id, err, ok)
		}
		sum += m.PageRank
		if m.PageRankNormalized < 95 || m.PageRankNormalized > 105 {
			t.Fatalf("expected normalized pagerank near 100 for symmetric cycle, got %d", m.PageRankNormalized)
		}
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Fatalf("expected raw pagerank scores to sum to 1, got %v", sum)
	}
}

func TestRecomputeEmptyActiveSetIsNoOp(t *testing.T) {
	mem := storage.NewMemory()
	registry := directory.NewRegistry(mem)
	g := graph.NewGraph(mem)
	engine := authority.NewEngine(mem, g, registry)
	if err := engine.Recompute(); err != nil {
		t.Fatalf("recompute on empty graph: %v", err)
	}
}
