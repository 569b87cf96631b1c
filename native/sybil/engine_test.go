package sybil_test

import (
	"math"
	"testing"

	"trustmesh/native/directory"
	"trustmesh/native/graph"
	"trustmesh/native/sybil"
	"trustmesh/storage"
)

func TestReciprocalEdgesYieldCircularCountAndDiversity(t *testing.T) {
	mem := storage.NewMemory()
	registry := directory.NewRegistry(mem)
	g := graph.NewGraph(mem)
	engine := sybil.NewEngine(mem, g, registry)

	a, _ := registry.EnsureAgent("ADDR_A")
	b, _ := registry.EnsureAgent("ADDR_B")

	if _, _, err := g.Upsert(a.AgentID, b.AgentID, graph.EdgeEndorsement, 100, nil, "s1"); err != nil {
		t.Fatalf("upsert a->b: %v", err)
	}
	if _, _, err := g.Upsert(b.AgentID, a.AgentID, graph.EdgeEndorsement, 100, nil, "s2"); err != nil {
		t.Fatalf("upsert b->a: %v", err)
	}

	if err := engine.Recompute(); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	metricsA, ok, err := engine.Get(a.AgentID)
	if err != nil || !ok {
		t.Fatalf("get metrics: err=%v ok=%v", err, ok)
	}
	if metricsA.Circular != 1 {
		t.Fatalf("expected circular count 1, got %d", metricsA.Circular)
	}
	wantDiversity := 100.0 / 3
	if math.Abs(metricsA.Diversity-wantDiversity) > 1e-9 {
		t.Fatalf("expected diversity ~%.2f, got %v", wantDiversity, metricsA.Diversity)
	}
}

func TestStructuralRiskPenalizesHighInLowOutDegree(t *testing.T) {
	mem := storage.NewMemory()
	registry := directory.NewRegistry(mem)
	g := graph.NewGraph(mem)
	engine := sybil.NewEngine(mem, g, registry)

	subject, _ := registry.EnsureAgent("ADDR_SUBJECT")
	for i := 0; i < 11; i++ {
		endorser, _ := registry.EnsureAgent(string(rune('A' + i)))
		if _, _, err := g.Upsert(endorser.AgentID, subject.AgentID, graph.EdgeEndorsement, 100, nil, "s"); err != nil {
			t.Fatalf("upsert endorser %d: %v", i, err)
		}
	}

	if err := engine.Recompute(); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	metrics, ok, err := engine.Get(subject.AgentID)
	if err != nil || !ok {
		t.Fatalf("get metrics: err=%v ok=%v", err, ok)
	}
	if metrics.RiskScore < 20 {
		t.Fatalf("expected structural penalty to apply, got risk %v", metrics.RiskScore)
	}
}
