package path_test

import (
	"math"
	"testing"
	"time"

	"trustmesh/native/graph"
	"trustmesh/native/path"
	"trustmesh/storage"
)

func TestShortestPathWithDecay(t *testing.T) {
	mem := storage.NewMemory()
	g := graph.NewGraph(mem)
	e := path.NewEngine(mem, g)

	if _, _, err := g.Upsert("A", "B", graph.EdgeVote, 80, nil, "s1"); err != nil {
		t.Fatalf("upsert A->B: %v", err)
	}
	if _, _, err := g.Upsert("B", "C", graph.EdgeVote, 50, nil, "s2"); err != nil {
		t.Fatalf("upsert B->C: %v", err)
	}
	if _, _, err := g.Upsert("C", "D", graph.EdgeVote, 90, nil, "s3"); err != nil {
		t.Fatalf("upsert C->D: %v", err)
	}

	got, err := e.ShortestPath("A", "D")
	if err != nil {
		t.Fatalf("shortest path: %v", err)
	}
	want := []string{"A", "B", "C", "D"}
	if len(got.Nodes) != len(want) {
		t.Fatalf("expected path %v, got %v", want, got.Nodes)
	}
	for i := range want {
		if got.Nodes[i] != want[i] {
			t.Fatalf("expected path %v, got %v", want, got.Nodes)
		}
	}
	if got.Distance() != 3 {
		t.Fatalf("expected distance 3, got %d", got.Distance())
	}
	expectedConfidence := 100 * path.Decay * 0.8 * path.Decay * 0.5 * path.Decay * 0.9
	if math.Abs(got.Confidence-expectedConfidence) > 1e-9 {
		t.Fatalf("expected confidence %v, got %v", expectedConfidence, got.Confidence)
	}
}

func TestShortestPathNotFoundBeyondMaxHops(t *testing.T) {
	mem := storage.NewMemory()
	g := graph.NewGraph(mem)
	e := path.NewEngine(mem, g)

	chain := []string{"N0", "N1", "N2", "N3", "N4", "N5"}
	for i := 0; i < len(chain)-1; i++ {
		if _, _, err := g.Upsert(chain[i], chain[i+1], graph.EdgeVote, 100, nil, "s"); err != nil {
			t.Fatalf("upsert %s->%s: %v", chain[i], chain[i+1], err)
		}
	}
	_, err := e.ShortestPath("N0", "N5")
	if err != path.ErrNotFound {
		t.Fatalf("expected ErrNotFound beyond max hops, got %v", err)
	}
}

func TestPathCacheInvalidatedByGraphVersionChange(t *testing.T) {
	mem := storage.NewMemory()
	g := graph.NewGraph(mem)
	e := path.NewEngine(mem, g)
	e.SetNowFunc(func() time.Time { return time.Unix(0, 0) })

	if _, _, err := g.Upsert("A", "B", graph.EdgeVote, 100, nil, "s1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	first, err := e.ShortestPath("A", "B")
	if err != nil {
		t.Fatalf("first shortest path: %v", err)
	}

	if _, _, err := g.Upsert("B", "C", graph.EdgeVote, 100, nil, "s2"); err != nil {
		t.Fatalf("upsert B->C: %v", err)
	}
	second, err := e.ShortestPath("A", "B")
	if err != nil {
		t.Fatalf("second shortest path: %v", err)
	}
	if first.GraphVersion == second.GraphVersion {
		t.Fatalf("expected graph version to change after a new edge write")
	}
}

func TestTransitiveTrustCombinesDirectAndPath(t *testing.T) {
	mem := storage.NewMemory()
	g := graph.NewGraph(mem)
	e := path.NewEngine(mem, g)

	if _, _, err := g.Upsert("A", "B", graph.EdgeVote, 60, nil, "s1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	direct, transitive, combined, err := e.TransitiveTrust("A", "B")
	if err != nil {
		t.Fatalf("transitive trust: %v", err)
	}
	if direct != 60 {
		t.Fatalf("expected direct weight 60, got %v", direct)
	}
	wantTransitive := 100 * path.Decay * 0.6
	if math.Abs(transitive-wantTransitive) > 1e-9 {
		t.Fatalf("expected transitive %v, got %v", wantTransitive, transitive)
	}
	wantCombined := 0.7*60 + 0.3*wantTransitive
	if math.Abs(combined-wantCombined) > 1e-9 {
		t.Fatalf("expected combined %v, got %v", wantCombined, combined)
	}
}
