package graph

import "testing"

func TestUpsertRejectsSelfEdge(t *testing.T) {
	g := NewGraph(newMemoryStore())
	if _, _, err := g.Upsert("A", "A", EdgeVote, 50, nil, ""); err != ErrSelfEdge {
		t.Fatalf("expected ErrSelfEdge, got %v", err)
	}
}

func TestUpsertMergePolicyAveragesWeightAndUnionsCategories(t *testing.T) {
	g := NewGraph(newMemoryStore())

	if _, _, err := g.Upsert("A", "B", EdgeEndorsement, 80, []string{"skill"}, "src1"); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	edge, version, err := g.Upsert("A", "B", EdgeEndorsement, 40, []string{"reliability"}, "src2")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if edge.Weight != 60 {
		t.Fatalf("expected merged weight 60, got %v", edge.Weight)
	}
	if len(edge.Categories) != 2 {
		t.Fatalf("expected union of categories, got %v", edge.Categories)
	}
	if edge.SourceRef != "src2" {
		t.Fatalf("expected most recent source ref, got %s", edge.SourceRef)
	}
	if version != 2 {
		t.Fatalf("expected version 2 after two writes, got %d", version)
	}
}

func TestDeactivateIsIrreversible(t *testing.T) {
	g := NewGraph(newMemoryStore())
	if _, _, err := g.Upsert("A", "B", EdgeVote, 90, nil, "src"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := g.Deactivate("A", "B", EdgeVote); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	edge, ok, err := g.Edge("A", "B", EdgeVote)
	if err != nil || !ok {
		t.Fatalf("expected edge record to remain, err=%v ok=%v", err, ok)
	}
	if edge.Active {
		t.Fatalf("expected edge to be inactive")
	}
	outgoing, err := g.OutgoingActive("A")
	if err != nil {
		t.Fatalf("outgoing: %v", err)
	}
	if len(outgoing) != 0 {
		t.Fatalf("expected no active outgoing edges, got %d", len(outgoing))
	}

	if _, _, err := g.Upsert("A", "B", EdgeVote, 70, nil, "src2"); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	fresh, _, err := g.Edge("A", "B", EdgeVote)
	if err != nil {
		t.Fatalf("edge: %v", err)
	}
	if !fresh.Active || fresh.Weight != 70 {
		t.Fatalf("expected a fresh active edge with weight 70, got %+v", fresh)
	}
}
