package sqlite

import (
	"testing"
	"time"

	"trustmesh/native/directory"
	"trustmesh/native/graph"
	"trustmesh/native/votes"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreAgentRoundTrip(t *testing.T) {
	store := openTestStore(t)

	agent := &directory.Agent{
		AgentID: "agent-1", Address: "0xabc", Category: "service", Capabilities: []string{"search"},
		Active: true, Tier: "bronze", CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := store.Put(agent); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := store.GetByAddress("0xabc")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.AgentID != "agent-1" {
		t.Fatalf("unexpected agent id: %s", got.AgentID)
	}
}

func TestStoreGraphEdgeLifecycle(t *testing.T) {
	store := openTestStore(t)

	edge := &graph.TrustEdge{From: "a", To: "b", Type: graph.EdgeEndorsement, Weight: 60, Active: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	v1, err := store.PutEdge(edge)
	if err != nil {
		t.Fatalf("put edge: %v", err)
	}

	v2, err := store.PutEdge(edge)
	if err != nil {
		t.Fatalf("put edge again: %v", err)
	}
	if v2 <= v1 {
		t.Fatalf("expected version to advance on re-upsert, v1=%d v2=%d", v1, v2)
	}

	edges, err := store.OutgoingActive("a")
	if err != nil {
		t.Fatalf("outgoing: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 active edge, got %d", len(edges))
	}
}

func TestStoreEndorsementDeactivateUnknownErrors(t *testing.T) {
	store := openTestStore(t)
	if err := store.DeactivateEndorsement("missing"); err != votes.ErrEndorsementNotFound {
		t.Fatalf("expected ErrEndorsementNotFound, got %v", err)
	}
}

func TestStoreEndorsementRoundTrip(t *testing.T) {
	store := openTestStore(t)
	e := &votes.Endorsement{ID: "e1", Type: "skill", Claim: "translation", Confidence: 90, Issuer: "a", Subject: "b", Active: true, IssuedAt: time.Now()}
	if err := store.PutEndorsement(e); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.DeactivateEndorsement("e1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, ok, err := store.GetEndorsement("e1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Active {
		t.Fatal("expected endorsement to be inactive")
	}
}
