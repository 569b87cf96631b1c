package postgres

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"trustmesh/native/anomaly"
	"trustmesh/native/directory"
	"trustmesh/native/graph"
)

// setupDB opens an in-memory sqlite database through gorm and migrates the
// same model set the production store uses, the way
// services/otc-gateway/recon/reconciler_test.go exercises its models without
// a live Postgres instance.
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Create(&GraphCounter{ID: 1}).Error; err != nil {
		t.Fatalf("seed graph counter: %v", err)
	}
	return db
}

func TestStoreAgentRoundTrip(t *testing.T) {
	store := NewStore(setupDB(t))

	agent := &directory.Agent{
		AgentID: "agent-1", Address: "0xabc", DisplayName: "Agent One", Category: "service",
		Capabilities: []string{"search", "summarize"}, Active: true, Tier: "bronze",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := store.Put(agent); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := store.GetByAddress("0xabc")
	if err != nil || !ok {
		t.Fatalf("get by address: ok=%v err=%v", ok, err)
	}
	if got.AgentID != "agent-1" || len(got.Capabilities) != 2 {
		t.Fatalf("unexpected agent: %+v", got)
	}

	byID, ok, err := store.GetByID("agent-1")
	if err != nil || !ok {
		t.Fatalf("get by id: ok=%v err=%v", ok, err)
	}
	if byID.Address != "0xabc" {
		t.Fatalf("unexpected address: %s", byID.Address)
	}
}

func TestStoreGraphEdgeVersionBumpsOnMutation(t *testing.T) {
	store := NewStore(setupDB(t))

	edge := &graph.TrustEdge{From: "a", To: "b", Type: graph.EdgeVote, Weight: 80, Active: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	v1, err := store.PutEdge(edge)
	if err != nil {
		t.Fatalf("put edge: %v", err)
	}
	if v1 == 0 {
		t.Fatal("expected version to advance past zero")
	}

	v2, err := store.Deactivate(edge.Key())
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if v2 <= v1 {
		t.Fatalf("expected version to advance, got v1=%d v2=%d", v1, v2)
	}

	active, err := store.OutgoingActive("a")
	if err != nil {
		t.Fatalf("outgoing active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected deactivated edge to be excluded, got %d", len(active))
	}
}

func TestStoreFacilitatorIncidentDedup(t *testing.T) {
	store := NewStore(setupDB(t))
	now := time.Now()

	alert := &anomaly.Alert{
		ID: "alert-1", Type: anomaly.AlertFacilitatorDown, Subject: "stripe", Metric: "consecutive_failures",
		Current: 5, Severity: anomaly.SeverityCritical, Timestamp: now,
	}
	if err := store.AppendAlert(alert); err != nil {
		t.Fatalf("append alert: %v", err)
	}

	open, err := store.OpenFacilitatorIncident("stripe", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("open incident: %v", err)
	}
	if !open {
		t.Fatal("expected an open incident")
	}

	open, err = store.OpenFacilitatorIncident("stripe", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("open incident: %v", err)
	}
	if open {
		t.Fatal("expected no incident opened after the alert timestamp")
	}
}
