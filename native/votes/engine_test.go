package votes

import (
	"testing"
	"time"

	"trustmesh/native/directory"
	"trustmesh/native/graph"
	"trustmesh/native/ledger"
	"trustmesh/storage"
)

func newFixture() (*directory.Registry, *ledger.Ledger, *graph.Graph, *Intake) {
	mem := storage.NewMemory()
	registry := directory.NewRegistry(mem)
	l := ledger.NewLedger(mem)
	g := graph.NewGraph(mem)
	intake := NewIntake(newMemoryStore(), l, g, registry)
	return registry, l, g, intake
}

func TestSubmitVoteHappyPath(t *testing.T) {
	registry, l, _, intake := newFixture()

	a, err := registry.EnsureAgent("ADDR_A")
	if err != nil {
		t.Fatalf("ensure A: %v", err)
	}
	if _, err := registry.EnsureAgent("ADDR_B"); err != nil {
		t.Fatalf("ensure B: %v", err)
	}

	receipt, err := l.Observe(ledger.PaymentEvent{
		Signature:   "S1",
		Payer:       "ADDR_A",
		Payee:       "ADDR_B",
		AmountMicro: 78000,
		Status:      ledger.StatusConfirmed,
		Timestamp:   time.Now(),
	})
	if err != nil {
		t.Fatalf("observe: %v", err)
	}

	vote, err := intake.SubmitVote(receipt.ID, "ADDR_A", "ADDR_B", PolarityUp, QualityScores{
		ResponseQuality: 95, ResponseSpeed: 88, Accuracy: 92, Professionalism: 90,
	}, "")
	if err != nil {
		t.Fatalf("submit vote: %v", err)
	}
	if vote.Voter != a.AgentID {
		t.Fatalf("expected voter agent id %s, got %s", a.AgentID, vote.Voter)
	}
	if round := int(vote.Weight + 0.5); round != 97 {
		t.Fatalf("expected weight to round to 97, got %v", vote.Weight)
	}

	updated, ok, err := l.ReceiptByID(receipt.ID)
	if err != nil || !ok {
		t.Fatalf("receipt lookup: err=%v ok=%v", err, ok)
	}
	if !updated.VoteCast {
		t.Fatalf("expected vote_cast=true")
	}
}

func TestSubmitVoteRejectsDoubleSpendOfReceipt(t *testing.T) {
	registry, l, _, intake := newFixture()
	if _, err := registry.EnsureAgent("ADDR_A"); err != nil {
		t.Fatalf("ensure A: %v", err)
	}
	if _, err := registry.EnsureAgent("ADDR_B"); err != nil {
		t.Fatalf("ensure B: %v", err)
	}
	receipt, err := l.Observe(ledger.PaymentEvent{Signature: "S2", Payer: "ADDR_A", Payee: "ADDR_B", Status: ledger.StatusConfirmed})
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	quality := QualityScores{ResponseQuality: 80, ResponseSpeed: 80, Accuracy: 80, Professionalism: 80}
	if _, err := intake.SubmitVote(receipt.ID, "ADDR_A", "ADDR_B", PolarityUp, quality, ""); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	_, err = intake.SubmitVote(receipt.ID, "ADDR_A", "ADDR_B", PolarityUp, quality, "")
	if err != ErrReceiptAlreadyUsed {
		t.Fatalf("expected ErrReceiptAlreadyUsed, got %v", err)
	}
}

func TestSubmitVoteRejectsPartiesMismatch(t *testing.T) {
	registry, l, _, intake := newFixture()
	for _, addr := range []string{"ADDR_A", "ADDR_B", "ADDR_C"} {
		if _, err := registry.EnsureAgent(addr); err != nil {
			t.Fatalf("ensure %s: %v", addr, err)
		}
	}
	receipt, err := l.Observe(ledger.PaymentEvent{Signature: "S3", Payer: "ADDR_A", Payee: "ADDR_B", Status: ledger.StatusConfirmed})
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	quality := QualityScores{ResponseQuality: 50, ResponseSpeed: 50, Accuracy: 50, Professionalism: 50}
	_, err = intake.SubmitVote(receipt.ID, "ADDR_A", "ADDR_C", PolarityUp, quality, "")
	if err != ErrPartiesMismatch {
		t.Fatalf("expected ErrPartiesMismatch, got %v", err)
	}
}

func TestSubmitEndorsementAndRevoke(t *testing.T) {
	registry, _, g, intake := newFixture()
	if _, err := registry.EnsureAgent("ADDR_A"); err != nil {
		t.Fatalf("ensure A: %v", err)
	}
	if _, err := registry.EnsureAgent("ADDR_B"); err != nil {
		t.Fatalf("ensure B: %v", err)
	}

	endorsement, err := intake.SubmitEndorsement("ADDR_A", "ADDR_B", "skill", "writes clean code", 80, "")
	if err != nil {
		t.Fatalf("submit endorsement: %v", err)
	}

	agentA, _ := registry.Resolve("ADDR_A")
	agentB, _ := registry.Resolve("ADDR_B")
	edge, ok, err := g.Edge(agentA.AgentID, agentB.AgentID, graph.EdgeEndorsement)
	if err != nil || !ok || !edge.Active {
		t.Fatalf("expected active endorsement edge, err=%v ok=%v", err, ok)
	}

	if err := intake.RevokeEndorsement(endorsement.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	edge, _, _ = g.Edge(agentA.AgentID, agentB.AgentID, graph.EdgeEndorsement)
	if edge.Active {
		t.Fatalf("expected edge to be deactivated after revoke")
	}
}
