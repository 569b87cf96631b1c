package directory

import "testing"

func TestEnsureAgentCreatesOnFirstObservation(t *testing.T) {
	r := NewRegistry(newMemoryStore())
	agent, err := r.EnsureAgent("ADDR_A")
	if err != nil {
		t.Fatalf("ensure agent: %v", err)
	}
	if agent.AgentID == "" {
		t.Fatalf("expected a generated agent id")
	}
	if !agent.Active || agent.Tier != "bronze" {
		t.Fatalf("unexpected defaults: %+v", agent)
	}

	again, err := r.EnsureAgent("ADDR_A")
	if err != nil {
		t.Fatalf("ensure agent again: %v", err)
	}
	if again.AgentID != agent.AgentID {
		t.Fatalf("expected the same agent id on repeated observation")
	}
}

func TestResolveUnknownAgentFails(t *testing.T) {
	r := NewRegistry(newMemoryStore())
	if _, err := r.Resolve("ADDR_UNKNOWN"); err != ErrUnknownAgent {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestSetActiveNeverDeletes(t *testing.T) {
	r := NewRegistry(newMemoryStore())
	agent, err := r.EnsureAgent("ADDR_B")
	if err != nil {
		t.Fatalf("ensure agent: %v", err)
	}
	if err := r.SetActive(agent.AgentID, false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	fetched, err := r.ResolveByID(agent.AgentID)
	if err != nil {
		t.Fatalf("resolve by id: %v", err)
	}
	if fetched.Active {
		t.Fatalf("expected agent to be deactivated, not deleted")
	}
}
