package score

import (
	"testing"
	"time"

	"trustmesh/native/directory"
	"trustmesh/storage"
)

func TestComposeTierThresholds(t *testing.T) {
	cases := []struct {
		sub  SubScores
		risk float64
		tier Tier
	}{
		{SubScores{}, 0, TierBronze},
		{SubScores{Trust: 80, Quality: 80, Reliability: 80, Economic: 80, Social: 80}, 0, TierGold},
		{SubScores{Trust: 100, Quality: 100, Reliability: 100, Economic: 100, Social: 100}, 0, TierPlatinum},
	}
	for _, c := range cases {
		score, tier := Compose(c.sub, c.risk)
		if tier != c.tier {
			t.Fatalf("sub=%+v risk=%v: score=%d tier=%s want %s", c.sub, c.risk, score, tier, c.tier)
		}
	}
}

func TestComposeSybilPenaltyLowersScore(t *testing.T) {
	sub := SubScores{Trust: 80, Quality: 80, Reliability: 80, Economic: 80, Social: 80}
	clean, _ := Compose(sub, 0)
	penalized, _ := Compose(sub, 100)
	if penalized >= clean {
		t.Fatalf("expected sybil risk to reduce score: clean=%d penalized=%d", clean, penalized)
	}
	if clean-penalized != clean/5 {
		// 0.2 * risk/100 at risk=100 removes exactly 20% of the weighted score.
		t.Fatalf("expected a 20%% reduction at risk=100: clean=%d penalized=%d", clean, penalized)
	}
}

func TestSubScoresForFreshAgentStartsAtPrior(t *testing.T) {
	sub := SubScoresFor(AgentStats{})
	if sub.Trust != trustPriorMean*100 {
		t.Fatalf("fresh agent trust = %v, want prior mean %v", sub.Trust, trustPriorMean*100)
	}
}

func TestRecomputePersistsScoreAndHistory(t *testing.T) {
	mem := storage.NewMemory()
	registry := directory.NewRegistry(mem)
	agent, err := registry.EnsureAgent("ADDR_A")
	if err != nil {
		t.Fatalf("ensure agent: %v", err)
	}

	eng := NewEngine(mem, registry)
	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	eng.SetNowFunc(func() time.Time { return fixedNow })

	result, err := eng.Recompute(agent.AgentID, AgentStats{
		VoterAuthorityWeightedPositive: 90,
		VoterAuthorityWeightedTotal:    95,
		QualityMean:                    92,
		SuccessRate24h:                 95,
		SuccessRate7d:                  93,
		SuccessRate30d:                 90,
		PageRankNormalized:             80,
	})
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if result.Overall <= 0 {
		t.Fatalf("expected positive overall score, got %d", result.Overall)
	}

	refreshed, err := registry.ResolveByID(agent.AgentID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if refreshed.Score != result.Overall {
		t.Fatalf("agent record score = %d, want %d", refreshed.Score, result.Overall)
	}
	if refreshed.Tier != string(result.Tier) {
		t.Fatalf("agent record tier = %s, want %s", refreshed.Tier, result.Tier)
	}

	history, err := eng.History(agent.AgentID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one history entry, got %d", len(history))
	}
	if history[0].Reason != "tier_change" {
		t.Fatalf("first history entry reason = %q, want tier_change", history[0].Reason)
	}
	if !history[0].Timestamp.Equal(fixedNow) {
		t.Fatalf("history timestamp = %v, want %v", history[0].Timestamp, fixedNow)
	}
}

func TestRecomputeReasonRecomputeWhenTierUnchanged(t *testing.T) {
	mem := storage.NewMemory()
	registry := directory.NewRegistry(mem)
	agent, err := registry.EnsureAgent("ADDR_B")
	if err != nil {
		t.Fatalf("ensure agent: %v", err)
	}
	if err := registry.UpdateScore(agent.AgentID, 10, string(TierBronze)); err != nil {
		t.Fatalf("seed score: %v", err)
	}

	eng := NewEngine(mem, registry)
	result, err := eng.Recompute(agent.AgentID, AgentStats{})
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if result.Tier != TierBronze {
		t.Fatalf("expected bronze tier for empty stats, got %s", result.Tier)
	}

	history, err := eng.History(agent.AgentID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Reason != "recompute" {
		t.Fatalf("expected single recompute-reason entry, got %+v", history)
	}
}
