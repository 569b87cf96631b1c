package score

import (
	"math"
	"strings"
	"time"

	"trustmesh/native/directory"
)

// Bayesian smoothing prior for the trust sub-score: a fresh agent with no
// votes starts at the prior mean rather than 0 or 100.
const (
	trustPriorWeight = 5.0
	trustPriorMean   = 0.5
)

// Reliability window weights, heaviest on the most recent window.
const (
	reliabilityWeight24h = 0.5
	reliabilityWeight7d  = 0.3
	reliabilityWeight30d = 0.2
)

// Engine composes sub-scores into the tiered composite score and records
// history on change.
type Engine struct {
	store    Store
	registry *directory.Registry
	nowFn    func() time.Time
}

// NewEngine constructs a composite-score engine.
func NewEngine(store Store, registry *directory.Registry) *Engine {
	return &Engine{store: store, registry: registry, nowFn: time.Now}
}

// SetNowFunc overrides the wall clock used for history timestamps.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

func (e *Engine) now() time.Time {
	if e == nil || e.nowFn == nil {
		return time.Now()
	}
	return e.nowFn()
}

// SubScoresFor derives the five [0,100] sub-scores from raw agent stats.
func SubScoresFor(stats AgentStats) SubScores {
	trust := clamp100((trustPriorWeight*trustPriorMean + stats.VoterAuthorityWeightedPositive) /
		(trustPriorWeight + stats.VoterAuthorityWeightedTotal) * 100)

	quality := clamp100(stats.QualityMean)

	reliability := clamp100(
		reliabilityWeight24h*stats.SuccessRate24h +
			reliabilityWeight7d*stats.SuccessRate7d +
			reliabilityWeight30d*stats.SuccessRate30d -
			stats.ErrorRatePercent)

	economic := clamp100(
		20*math.Log10(1+float64(stats.CumulativeVolumeMicro)/1e6) +
			10*math.Log10(1+float64(stats.RecentVolumeMicro)/1e6))

	social := clamp100(float64(stats.PageRankNormalized))

	return SubScores{Trust: trust, Quality: quality, Reliability: reliability, Economic: economic, Social: social}
}

func clamp100(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Compose derives the overall [0,1000] score and tier from sub-scores and a
// sybil risk score in [0,100].
func Compose(sub SubScores, sybilRisk float64) (int, Tier) {
	weighted := WeightTrust*sub.Trust + WeightQuality*sub.Quality + WeightReliability*sub.Reliability +
		WeightEconomic*sub.Economic + WeightSocial*sub.Social
	overall := 10 * weighted * (1 - 0.2*sybilRisk/100)
	score := int(math.Round(overall))
	if score < 0 {
		score = 0
	}
	if score > 1000 {
		score = 1000
	}
	return score, TierFor(score)
}

// Recompute derives fresh sub-scores for an agent, composes the overall
// score and tier, persists them onto the agent record, and appends a
// ScoreHistory entry. If the tier changed from the agent's prior tier, the
// reason is recorded as "tier_change"; otherwise "recompute".
func (e *Engine) Recompute(agentID string, stats AgentStats) (*Result, error) {
	if e == nil || e.store == nil || e.registry == nil {
		return nil, nil
	}
	agent, err := e.registry.ResolveByID(agentID)
	if err != nil {
		return nil, err
	}

	sub := SubScoresFor(stats)
	overall, tier := Compose(sub, stats.SybilRiskScore)

	reason := "recompute"
	if strings.TrimSpace(agent.Tier) != string(tier) {
		reason = "tier_change"
	}

	if err := e.registry.UpdateScore(agentID, overall, string(tier)); err != nil {
		return nil, err
	}
	if err := e.store.AppendHistory(&HistoryEntry{
		AgentID:   agentID,
		Score:     overall,
		Tier:      tier,
		Reason:    reason,
		Timestamp: e.now(),
	}); err != nil {
		return nil, err
	}

	return &Result{AgentID: agentID, SubScores: sub, Overall: overall, Tier: tier}, nil
}

// History returns the append-only score history for an agent.
func (e *Engine) History(agentID string) ([]*HistoryEntry, error) {
	if e == nil || e.store == nil {
		return nil, nil
	}
	return e.store.HistoryForAgent(agentID)
}
