package anomaly_test

import (
	"testing"
	"time"

	"trustmesh/native/anomaly"
	"trustmesh/storage"
)

func TestSuccessRateDropEmitsMediumBelowFortyPoints(t *testing.T) {
	mem := storage.NewMemory()
	engine := anomaly.NewEngine(mem)

	w := anomaly.AgentWindow{
		AgentID:           "agent-x",
		RecentTotal:       10,
		RecentSuccess:     6,
		HistoricalTotal:   20,
		HistoricalSuccess: 18,
	}
	alert, err := engine.CheckAgentSuccessRate(w)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.Severity != anomaly.SeverityMedium {
		t.Fatalf("expected medium severity, got %v", alert.Severity)
	}
	if alert.Type != anomaly.AlertSuccessRateDrop {
		t.Fatalf("unexpected alert type %v", alert.Type)
	}
}

func TestSuccessRateDropBelowThresholdsIsNoOp(t *testing.T) {
	mem := storage.NewMemory()
	engine := anomaly.NewEngine(mem)

	w := anomaly.AgentWindow{
		AgentID:           "agent-y",
		RecentTotal:       4,
		RecentSuccess:     1,
		HistoricalTotal:   20,
		HistoricalSuccess: 18,
	}
	alert, err := engine.CheckAgentSuccessRate(w)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if alert != nil {
		t.Fatalf("expected no alert below minimum recent volume, got %+v", alert)
	}
}

func TestErrorRateSpikeSeverityEscalates(t *testing.T) {
	mem := storage.NewMemory()
	engine := anomaly.NewEngine(mem)

	w := anomaly.AgentWindow{
		AgentID:         "agent-z",
		RecentTotal:     10,
		RecentErrors:    4,
		HistoricalTotal: 20,
		HistoricalErrors: 1,
	}
	alert, err := engine.CheckAgentErrorRate(w)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if alert == nil {
		t.Fatal("expected alert")
	}
	if alert.Severity != anomaly.SeverityHigh {
		t.Fatalf("expected high severity, got %v", alert.Severity)
	}
}

func TestVolumeAnomalyDropAndSpike(t *testing.T) {
	mem := storage.NewMemory()
	engine := anomaly.NewEngine(mem)

	dropAlert, err := engine.CheckVolumeAnomaly(anomaly.NetworkWindow{RecentHourCount: 10, SameHourYesterdayCount: 100})
	if err != nil {
		t.Fatalf("drop check: %v", err)
	}
	if dropAlert == nil || dropAlert.Severity != anomaly.SeverityHigh {
		t.Fatalf("expected high-severity drop alert, got %+v", dropAlert)
	}

	spikeAlert, err := engine.CheckVolumeAnomaly(anomaly.NetworkWindow{RecentHourCount: 500, SameHourYesterdayCount: 100})
	if err != nil {
		t.Fatalf("spike check: %v", err)
	}
	if spikeAlert == nil {
		t.Fatal("expected spike alert")
	}

	belowFloor, err := engine.CheckVolumeAnomaly(anomaly.NetworkWindow{RecentHourCount: 50, SameHourYesterdayCount: 10})
	if err != nil {
		t.Fatalf("below-floor check: %v", err)
	}
	if belowFloor != nil {
		t.Fatalf("expected no alert below absolute spike floor, got %+v", belowFloor)
	}
}

func TestFacilitatorOutageDeduplicatesWithinSixHours(t *testing.T) {
	mem := storage.NewMemory()
	engine := anomaly.NewEngine(mem)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	engine.SetNowFunc(func() time.Time { return now })

	first, err := engine.CheckFacilitatorHealth(anomaly.FacilitatorWindow{Facilitator: "stripe", ConsecutiveFailures: 5})
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	if first == nil || first.Severity != anomaly.SeverityCritical {
		t.Fatalf("expected critical first alert, got %+v", first)
	}

	now = now.Add(time.Hour)
	second, err := engine.CheckFacilitatorHealth(anomaly.FacilitatorWindow{Facilitator: "stripe", ConsecutiveFailures: 6})
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if second != nil {
		t.Fatalf("expected dedup to suppress second alert, got %+v", second)
	}

	now = now.Add(6 * time.Hour)
	third, err := engine.CheckFacilitatorHealth(anomaly.FacilitatorWindow{Facilitator: "stripe", ConsecutiveFailures: 3})
	if err != nil {
		t.Fatalf("third check: %v", err)
	}
	if third == nil {
		t.Fatal("expected a fresh alert once the dedup window has passed")
	}
}

func TestMeterRollsUpAgentAndNetworkWindows(t *testing.T) {
	meter := anomaly.NewMeter(48)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	meter.Record("agent-a", base, true)
	meter.Record("agent-a", base.Add(-2*time.Hour), false)
	meter.Record("agent-a", base.Add(-25*time.Hour), true)

	w := meter.AgentWindow("agent-a", base)
	if w.RecentTotal != 1 || w.RecentSuccess != 1 {
		t.Fatalf("unexpected recent window: %+v", w)
	}
	if w.HistoricalTotal != 1 || w.HistoricalErrors != 1 {
		t.Fatalf("unexpected historical window: %+v", w)
	}

	nw := meter.NetworkWindow(base)
	if nw.RecentHourCount != 1 {
		t.Fatalf("unexpected network recent count: %+v", nw)
	}
}
