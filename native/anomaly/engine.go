package anomaly

import (
	"fmt"
	"time"
)

const (
	minRecentTxs        = 5
	minHistoricalTxs    = 10
	successRateFloor    = 50.0
	successDropPP       = 20.0
	successDropHighPP   = 40.0
	errorSpikeFloorPct  = 10.0
	errorSpikeHighPct   = 30.0
	errorSpikeMultiple  = 2.0
	volumeDropPct       = 50.0
	volumeDropHighPct   = 75.0
	volumeSpikeMultiple = 3.0
	volumeSpikeFloor    = 100
	facilitatorMinFail  = 3
	facilitatorCritFail = 5
	facilitatorDedupe   = 6 * time.Hour
)

// Engine runs the periodic anomaly checks described by the spec and persists
// any tripped alert through Store. Each Check* method is independently
// callable; Scan runs every check over a full snapshot in one pass, the
// shape the scheduler's periodic task drives.
type Engine struct {
	store Store
	nowFn func() time.Time
}

// NewEngine constructs an anomaly detector bound to the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, nowFn: time.Now}
}

// SetNowFunc overrides the wall clock, for deterministic tests.
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

func (e *Engine) emit(a *Alert) (*Alert, error) {
	if e == nil || e.store == nil {
		return nil, fmt.Errorf("anomaly: store unavailable")
	}
	a.Timestamp = e.now()
	if err := e.store.AppendAlert(a); err != nil {
		return nil, err
	}
	return a, nil
}

// CheckAgentSuccessRate compares an agent's trailing-hour success rate
// against its preceding 23-hour baseline.
func (e *Engine) CheckAgentSuccessRate(w AgentWindow) (*Alert, error) {
	if w.RecentTotal < minRecentTxs || w.HistoricalTotal < minHistoricalTxs {
		return nil, nil
	}
	historical := w.historicalSuccessRate()
	if historical <= successRateFloor {
		return nil, nil
	}
	recent := w.recentSuccessRate()
	drop := historical - recent
	if drop <= successDropPP {
		return nil, nil
	}
	severity := SeverityMedium
	if drop > successDropHighPP {
		severity = SeverityHigh
	}
	return e.emit(&Alert{
		Type:          AlertSuccessRateDrop,
		Subject:       w.AgentID,
		Metric:        "success_rate",
		Current:       recent,
		Historical:    historical,
		ChangePercent: -drop,
		Severity:      severity,
	})
}

// CheckAgentErrorRate compares an agent's trailing-hour error rate against
// its historical baseline.
func (e *Engine) CheckAgentErrorRate(w AgentWindow) (*Alert, error) {
	if w.RecentTotal < minRecentTxs || w.HistoricalTotal < minHistoricalTxs {
		return nil, nil
	}
	recent := w.recentErrorRate()
	historical := w.historicalErrorRate()
	if recent <= errorSpikeFloorPct {
		return nil, nil
	}
	if historical > 0 && recent <= historical*errorSpikeMultiple {
		return nil, nil
	}
	if historical == 0 && recent <= errorSpikeFloorPct {
		return nil, nil
	}
	severity := SeverityMedium
	if recent > errorSpikeHighPct {
		severity = SeverityHigh
	}
	changePercent := 0.0
	if historical > 0 {
		changePercent = 100 * (recent - historical) / historical
	}
	return e.emit(&Alert{
		Type:          AlertErrorRateSpike,
		Subject:       w.AgentID,
		Metric:        "error_rate",
		Current:       recent,
		Historical:    historical,
		ChangePercent: changePercent,
		Severity:      severity,
	})
}

// CheckVolumeAnomaly compares network-wide transaction volume in the
// trailing hour against the same hour one day prior.
func (e *Engine) CheckVolumeAnomaly(w NetworkWindow) (*Alert, error) {
	recent := float64(w.RecentHourCount)
	baseline := float64(w.SameHourYesterdayCount)
	if baseline <= 0 {
		return nil, nil
	}

	drop := 100 * (baseline - recent) / baseline
	if drop > volumeDropPct {
		severity := SeverityMedium
		if drop > volumeDropHighPct {
			severity = SeverityHigh
		}
		return e.emit(&Alert{
			Type:          AlertVolumeAnomaly,
			Subject:       "network",
			Metric:        "tx_count",
			Current:       recent,
			Historical:    baseline,
			ChangePercent: -drop,
			Severity:      severity,
		})
	}

	if recent > baseline*volumeSpikeMultiple && w.RecentHourCount > volumeSpikeFloor {
		spike := 100 * (recent - baseline) / baseline
		return e.emit(&Alert{
			Type:          AlertVolumeAnomaly,
			Subject:       "network",
			Metric:        "tx_count",
			Current:       recent,
			Historical:    baseline,
			ChangePercent: spike,
			Severity:      SeverityHigh,
		})
	}

	return nil, nil
}

// CheckFacilitatorHealth evaluates consecutive health-probe failures for one
// facilitator, deduplicating against any non-resolved incident opened for
// the same facilitator within the last 6 hours.
func (e *Engine) CheckFacilitatorHealth(w FacilitatorWindow) (*Alert, error) {
	if w.ConsecutiveFailures < facilitatorMinFail {
		return nil, nil
	}
	if e == nil || e.store == nil {
		return nil, fmt.Errorf("anomaly: store unavailable")
	}
	open, err := e.store.OpenFacilitatorIncident(w.Facilitator, e.now().Add(-facilitatorDedupe))
	if err != nil {
		return nil, err
	}
	if open {
		return nil, nil
	}
	severity := SeverityHigh
	if w.ConsecutiveFailures >= facilitatorCritFail {
		severity = SeverityCritical
	}
	return e.emit(&Alert{
		Type:       AlertFacilitatorDown,
		Subject:    w.Facilitator,
		Metric:     "consecutive_failures",
		Current:    float64(w.ConsecutiveFailures),
		Historical: 0,
		Severity:   severity,
	})
}

// Snapshot bundles every input a full scan pass needs.
type Snapshot struct {
	Agents        []AgentWindow
	Network       NetworkWindow
	Facilitators  []FacilitatorWindow
}

// Scan runs every check over a snapshot and returns the alerts that tripped.
// It is the unit the scheduler's periodic anomaly-scan task drives every 5
// minutes of wall clock.
func (e *Engine) Scan(snap Snapshot) ([]*Alert, error) {
	var out []*Alert
	for _, w := range snap.Agents {
		if a, err := e.CheckAgentSuccessRate(w); err != nil {
			return out, err
		} else if a != nil {
			out = append(out, a)
		}
		if a, err := e.CheckAgentErrorRate(w); err != nil {
			return out, err
		} else if a != nil {
			out = append(out, a)
		}
	}
	if a, err := e.CheckVolumeAnomaly(snap.Network); err != nil {
		return out, err
	} else if a != nil {
		out = append(out, a)
	}
	for _, w := range snap.Facilitators {
		if a, err := e.CheckFacilitatorHealth(w); err != nil {
			return out, err
		} else if a != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

// RecentAlerts returns every alert emitted since the given instant.
func (e *Engine) RecentAlerts(since time.Time) ([]*Alert, error) {
	if e == nil || e.store == nil {
		return nil, nil
	}
	return e.store.AlertsSince(since)
}
