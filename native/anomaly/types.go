// Package anomaly watches rolling windows of payment and facilitator health
// activity and emits deduplicated alerts for success-rate drops, error-rate
// spikes, network-wide volume swings, and facilitator outages.
package anomaly

import "time"

// AlertType classifies what kind of anomaly triggered an alert.
type AlertType string

const (
	AlertSuccessRateDrop  AlertType = "success_rate_drop"
	AlertErrorRateSpike   AlertType = "error_rate_spike"
	AlertVolumeAnomaly    AlertType = "volume_anomaly"
	AlertFacilitatorDown  AlertType = "facilitator_outage"
)

// Severity is the urgency tag carried by an Alert.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is the append-only record emitted when a check trips. Resolution is
// an external action; the detector never mutates an Alert after emitting it.
type Alert struct {
	ID            string
	Type          AlertType
	Subject       string
	Metric        string
	Current       float64
	Historical    float64
	ChangePercent float64
	Severity      Severity
	Timestamp     time.Time
	Resolved      bool
}

// AgentWindow carries the rolled-up counters an agent check needs. The
// recent window is the trailing hour; the historical window is the 23 hours
// preceding it, matching the 24h lookback spec.
type AgentWindow struct {
	AgentID            string
	RecentTotal        int
	RecentSuccess      int
	RecentErrors       int
	HistoricalTotal    int
	HistoricalSuccess  int
	HistoricalErrors   int
}

func (w AgentWindow) recentSuccessRate() float64 {
	if w.RecentTotal == 0 {
		return 0
	}
	return 100 * float64(w.RecentSuccess) / float64(w.RecentTotal)
}

func (w AgentWindow) historicalSuccessRate() float64 {
	if w.HistoricalTotal == 0 {
		return 0
	}
	return 100 * float64(w.HistoricalSuccess) / float64(w.HistoricalTotal)
}

func (w AgentWindow) recentErrorRate() float64 {
	if w.RecentTotal == 0 {
		return 0
	}
	return 100 * float64(w.RecentErrors) / float64(w.RecentTotal)
}

func (w AgentWindow) historicalErrorRate() float64 {
	if w.HistoricalTotal == 0 {
		return 0
	}
	return 100 * float64(w.HistoricalErrors) / float64(w.HistoricalTotal)
}

// NetworkWindow carries network-wide transaction counts for the volume
// anomaly check: the trailing hour versus the same hour one day earlier.
type NetworkWindow struct {
	RecentHourCount        int
	SameHourYesterdayCount int
}

// FacilitatorWindow carries the consecutive health-check failure count for
// one facilitator, as observed by the outage check.
type FacilitatorWindow struct {
	Facilitator         string
	ConsecutiveFailures int
}
