package anomaly

import "sync"

// FacilitatorTracker keeps the consecutive health-probe failure count per
// facilitator, fed by FacilitatorHealthSample observations from the
// outbound probe collaborator. A success resets the streak.
type FacilitatorTracker struct {
	mu       sync.Mutex
	streaks  map[string]int
}

// NewFacilitatorTracker constructs an empty tracker.
func NewFacilitatorTracker() *FacilitatorTracker {
	return &FacilitatorTracker{streaks: make(map[string]int)}
}

// HealthStatus mirrors the inbound FacilitatorHealthSample status tag.
type HealthStatus string

const (
	HealthOnline   HealthStatus = "online"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
)

// Observe records one health probe outcome. Online resets the failure
// streak; degraded or offline extends it.
func (t *FacilitatorTracker) Observe(facilitator string, status HealthStatus) int {
	if t == nil || facilitator == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if status == HealthOnline {
		t.streaks[facilitator] = 0
		return 0
	}
	t.streaks[facilitator]++
	return t.streaks[facilitator]
}

// Windows returns a FacilitatorWindow snapshot for every tracked facilitator.
func (t *FacilitatorTracker) Windows() []FacilitatorWindow {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]FacilitatorWindow, 0, len(t.streaks))
	for facilitator, streak := range t.streaks {
		if streak == 0 {
			continue
		}
		out = append(out, FacilitatorWindow{Facilitator: facilitator, ConsecutiveFailures: streak})
	}
	return out
}
