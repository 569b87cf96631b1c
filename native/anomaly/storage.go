package anomaly

import "time"

// Store abstracts the persistence backend for emitted alerts. Alerts are
// append-only; the detector never updates or deletes one once written.
type Store interface {
	AppendAlert(a *Alert) error
	AlertsSince(since time.Time) ([]*Alert, error)
	OpenFacilitatorIncident(facilitator string, since time.Time) (bool, error)
}
