// Package directory maintains the agent registry: the mapping between an
// agent's internal id and its external, globally unique address, plus the
// descriptive attributes every other native package reads but never owns.
package directory

import "time"

// Agent is an autonomous participant identified by a blockchain address.
// AgentID is the internal primary reference used by every other native
// package; Address is the externally observed, globally unique identifier
// that inbound events carry.
type Agent struct {
	AgentID      string
	Address      string
	DisplayName  string
	Category     string
	Capabilities []string
	Active       bool
	Verified     bool
	Score        int
	Tier         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone returns a deep copy so callers cannot mutate registry state through
// an aliased slice.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	clone := *a
	if len(a.Capabilities) > 0 {
		clone.Capabilities = append([]string(nil), a.Capabilities...)
	}
	return &clone
}
