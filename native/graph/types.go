// Package graph maintains the directed weighted multi-edge trust graph over
// agents. Nodes are agent ids; edges are TrustEdges keyed by (from, to, type).
package graph

import "time"

// EdgeType classifies how a TrustEdge came to exist.
type EdgeType string

const (
	EdgeVote        EdgeType = "vote"
	EdgeEndorsement EdgeType = "endorsement"
	EdgeAttestation EdgeType = "attestation"
	EdgeTransaction EdgeType = "transaction"
	EdgeComputed    EdgeType = "computed"
)

// TrustEdge is a directed, typed, weighted relationship between two agents.
// No self-edges are permitted; at most one active edge exists per
// (From, To, Type).
type TrustEdge struct {
	From       string
	To         string
	Type       EdgeType
	Weight     float64
	Categories []string
	SourceRef  string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Key identifies the edge slot this edge occupies.
func (e TrustEdge) Key() EdgeKey {
	return EdgeKey{From: e.From, To: e.To, Type: e.Type}
}

// EdgeKey is the (from, to, type) identity of an edge slot.
type EdgeKey struct {
	From string
	To   string
	Type EdgeType
}

// Clone returns a deep copy so callers cannot mutate the graph's state
// through an aliased slice.
func (e *TrustEdge) Clone() *TrustEdge {
	if e == nil {
		return nil
	}
	clone := *e
	if len(e.Categories) > 0 {
		clone.Categories = append([]string(nil), e.Categories...)
	}
	return &clone
}
