package graph

// Store abstracts the trust graph's persistence backend. Implementations
// must provide indices by from, by to, by (from, to), by active flag, and by
// type so neighborhood queries run in O(deg). The store also owns the graph
// version counter: it must increment on any insert, update, or deactivate of
// an edge.
type Store interface {
	GetEdge(key EdgeKey) (*TrustEdge, bool, error)
	PutEdge(edge *TrustEdge) (version uint64, err error)
	Deactivate(key EdgeKey) (version uint64, err error)

	OutgoingActive(from string) ([]*TrustEdge, error)
	IncomingActive(to string) ([]*TrustEdge, error)
	AllActive() ([]*TrustEdge, error)

	Version() (uint64, error)
}
