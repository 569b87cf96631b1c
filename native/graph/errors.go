package graph

import "errors"

var (
	// ErrSelfEdge marks an attempt to create an edge from an agent to itself.
	ErrSelfEdge = errors.New("graph: self edges are not permitted")
	// ErrEdgeNotFound marks a lookup for an edge slot that does not exist.
	ErrEdgeNotFound = errors.New("graph: edge not found")
	// ErrGraphVersionConflict is retryable: the caller observed an edge at
	// one graph version and must re-read before retrying its write.
	ErrGraphVersionConflict = errors.New("graph: version conflict")
)
