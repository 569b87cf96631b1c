// Package storage provides the persistence backends shared across every
// native package: an in-memory implementation exercised by integration
// tests, and Postgres/sqlite implementations for production deployment.
package storage

import (
	"sort"
	"sync"
	"time"

	"trustmesh/native/anomaly"
	"trustmesh/native/authority"
	"trustmesh/native/directory"
	"trustmesh/native/graph"
	"trustmesh/native/ledger"
	"trustmesh/native/path"
	"trustmesh/native/schemes"
	"trustmesh/native/score"
	"trustmesh/native/sybil"
	"trustmesh/native/votes"
)

// Memory is a single process-local backend satisfying every native
// package's Store interface. It is the store exercised by unit and
// integration tests throughout the module; the Postgres and sqlite
// implementations for production use live in the storage/postgres and
// storage/sqlite subpackages.
type Memory struct {
	mu sync.RWMutex

	agentsByID   map[string]*directory.Agent
	agentsByAddr map[string]string

	payments       map[string]*ledger.PaymentRecord
	receiptsByID   map[[32]byte]*ledger.Receipt
	receiptsBySig  map[string][32]byte

	edges          map[graph.EdgeKey]*graph.TrustEdge
	graphVersion   uint64

	agentMetrics map[string]*authority.AgentMetrics

	paths map[pathKey]*path.TrustPath

	sybilMetrics map[string]*sybil.Metrics

	authorizations map[string]*schemes.PaymentAuthorization
	subscriptions  map[string]*schemes.Subscription
	batches        map[string]*schemes.Batch

	scoreHistory map[string][]*score.HistoryEntry

	votesBySubject map[string][]*votes.Vote
	endorsements   map[string]*votes.Endorsement

	alerts []*anomaly.Alert
}

type pathKey struct {
	from, to string
}

// NewMemory constructs an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		agentsByID:    make(map[string]*directory.Agent),
		agentsByAddr:  make(map[string]string),
		payments:      make(map[string]*ledger.PaymentRecord),
		receiptsByID:  make(map[[32]byte]*ledger.Receipt),
		receiptsBySig: make(map[string][32]byte),
		edges:         make(map[graph.EdgeKey]*graph.TrustEdge),
		agentMetrics:  make(map[string]*authority.AgentMetrics),
		paths:         make(map[pathKey]*path.TrustPath),
		sybilMetrics:  make(map[string]*sybil.Metrics),
		authorizations: make(map[string]*schemes.PaymentAuthorization),
		subscriptions:  make(map[string]*schemes.Subscription),
		batches:        make(map[string]*schemes.Batch),
		scoreHistory:   make(map[string][]*score.HistoryEntry),
		votesBySubject: make(map[string][]*votes.Vote),
		endorsements:   make(map[string]*votes.Endorsement),
	}
}

// --- directory.Store ---

func (m *Memory) GetByAddress(address string) (*directory.Agent, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.agentsByAddr[address]
	if !ok {
		return nil, false, nil
	}
	return m.agentsByID[id].Clone(), true, nil
}

func (m *Memory) GetByID(agentID string) (*directory.Agent, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agentsByID[agentID]
	if !ok {
		return nil, false, nil
	}
	return a.Clone(), true, nil
}

func (m *Memory) Put(agent *directory.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agentsByID[agent.AgentID] = agent.Clone()
	m.agentsByAddr[agent.Address] = agent.AgentID
	return nil
}

func (m *Memory) List() ([]*directory.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*directory.Agent, 0, len(m.agentsByID))
	for _, a := range m.agentsByID {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

// --- ledger.Store ---

func (m *Memory) GetPayment(signature string) (*ledger.PaymentRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.payments[signature]
	if !ok {
		return nil, false, nil
	}
	clone := *r
	return &clone, true, nil
}

func (m *Memory) PutPayment(record *ledger.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *record
	m.payments[record.Signature] = &clone
	return nil
}

func (m *Memory) GetReceiptByID(id [32]byte) (*ledger.Receipt, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.receiptsByID[id]
	if !ok {
		return nil, false, nil
	}
	clone := *r
	return &clone, true, nil
}

func (m *Memory) GetReceiptBySignature(signature string) (*ledger.Receipt, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.receiptsBySig[signature]
	if !ok {
		return nil, false, nil
	}
	clone := *m.receiptsByID[id]
	return &clone, true, nil
}

func (m *Memory) PutReceipt(receipt *ledger.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *receipt
	m.receiptsByID[receipt.ID] = &clone
	m.receiptsBySig[receipt.Signature] = receipt.ID
	return nil
}

func (m *Memory) SetVoteCast(id [32]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receiptsByID[id]
	if !ok {
		return ledger.ErrReceiptNotFound
	}
	r.VoteCast = true
	return nil
}

func (m *Memory) ReceiptsForAgent(address string) ([]*ledger.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ledger.Receipt
	for _, r := range m.receiptsByID {
		if r.Payer == address || r.Payee == address {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out, nil
}

// --- graph.Store ---

func (m *Memory) GetEdge(key graph.EdgeKey) (*graph.TrustEdge, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.edges[key]
	if !ok {
		return nil, false, nil
	}
	return e.Clone(), true, nil
}

func (m *Memory) PutEdge(edge *graph.TrustEdge) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[edge.Key()] = edge.Clone()
	m.graphVersion++
	return m.graphVersion, nil
}

func (m *Memory) Deactivate(key graph.EdgeKey) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.edges[key]
	if !ok {
		return m.graphVersion, graph.ErrEdgeNotFound
	}
	e.Active = false
	m.graphVersion++
	return m.graphVersion, nil
}

func (m *Memory) OutgoingActive(from string) ([]*graph.TrustEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*graph.TrustEdge
	for _, e := range m.edges {
		if e.From == from && e.Active {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (m *Memory) IncomingActive(to string) ([]*graph.TrustEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*graph.TrustEdge
	for _, e := range m.edges {
		if e.To == to && e.Active {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (m *Memory) AllActive() ([]*graph.TrustEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*graph.TrustEdge
	for _, e := range m.edges {
		if e.Active {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (m *Memory) Version() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.graphVersion, nil
}

// --- authority.Store ---

func (m *Memory) PutAgentMetrics(metrics *authority.AgentMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *metrics
	m.agentMetrics[metrics.AgentID] = &clone
	return nil
}

func (m *Memory) GetAgentMetrics(agentID string) (*authority.AgentMetrics, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agentMetrics[agentID]
	if !ok {
		return nil, false, nil
	}
	clone := *a
	return &clone, true, nil
}

func (m *Memory) ListAgentMetrics() ([]*authority.AgentMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*authority.AgentMetrics, 0, len(m.agentMetrics))
	for _, a := range m.agentMetrics {
		clone := *a
		out = append(out, &clone)
	}
	return out, nil
}

// --- path.Store ---

func (m *Memory) GetPath(from, to string) (*path.TrustPath, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.paths[pathKey{from: from, to: to}]
	if !ok {
		return nil, false, nil
	}
	clone := *p
	return &clone, true, nil
}

func (m *Memory) PutPath(p *path.TrustPath) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *p
	m.paths[pathKey{from: p.From, to: p.To}] = &clone
	return nil
}

// --- sybil.Store ---

func (m *Memory) PutMetrics(metrics *sybil.Metrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *metrics
	m.sybilMetrics[metrics.AgentID] = &clone
	return nil
}

func (m *Memory) GetMetrics(agentID string) (*sybil.Metrics, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sybilMetrics[agentID]
	if !ok {
		return nil, false, nil
	}
	clone := *s
	return &clone, true, nil
}

func (m *Memory) ListMetrics() ([]*sybil.Metrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*sybil.Metrics, 0, len(m.sybilMetrics))
	for _, s := range m.sybilMetrics {
		clone := *s
		out = append(out, &clone)
	}
	return out, nil
}

// --- schemes.Store ---

func (m *Memory) PutAuthorization(a *schemes.PaymentAuthorization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *a
	m.authorizations[a.AuthorizationID] = &clone
	return nil
}

func (m *Memory) GetAuthorization(id string) (*schemes.PaymentAuthorization, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.authorizations[id]
	if !ok {
		return nil, false, nil
	}
	clone := *a
	return &clone, true, nil
}

func (m *Memory) ListAuthorizations() ([]*schemes.PaymentAuthorization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*schemes.PaymentAuthorization, 0, len(m.authorizations))
	for _, a := range m.authorizations {
		clone := *a
		out = append(out, &clone)
	}
	return out, nil
}

func (m *Memory) PutSubscription(s *schemes.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *s
	m.subscriptions[s.SubscriptionID] = &clone
	return nil
}

func (m *Memory) GetSubscription(id string) (*schemes.Subscription, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subscriptions[id]
	if !ok {
		return nil, false, nil
	}
	clone := *s
	return &clone, true, nil
}

func (m *Memory) ListSubscriptions() ([]*schemes.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*schemes.Subscription, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		clone := *s
		out = append(out, &clone)
	}
	return out, nil
}

func (m *Memory) PutBatch(b *schemes.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[b.BatchID] = b
	return nil
}

func (m *Memory) GetBatch(id string) (*schemes.Batch, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, false, nil
	}
	return b, true, nil
}

// --- score.Store ---

func (m *Memory) AppendHistory(entry *score.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *entry
	m.scoreHistory[entry.AgentID] = append(m.scoreHistory[entry.AgentID], &clone)
	return nil
}

func (m *Memory) HistoryForAgent(agentID string) ([]*score.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.scoreHistory[agentID]
	out := make([]*score.HistoryEntry, len(entries))
	for i, e := range entries {
		clone := *e
		out[i] = &clone
	}
	return out, nil
}

// --- votes.Store ---

func (m *Memory) PutVote(v *votes.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *v
	m.votesBySubject[v.Subject] = append(m.votesBySubject[v.Subject], &clone)
	return nil
}

func (m *Memory) VotesForSubject(subject string) ([]*votes.Vote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.votesBySubject[subject]
	out := make([]*votes.Vote, len(entries))
	for i, v := range entries {
		clone := *v
		out[i] = &clone
	}
	return out, nil
}

func (m *Memory) PutEndorsement(e *votes.Endorsement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *e
	m.endorsements[e.ID] = &clone
	return nil
}

func (m *Memory) GetEndorsement(id string) (*votes.Endorsement, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.endorsements[id]
	if !ok {
		return nil, false, nil
	}
	clone := *e
	return &clone, true, nil
}

func (m *Memory) DeactivateEndorsement(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.endorsements[id]
	if !ok {
		return votes.ErrEndorsementNotFound
	}
	e.Active = false
	return nil
}

func (m *Memory) EndorsementsForSubject(subject string) ([]*votes.Endorsement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*votes.Endorsement
	for _, e := range m.endorsements {
		if e.Subject == subject {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

// --- anomaly.Store ---

func (m *Memory) AppendAlert(a *anomaly.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *a
	m.alerts = append(m.alerts, &clone)
	return nil
}

func (m *Memory) AlertsSince(since time.Time) ([]*anomaly.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*anomaly.Alert
	for _, a := range m.alerts {
		if !a.Timestamp.Before(since) {
			clone := *a
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *Memory) OpenFacilitatorIncident(facilitator string, since time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.alerts {
		if a.Type != anomaly.AlertFacilitatorDown || a.Subject != facilitator {
			continue
		}
		if a.Resolved {
			continue
		}
		if !a.Timestamp.Before(since) {
			return true, nil
		}
	}
	return false, nil
}
