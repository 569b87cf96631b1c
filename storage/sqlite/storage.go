// Package sqlite is the embedded development/test persistence backend: raw
// database/sql against modernc.org/sqlite, schema managed by hand-rolled
// CREATE TABLE IF NOT EXISTS statements the way
// services/escrow-gateway/storage.go manages its SQLiteStore.
package sqlite

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

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

// Store is the sqlite-backed Store implementation shared by every native
// package, mirroring storage.Memory's method set against on-disk tables
// instead of in-process maps.
type Store struct {
	db *sql.DB
}

// Open creates or attaches to the sqlite database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS agents (
            agent_id TEXT PRIMARY KEY,
            address TEXT NOT NULL UNIQUE,
            display_name TEXT,
            category TEXT,
            capabilities TEXT,
            active INTEGER NOT NULL,
            verified INTEGER NOT NULL,
            score INTEGER NOT NULL,
            tier TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS payments (
            signature TEXT PRIMARY KEY,
            payer TEXT NOT NULL,
            payee TEXT NOT NULL,
            amount_micro INTEGER NOT NULL,
            currency TEXT,
            network TEXT,
            facilitator TEXT,
            status TEXT NOT NULL,
            endpoint TEXT,
            timestamp TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS receipts (
            id TEXT PRIMARY KEY,
            payer TEXT NOT NULL,
            payee TEXT NOT NULL,
            signature TEXT NOT NULL UNIQUE,
            amount_micro INTEGER NOT NULL,
            category TEXT,
            created_at TIMESTAMP NOT NULL,
            vote_cast INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS trust_edges (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            from_agent TEXT NOT NULL,
            to_agent TEXT NOT NULL,
            type TEXT NOT NULL,
            weight REAL NOT NULL,
            categories TEXT,
            source_ref TEXT,
            active INTEGER NOT NULL,
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL,
            UNIQUE(from_agent, to_agent, type)
        );`,
		`CREATE TABLE IF NOT EXISTS graph_counter (
            id INTEGER PRIMARY KEY,
            version INTEGER NOT NULL
        );`,
		`INSERT OR IGNORE INTO graph_counter(id, version) VALUES (1, 0);`,
		`CREATE TABLE IF NOT EXISTS votes (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            receipt_id TEXT NOT NULL,
            voter TEXT NOT NULL,
            subject TEXT NOT NULL,
            polarity TEXT NOT NULL,
            rq REAL NOT NULL,
            rs REAL NOT NULL,
            accuracy REAL NOT NULL,
            professionalism REAL NOT NULL,
            comment_hash TEXT,
            weight REAL NOT NULL,
            timestamp TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS endorsements (
            id TEXT PRIMARY KEY,
            type TEXT,
            claim TEXT,
            confidence REAL NOT NULL,
            issuer TEXT NOT NULL,
            subject TEXT NOT NULL,
            active INTEGER NOT NULL,
            evidence TEXT,
            issued_at TIMESTAMP NOT NULL,
            expires_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS agent_metrics (
            agent_id TEXT PRIMARY KEY,
            page_rank REAL NOT NULL,
            page_rank_normalized INTEGER NOT NULL,
            out_degree INTEGER NOT NULL,
            in_degree INTEGER NOT NULL,
            graph_version INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS trust_paths (
            from_agent TEXT NOT NULL,
            to_agent TEXT NOT NULL,
            nodes TEXT,
            hop_weights TEXT,
            confidence REAL NOT NULL,
            graph_version INTEGER NOT NULL,
            calculated_at TIMESTAMP NOT NULL,
            expires_at TIMESTAMP NOT NULL,
            PRIMARY KEY(from_agent, to_agent)
        );`,
		`CREATE TABLE IF NOT EXISTS sybil_metrics (
            agent_id TEXT PRIMARY KEY,
            diversity REAL NOT NULL,
            circular INTEGER NOT NULL,
            risk_score REAL NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS payment_authorizations (
            authorization_id TEXT PRIMARY KEY,
            payer TEXT NOT NULL,
            payee TEXT NOT NULL,
            max_amount_micro INTEGER NOT NULL,
            used_micro INTEGER NOT NULL,
            base_cost_micro INTEGER NOT NULL,
            unit_cost_micro INTEGER NOT NULL,
            unit_type TEXT,
            status TEXT NOT NULL,
            expires_at TIMESTAMP,
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
            subscription_id TEXT PRIMARY KEY,
            subscriber TEXT NOT NULL,
            provider TEXT NOT NULL,
            amount_micro INTEGER NOT NULL,
            period_seconds INTEGER NOT NULL,
            status TEXT NOT NULL,
            current_period_start TIMESTAMP,
            current_period_end TIMESTAMP,
            auto_renew INTEGER NOT NULL,
            renewal_count INTEGER NOT NULL,
            grace_seconds INTEGER NOT NULL,
            trial_end TIMESTAMP,
            cancel_requested INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS batches (
            batch_id TEXT PRIMARY KEY,
            initiator TEXT NOT NULL,
            total_micro INTEGER NOT NULL,
            mode TEXT NOT NULL,
            success_count INTEGER NOT NULL,
            failed_count INTEGER NOT NULL,
            status TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS batch_items (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            batch_id TEXT NOT NULL,
            recipient TEXT NOT NULL,
            amount_micro INTEGER NOT NULL,
            status TEXT NOT NULL,
            signature TEXT,
            UNIQUE(batch_id, recipient)
        );`,
		`CREATE TABLE IF NOT EXISTS score_history (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            agent_id TEXT NOT NULL,
            score INTEGER NOT NULL,
            tier TEXT NOT NULL,
            reason TEXT,
            timestamp TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS alerts (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL,
            subject TEXT NOT NULL,
            metric TEXT,
            current REAL NOT NULL,
            historical REAL NOT NULL,
            change_percent REAL NOT NULL,
            severity TEXT NOT NULL,
            timestamp TIMESTAMP NOT NULL,
            resolved INTEGER NOT NULL
        );`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite: init: %w", err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func joinStrings(items []string) string {
	return strings.Join(items, ",")
}

func splitStrings(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// --- directory.Store ---

func (s *Store) GetByAddress(address string) (*directory.Agent, bool, error) {
	row := s.db.QueryRow(`SELECT agent_id, address, display_name, category, capabilities, active, verified, score, tier, created_at, updated_at FROM agents WHERE address = ?`, address)
	return scanAgent(row)
}

func (s *Store) GetByID(agentID string) (*directory.Agent, bool, error) {
	row := s.db.QueryRow(`SELECT agent_id, address, display_name, category, capabilities, active, verified, score, tier, created_at, updated_at FROM agents WHERE agent_id = ?`, agentID)
	return scanAgent(row)
}

func scanAgent(row *sql.Row) (*directory.Agent, bool, error) {
	var a directory.Agent
	var capabilities string
	var active, verified int
	if err := row.Scan(&a.AgentID, &a.Address, &a.DisplayName, &a.Category, &capabilities, &active, &verified, &a.Score, &a.Tier, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	a.Capabilities = splitStrings(capabilities)
	a.Active = active == 1
	a.Verified = verified == 1
	return &a, true, nil
}

func (s *Store) Put(agent *directory.Agent) error {
	const stmt = `INSERT INTO agents(agent_id, address, display_name, category, capabilities, active, verified, score, tier, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(agent_id) DO UPDATE SET address=excluded.address, display_name=excluded.display_name,
            category=excluded.category, capabilities=excluded.capabilities, active=excluded.active,
            verified=excluded.verified, score=excluded.score, tier=excluded.tier, updated_at=excluded.updated_at`
	_, err := s.db.Exec(stmt, agent.AgentID, agent.Address, agent.DisplayName, agent.Category, joinStrings(agent.Capabilities),
		boolToInt(agent.Active), boolToInt(agent.Verified), agent.Score, agent.Tier, agent.CreatedAt, agent.UpdatedAt)
	return err
}

func (s *Store) List() ([]*directory.Agent, error) {
	rows, err := s.db.Query(`SELECT agent_id, address, display_name, category, capabilities, active, verified, score, tier, created_at, updated_at FROM agents ORDER BY agent_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*directory.Agent
	for rows.Next() {
		var a directory.Agent
		var capabilities string
		var active, verified int
		if err := rows.Scan(&a.AgentID, &a.Address, &a.DisplayName, &a.Category, &capabilities, &active, &verified, &a.Score, &a.Tier, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Capabilities = splitStrings(capabilities)
		a.Active = active == 1
		a.Verified = verified == 1
		out = append(out, &a)
	}
	return out, rows.Err()
}

// --- ledger.Store ---

func (s *Store) GetPayment(signature string) (*ledger.PaymentRecord, bool, error) {
	row := s.db.QueryRow(`SELECT signature, payer, payee, amount_micro, currency, network, facilitator, status, endpoint, timestamp, updated_at FROM payments WHERE signature = ?`, signature)
	var p ledger.PaymentRecord
	var status string
	if err := row.Scan(&p.Signature, &p.Payer, &p.Payee, &p.AmountMicro, &p.Currency, &p.Network, &p.Facilitator, &status, &p.Endpoint, &p.Timestamp, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	p.Status = ledger.Status(status)
	return &p, true, nil
}

func (s *Store) PutPayment(record *ledger.PaymentRecord) error {
	const stmt = `INSERT INTO payments(signature, payer, payee, amount_micro, currency, network, facilitator, status, endpoint, timestamp, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(signature) DO UPDATE SET status=excluded.status, endpoint=excluded.endpoint, updated_at=excluded.updated_at`
	_, err := s.db.Exec(stmt, record.Signature, record.Payer, record.Payee, record.AmountMicro, record.Currency, record.Network,
		record.Facilitator, string(record.Status), record.Endpoint, record.Timestamp, record.UpdatedAt)
	return err
}

func (s *Store) GetReceiptByID(id [32]byte) (*ledger.Receipt, bool, error) {
	return s.scanReceipt(`SELECT id, payer, payee, signature, amount_micro, category, created_at, vote_cast FROM receipts WHERE id = ?`, hex.EncodeToString(id[:]))
}

func (s *Store) GetReceiptBySignature(signature string) (*ledger.Receipt, bool, error) {
	return s.scanReceipt(`SELECT id, payer, payee, signature, amount_micro, category, created_at, vote_cast FROM receipts WHERE signature = ?`, signature)
}

func (s *Store) scanReceipt(query, arg string) (*ledger.Receipt, bool, error) {
	row := s.db.QueryRow(query, arg)
	var idHex string
	var r ledger.Receipt
	var voteCast int
	if err := row.Scan(&idHex, &r.Payer, &r.Payee, &r.Signature, &r.AmountMicro, &r.Category, &r.CreatedAt, &voteCast); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	decoded, _ := hex.DecodeString(idHex)
	copy(r.ID[:], decoded)
	r.VoteCast = voteCast == 1
	return &r, true, nil
}

func (s *Store) PutReceipt(receipt *ledger.Receipt) error {
	const stmt = `INSERT INTO receipts(id, payer, payee, signature, amount_micro, category, created_at, vote_cast) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(stmt, hex.EncodeToString(receipt.ID[:]), receipt.Payer, receipt.Payee, receipt.Signature,
		receipt.AmountMicro, receipt.Category, receipt.CreatedAt, boolToInt(receipt.VoteCast))
	return err
}

func (s *Store) SetVoteCast(id [32]byte) error {
	res, err := s.db.Exec(`UPDATE receipts SET vote_cast = 1 WHERE id = ?`, hex.EncodeToString(id[:]))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrReceiptNotFound
	}
	return nil
}

func (s *Store) ReceiptsForAgent(address string) ([]*ledger.Receipt, error) {
	rows, err := s.db.Query(`SELECT id, payer, payee, signature, amount_micro, category, created_at, vote_cast FROM receipts WHERE payer = ? OR payee = ?`, address, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ledger.Receipt
	for rows.Next() {
		var idHex string
		var r ledger.Receipt
		var voteCast int
		if err := rows.Scan(&idHex, &r.Payer, &r.Payee, &r.Signature, &r.AmountMicro, &r.Category, &r.CreatedAt, &voteCast); err != nil {
			return nil, err
		}
		decoded, _ := hex.DecodeString(idHex)
		copy(r.ID[:], decoded)
		r.VoteCast = voteCast == 1
		out = append(out, &r)
	}
	return out, rows.Err()
}

// --- graph.Store ---

func (s *Store) GetEdge(key graph.EdgeKey) (*graph.TrustEdge, bool, error) {
	row := s.db.QueryRow(`SELECT from_agent, to_agent, type, weight, categories, source_ref, active, created_at, updated_at FROM trust_edges WHERE from_agent = ? AND to_agent = ? AND type = ?`,
		key.From, key.To, string(key.Type))
	return scanEdge(row)
}

func scanEdge(row *sql.Row) (*graph.TrustEdge, bool, error) {
	var e graph.TrustEdge
	var typ, categories string
	var active int
	if err := row.Scan(&e.From, &e.To, &typ, &e.Weight, &categories, &e.SourceRef, &active, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	e.Type = graph.EdgeType(typ)
	e.Categories = splitStrings(categories)
	e.Active = active == 1
	return &e, true, nil
}

func (s *Store) PutEdge(edge *graph.TrustEdge) (uint64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	const stmt = `INSERT INTO trust_edges(from_agent, to_agent, type, weight, categories, source_ref, active, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(from_agent, to_agent, type) DO UPDATE SET weight=excluded.weight, categories=excluded.categories,
            source_ref=excluded.source_ref, active=excluded.active, updated_at=excluded.updated_at`
	if _, err := tx.Exec(stmt, edge.From, edge.To, string(edge.Type), edge.Weight, joinStrings(edge.Categories),
		edge.SourceRef, boolToInt(edge.Active), edge.CreatedAt, edge.UpdatedAt); err != nil {
		return 0, err
	}
	version, err := bumpGraphVersion(tx)
	if err != nil {
		return 0, err
	}
	return version, tx.Commit()
}

func (s *Store) Deactivate(key graph.EdgeKey) (uint64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE trust_edges SET active = 0 WHERE from_agent = ? AND to_agent = ? AND type = ?`, key.From, key.To, string(key.Type))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, graph.ErrEdgeNotFound
	}
	version, err := bumpGraphVersion(tx)
	if err != nil {
		return 0, err
	}
	return version, tx.Commit()
}

func bumpGraphVersion(tx *sql.Tx) (uint64, error) {
	if _, err := tx.Exec(`UPDATE graph_counter SET version = version + 1 WHERE id = 1`); err != nil {
		return 0, err
	}
	var version uint64
	if err := tx.QueryRow(`SELECT version FROM graph_counter WHERE id = 1`).Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func (s *Store) OutgoingActive(from string) ([]*graph.TrustEdge, error) {
	return s.queryEdges(`SELECT from_agent, to_agent, type, weight, categories, source_ref, active, created_at, updated_at FROM trust_edges WHERE from_agent = ? AND active = 1`, from)
}

func (s *Store) IncomingActive(to string) ([]*graph.TrustEdge, error) {
	return s.queryEdges(`SELECT from_agent, to_agent, type, weight, categories, source_ref, active, created_at, updated_at FROM trust_edges WHERE to_agent = ? AND active = 1`, to)
}

func (s *Store) AllActive() ([]*graph.TrustEdge, error) {
	return s.queryEdges(`SELECT from_agent, to_agent, type, weight, categories, source_ref, active, created_at, updated_at FROM trust_edges WHERE active = 1`)
}

func (s *Store) queryEdges(query string, args ...interface{}) ([]*graph.TrustEdge, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*graph.TrustEdge
	for rows.Next() {
		var e graph.TrustEdge
		var typ, categories string
		var active int
		if err := rows.Scan(&e.From, &e.To, &typ, &e.Weight, &categories, &e.SourceRef, &active, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Type = graph.EdgeType(typ)
		e.Categories = splitStrings(categories)
		e.Active = active == 1
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) Version() (uint64, error) {
	var version uint64
	err := s.db.QueryRow(`SELECT version FROM graph_counter WHERE id = 1`).Scan(&version)
	return version, err
}

// --- authority.Store ---

func (s *Store) PutAgentMetrics(m *authority.AgentMetrics) error {
	const stmt = `INSERT INTO agent_metrics(agent_id, page_rank, page_rank_normalized, out_degree, in_degree, graph_version)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(agent_id) DO UPDATE SET page_rank=excluded.page_rank, page_rank_normalized=excluded.page_rank_normalized,
            out_degree=excluded.out_degree, in_degree=excluded.in_degree, graph_version=excluded.graph_version`
	_, err := s.db.Exec(stmt, m.AgentID, m.PageRank, m.PageRankNormalized, m.OutDegree, m.InDegree, m.GraphVersion)
	return err
}

func (s *Store) GetAgentMetrics(agentID string) (*authority.AgentMetrics, bool, error) {
	row := s.db.QueryRow(`SELECT agent_id, page_rank, page_rank_normalized, out_degree, in_degree, graph_version FROM agent_metrics WHERE agent_id = ?`, agentID)
	var m authority.AgentMetrics
	if err := row.Scan(&m.AgentID, &m.PageRank, &m.PageRankNormalized, &m.OutDegree, &m.InDegree, &m.GraphVersion); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &m, true, nil
}

func (s *Store) ListAgentMetrics() ([]*authority.AgentMetrics, error) {
	rows, err := s.db.Query(`SELECT agent_id, page_rank, page_rank_normalized, out_degree, in_degree, graph_version FROM agent_metrics`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*authority.AgentMetrics
	for rows.Next() {
		var m authority.AgentMetrics
		if err := rows.Scan(&m.AgentID, &m.PageRank, &m.PageRankNormalized, &m.OutDegree, &m.InDegree, &m.GraphVersion); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// --- path.Store ---

func (s *Store) GetPath(from, to string) (*path.TrustPath, bool, error) {
	row := s.db.QueryRow(`SELECT from_agent, to_agent, nodes, hop_weights, confidence, graph_version, calculated_at, expires_at FROM trust_paths WHERE from_agent = ? AND to_agent = ?`, from, to)
	var p path.TrustPath
	var nodes, weights string
	if err := row.Scan(&p.From, &p.To, &nodes, &weights, &p.Confidence, &p.GraphVersion, &p.CalculatedAt, &p.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	p.Nodes = splitStrings(nodes)
	for _, w := range splitStrings(weights) {
		f, _ := strconv.ParseFloat(w, 64)
		p.HopWeights = append(p.HopWeights, f)
	}
	return &p, true, nil
}

func (s *Store) PutPath(p *path.TrustPath) error {
	weights := make([]string, len(p.HopWeights))
	for i, w := range p.HopWeights {
		weights[i] = strconv.FormatFloat(w, 'f', -1, 64)
	}
	const stmt = `INSERT INTO trust_paths(from_agent, to_agent, nodes, hop_weights, confidence, graph_version, calculated_at, expires_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(from_agent, to_agent) DO UPDATE SET nodes=excluded.nodes, hop_weights=excluded.hop_weights,
            confidence=excluded.confidence, graph_version=excluded.graph_version, calculated_at=excluded.calculated_at, expires_at=excluded.expires_at`
	_, err := s.db.Exec(stmt, p.From, p.To, joinStrings(p.Nodes), joinStrings(weights), p.Confidence, p.GraphVersion, p.CalculatedAt, p.ExpiresAt)
	return err
}

// --- sybil.Store ---

func (s *Store) PutMetrics(m *sybil.Metrics) error {
	const stmt = `INSERT INTO sybil_metrics(agent_id, diversity, circular, risk_score) VALUES (?, ?, ?, ?)
        ON CONFLICT(agent_id) DO UPDATE SET diversity=excluded.diversity, circular=excluded.circular, risk_score=excluded.risk_score`
	_, err := s.db.Exec(stmt, m.AgentID, m.Diversity, m.Circular, m.RiskScore)
	return err
}

func (s *Store) GetMetrics(agentID string) (*sybil.Metrics, bool, error) {
	row := s.db.QueryRow(`SELECT agent_id, diversity, circular, risk_score FROM sybil_metrics WHERE agent_id = ?`, agentID)
	var m sybil.Metrics
	if err := row.Scan(&m.AgentID, &m.Diversity, &m.Circular, &m.RiskScore); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &m, true, nil
}

func (s *Store) ListMetrics() ([]*sybil.Metrics, error) {
	rows, err := s.db.Query(`SELECT agent_id, diversity, circular, risk_score FROM sybil_metrics`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*sybil.Metrics
	for rows.Next() {
		var m sybil.Metrics
		if err := rows.Scan(&m.AgentID, &m.Diversity, &m.Circular, &m.RiskScore); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// --- schemes.Store ---

func (s *Store) PutAuthorization(a *schemes.PaymentAuthorization) error {
	const stmt = `INSERT INTO payment_authorizations(authorization_id, payer, payee, max_amount_micro, used_micro, base_cost_micro, unit_cost_micro, unit_type, status, expires_at, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(authorization_id) DO UPDATE SET used_micro=excluded.used_micro, status=excluded.status, updated_at=excluded.updated_at`
	_, err := s.db.Exec(stmt, a.AuthorizationID, a.Payer, a.Payee, a.MaxAmountMicro, a.UsedMicro, a.BaseCostMicro, a.UnitCostMicro,
		a.UnitType, string(a.Status), nullTime(a.ExpiresAt), a.CreatedAt, a.UpdatedAt)
	return err
}

func (s *Store) GetAuthorization(id string) (*schemes.PaymentAuthorization, bool, error) {
	row := s.db.QueryRow(`SELECT authorization_id, payer, payee, max_amount_micro, used_micro, base_cost_micro, unit_cost_micro, unit_type, status, expires_at, created_at, updated_at FROM payment_authorizations WHERE authorization_id = ?`, id)
	return scanAuthorization(row)
}

func scanAuthorization(row *sql.Row) (*schemes.PaymentAuthorization, bool, error) {
	var a schemes.PaymentAuthorization
	var status string
	var expires sql.NullTime
	if err := row.Scan(&a.AuthorizationID, &a.Payer, &a.Payee, &a.MaxAmountMicro, &a.UsedMicro, &a.BaseCostMicro, &a.UnitCostMicro,
		&a.UnitType, &status, &expires, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	a.Status = schemes.AuthorizationStatus(status)
	if expires.Valid {
		a.ExpiresAt = expires.Time
	}
	return &a, true, nil
}

func (s *Store) ListAuthorizations() ([]*schemes.PaymentAuthorization, error) {
	rows, err := s.db.Query(`SELECT authorization_id, payer, payee, max_amount_micro, used_micro, base_cost_micro, unit_cost_micro, unit_type, status, expires_at, created_at, updated_at FROM payment_authorizations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*schemes.PaymentAuthorization
	for rows.Next() {
		var a schemes.PaymentAuthorization
		var status string
		var expires sql.NullTime
		if err := rows.Scan(&a.AuthorizationID, &a.Payer, &a.Payee, &a.MaxAmountMicro, &a.UsedMicro, &a.BaseCostMicro, &a.UnitCostMicro,
			&a.UnitType, &status, &expires, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Status = schemes.AuthorizationStatus(status)
		if expires.Valid {
			a.ExpiresAt = expires.Time
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *Store) PutSubscription(sub *schemes.Subscription) error {
	const stmt = `INSERT INTO subscriptions(subscription_id, subscriber, provider, amount_micro, period_seconds, status, current_period_start, current_period_end, auto_renew, renewal_count, grace_seconds, trial_end, cancel_requested)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(subscription_id) DO UPDATE SET status=excluded.status, current_period_start=excluded.current_period_start,
            current_period_end=excluded.current_period_end, renewal_count=excluded.renewal_count, cancel_requested=excluded.cancel_requested`
	_, err := s.db.Exec(stmt, sub.SubscriptionID, sub.Subscriber, sub.Provider, sub.AmountMicro, int64(sub.Period.Seconds()),
		string(sub.Status), nullTime(sub.CurrentPeriodStart), nullTime(sub.CurrentPeriodEnd), boolToInt(sub.AutoRenew),
		sub.RenewalCount, sub.GraceSeconds, nullTime(sub.TrialEnd), boolToInt(sub.CancelRequested))
	return err
}

func (s *Store) GetSubscription(id string) (*schemes.Subscription, bool, error) {
	row := s.db.QueryRow(`SELECT subscription_id, subscriber, provider, amount_micro, period_seconds, status, current_period_start, current_period_end, auto_renew, renewal_count, grace_seconds, trial_end, cancel_requested FROM subscriptions WHERE subscription_id = ?`, id)
	return scanSubscription(row)
}

func scanSubscription(row *sql.Row) (*schemes.Subscription, bool, error) {
	var sub schemes.Subscription
	var status string
	var periodSeconds int64
	var start, end, trialEnd sql.NullTime
	var autoRenew, cancelRequested int
	if err := row.Scan(&sub.SubscriptionID, &sub.Subscriber, &sub.Provider, &sub.AmountMicro, &periodSeconds, &status,
		&start, &end, &autoRenew, &sub.RenewalCount, &sub.GraceSeconds, &trialEnd, &cancelRequested); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	sub.Status = schemes.SubscriptionStatus(status)
	sub.Period = time.Duration(periodSeconds) * time.Second
	if start.Valid {
		sub.CurrentPeriodStart = start.Time
	}
	if end.Valid {
		sub.CurrentPeriodEnd = end.Time
	}
	if trialEnd.Valid {
		sub.TrialEnd = trialEnd.Time
	}
	sub.AutoRenew = autoRenew == 1
	sub.CancelRequested = cancelRequested == 1
	return &sub, true, nil
}

func (s *Store) ListSubscriptions() ([]*schemes.Subscription, error) {
	rows, err := s.db.Query(`SELECT subscription_id, subscriber, provider, amount_micro, period_seconds, status, current_period_start, current_period_end, auto_renew, renewal_count, grace_seconds, trial_end, cancel_requested FROM subscriptions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*schemes.Subscription
	for rows.Next() {
		var sub schemes.Subscription
		var status string
		var periodSeconds int64
		var start, end, trialEnd sql.NullTime
		var autoRenew, cancelRequested int
		if err := rows.Scan(&sub.SubscriptionID, &sub.Subscriber, &sub.Provider, &sub.AmountMicro, &periodSeconds, &status,
			&start, &end, &autoRenew, &sub.RenewalCount, &sub.GraceSeconds, &trialEnd, &cancelRequested); err != nil {
			return nil, err
		}
		sub.Status = schemes.SubscriptionStatus(status)
		sub.Period = time.Duration(periodSeconds) * time.Second
		if start.Valid {
			sub.CurrentPeriodStart = start.Time
		}
		if end.Valid {
			sub.CurrentPeriodEnd = end.Time
		}
		if trialEnd.Valid {
			sub.TrialEnd = trialEnd.Time
		}
		sub.AutoRenew = autoRenew == 1
		sub.CancelRequested = cancelRequested == 1
		out = append(out, &sub)
	}
	return out, rows.Err()
}

func (s *Store) PutBatch(b *schemes.Batch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const stmt = `INSERT INTO batches(batch_id, initiator, total_micro, mode, success_count, failed_count, status)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(batch_id) DO UPDATE SET success_count=excluded.success_count, failed_count=excluded.failed_count, status=excluded.status`
	if _, err := tx.Exec(stmt, b.BatchID, b.Initiator, b.TotalMicro, string(b.Mode), b.SuccessCount, b.FailedCount, string(b.Status)); err != nil {
		return err
	}
	const itemStmt = `INSERT INTO batch_items(batch_id, recipient, amount_micro, status, signature)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(batch_id, recipient) DO UPDATE SET amount_micro=excluded.amount_micro, status=excluded.status, signature=excluded.signature`
	for _, item := range b.Items {
		if _, err := tx.Exec(itemStmt, item.BatchID, item.Recipient, item.AmountMicro, string(item.Status), item.Signature); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetBatch(id string) (*schemes.Batch, bool, error) {
	row := s.db.QueryRow(`SELECT batch_id, initiator, total_micro, mode, success_count, failed_count, status FROM batches WHERE batch_id = ?`, id)
	var b schemes.Batch
	var mode, status string
	if err := row.Scan(&b.BatchID, &b.Initiator, &b.TotalMicro, &mode, &b.SuccessCount, &b.FailedCount, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	b.Mode = schemes.BatchMode(mode)
	b.Status = schemes.BatchStatus(status)

	rows, err := s.db.Query(`SELECT batch_id, recipient, amount_micro, status, signature FROM batch_items WHERE batch_id = ?`, id)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var item schemes.BatchItem
		var itemStatus string
		if err := rows.Scan(&item.BatchID, &item.Recipient, &item.AmountMicro, &itemStatus, &item.Signature); err != nil {
			return nil, false, err
		}
		item.Status = schemes.ItemStatus(itemStatus)
		b.Items = append(b.Items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return &b, true, nil
}

// --- score.Store ---

func (s *Store) AppendHistory(entry *score.HistoryEntry) error {
	const stmt = `INSERT INTO score_history(agent_id, score, tier, reason, timestamp) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.Exec(stmt, entry.AgentID, entry.Score, string(entry.Tier), entry.Reason, entry.Timestamp)
	return err
}

func (s *Store) HistoryForAgent(agentID string) ([]*score.HistoryEntry, error) {
	rows, err := s.db.Query(`SELECT agent_id, score, tier, reason, timestamp FROM score_history WHERE agent_id = ? ORDER BY timestamp`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*score.HistoryEntry
	for rows.Next() {
		var e score.HistoryEntry
		var tier string
		if err := rows.Scan(&e.AgentID, &e.Score, &tier, &e.Reason, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Tier = score.Tier(tier)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// --- votes.Store ---

func (s *Store) PutVote(v *votes.Vote) error {
	const stmt = `INSERT INTO votes(receipt_id, voter, subject, polarity, rq, rs, accuracy, professionalism, comment_hash, weight, timestamp)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(stmt, hex.EncodeToString(v.ReceiptID[:]), v.Voter, v.Subject, string(v.Polarity),
		v.Quality.ResponseQuality, v.Quality.ResponseSpeed, v.Quality.Accuracy, v.Quality.Professionalism,
		v.CommentHash, v.Weight, v.Timestamp)
	return err
}

func (s *Store) VotesForSubject(subject string) ([]*votes.Vote, error) {
	rows, err := s.db.Query(`SELECT receipt_id, voter, subject, polarity, rq, rs, accuracy, professionalism, comment_hash, weight, timestamp FROM votes WHERE subject = ?`, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*votes.Vote
	for rows.Next() {
		var v votes.Vote
		var receiptHex, polarity string
		if err := rows.Scan(&receiptHex, &v.Voter, &v.Subject, &polarity, &v.Quality.ResponseQuality, &v.Quality.ResponseSpeed,
			&v.Quality.Accuracy, &v.Quality.Professionalism, &v.CommentHash, &v.Weight, &v.Timestamp); err != nil {
			return nil, err
		}
		decoded, _ := hex.DecodeString(receiptHex)
		copy(v.ReceiptID[:], decoded)
		v.Polarity = votes.Polarity(polarity)
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (s *Store) PutEndorsement(e *votes.Endorsement) error {
	const stmt = `INSERT INTO endorsements(id, type, claim, confidence, issuer, subject, active, evidence, issued_at, expires_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET active=excluded.active, confidence=excluded.confidence`
	_, err := s.db.Exec(stmt, e.ID, e.Type, e.Claim, e.Confidence, e.Issuer, e.Subject, boolToInt(e.Active), e.Evidence,
		e.IssuedAt, nullTime(e.ExpiresAt))
	return err
}

func (s *Store) GetEndorsement(id string) (*votes.Endorsement, bool, error) {
	row := s.db.QueryRow(`SELECT id, type, claim, confidence, issuer, subject, active, evidence, issued_at, expires_at FROM endorsements WHERE id = ?`, id)
	return scanEndorsement(row)
}

func scanEndorsement(row *sql.Row) (*votes.Endorsement, bool, error) {
	var e votes.Endorsement
	var active int
	var expires sql.NullTime
	if err := row.Scan(&e.ID, &e.Type, &e.Claim, &e.Confidence, &e.Issuer, &e.Subject, &active, &e.Evidence, &e.IssuedAt, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	e.Active = active == 1
	if expires.Valid {
		e.ExpiresAt = expires.Time
	}
	return &e, true, nil
}

func (s *Store) DeactivateEndorsement(id string) error {
	res, err := s.db.Exec(`UPDATE endorsements SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return votes.ErrEndorsementNotFound
	}
	return nil
}

func (s *Store) EndorsementsForSubject(subject string) ([]*votes.Endorsement, error) {
	rows, err := s.db.Query(`SELECT id, type, claim, confidence, issuer, subject, active, evidence, issued_at, expires_at FROM endorsements WHERE subject = ?`, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*votes.Endorsement
	for rows.Next() {
		var e votes.Endorsement
		var active int
		var expires sql.NullTime
		if err := rows.Scan(&e.ID, &e.Type, &e.Claim, &e.Confidence, &e.Issuer, &e.Subject, &active, &e.Evidence, &e.IssuedAt, &expires); err != nil {
			return nil, err
		}
		e.Active = active == 1
		if expires.Valid {
			e.ExpiresAt = expires.Time
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// --- anomaly.Store ---

func (s *Store) AppendAlert(a *anomaly.Alert) error {
	id := a.ID
	if id == "" {
		id = fmt.Sprintf("%s:%s:%d", a.Type, a.Subject, a.Timestamp.UnixNano())
	}
	const stmt = `INSERT INTO alerts(id, type, subject, metric, current, historical, change_percent, severity, timestamp, resolved)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(stmt, id, string(a.Type), a.Subject, a.Metric, a.Current, a.Historical, a.ChangePercent,
		string(a.Severity), a.Timestamp, boolToInt(a.Resolved))
	return err
}

func (s *Store) AlertsSince(since time.Time) ([]*anomaly.Alert, error) {
	rows, err := s.db.Query(`SELECT id, type, subject, metric, current, historical, change_percent, severity, timestamp, resolved FROM alerts WHERE timestamp >= ? ORDER BY timestamp`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*anomaly.Alert
	for rows.Next() {
		var a anomaly.Alert
		var typ, severity string
		var resolved int
		if err := rows.Scan(&a.ID, &typ, &a.Subject, &a.Metric, &a.Current, &a.Historical, &a.ChangePercent, &severity, &a.Timestamp, &resolved); err != nil {
			return nil, err
		}
		a.Type = anomaly.AlertType(typ)
		a.Severity = anomaly.Severity(severity)
		a.Resolved = resolved == 1
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *Store) OpenFacilitatorIncident(facilitator string, since time.Time) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM alerts WHERE type = ? AND subject = ? AND resolved = 0 AND timestamp >= ?`,
		string(anomaly.AlertFacilitatorDown), facilitator, since).Scan(&count)
	return count > 0, err
}
