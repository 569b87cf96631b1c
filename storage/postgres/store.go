package postgres

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	gormpostgres "gorm.io/driver/postgres"

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

// Store is the gorm-backed production persistence backend. It satisfies
// the Store interfaces of the directory, ledger, graph, authority, path,
// sybil, schemes, score, votes and anomaly packages (not intake.Store or
// common.Store), so a single *Store can be wired into each of those engine
// constructors, the same way services/otc-gateway wires
// one *gorm.DB through its server, funding, and recon packages.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres at dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	if err := db.FirstOrCreate(&GraphCounter{}, GraphCounter{ID: 1}).Error; err != nil {
		return nil, fmt.Errorf("postgres: seed graph counter: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already-open, already-migrated *gorm.DB. Exposed for
// tests that open an in-memory sqlite gorm.DB against the same models, the
// way services/otc-gateway/server/server_test.go does.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
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

// --- directory.Store ---

func (s *Store) GetByAddress(address string) (*directory.Agent, bool, error) {
	var row Agent
	if err := s.db.Where("address = ?", address).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return toAgent(row), true, nil
}

func (s *Store) GetByID(agentID string) (*directory.Agent, bool, error) {
	var row Agent
	if err := s.db.Where("agent_id = ?", agentID).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return toAgent(row), true, nil
}

func (s *Store) Put(agent *directory.Agent) error {
	row := Agent{
		AgentID:      agent.AgentID,
		Address:      agent.Address,
		DisplayName:  agent.DisplayName,
		Category:     agent.Category,
		Capabilities: joinStrings(agent.Capabilities),
		Active:       agent.Active,
		Verified:     agent.Verified,
		Score:        agent.Score,
		Tier:         agent.Tier,
		CreatedAt:    agent.CreatedAt,
		UpdatedAt:    agent.UpdatedAt,
	}
	return s.db.Save(&row).Error
}

func (s *Store) List() ([]*directory.Agent, error) {
	var rows []Agent
	if err := s.db.Order("agent_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*directory.Agent, 0, len(rows))
	for _, r := range rows {
		out = append(out, toAgent(r))
	}
	return out, nil
}

func toAgent(row Agent) *directory.Agent {
	return &directory.Agent{
		AgentID:      row.AgentID,
		Address:      row.Address,
		DisplayName:  row.DisplayName,
		Category:     row.Category,
		Capabilities: splitStrings(row.Capabilities),
		Active:       row.Active,
		Verified:     row.Verified,
		Score:        row.Score,
		Tier:         row.Tier,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

// --- ledger.Store ---

func (s *Store) GetPayment(signature string) (*ledger.PaymentRecord, bool, error) {
	var row Payment
	if err := s.db.Where("signature = ?", signature).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &ledger.PaymentRecord{
		Signature: row.Signature, Payer: row.Payer, Payee: row.Payee,
		AmountMicro: row.AmountMicro, Currency: row.Currency, Network: row.Network,
		Facilitator: row.Facilitator, Status: ledger.Status(row.Status), Endpoint: row.Endpoint,
		Timestamp: row.Timestamp, UpdatedAt: row.UpdatedAt,
	}, true, nil
}

func (s *Store) PutPayment(record *ledger.PaymentRecord) error {
	row := Payment{
		Signature: record.Signature, Payer: record.Payer, Payee: record.Payee,
		AmountMicro: record.AmountMicro, Currency: record.Currency, Network: record.Network,
		Facilitator: record.Facilitator, Status: string(record.Status), Endpoint: record.Endpoint,
		Timestamp: record.Timestamp, UpdatedAt: record.UpdatedAt,
	}
	return s.db.Save(&row).Error
}

func (s *Store) GetReceiptByID(id [32]byte) (*ledger.Receipt, bool, error) {
	var row Receipt
	if err := s.db.Where("id = ?", hex.EncodeToString(id[:])).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return toReceipt(row), true, nil
}

func (s *Store) GetReceiptBySignature(signature string) (*ledger.Receipt, bool, error) {
	var row Receipt
	if err := s.db.Where("signature = ?", signature).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return toReceipt(row), true, nil
}

func (s *Store) PutReceipt(receipt *ledger.Receipt) error {
	row := Receipt{
		ID: hex.EncodeToString(receipt.ID[:]), Payer: receipt.Payer, Payee: receipt.Payee,
		Signature: receipt.Signature, AmountMicro: receipt.AmountMicro, Category: receipt.Category,
		CreatedAt: receipt.CreatedAt, VoteCast: receipt.VoteCast,
	}
	return s.db.Create(&row).Error
}

func (s *Store) SetVoteCast(id [32]byte) error {
	res := s.db.Model(&Receipt{}).Where("id = ?", hex.EncodeToString(id[:])).Update("vote_cast", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrReceiptNotFound
	}
	return nil
}

func (s *Store) ReceiptsForAgent(address string) ([]*ledger.Receipt, error) {
	var rows []Receipt
	if err := s.db.Where("payer = ? OR payee = ?", address, address).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*ledger.Receipt, 0, len(rows))
	for _, r := range rows {
		out = append(out, toReceipt(r))
	}
	return out, nil
}

func toReceipt(row Receipt) *ledger.Receipt {
	var id [32]byte
	decoded, _ := hex.DecodeString(row.ID)
	copy(id[:], decoded)
	return &ledger.Receipt{
		ID: id, Payer: row.Payer, Payee: row.Payee, Signature: row.Signature,
		AmountMicro: row.AmountMicro, Category: row.Category, CreatedAt: row.CreatedAt, VoteCast: row.VoteCast,
	}
}

// --- graph.Store ---

func (s *Store) GetEdge(key graph.EdgeKey) (*graph.TrustEdge, bool, error) {
	var row TrustEdge
	err := s.db.Where(`"from" = ? AND "to" = ? AND type = ?`, key.From, key.To, string(key.Type)).
		Order("id desc").First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return toEdge(row), true, nil
}

func (s *Store) PutEdge(edge *graph.TrustEdge) (uint64, error) {
	var version uint64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		row := TrustEdge{
			From: edge.From, To: edge.To, Type: string(edge.Type), Weight: edge.Weight,
			Categories: joinStrings(edge.Categories), SourceRef: edge.SourceRef, Active: edge.Active,
			CreatedAt: edge.CreatedAt, UpdatedAt: edge.UpdatedAt,
		}
		var existing TrustEdge
		err := tx.Where(`"from" = ? AND "to" = ? AND type = ?`, edge.From, edge.To, string(edge.Type)).First(&existing).Error
		switch {
		case err == nil:
			row.ID = existing.ID
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
		case err == gorm.ErrRecordNotFound:
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		default:
			return err
		}
		v, err := bumpGraphVersion(tx)
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	return version, err
}

func (s *Store) Deactivate(key graph.EdgeKey) (uint64, error) {
	var version uint64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&TrustEdge{}).Where(`"from" = ? AND "to" = ? AND type = ?`, key.From, key.To, string(key.Type)).
			Update("active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return graph.ErrEdgeNotFound
		}
		v, err := bumpGraphVersion(tx)
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	return version, err
}

func bumpGraphVersion(tx *gorm.DB) (uint64, error) {
	if err := tx.Model(&GraphCounter{}).Where("id = ?", 1).Update("version", gorm.Expr("version + 1")).Error; err != nil {
		return 0, err
	}
	var counter GraphCounter
	if err := tx.Where("id = ?", 1).First(&counter).Error; err != nil {
		return 0, err
	}
	return counter.Version, nil
}

func (s *Store) OutgoingActive(from string) ([]*graph.TrustEdge, error) {
	var rows []TrustEdge
	if err := s.db.Where(`"from" = ? AND active = ?`, from, true).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toEdges(rows), nil
}

func (s *Store) IncomingActive(to string) ([]*graph.TrustEdge, error) {
	var rows []TrustEdge
	if err := s.db.Where(`"to" = ? AND active = ?`, to, true).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toEdges(rows), nil
}

func (s *Store) AllActive() ([]*graph.TrustEdge, error) {
	var rows []TrustEdge
	if err := s.db.Where("active = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toEdges(rows), nil
}

func (s *Store) Version() (uint64, error) {
	var counter GraphCounter
	if err := s.db.Where("id = ?", 1).First(&counter).Error; err != nil {
		return 0, err
	}
	return counter.Version, nil
}

func toEdge(row TrustEdge) *graph.TrustEdge {
	return &graph.TrustEdge{
		From: row.From, To: row.To, Type: graph.EdgeType(row.Type), Weight: row.Weight,
		Categories: splitStrings(row.Categories), SourceRef: row.SourceRef, Active: row.Active,
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
}

func toEdges(rows []TrustEdge) []*graph.TrustEdge {
	out := make([]*graph.TrustEdge, 0, len(rows))
	for _, r := range rows {
		out = append(out, toEdge(r))
	}
	return out
}

// --- authority.Store ---

func (s *Store) PutAgentMetrics(metrics *authority.AgentMetrics) error {
	row := AgentMetrics{
		AgentID: metrics.AgentID, PageRank: metrics.PageRank, PageRankNormalized: metrics.PageRankNormalized,
		OutDegree: metrics.OutDegree, InDegree: metrics.InDegree, GraphVersion: metrics.GraphVersion,
	}
	return s.db.Save(&row).Error
}

func (s *Store) GetAgentMetrics(agentID string) (*authority.AgentMetrics, bool, error) {
	var row AgentMetrics
	if err := s.db.Where("agent_id = ?", agentID).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &authority.AgentMetrics{
		AgentID: row.AgentID, PageRank: row.PageRank, PageRankNormalized: row.PageRankNormalized,
		OutDegree: row.OutDegree, InDegree: row.InDegree, GraphVersion: row.GraphVersion,
	}, true, nil
}

func (s *Store) ListAgentMetrics() ([]*authority.AgentMetrics, error) {
	var rows []AgentMetrics
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*authority.AgentMetrics, 0, len(rows))
	for _, row := range rows {
		out = append(out, &authority.AgentMetrics{
			AgentID: row.AgentID, PageRank: row.PageRank, PageRankNormalized: row.PageRankNormalized,
			OutDegree: row.OutDegree, InDegree: row.InDegree, GraphVersion: row.GraphVersion,
		})
	}
	return out, nil
}

// --- path.Store ---

func (s *Store) GetPath(from, to string) (*path.TrustPath, bool, error) {
	var row TrustPath
	if err := s.db.Where(`"from" = ? AND "to" = ?`, from, to).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return toPath(row), true, nil
}

func (s *Store) PutPath(p *path.TrustPath) error {
	weights := make([]string, len(p.HopWeights))
	for i, w := range p.HopWeights {
		weights[i] = strconv.FormatFloat(w, 'f', -1, 64)
	}
	row := TrustPath{
		From: p.From, To: p.To, Nodes: joinStrings(p.Nodes), HopWeights: joinStrings(weights),
		Confidence: p.Confidence, GraphVersion: p.GraphVersion, CalculatedAt: p.CalculatedAt, ExpiresAt: p.ExpiresAt,
	}
	return s.db.Save(&row).Error
}

func toPath(row TrustPath) *path.TrustPath {
	var weights []float64
	for _, s := range splitStrings(row.HopWeights) {
		f, _ := strconv.ParseFloat(s, 64)
		weights = append(weights, f)
	}
	return &path.TrustPath{
		From: row.From, To: row.To, Nodes: splitStrings(row.Nodes), HopWeights: weights,
		Confidence: row.Confidence, GraphVersion: row.GraphVersion, CalculatedAt: row.CalculatedAt, ExpiresAt: row.ExpiresAt,
	}
}

// --- sybil.Store ---

func (s *Store) PutMetrics(m *sybil.Metrics) error {
	row := SybilMetrics{AgentID: m.AgentID, Diversity: m.Diversity, Circular: m.Circular, RiskScore: m.RiskScore}
	return s.db.Save(&row).Error
}

func (s *Store) GetMetrics(agentID string) (*sybil.Metrics, bool, error) {
	var row SybilMetrics
	if err := s.db.Where("agent_id = ?", agentID).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &sybil.Metrics{AgentID: row.AgentID, Diversity: row.Diversity, Circular: row.Circular, RiskScore: row.RiskScore}, true, nil
}

func (s *Store) ListMetrics() ([]*sybil.Metrics, error) {
	var rows []SybilMetrics
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*sybil.Metrics, 0, len(rows))
	for _, row := range rows {
		out = append(out, &sybil.Metrics{AgentID: row.AgentID, Diversity: row.Diversity, Circular: row.Circular, RiskScore: row.RiskScore})
	}
	return out, nil
}

// --- schemes.Store ---

func (s *Store) PutAuthorization(a *schemes.PaymentAuthorization) error {
	row := PaymentAuthorization{
		AuthorizationID: a.AuthorizationID, Payer: a.Payer, Payee: a.Payee, MaxAmountMicro: a.MaxAmountMicro,
		UsedMicro: a.UsedMicro, BaseCostMicro: a.BaseCostMicro, UnitCostMicro: a.UnitCostMicro, UnitType: a.UnitType,
		Status: string(a.Status), ExpiresAt: a.ExpiresAt, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
	return s.db.Save(&row).Error
}

func (s *Store) GetAuthorization(id string) (*schemes.PaymentAuthorization, bool, error) {
	var row PaymentAuthorization
	if err := s.db.Where("authorization_id = ?", id).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return toAuthorization(row), true, nil
}

func (s *Store) ListAuthorizations() ([]*schemes.PaymentAuthorization, error) {
	var rows []PaymentAuthorization
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*schemes.PaymentAuthorization, 0, len(rows))
	for _, r := range rows {
		out = append(out, toAuthorization(r))
	}
	return out, nil
}

func toAuthorization(row PaymentAuthorization) *schemes.PaymentAuthorization {
	return &schemes.PaymentAuthorization{
		AuthorizationID: row.AuthorizationID, Payer: row.Payer, Payee: row.Payee, MaxAmountMicro: row.MaxAmountMicro,
		UsedMicro: row.UsedMicro, BaseCostMicro: row.BaseCostMicro, UnitCostMicro: row.UnitCostMicro, UnitType: row.UnitType,
		Status: schemes.AuthorizationStatus(row.Status), ExpiresAt: row.ExpiresAt, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
}

func (s *Store) PutSubscription(sub *schemes.Subscription) error {
	row := Subscription{
		SubscriptionID: sub.SubscriptionID, Subscriber: sub.Subscriber, Provider: sub.Provider,
		AmountMicro: sub.AmountMicro, PeriodSeconds: int64(sub.Period.Seconds()), Status: string(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart, CurrentPeriodEnd: sub.CurrentPeriodEnd, AutoRenew: sub.AutoRenew,
		RenewalCount: sub.RenewalCount, GraceSeconds: sub.GraceSeconds, TrialEnd: sub.TrialEnd, CancelRequested: sub.CancelRequested,
	}
	return s.db.Save(&row).Error
}

func (s *Store) GetSubscription(id string) (*schemes.Subscription, bool, error) {
	var row Subscription
	if err := s.db.Where("subscription_id = ?", id).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return toSubscription(row), true, nil
}

func (s *Store) ListSubscriptions() ([]*schemes.Subscription, error) {
	var rows []Subscription
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*schemes.Subscription, 0, len(rows))
	for _, r := range rows {
		out = append(out, toSubscription(r))
	}
	return out, nil
}

func toSubscription(row Subscription) *schemes.Subscription {
	return &schemes.Subscription{
		SubscriptionID: row.SubscriptionID, Subscriber: row.Subscriber, Provider: row.Provider,
		AmountMicro: row.AmountMicro, Period: time.Duration(row.PeriodSeconds) * time.Second, Status: schemes.SubscriptionStatus(row.Status),
		CurrentPeriodStart: row.CurrentPeriodStart, CurrentPeriodEnd: row.CurrentPeriodEnd, AutoRenew: row.AutoRenew,
		RenewalCount: row.RenewalCount, GraceSeconds: row.GraceSeconds, TrialEnd: row.TrialEnd, CancelRequested: row.CancelRequested,
	}
}

func (s *Store) PutBatch(b *schemes.Batch) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		row := Batch{
			BatchID: b.BatchID, Initiator: b.Initiator, TotalMicro: b.TotalMicro, Mode: string(b.Mode),
			SuccessCount: b.SuccessCount, FailedCount: b.FailedCount, Status: string(b.Status),
		}
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		for _, item := range b.Items {
			itemRow := BatchItem{BatchID: b.BatchID, Recipient: item.Recipient, AmountMicro: item.AmountMicro,
				Status: string(item.Status), Signature: item.Signature}
			if err := tx.Where("batch_id = ? AND recipient = ?", b.BatchID, item.Recipient).
				Assign(itemRow).FirstOrCreate(&itemRow).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetBatch(id string) (*schemes.Batch, bool, error) {
	var row Batch
	if err := s.db.Where("batch_id = ?", id).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	var itemRows []BatchItem
	if err := s.db.Where("batch_id = ?", id).Find(&itemRows).Error; err != nil {
		return nil, false, err
	}
	items := make([]*schemes.BatchItem, 0, len(itemRows))
	for _, ir := range itemRows {
		items = append(items, &schemes.BatchItem{
			BatchID: ir.BatchID, Recipient: ir.Recipient, AmountMicro: ir.AmountMicro,
			Status: schemes.ItemStatus(ir.Status), Signature: ir.Signature,
		})
	}
	return &schemes.Batch{
		BatchID: row.BatchID, Initiator: row.Initiator, TotalMicro: row.TotalMicro, Mode: schemes.BatchMode(row.Mode),
		Items: items, SuccessCount: row.SuccessCount, FailedCount: row.FailedCount, Status: schemes.BatchStatus(row.Status),
	}, true, nil
}

// --- score.Store ---

func (s *Store) AppendHistory(entry *score.HistoryEntry) error {
	row := ScoreHistory{AgentID: entry.AgentID, Score: entry.Score, Tier: string(entry.Tier), Reason: entry.Reason, Timestamp: entry.Timestamp}
	return s.db.Create(&row).Error
}

func (s *Store) HistoryForAgent(agentID string) ([]*score.HistoryEntry, error) {
	var rows []ScoreHistory
	if err := s.db.Where("agent_id = ?", agentID).Order("timestamp").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*score.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, &score.HistoryEntry{AgentID: r.AgentID, Score: r.Score, Tier: score.Tier(r.Tier), Reason: r.Reason, Timestamp: r.Timestamp})
	}
	return out, nil
}

// --- votes.Store ---

func (s *Store) PutVote(v *votes.Vote) error {
	row := Vote{
		ReceiptID: hex.EncodeToString(v.ReceiptID[:]), Voter: v.Voter, Subject: v.Subject, Polarity: string(v.Polarity),
		RQ: v.Quality.ResponseQuality, RS: v.Quality.ResponseSpeed, Accuracy: v.Quality.Accuracy,
		Professionalism: v.Quality.Professionalism, CommentHash: v.CommentHash, Weight: v.Weight, Timestamp: v.Timestamp,
	}
	return s.db.Create(&row).Error
}

func (s *Store) VotesForSubject(subject string) ([]*votes.Vote, error) {
	var rows []Vote
	if err := s.db.Where("subject = ?", subject).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*votes.Vote, 0, len(rows))
	for _, r := range rows {
		var id [32]byte
		decoded, _ := hex.DecodeString(r.ReceiptID)
		copy(id[:], decoded)
		out = append(out, &votes.Vote{
			ReceiptID: id, Voter: r.Voter, Subject: r.Subject, Polarity: votes.Polarity(r.Polarity),
			Quality: votes.QualityScores{ResponseQuality: r.RQ, ResponseSpeed: r.RS, Accuracy: r.Accuracy, Professionalism: r.Professionalism},
			CommentHash: r.CommentHash, Weight: r.Weight, Timestamp: r.Timestamp,
		})
	}
	return out, nil
}

func (s *Store) PutEndorsement(e *votes.Endorsement) error {
	row := Endorsement{
		ID: e.ID, Type: e.Type, Claim: e.Claim, Confidence: e.Confidence, Issuer: e.Issuer, Subject: e.Subject,
		Active: e.Active, Evidence: e.Evidence, IssuedAt: e.IssuedAt,
	}
	if !e.ExpiresAt.IsZero() {
		row.ExpiresAt = &e.ExpiresAt
	}
	return s.db.Save(&row).Error
}

func (s *Store) GetEndorsement(id string) (*votes.Endorsement, bool, error) {
	var row Endorsement
	if err := s.db.Where("id = ?", id).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return toEndorsement(row), true, nil
}

func (s *Store) DeactivateEndorsement(id string) error {
	res := s.db.Model(&Endorsement{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return votes.ErrEndorsementNotFound
	}
	return nil
}

func (s *Store) EndorsementsForSubject(subject string) ([]*votes.Endorsement, error) {
	var rows []Endorsement
	if err := s.db.Where("subject = ?", subject).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*votes.Endorsement, 0, len(rows))
	for _, r := range rows {
		out = append(out, toEndorsement(r))
	}
	return out, nil
}

func toEndorsement(row Endorsement) *votes.Endorsement {
	e := &votes.Endorsement{
		ID: row.ID, Type: row.Type, Claim: row.Claim, Confidence: row.Confidence, Issuer: row.Issuer,
		Subject: row.Subject, Active: row.Active, Evidence: row.Evidence, IssuedAt: row.IssuedAt,
	}
	if row.ExpiresAt != nil {
		e.ExpiresAt = *row.ExpiresAt
	}
	return e
}

// --- anomaly.Store ---

func (s *Store) AppendAlert(a *anomaly.Alert) error {
	row := Alert{
		ID: a.ID, Type: string(a.Type), Subject: a.Subject, Metric: a.Metric, Current: a.Current,
		Historical: a.Historical, ChangePercent: a.ChangePercent, Severity: string(a.Severity),
		Timestamp: a.Timestamp, Resolved: a.Resolved,
	}
	if row.ID == "" {
		row.ID = generateAlertID(a)
	}
	return s.db.Create(&row).Error
}

func generateAlertID(a *anomaly.Alert) string {
	return fmt.Sprintf("%s:%s:%d", a.Type, a.Subject, a.Timestamp.UnixNano())
}

func (s *Store) AlertsSince(since time.Time) ([]*anomaly.Alert, error) {
	var rows []Alert
	if err := s.db.Where("timestamp >= ?", since).Order("timestamp").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*anomaly.Alert, 0, len(rows))
	for _, r := range rows {
		out = append(out, &anomaly.Alert{
			ID: r.ID, Type: anomaly.AlertType(r.Type), Subject: r.Subject, Metric: r.Metric, Current: r.Current,
			Historical: r.Historical, ChangePercent: r.ChangePercent, Severity: anomaly.Severity(r.Severity),
			Timestamp: r.Timestamp, Resolved: r.Resolved,
		})
	}
	return out, nil
}

func (s *Store) OpenFacilitatorIncident(facilitator string, since time.Time) (bool, error) {
	var count int64
	err := s.db.Model(&Alert{}).
		Where("type = ? AND subject = ? AND resolved = ? AND timestamp >= ?", string(anomaly.AlertFacilitatorDown), facilitator, false, since).
		Count(&count).Error
	return count > 0, err
}
