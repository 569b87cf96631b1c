// Package postgres is the production persistence backend: every native
// package's Store interface backed by Postgres through gorm, mirroring the
// models.AutoMigrate/gorm.Open pattern used by services/otc-gateway.
package postgres

import "time"

// Agent mirrors native/directory.Agent for the agents table.
type Agent struct {
	AgentID      string `gorm:"primaryKey;size:64"`
	Address      string `gorm:"uniqueIndex;size:128"`
	DisplayName  string
	Category     string `gorm:"index"`
	Capabilities string // comma-joined tag set
	Active       bool   `gorm:"index"`
	Verified     bool
	Score        int
	Tier         string `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Payment mirrors native/ledger.PaymentRecord.
type Payment struct {
	Signature   string `gorm:"primaryKey;size:128"`
	Payer       string `gorm:"index"`
	Payee       string `gorm:"index"`
	AmountMicro int64
	Currency    string
	Network     string
	Facilitator string `gorm:"index"`
	Status      string `gorm:"index"`
	Endpoint    string
	Timestamp   time.Time
	UpdatedAt   time.Time
}

// Receipt mirrors native/ledger.Receipt. ID is stored hex-encoded since
// Postgres has no native fixed-size byte array column gorm maps cleanly.
type Receipt struct {
	ID          string `gorm:"primaryKey;size:64"`
	Payer       string `gorm:"index"`
	Payee       string `gorm:"index"`
	Signature   string `gorm:"uniqueIndex;size:128"`
	AmountMicro int64
	Category    string
	CreatedAt   time.Time
	VoteCast    bool `gorm:"index"`
}

// TrustEdge mirrors native/graph.TrustEdge.
type TrustEdge struct {
	ID         uint   `gorm:"primaryKey"`
	From       string `gorm:"index:idx_edge_from"`
	To         string `gorm:"index:idx_edge_to"`
	Type       string `gorm:"index:idx_edge_type"`
	Weight     float64
	Categories string
	SourceRef  string
	Active     bool `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GraphCounter is a single-row table holding the graph version counter.
type GraphCounter struct {
	ID      uint `gorm:"primaryKey"`
	Version uint64
}

// Vote mirrors native/votes.Vote.
type Vote struct {
	ID          uint   `gorm:"primaryKey"`
	ReceiptID   string `gorm:"index;size:64"`
	Voter       string `gorm:"index"`
	Subject     string `gorm:"index"`
	Polarity    string
	RQ          float64
	RS          float64
	Accuracy    float64
	Professionalism float64
	CommentHash string
	Weight      float64
	Timestamp   time.Time
}

// Endorsement mirrors native/votes.Endorsement.
type Endorsement struct {
	ID         string `gorm:"primaryKey;size:64"`
	Type       string
	Claim      string
	Confidence float64
	Issuer     string `gorm:"index"`
	Subject    string `gorm:"index"`
	Active     bool   `gorm:"index"`
	Evidence   string
	IssuedAt   time.Time
	ExpiresAt  *time.Time
}

// AgentMetrics mirrors native/authority.AgentMetrics.
type AgentMetrics struct {
	AgentID            string `gorm:"primaryKey;size:64"`
	PageRank           float64
	PageRankNormalized int
	OutDegree          int
	InDegree           int
	GraphVersion       uint64
}

// TrustPath mirrors native/path.TrustPath.
type TrustPath struct {
	From         string `gorm:"primaryKey;size:64"`
	To           string `gorm:"primaryKey;size:64"`
	Nodes        string
	HopWeights   string
	Confidence   float64
	GraphVersion uint64
	CalculatedAt time.Time
	ExpiresAt    time.Time
}

// SybilMetrics mirrors native/sybil.Metrics.
type SybilMetrics struct {
	AgentID   string `gorm:"primaryKey;size:64"`
	Diversity float64
	Circular  int
	RiskScore float64 `gorm:"index"`
}

// PaymentAuthorization mirrors native/schemes.PaymentAuthorization.
type PaymentAuthorization struct {
	AuthorizationID string `gorm:"primaryKey;size:64"`
	Payer           string `gorm:"index"`
	Payee           string `gorm:"index"`
	MaxAmountMicro  int64
	UsedMicro       int64
	BaseCostMicro   int64
	UnitCostMicro   int64
	UnitType        string
	Status          string `gorm:"index"`
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Subscription mirrors native/schemes.Subscription.
type Subscription struct {
	SubscriptionID     string `gorm:"primaryKey;size:64"`
	Subscriber         string `gorm:"index"`
	Provider           string `gorm:"index"`
	AmountMicro        int64
	PeriodSeconds      int64
	Status             string `gorm:"index"`
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	AutoRenew          bool
	RenewalCount       int
	GraceSeconds       int64
	TrialEnd           time.Time
	CancelRequested    bool
}

// Batch mirrors native/schemes.Batch.
type Batch struct {
	BatchID      string `gorm:"primaryKey;size:64"`
	Initiator    string `gorm:"index"`
	TotalMicro   int64
	Mode         string
	SuccessCount int
	FailedCount  int
	Status       string `gorm:"index"`
}

// BatchItem mirrors native/schemes.BatchItem.
type BatchItem struct {
	ID          uint   `gorm:"primaryKey"`
	BatchID     string `gorm:"index;size:64"`
	Recipient   string
	AmountMicro int64
	Status      string
	Signature   string
}

// ScoreHistory mirrors native/score.HistoryEntry.
type ScoreHistory struct {
	ID        uint   `gorm:"primaryKey"`
	AgentID   string `gorm:"index"`
	Score     int
	Tier      string
	Reason    string
	Timestamp time.Time
}

// FacilitatorHealthSample persists the inbound probe feed for audit and
// replay, independent of the in-memory FacilitatorTracker streak counter.
type FacilitatorHealthSample struct {
	ID          uint `gorm:"primaryKey"`
	Facilitator string `gorm:"index"`
	Status      string
	LatencyMS   int
	Timestamp   time.Time
}

// Alert mirrors native/anomaly.Alert.
type Alert struct {
	ID            string `gorm:"primaryKey;size:64"`
	Type          string `gorm:"index"`
	Subject       string `gorm:"index"`
	Metric        string
	Current       float64
	Historical    float64
	ChangePercent float64
	Severity      string `gorm:"index"`
	Timestamp     time.Time `gorm:"index"`
	Resolved      bool
}

// AllModels lists every table for AutoMigrate, matching
// services/otc-gateway/models.AutoMigrate's enumeration style.
func AllModels() []interface{} {
	return []interface{}{
		&Agent{},
		&Payment{},
		&Receipt{},
		&TrustEdge{},
		&GraphCounter{},
		&Vote{},
		&Endorsement{},
		&AgentMetrics{},
		&TrustPath{},
		&SybilMetrics{},
		&PaymentAuthorization{},
		&Subscription{},
		&Batch{},
		&BatchItem{},
		&ScoreHistory{},
		&FacilitatorHealthSample{},
		&Alert{},
	}
}

// AutoMigrate runs schema migrations for every table the core owns.
func AutoMigrate(db interface {
	AutoMigrate(dst ...interface{}) error
}) error {
	return db.AutoMigrate(AllModels()...)
}
