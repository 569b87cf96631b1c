package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"trustmesh/native/anomaly"
	"trustmesh/native/authority"
	"trustmesh/native/common"
	"trustmesh/native/directory"
	"trustmesh/native/fees"
	"trustmesh/native/graph"
	"trustmesh/native/intake"
	"trustmesh/native/ledger"
	"trustmesh/native/path"
	"trustmesh/native/schemes"
	"trustmesh/native/score"
	"trustmesh/native/scheduler"
	"trustmesh/native/sybil"
	"trustmesh/native/votes"
	"trustmesh/native/webhook"
	"trustmesh/observability/logging"
	"trustmesh/storage"
	"trustmesh/storage/postgres"
	"trustmesh/storage/sqlite"
)

// coreStore is the union of every native package's Store interface. The
// production backends (storage/postgres.Store, storage/sqlite.Store) and
// the in-memory backend (storage.Memory) each satisfy it in full, the same
// way services/otc-gateway wires one *gorm.DB through every collaborator.
type coreStore interface {
	directory.Store
	ledger.Store
	graph.Store
	authority.Store
	path.Store
	sybil.Store
	schemes.Store
	score.Store
	votes.Store
	anomaly.Store
}

// service bundles every wired engine plus the shared collaborators the HTTP
// handlers and scheduled jobs both need.
type service struct {
	logger *slog.Logger
	cfg    *Config

	registry   *directory.Registry
	ledger     *ledger.Ledger
	graph      *graph.Graph
	authority  *authority.Engine
	path       *path.Engine
	sybil      *sybil.Engine
	score      *score.Engine
	upto       *schemes.UptoEngine
	subs       *schemes.SubscriptionEngine
	batches    *schemes.BatchEngine
	anomaly    *anomaly.Engine
	votesIn    *votes.Intake
	intakeProc *intake.Processor
	webhookQ   *webhook.Queue
	meter      *anomaly.Meter
	facilitators *anomaly.FacilitatorTracker
	alertJournal *slog.Logger
	pauses       *common.PauseRegistry

	webhookMu   sync.RWMutex
	webhookSubs []*webhook.Subscription

	closers []func() error
}

// RegisterWebhook adds a delivery target for the given event types
// ("tier_change", "alert"), mirroring services/escrow-gateway's webhook
// subscription registration.
func (s *service) RegisterWebhook(sub *webhook.Subscription) {
	if s == nil || sub == nil {
		return
	}
	s.webhookMu.Lock()
	defer s.webhookMu.Unlock()
	s.webhookSubs = append(s.webhookSubs, sub)
}

func (s *service) webhookSubscribers() []*webhook.Subscription {
	s.webhookMu.RLock()
	defer s.webhookMu.RUnlock()
	out := make([]*webhook.Subscription, len(s.webhookSubs))
	copy(out, s.webhookSubs)
	return out
}

// deliverWebhooks drains the queue and POSTs each task to its subscription
// URL until ctx is cancelled, retrying a failed delivery up to four times
// with exponential backoff (100ms, doubling per retry, capped at 5s),
// modelled on services/escrow-gateway/webhook_queue.go.
func (s *service) deliverWebhooks(ctx context.Context) {
	client := &http.Client{Timeout: 5 * time.Second}
	for {
		task, ok := s.webhookQ.Dequeue(ctx)
		if !ok {
			return
		}
		if err := postWebhook(ctx, client, task); err != nil {
			if task.Attempt < 4 {
				s.webhookQ.Retry(task, backoffFor(task.Attempt))
				continue
			}
			s.logger.Error("webhook: delivery abandoned", "url", task.Subscription.URL, "err", err)
		}
	}
}

func backoffFor(attempt int) time.Duration {
	d := 100 * time.Millisecond
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > 5*time.Second {
			return 5 * time.Second
		}
	}
	return d
}

func postWebhook(ctx context.Context, client *http.Client, task webhook.Task) error {
	body, err := json.Marshal(task.Event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, task.Subscription.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if task.Subscription.Secret != "" {
		req.Header.Set("X-Trustmesh-Signature", signPayload(task.Subscription.Secret, body))
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: status %d", resp.StatusCode)
	}
	return nil
}

func signPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// openStore opens the storage backend selected by cfg, returning a coreStore
// and a cleanup func.
func openStore(cfg *Config) (coreStore, func() error, error) {
	switch cfg.StorageDriver {
	case "postgres":
		store, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, func() error { return nil }, nil
	case "sqlite":
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// newService wires every native engine against the selected store, mirroring
// the teacher's pattern of funding one *gorm.DB/store through every
// collaborator (services/otc-gateway/server.go).
func newService(cfg *Config, logger *slog.Logger) (*service, error) {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	intakeStore, err := intake.OpenSQLiteStore(intakeDBPath(cfg))
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("open intake store: %w", err)
	}

	registry := directory.NewRegistry(store)
	ledgerEngine := ledger.NewLedger(store)
	graphEngine := graph.NewGraph(store)
	authorityEngine := authority.NewEngine(store, graphEngine, registry)
	pathEngine := path.NewEngine(store, graphEngine)
	sybilEngine := sybil.NewEngine(store, graphEngine, registry)
	scoreEngine := score.NewEngine(store, registry)
	uptoEngine := schemes.NewUptoEngine(store, ledgerEngine)
	subEngine := schemes.NewSubscriptionEngine(store, ledgerEngine)
	batchEngine := schemes.NewBatchEngine(store, ledgerEngine)
	anomalyEngine := anomaly.NewEngine(store)
	votesIntake := votes.NewIntake(store, ledgerEngine, graphEngine, registry)

	if cfg.PlatformFeeMDRBasisPoints > 0 {
		platformFeePolicy := fees.Policy{Domains: map[string]fees.DomainPolicy{
			schemes.DomainUpto: {
				MDRBasisPoints:     cfg.PlatformFeeMDRBasisPoints,
				FreeTierTxPerMonth: cfg.PlatformFeeFreeTierTxPerMonth,
			},
			schemes.DomainSubscription: {
				MDRBasisPoints:     cfg.PlatformFeeMDRBasisPoints,
				FreeTierTxPerMonth: cfg.PlatformFeeFreeTierTxPerMonth,
			},
			schemes.DomainBatch: {
				MDRBasisPoints:     cfg.PlatformFeeMDRBasisPoints,
				FreeTierTxPerMonth: cfg.PlatformFeeFreeTierTxPerMonth,
			},
		}}
		platformFee := schemes.NewPlatformFee(platformFeePolicy)
		uptoEngine.SetPlatformFee(platformFee)
		subEngine.SetPlatformFee(platformFee)
		batchEngine.SetPlatformFee(platformFee)
	}

	pauses := common.NewPauseRegistry()

	processor := intake.NewProcessor(intakeStore, cfg.IntakeRatePerSecond, cfg.IntakeBurst)
	processor.SetQuota(cfg.IntakeQuotaPerMinute)
	processor.SetPauseRegistry(pauses)

	var alertJournal *slog.Logger
	if cfg.AlertJournalPath != "" {
		alertJournal = logging.NewAlertJournal(cfg.AlertJournalPath, 0, 0, 0)
	}

	svc := &service{
		logger:       logger,
		cfg:          cfg,
		registry:     registry,
		ledger:       ledgerEngine,
		graph:        graphEngine,
		authority:    authorityEngine,
		path:         pathEngine,
		sybil:        sybilEngine,
		score:        scoreEngine,
		upto:         uptoEngine,
		subs:         subEngine,
		batches:      batchEngine,
		anomaly:      anomalyEngine,
		votesIn:      votesIntake,
		intakeProc:   processor,
		webhookQ:     webhook.NewQueue(),
		meter:        anomaly.NewMeter(24),
		facilitators: anomaly.NewFacilitatorTracker(),
		alertJournal: alertJournal,
		pauses:       pauses,
		closers: []func() error{
			closeStore,
			intakeStore.Close,
		},
	}
	svc.registerHandlers()
	return svc, nil
}

func intakeDBPath(cfg *Config) string {
	if cfg.StorageDriver == "sqlite" {
		return cfg.SQLitePath + "-intake.db"
	}
	return "trustmesh-intake.db"
}

func (s *service) close() {
	for _, c := range s.closers {
		if c == nil {
			continue
		}
		if err := c(); err != nil {
			s.logger.Error("service: close error", "err", err)
		}
	}
}

// scheduledJobs returns the periodic control-plane table described in
// spec.md section 4.9/9: authority recompute, Sybil recompute, anomaly scan,
// subscription sweep and composite score recompute. There is no path cache
// sweep or metric rollup job (cfg.PathSweepInterval is not read); stale
// trust-path entries are only rejected on lookup, via path.TrustPath.Valid.
// Each job is independently timed and never runs
// concurrently with itself, per native/scheduler's skip-if-busy contract.
//
// When cfg.JobTablePath names a file, its per-job intervals and enabled
// flags override the defaults below via scheduler.Filter, the declarative
// job-table mechanism native/scheduler/jobtable.go implements; a missing or
// unparseable file falls back to the hardcoded defaults rather than
// refusing to start.
func (s *service) scheduledJobs() []scheduler.Job {
	defaults := map[string]scheduler.Job{
		"authority_recompute": {
			Name:     "authority_recompute",
			Interval: s.cfg.AuthorityInterval,
			Run: func(ctx context.Context) error {
				return s.runPausable("authority_recompute", s.authority.Recompute)
			},
		},
		"sybil_recompute": {
			Name:     "sybil_recompute",
			Interval: s.cfg.AuthorityInterval,
			Run: func(ctx context.Context) error {
				return s.runPausable("sybil_recompute", s.sybil.Recompute)
			},
		},
		"anomaly_scan": {
			Name:     "anomaly_scan",
			Interval: s.cfg.AnomalyInterval,
			Run: func(ctx context.Context) error {
				return s.runPausable("anomaly_scan", s.runAnomalyScan)
			},
		},
		"subscription_sweep": {
			Name:     "subscription_sweep",
			Interval: s.cfg.SubscriptionSweep,
			Run: func(ctx context.Context) error {
				return s.runPausable("subscription_sweep", s.subs.Sweep)
			},
		},
		"score_recompute": {
			Name:     "score_recompute",
			Interval: s.cfg.ScoreInterval,
			Run: func(ctx context.Context) error {
				return s.runPausable("score_recompute", s.runScoreRecompute)
			},
		},
	}

	if specs, ok := s.loadJobTable(); ok {
		implemented := make(map[string]func() scheduler.Job, len(defaults))
		for name, job := range defaults {
			job := job
			implemented[name] = func() scheduler.Job { return job }
		}
		return scheduler.Filter(specs, implemented)
	}

	jobs := make([]scheduler.Job, 0, len(defaults))
	for _, name := range []string{"authority_recompute", "sybil_recompute", "anomaly_scan", "subscription_sweep", "score_recompute"} {
		jobs = append(jobs, defaults[name])
	}
	return jobs
}

// qualityDecayDays bounds the composite score's quality sub-score to the
// trailing 90 days of votes with linear time decay, per spec.md section 4.7.
const qualityDecayDays = 90.0

// buildAgentStats assembles the score engine's AgentStats input for one
// agent from the registry/ledger/votes/authority/sybil engines and the
// anomaly detector's rolling meter, the way potso's reward pass pulls its
// inputs from several collaborators before composing a single payout.
func (s *service) buildAgentStats(agent *directory.Agent, now time.Time) (score.AgentStats, error) {
	var stats score.AgentStats

	if metrics, ok, err := s.sybil.Get(agent.AgentID); err != nil {
		return stats, err
	} else if ok {
		stats.SybilRiskScore = metrics.RiskScore
	}

	if metrics, ok, err := s.authority.Get(agent.AgentID); err != nil {
		return stats, err
	} else if ok {
		stats.PageRankNormalized = metrics.PageRankNormalized
	}

	agentVotes, err := s.votesIn.VotesForSubject(agent.AgentID)
	if err != nil {
		return stats, err
	}
	var qualitySum, qualityWeight float64
	for _, v := range agentVotes {
		voterWeight := 0.0
		if vm, ok, err := s.authority.Get(v.Voter); err != nil {
			return stats, err
		} else if ok {
			voterWeight = float64(vm.PageRankNormalized)
		}
		stats.VoterAuthorityWeightedTotal += voterWeight
		if v.Polarity == votes.PolarityUp {
			stats.VoterAuthorityWeightedPositive += voterWeight
		}

		ageDays := now.Sub(v.Timestamp).Hours() / 24
		decay := 1 - ageDays/qualityDecayDays
		if decay <= 0 {
			continue
		}
		qualitySum += decay * v.Quality.Mean()
		qualityWeight += decay
	}
	if qualityWeight > 0 {
		stats.QualityMean = qualitySum / qualityWeight
	}

	window := s.meter.AgentWindow(agent.AgentID, now)
	totalTx := window.RecentTotal + window.HistoricalTotal
	if totalTx > 0 {
		successRate := 100 * float64(window.RecentSuccess+window.HistoricalSuccess) / float64(totalTx)
		errorRate := 100 * float64(window.RecentErrors+window.HistoricalErrors) / float64(totalTx)
		// The meter only retains a rolling ~24h lookback (native/anomaly.Meter),
		// so the 7d/30d windows share the same rolled-up rate rather than
		// re-deriving independent longer-horizon figures; a longer-lived
		// per-agent ledger aggregate would be needed to tell them apart.
		stats.SuccessRate24h = successRate
		stats.SuccessRate7d = successRate
		stats.SuccessRate30d = successRate
		stats.ErrorRatePercent = errorRate
	}

	receipts, err := s.ledger.ReceiptsFor(agent.Address)
	if err != nil {
		return stats, err
	}
	for _, r := range receipts {
		stats.CumulativeVolumeMicro += r.AmountMicro
		if now.Sub(r.CreatedAt) <= 24*time.Hour {
			stats.RecentVolumeMicro += r.AmountMicro
		}
	}

	return stats, nil
}

// runScoreRecompute recomposes every active agent's tiered score (spec.md
// section 4.7) and enqueues a tier_change webhook event when the tier moves,
// mirroring the alert fan-out runAnomalyScan already performs.
func (s *service) runScoreRecompute() error {
	agents, err := s.registry.List()
	if err != nil {
		return err
	}
	now := time.Now()
	subs := s.webhookSubscribers()
	for _, agent := range agents {
		if !agent.Active {
			continue
		}
		stats, err := s.buildAgentStats(agent, now)
		if err != nil {
			s.logger.Error("score: build stats failed", "agent", agent.AgentID, "err", err)
			continue
		}
		prevTier := agent.Tier
		result, err := s.score.Recompute(agent.AgentID, stats)
		if err != nil {
			s.logger.Error("score: recompute failed", "agent", agent.AgentID, "err", err)
			continue
		}
		if result == nil {
			continue
		}
		if string(result.Tier) != prevTier {
			s.webhookQ.Enqueue(webhook.Event{
				Type:    "tier_change",
				Subject: agent.AgentID,
				Attributes: map[string]string{
					"from":  prevTier,
					"to":    string(result.Tier),
					"score": fmt.Sprintf("%d", result.Overall),
				},
				CreatedAt: now,
			}, subs)
		}
	}
	return nil
}

// runPausable checks the control-plane pause registry before running a
// scheduled job, letting an operator pause one job by name (POST
// /v1/control/pause) without affecting the others. A paused job is logged
// and treated as a clean no-op tick rather than a failed run.
func (s *service) runPausable(module string, fn func() error) error {
	if err := common.Guard(s.pauses, module); err != nil {
		s.logger.Info("scheduler: job paused, skipping", "job", module)
		return nil
	}
	return fn()
}

// loadJobTable reads s.cfg.JobTablePath by extension (YAML or TOML), logging
// and falling back to the built-in defaults on any error so a malformed
// operator file never prevents the daemon from starting.
func (s *service) loadJobTable() ([]scheduler.JobSpec, bool) {
	tablePath := s.cfg.JobTablePath
	if tablePath == "" {
		return nil, false
	}
	var (
		specs []scheduler.JobSpec
		err   error
	)
	if strings.HasSuffix(tablePath, ".toml") {
		specs, err = scheduler.LoadJobTableTOML(tablePath)
	} else {
		specs, err = scheduler.LoadJobTableYAML(tablePath)
	}
	if err != nil {
		s.logger.Error("service: job table load failed, using defaults", "path", tablePath, "err", err)
		return nil, false
	}
	return specs, true
}

// runAnomalyScan assembles a Snapshot from the rolling meter/tracker state
// and feeds it through the anomaly engine, generalizing potso's
// metrics_abuse_test.go rolling-window bookkeeping to payment success/error
// counts.
func (s *service) runAnomalyScan() error {
	now := time.Now()
	agents := s.meter.TrackedAgents()
	windows := make([]anomaly.AgentWindow, 0, len(agents))
	for _, id := range agents {
		windows = append(windows, s.meter.AgentWindow(id, now))
	}
	snap := anomaly.Snapshot{
		Agents:       windows,
		Network:      s.meter.NetworkWindow(now),
		Facilitators: s.facilitators.Windows(),
	}
	alerts, err := s.anomaly.Scan(snap)
	if err != nil {
		return err
	}
	subs := s.webhookSubscribers()
	for _, a := range alerts {
		s.webhookQ.Enqueue(webhook.Event{
			Type:       "alert",
			Subject:    a.Subject,
			Attributes: map[string]string{"type": string(a.Type), "severity": string(a.Severity)},
			CreatedAt:  a.Timestamp,
		}, subs)
		if s.alertJournal != nil {
			s.alertJournal.Info("alert",
				"subject", a.Subject,
				"type", string(a.Type),
				"severity", string(a.Severity),
				"timestamp", a.Timestamp,
			)
		}
	}
	return nil
}
