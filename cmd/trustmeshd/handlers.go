package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"trustmesh/native/anomaly"
	"trustmesh/native/directory"
	"trustmesh/native/intake"
	"trustmesh/native/ledger"
	"trustmesh/native/path"
	"trustmesh/native/votes"
	"trustmesh/native/webhook"
)

// registerHandlers binds each inbound intake.Kind to the engine it drives,
// the composition point services/escrow-gateway/server.go performs per
// HTTP route but generalized to four event kinds sharing one front door.
func (s *service) registerHandlers() {
	s.intakeProc.Register(intake.KindPaymentEvent, s.handlePaymentEvent)
	s.intakeProc.Register(intake.KindFacilitatorHealth, s.handleFacilitatorHealth)
	s.intakeProc.Register(intake.KindEndorsementSubmit, s.handleEndorsementSubmission)
	s.intakeProc.Register(intake.KindVoteSubmit, s.handleVoteSubmission)
}

// --- inbound event DTOs (spec.md section 6) ---

type paymentEventDTO struct {
	Signature   string `json:"signature"`
	Payer       string `json:"payer"`
	Payee       string `json:"payee"`
	AmountMicro int64  `json:"amount_micro"`
	Currency    string `json:"currency"`
	Network     string `json:"network"`
	Facilitator string `json:"facilitator"`
	Status      string `json:"status"`
	Timestamp   int64  `json:"timestamp"`
	Endpoint    string `json:"endpoint,omitempty"`
}

type facilitatorHealthDTO struct {
	Facilitator string `json:"facilitator"`
	Status      string `json:"status"`
	LatencyMS   int    `json:"latency_ms"`
	Timestamp   int64  `json:"timestamp"`
}

type endorsementSubmissionDTO struct {
	IssuerAddress  string  `json:"issuer_address"`
	SubjectAddress string  `json:"subject_address"`
	Type           string  `json:"type"`
	Claim          string  `json:"claim"`
	Confidence     float64 `json:"confidence"`
	Evidence       string  `json:"evidence,omitempty"`
}

type voteSubmissionDTO struct {
	ReceiptID      string  `json:"receipt_id"`
	VoterAddress   string  `json:"voter_address"`
	SubjectAddress string  `json:"subject_address"`
	Polarity       string  `json:"polarity"`
	Quality        struct {
		RQ   float64 `json:"rq"`
		RS   float64 `json:"rs"`
		Acc  float64 `json:"acc"`
		Prof float64 `json:"prof"`
	} `json:"quality"`
	CommentHash string `json:"comment_hash,omitempty"`
}

func (s *service) handlePaymentEvent(ctx context.Context, req intake.Request) (intake.Result, error) {
	var dto paymentEventDTO
	if err := json.Unmarshal(req.Body, &dto); err != nil {
		return intake.Result{}, err
	}
	if _, err := s.registry.EnsureAgent(dto.Payer); err != nil {
		return intake.Result{}, err
	}
	if _, err := s.registry.EnsureAgent(dto.Payee); err != nil {
		return intake.Result{}, err
	}
	event := ledger.PaymentEvent{
		Signature:   dto.Signature,
		Payer:       dto.Payer,
		Payee:       dto.Payee,
		AmountMicro: dto.AmountMicro,
		Currency:    dto.Currency,
		Network:     dto.Network,
		Facilitator: dto.Facilitator,
		Status:      ledger.Status(dto.Status),
		Endpoint:    dto.Endpoint,
		Timestamp:   time.UnixMilli(dto.Timestamp),
	}
	receipt, err := s.ledger.Observe(event)
	if err != nil {
		return intake.Result{}, err
	}
	s.meter.Record(dto.Payer, event.Timestamp, event.Status == ledger.StatusConfirmed)
	s.meter.Record(dto.Payee, event.Timestamp, event.Status == ledger.StatusConfirmed)

	payload, _ := json.Marshal(struct {
		ReceiptCreated bool `json:"receipt_created"`
	}{ReceiptCreated: receipt != nil})
	return intake.Result{Status: http.StatusAccepted, Payload: payload}, nil
}

func (s *service) handleFacilitatorHealth(ctx context.Context, req intake.Request) (intake.Result, error) {
	var dto facilitatorHealthDTO
	if err := json.Unmarshal(req.Body, &dto); err != nil {
		return intake.Result{}, err
	}
	consecutive := s.facilitators.Observe(dto.Facilitator, anomaly.HealthStatus(dto.Status))
	payload, _ := json.Marshal(struct {
		ConsecutiveFailures int `json:"consecutive_failures"`
	}{ConsecutiveFailures: consecutive})
	return intake.Result{Status: http.StatusAccepted, Payload: payload}, nil
}

func (s *service) handleEndorsementSubmission(ctx context.Context, req intake.Request) (intake.Result, error) {
	var dto endorsementSubmissionDTO
	if err := json.Unmarshal(req.Body, &dto); err != nil {
		return intake.Result{}, err
	}
	endorsement, err := s.votesIn.SubmitEndorsement(dto.IssuerAddress, dto.SubjectAddress, dto.Type, dto.Claim, dto.Confidence, dto.Evidence)
	if err != nil {
		return intake.Result{}, err
	}
	payload, _ := json.Marshal(endorsement)
	return intake.Result{Status: http.StatusCreated, Payload: payload}, nil
}

func (s *service) handleVoteSubmission(ctx context.Context, req intake.Request) (intake.Result, error) {
	var dto voteSubmissionDTO
	if err := json.Unmarshal(req.Body, &dto); err != nil {
		return intake.Result{}, err
	}
	receiptID, err := decodeReceiptID(dto.ReceiptID)
	if err != nil {
		return intake.Result{}, err
	}
	quality := votes.QualityScores{
		ResponseQuality: dto.Quality.RQ,
		ResponseSpeed:   dto.Quality.RS,
		Accuracy:        dto.Quality.Acc,
		Professionalism: dto.Quality.Prof,
	}
	vote, err := s.votesIn.SubmitVote(receiptID, dto.VoterAddress, dto.SubjectAddress, votes.Polarity(dto.Polarity), quality, dto.CommentHash)
	if err != nil {
		return intake.Result{}, err
	}
	payload, _ := json.Marshal(vote)
	return intake.Result{Status: http.StatusCreated, Payload: payload}, nil
}

// --- outbound query surface (spec.md section 6) ---

type agentView struct {
	AgentID            string   `json:"agent_id"`
	Address            string   `json:"address"`
	DisplayName        string   `json:"display_name"`
	Category           string   `json:"category"`
	Capabilities       []string `json:"capabilities"`
	Tier               string   `json:"tier"`
	Score              int      `json:"score"`
	PageRankNormalized int      `json:"pagerank_normalized"`
	SybilRiskScore     float64  `json:"sybil_risk_score"`
}

func (s *service) toAgentView(a *directory.Agent) agentView {
	view := agentView{
		AgentID:      a.AgentID,
		Address:      a.Address,
		DisplayName:  a.DisplayName,
		Category:     a.Category,
		Capabilities: a.Capabilities,
		Tier:         a.Tier,
		Score:        a.Score,
	}
	if m, ok, _ := s.authority.Get(a.AgentID); ok {
		view.PageRankNormalized = m.PageRankNormalized
	}
	if m, ok, _ := s.sybil.Get(a.AgentID); ok {
		view.SybilRiskScore = m.RiskScore
	}
	return view
}

func (s *service) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	agent, err := s.registry.Resolve(address)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toAgentView(agent))
}

func (s *service) handleSearchAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.registry.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	category := r.URL.Query().Get("category")
	minScore := atoiDefault(r.URL.Query().Get("min_score"), 0)

	views := make([]agentView, 0, len(agents))
	for _, a := range agents {
		if !a.Active {
			continue
		}
		if category != "" && a.Category != category {
			continue
		}
		if a.Score < minScore {
			continue
		}
		views = append(views, s.toAgentView(a))
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Score != views[j].Score {
			return views[i].Score > views[j].Score
		}
		return views[i].AgentID < views[j].AgentID
	})
	views = paginate(views, r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	writeJSON(w, http.StatusOK, views)
}

func (s *service) handleTopByAuthority(w http.ResponseWriter, r *http.Request) {
	agents, err := s.registry.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]agentView, 0, len(agents))
	for _, a := range agents {
		if !a.Active {
			continue
		}
		views = append(views, s.toAgentView(a))
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].PageRankNormalized != views[j].PageRankNormalized {
			return views[i].PageRankNormalized > views[j].PageRankNormalized
		}
		return views[i].AgentID < views[j].AgentID
	})
	limit := atoiDefault(r.URL.Query().Get("limit"), 20)
	if limit < len(views) {
		views = views[:limit]
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *service) handleSybilRisk(w http.ResponseWriter, r *http.Request) {
	minRisk := atofDefault(r.URL.Query().Get("min_risk"), 0)
	agents, err := s.registry.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]agentView, 0)
	for _, a := range agents {
		view := s.toAgentView(a)
		if view.SybilRiskScore >= minRisk {
			views = append(views, view)
		}
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].SybilRiskScore != views[j].SybilRiskScore {
			return views[i].SybilRiskScore > views[j].SybilRiskScore
		}
		return views[i].AgentID < views[j].AgentID
	})
	limit := atoiDefault(r.URL.Query().Get("limit"), 20)
	if limit < len(views) {
		views = views[:limit]
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *service) handleTrustPath(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	fromAgent, err := s.registry.Resolve(from)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	toAgent, err := s.registry.Resolve(to)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	p, err := s.path.ShortestPath(fromAgent.AgentID, toAgent.AgentID)
	if errors.Is(err, path.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"found":      true,
		"path":       p.Nodes,
		"confidence": p.Confidence,
		"distance":   p.Distance(),
	})
}

func (s *service) handleTransitiveTrust(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	fromAgent, err := s.registry.Resolve(from)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	toAgent, err := s.registry.Resolve(to)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	direct, transitive, combined, err := s.path.TransitiveTrust(fromAgent.AgentID, toAgent.AgentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"direct":      direct,
		"transitive":  transitive,
		"combined":    combined,
	})
}

func (s *service) handleRecentAlerts(w http.ResponseWriter, r *http.Request) {
	sinceParam := r.URL.Query().Get("since")
	since := time.Time{}
	if sinceParam != "" {
		if ms, err := strconv.ParseInt(sinceParam, 10, 64); err == nil {
			since = time.UnixMilli(ms)
		}
	}
	alerts, err := s.anomaly.RecentAlerts(since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

type webhookRegisterDTO struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	Secret     string   `json:"secret"`
	EventTypes []string `json:"event_types"`
}

func (s *service) handleRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	var dto webhookRegisterDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	types := make(map[string]bool, len(dto.EventTypes))
	for _, t := range dto.EventTypes {
		types[t] = true
	}
	s.RegisterWebhook(&webhook.Subscription{ID: dto.ID, URL: dto.URL, Secret: dto.Secret, EventTypes: types})
	w.WriteHeader(http.StatusCreated)
}

type modulePauseDTO struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

// handleSetModulePause toggles the control-plane pause flag for one
// scheduled job or intake event kind (the module names are the scheduler's
// job names and the intake.Kind values), the operator-facing surface for
// native/common.PauseRegistry.
func (s *service) handleSetModulePause(w http.ResponseWriter, r *http.Request) {
	var dto modulePauseDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if dto.Module == "" {
		writeError(w, http.StatusBadRequest, errors.New("trustmeshd: module is required"))
		return
	}
	s.pauses.SetPaused(dto.Module, dto.Paused)
	writeJSON(w, http.StatusOK, map[string]any{"module": dto.Module, "paused": dto.Paused})
}

func (s *service) handleListPausedModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"paused": s.pauses.PausedModules()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func atofDefault(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func paginate(views []agentView, limitStr, offsetStr string) []agentView {
	offset := atoiDefault(offsetStr, 0)
	limit := atoiDefault(limitStr, 50)
	if offset >= len(views) {
		return []agentView{}
	}
	end := offset + limit
	if end > len(views) {
		end = len(views)
	}
	return views[offset:end]
}

var errInvalidReceiptID = errors.New("trustmeshd: receipt_id must be 64 hex characters")

func decodeReceiptID(s string) ([32]byte, error) {
	var id [32]byte
	if len(s) != 64 {
		return id, errInvalidReceiptID
	}
	n, err := hex.Decode(id[:], []byte(s))
	if err != nil || n != 32 {
		return id, errInvalidReceiptID
	}
	return id, nil
}
