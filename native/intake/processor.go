package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"trustmesh/native/common"
	"trustmesh/observability/metrics"
)

// Handler processes one Request's body and returns the Result to cache and
// return to the caller. Handlers are registered per Kind by the daemon that
// wires the native engines (ledger.Observe, anomaly.FacilitatorTracker.Observe,
// votes.SubmitEndorsement, votes.SubmitVote).
type Handler func(ctx context.Context, req Request) (Result, error)

// Processor is the idempotency-and-rate-limit front door shared by every
// intake Kind, generalizing the escrow gateway's per-handler idempotency
// boilerplate into one reusable component.
type Processor struct {
	store      Store
	limiter    *rate.Limiter
	handlers   map[Kind]Handler
	quotaStore common.Store
	quota      common.Quota
	pauses     common.PauseView
}

// NewProcessor constructs a Processor. ratePerSecond/burst configure the
// token-bucket backpressure gate described in spec.md's "bounded queue plus
// a fixed worker pool" intake design.
func NewProcessor(store Store, ratePerSecond float64, burst int) *Processor {
	if burst <= 0 {
		burst = 1
	}
	return &Processor{
		store:    store,
		limiter:  rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		handlers: make(map[Kind]Handler),
	}
}

// SetPauseRegistry installs a PauseView the processor consults before
// dispatching any request, keyed by event Kind, so an operator can pause one
// event kind without touching the others' idempotency/rate-limit state.
func (p *Processor) SetPauseRegistry(pauses common.PauseView) {
	if p == nil {
		return
	}
	p.pauses = pauses
}

// Register binds a Handler to a Kind.
func (p *Processor) Register(kind Kind, h Handler) {
	if p == nil || h == nil {
		return
	}
	p.handlers[kind] = h
}

// Process runs the full idempotency/backpressure/dispatch/audit pipeline
// for one Request.
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if p == nil {
		return Result{}, errors.New("intake: nil processor")
	}

	if err := common.Guard(p.pauses, string(req.Kind)); err != nil {
		metrics.TrustMesh().IncIntakeRejected("module_paused")
		return Result{}, fmt.Errorf("%w: %s", ErrModulePaused, req.Kind)
	}

	if req.IdempotencyKey == "" {
		metrics.TrustMesh().IncIntakeRejected("missing_idempotency_key")
		p.audit(ctx, req, 0, nil)
		return Result{}, ErrMissingIdempotencyKey
	}

	if !p.limiter.Allow() {
		metrics.TrustMesh().IncIntakeRejected("rate_limited")
		return Result{}, ErrRateLimited
	}

	if err := p.checkQuota(req.APIKey); err != nil {
		metrics.TrustMesh().IncIntakeRejected("quota_exceeded")
		return Result{}, err
	}

	requestHash := hashRequest(string(req.Kind), req.Body)
	if p.store != nil {
		cached, err := p.store.LookupIdempotency(ctx, req.APIKey, req.IdempotencyKey, requestHash)
		if err != nil {
			if errors.Is(err, ErrIdempotencyMismatch) {
				metrics.TrustMesh().IncIntakeRejected("idempotency_mismatch")
			}
			return Result{}, err
		}
		if cached != nil {
			p.audit(ctx, req, cached.Status, cached.Body)
			return Result{Status: cached.Status, Payload: cached.Body}, nil
		}
	}

	handler, ok := p.handlers[req.Kind]
	if !ok {
		metrics.TrustMesh().IncIntakeRejected("unknown_kind")
		p.audit(ctx, req, 0, nil)
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownKind, req.Kind)
	}

	result, err := handler(ctx, req)
	if err != nil {
		p.audit(ctx, req, 0, nil)
		return Result{}, err
	}

	if p.store != nil {
		if err := p.store.SaveIdempotency(ctx, req.APIKey, req.IdempotencyKey, requestHash, result.Status, result.Payload); err != nil {
			return Result{}, err
		}
	}
	p.audit(ctx, req, result.Status, result.Payload)
	return result, nil
}

func (p *Processor) audit(ctx context.Context, req Request, status int, responseBody []byte) {
	if p.store == nil {
		return
	}
	entry := AuditEntry{
		APIKey:         req.APIKey,
		Kind:           req.Kind,
		IdempotencyKey: req.IdempotencyKey,
		RequestBody:    req.Body,
		ResponseStatus: status,
		ResponseBody:   responseBody,
		Timestamp:      req.ReceivedAt,
	}
	_ = p.store.InsertAuditLog(ctx, entry)
}

func hashRequest(kind string, body []byte) string {
	sum := sha256.Sum256(append([]byte(kind+":"), body...))
	return hex.EncodeToString(sum[:])
}
