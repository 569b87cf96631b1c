// Package intake is the core's front door for inbound events: payment
// confirmations, facilitator health samples, endorsement submissions, and
// vote submissions. It enforces the same Idempotency-Key contract and
// audit-log trail as services/escrow-gateway/server.go, generalized from a
// single escrow-transition endpoint to four event kinds, each dispatched to
// its owning native engine.
package intake

import "time"

// Kind identifies which event shape a Request carries.
type Kind string

const (
	KindPaymentEvent        Kind = "payment_event"
	KindFacilitatorHealth   Kind = "facilitator_health_sample"
	KindEndorsementSubmit   Kind = "endorsement_submission"
	KindVoteSubmit          Kind = "vote_submission"
)

// Request is one inbound event envelope, keyed by APIKey + IdempotencyKey
// the way the escrow gateway keys its idempotency table by api_key. Body is
// the raw JSON payload; the kind-specific Handler unmarshals it.
type Request struct {
	Kind           Kind
	APIKey         string
	IdempotencyKey string
	Body           []byte
	ReceivedAt     time.Time
}

// Result is what a Handler produces for a successfully processed Request.
// Status/Payload are what gets cached against the idempotency key and
// returned to the caller on replay.
type Result struct {
	Status  int
	Payload []byte
}

// AuditEntry records one processed or rejected request for compliance
// review, mirroring services/escrow-gateway/storage.go's AuditEntry.
type AuditEntry struct {
	APIKey         string
	Kind           Kind
	IdempotencyKey string
	RequestBody    []byte
	ResponseStatus int
	ResponseBody   []byte
	Timestamp      time.Time
}

// StoredResponse is a cached idempotent response.
type StoredResponse struct {
	Status int
	Body   []byte
}
