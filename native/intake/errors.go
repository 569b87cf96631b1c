package intake

import "errors"

var (
	// ErrMissingIdempotencyKey is returned when a request omits the
	// Idempotency-Key header/field required for financially consequential
	// writes.
	ErrMissingIdempotencyKey = errors.New("intake: missing idempotency key")
	// ErrIdempotencyMismatch is returned when a key is replayed with a
	// different request body than the one it was first saved against.
	ErrIdempotencyMismatch = errors.New("intake: idempotency key reuse with different request body")
	// ErrUnknownKind is returned when a Request names a Kind with no
	// registered Handler.
	ErrUnknownKind = errors.New("intake: unknown event kind")
	// ErrRateLimited is the Transient backpressure error surfaced when the
	// token bucket in front of the worker pool is exhausted.
	ErrRateLimited = errors.New("intake: rate limited")
	// ErrQueueFull is returned when the bounded worker queue cannot accept
	// another request.
	ErrQueueFull = errors.New("intake: queue full")
	// ErrQuotaExceeded is the Transient backpressure error surfaced when an
	// API key exceeds its per-minute request quota, independent of the
	// global token-bucket limiter.
	ErrQuotaExceeded = errors.New("intake: quota exceeded")
	// ErrModulePaused is returned when an operator has paused the event
	// kind a request targets via the control-plane pause registry.
	ErrModulePaused = errors.New("intake: module paused")
)
