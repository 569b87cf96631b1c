package ledger

import "errors"

var (
	// ErrInconsistentTerminalState marks a payment signature observed twice
	// with conflicting terminal statuses.
	ErrInconsistentTerminalState = errors.New("ledger: inconsistent terminal state")
	// ErrCorruptInput marks a receipt hash collision between two distinct
	// signatures; this must never happen in practice and is treated as data
	// corruption rather than a retryable condition.
	ErrCorruptInput = errors.New("ledger: corrupt input")
	// ErrInvalidRange marks a negative amount or other out-of-range field.
	ErrInvalidRange = errors.New("ledger: value out of range")
	// ErrReceiptNotFound marks a receipt lookup that found nothing.
	ErrReceiptNotFound = errors.New("ledger: receipt not found")
	// ErrPaymentNotFound marks a payment lookup that found nothing.
	ErrPaymentNotFound = errors.New("ledger: payment not found")
)
