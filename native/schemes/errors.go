package schemes

import "errors"

var (
	// ErrAuthorizationNotFound marks a charge/revoke against an unknown
	// authorization.
	ErrAuthorizationNotFound = errors.New("schemes: authorization not found")
	// ErrAuthorizationExhausted marks a charge rejected because the
	// authorization's remaining amount has reached zero.
	ErrAuthorizationExhausted = errors.New("schemes: authorization exhausted")
	// ErrAuthorizationExpired marks a charge rejected because the
	// authorization's expiry has passed.
	ErrAuthorizationExpired = errors.New("schemes: authorization expired")
	// ErrAuthorizationRevoked marks a charge rejected because the
	// authorization was explicitly revoked.
	ErrAuthorizationRevoked = errors.New("schemes: authorization revoked")
	// ErrInvalidRange marks a negative or otherwise out-of-range amount.
	ErrInvalidRange = errors.New("schemes: value out of range")

	// ErrSubscriptionNotFound marks an operation against an unknown
	// subscription.
	ErrSubscriptionNotFound = errors.New("schemes: subscription not found")

	// ErrBatchNotFound marks an operation against an unknown batch.
	ErrBatchNotFound = errors.New("schemes: batch not found")
	// ErrBatchTotalMismatch marks a batch whose declared total does not
	// match the sum of its item amounts within tolerance.
	ErrBatchTotalMismatch = errors.New("schemes: batch total does not match item sum")
	// ErrBatchItemNotFound marks an update against a recipient not present
	// in the batch.
	ErrBatchItemNotFound = errors.New("schemes: batch item not found")
	// ErrBatchClosed marks an update attempted against a batch that has
	// already reached a terminal status.
	ErrBatchClosed = errors.New("schemes: batch already closed")
)
