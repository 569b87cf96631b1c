// Package schemes implements the accounting layers for the three extended
// payment schemes (upto, subscription, batch) that sit above the exact,
// one-receipt-per-payment case handled directly by package ledger.
package schemes

import "time"

// AuthorizationStatus is the lifecycle state of a PaymentAuthorization.
type AuthorizationStatus string

const (
	AuthorizationActive   AuthorizationStatus = "active"
	AuthorizationExhausted AuthorizationStatus = "exhausted"
	AuthorizationExpired  AuthorizationStatus = "expired"
	AuthorizationRevoked  AuthorizationStatus = "revoked"
)

// PaymentAuthorization is an "upto" scheme authorization: payer pre-commits a
// ceiling and the payee draws it down per usage unit.
type PaymentAuthorization struct {
	AuthorizationID string
	Payer           string
	Payee           string
	MaxAmountMicro  int64
	UsedMicro       int64
	BaseCostMicro   int64
	UnitCostMicro   int64
	UnitType        string
	Status          AuthorizationStatus
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// ChargeCount is the number of successful Charge calls against this
	// authorization, consulted as the platform fee engine's free-tier
	// usage counter.
	ChargeCount uint64
}

// RemainingMicro returns MaxAmountMicro - UsedMicro.
func (a *PaymentAuthorization) RemainingMicro() int64 {
	return a.MaxAmountMicro - a.UsedMicro
}

// SubscriptionStatus is the lifecycle state of a Subscription.
type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// Subscription is a recurring payment arrangement between a subscriber and a
// provider.
type Subscription struct {
	SubscriptionID     string
	Subscriber         string
	Provider           string
	AmountMicro        int64
	Period             time.Duration
	Status             SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	AutoRenew          bool
	RenewalCount       int
	GraceSeconds       int64
	TrialEnd           time.Time
	CancelRequested    bool

	// LastPlatformFee is the merchant-discount-rate split of the most
	// recently recorded renewal payment, when a PlatformFee calculator is
	// attached to the engine. Zero value when none is attached.
	LastPlatformFee FeeSplit
}

// BatchMode controls failure handling across a batch's items.
type BatchMode string

const (
	BatchAtomic     BatchMode = "atomic"
	BatchBestEffort BatchMode = "best_effort"
)

// BatchStatus is the terminal or in-flight state of a Batch.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
	BatchPartial    BatchStatus = "partial"
)

// ItemStatus is the per-recipient state of a BatchItem.
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemSuccess ItemStatus = "success"
	ItemFailed  ItemStatus = "failed"
)

// BatchItem is one recipient leg of a Batch.
type BatchItem struct {
	BatchID     string
	Recipient   string
	AmountMicro int64
	Status      ItemStatus
	Signature   string

	// PlatformFee is the merchant-discount-rate split of AmountMicro once
	// the item settles successfully, when a PlatformFee calculator is
	// attached to the engine. Zero value when none is attached.
	PlatformFee FeeSplit
}

// Batch is a fan-out payment to N recipients sharing a declared total.
type Batch struct {
	BatchID      string
	Initiator    string
	TotalMicro   int64
	Mode         BatchMode
	Items        []*BatchItem
	SuccessCount int
	FailedCount  int
	Status       BatchStatus
}
