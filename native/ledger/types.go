// Package ledger normalizes inbound payment events into PaymentRecords and
// materializes exactly one Receipt per confirmed payment signature.
package ledger

import "time"

// Status is the terminal classification of a PaymentRecord.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// PaymentRecord is the core's normalized view of an on-chain payment. It is
// owned by the payment-intake collaborator; the ledger only observes it via
// Observe and never originates one on its own.
type PaymentRecord struct {
	Signature   string
	Payer       string
	Payee       string
	AmountMicro int64
	Currency    string
	Network     string
	Facilitator string
	Status      Status
	Endpoint    string
	Timestamp   time.Time
	UpdatedAt   time.Time
}

// PaymentEvent is the inbound shape observed from the payment-intake feed.
type PaymentEvent struct {
	Signature   string
	Payer       string
	Payee       string
	AmountMicro int64
	Currency    string
	Network     string
	Facilitator string
	Status      Status
	Endpoint    string
	Timestamp   time.Time
}

// Receipt is derived from exactly one confirmed PaymentRecord. ID is the
// stable 32-byte hash of the originating signature.
type Receipt struct {
	ID        [32]byte
	Payer     string
	Payee     string
	Signature string
	AmountMicro int64
	Category  string
	CreatedAt time.Time
	VoteCast  bool
}
