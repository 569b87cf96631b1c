package ledger

import (
	"crypto/sha256"
	"strings"
	"time"
)

// Ledger ingests payment events, normalizes them, and derives exactly one
// Receipt per confirmed payment signature.
type Ledger struct {
	store Store
	nowFn func() time.Time
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store, nowFn: time.Now}
}

// SetNowFunc overrides the wall clock used for receipt timestamps.
func (l *Ledger) SetNowFunc(now func() time.Time) {
	if l == nil {
		return
	}
	if now == nil {
		l.nowFn = time.Now
		return
	}
	l.nowFn = now
}

func (l *Ledger) now() time.Time {
	if l == nil || l.nowFn == nil {
		return time.Now()
	}
	return l.nowFn()
}

// ReceiptHash derives the stable 32-byte receipt id from a payment signature.
func ReceiptHash(signature string) [32]byte {
	return sha256.Sum256([]byte(strings.TrimSpace(signature)))
}

// Observe ingests a payment event. It is idempotent on signature: a second
// call with the same signature and the same terminal status is a no-op; a
// conflicting terminal status fails with ErrInconsistentTerminalState.
//
// On status=confirmed it upserts the PaymentRecord and creates a Receipt
// keyed by hash(signature) with vote_cast=false, in a single logical unit: a
// failure creating the receipt must not leave the payment upsert behind, so
// the receipt is derived before the payment is persisted.
func (l *Ledger) Observe(event PaymentEvent) (*Receipt, error) {
	if l == nil || l.store == nil {
		return nil, ErrPaymentNotFound
	}
	signature := strings.TrimSpace(event.Signature)
	if signature == "" {
		return nil, ErrInvalidRange
	}
	if event.AmountMicro < 0 {
		return nil, ErrInvalidRange
	}

	existing, ok, err := l.store.GetPayment(signature)
	if err != nil {
		return nil, err
	}
	if ok && isTerminal(existing.Status) {
		if existing.Status != event.Status {
			return nil, ErrInconsistentTerminalState
		}
		if event.Status != StatusConfirmed {
			return nil, nil
		}
		receipt, found, err := l.store.GetReceiptBySignature(signature)
		if err != nil {
			return nil, err
		}
		if found {
			return receipt, nil
		}
		// Confirmed payment previously recorded without a receipt: fall
		// through and materialize one now.
	}

	record := &PaymentRecord{
		Signature:   signature,
		Payer:       event.Payer,
		Payee:       event.Payee,
		AmountMicro: event.AmountMicro,
		Currency:    event.Currency,
		Network:     event.Network,
		Facilitator: event.Facilitator,
		Status:      event.Status,
		Endpoint:    event.Endpoint,
		Timestamp:   event.Timestamp,
		UpdatedAt:   l.now(),
	}

	if event.Status != StatusConfirmed {
		return nil, l.store.PutPayment(record)
	}

	id := ReceiptHash(signature)
	if collision, found, err := l.store.GetReceiptByID(id); err != nil {
		return nil, err
	} else if found && collision.Signature != signature {
		return nil, ErrCorruptInput
	}

	receipt := &Receipt{
		ID:          id,
		Payer:       event.Payer,
		Payee:       event.Payee,
		Signature:   signature,
		AmountMicro: event.AmountMicro,
		CreatedAt:   l.now(),
		VoteCast:    false,
	}
	if err := l.store.PutReceipt(receipt); err != nil {
		return nil, err
	}
	if err := l.store.PutPayment(record); err != nil {
		return nil, err
	}
	return receipt, nil
}

func isTerminal(status Status) bool {
	return status == StatusConfirmed || status == StatusFailed
}

// ReceiptFor returns the receipt derived from signature, if any.
func (l *Ledger) ReceiptFor(signature string) (*Receipt, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, nil
	}
	return l.store.GetReceiptBySignature(strings.TrimSpace(signature))
}

// ReceiptByID returns the receipt identified by its hash id.
func (l *Ledger) ReceiptByID(id [32]byte) (*Receipt, bool, error) {
	if l == nil || l.store == nil {
		return nil, false, nil
	}
	return l.store.GetReceiptByID(id)
}

// ReceiptsFor returns every receipt where address is a party.
func (l *Ledger) ReceiptsFor(address string) ([]*Receipt, error) {
	if l == nil || l.store == nil {
		return nil, nil
	}
	return l.store.ReceiptsForAgent(strings.TrimSpace(address))
}

// MarkVoteCast flips a receipt's vote_cast flag. It is exposed for the vote
// intake engine, which must perform this as part of its own atomic unit; the
// ledger does not call it itself.
func (l *Ledger) MarkVoteCast(id [32]byte) error {
	if l == nil || l.store == nil {
		return ErrReceiptNotFound
	}
	return l.store.SetVoteCast(id)
}
