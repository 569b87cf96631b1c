package ledger

import (
	"errors"
	"testing"
	"time"
)

func TestObserveConfirmedCreatesReceipt(t *testing.T) {
	store := newMemoryStore()
	l := NewLedger(store)
	l.SetNowFunc(func() time.Time { return time.Unix(1000, 0) })

	event := PaymentEvent{
		Signature:   "S1",
		Payer:       "ADDR_A",
		Payee:       "ADDR_B",
		AmountMicro: 78000,
		Status:      StatusConfirmed,
		Timestamp:   time.Unix(999, 0),
	}

	receipt, err := l.Observe(event)
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if receipt == nil {
		t.Fatalf("expected receipt")
	}
	if receipt.ID != ReceiptHash("S1") {
		t.Fatalf("unexpected receipt id")
	}
	if receipt.VoteCast {
		t.Fatalf("expected vote_cast=false on creation")
	}

	payment, ok, err := store.GetPayment("S1")
	if err != nil || !ok {
		t.Fatalf("expected payment record persisted, err=%v ok=%v", err, ok)
	}
	if payment.Status != StatusConfirmed {
		t.Fatalf("expected confirmed status, got %s", payment.Status)
	}
}

func TestObserveFailedDoesNotCreateReceipt(t *testing.T) {
	store := newMemoryStore()
	l := NewLedger(store)

	_, err := l.Observe(PaymentEvent{Signature: "S2", Status: StatusFailed})
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if _, ok, _ := store.GetReceiptBySignature("S2"); ok {
		t.Fatalf("did not expect a receipt for a failed payment")
	}
}

func TestObserveIsIdempotentOnRepeatedConfirmation(t *testing.T) {
	store := newMemoryStore()
	l := NewLedger(store)

	event := PaymentEvent{Signature: "S3", Payer: "A", Payee: "B", AmountMicro: 100, Status: StatusConfirmed}
	first, err := l.Observe(event)
	if err != nil {
		t.Fatalf("first observe: %v", err)
	}
	second, err := l.Observe(event)
	if err != nil {
		t.Fatalf("second observe: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same receipt id on replay")
	}
}

func TestObserveConflictingTerminalStatusFails(t *testing.T) {
	store := newMemoryStore()
	l := NewLedger(store)

	if _, err := l.Observe(PaymentEvent{Signature: "S4", Status: StatusConfirmed}); err != nil {
		t.Fatalf("first observe: %v", err)
	}
	_, err := l.Observe(PaymentEvent{Signature: "S4", Status: StatusFailed})
	if !errors.Is(err, ErrInconsistentTerminalState) {
		t.Fatalf("expected ErrInconsistentTerminalState, got %v", err)
	}
}

func TestMarkVoteCastFlipsOnce(t *testing.T) {
	store := newMemoryStore()
	l := NewLedger(store)

	receipt, err := l.Observe(PaymentEvent{Signature: "S5", Payer: "A", Payee: "B", Status: StatusConfirmed})
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if err := l.MarkVoteCast(receipt.ID); err != nil {
		t.Fatalf("mark vote cast: %v", err)
	}
	stored, ok, err := l.ReceiptByID(receipt.ID)
	if err != nil || !ok {
		t.Fatalf("expected receipt, err=%v ok=%v", err, ok)
	}
	if !stored.VoteCast {
		t.Fatalf("expected vote_cast=true")
	}
}
