package schemes

import (
	"math"
	"time"

	"trustmesh/native/ledger"
)

// batchTotalTolerance is the allowed rounding slack between a batch's
// declared total and the sum of its item amounts.
const batchTotalTolerance = 1e-6

// BatchEngine manages fan-out payments to N recipients sharing a declared
// total.
type BatchEngine struct {
	store       Store
	ledger      *ledger.Ledger
	platformFee *PlatformFee
}

// NewBatchEngine constructs a batch-scheme engine.
func NewBatchEngine(store Store, l *ledger.Ledger) *BatchEngine {
	return &BatchEngine{store: store, ledger: l}
}

// SetPlatformFee attaches a platform fee calculator. When set, a
// successful item settlement additionally reports the merchant-discount-
// rate split of its amount without altering what is recorded on the
// ledger.
func (b *BatchEngine) SetPlatformFee(pf *PlatformFee) {
	if b == nil {
		return
	}
	b.platformFee = pf
}

// Create persists a new batch with its items in pending state. The declared
// total must match the sum of item amounts within tolerance.
func (b *BatchEngine) Create(batchID, initiator string, totalMicro int64, mode BatchMode, items []*BatchItem) (*Batch, error) {
	if b == nil || b.store == nil {
		return nil, ErrBatchNotFound
	}
	var sum int64
	for _, item := range items {
		item.BatchID = batchID
		item.Status = ItemPending
		sum += item.AmountMicro
	}
	if math.Abs(float64(sum-totalMicro)) > batchTotalTolerance {
		return nil, ErrBatchTotalMismatch
	}
	batch := &Batch{
		BatchID:    batchID,
		Initiator:  initiator,
		TotalMicro: totalMicro,
		Mode:       mode,
		Items:      items,
		Status:     BatchPending,
	}
	if err := b.store.PutBatch(batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// UpdateItem updates one recipient leg's status and recomputes the batch's
// aggregate totals and terminal status. In atomic mode, a failed item fails
// the whole batch and marks every other pending item failed in the same
// step; no further progress is allowed on an atomic batch once failed.
func (b *BatchEngine) UpdateItem(batchID, recipient string, status ItemStatus, signature string, timestamp time.Time) (*Batch, error) {
	if b == nil || b.store == nil {
		return nil, ErrBatchNotFound
	}
	batch, ok, err := b.store.GetBatch(batchID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBatchNotFound
	}
	if isTerminalBatch(batch.Status) {
		return nil, ErrBatchClosed
	}

	var target *BatchItem
	for _, item := range batch.Items {
		if item.Recipient == recipient {
			target = item
			break
		}
	}
	if target == nil {
		return nil, ErrBatchItemNotFound
	}
	target.Status = status
	target.Signature = signature

	if status == ItemSuccess {
		if b.ledger != nil {
			if _, err := b.ledger.Observe(ledger.PaymentEvent{
				Signature:   signature,
				Payer:       batch.Initiator,
				Payee:       recipient,
				AmountMicro: target.AmountMicro,
				Status:      ledger.StatusConfirmed,
				Timestamp:   timestamp,
			}); err != nil {
				return nil, err
			}
		}
		if b.platformFee != nil {
			target.PlatformFee = b.platformFee.Split(DomainBatch, "NHB", target.AmountMicro, 0)
		}
	}

	if status == ItemFailed && batch.Mode == BatchAtomic {
		for _, item := range batch.Items {
			if item.Status == ItemPending {
				item.Status = ItemFailed
			}
		}
	}

	recomputeBatchTotals(batch)
	if err := b.store.PutBatch(batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func recomputeBatchTotals(batch *Batch) {
	success, failed, pending := 0, 0, 0
	for _, item := range batch.Items {
		switch item.Status {
		case ItemSuccess:
			success++
		case ItemFailed:
			failed++
		default:
			pending++
		}
	}
	batch.SuccessCount = success
	batch.FailedCount = failed
	switch {
	case pending == 0 && failed == 0:
		batch.Status = BatchCompleted
	case pending == 0 && success == 0:
		batch.Status = BatchFailed
	case pending == 0:
		batch.Status = BatchPartial
	default:
		batch.Status = BatchProcessing
	}
}

func isTerminalBatch(status BatchStatus) bool {
	return status == BatchCompleted || status == BatchFailed || status == BatchPartial
}

// Get returns the batch record.
func (b *BatchEngine) Get(batchID string) (*Batch, bool, error) {
	if b == nil || b.store == nil {
		return nil, false, nil
	}
	return b.store.GetBatch(batchID)
}
