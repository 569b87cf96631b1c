package schemes_test

import (
	"testing"
	"time"

	"trustmesh/native/ledger"
	"trustmesh/native/schemes"
	"trustmesh/storage"
)

func TestBatchCreateRejectsTotalMismatch(t *testing.T) {
	mem := storage.NewMemory()
	engine := schemes.NewBatchEngine(mem, nil)
	items := []*schemes.BatchItem{
		{Recipient: "A", AmountMicro: 100},
		{Recipient: "B", AmountMicro: 200},
	}
	if _, err := engine.Create("B1", "INIT", 250, schemes.BatchBestEffort, items); err != schemes.ErrBatchTotalMismatch {
		t.Fatalf("expected ErrBatchTotalMismatch, got %v", err)
	}
}

func TestBatchAtomicModeFailsAllPendingOnOneFailure(t *testing.T) {
	mem := storage.NewMemory()
	l := ledger.NewLedger(mem)
	engine := schemes.NewBatchEngine(mem, l)
	items := []*schemes.BatchItem{
		{Recipient: "A", AmountMicro: 100},
		{Recipient: "B", AmountMicro: 200},
		{Recipient: "C", AmountMicro: 300},
	}
	if _, err := engine.Create("B2", "INIT", 600, schemes.BatchAtomic, items); err != nil {
		t.Fatalf("create: %v", err)
	}

	batch, err := engine.UpdateItem("B2", "A", schemes.ItemFailed, "", time.Now())
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if batch.Status != schemes.BatchFailed {
		t.Fatalf("expected batch failed, got %s", batch.Status)
	}
	if batch.FailedCount != 3 {
		t.Fatalf("expected all three items failed in atomic mode, got %d", batch.FailedCount)
	}

	if _, err := engine.UpdateItem("B2", "B", schemes.ItemSuccess, "SIG", time.Now()); err != schemes.ErrBatchClosed {
		t.Fatalf("expected ErrBatchClosed after atomic failure, got %v", err)
	}
}

func TestBatchBestEffortPartialStatus(t *testing.T) {
	mem := storage.NewMemory()
	l := ledger.NewLedger(mem)
	engine := schemes.NewBatchEngine(mem, l)
	items := []*schemes.BatchItem{
		{Recipient: "A", AmountMicro: 100},
		{Recipient: "B", AmountMicro: 200},
	}
	if _, err := engine.Create("B3", "INIT", 300, schemes.BatchBestEffort, items); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.UpdateItem("B3", "A", schemes.ItemSuccess, "SIGA", time.Now()); err != nil {
		t.Fatalf("update A: %v", err)
	}
	batch, err := engine.UpdateItem("B3", "B", schemes.ItemFailed, "", time.Now())
	if err != nil {
		t.Fatalf("update B: %v", err)
	}
	if batch.Status != schemes.BatchPartial {
		t.Fatalf("expected partial status, got %s", batch.Status)
	}
	if batch.SuccessCount != 1 || batch.FailedCount != 1 {
		t.Fatalf("unexpected counts: success=%d failed=%d", batch.SuccessCount, batch.FailedCount)
	}
}
