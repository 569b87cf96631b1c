package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"trustmesh/native/common"
)

func TestProcessorDispatchesAndCaches(t *testing.T) {
	store := NewMemoryStore()
	p := NewProcessor(store, 1000, 1000)
	calls := 0
	p.Register(KindVoteSubmit, func(ctx context.Context, req Request) (Result, error) {
		calls++
		return Result{Status: 200, Payload: []byte(`{"ok":true}`)}, nil
	})

	req := Request{Kind: KindVoteSubmit, APIKey: "k1", IdempotencyKey: "idem-1", Body: []byte(`{"a":1}`), ReceivedAt: time.Now()}

	res1, err := p.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	res2, err := p.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process replay: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if string(res1.Payload) != string(res2.Payload) {
		t.Fatalf("expected identical cached payload on replay")
	}
	if len(store.AuditTrail()) != 2 {
		t.Fatalf("expected an audit entry per request, got %d", len(store.AuditTrail()))
	}
}

func TestProcessorRejectsMissingIdempotencyKey(t *testing.T) {
	p := NewProcessor(NewMemoryStore(), 1000, 1000)
	p.Register(KindVoteSubmit, func(ctx context.Context, req Request) (Result, error) {
		return Result{Status: 200}, nil
	})
	_, err := p.Process(context.Background(), Request{Kind: KindVoteSubmit, ReceivedAt: time.Now()})
	if err != ErrMissingIdempotencyKey {
		t.Fatalf("expected ErrMissingIdempotencyKey, got %v", err)
	}
}

func TestProcessorDetectsIdempotencyMismatch(t *testing.T) {
	store := NewMemoryStore()
	p := NewProcessor(store, 1000, 1000)
	p.Register(KindVoteSubmit, func(ctx context.Context, req Request) (Result, error) {
		return Result{Status: 200, Payload: []byte(`{}`)}, nil
	})

	req1 := Request{Kind: KindVoteSubmit, APIKey: "k1", IdempotencyKey: "idem-1", Body: []byte(`{"a":1}`), ReceivedAt: time.Now()}
	req2 := req1
	req2.Body = []byte(`{"a":2}`)

	if _, err := p.Process(context.Background(), req1); err != nil {
		t.Fatalf("process req1: %v", err)
	}
	if _, err := p.Process(context.Background(), req2); err != ErrIdempotencyMismatch {
		t.Fatalf("expected ErrIdempotencyMismatch, got %v", err)
	}
}

func TestProcessorEnforcesRateLimit(t *testing.T) {
	p := NewProcessor(NewMemoryStore(), 0, 1)
	p.Register(KindVoteSubmit, func(ctx context.Context, req Request) (Result, error) {
		return Result{Status: 200}, nil
	})
	req := Request{Kind: KindVoteSubmit, APIKey: "k1", IdempotencyKey: "idem-1", ReceivedAt: time.Now()}
	if _, err := p.Process(context.Background(), req); err != nil {
		t.Fatalf("first request should consume the burst: %v", err)
	}
	req.IdempotencyKey = "idem-2"
	if _, err := p.Process(context.Background(), req); err != ErrRateLimited {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestProcessorRejectsUnknownKind(t *testing.T) {
	p := NewProcessor(NewMemoryStore(), 1000, 1000)
	req := Request{Kind: Kind("bogus"), APIKey: "k1", IdempotencyKey: "idem-1", ReceivedAt: time.Now()}
	if _, err := p.Process(context.Background(), req); err == nil {
		t.Fatal("expected an error for an unregistered kind")
	}
}

func TestProcessorEnforcesPerKeyQuotaIndependentlyOfRateLimiter(t *testing.T) {
	p := NewProcessor(NewMemoryStore(), 1000, 1000)
	p.SetQuota(1)
	p.Register(KindVoteSubmit, func(ctx context.Context, req Request) (Result, error) {
		return Result{Status: 200}, nil
	})

	req := Request{Kind: KindVoteSubmit, APIKey: "k1", IdempotencyKey: "idem-1", ReceivedAt: time.Now()}
	if _, err := p.Process(context.Background(), req); err != nil {
		t.Fatalf("first request should fit the quota: %v", err)
	}
	req.IdempotencyKey = "idem-2"
	if _, err := p.Process(context.Background(), req); err == nil {
		t.Fatal("expected quota to reject the second request from the same key")
	}

	other := Request{Kind: KindVoteSubmit, APIKey: "k2", IdempotencyKey: "idem-1", ReceivedAt: time.Now()}
	if _, err := p.Process(context.Background(), other); err != nil {
		t.Fatalf("a different API key should have its own quota: %v", err)
	}
}

func TestProcessorRejectsPausedKind(t *testing.T) {
	p := NewProcessor(NewMemoryStore(), 1000, 1000)
	pauses := common.NewPauseRegistry()
	p.SetPauseRegistry(pauses)
	p.Register(KindVoteSubmit, func(ctx context.Context, req Request) (Result, error) {
		return Result{Status: 200}, nil
	})
	p.Register(KindPaymentEvent, func(ctx context.Context, req Request) (Result, error) {
		return Result{Status: 200}, nil
	})

	pauses.SetPaused(string(KindVoteSubmit), true)

	voteReq := Request{Kind: KindVoteSubmit, APIKey: "k1", IdempotencyKey: "idem-1", ReceivedAt: time.Now()}
	if _, err := p.Process(context.Background(), voteReq); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused for paused kind, got %v", err)
	}

	paymentReq := Request{Kind: KindPaymentEvent, APIKey: "k1", IdempotencyKey: "idem-2", ReceivedAt: time.Now()}
	if _, err := p.Process(context.Background(), paymentReq); err != nil {
		t.Fatalf("expected unpaused kind to still process, got %v", err)
	}

	pauses.SetPaused(string(KindVoteSubmit), false)
	voteReq.IdempotencyKey = "idem-3"
	if _, err := p.Process(context.Background(), voteReq); err != nil {
		t.Fatalf("expected resumed kind to process, got %v", err)
	}
}

func TestProcessorSkipsQuotaWhenUnset(t *testing.T) {
	p := NewProcessor(NewMemoryStore(), 1000, 1000)
	p.Register(KindVoteSubmit, func(ctx context.Context, req Request) (Result, error) {
		return Result{Status: 200}, nil
	})
	for i := 0; i < 5; i++ {
		req := Request{Kind: KindVoteSubmit, APIKey: "k1", IdempotencyKey: string(rune('a' + i)), ReceivedAt: time.Now()}
		if _, err := p.Process(context.Background(), req); err != nil {
			t.Fatalf("request %d: unexpected error with no quota configured: %v", i, err)
		}
	}
}
