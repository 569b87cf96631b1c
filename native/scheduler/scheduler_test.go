package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsJobOnInterval(t *testing.T) {
	var runs int32
	job := Job{
		Name:     "test-job",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		},
	}
	s := New(nil, []Job{job})

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	if got := atomic.LoadInt32(&runs); got < 2 {
		t.Fatalf("expected at least 2 runs in 55ms on a 10ms interval, got %d", got)
	}
}

func TestSchedulerSkipsOverlappingRun(t *testing.T) {
	var concurrent int32
	var maxConcurrent int32
	job := Job{
		Name:     "slow-job",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			n := atomic.AddInt32(&concurrent, 1)
			if n > atomic.LoadInt32(&maxConcurrent) {
				atomic.StoreInt32(&maxConcurrent, n)
			}
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt32(&concurrent, -1)
			return nil
		},
	}
	s := New(nil, []Job{job})

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	if got := atomic.LoadInt32(&maxConcurrent); got > 1 {
		t.Fatalf("expected no overlapping runs, saw max concurrency %d", got)
	}
}

func TestSchedulerDropsMalformedJobs(t *testing.T) {
	s := New(nil, []Job{{Name: "no-interval", Run: func(ctx context.Context) error { return nil }}})
	if len(s.jobs) != 0 {
		t.Fatalf("expected malformed job to be dropped, got %d jobs", len(s.jobs))
	}
}

func TestSchedulerRecoversPanic(t *testing.T) {
	job := Job{
		Name:     "panics",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			panic("boom")
		},
	}
	err := runRecovered(context.Background(), job)
	if err == nil {
		t.Fatal("expected an error recovered from the panic")
	}
}
