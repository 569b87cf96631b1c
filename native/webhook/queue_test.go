package webhook_test

import (
	"context"
	"testing"
	"time"

	"trustmesh/native/webhook"
)

func TestQueueDeliversToMatchingSubscriptionsOnly(t *testing.T) {
	q := webhook.NewQueue()
	subs := []*webhook.Subscription{
		{ID: "s1", URL: "http://example.com/a", EventTypes: map[string]bool{"tier_change": true}},
		{ID: "s2", URL: "http://example.com/b", EventTypes: map[string]bool{"alert": true}},
	}
	q.Enqueue(webhook.Event{Type: "tier_change", Subject: "agent-1", CreatedAt: time.Now()}, subs)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	task, ok := q.Dequeue(ctx)
	if !ok {
		t.Fatal("expected a task")
	}
	if task.Subscription.ID != "s1" {
		t.Fatalf("expected delivery to s1, got %s", task.Subscription.ID)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel2()
	if _, ok := q.Dequeue(ctx2); ok {
		t.Fatal("expected no further deliverable tasks")
	}
}

func TestQueueEvictsExpiredTasks(t *testing.T) {
	now := time.Now()
	q := webhook.NewQueue(webhook.WithTTL(time.Minute), webhook.WithClock(func() time.Time { return now }))
	subs := []*webhook.Subscription{{ID: "s1", EventTypes: map[string]bool{"alert": true}}}
	q.Enqueue(webhook.Event{Type: "alert", Subject: "agent-2", CreatedAt: now}, subs)

	now = now.Add(2 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, ok := q.Dequeue(ctx); ok {
		t.Fatal("expected the expired task to be evicted")
	}
}
