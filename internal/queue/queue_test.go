package queue

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/devarispbrown/gtsd-sub009/internal/clock"
	"github.com/devarispbrown/gtsd-sub009/internal/domain"
)

func newTestQueue(clk clock.Clock) (*Queue, *MockStore) {
	store := NewMockStore()
	q := New(store, clk, zap.NewNop(), Options{
		MaxAttempts: 3,
		Backoff:     []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute},
		LeaseTTL:    2 * time.Minute,
	})
	return q, store
}

func TestQueue_Enqueue_DeduplicatesLiveJobs(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 2, 11, 16, 0, 0, time.UTC))
	q, _ := newTestQueue(clk)
	ctx := context.Background()

	_, created, err := q.Enqueue(ctx, "u1", domain.MessageMorningNudge, "2026-03-02", false, false, clk.Now())
	if err != nil || !created {
		t.Fatalf("first enqueue: created=%v err=%v", created, err)
	}

	// A second enqueue for the same key (overlapping scanner tick) is a no-op.
	_, created, err = q.Enqueue(ctx, "u1", domain.MessageMorningNudge, "2026-03-02", false, false, clk.Now())
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if created {
		t.Fatal("expected duplicate enqueue to be suppressed")
	}

	// A different message type on the same day is a separate key.
	_, created, err = q.Enqueue(ctx, "u1", domain.MessageEveningReminder, "2026-03-02", false, false, clk.Now())
	if err != nil || !created {
		t.Fatalf("evening enqueue: created=%v err=%v", created, err)
	}
}

func TestQueue_PollDeliversDueJobs(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 2, 11, 16, 0, 0, time.UTC))
	q, _ := newTestQueue(clk)
	ctx := context.Background()

	job, _, err := q.Enqueue(ctx, "u1", domain.MessageMorningNudge, "2026-03-02", false, false, clk.Now())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Future job must not be claimed.
	if _, _, err := q.Enqueue(ctx, "u2", domain.MessageMorningNudge, "2026-03-02", false, false, clk.Now().Add(time.Hour)); err != nil {
		t.Fatalf("enqueue future: %v", err)
	}

	q.Poll(ctx)

	got, ok := q.Dequeue(ctx)
	if !ok {
		t.Fatal("expected a job from the channel")
	}
	if got.ID != job.ID {
		t.Fatalf("expected job %s, got %s", job.ID, got.ID)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, ok := q.Dequeue(cancelled); ok {
		t.Fatal("expected no second job: the future one is not due")
	}
}

func TestQueue_ExpiredLeaseIsReclaimed(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 2, 11, 16, 0, 0, time.UTC))
	q, store := newTestQueue(clk)
	ctx := context.Background()

	job, _, err := q.Enqueue(ctx, "u1", domain.MessageMorningNudge, "2026-03-02", false, false, clk.Now())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// First claim leases the job; the worker then "crashes" (never acks).
	q.Poll(ctx)
	if _, ok := q.Dequeue(ctx); !ok {
		t.Fatal("expected first delivery")
	}

	// Before lease expiry the job must not be claimed again.
	q.Poll(ctx)
	select {
	case j := <-q.ch:
		t.Fatalf("job %s claimed twice within its lease", j.ID)
	default:
	}

	clk.Advance(3 * time.Minute)
	q.Poll(ctx)
	got, ok := q.Dequeue(ctx)
	if !ok || got.ID != job.ID {
		t.Fatalf("expected job to be re-claimed after lease expiry, ok=%v", ok)
	}

	if stored, _ := store.Get(job.ID); stored.Status != domain.JobLeased {
		t.Fatalf("expected status leased, got %s", stored.Status)
	}
}

func TestQueue_FailSchedulesBackoffThenDeadletters(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 2, 11, 16, 0, 0, time.UTC))
	q, store := newTestQueue(clk)
	ctx := context.Background()

	job, _, err := q.Enqueue(ctx, "u1", domain.MessageMorningNudge, "2026-03-02", false, false, clk.Now())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Attempt 0 fails: first retry after 1 minute.
	dead, err := q.Fail(ctx, job, "503 from gateway")
	if err != nil || dead {
		t.Fatalf("first failure: dead=%v err=%v", dead, err)
	}
	stored, _ := store.Get(job.ID)
	if stored.Attempt != 1 {
		t.Fatalf("expected attempt=1, got %d", stored.Attempt)
	}
	if want := clk.Now().UTC().Add(time.Minute); !stored.RunAt.Equal(want) {
		t.Fatalf("expected run_at %s, got %s", want, stored.RunAt)
	}

	// Attempt 1 fails: second retry after 2 minutes (doubling).
	dead, err = q.Fail(ctx, stored, "503 from gateway")
	if err != nil || dead {
		t.Fatalf("second failure: dead=%v err=%v", dead, err)
	}
	stored, _ = store.Get(job.ID)
	if want := clk.Now().UTC().Add(2 * time.Minute); !stored.RunAt.Equal(want) {
		t.Fatalf("expected run_at %s, got %s", want, stored.RunAt)
	}

	// Attempt 2 is the third and final attempt: dead-letter.
	dead, err = q.Fail(ctx, stored, "503 from gateway")
	if err != nil || !dead {
		t.Fatalf("third failure: dead=%v err=%v", dead, err)
	}
	stored, _ = store.Get(job.ID)
	if stored.Status != domain.JobDead {
		t.Fatalf("expected status dead, got %s", stored.Status)
	}
	if stored.ErrorDetail == nil || *stored.ErrorDetail != "503 from gateway" {
		t.Fatal("expected error detail on dead job")
	}
}

func TestQueue_DeferDoesNotConsumeAttempt(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC))
	q, store := newTestQueue(clk)
	ctx := context.Background()

	job, _, err := q.Enqueue(ctx, "u1", domain.MessageEveningReminder, "2026-03-01", false, false, clk.Now())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	wakeAt := clk.Now().Add(4 * time.Hour)
	if err := q.Defer(ctx, job, wakeAt); err != nil {
		t.Fatalf("defer: %v", err)
	}

	stored, _ := store.Get(job.ID)
	if stored.Attempt != 0 {
		t.Fatalf("defer must not consume an attempt, got %d", stored.Attempt)
	}
	if !stored.RunAt.Equal(wakeAt.UTC()) {
		t.Fatalf("expected run_at %s, got %s", wakeAt.UTC(), stored.RunAt)
	}
}

func TestQueue_SweepHonorsRetentionWindows(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	store := NewMockStore()
	q := New(store, clk, zap.NewNop(), Options{
		DoneRetention: 24 * time.Hour,
		DeadRetention: 7 * 24 * time.Hour,
	})
	ctx := context.Background()

	doneJob, _, _ := q.Enqueue(ctx, "u1", domain.MessageMorningNudge, "2026-03-02", false, false, clk.Now())
	deadJob, _, _ := q.Enqueue(ctx, "u2", domain.MessageMorningNudge, "2026-03-02", false, false, clk.Now())
	_ = store.Complete(ctx, doneJob.ID)
	_ = store.MarkDead(ctx, deadJob.ID, "exhausted")

	// Inside both windows: nothing to sweep.
	now := clk.Now().UTC()
	removed, err := store.Sweep(ctx, now.Add(-24*time.Hour), now.Add(-7*24*time.Hour))
	if err != nil || removed != 0 {
		t.Fatalf("expected no sweep, removed=%d err=%v", removed, err)
	}

	// Two days later the done job ages out; the dead job stays.
	now = now.Add(48 * time.Hour)
	removed, err = store.Sweep(ctx, now.Add(-24*time.Hour), now.Add(-7*24*time.Hour))
	if err != nil || removed != 1 {
		t.Fatalf("expected done job swept, removed=%d err=%v", removed, err)
	}
	if _, ok := store.Get(deadJob.ID); !ok {
		t.Fatal("dead job must survive the 24h window")
	}

	// Past the 7d window the dead job goes too.
	now = now.Add(8 * 24 * time.Hour)
	removed, err = store.Sweep(ctx, now.Add(-24*time.Hour), now.Add(-7*24*time.Hour))
	if err != nil || removed != 1 {
		t.Fatalf("expected dead job swept, removed=%d err=%v", removed, err)
	}
}
