package queue

import (
	"context"
	"time"

	"github.com/devarispbrown/gtsd-sub009/internal/domain"
)

// Store is the durable backing of the job queue. Job rows are the source of
// truth; the in-process channel only carries claimed copies. The pgx
// implementation is in pg_store.go; tests use MockStore.
type Store interface {
	// Insert persists a new pending job. The bool reports whether a row was
	// created; false means a live (pending/leased) job already exists for
	// the same (user, message type, local day) and the insert was a no-op.
	Insert(ctx context.Context, job *domain.Job) (bool, error)

	// ClaimDue atomically leases up to limit due jobs: pending rows whose
	// run_at has passed, plus leased rows whose lease expired (a worker
	// crashed mid-flight). Claimed rows carry a fresh lease until
	// now+leaseTTL.
	ClaimDue(ctx context.Context, now time.Time, leaseTTL time.Duration, limit int) ([]*domain.Job, error)

	// Release returns a claimed job to pending without touching its attempt
	// counter (used when the handoff channel is full).
	Release(ctx context.Context, jobID string) error

	Complete(ctx context.Context, jobID string) error

	// RetryAt moves a failed job back to pending with an incremented
	// attempt counter and a future run_at.
	RetryAt(ctx context.Context, jobID string, attempt int, runAt time.Time, errDetail string) error

	// Reschedule defers a job to runAt without consuming an attempt
	// (quiet-hours deferral).
	Reschedule(ctx context.Context, jobID string, runAt time.Time) error

	MarkDead(ctx context.Context, jobID string, errDetail string) error

	// Sweep deletes done jobs updated before doneBefore and dead jobs
	// updated before deadBefore, returning the number of rows removed.
	Sweep(ctx context.Context, doneBefore, deadBefore time.Time) (int64, error)

	// CountActive returns the number of pending and leased jobs.
	CountActive(ctx context.Context) (int, error)
}
