package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devarispbrown/gtsd-sub009/internal/clock"
	"github.com/devarispbrown/gtsd-sub009/internal/domain"
)

// Options configures queue behaviour. Zero values are replaced by defaults
// matching the production configuration.
type Options struct {
	PollInterval  time.Duration
	SweepInterval time.Duration
	LeaseTTL      time.Duration
	MaxAttempts   int
	Backoff       []time.Duration
	DoneRetention time.Duration
	DeadRetention time.Duration
	Buffer        int
	ClaimBatch    int
}

func (o *Options) fillDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Hour
	}
	if o.LeaseTTL <= 0 {
		o.LeaseTTL = 2 * time.Minute
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if len(o.Backoff) == 0 {
		o.Backoff = []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute}
	}
	if o.DoneRetention <= 0 {
		o.DoneRetention = 24 * time.Hour
	}
	if o.DeadRetention <= 0 {
		o.DeadRetention = 7 * 24 * time.Hour
	}
	if o.Buffer <= 0 {
		o.Buffer = 256
	}
	if o.ClaimBatch <= 0 {
		o.ClaimBatch = 100
	}
}

// Queue is the durable at-least-once delivery queue. Producers insert job
// rows; the poller claims due rows and hands them to workers over a buffered
// channel. Because rows, not channel entries, are authoritative, a process
// crash loses nothing: leases lapse and the poller re-claims the rows.
type Queue struct {
	store  Store
	ch     chan domain.Job
	opts   Options
	clk    clock.Clock
	logger *zap.Logger
}

func New(store Store, clk clock.Clock, logger *zap.Logger, opts Options) *Queue {
	opts.fillDefaults()
	return &Queue{
		store:  store,
		ch:     make(chan domain.Job, opts.Buffer),
		opts:   opts,
		clk:    clk,
		logger: logger,
	}
}

// Enqueue inserts a pending job for the key. The bool reports whether a new
// job was created; false means a live job already exists (overlapping
// scanner ticks, or a manual trigger racing the scanner) and the call is an
// idempotent no-op.
func (q *Queue) Enqueue(ctx context.Context, userID string, mt domain.MessageType, localDay string, force, skipIdempotency bool, runAt time.Time) (*domain.Job, bool, error) {
	now := q.clk.Now().UTC()
	job := &domain.Job{
		ID:              uuid.New().String(),
		UserID:          userID,
		MessageType:     mt,
		LocalDay:        localDay,
		Force:           force,
		SkipIdempotency: skipIdempotency,
		MaxAttempts:     q.opts.MaxAttempts,
		Status:          domain.JobPending,
		RunAt:           runAt,
		EnqueuedAt:      now,
		UpdatedAt:       now,
	}

	created, err := q.store.Insert(ctx, job)
	if err != nil {
		return nil, false, err
	}
	return job, created, nil
}

// Dequeue blocks until a claimed job is available or ctx is cancelled.
// Returns (Job{}, false) on cancellation (graceful shutdown signal).
func (q *Queue) Dequeue(ctx context.Context) (domain.Job, bool) {
	select {
	case job := <-q.ch:
		return job, true
	case <-ctx.Done():
		return domain.Job{}, false
	}
}

// Complete marks the job done. Done rows are retained for the configured
// window (default 24h) for audit, then swept.
func (q *Queue) Complete(ctx context.Context, jobID string) error {
	return q.store.Complete(ctx, jobID)
}

// Fail records a failed attempt. If attempts remain, the job goes back to
// pending with the next backoff delay; otherwise it moves to dead, where it
// is retained for the configured window (default 7d) for inspection.
// The returned bool reports whether the job is now dead.
func (q *Queue) Fail(ctx context.Context, job *domain.Job, errDetail string) (bool, error) {
	next := job.Attempt + 1
	if next >= job.MaxAttempts {
		return true, q.store.MarkDead(ctx, job.ID, errDetail)
	}

	idx := job.Attempt
	if idx >= len(q.opts.Backoff) {
		idx = len(q.opts.Backoff) - 1
	}
	runAt := q.clk.Now().UTC().Add(q.opts.Backoff[idx])
	return false, q.store.RetryAt(ctx, job.ID, next, runAt, errDetail)
}

// Defer reschedules the job to runAt without consuming a retry attempt.
// Used for quiet-hours deferrals, which are not failures.
func (q *Queue) Defer(ctx context.Context, job *domain.Job, runAt time.Time) error {
	return q.store.Reschedule(ctx, job.ID, runAt.UTC())
}

// RunPoller ticks every poll interval and moves due jobs from the store to
// the handoff channel. Stops cleanly when ctx is cancelled.
func (q *Queue) RunPoller(ctx context.Context) {
	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	q.logger.Info("queue poller started", zap.Duration("interval", q.opts.PollInterval))

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("queue poller stopping")
			return
		case <-ticker.C:
			q.Poll(ctx)
		}
	}
}

// Poll claims one batch of due jobs and pushes them to the channel.
// Exported so tests can drive the queue without real tickers.
func (q *Queue) Poll(ctx context.Context) {
	jobs, err := q.store.ClaimDue(ctx, q.clk.Now().UTC(), q.opts.LeaseTTL, q.opts.ClaimBatch)
	if err != nil {
		q.logger.Error("claim due jobs", zap.Error(err))
		return
	}

	for _, job := range jobs {
		select {
		case q.ch <- *job:
		default:
			// Channel full: release the lease so the row is re-claimed on
			// a later tick instead of waiting for lease expiry.
			if err := q.store.Release(ctx, job.ID); err != nil {
				q.logger.Error("release job after full channel", zap.String("job_id", job.ID), zap.Error(err))
			}
		}
	}

	if len(jobs) > 0 {
		q.logger.Debug("claimed due jobs", zap.Int("count", len(jobs)))
	}
}

// RunSweeper ticks every sweep interval and enforces the retention windows.
func (q *Queue) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(q.opts.SweepInterval)
	defer ticker.Stop()

	q.logger.Info("queue sweeper started", zap.Duration("interval", q.opts.SweepInterval))

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("queue sweeper stopping")
			return
		case <-ticker.C:
			now := q.clk.Now().UTC()
			removed, err := q.store.Sweep(ctx, now.Add(-q.opts.DoneRetention), now.Add(-q.opts.DeadRetention))
			if err != nil {
				q.logger.Error("sweep jobs", zap.Error(err))
				continue
			}
			if removed > 0 {
				q.logger.Info("swept expired jobs", zap.Int64("count", removed))
			}
		}
	}
}

// Depths reports the number of active rows in the store and jobs buffered
// in the handoff channel. Used by the metrics snapshot handler.
func (q *Queue) Depths(ctx context.Context) (active, buffered int, err error) {
	active, err = q.store.CountActive(ctx)
	return active, len(q.ch), err
}
