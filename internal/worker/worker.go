package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/devarispbrown/gtsd-sub009/internal/clock"
	"github.com/devarispbrown/gtsd-sub009/internal/domain"
	"github.com/devarispbrown/gtsd-sub009/internal/gateway"
	"github.com/devarispbrown/gtsd-sub009/internal/ledger"
	"github.com/devarispbrown/gtsd-sub009/internal/queue"
	"github.com/devarispbrown/gtsd-sub009/internal/ratelimit"
	"github.com/devarispbrown/gtsd-sub009/internal/userstore"
)

// Worker is a single goroutine that continuously pulls delivery jobs from
// the queue, re-validates eligibility at delivery time, applies quiet hours
// and the idempotency guard, and sends through the gateway.
type Worker struct {
	id       int
	q        *queue.Queue
	users    userstore.UserStore
	ledger   ledger.Ledger
	gw       gateway.Client
	limiter  *ratelimit.SendLimiter
	clk      clock.Clock
	deepLink string
	logger   *zap.Logger

	// Metric hooks, injected by the pool so the worker stays metrics-agnostic.
	onSent   func(mt domain.MessageType, latency time.Duration)
	onFailed func(mt domain.MessageType)
	onNoop   func(mt domain.MessageType)
}

// NewWorker constructs a worker. The hook funcs are optional (nil = no-op).
func NewWorker(
	id int,
	q *queue.Queue,
	users userstore.UserStore,
	ldg ledger.Ledger,
	gw gateway.Client,
	limiter *ratelimit.SendLimiter,
	clk clock.Clock,
	deepLink string,
	logger *zap.Logger,
	onSent func(domain.MessageType, time.Duration),
	onFailed func(domain.MessageType),
	onNoop func(domain.MessageType),
) *Worker {
	if onSent == nil {
		onSent = func(domain.MessageType, time.Duration) {}
	}
	if onFailed == nil {
		onFailed = func(domain.MessageType) {}
	}
	if onNoop == nil {
		onNoop = func(domain.MessageType) {}
	}
	return &Worker{
		id: id, q: q, users: users, ledger: ldg, gw: gw,
		limiter: limiter, clk: clk, deepLink: deepLink, logger: logger,
		onSent: onSent, onFailed: onFailed, onNoop: onNoop,
	}
}

// Run blocks until ctx is cancelled, processing one job per iteration.
// A panic while processing is contained to that job; the loop continues.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("delivery worker started", zap.Int("id", w.id))
	for {
		job, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("delivery worker stopping", zap.Int("id", w.id))
			return
		}
		w.safeProcess(ctx, job)
	}
}

func (w *Worker) safeProcess(ctx context.Context, job domain.Job) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic while processing job",
				zap.String("job_id", job.ID), zap.Any("panic", r))
		}
	}()
	w.Process(ctx, job)
}

// Process handles one delivery job end to end. Exported so tests can drive
// delivery without the queue's channel plumbing.
func (w *Worker) Process(ctx context.Context, job domain.Job) {
	start := time.Now()
	log := w.logger.With(
		zap.String("job_id", job.ID),
		zap.String("user_id", job.UserID),
		zap.String("message_type", string(job.MessageType)),
	)

	// Delivery-time state wins over enqueue-time state: re-fetch the user.
	user, err := w.users.GetByID(ctx, job.UserID)
	if err != nil {
		// Leave the job leased; the lease lapses and the poller re-delivers.
		log.Error("failed to fetch user", zap.Error(err))
		return
	}

	// Opt-out, deactivation, or a phone change after enqueue cancels the
	// send. This holds for forced jobs too: force bypasses quiet hours,
	// never compliance.
	if !user.Sendable() {
		log.Info("user no longer sendable, completing as no-op")
		w.complete(ctx, job, log)
		w.onNoop(job.MessageType)
		return
	}

	loc, err := time.LoadLocation(user.Timezone)
	if err != nil {
		log.Warn("unknown timezone at delivery time, completing as no-op",
			zap.String("timezone", user.Timezone))
		w.complete(ctx, job, log)
		return
	}

	local := w.clk.Now().In(loc)
	if !job.Force && domain.InQuietHours(local) {
		wakeAt := domain.NextQuietHoursEnd(local)
		log.Info("quiet hours, deferring", zap.Time("wake_at", wakeAt))
		if err := w.q.Defer(ctx, &job, wakeAt); err != nil {
			log.Error("failed to defer job", zap.Error(err))
		}
		return
	}

	rec, won, err := w.ledger.InsertQueued(ctx, user.ID, job.MessageType, job.LocalDay)
	if err != nil {
		log.Error("ledger insert", zap.Error(err))
		return
	}
	if !won && !job.SkipIdempotency && rec.Status != domain.SendQueued {
		// A sent or delivered record already exists for the key: done.
		// Not an error; the job completes silently.
		log.Info("send already recorded for this day, completing as no-op",
			zap.String("record_status", string(rec.Status)))
		w.complete(ctx, job, log)
		w.onNoop(job.MessageType)
		return
	}
	// A queued record that we did not create is this job's own earlier
	// attempt (transient failure, crash before ack): resume it.

	body := BuildBody(job.MessageType, w.deepLink, user.ID)

	// Block until the gateway rate limiter grants a token.
	if err := w.limiter.Wait(ctx); err != nil {
		// ctx cancelled while waiting; worker is shutting down. The lease
		// lapses and the job is re-delivered.
		return
	}

	result, err := w.gw.Send(ctx, *user.PhoneNumber, body)
	if err != nil {
		w.handleSendFailure(ctx, job, rec, err, log)
		return
	}

	if err := w.ledger.MarkSent(ctx, rec.ID, result.ProviderMessageID); err != nil {
		log.Error("failed to mark record sent", zap.Error(err))
		return
	}
	w.complete(ctx, job, log)

	elapsed := time.Since(start)
	w.onSent(job.MessageType, elapsed)
	log.Info("reminder sent",
		zap.String("provider_message_id", result.ProviderMessageID),
		zap.Duration("latency", elapsed),
	)
}

// handleSendFailure applies the error taxonomy: terminal failures are
// recorded and the job completes (no retry); transient failures go back
// through the queue's backoff schedule and are recorded as failed only once
// attempts are exhausted.
func (w *Worker) handleSendFailure(ctx context.Context, job domain.Job, rec *domain.SendRecord, sendErr error, log *zap.Logger) {
	if domain.IsTerminal(sendErr) {
		log.Warn("permanent delivery failure", zap.Error(sendErr))
		if err := w.ledger.MarkFailed(ctx, rec.ID, sendErr.Error()); err != nil {
			log.Error("failed to mark record failed", zap.Error(err))
		}
		w.complete(ctx, job, log)
		w.onFailed(job.MessageType)
		return
	}

	log.Warn("transient delivery failure",
		zap.Error(sendErr),
		zap.Int("attempt", job.Attempt),
	)
	dead, err := w.q.Fail(ctx, &job, sendErr.Error())
	if err != nil {
		log.Error("failed to schedule retry", zap.Error(err))
		return
	}
	if dead {
		// Retries exhausted: the transient failure is now fatal.
		if err := w.ledger.MarkFailed(ctx, rec.ID, sendErr.Error()); err != nil {
			log.Error("failed to mark record failed", zap.Error(err))
		}
		w.onFailed(job.MessageType)
	}
}

func (w *Worker) complete(ctx context.Context, job domain.Job, log *zap.Logger) {
	if err := w.q.Complete(ctx, job.ID); err != nil {
		log.Error("failed to complete job", zap.Error(err))
	}
}
