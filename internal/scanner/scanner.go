package scanner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/devarispbrown/gtsd-sub009/internal/clock"
	"github.com/devarispbrown/gtsd-sub009/internal/domain"
	"github.com/devarispbrown/gtsd-sub009/internal/ledger"
	"github.com/devarispbrown/gtsd-sub009/internal/queue"
	"github.com/devarispbrown/gtsd-sub009/internal/userstore"
)

// Scanner periodically decides, per user and per message type, whether a
// reminder is due in the user's local timezone and enqueues a delivery job
// when it is.
//
// Correctness does not depend on tick timing: the due check is ">= send
// time" rather than "== send time", so a delayed or skipped tick still
// produces the send once ticks resume, and the ledger plus the queue's
// live-job uniqueness make overlapping ticks produce at most one job per
// (user, message type, local day).
type Scanner struct {
	users    userstore.UserStore
	ledger   ledger.Ledger
	q        *queue.Queue
	clk      clock.Clock
	interval time.Duration
	logger   *zap.Logger
}

func New(
	users userstore.UserStore,
	ldg ledger.Ledger,
	q *queue.Queue,
	clk clock.Clock,
	interval time.Duration,
	logger *zap.Logger,
) *Scanner {
	return &Scanner{users: users, ledger: ldg, q: q, clk: clk, interval: interval, logger: logger}
}

// Run ticks every interval and scans all eligible users.
// Stops cleanly when ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("eligibility scanner started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("eligibility scanner stopping")
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan performs one eligibility pass. Exported so tests can drive ticks
// directly against a fake clock.
func (s *Scanner) Scan(ctx context.Context) {
	now := s.clk.Now()

	users, err := s.users.ListEligible(ctx)
	if err != nil {
		s.logger.Error("list eligible users", zap.Error(err))
		return
	}

	enqueued := 0
	for _, u := range users {
		enqueued += s.scanUser(ctx, u, now)
	}

	if enqueued > 0 {
		s.logger.Info("scan complete", zap.Int("users", len(users)), zap.Int("enqueued", enqueued))
	}
}

func (s *Scanner) scanUser(ctx context.Context, u *domain.User, now time.Time) int {
	log := s.logger.With(zap.String("user_id", u.ID))

	if u.PhoneNumber == nil || !domain.ValidPhone(*u.PhoneNumber) {
		// Malformed number: drop and log, no ledger write, no retry.
		log.Warn("skipping user with invalid phone number")
		return 0
	}

	// Authoritative timezone rules, never a fixed offset: local time and
	// the day key stay correct through DST transitions.
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		log.Warn("skipping user with unknown timezone", zap.String("timezone", u.Timezone))
		return 0
	}
	local := now.In(loc)
	day := domain.LocalDayKey(now, loc)

	enqueued := 0
	for _, mt := range []domain.MessageType{domain.MessageMorningNudge, domain.MessageEveningReminder} {
		if !domain.DueAt(mt, local) {
			continue
		}

		if mt == domain.MessageEveningReminder {
			start, end := domain.DayWindow(now, loc)
			count, err := s.users.PendingTaskCount(ctx, u.ID, start, end)
			if err != nil {
				log.Error("pending task count", zap.Error(err))
				continue
			}
			if count == 0 {
				continue
			}
		}

		sent, err := s.ledger.HasNonFailed(ctx, u.ID, mt, day)
		if err != nil {
			log.Error("ledger check", zap.Error(err))
			continue
		}
		if sent {
			continue
		}

		_, created, err := s.q.Enqueue(ctx, u.ID, mt, day, false, false, now)
		if err != nil {
			log.Error("enqueue job", zap.String("message_type", string(mt)), zap.Error(err))
			continue
		}
		if created {
			enqueued++
			log.Info("enqueued reminder",
				zap.String("message_type", string(mt)),
				zap.String("local_day", day),
			)
		}
	}
	return enqueued
}
