// Package trigger implements the manual-send operation used for
// operational testing. It shares the scanner's guards: a forced trigger
// bypasses quiet hours at delivery time, but still passes the idempotency
// guard unless skipIdempotency is set explicitly.
package trigger

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

// Service coordinates the user store, ledger, and queue for manual sends.
// HTTP handlers depend on this service, not on the stores directly.
type Service struct {
	users  userstore.UserStore
	ledger ledger.Ledger
	q      *queue.Queue
	clk    clock.Clock
	logger *zap.Logger
}

func New(
	users userstore.UserStore,
	ldg ledger.Ledger,
	q *queue.Queue,
	clk clock.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{users: users, ledger: ldg, q: q, clk: clk, logger: logger}
}

// Trigger enqueues an immediate delivery job for the user.
func (s *Service) Trigger(ctx context.Context, userID string, mt domain.MessageType, force, skipIdempotency bool) (*domain.Job, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	if !mt.IsValid() {
		return nil, domain.ErrInvalidMessage
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(user.Timezone)
	if err != nil {
		return nil, domain.ErrUnknownTimezone
	}

	now := s.clk.Now()
	day := domain.LocalDayKey(now, loc)

	if !skipIdempotency {
		sent, err := s.ledger.HasNonFailed(ctx, userID, mt, day)
		if err != nil {
			return nil, err
		}
		if sent {
			return nil, domain.ErrAlreadySent
		}
	}

	job, created, err := s.q.Enqueue(ctx, userID, mt, day, force, skipIdempotency, now)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, domain.ErrAlreadyQueued
	}

	s.logger.Info("manual trigger enqueued",
		zap.String("user_id", userID),
		zap.String("message_type", string(mt)),
		zap.Bool("force", force),
		zap.Bool("skip_idempotency", skipIdempotency),
	)
	return job, nil
}
