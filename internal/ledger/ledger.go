package ledger

import (
	"context"

	"github.com/devarispbrown/gtsd-sub009/internal/domain"
)

// Ledger is the durable send-attempt log. It doubles as the idempotency
// guard: a partial unique index over (user, message type, local day) for
// non-failed rows means InsertQueued can have at most one winner per day,
// no matter how many scanners or workers race on the same key.
//
// The pgx implementation is in pg_ledger.go. Tests use a hand-written mock
// (mock_ledger.go).
type Ledger interface {
	// InsertQueued writes a status=queued record for the key. The bool
	// reports whether this call created the row; false means a non-failed
	// record already existed and is returned instead.
	InsertQueued(ctx context.Context, userID string, mt domain.MessageType, localDay string) (*domain.SendRecord, bool, error)

	// HasNonFailed reports whether a queued/sent/delivered record exists
	// for the key. Scanner-side guard; the worker relies on InsertQueued.
	HasNonFailed(ctx context.Context, userID string, mt domain.MessageType, localDay string) (bool, error)

	MarkSent(ctx context.Context, id string, providerMessageID string) error
	MarkFailed(ctx context.Context, id string, errDetail string) error

	// UpdateStatusByProviderID applies a delivery-status callback.
	// Callbacks can arrive out of order; the status only moves forward
	// through queued -> sent -> delivered/failed, so a stale callback is
	// a no-op. Returns domain.ErrNotFound when no record carries the
	// provider id.
	UpdateStatusByProviderID(ctx context.Context, providerMessageID string, status domain.SendStatus) error

	GetByID(ctx context.Context, id string) (*domain.SendRecord, error)
}

// statusRank orders the delivery lifecycle for callback application.
// queued < sent < delivered/failed; terminal states never replace each
// other.
func statusRank(s domain.SendStatus) int {
	switch s {
	case domain.SendQueued:
		return 0
	case domain.SendSent:
		return 1
	default:
		return 2
	}
}
