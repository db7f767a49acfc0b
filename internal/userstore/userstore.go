package userstore

import (
	"context"
	"time"

	"github.com/devarispbrown/gtsd-sub009/internal/domain"
)

// UserStore is the read side of the main application's user and task data,
// plus the single mutation this subsystem owns: the SMS opt-in flag.
// The pgx implementation is in pg_userstore.go; tests use MockUserStore.
type UserStore interface {
	// ListEligible returns active, opted-in users with a phone number on file.
	ListEligible(ctx context.Context) ([]*domain.User, error)

	GetByID(ctx context.Context, id string) (*domain.User, error)

	// SetOptInByPhone updates sms_opt_in for the user owning the phone
	// number, taking a row-level lock so a concurrent scanner read cannot
	// interleave with the flag flip. Returns domain.ErrNotFound when no
	// user owns the number.
	SetOptInByPhone(ctx context.Context, phoneNumber string, optIn bool) error

	// PendingTaskCount counts the user's open tasks due inside [from, to).
	PendingTaskCount(ctx context.Context, userID string, from, to time.Time) (int, error)
}
