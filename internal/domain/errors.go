package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used throughout the application.
// HTTP handlers translate these to status codes via a single mapError function.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidMessage   = errors.New("invalid message type: must be morning_nudge or evening_reminder")
	ErrInvalidPhone     = errors.New("phone number is not a valid E.164 number")
	ErrInvalidUser      = errors.New("user id must not be empty")
	ErrUnknownTimezone  = errors.New("unknown IANA timezone")
	ErrSignatureInvalid = errors.New("webhook signature verification failed")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrAlreadyQueued    = errors.New("a delivery job for this user and day is already queued")
	ErrAlreadySent      = errors.New("a send for this user and day is already recorded")
)

// TransientGatewayError marks a gateway failure worth retrying: timeouts,
// throttling, 5xx-equivalents. The queue's backoff schedule re-attempts it
// until attempts are exhausted.
type TransientGatewayError struct {
	Err error
}

func (e *TransientGatewayError) Error() string {
	return fmt.Sprintf("transient gateway error: %v", e.Err)
}

func (e *TransientGatewayError) Unwrap() error { return e.Err }

// TerminalGatewayError marks a permanently undeliverable send: malformed or
// unreachable number, hard provider rejection. No retry; the ledger records
// the failure immediately.
type TerminalGatewayError struct {
	Err error
}

func (e *TerminalGatewayError) Error() string {
	return fmt.Sprintf("terminal gateway error: %v", e.Err)
}

func (e *TerminalGatewayError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable per the gateway taxonomy.
func IsTransient(err error) bool {
	var t *TransientGatewayError
	return errors.As(err, &t)
}

// IsTerminal reports whether err is a permanent delivery failure.
func IsTerminal(err error) bool {
	var t *TerminalGatewayError
	return errors.As(err, &t)
}
