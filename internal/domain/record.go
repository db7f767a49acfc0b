package domain

import "time"

// SendRecord is one row of the idempotency ledger: a send attempt and its
// outcome, keyed by (user, message type, local calendar day). Rows are
// append-only; outcomes are recorded by updating status, never by deletion.
type SendRecord struct {
	ID                string      `json:"id"`
	UserID            string      `json:"user_id"`
	MessageType       MessageType `json:"message_type"`
	LocalDay          string      `json:"local_day"`
	Status            SendStatus  `json:"status"`
	ProviderMessageID *string     `json:"provider_message_id,omitempty"`
	ErrorDetail       *string     `json:"error_detail,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// JobStatus tracks a delivery job through the durable queue.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobLeased  JobStatus = "leased"
	JobDone    JobStatus = "done"
	JobDead    JobStatus = "dead"
)

// Job is one unit of delivery work. Rows are the durable source of truth;
// the in-process handoff channel only carries claimed copies, so a crash
// between claim and completion surfaces the row again once its lease lapses.
type Job struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	MessageType     MessageType `json:"message_type"`
	LocalDay        string      `json:"local_day"`
	Force           bool        `json:"force"`
	SkipIdempotency bool        `json:"skip_idempotency"`
	Attempt         int         `json:"attempt"`
	MaxAttempts     int         `json:"max_attempts"`
	Status          JobStatus   `json:"status"`
	RunAt           time.Time   `json:"run_at"`
	LeaseExpiresAt  *time.Time  `json:"lease_expires_at,omitempty"`
	ErrorDetail     *string     `json:"error_detail,omitempty"`
	EnqueuedAt      time.Time   `json:"enqueued_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
