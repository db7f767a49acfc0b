package domain

import "strings"

// MessageType identifies one of the two daily reminder schedules.
type MessageType string

const (
	MessageMorningNudge    MessageType = "morning_nudge"
	MessageEveningReminder MessageType = "evening_reminder"
)

func (m MessageType) IsValid() bool {
	switch m {
	case MessageMorningNudge, MessageEveningReminder:
		return true
	}
	return false
}

// SendStatus tracks the lifecycle of a send record.
type SendStatus string

const (
	SendQueued    SendStatus = "queued"
	SendSent      SendStatus = "sent"
	SendDelivered SendStatus = "delivered"
	SendFailed    SendStatus = "failed"
)

func (s SendStatus) IsValid() bool {
	switch s {
	case SendQueued, SendSent, SendDelivered, SendFailed:
		return true
	}
	return false
}

// OptAction is the compliance action requested by an inbound keyword.
type OptAction string

const (
	OptOut OptAction = "opt_out"
	OptIn  OptAction = "opt_in"
)

// Carrier-mandated keyword families. Matching is case-insensitive against
// the trimmed message body; keywords embedded in longer sentences do not
// count, per the standard carrier contract.
var (
	optOutKeywords = map[string]struct{}{
		"STOP": {}, "STOPALL": {}, "UNSUBSCRIBE": {}, "CANCEL": {}, "END": {}, "QUIT": {},
	}
	optInKeywords = map[string]struct{}{
		"START": {}, "YES": {}, "UNSTOP": {},
	}
)

// ParseComplianceKeyword reports the opt action requested by an inbound
// message body, if any.
func ParseComplianceKeyword(body string) (OptAction, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(body))
	if _, ok := optOutKeywords[normalized]; ok {
		return OptOut, true
	}
	if _, ok := optInKeywords[normalized]; ok {
		return OptIn, true
	}
	return "", false
}
