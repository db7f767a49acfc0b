package domain

import "regexp"

// User is the slice of the profile this subsystem reads. The profile itself
// is owned by the main application; only the opt-in flag is mutated here
// (by the inbound webhook).
type User struct {
	ID          string  `json:"id"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Timezone    string  `json:"timezone"`
	SMSOptIn    bool    `json:"sms_opt_in"`
	IsActive    bool    `json:"is_active"`
}

// E.164: leading +, country code 1-9, up to 15 digits total.
var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// ValidPhone reports whether s is a syntactically valid E.164 number.
func ValidPhone(s string) bool {
	return e164Pattern.MatchString(s)
}

// Sendable reports whether the user can receive SMS at all: active, opted
// in, and carrying a syntactically valid phone number. Both the scanner
// (enqueue time) and the worker (delivery time) gate on this; delivery-time
// state wins when they disagree.
func (u *User) Sendable() bool {
	return u.IsActive && u.SMSOptIn && u.PhoneNumber != nil && ValidPhone(*u.PhoneNumber)
}
