package domain

import "testing"

func TestParseComplianceKeyword(t *testing.T) {
	tests := []struct {
		body    string
		action  OptAction
		matched bool
	}{
		{"STOP", OptOut, true},
		{"stop", OptOut, true},
		{"  Stop  ", OptOut, true},
		{"UNSUBSCRIBE", OptOut, true},
		{"CANCEL", OptOut, true},
		{"END", OptOut, true},
		{"QUIT", OptOut, true},
		{"STOPALL", OptOut, true},
		{"START", OptIn, true},
		{"yes", OptIn, true},
		{"UNSTOP", OptIn, true},
		{"please stop texting me", "", false},
		{"", "", false},
		{"HELP", "", false},
	}

	for _, tc := range tests {
		action, matched := ParseComplianceKeyword(tc.body)
		if matched != tc.matched || action != tc.action {
			t.Fatalf("ParseComplianceKeyword(%q) = (%q, %v), want (%q, %v)",
				tc.body, action, matched, tc.action, tc.matched)
		}
	}
}

func TestValidPhone(t *testing.T) {
	valid := []string{"+12125551234", "+905551234567", "+442071838750"}
	for _, p := range valid {
		if !ValidPhone(p) {
			t.Fatalf("expected %q to be valid", p)
		}
	}

	invalid := []string{"", "12125551234", "+0125551234", "+1 212 555 1234", "+1212555123456789", "not-a-number"}
	for _, p := range invalid {
		if ValidPhone(p) {
			t.Fatalf("expected %q to be invalid", p)
		}
	}
}

func TestUserSendable(t *testing.T) {
	phone := "+12125551234"
	bad := "5551234"

	tests := []struct {
		name string
		user User
		want bool
	}{
		{"eligible", User{ID: "u1", PhoneNumber: &phone, Timezone: "America/New_York", SMSOptIn: true, IsActive: true}, true},
		{"opted out", User{ID: "u1", PhoneNumber: &phone, SMSOptIn: false, IsActive: true}, false},
		{"inactive", User{ID: "u1", PhoneNumber: &phone, SMSOptIn: true, IsActive: false}, false},
		{"no phone", User{ID: "u1", SMSOptIn: true, IsActive: true}, false},
		{"malformed phone", User{ID: "u1", PhoneNumber: &bad, SMSOptIn: true, IsActive: true}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.user.Sendable(); got != tc.want {
				t.Fatalf("Sendable() = %v, want %v", got, tc.want)
			}
		})
	}
}
