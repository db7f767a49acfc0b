package domain

import "time"

// Send-window boundaries, all in the user's local wall-clock time.
const (
	morningHour   = 6
	morningMinute = 15
	eveningHour   = 21

	quietStartHour = 22 // inclusive
	quietEndHour   = 6  // exclusive
)

// LocalDayKey returns the calendar-day key for t in the given location,
// formatted YYYY-MM-DD. Formatting drops the time-of-day entirely, so the
// key is a truncation (floor) of the local instant; no rounding path exists.
func LocalDayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// DayWindow returns the [start, end) UTC-comparable bounds of the local
// calendar day containing t. time.Date resolves the wall-clock midnight
// through the location's rules, so the window is correct on DST days even
// though it is not 24 hours long.
func DayWindow(t time.Time, loc *time.Location) (start, end time.Time) {
	local := t.In(loc)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end = start.AddDate(0, 0, 1)
	return start, end
}

// DueAt reports whether the local wall-clock time has reached the send
// threshold for the message type. Comparisons are on wall-clock components
// only, which keeps them stable across a mid-day UTC offset change.
func DueAt(mt MessageType, local time.Time) bool {
	minute := local.Hour()*60 + local.Minute()
	switch mt {
	case MessageMorningNudge:
		return minute >= morningHour*60+morningMinute
	case MessageEveningReminder:
		return minute >= eveningHour*60
	}
	return false
}

// InQuietHours reports whether local falls in the [22:00, 06:00) window
// during which non-forced sends are deferred.
func InQuietHours(local time.Time) bool {
	h := local.Hour()
	return h >= quietStartHour || h < quietEndHour
}

// NextQuietHoursEnd returns the next instant at which quiet hours end
// (06:00 local), in the same location as local. Used to reschedule jobs
// that arrive inside the quiet window.
func NextQuietHoursEnd(local time.Time) time.Time {
	loc := local.Location()
	end := time.Date(local.Year(), local.Month(), local.Day(), quietEndHour, 0, 0, 0, loc)
	if !local.Before(end) {
		end = time.Date(local.Year(), local.Month(), local.Day()+1, quietEndHour, 0, 0, 0, loc)
	}
	return end
}
