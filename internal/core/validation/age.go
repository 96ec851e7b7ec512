package validation

import "time"

// MinimumAge is the youngest age allowed to verify.
const MinimumAge = 18

// DateLayout is the wire format of dates of birth.
const DateLayout = "2006-01-02"

// AgeOn returns the number of completed years between dob and now.
func AgeOn(dob, now time.Time) int {
	y1, m1, d1 := dob.Date()
	y2, m2, d2 := now.Date()

	age := y2 - y1
	if m2 < m1 || (m2 == m1 && d2 < d1) {
		age--
	}
	return age
}

// IsAdult is true once the 18th birthday has been reached on now's calendar date.
func IsAdult(dob, now time.Time) bool {
	return AgeOn(dob, now) >= MinimumAge
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
