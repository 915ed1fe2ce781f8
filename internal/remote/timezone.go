package remote

import (
	"fmt"
	"time"
)

// createDateLayout is the fixed datetime format the remote system expects.
const createDateLayout = "2006-01-02 15:04:05"

// TimezoneOffset returns the UTC offset of the named IANA timezone at the
// given instant as a "+HH:MM" string. Any resolution failure falls back to
// "+00:00"; this never panics.
func TimezoneOffset(name string, at time.Time) string {
	if name == "" {
		return "+00:00"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return "+00:00"
	}
	_, seconds := at.In(loc).Zone()
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}

// formatCreateDate renders the instant in the named timezone using the remote
// layout, falling back to UTC when the timezone cannot be resolved.
func formatCreateDate(at time.Time, name string) string {
	loc := time.UTC
	if name != "" {
		if resolved, err := time.LoadLocation(name); err == nil {
			loc = resolved
		}
	}
	return at.In(loc).Format(createDateLayout)
}
