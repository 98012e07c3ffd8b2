package timeutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Remaining renders a duration the way it is shown in timer listings and
// reminder messages: "1d 2h 3m", zero-valued units skipped. Durations under
// a minute are rendered in seconds, and anything non-positive is "0s".
func Remaining(d time.Duration) string {

	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute

	parts := make([]string, 0, 3)
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	return strings.Join(parts, " ")
}

// NextUTCMidnight returns the first 00:00 UTC strictly after now.
func NextUTCMidnight(now time.Time) time.Time {
	return StartOfUTCDay(now).AddDate(0, 0, 1)
}

// StartOfUTCDay returns 00:00 UTC of the calendar day containing now.
func StartOfUTCDay(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Ago renders how long ago t was relative to now ("3 hours ago").
func Ago(t time.Time, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}
