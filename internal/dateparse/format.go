package dateparse

import (
	"fmt"
	"strings"
	"time"
)

// absoluteLayout renders an instant in the user's timezone in a form the
// grammar can parse back to the same second.
const absoluteLayout = "3:04:05pm MST on Monday, January 2 2006"

// relativeHorizon: inside this span, times are rendered as relative
// durations ("in 2 days and 3 hours") rather than absolute dates.
const relativeHorizon = 7 * 24 * time.Hour

// FormatTime renders an instant for humans. Times within a week of now are
// shown as the two most significant components of the distance; anything
// further out uses the absolute localized form.
func FormatTime(t time.Time, uc Context, now time.Time) string {
	now = now.Truncate(time.Second)
	t = t.Truncate(time.Second)

	delta := t.Sub(now)
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	if abs > relativeHorizon {
		return FormatAbsolute(t, uc)
	}

	parts := durationParts(abs)
	phrase := strings.Join(parts, " and ")
	if delta > 0 {
		return "in " + phrase
	}
	return phrase + " ago"
}

// FormatAbsolute renders the instant in the user's timezone. The output
// round-trips through Parse (same locale/timezone) to the second.
func FormatAbsolute(t time.Time, uc Context) string {
	return t.In(uc.Location).Format(absoluteLayout)
}

// durationParts returns the two most significant non-zero components.
func durationParts(d time.Duration) []string {
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)
	seconds := int((d - time.Duration(minutes)*time.Minute) / time.Second)

	var parts []string
	if days > 0 {
		parts = append(parts, pluralize(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, pluralize(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, pluralize(minutes, "minute"))
	}
	if seconds > 0 {
		parts = append(parts, pluralize(seconds, "second"))
	}
	if len(parts) == 0 {
		parts = []string{"0 seconds"}
	}
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return parts
}

func pluralize(v int, unit string) string {
	if v == 1 {
		return fmt.Sprintf("%d %s", v, unit)
	}
	return fmt.Sprintf("%d %ss", v, unit)
}
