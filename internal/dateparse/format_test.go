package dateparse

import (
	"strings"
	"testing"
	"time"
)

func TestFormatTimeRelative(t *testing.T) {
	t.Parallel()
	uc := mustContext(t, "en", "UTC")

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{name: "hours ahead", at: refNow.Add(8 * time.Hour), want: "in 8 hours"},
		{name: "two components", at: refNow.Add(51 * time.Hour), want: "in 2 days and 3 hours"},
		{name: "singular", at: refNow.Add(time.Minute), want: "in 1 minute"},
		{name: "past", at: refNow.Add(-90 * time.Minute), want: "1 hour and 30 minutes ago"},
		{name: "truncates to two parts", at: refNow.Add(25*time.Hour + 30*time.Minute + 10*time.Second), want: "in 1 day and 1 hour"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTime(tt.at, uc, refNow); got != tt.want {
				t.Fatalf("FormatTime = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatTimeAbsoluteBeyondWeek(t *testing.T) {
	t.Parallel()
	uc := mustContext(t, "en", "UTC")

	at := refNow.AddDate(0, 2, 0)
	got := FormatTime(at, uc, refNow)
	if !strings.Contains(got, "2026") {
		t.Fatalf("FormatTime = %q, want absolute form with year", got)
	}
}

// Formatting an absolute timestamp and re-parsing it with the same locale
// and timezone yields the same instant to the second.
func TestAbsoluteRoundTrip(t *testing.T) {
	t.Parallel()

	contexts := []struct{ loc, tz string }{
		{loc: "en", tz: "UTC"},
		{loc: "en-GB", tz: "Europe/London"},
		{loc: "en", tz: "Asia/Tokyo"},
	}
	times := []time.Time{
		time.Date(2026, 11, 30, 15, 0, 0, 0, time.UTC),
		time.Date(2027, 1, 2, 0, 30, 59, 0, time.UTC),
		refNow.AddDate(0, 1, 3).Add(12345 * time.Second),
	}
	for _, c := range contexts {
		uc := mustContext(t, c.loc, c.tz)
		for _, at := range times {
			formatted := FormatAbsolute(at, uc)
			got, consumed, err := Parse(formatted, uc, refNow, false)
			if err != nil {
				t.Fatalf("re-parse of %q (%s/%s) error: %v", formatted, c.loc, c.tz, err)
			}
			if consumed != formatted {
				t.Fatalf("consumed = %q, want the whole string %q", consumed, formatted)
			}
			if !got.Equal(at.Truncate(time.Second)) {
				t.Fatalf("round trip of %q = %v, want %v", formatted, got, at)
			}
		}
	}
}
