package dateparse

import (
	"errors"
	"testing"
	"time"

	"remindbot/internal/locale"
)

func mustContext(t *testing.T, loc, tz string) Context {
	t.Helper()
	l, err := locale.ValidateLocale(loc)
	if err != nil {
		t.Fatal(err)
	}
	_, z, err := locale.ValidateTimezone(tz)
	if err != nil {
		t.Fatal(err)
	}
	return Context{Locale: l, Location: z}
}

// Tuesday, 2026-03-03 10:00:00 UTC.
var refNow = time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

func TestParseLeadingDuration(t *testing.T) {
	t.Parallel()
	uc := mustContext(t, "en", "UTC")

	got, consumed, err := Parse("8 hours buy more pumpkins", uc, refNow, true)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if consumed != "8 hours" {
		t.Fatalf("consumed = %q, want %q", consumed, "8 hours")
	}
	if want := refNow.Add(8 * time.Hour); !got.Equal(want) {
		t.Fatalf("time = %v, want %v", got, want)
	}
}

func TestParseVariants(t *testing.T) {
	t.Parallel()
	uc := mustContext(t, "en", "UTC")

	tests := []struct {
		name     string
		in       string
		consumed string
		want     time.Time
	}{
		{
			name: "compact days", in: "4d water the plants",
			consumed: "4d", want: refNow.AddDate(0, 0, 4),
		},
		{
			name: "week shorthand", in: "2w rotate keys",
			consumed: "2wk", want: refNow.AddDate(0, 0, 14),
		},
		{
			name: "iso date with time", in: "2026-11-30 15:00 befriend rats",
			consumed: "2026-11-30 15:00",
			want:     time.Date(2026, 11, 30, 15, 0, 0, 0, time.UTC),
		},
		{
			name: "weekday and time", in: "tuesday at 2pm standup",
			consumed: "tuesday at 2pm",
			// refNow is a Tuesday at 10:00, so 2pm today is still ahead.
			want: time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC),
		},
		{
			name: "bare evening time", in: "8pm take out the trash",
			consumed: "8pm",
			want:     time.Date(2026, 3, 3, 20, 0, 0, 0, time.UTC),
		},
		{
			name: "month day", in: "july 2 fireworks",
			consumed: "july 2",
			want:     time.Date(2026, 7, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "combined durations", in: "2 days and 3 hours deploy",
			consumed: "2 days and 3 hours",
			want:     refNow.Add(51 * time.Hour),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, consumed, err := Parse(tt.in, uc, refNow, true)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.in, err)
			}
			if consumed != tt.consumed {
				t.Fatalf("consumed = %q, want %q", consumed, tt.consumed)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("time = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLongestPrefixWins(t *testing.T) {
	t.Parallel()
	uc := mustContext(t, "en", "UTC")

	// Both "tomorrow" and "tomorrow 8am" parse; the longer prefix must win.
	got, consumed, err := Parse("tomorrow 8am check the oven", uc, refNow, true)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if consumed != "tomorrow 8am" {
		t.Fatalf("consumed = %q, want %q", consumed, "tomorrow 8am")
	}
	if want := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("time = %v, want %v", got, want)
	}
}

func TestParseSearchFallback(t *testing.T) {
	t.Parallel()
	uc := mustContext(t, "en", "UTC")

	// Date not at the beginning: the prefix strategy fails and the
	// free-text search finds the phrase.
	got, consumed, err := Parse("make tea in 4 hours", uc, refNow, true)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if consumed == "" {
		t.Fatal("consumed span is empty")
	}
	if want := refNow.Add(4 * time.Hour); !got.Equal(want) {
		t.Fatalf("time = %v, want %v", got, want)
	}
}

func TestParseSearchFallbackFutureBias(t *testing.T) {
	t.Parallel()
	uc := mustContext(t, "en", "UTC")

	// 9am has already passed at the 10:00 reference; a mid-string match
	// must still land on tomorrow, not fail as past.
	got, consumed, err := Parse("water plants at 9am", uc, refNow, true)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if consumed == "" {
		t.Fatal("consumed span is empty")
	}
	if want := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("time = %v, want %v", got, want)
	}
}

func TestBiasFuture(t *testing.T) {
	t.Parallel()
	uc := mustContext(t, "en", "UTC")

	tests := []struct {
		name string
		at   time.Time
		span string
		want time.Time
	}{
		{
			name: "future match untouched",
			at:   refNow.Add(4 * time.Hour), span: "in 4 hours",
			want: refNow.Add(4 * time.Hour),
		},
		{
			name: "past time rolls to next day",
			at:   refNow.Add(-time.Hour), span: "9am",
			want: refNow.Add(-time.Hour).AddDate(0, 0, 1),
		},
		{
			name: "past weekday rolls a week",
			at:   refNow.AddDate(0, 0, -1), span: "monday",
			want: refNow.AddDate(0, 0, 6),
		},
		{
			name: "past month-day rolls a year",
			at:   refNow.AddDate(0, -1, 0), span: "february 3",
			want: refNow.AddDate(1, -1, 0),
		},
		{
			name: "explicit year stays for the past check",
			at:   time.Date(2020, 1, 1, 15, 0, 0, 0, time.UTC), span: "2020-01-01 15:00",
			want: time.Date(2020, 1, 1, 15, 0, 0, 0, time.UTC),
		},
		{
			name: "deliberately past stays past",
			at:   refNow.Add(-time.Hour), span: "an hour ago",
			want: refNow.Add(-time.Hour),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := biasFuture(tt.at, tt.span, uc, refNow); !got.Equal(tt.want) {
				t.Fatalf("biasFuture(%q) = %v, want %v", tt.span, got, tt.want)
			}
		})
	}
}

func TestParseDateOrderByLocale(t *testing.T) {
	t.Parallel()
	tests := []struct {
		loc  string
		in   string
		want time.Time
	}{
		{loc: "en", in: "11/30 party", want: time.Date(2026, 11, 30, 10, 0, 0, 0, time.UTC)},
		{loc: "en-GB", in: "30/11 party", want: time.Date(2026, 11, 30, 10, 0, 0, 0, time.UTC)},
		{loc: "de", in: "30.11 party", want: time.Date(2026, 11, 30, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.loc, func(t *testing.T) {
			uc := mustContext(t, tt.loc, "UTC")
			got, _, err := Parse(tt.in, uc, refNow, true)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("time = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFutureBias(t *testing.T) {
	t.Parallel()
	uc := mustContext(t, "en", "UTC")

	// 9am has already passed at the 10:00 reference; expect tomorrow 9am.
	got, _, err := Parse("9am jog", uc, refNow, true)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if want := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("time = %v, want %v", got, want)
	}

	// A month-day before the reference date rolls into next year.
	got, _, err = Parse("january 1 resolutions", uc, refNow, true)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got.Year() != 2027 {
		t.Fatalf("year = %d, want 2027", got.Year())
	}
}

func TestParseTimezoneAnchoring(t *testing.T) {
	t.Parallel()
	uc := mustContext(t, "en", "Asia/Tokyo")

	// 8pm Tokyo on the reference day is 11:00 UTC.
	got, _, err := Parse("8pm dinner", uc, refNow, true)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if want := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("time = %v, want %v", got, want)
	}
}

func TestParseRejectsPast(t *testing.T) {
	t.Parallel()
	uc := mustContext(t, "en", "UTC")

	_, _, err := Parse("2020-01-01 15:00", uc, refNow, false)
	var pe *PastError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PastError", err)
	}
	if pe.Formatted == "" {
		t.Fatal("PastError.Formatted is empty")
	}
	if !pe.When.Before(refNow) {
		t.Fatalf("When = %v, not before reference", pe.When)
	}
}

func TestParseNoDate(t *testing.T) {
	t.Parallel()
	uc := mustContext(t, "en", "UTC")

	for _, in := range []string{"buy more pumpkins", ""} {
		if _, _, err := Parse(in, uc, refNow, true); !errors.Is(err, ErrNoDate) {
			t.Fatalf("Parse(%q) = %v, want ErrNoDate", in, err)
		}
	}
}

func TestParseNeverReturnsPast(t *testing.T) {
	t.Parallel()
	uc := mustContext(t, "en", "UTC")

	inputs := []string{
		"8 hours x", "tomorrow x", "friday x", "3pm x", "july 2 x", "1 second x",
	}
	for _, in := range inputs {
		got, _, err := Parse(in, uc, refNow, true)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", in, err)
		}
		if !got.After(refNow) {
			t.Fatalf("Parse(%q) = %v, not after reference %v", in, got, refNow)
		}
	}
}

func TestNormalizeWeeks(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, want string }{
		{in: "3w", want: "3wk"},
		{in: "3 w", want: "3wk"},
		{in: "2wk", want: "2wk"},
		{in: "4d", want: "4d"},
		{in: "1w and 1w", want: "1wk and 1w"}, // only the first occurrence
	}
	for _, tt := range tests {
		if got := normalizeWeeks(tt.in); got != tt.want {
			t.Fatalf("normalizeWeeks(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
