package recur

import (
	"errors"
	"testing"
	"time"

	"remindbot/internal/dateparse"
	"remindbot/internal/locale"
)

func utcContext(t *testing.T) dateparse.Context {
	t.Helper()
	l, err := locale.ValidateLocale("en")
	if err != nil {
		t.Fatal(err)
	}
	_, z, err := locale.ValidateTimezone("UTC")
	if err != nil {
		t.Fatal(err)
	}
	return dateparse.Context{Locale: l, Location: z}
}

func TestCronNextWeekdayRange(t *testing.T) {
	t.Parallel()
	rule, err := ParseCron("30 9 * * mon-fri", time.UTC)
	if err != nil {
		t.Fatalf("ParseCron error: %v", err)
	}

	// Saturday 10:00 -> Monday 09:30 of the same week(end).
	sat := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	next, err := rule.Next(sat)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	want := time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("Next = %v, want %v", next, want)
	}
}

func TestCronNextStrictlyAfter(t *testing.T) {
	t.Parallel()
	exprs := []string{
		"* * * * *",
		"30 9 * * mon-fri",
		"0/30 9-17 * * *",
		"0 14 1,16 * *",
		"0 0 1-7 * mon",
		"@daily",
	}
	refs := []time.Time{
		time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC),
		time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC), // exactly on a fire time
	}
	for _, expr := range exprs {
		rule, err := ParseCron(expr, time.UTC)
		if err != nil {
			t.Fatalf("ParseCron(%q) error: %v", expr, err)
		}
		for _, ref := range refs {
			next, err := rule.Next(ref)
			if err != nil {
				t.Fatalf("Next(%q, %v) error: %v", expr, ref, err)
			}
			if !next.After(ref) {
				t.Fatalf("Next(%q, %v) = %v, not strictly after", expr, ref, next)
			}
		}
	}
}

func TestCronTimezone(t *testing.T) {
	t.Parallel()
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatal(err)
	}
	rule, err := ParseCron("0 9 * * *", tokyo)
	if err != nil {
		t.Fatalf("ParseCron error: %v", err)
	}
	ref := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC) // 19:00 in Tokyo
	next, err := rule.Next(ref)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	want := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC) // 09:00 JST next day
	if !next.Equal(want) {
		t.Fatalf("Next = %v, want %v", next, want)
	}
}

func TestCronInvalid(t *testing.T) {
	t.Parallel()
	for _, expr := range []string{"", "not cron", "61 * * * *", "* * * *"} {
		if _, err := ParseCron(expr, time.UTC); !errors.Is(err, ErrInvalidExpression) {
			t.Fatalf("ParseCron(%q) = %v, want ErrInvalidExpression", expr, err)
		}
	}
}

func TestPhraseRule(t *testing.T) {
	t.Parallel()
	uc := utcContext(t)
	// Tuesday 10:00 UTC.
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	rule, first, consumed, err := ParsePhrase("friday 3pm take out the trash", uc, now)
	if err != nil {
		t.Fatalf("ParsePhrase error: %v", err)
	}
	if consumed != "friday 3pm" {
		t.Fatalf("consumed = %q, want %q", consumed, "friday 3pm")
	}
	wantFirst := time.Date(2026, 3, 6, 15, 0, 0, 0, time.UTC)
	if !first.Equal(wantFirst) {
		t.Fatalf("first = %v, want %v", first, wantFirst)
	}

	// Advancing from the fired instant lands on the next week's occurrence.
	next, err := rule.Next(first)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if !next.Equal(wantFirst.AddDate(0, 0, 7)) {
		t.Fatalf("Next = %v, want %v", next, wantFirst.AddDate(0, 0, 7))
	}
	if !next.After(first) {
		t.Fatal("Next not strictly after reference")
	}
}

func TestPhraseDaily(t *testing.T) {
	t.Parallel()
	uc := utcContext(t)
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	rule, first, _, err := ParsePhrase("8am drink water", uc, now)
	if err != nil {
		t.Fatalf("ParsePhrase error: %v", err)
	}
	// 8am already passed: first fire is tomorrow.
	if want := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC); !first.Equal(want) {
		t.Fatalf("first = %v, want %v", first, want)
	}
	next, err := rule.Next(first)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if want := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("Next = %v, want %v", next, want)
	}
}
