// Package dateparse turns free-text date expressions into concrete future
// instants. It implements two strategies: a prefix-anchored parse that
// prefers the longest leading expression within the first 8 tokens, and a
// free-text search fallback over the whole string. Ambiguous expressions are
// always biased toward the nearest future occurrence.
package dateparse

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/br"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/olebedev/when/rules/ru"

	"remindbot/internal/locale"
)

// ErrNoDate reports that no date expression could be extracted.
var ErrNoDate = errors.New("unable to extract date from string")

// PastError reports an expression that resolved to an instant at or before
// the reference time. Formatted carries the locale/timezone rendering for
// user-facing messages.
type PastError struct {
	When      time.Time // UTC
	Formatted string
}

func (e *PastError) Error() string {
	return fmt.Sprintf("%s is in the past", e.Formatted)
}

// Context carries a user's resolved locale and timezone. Callers apply
// defaults before parsing; both fields are non-nil.
type Context struct {
	Locale   *locale.Locale
	Location *time.Location
}

// tokenPattern finds whitespace-delimited tokens; prefix candidates end at
// token boundaries.
var tokenPattern = regexp.MustCompile(`\S+`)

// weekShorthand matches a bare "w" week suffix ("3w", "3 w") which the
// grammar only accepts as "wk".
var weekShorthand = regexp.MustCompile(`\b(\d+)\s?w\b`)

// maxPrefixTokens bounds how far into the text the anchored strategy looks.
const maxPrefixTokens = 8

// Parse extracts a date expression from text and resolves it to a UTC
// instant strictly after now, truncated to whole seconds.
//
// The returned string is the exact substring that was consumed, so callers
// can strip the date phrase and keep the remainder as the message. When
// searchText is true and no leading prefix parses, the whole string is
// searched and the first match wins; when false the text is expected to be
// pure date text.
func Parse(text string, uc Context, now time.Time, searchText bool) (time.Time, string, error) {
	s := normalizeWeeks(text)

	var (
		resolved time.Time
		consumed string
		found    bool
	)

	// Prefer-anchored strategy: walk the first 8 token boundaries in
	// reverse so the longest candidate prefix is tried first, stopping at
	// the first success.
	bounds := tokenPattern.FindAllStringIndex(s, maxPrefixTokens)
	for i := len(bounds) - 1; i >= 0; i-- {
		prefix := s[:bounds[i][1]]
		if t, ok := parseExpression(prefix, uc, now); ok {
			resolved = t
			consumed = prefix
			found = true
			break
		}
	}

	// Fallback: search the whole string with the locale's primary language.
	if !found && searchText {
		if t, span, ok := searchDate(s, uc, now); ok {
			resolved = biasFuture(t, span, uc, now)
			consumed = span
			found = true
		}
	}

	if !found {
		return time.Time{}, "", ErrNoDate
	}

	// Whole-second resolution for nicer display.
	resolved = resolved.Truncate(time.Second)

	if !resolved.After(now) {
		return time.Time{}, "", &PastError{
			When:      resolved.UTC(),
			Formatted: FormatTime(resolved, uc, now),
		}
	}
	return resolved.UTC(), consumed, nil
}

// normalizeWeeks rewrites the first bare week shorthand ("3w" -> "3wk").
// Only the first occurrence is touched, once, before any parsing.
func normalizeWeeks(s string) string {
	loc := weekShorthand.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + s[loc[2]:loc[3]] + "wk" + s[loc[1]:]
}

// Words that make a fallback match deliberately past; those are never
// biased forward.
var pastMarkers = map[string]bool{
	"yesterday": true, "ago": true, "last": true,
}

// biasFuture applies the future preference to a fallback match. A span
// that resolved at or before now and names no explicit calendar date rolls
// forward to its next occurrence: next day for times, next week for
// weekdays, next year for month-day dates. Explicitly past or year-dated
// spans are left for the past-date check.
func biasFuture(t time.Time, span string, uc Context, now time.Time) time.Time {
	if t.After(now) {
		return t
	}

	var hasYear, hasMonth, hasWeekday bool
	for _, raw := range strings.Fields(strings.ToLower(span)) {
		tok := strings.Trim(raw, ",.")
		if pastMarkers[tok] {
			return t
		}
		if isoDatePattern.MatchString(tok) || len(tok) == 4 && barePattern.MatchString(tok) {
			hasYear = true
		}
		if m := numericDatePattern.FindStringSubmatch(tok); m != nil {
			if m[2] != "" {
				hasYear = true
			} else {
				hasMonth = true
			}
		}
		if _, ok := monthNames[tok]; ok {
			hasMonth = true
		}
		if _, ok := weekdayNames[tok]; ok {
			hasWeekday = true
		}
	}
	if hasYear {
		return t
	}

	local := t.In(uc.Location)
	for i := 0; i < 4 && !local.After(now); i++ {
		switch {
		case hasMonth:
			local = local.AddDate(1, 0, 0)
		case hasWeekday:
			local = local.AddDate(0, 0, 7)
		default:
			local = local.AddDate(0, 0, 1)
		}
	}
	return local
}

// searchDate scans the whole string for a date expression using rule sets
// for the locale's primary language, returning the first match.
func searchDate(s string, uc Context, now time.Time) (time.Time, string, bool) {
	w := when.New(nil)
	switch uc.Locale.Language {
	case "ru":
		w.Add(ru.All...)
	case "pt":
		w.Add(br.All...)
	default:
		w.Add(en.All...)
	}
	w.Add(common.All...)

	r, err := w.Parse(s, now.In(uc.Location))
	if err != nil || r == nil {
		return time.Time{}, "", false
	}
	return r.Time, r.Text, true
}
