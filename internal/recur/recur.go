// Package recur computes next-occurrence times for recurring reminders.
// Two rule kinds share one contract: standard 5-field cron expressions and
// relative phrases ("every friday 3pm") re-applied through the date parser.
// Next always returns an instant strictly after its reference, so the
// dispatcher stays mode-agnostic.
package recur

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/dateparse"
)

// ErrInvalidExpression reports a recurrence expression that parses as
// neither cron nor a relative phrase.
var ErrInvalidExpression = errors.New("invalid recurrence expression")

// cronParser accepts minute hour dom month dow plus descriptors
// (@daily etc.), matching the classic crontab grammar.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Kind discriminates how a rule advances.
type Kind int

const (
	KindCron Kind = iota
	KindPhrase
)

// Rule is a validated recurrence. Zero value is not usable; build with
// ParseCron or ParsePhrase.
type Rule struct {
	kind   Kind
	expr   string
	sched  cron.Schedule
	uc     dateparse.Context
	phrase string
}

func (r *Rule) Kind() Kind     { return r.kind }
func (r *Rule) String() string { return r.expr }

// ParseCron validates a cron expression in the given timezone.
func ParseCron(expr string, loc *time.Location) (*Rule, error) {
	spec := strings.TrimSpace(expr)
	if spec == "" {
		return nil, fmt.Errorf("%w: empty cron expression", ErrInvalidExpression)
	}
	// robfig schedules run in the parser's local time unless prefixed.
	if !strings.HasPrefix(spec, "TZ=") && !strings.HasPrefix(spec, "CRON_TZ=") && loc != nil {
		spec = "CRON_TZ=" + loc.String() + " " + spec
	}
	sched, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return &Rule{kind: KindCron, expr: strings.TrimSpace(expr), sched: sched}, nil
}

// ParsePhrase validates a relative recurrence phrase by resolving it once
// against now. The phrase keeps its user context so each advance re-applies
// it with the same locale and timezone.
func ParsePhrase(phrase string, uc dateparse.Context, now time.Time) (*Rule, time.Time, string, error) {
	first, consumed, err := dateparse.Parse(phrase, uc, now, true)
	if err != nil {
		return nil, time.Time{}, "", err
	}
	return &Rule{kind: KindPhrase, expr: consumed, uc: uc, phrase: consumed}, first, consumed, nil
}

// Next returns the first occurrence strictly after the reference time.
func (r *Rule) Next(after time.Time) (time.Time, error) {
	switch r.kind {
	case KindCron:
		next := r.sched.Next(after)
		if next.IsZero() {
			return time.Time{}, fmt.Errorf("%w: %q has no future occurrence", ErrInvalidExpression, r.expr)
		}
		return next.UTC(), nil
	case KindPhrase:
		// Re-apply the phrase seeded at the reference; the parser's future
		// bias lands on the following occurrence.
		next, _, err := dateparse.Parse(r.phrase, r.uc, after, false)
		if err != nil {
			return time.Time{}, err
		}
		return next, nil
	}
	return time.Time{}, ErrInvalidExpression
}
