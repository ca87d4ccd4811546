// Package store persists reminder records and their subscriber lists.
// Message text crossing this boundary is assumed encrypted at rest by the
// backing engine; the rest of the system only sees plaintext in memory.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("reminder not found")
	ErrExists   = errors.New("reminder already exists")
)

// Reminder is a persisted reminder record.
//
// Exactly one scheduling mode applies: a one-off has only StartTime, a
// cron-recurring has CronSpec, a phrase-recurring has RecurPhrase (both
// recurring kinds also keep StartTime as the next fire time), and an agenda
// item has IsAgenda set and no StartTime.
type Reminder struct {
	ID              string
	RoomID          string
	CreatorID       string
	Message         string
	StartTime       *time.Time // UTC next fire time; nil for agenda items
	CronSpec        string
	RecurPhrase     string
	IsAgenda        bool
	RoomWide        bool
	ReplyTo         string // originating message back-reference, informational
	ConfirmationRef string
	CreatedAt       time.Time
}

// Recurring reports whether the reminder reschedules itself after firing.
func (r *Reminder) Recurring() bool {
	return r.CronSpec != "" || r.RecurPhrase != ""
}

// Subscription links a user to a reminder. Unique per (user, reminder).
type Subscription struct {
	ReminderID string
	UserID     string
	Ref        string // event reference of the opt-in, informational
}

// UserSettings are the durable per-user preferences. Unlike the rate
// window, which is runtime state, these survive restarts. Empty fields
// mean "never set"; the process defaults apply.
type UserSettings struct {
	UserID   string
	Timezone string
	Locale   string
}

// Update selects reminder fields to change; nil pointers leave a field
// untouched. ClearStartTime wins over StartTime.
type Update struct {
	StartTime       *time.Time
	ClearStartTime  bool
	Message         *string
	ConfirmationRef *string
}

// Store is the durable mapping from reminders to their subscriptions.
// Operations are atomic per reminder id; Delete cascades subscriptions so
// no orphans survive.
type Store interface {
	Create(ctx context.Context, r *Reminder) error
	Get(ctx context.Context, id string) (*Reminder, error)
	Update(ctx context.Context, id string, upd Update) error
	Delete(ctx context.Context, id string) error

	// ListDue returns reminders with a fire time at or before now,
	// soonest first. Agenda items never appear.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Reminder, error)
	ListRoom(ctx context.Context, roomID string) ([]*Reminder, error)
	ListAll(ctx context.Context) ([]*Reminder, error)

	AddSubscription(ctx context.Context, reminderID, userID, ref string) error
	RemoveSubscription(ctx context.Context, reminderID, userID string) error
	ListSubscriptions(ctx context.Context, reminderID string) ([]Subscription, error)

	SetUserTimezone(ctx context.Context, userID, timezone string) error
	SetUserLocale(ctx context.Context, userID, loc string) error
	ListUserSettings(ctx context.Context) ([]UserSettings, error)

	Close() error
}
