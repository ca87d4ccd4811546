// Package remind is the scheduling core: it admits new reminders (rate
// limit, date parsing, recurrence validation), owns the reminder lifecycle
// in the store, and dispatches due reminders to the notifier. Transitions
// of a single reminder are serialized by a per-id lock; independent
// reminders and users never contend.
package remind

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"

	"remindbot/internal/dateparse"
	"remindbot/internal/locale"
	"remindbot/internal/recur"
	"remindbot/internal/session"
	"remindbot/internal/store"
	"remindbot/internal/texts"
	"remindbot/pkg/logx"
)

// Notification is the core-facing send request.
type Notification struct {
	RoomID     string
	Recipients []string
	Message    string
	ReplyTo    string
	RoomWide   bool
}

// Notifier delivers notifications over the chat transport.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Limits bounds reminder creation per user.
type Limits struct {
	MaxPerWindow int
	Window       time.Duration
}

type Service struct {
	store    store.Store
	notifier Notifier
	sessions *session.Registry
	clock    Clock
	log      logx.Logger

	limits     Limits
	batchLimit int
	locks      *keyLock
}

func NewService(st store.Store, n Notifier, sessions *session.Registry, clock Clock, log logx.Logger, limits Limits) *Service {
	if limits.MaxPerWindow <= 0 {
		limits.MaxPerWindow = 5
	}
	if limits.Window <= 0 {
		limits.Window = time.Hour
	}
	return &Service{
		store:      st,
		notifier:   n,
		sessions:   sessions,
		clock:      clock,
		log:        log,
		limits:     limits,
		batchLimit: 100,
		locks:      newKeyLock(),
	}
}

// SetBatchLimit caps how many due reminders one dispatch pass processes.
func (s *Service) SetBatchLimit(n int) {
	if n > 0 {
		s.batchLimit = n
	}
}

// ---- user settings ----

// SetTimezone validates and stores a user's timezone, returning the
// normalized name. The setting is persisted so it survives restarts.
func (s *Service) SetTimezone(ctx context.Context, userID, tz string) (string, error) {
	name, loc, err := locale.ValidateTimezone(tz)
	if err != nil {
		return "", syntaxErr(err, texts.Get(texts.ReminderSettings), "unknown timezone %q", tz)
	}
	if err := s.store.SetUserTimezone(ctx, userID, name); err != nil {
		return "", err
	}
	s.sessions.Get(userID).SetTimezone(name, loc)
	return name, nil
}

// SetLocale validates and stores a user's locale, returning the canonical
// tag. The setting is persisted so it survives restarts.
func (s *Service) SetLocale(ctx context.Context, userID, tag string) (string, error) {
	l, err := locale.ValidateLocale(tag)
	if err != nil {
		return "", syntaxErr(err, texts.Get(texts.ReminderSettings), "unknown locale %q", tag)
	}
	if err := s.store.SetUserLocale(ctx, userID, l.Name); err != nil {
		return "", err
	}
	s.sessions.Get(userID).SetLocale(l)
	return l.Name, nil
}

// LoadUserSettings hydrates the session registry from persisted user
// preferences. Values that no longer validate (a timezone removed from the
// zone database, say) are skipped with a warning; the user falls back to
// the defaults until they set the preference again.
func (s *Service) LoadUserSettings(ctx context.Context) error {
	all, err := s.store.ListUserSettings(ctx)
	if err != nil {
		return fmt.Errorf("load user settings: %w", err)
	}
	for _, us := range all {
		st := s.sessions.Get(us.UserID)
		if us.Timezone != "" {
			name, loc, err := locale.ValidateTimezone(us.Timezone)
			if err != nil {
				s.log.Warn("stored timezone no longer valid",
					logx.String("user", us.UserID), logx.String("timezone", us.Timezone))
			} else {
				st.SetTimezone(name, loc)
			}
		}
		if us.Locale != "" {
			l, err := locale.ValidateLocale(us.Locale)
			if err != nil {
				s.log.Warn("stored locale no longer valid",
					logx.String("user", us.UserID), logx.String("locale", us.Locale))
			} else {
				st.SetLocale(l)
			}
		}
	}
	return nil
}

// Settings returns the user's effective locale tag and timezone name.
func (s *Service) Settings(userID string) (localeTag, timezone string) {
	st := s.sessions.Get(userID)
	tz, _ := st.Timezone()
	return st.Locale().Name, tz
}

func (s *Service) userContext(userID string) dateparse.Context {
	st := s.sessions.Get(userID)
	_, loc := st.Timezone()
	return dateparse.Context{Locale: st.Locale(), Location: loc}
}

// FormatTime renders an instant using the user's locale and timezone.
func (s *Service) FormatTime(userID string, t time.Time) string {
	return dateparse.FormatTime(t, s.userContext(userID), s.clock.Now())
}

// ---- creation ----

// CreateRequest describes a new reminder. Text carries the date phrase and
// the message; command tokens are already stripped by the caller.
type CreateRequest struct {
	ID        string // derived from the originating message
	RoomID    string
	CreatorID string
	Text      string

	CronExpr string // cron-recurring when set; Text is then pure message
	Every    bool   // phrase-recurring

	RoomWide        bool
	ReplyTo         string
	ConfirmationRef string
}

// Create admits a new reminder: rate limit, time resolution, persistence,
// creator auto-subscription.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*store.Reminder, error) {
	now := s.clock.Now()
	if err := s.admit(req.CreatorID, now); err != nil {
		return nil, err
	}

	r := &store.Reminder{
		ID:              req.ID,
		RoomID:          req.RoomID,
		CreatorID:       req.CreatorID,
		RoomWide:        req.RoomWide,
		ReplyTo:         req.ReplyTo,
		ConfirmationRef: req.ConfirmationRef,
		CreatedAt:       now,
	}

	uc := s.userContext(req.CreatorID)
	switch {
	case req.CronExpr != "":
		rule, err := recur.ParseCron(req.CronExpr, uc.Location)
		if err != nil {
			return nil, syntaxErr(err, texts.Get(texts.CronExamples), "invalid cron expression %q", req.CronExpr)
		}
		first, err := rule.Next(now)
		if err != nil {
			return nil, syntaxErr(err, texts.Get(texts.CronExamples), "cron expression %q never fires", req.CronExpr)
		}
		r.CronSpec = rule.String()
		r.StartTime = &first
		r.Message = strings.TrimSpace(req.Text)

	default:
		when, consumed, err := dateparse.Parse(req.Text, uc, now, true)
		if err != nil {
			return nil, s.wrapParseErr(err, req.Text)
		}
		r.StartTime = &when
		r.Message = stripConsumed(req.Text, consumed)
		if req.Every {
			r.RecurPhrase = consumed
		}
	}

	if err := s.persist(ctx, r, req.ConfirmationRef); err != nil {
		return nil, err
	}
	s.log.Info("reminder created",
		logx.String("id", ShortID(r.ID)),
		logx.String("room", r.RoomID),
		logx.Bool("recurring", r.Recurring()),
		logx.Time("fire_at", *r.StartTime),
	)
	return r, nil
}

// CreateAgenda admits a timeless agenda item. Agenda items are never
// dispatched; they only exist for listing.
func (s *Service) CreateAgenda(ctx context.Context, req CreateRequest) (*store.Reminder, error) {
	now := s.clock.Now()
	if err := s.admit(req.CreatorID, now); err != nil {
		return nil, err
	}
	r := &store.Reminder{
		ID:              req.ID,
		RoomID:          req.RoomID,
		CreatorID:       req.CreatorID,
		Message:         strings.TrimSpace(req.Text),
		IsAgenda:        true,
		RoomWide:        req.RoomWide,
		ReplyTo:         req.ReplyTo,
		ConfirmationRef: req.ConfirmationRef,
		CreatedAt:       now,
	}
	if err := s.persist(ctx, r, req.ConfirmationRef); err != nil {
		return nil, err
	}
	s.log.Info("agenda item created", logx.String("id", ShortID(r.ID)), logx.String("room", r.RoomID))
	return r, nil
}

func (s *Service) admit(userID string, now time.Time) error {
	count, recorded := s.sessions.Get(userID).CheckRateLimit(now, s.limits.MaxPerWindow, s.limits.Window)
	if !recorded {
		return fmt.Errorf("%w: %d reminders in the current window", ErrRateLimited, count)
	}
	return nil
}

func (s *Service) persist(ctx context.Context, r *store.Reminder, ref string) error {
	if err := s.store.Create(ctx, r); err != nil {
		return err
	}
	// The creator is always subscribed to their own reminder.
	if ref == "" {
		ref = uuid.NewString()
	}
	if err := s.store.AddSubscription(ctx, r.ID, r.CreatorID, ref); err != nil {
		return err
	}
	return nil
}

func (s *Service) wrapParseErr(err error, text string) error {
	var pe *dateparse.PastError
	if errors.As(err, &pe) {
		return syntaxErr(err, "",
			"sorry, %s is in the past and I don't have a time machine (yet...)", pe.Formatted)
	}
	if errors.Is(err, dateparse.ErrNoDate) {
		return syntaxErr(err, texts.Get(texts.ParseDateExamples), "unable to extract date from %q", text)
	}
	return err
}

// stripConsumed removes the parsed date span from the text; the remainder
// is the reminder message.
func stripConsumed(text, consumed string) string {
	// The week-shorthand rewrite may make the consumed span differ from the
	// raw text by the inserted "k"; the raw text can spell it "3w" or
	// "3 w", so both despellings are tried against the original.
	spellings := []string{consumed}
	if strings.Contains(consumed, "wk") {
		spellings = append(spellings,
			strings.Replace(consumed, "wk", "w", 1),
			strings.Replace(consumed, "wk", " w", 1),
		)
	}
	for _, span := range spellings {
		if idx := strings.Index(text, span); idx >= 0 {
			return strings.TrimSpace(text[:idx] + text[idx+len(span):])
		}
	}
	return strings.TrimSpace(text)
}

// ---- lifecycle operations ----

// Reschedule replaces the fire time of a pending reminder. The new date
// text must be pure date text and resolve to the future.
func (s *Service) Reschedule(ctx context.Context, id, userID, dateText string) (*store.Reminder, error) {
	s.locks.lock(id)
	defer s.locks.unlock(id)

	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	uc := s.userContext(userID)
	when, _, err := dateparse.Parse(dateText, uc, s.clock.Now(), false)
	if err != nil {
		return nil, s.wrapParseErr(err, dateText)
	}
	if err := s.store.Update(ctx, id, store.Update{StartTime: &when}); err != nil {
		return nil, err
	}
	r.StartTime = &when
	s.log.Info("reminder rescheduled", logx.String("id", ShortID(id)), logx.Time("fire_at", when))
	return r, nil
}

// Cancel deletes a reminder; subscriptions cascade away with it.
func (s *Service) Cancel(ctx context.Context, id string) error {
	s.locks.lock(id)
	defer s.locks.unlock(id)
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("reminder cancelled", logx.String("id", ShortID(id)))
	return nil
}

// CancelMatching deletes the first reminder in the room whose short id
// equals query or whose message begins with it.
func (s *Service) CancelMatching(ctx context.Context, roomID, query string) (*store.Reminder, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, syntaxErr(store.ErrNotFound, texts.Get(texts.ReminderCancel), "nothing to cancel")
	}
	rs, err := s.store.ListRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for _, r := range rs {
		if strings.EqualFold(ShortID(r.ID), q) || strings.HasPrefix(strings.ToLower(r.Message), strings.ToLower(q)) {
			if err := s.Cancel(ctx, r.ID); err != nil {
				return nil, err
			}
			return r, nil
		}
	}
	return nil, syntaxErr(store.ErrNotFound, texts.Get(texts.ReminderCancel), "no reminder matching %q", query)
}

// Subscribe opts a user into a reminder's notifications.
func (s *Service) Subscribe(ctx context.Context, reminderID, userID, ref string) error {
	if ref == "" {
		ref = uuid.NewString()
	}
	return s.store.AddSubscription(ctx, reminderID, userID, ref)
}

// Unsubscribe retracts an opt-in.
func (s *Service) Unsubscribe(ctx context.Context, reminderID, userID string) error {
	return s.store.RemoveSubscription(ctx, reminderID, userID)
}

// SetConfirmationRef records the transport's confirmation message for a
// reminder so later replies to it can be resolved back.
func (s *Service) SetConfirmationRef(ctx context.Context, id, ref string) error {
	return s.store.Update(ctx, id, store.Update{ConfirmationRef: &ref})
}

// FindByConfirmationRef resolves a reply target: the reminder in the room
// whose confirmation message is ref.
func (s *Service) FindByConfirmationRef(ctx context.Context, roomID, ref string) (*store.Reminder, error) {
	if ref == "" {
		return nil, store.ErrNotFound
	}
	rs, err := s.store.ListRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for _, r := range rs {
		if r.ConfirmationRef == ref {
			return r, nil
		}
	}
	return nil, store.ErrNotFound
}

// ListOptions filters List output.
type ListOptions struct {
	RoomID     string
	AllRooms   bool
	CreatorID  string // only reminders created by this user
	Subscriber string // only reminders this user is subscribed to
}

func (s *Service) List(ctx context.Context, opts ListOptions) ([]*store.Reminder, error) {
	var (
		rs  []*store.Reminder
		err error
	)
	if opts.AllRooms {
		rs, err = s.store.ListAll(ctx)
	} else {
		rs, err = s.store.ListRoom(ctx, opts.RoomID)
	}
	if err != nil {
		return nil, err
	}

	out := rs[:0]
	for _, r := range rs {
		if opts.CreatorID != "" && r.CreatorID != opts.CreatorID {
			continue
		}
		if opts.Subscriber != "" {
			subs, err := s.store.ListSubscriptions(ctx, r.ID)
			if err != nil {
				return nil, err
			}
			found := false
			for _, sub := range subs {
				if sub.UserID == opts.Subscriber {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// ShortID derives the 4-letter display id shown in listings.
func ShortID(id string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	v := h.Sum32()
	b := make([]byte, 4)
	for i := range b {
		b[i] = byte('A' + v%26)
		v /= 26
	}
	return string(b)
}
