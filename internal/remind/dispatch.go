package remind

import (
	"context"
	"errors"
	"fmt"
	"time"

	"remindbot/internal/dateparse"
	"remindbot/internal/recur"
	"remindbot/internal/store"
	"remindbot/pkg/logx"
)

// DispatchDue fires every reminder whose time has come. One failing
// reminder is logged and left pending; it never blocks the rest of the
// batch.
func (s *Service) DispatchDue(ctx context.Context) error {
	now := s.clock.Now()
	due, err := s.store.ListDue(ctx, now, s.batchLimit)
	if err != nil {
		return fmt.Errorf("list due reminders: %w", err)
	}
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.fire(ctx, r.ID, now); err != nil {
			s.log.Error("reminder dispatch failed",
				logx.String("id", ShortID(r.ID)),
				logx.String("room", r.RoomID),
				logx.Err(err),
			)
		}
	}
	return nil
}

// fire delivers a single reminder and advances or removes it. The reminder
// is re-read under its lock so a concurrent reschedule or cancel between
// listing and firing is honored.
func (s *Service) fire(ctx context.Context, id string, now time.Time) error {
	s.locks.lock(id)
	defer s.locks.unlock(id)

	r, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil // cancelled since listing
	}
	if err != nil {
		return err
	}
	if r.StartTime == nil || r.StartTime.After(now) {
		return nil // rescheduled since listing
	}

	subs, err := s.store.ListSubscriptions(ctx, id)
	if err != nil {
		return err
	}
	recipients := make([]string, 0, len(subs))
	for _, sub := range subs {
		recipients = append(recipients, sub.UserID)
	}

	if err := s.notifier.Notify(ctx, Notification{
		RoomID:     r.RoomID,
		Recipients: recipients,
		Message:    r.Message,
		ReplyTo:    r.ReplyTo,
		RoomWide:   r.RoomWide,
	}); err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	if !r.Recurring() {
		if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("remove fired reminder: %w", err)
		}
		s.log.Info("reminder fired", logx.String("id", ShortID(id)), logx.String("room", r.RoomID))
		return nil
	}

	// Advance from the scheduled fire time, not from now: a late tick must
	// not shift the cadence of the whole series.
	next, err := s.nextOccurrence(r, *r.StartTime)
	if err != nil {
		return fmt.Errorf("advance recurrence: %w", err)
	}
	if err := s.store.Update(ctx, id, store.Update{StartTime: &next}); err != nil {
		return fmt.Errorf("store next occurrence: %w", err)
	}
	s.log.Info("reminder fired",
		logx.String("id", ShortID(id)),
		logx.String("room", r.RoomID),
		logx.Time("next", next),
	)
	return nil
}

func (s *Service) nextOccurrence(r *store.Reminder, after time.Time) (time.Time, error) {
	uc := s.userContext(r.CreatorID)
	if r.CronSpec != "" {
		rule, err := recur.ParseCron(r.CronSpec, uc.Location)
		if err != nil {
			return time.Time{}, err
		}
		return rule.Next(after)
	}
	next, _, err := dateparse.Parse(r.RecurPhrase, uc, after, false)
	if err != nil {
		return time.Time{}, err
	}
	return next, nil
}
