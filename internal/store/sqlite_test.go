package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "remind.db"),
		BusyTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testReminder(id string, at *time.Time) *Reminder {
	return &Reminder{
		ID:        id,
		RoomID:    "!room:example.org",
		CreatorID: "@alice:example.org",
		Message:   "water the plants",
		StartTime: at,
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	r := testReminder("$evt1", &at)
	r.CronSpec = "30 9 * * mon-fri"
	r.RoomWide = true
	r.ReplyTo = "$orig"

	if err := st.Create(ctx, r); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	got, err := st.Get(ctx, "$evt1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.StartTime == nil || !got.StartTime.Equal(at) {
		t.Fatalf("StartTime = %v, want %v", got.StartTime, at)
	}
	if got.CronSpec != r.CronSpec || !got.RoomWide || got.ReplyTo != "$orig" {
		t.Fatalf("fields not preserved: %+v", got)
	}
	if !got.Recurring() {
		t.Fatal("cron reminder must report Recurring")
	}
}

func TestCreateDuplicate(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	at := time.Now().UTC()
	if err := st.Create(ctx, testReminder("$dup", &at)); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := st.Create(ctx, testReminder("$dup", &at)); !errors.Is(err, ErrExists) {
		t.Fatalf("duplicate Create = %v, want ErrExists", err)
	}
}

func TestListDueOrderingAndAgenda(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	early := now.Add(-2 * time.Hour)
	late := now.Add(-1 * time.Hour)
	future := now.Add(time.Hour)

	if err := st.Create(ctx, testReminder("$late", &late)); err != nil {
		t.Fatal(err)
	}
	if err := st.Create(ctx, testReminder("$early", &early)); err != nil {
		t.Fatal(err)
	}
	if err := st.Create(ctx, testReminder("$future", &future)); err != nil {
		t.Fatal(err)
	}
	agenda := testReminder("$agenda", nil)
	agenda.IsAgenda = true
	if err := st.Create(ctx, agenda); err != nil {
		t.Fatal(err)
	}

	due, err := st.ListDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListDue error: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("len(due) = %d, want 2", len(due))
	}
	if due[0].ID != "$early" || due[1].ID != "$late" {
		t.Fatalf("order = [%s %s], want [$early $late]", due[0].ID, due[1].ID)
	}
}

func TestUpdateStartTime(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if err := st.Create(ctx, testReminder("$r", &at)); err != nil {
		t.Fatal(err)
	}

	next := at.AddDate(0, 0, 7)
	if err := st.Update(ctx, "$r", Update{StartTime: &next}); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	got, err := st.Get(ctx, "$r")
	if err != nil {
		t.Fatal(err)
	}
	if got.StartTime == nil || !got.StartTime.Equal(next) {
		t.Fatalf("StartTime = %v, want %v", got.StartTime, next)
	}

	if err := st.Update(ctx, "$missing", Update{StartTime: &next}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update missing = %v, want ErrNotFound", err)
	}
}

func TestDeleteCascadesSubscriptions(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	at := time.Now().UTC().Add(time.Hour)
	if err := st.Create(ctx, testReminder("$r", &at)); err != nil {
		t.Fatal(err)
	}
	if err := st.AddSubscription(ctx, "$r", "@alice:example.org", "$react1"); err != nil {
		t.Fatalf("AddSubscription error: %v", err)
	}
	if err := st.AddSubscription(ctx, "$r", "@bob:example.org", "$react2"); err != nil {
		t.Fatal(err)
	}
	// Subscribing twice keeps the pair unique.
	if err := st.AddSubscription(ctx, "$r", "@bob:example.org", "$react3"); err != nil {
		t.Fatal(err)
	}

	subs, err := st.ListSubscriptions(ctx, "$r")
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 2 {
		t.Fatalf("len(subs) = %d, want 2", len(subs))
	}

	if err := st.Delete(ctx, "$r"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	subs, err = st.ListSubscriptions(ctx, "$r")
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 0 {
		t.Fatalf("orphaned subscriptions survived the cascade: %v", subs)
	}
}

func TestUserSettingsUpsert(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.SetUserTimezone(ctx, "@alice:example.org", "Asia/Tokyo"); err != nil {
		t.Fatalf("SetUserTimezone error: %v", err)
	}
	if err := st.SetUserLocale(ctx, "@alice:example.org", "en-GB"); err != nil {
		t.Fatalf("SetUserLocale error: %v", err)
	}
	// Re-setting one field must not wipe the other.
	if err := st.SetUserTimezone(ctx, "@alice:example.org", "Europe/Berlin"); err != nil {
		t.Fatal(err)
	}
	if err := st.SetUserLocale(ctx, "@bob:example.org", "de"); err != nil {
		t.Fatal(err)
	}

	settings, err := st.ListUserSettings(ctx)
	if err != nil {
		t.Fatalf("ListUserSettings error: %v", err)
	}
	if len(settings) != 2 {
		t.Fatalf("len(settings) = %d, want 2", len(settings))
	}
	alice := settings[0]
	if alice.UserID != "@alice:example.org" || alice.Timezone != "Europe/Berlin" || alice.Locale != "en-GB" {
		t.Fatalf("alice = %+v", alice)
	}
	bob := settings[1]
	if bob.Timezone != "" || bob.Locale != "de" {
		t.Fatalf("bob = %+v", bob)
	}
}

func TestRemoveSubscription(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	at := time.Now().UTC().Add(time.Hour)
	if err := st.Create(ctx, testReminder("$r", &at)); err != nil {
		t.Fatal(err)
	}
	if err := st.AddSubscription(ctx, "$r", "@alice:example.org", ""); err != nil {
		t.Fatal(err)
	}
	if err := st.RemoveSubscription(ctx, "$r", "@alice:example.org"); err != nil {
		t.Fatalf("RemoveSubscription error: %v", err)
	}
	subs, err := st.ListSubscriptions(ctx, "$r")
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 0 {
		t.Fatalf("len(subs) = %d, want 0", len(subs))
	}
}
