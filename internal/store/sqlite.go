package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means the driver default
}

type sqliteStore struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database, applies pragmas, and runs
// migrations.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")
	// The subscription cascade relies on foreign keys being enforced.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const reminderColumns = `id, room_id, creator_id, message, start_time, cron_spec,
	recur_phrase, is_agenda, room_wide, reply_to, confirmation_ref, created_at`

func (s *sqliteStore) Create(ctx context.Context, r *Reminder) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (`+reminderColumns+`)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT (id) DO NOTHING`,
		r.ID, r.RoomID, r.CreatorID, r.Message, millisPtr(r.StartTime), r.CronSpec,
		r.RecurPhrase, boolInt(r.IsAgenda), boolInt(r.RoomWide), r.ReplyTo,
		r.ConfirmationRef, r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrExists, r.ID)
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*Reminder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

func (s *sqliteStore) Update(ctx context.Context, id string, upd Update) error {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	switch {
	case upd.ClearStartTime:
		sets = append(sets, "start_time = NULL")
	case upd.StartTime != nil:
		sets = append(sets, "start_time = ?")
		args = append(args, upd.StartTime.UnixMilli())
	}
	if upd.Message != nil {
		sets = append(sets, "message = ?")
		args = append(args, *upd.Message)
	}
	if upd.ConfirmationRef != nil {
		sets = append(sets, "confirmation_ref = ?")
		args = append(args, *upd.ConfirmationRef)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	// Subscriptions go with the reminder via ON DELETE CASCADE.
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *sqliteStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*Reminder, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE start_time IS NOT NULL AND start_time <= ? AND is_agenda = 0
		 ORDER BY start_time ASC LIMIT ?`,
		now.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

func (s *sqliteStore) ListRoom(ctx context.Context, roomID string) ([]*Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE room_id = ?
		 ORDER BY start_time IS NULL, start_time ASC, created_at ASC`,
		roomID)
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

func (s *sqliteStore) ListAll(ctx context.Context) ([]*Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 ORDER BY start_time IS NULL, start_time ASC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	return collectReminders(rows)
}

func (s *sqliteStore) AddSubscription(ctx context.Context, reminderID, userID, ref string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (reminder_id, user_id, ref) VALUES (?,?,?)
		 ON CONFLICT (reminder_id, user_id) DO UPDATE SET ref = excluded.ref`,
		reminderID, userID, ref)
	if err != nil {
		// FK violation: parent reminder is gone.
		return fmt.Errorf("add subscription: %w", err)
	}
	_, _ = res.RowsAffected()
	return nil
}

func (s *sqliteStore) RemoveSubscription(ctx context.Context, reminderID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE reminder_id = ? AND user_id = ?`,
		reminderID, userID)
	return err
}

func (s *sqliteStore) ListSubscriptions(ctx context.Context, reminderID string) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reminder_id, user_id, ref FROM subscriptions
		 WHERE reminder_id = ? ORDER BY user_id ASC`, reminderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ReminderID, &sub.UserID, &sub.Ref); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *sqliteStore) SetUserTimezone(ctx context.Context, userID, timezone string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, timezone) VALUES (?,?)
		 ON CONFLICT (user_id) DO UPDATE SET timezone = excluded.timezone`,
		userID, timezone)
	return err
}

func (s *sqliteStore) SetUserLocale(ctx context.Context, userID, loc string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, locale) VALUES (?,?)
		 ON CONFLICT (user_id) DO UPDATE SET locale = excluded.locale`,
		userID, loc)
	return err
}

func (s *sqliteStore) ListUserSettings(ctx context.Context) ([]UserSettings, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, timezone, locale FROM user_settings ORDER BY user_id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []UserSettings
	for rows.Next() {
		var us UserSettings
		if err := rows.Scan(&us.UserID, &us.Timezone, &us.Locale); err != nil {
			return nil, err
		}
		out = append(out, us)
	}
	return out, rows.Err()
}

// ---- row helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*Reminder, error) {
	var (
		r        Reminder
		startMS  sql.NullInt64
		isAgenda int
		roomWide int
		created  int64
	)
	err := row.Scan(&r.ID, &r.RoomID, &r.CreatorID, &r.Message, &startMS, &r.CronSpec,
		&r.RecurPhrase, &isAgenda, &roomWide, &r.ReplyTo, &r.ConfirmationRef, &created)
	if err != nil {
		return nil, err
	}
	if startMS.Valid {
		t := time.UnixMilli(startMS.Int64).UTC()
		r.StartTime = &t
	}
	r.IsAgenda = isAgenda != 0
	r.RoomWide = roomWide != 0
	r.CreatedAt = time.UnixMilli(created).UTC()
	return &r, nil
}

func collectReminders(rows *sql.Rows) ([]*Reminder, error) {
	defer func() { _ = rows.Close() }()
	var out []*Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func millisPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
