// Package session owns per-user runtime state: resolved locale/timezone
// preferences and the sliding-window queue used to rate-limit reminder
// creation. State is created lazily on first interaction and lives only for
// the process run; the rate-limit window resets on restart.
package session

import (
	"sync"
	"time"

	"remindbot/internal/locale"
)

// UserState is the mutable runtime state of a single user.
// All methods take the user's own lock; independent users never contend.
type UserState struct {
	mu sync.Mutex

	loc    *locale.Locale
	tzName string
	tzLoc  *time.Location

	// recent holds creation timestamps inside the rate window, oldest first.
	recent []time.Time
}

// Snapshot of the resolved preferences for parsing.
func (s *UserState) Locale() *locale.Locale {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

func (s *UserState) Timezone() (string, *time.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tzName, s.tzLoc
}

func (s *UserState) SetLocale(l *locale.Locale) {
	s.mu.Lock()
	s.loc = l
	s.mu.Unlock()
}

func (s *UserState) SetTimezone(name string, loc *time.Location) {
	s.mu.Lock()
	s.tzName = name
	s.tzLoc = loc
	s.mu.Unlock()
}

// CheckRateLimit applies a sliding window to reminder creation.
//
// Timestamps older than now-window are evicted from the front of the queue.
// If the remaining count is below maxCalls, now is recorded and the new
// count returned with recorded=true. At or above the cap nothing is
// recorded and the unmodified count comes back; recorded=false tells the
// caller the window was already full.
func (s *UserState) CheckRateLimit(now time.Time, maxCalls int, window time.Duration) (count int, recorded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cut := now.Add(-window)
	for len(s.recent) > 0 && s.recent[0].Before(cut) {
		s.recent = s.recent[1:]
	}
	if len(s.recent) < maxCalls {
		s.recent = append(s.recent, now)
		return len(s.recent), true
	}
	return len(s.recent), false
}

// Defaults are the process-wide fallbacks applied to users without
// personal settings.
type Defaults struct {
	Locale   *locale.Locale
	TZName   string
	Location *time.Location
}

// Registry hands out per-user state, creating it on first use.
type Registry struct {
	mu       sync.Mutex
	users    map[string]*UserState
	defaults Defaults
}

func NewRegistry(defaults Defaults) *Registry {
	return &Registry{
		users:    make(map[string]*UserState),
		defaults: defaults,
	}
}

// Get returns the state for userID, creating it with the registry defaults
// on first interaction.
func (r *Registry) Get(userID string) *UserState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.users[userID]
	if !ok {
		st = &UserState{
			loc:    r.defaults.Locale,
			tzName: r.defaults.TZName,
			tzLoc:  r.defaults.Location,
		}
		r.users[userID] = st
	}
	return st
}

// SetDefaults swaps the fallbacks applied to future first-time users.
// Existing state is left untouched.
func (r *Registry) SetDefaults(d Defaults) {
	r.mu.Lock()
	r.defaults = d
	r.mu.Unlock()
}
