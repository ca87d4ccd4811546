package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration document.
//
// Files may be JSON or YAML; unknown fields are rejected so typos fail fast.
// All duration-valued fields are Go duration strings (e.g. "500ms", "30s", "1m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Store     StoreConfig     `json:"store"`
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`
	Defaults  DefaultsConfig  `json:"defaults,omitempty"`
	Limits    LimitsConfig    `json:"limits,omitempty"`
	Notifier  NotifierConfig  `json:"notifier,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// PollTimeout is the long-poll timeout. Default: "10s".
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console *bool         `json:"console,omitempty"` // default: true
	File    FileLogConfig `json:"file,omitempty"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

type StoreConfig struct {
	Path string `json:"path"`

	// BusyTimeout maps to SQLite's busy_timeout pragma. Default: "5s".
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SchedulerConfig controls the dispatch loop.
//
// TickInterval is a deployment knob, not a correctness constant: reminders
// fire on the first tick at or after their fire time.
type SchedulerConfig struct {
	TickInterval string `json:"tick_interval,omitempty"` // default: "30s"
	BatchLimit   int    `json:"batch_limit,omitempty"`   // default: 100
}

// DefaultsConfig supplies the process-wide timezone/locale applied when a
// user has not set personal values.
type DefaultsConfig struct {
	Timezone string `json:"timezone,omitempty"` // default: "UTC"
	Locale   string `json:"locale,omitempty"`   // default: "en"
}

// LimitsConfig bounds reminder creation per user (sliding window).
type LimitsConfig struct {
	MaxPerWindow  int    `json:"max_per_window,omitempty"` // default: 5
	WindowMinutes string `json:"window,omitempty"`         // default: "60m"
}

// NotifierConfig controls outbound sends: a shared rate limit plus retry
// with exponential backoff.
type NotifierConfig struct {
	RatePerSec int    `json:"rate_per_sec,omitempty"` // default: 20
	RetryMax   int    `json:"retry_max,omitempty"`    // default: 2
	RetryBase  string `json:"retry_base,omitempty"`   // default: "500ms"
}

// Normalize fills defaults in place. Call once after Parse.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Console == nil {
		t := true
		c.Logging.Console = &t
	}
	if strings.TrimSpace(c.Telegram.PollTimeout) == "" {
		c.Telegram.PollTimeout = "10s"
	}
	if strings.TrimSpace(c.Store.BusyTimeout) == "" {
		c.Store.BusyTimeout = "5s"
	}
	if strings.TrimSpace(c.Scheduler.TickInterval) == "" {
		c.Scheduler.TickInterval = "30s"
	}
	if c.Scheduler.BatchLimit <= 0 {
		c.Scheduler.BatchLimit = 100
	}
	if strings.TrimSpace(c.Defaults.Timezone) == "" {
		c.Defaults.Timezone = "UTC"
	}
	if strings.TrimSpace(c.Defaults.Locale) == "" {
		c.Defaults.Locale = "en"
	}
	if c.Limits.MaxPerWindow <= 0 {
		c.Limits.MaxPerWindow = 5
	}
	if strings.TrimSpace(c.Limits.WindowMinutes) == "" {
		c.Limits.WindowMinutes = "60m"
	}
	if c.Notifier.RatePerSec <= 0 {
		c.Notifier.RatePerSec = 20
	}
	if c.Notifier.RetryMax < 0 {
		c.Notifier.RetryMax = 0
	}
	if strings.TrimSpace(c.Notifier.RetryBase) == "" {
		c.Notifier.RetryBase = "500ms"
	}
}

// Validate checks cross-field constraints and duration syntax.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("store.path is required")
	}
	durs := []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"store.busy_timeout", c.Store.BusyTimeout},
		{"scheduler.tick_interval", c.Scheduler.TickInterval},
		{"limits.window", c.Limits.WindowMinutes},
		{"notifier.retry_base", c.Notifier.RetryBase},
	}
	for _, d := range durs {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			return err
		}
	}
	if tick, _ := ParseDurationField("scheduler.tick_interval", c.Scheduler.TickInterval); tick < time.Second {
		return fmt.Errorf("scheduler.tick_interval: must be >= 1s, got %q", c.Scheduler.TickInterval)
	}
	return nil
}

// Durations below never fail after Validate; they fall back to the
// Normalize defaults on a zero value.

func (c *Config) PollTimeout() time.Duration {
	d, _ := ParseDurationOrDefault("telegram.poll_timeout", c.Telegram.PollTimeout, 10*time.Second)
	return d
}

func (c *Config) BusyTimeout() time.Duration {
	d, _ := ParseDurationOrDefault("store.busy_timeout", c.Store.BusyTimeout, 5*time.Second)
	return d
}

func (c *Config) TickInterval() time.Duration {
	d, _ := ParseDurationOrDefault("scheduler.tick_interval", c.Scheduler.TickInterval, 30*time.Second)
	return d
}

func (c *Config) RateWindow() time.Duration {
	d, _ := ParseDurationOrDefault("limits.window", c.Limits.WindowMinutes, time.Hour)
	return d
}

func (c *Config) RetryBase() time.Duration {
	d, _ := ParseDurationOrDefault("notifier.retry_base", c.Notifier.RetryBase, 500*time.Millisecond)
	return d
}
