package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a Go duration string from the config. Empty
// means unset and yields zero; negative values are rejected so callers can
// treat any non-positive result as "apply the default".
func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: %q is not a duration: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: %q is negative", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault substitutes def when the field is unset or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
