package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration fields are plain Go duration strings ("90s", "5m") so the config
// tree stays free of custom JSON types. An empty or whitespace value means
// the field is unset and parses to zero.

// ParseDurationField parses one duration-valued config field; path names the
// field in error messages.
func ParseDurationField(path, raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(trimmed)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault substitutes def for unset fields. The Resolve*
// helpers on Config use it to apply the documented defaults.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
