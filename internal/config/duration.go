package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration settings (broadcast.tick, menu.timeout, ...) are Go duration
// strings in the config file. Absent means "use the built-in default";
// negative is always a mistake and fails the load.

// ParseDurationField parses one duration setting. path names the field in
// error messages, e.g. "broadcast.tick". Empty input parses to zero.
func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault substitutes def when the field is unset or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
