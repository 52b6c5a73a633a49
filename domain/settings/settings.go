// Package settings provides value types for user settings.
// Settings are stored in the database and loaded at runtime.
package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by stores when a key has no stored value.
	ErrNotFound = errors.New("setting not found")
	// ErrInvalid wraps every error returned by Validate.
	ErrInvalid = errors.New("invalid setting")
)

// Setting represents a single stored setting (immutable value type).
type Setting struct {
	Key       string
	Value     string
	Encrypted bool
	UpdatedAt time.Time
}

// Settings is a collection of settings with helper methods.
type Settings map[string]string

// Get returns a setting value or empty string if not found.
func (s Settings) Get(key string) string {
	return s[key]
}

// GetOrDefault returns a setting value or the default if not found.
func (s Settings) GetOrDefault(key, defaultValue string) string {
	if v, ok := s[key]; ok && v != "" {
		return v
	}
	return defaultValue
}

// GetBool returns a setting as bool (true if "true", "1", "yes", "on").
func (s Settings) GetBool(key string) bool {
	return ParseBool(s[key])
}

// GetInt returns a setting as int or default if not found/invalid.
func (s Settings) GetInt(key string, defaultValue int) int {
	i, err := strconv.Atoi(strings.TrimSpace(s[key]))
	if err != nil {
		return defaultValue
	}
	return i
}

// GetFloat returns a setting as float64 or default if not found/invalid.
func (s Settings) GetFloat(key string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s[key]), 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// ParseBool accepts "true", "1", "yes" and "on" (case-insensitive).
func ParseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// Known setting keys.
const (
	KeyAPIKey                  = "api_key"
	KeyDemoMode                = "demo_mode"
	KeyAutoRefresh             = "auto_refresh"
	KeyRefreshInterval         = "refresh_interval"          // seconds
	KeyTrafficWarningThreshold = "traffic_warning_threshold" // percent
)

// Bounds of the traffic warning threshold, in percent.
const (
	MinWarningThreshold = 50.0
	MaxWarningThreshold = 95.0
)

// KnownKeys returns every key the application reads.
func KnownKeys() []string {
	return []string{
		KeyAPIKey,
		KeyDemoMode,
		KeyAutoRefresh,
		KeyRefreshInterval,
		KeyTrafficWarningThreshold,
	}
}

// IsKnown returns true if key is one of KnownKeys.
func IsKnown(key string) bool {
	for _, k := range KnownKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// SensitiveKeys returns keys that contain secrets and should be encrypted.
func SensitiveKeys() []string {
	return []string{KeyAPIKey}
}

// IsSensitive returns true if the key contains sensitive data.
func IsSensitive(key string) bool {
	for _, k := range SensitiveKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// Defaults returns default values for settings.
func Defaults() Settings {
	return Settings{
		KeyDemoMode:                "false",
		KeyAutoRefresh:             "true",
		KeyRefreshInterval:         "300",
		KeyTrafficWarningThreshold: "80",
	}
}

// Merge merges defaults with loaded settings, preferring loaded values.
func Merge(loaded Settings) Settings {
	result := Defaults()
	for k, v := range loaded {
		result[k] = v
	}
	return result
}

// Validate checks a value before it is stored.
// This is a PURE function.
func Validate(key, value string) error {
	switch key {
	case KeyAPIKey:
		if strings.ContainsAny(value, " \t\r\n") {
			return fmt.Errorf("%w: %s must not contain whitespace", ErrInvalid, key)
		}
	case KeyDemoMode, KeyAutoRefresh:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "false", "1", "0", "yes", "no", "on", "off":
		default:
			return fmt.Errorf("%w: %s: %q is not a boolean", ErrInvalid, key, value)
		}
	case KeyRefreshInterval:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: %s must be a positive number of seconds", ErrInvalid, key)
		}
	case KeyTrafficWarningThreshold:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || f < MinWarningThreshold || f > MaxWarningThreshold {
			return fmt.Errorf("%w: %s must be between %.0f and %.0f", ErrInvalid, key, MinWarningThreshold, MaxWarningThreshold)
		}
	default:
		return fmt.Errorf("%w: unknown key %q", ErrInvalid, key)
	}
	return nil
}

// Preferences is the typed view of the non-credential settings.
type Preferences struct {
	DemoMode         bool
	AutoRefresh      bool
	RefreshInterval  time.Duration
	WarningThreshold float64
}

// PreferencesFrom reads typed preferences, falling back to defaults for
// missing or invalid values.
// This is a PURE function.
func PreferencesFrom(s Settings) Preferences {
	d := Defaults()
	interval := s.GetInt(KeyRefreshInterval, d.GetInt(KeyRefreshInterval, 300))
	if interval <= 0 {
		interval = d.GetInt(KeyRefreshInterval, 300)
	}
	threshold := s.GetFloat(KeyTrafficWarningThreshold, d.GetFloat(KeyTrafficWarningThreshold, 80))
	if threshold < MinWarningThreshold || threshold > MaxWarningThreshold {
		threshold = d.GetFloat(KeyTrafficWarningThreshold, 80)
	}

	autoRefresh := d.GetBool(KeyAutoRefresh)
	if v, ok := s[KeyAutoRefresh]; ok && v != "" {
		autoRefresh = ParseBool(v)
	}

	return Preferences{
		DemoMode:         s.GetBool(KeyDemoMode),
		AutoRefresh:      autoRefresh,
		RefreshInterval:  time.Duration(interval) * time.Second,
		WarningThreshold: threshold,
	}
}

// OverWarning reports whether usedPercent reaches the warning threshold.
func (p Preferences) OverWarning(usedPercent float64) bool {
	return usedPercent >= p.WarningThreshold
}

// Mask hides all but the last four characters of a secret.
func Mask(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}

// Redacted returns a copy with every sensitive value masked.
func (s Settings) Redacted() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		if IsSensitive(k) {
			v = Mask(v)
		}
		out[k] = v
	}
	return out
}
