package traffic

import (
	"strings"
	"time"
)

// Mode selects where a cycle's data comes from.
type Mode int

const (
	ModeDisabled Mode = iota // no API key, nothing to query
	ModeLive
	ModeDemo
)

func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeDemo:
		return "demo"
	default:
		return "disabled"
	}
}

// DemoKey is the API key literal that switches the client into demo mode.
const DemoKey = "demo"

// Expected refresh cadence at the call site.
const (
	LiveRefreshInterval = 300 * time.Second
	DemoRefreshInterval = 60 * time.Second
)

// RefreshConfig is the immutable configuration handed to one refresh cycle.
type RefreshConfig struct {
	APIKey   string
	DemoMode bool
}

// IsDemoKey reports whether key is the demo literal (case-insensitive).
func IsDemoKey(key string) bool {
	return strings.EqualFold(strings.TrimSpace(key), DemoKey)
}

// Mode resolves the data source for the configuration.
func (c RefreshConfig) Mode() Mode {
	switch {
	case c.DemoMode || IsDemoKey(c.APIKey):
		return ModeDemo
	case strings.TrimSpace(c.APIKey) == "":
		return ModeDisabled
	default:
		return ModeLive
	}
}

// RefreshInterval returns the expected trigger cadence for the mode.
func (c RefreshConfig) RefreshInterval() time.Duration {
	if c.Mode() == ModeDemo {
		return DemoRefreshInterval
	}
	return LiveRefreshInterval
}
