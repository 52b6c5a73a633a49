// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/rdmonitor/rdmon/domain/account"
	"github.com/rdmonitor/rdmon/domain/settings"
	"github.com/rdmonitor/rdmon/domain/traffic"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time

	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// Random abstracts randomness for testability.
type Random interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Remote API Ports
// -----------------------------------------------------------------------------

// TrafficSource queries the remote traffic endpoints with one credential.
// Every error it returns is a *traffic.QueryError.
type TrafficSource interface {
	// DetailsTotal returns the summed bytes of traffic/details for [start, end].
	DetailsTotal(ctx context.Context, start, end string) (int64, error)

	// Days returns the per-day host breakdown of traffic/details for [start, end].
	Days(ctx context.Context, start, end string) ([]traffic.Day, error)

	// Hosts returns the per-host cumulative usage, sorted descending.
	Hosts(ctx context.Context) ([]traffic.HostTraffic, error)
}

// TrafficSourceFactory binds a TrafficSource to an API key.
type TrafficSourceFactory func(apiKey string) TrafficSource

// AccountSource fetches the account profile behind a credential.
type AccountSource interface {
	Profile(ctx context.Context, apiKey string) (account.Profile, error)
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// SettingsStore persists user settings.
type SettingsStore interface {
	// Get retrieves a single setting.
	Get(ctx context.Context, key string) (settings.Setting, error)

	// GetAll retrieves every setting as a map.
	GetAll(ctx context.Context) (settings.Settings, error)

	// Set stores or updates a setting.
	Set(ctx context.Context, key, value string, encrypted bool) error

	// SetBatch stores several settings atomically. Sensitive keys are
	// flagged encrypted; values must already be sealed.
	SetBatch(ctx context.Context, batch settings.Settings) error

	// Delete removes a setting.
	Delete(ctx context.Context, key string) error
}

// Sealer encrypts sensitive setting values at rest.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}
