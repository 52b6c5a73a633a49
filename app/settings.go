package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rdmonitor/rdmon/adapters/sealer"
	"github.com/rdmonitor/rdmon/domain/settings"
	"github.com/rdmonitor/rdmon/domain/traffic"
	"github.com/rdmonitor/rdmon/ports"
	"github.com/rs/zerolog"
)

// SettingsOverrides are values from the environment or config file that
// take precedence over stored settings.
type SettingsOverrides struct {
	APIKey   string // used when non-empty
	DemoMode bool   // forces demo mode when true
}

// SettingsDeps contains dependencies for SettingsService.
type SettingsDeps struct {
	Store     ports.SettingsStore
	Sealer    ports.Sealer // optional, values stored as-is when nil
	Overrides SettingsOverrides
	Logger    zerolog.Logger
}

// SettingsService provides access to application settings.
// Sensitive values are sealed on write and opened on load; the cache
// holds plaintext.
type SettingsService struct {
	store     ports.SettingsStore
	sealer    ports.Sealer
	overrides SettingsOverrides
	logger    zerolog.Logger
	mu        sync.RWMutex
	cache     settings.Settings
}

// NewSettingsService creates a new settings service.
func NewSettingsService(deps SettingsDeps) *SettingsService {
	s := &SettingsService{
		store:     deps.Store,
		sealer:    deps.Sealer,
		overrides: deps.Overrides,
		logger:    deps.Logger.With().Str("component", "settings").Logger(),
		cache:     settings.Defaults(),
	}
	if s.sealer == nil {
		s.sealer = sealer.Plain{}
	}
	return s
}

// Load loads all settings from the store and merges with defaults.
// A sensitive value that cannot be opened is dropped from the cache.
func (s *SettingsService) Load(ctx context.Context) error {
	loaded, err := s.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	for _, key := range settings.SensitiveKeys() {
		v, ok := loaded[key]
		if !ok {
			continue
		}
		plain, err := s.sealer.Open(v)
		if err == nil && sealer.IsSealed(plain) {
			err = sealer.ErrNoSecret
		}
		if err != nil {
			s.logger.Warn().Str("key", key).Err(err).Msg("stored secret could not be opened, ignoring it")
			delete(loaded, key)
			continue
		}
		loaded[key] = plain
	}

	s.mu.Lock()
	s.cache = settings.Merge(loaded)
	s.mu.Unlock()

	s.logger.Info().Int("count", len(loaded)).Msg("settings loaded from database")
	return nil
}

// Get returns a copy of the current settings, secrets in plaintext.
func (s *SettingsService) Get() settings.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(settings.Settings, len(s.cache))
	for k, v := range s.cache {
		result[k] = v
	}
	return result
}

// GetValue returns a single setting value.
func (s *SettingsService) GetValue(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Get(key)
}

// Set validates a setting and updates it in both store and cache.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	value = strings.TrimSpace(value)
	if err := settings.Validate(key, value); err != nil {
		return err
	}

	stored, err := s.seal(key, value)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, key, stored, settings.IsSensitive(key)); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()

	s.logger.Debug().Str("key", key).Msg("setting updated")
	return nil
}

// SetBatch validates and updates several settings at once. Nothing is
// written if any value is invalid.
func (s *SettingsService) SetBatch(ctx context.Context, batch settings.Settings) error {
	plain := make(settings.Settings, len(batch))
	stored := make(settings.Settings, len(batch))
	for k, v := range batch {
		v = strings.TrimSpace(v)
		if err := settings.Validate(k, v); err != nil {
			return err
		}
		sv, err := s.seal(k, v)
		if err != nil {
			return err
		}
		plain[k] = v
		stored[k] = sv
	}

	if err := s.store.SetBatch(ctx, stored); err != nil {
		return fmt.Errorf("store settings: %w", err)
	}

	s.mu.Lock()
	for k, v := range plain {
		s.cache[k] = v
	}
	s.mu.Unlock()

	s.logger.Debug().Int("count", len(batch)).Msg("settings batch updated")
	return nil
}

// Delete removes a setting; the cache falls back to its default.
func (s *SettingsService) Delete(ctx context.Context, key string) error {
	if !settings.IsKnown(key) {
		return fmt.Errorf("%w: unknown key %q", settings.ErrInvalid, key)
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	s.mu.Lock()
	if d, ok := settings.Defaults()[key]; ok {
		s.cache[key] = d
	} else {
		delete(s.cache, key)
	}
	s.mu.Unlock()

	s.logger.Debug().Str("key", key).Msg("setting deleted")
	return nil
}

// Preferences returns the typed non-credential settings.
func (s *SettingsService) Preferences() settings.Preferences {
	p := settings.PreferencesFrom(s.Get())
	if s.currentOverrides().DemoMode {
		p.DemoMode = true
	}
	return p
}

// RefreshConfig returns the immutable configuration for the next cycle.
// Overrides win over stored values.
func (s *SettingsService) RefreshConfig() traffic.RefreshConfig {
	cur := s.Get()
	cfg := traffic.RefreshConfig{
		APIKey:   strings.TrimSpace(cur.Get(settings.KeyAPIKey)),
		DemoMode: cur.GetBool(settings.KeyDemoMode),
	}
	o := s.currentOverrides()
	if o.APIKey != "" {
		cfg.APIKey = strings.TrimSpace(o.APIKey)
	}
	if o.DemoMode {
		cfg.DemoMode = true
	}
	return cfg
}

// SetOverrides replaces the overrides, e.g. after a config reload.
func (s *SettingsService) SetOverrides(o SettingsOverrides) {
	s.mu.Lock()
	s.overrides = o
	s.mu.Unlock()
}

func (s *SettingsService) currentOverrides() SettingsOverrides {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overrides
}

func (s *SettingsService) seal(key, value string) (string, error) {
	if !settings.IsSensitive(key) || value == "" {
		return value, nil
	}
	sealed, err := s.sealer.Seal(value)
	if err != nil {
		return "", fmt.Errorf("seal %s: %w", key, err)
	}
	return sealed, nil
}
