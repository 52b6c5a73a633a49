// Package memory provides in-memory implementations of storage ports.
// Used for tests and for running without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rdmonitor/rdmon/domain/settings"
	"github.com/rdmonitor/rdmon/ports"
)

// SettingsStore is an in-memory implementation of ports.SettingsStore.
type SettingsStore struct {
	mu    sync.RWMutex
	items map[string]settings.Setting
	now   func() time.Time
}

// NewSettingsStore creates a new in-memory settings store.
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{
		items: make(map[string]settings.Setting),
		now:   time.Now,
	}
}

// Get retrieves a single setting by key.
func (s *SettingsStore) Get(ctx context.Context, key string) (settings.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[key]
	if !ok {
		return settings.Setting{}, settings.ErrNotFound
	}
	return item, nil
}

// GetAll retrieves all settings as a map.
func (s *SettingsStore) GetAll(ctx context.Context) (settings.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(settings.Settings, len(s.items))
	for k, item := range s.items {
		result[k] = item.Value
	}
	return result, nil
}

// Set stores or updates a setting.
func (s *SettingsStore) Set(ctx context.Context, key, value string, encrypted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = settings.Setting{Key: key, Value: value, Encrypted: encrypted, UpdatedAt: s.now()}
	return nil
}

// SetBatch stores or updates multiple settings.
func (s *SettingsStore) SetBatch(ctx context.Context, batch settings.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, v := range batch {
		s.items[k] = settings.Setting{Key: k, Value: v, Encrypted: settings.IsSensitive(k), UpdatedAt: now}
	}
	return nil
}

// Delete removes a setting. Deleting a missing key is not an error.
func (s *SettingsStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

var _ ports.SettingsStore = (*SettingsStore)(nil)
