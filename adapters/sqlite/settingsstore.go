package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rdmonitor/rdmon/domain/settings"
	"github.com/rdmonitor/rdmon/ports"
)

const upsertSetting = `INSERT INTO settings (key, value, encrypted, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		encrypted = excluded.encrypted,
		updated_at = excluded.updated_at`

// SettingsStore implements ports.SettingsStore using SQLite.
type SettingsStore struct {
	db  *DB
	now func() time.Time
}

// NewSettingsStore creates a new settings store.
func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db, now: time.Now}
}

// Get retrieves a single setting by key.
func (s *SettingsStore) Get(ctx context.Context, key string) (settings.Setting, error) {
	var (
		setting   settings.Setting
		encrypted int
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT key, value, encrypted, updated_at FROM settings WHERE key = ?`,
		key,
	).Scan(&setting.Key, &setting.Value, &encrypted, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.Setting{}, settings.ErrNotFound
	}
	if err != nil {
		return settings.Setting{}, fmt.Errorf("get setting %s: %w", key, err)
	}

	setting.Encrypted = encrypted != 0
	setting.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return setting, nil
}

// GetAll retrieves all settings as a map.
func (s *SettingsStore) GetAll(ctx context.Context) (settings.Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	result := make(settings.Settings)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		result[key] = value
	}
	return result, rows.Err()
}

// Set stores or updates a setting.
func (s *SettingsStore) Set(ctx context.Context, key, value string, encrypted bool) error {
	_, err := s.db.ExecContext(ctx, upsertSetting, key, value, boolInt(encrypted), s.stamp())
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// SetBatch stores or updates multiple settings in one transaction.
func (s *SettingsStore) SetBatch(ctx context.Context, batch settings.Settings) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSetting)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	stamp := s.stamp()
	for key, value := range batch {
		if _, err := stmt.ExecContext(ctx, key, value, boolInt(settings.IsSensitive(key)), stamp); err != nil {
			return fmt.Errorf("set setting %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Delete removes a setting. Deleting a missing key is not an error.
func (s *SettingsStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

func (s *SettingsStore) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ports.SettingsStore = (*SettingsStore)(nil)
