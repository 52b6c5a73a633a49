package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rdmonitor/rdmon/adapters/memory"
	"github.com/rdmonitor/rdmon/domain/settings"
)

func TestSettingsStore_SetGet(t *testing.T) {
	store := memory.NewSettingsStore()
	ctx := context.Background()

	if err := store.Set(ctx, settings.KeyAPIKey, "xc1:abc", true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, settings.KeyAPIKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Value != "xc1:abc" || !got.Encrypted || got.UpdatedAt.IsZero() {
		t.Errorf("setting = %+v", got)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, settings.ErrNotFound) {
		t.Errorf("Get(missing) err = %v, want ErrNotFound", err)
	}
}

func TestSettingsStore_SetBatch(t *testing.T) {
	store := memory.NewSettingsStore()
	ctx := context.Background()

	err := store.SetBatch(ctx, settings.Settings{
		settings.KeyAPIKey:   "sealed",
		settings.KeyDemoMode: "true",
	})
	if err != nil {
		t.Fatalf("SetBatch failed: %v", err)
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 2 || all[settings.KeyDemoMode] != "true" {
		t.Errorf("GetAll = %v", all)
	}
	if s, _ := store.Get(ctx, settings.KeyAPIKey); !s.Encrypted {
		t.Error("api_key should be flagged encrypted")
	}
	if s, _ := store.Get(ctx, settings.KeyDemoMode); s.Encrypted {
		t.Error("demo_mode should not be flagged encrypted")
	}
}

func TestSettingsStore_Delete(t *testing.T) {
	store := memory.NewSettingsStore()
	ctx := context.Background()

	store.Set(ctx, settings.KeyDemoMode, "true", false)
	if err := store.Delete(ctx, settings.KeyDemoMode); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, settings.KeyDemoMode); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
	all, _ := store.GetAll(ctx)
	if len(all) != 0 {
		t.Errorf("GetAll = %v, want empty", all)
	}
}
