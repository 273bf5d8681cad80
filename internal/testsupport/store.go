package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"intake/internal/config"
	"intake/internal/store"
)

// MustOpenStore opens a store for tests, seeds settings from cfg, and
// registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	s, err := store.OpenPath(filepath.Join(t.TempDir(), "intake.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	if cfg != nil {
		if err := s.SaveSettings(context.Background(), store.SettingsFromConfig(cfg)); err != nil {
			t.Fatalf("seed settings: %v", err)
		}
	}
	return s
}
