package configstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ardenhall/voicegw/internal/infrastructure/database"
	_ "github.com/ardenhall/voicegw/migrations"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5000,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	return New(db.DB)
}

func TestConfigRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := map[string]any{
		"speech_rec_mode":  "WIS",
		"hass_port":        float64(8123),
		"hass_tls":         false,
		"wake_confirmation": true,
		"mic_gain":         float64(14),
	}
	if err := store.SaveConfig(ctx, in); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	out, err := store.GetConfig(ctx)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d values, want %d", len(out), len(in))
	}
	for name, want := range in {
		if got := out[name]; got != want {
			t.Errorf("config %q = %v (%T), want %v (%T)", name, got, got, want, want)
		}
	}
}

func TestConfigUpsertOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveConfig(ctx, map[string]any{"mic_gain": float64(10)}); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if err := store.SaveConfig(ctx, map[string]any{"mic_gain": float64(14)}); err != nil {
		t.Fatalf("SaveConfig overwrite: %v", err)
	}

	out, err := store.GetConfig(ctx)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if got := out["mic_gain"]; got != float64(14) {
		t.Errorf("mic_gain = %v, want 14", got)
	}
}

func TestConfigEmptyStore(t *testing.T) {
	store := newTestStore(t)

	out, err := store.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty config, got %v", out)
	}
}

func TestConfigRejectsNestedValues(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveConfig(context.Background(), map[string]any{
		"nested": map[string]any{"a": 1},
	})
	if err == nil {
		t.Fatal("expected error for nested value")
	}
}

func TestNVSRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := map[string]any{
		"WAS": map[string]any{
			"URL": "ws://gateway.local:8502/ws",
		},
		"WIFI": map[string]any{
			"SSID": "homelab",
			"PSK":  "correct horse battery staple",
		},
	}
	if err := store.SaveNVS(ctx, in); err != nil {
		t.Fatalf("SaveNVS: %v", err)
	}

	out, err := store.GetNVS(ctx)
	if err != nil {
		t.Fatalf("GetNVS: %v", err)
	}
	if got := out["WAS"]["URL"]; got != "ws://gateway.local:8502/ws" {
		t.Errorf("WAS/URL = %q", got)
	}
	if got := out["WIFI"]["SSID"]; got != "homelab" {
		t.Errorf("WIFI/SSID = %q", got)
	}
	if got := out["WIFI"]["PSK"]; got != "correct horse battery staple" {
		t.Errorf("WIFI/PSK = %q", got)
	}
}

func TestNVSRejectsNonObjectNamespace(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveNVS(context.Background(), map[string]any{"WAS": "not an object"})
	if err == nil {
		t.Fatal("expected error for non-object namespace")
	}
}

func TestNVSSeparateFromConfig(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveConfig(ctx, map[string]any{"URL": "from-config"}); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if err := store.SaveNVS(ctx, map[string]any{"WAS": map[string]any{"URL": "from-nvs"}}); err != nil {
		t.Fatalf("SaveNVS: %v", err)
	}

	nvs, err := store.GetNVS(ctx)
	if err != nil {
		t.Fatalf("GetNVS: %v", err)
	}
	if got := nvs["WAS"]["URL"]; got != "from-nvs" {
		t.Errorf("nvs WAS/URL = %q, want from-nvs", got)
	}
	cfg, err := store.GetConfig(ctx)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if got := cfg["URL"]; got != "from-config" {
		t.Errorf("config URL = %q, want from-config", got)
	}
}
