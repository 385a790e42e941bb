package endpoint

import (
	"errors"
	"testing"
)

func TestConfigFromSettingsHomeAssistant(t *testing.T) {
	cfg, err := ConfigFromSettings(map[string]any{
		"command_endpoint": "Home Assistant",
		"hass_host":        "ha.local",
		"hass_port":        float64(8123),
		"hass_tls":         false,
		"hass_token":       "token123",
	})
	if err != nil {
		t.Fatalf("ConfigFromSettings: %v", err)
	}
	if cfg.Kind != KindHomeAssistant {
		t.Errorf("kind = %q", cfg.Kind)
	}
	if cfg.URL != "ws://ha.local:8123/api/websocket" {
		t.Errorf("url = %q", cfg.URL)
	}
	if cfg.Token != "token123" {
		t.Errorf("token = %q", cfg.Token)
	}
}

func TestConfigFromSettingsTLS(t *testing.T) {
	cfg, err := ConfigFromSettings(map[string]any{
		"command_endpoint": "Home Assistant",
		"hass_host":        "ha.local",
		"hass_tls":         true,
	})
	if err != nil {
		t.Fatalf("ConfigFromSettings: %v", err)
	}
	if cfg.URL != "wss://ha.local:8123/api/websocket" {
		t.Errorf("url = %q, want wss with default port", cfg.URL)
	}
}

func TestConfigFromSettingsStringValues(t *testing.T) {
	// Values posted by the admin UI sometimes arrive as strings.
	cfg, err := ConfigFromSettings(map[string]any{
		"command_endpoint": "Home Assistant",
		"hass_host":        "ha.local",
		"hass_port":        "8124",
		"hass_tls":         "true",
	})
	if err != nil {
		t.Fatalf("ConfigFromSettings: %v", err)
	}
	if cfg.URL != "wss://ha.local:8124/api/websocket" {
		t.Errorf("url = %q", cfg.URL)
	}
}

func TestConfigFromSettingsMissing(t *testing.T) {
	if _, err := ConfigFromSettings(map[string]any{}); !errors.Is(err, ErrConfigMissing) {
		t.Errorf("err = %v, want ErrConfigMissing", err)
	}
	if _, err := ConfigFromSettings(map[string]any{
		"command_endpoint": "Home Assistant",
	}); !errors.Is(err, ErrConfigMissing) {
		t.Errorf("missing host err = %v, want ErrConfigMissing", err)
	}
}

func TestConfigFromSettingsUnsupportedKinds(t *testing.T) {
	for _, kind := range []string{"openHAB", "MQTT", "REST", "something-else"} {
		_, err := ConfigFromSettings(map[string]any{"command_endpoint": kind})
		if !errors.Is(err, ErrUnsupportedEndpoint) {
			t.Errorf("kind %q: err = %v, want ErrUnsupportedEndpoint", kind, err)
		}
	}
}
