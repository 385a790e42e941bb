package endpoint

import (
	"fmt"
	"strconv"
)

// Endpoint kinds as stored in the device configuration. The names match
// the values the admin UI writes.
const (
	KindHomeAssistant = "Home Assistant"
	KindOpenHAB       = "openHAB"
	KindMQTT          = "MQTT"
	KindREST          = "REST"
)

const defaultHomeAssistantPort = 8123

// Config describes the command endpoint a bridge connects to.
type Config struct {
	Kind  string
	URL   string
	Token string
}

// ConfigFromSettings resolves an endpoint configuration from the stored
// device configuration map. Returns ErrConfigMissing when no endpoint is
// configured or its connection fields are absent, and
// ErrUnsupportedEndpoint for kinds without an implementation.
func ConfigFromSettings(settings map[string]any) (*Config, error) {
	kind := asString(settings["command_endpoint"])
	if kind == "" {
		return nil, ErrConfigMissing
	}

	switch kind {
	case KindHomeAssistant:
		host := asString(settings["hass_host"])
		if host == "" {
			return nil, fmt.Errorf("%w: hass_host not set", ErrConfigMissing)
		}
		port := asInt(settings["hass_port"], defaultHomeAssistantPort)
		scheme := "ws"
		if asBool(settings["hass_tls"]) {
			scheme = "wss"
		}
		return &Config{
			Kind:  KindHomeAssistant,
			URL:   fmt.Sprintf("%s://%s:%d/api/websocket", scheme, host, port),
			Token: asString(settings["hass_token"]),
		}, nil
	case KindOpenHAB, KindMQTT, KindREST:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEndpoint, kind)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEndpoint, kind)
	}
}

func asString(v any) string {
	s, _ := v.(string) //nolint:errcheck // zero value on mismatch is intended
	return s
}

func asBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, _ := strconv.ParseBool(val) //nolint:errcheck // false on mismatch is intended
		return b
	default:
		return false
	}
}

func asInt(v any, fallback int) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}
