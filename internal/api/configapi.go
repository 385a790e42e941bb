package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ardenhall/voicegw/internal/endpoint"
	"github.com/ardenhall/voicegw/internal/protocol"
)

// handleGetConfig serves the stored configuration documents. With
// default=1 the cloud-fetched defaults are served instead; those return
// 404 when the startup fetch failed.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	useDefault := r.URL.Query().Get("default") == "1"

	switch r.URL.Query().Get("type") {
	case "config":
		if useDefault {
			s.writeDefault(w, func() json.RawMessage { return s.defaults.Config })
			return
		}
		config, err := s.store.GetConfig(r.Context())
		if err != nil {
			s.logger.Error("loading config", "error", err)
			writeInternalError(w, "failed to load configuration")
			return
		}
		writeJSON(w, http.StatusOK, config)
	case "nvs":
		if useDefault {
			s.writeDefault(w, func() json.RawMessage { return s.defaults.NVS })
			return
		}
		nvs, err := s.store.GetNVS(r.Context())
		if err != nil {
			s.logger.Error("loading nvs", "error", err)
			writeInternalError(w, "failed to load NVS values")
			return
		}
		writeJSON(w, http.StatusOK, nvs)
	case "tz":
		s.writeDefault(w, func() json.RawMessage { return s.defaults.TZ })
	default:
		writeBadRequest(w, "unknown config type")
	}
}

// writeDefault serves one cloud-fetched document or 404 when the fetch
// failed at startup.
func (s *Server) writeDefault(w http.ResponseWriter, doc func() json.RawMessage) {
	if s.defaults == nil {
		writeNotFound(w, "cloud defaults unavailable")
		return
	}
	raw := doc()
	if len(raw) == 0 {
		writeNotFound(w, "cloud defaults unavailable")
		return
	}
	writeRawJSON(w, http.StatusOK, raw)
}

// handleSaveConfig stores a configuration document. Saving the device
// configuration re-resolves the endpoint bridge target so endpoint
// changes take effect without a restart; with apply=1 the new
// configuration is also pushed to the named device.
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	switch r.URL.Query().Get("type") {
	case "config":
		if err := s.store.SaveConfig(r.Context(), body); err != nil {
			s.logger.Error("saving config", "error", err)
			writeBadRequest(w, fmt.Sprintf("failed to save configuration: %v", err))
			return
		}
		s.reloadEndpoint(body)

		if r.URL.Query().Get("apply") == "1" {
			hostname := r.URL.Query().Get("hostname")
			if hostname == "" {
				writeBadRequest(w, "hostname is required with apply=1")
				return
			}
			if err := s.pushConfig(hostname, body); err != nil {
				writeInternalError(w, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, "success")
	case "nvs":
		if err := s.store.SaveNVS(r.Context(), body); err != nil {
			s.logger.Error("saving nvs", "error", err)
			writeBadRequest(w, fmt.Sprintf("failed to save NVS values: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, "success")
	default:
		writeBadRequest(w, "unknown config type")
	}
}

// reloadEndpoint re-resolves the endpoint bridge target from the saved
// configuration. Failures are logged, not surfaced: a configuration
// without a usable endpoint is legal, the bridge just keeps its current
// target.
func (s *Server) reloadEndpoint(settings map[string]any) {
	if s.bridge == nil {
		return
	}

	cfg, err := endpoint.ConfigFromSettings(settings)
	if err != nil {
		if errors.Is(err, endpoint.ErrConfigMissing) {
			s.logger.Debug("saved config has no endpoint", "error", err)
		} else {
			s.logger.Warn("saved config endpoint not usable", "error", err)
		}
		return
	}

	if err := s.bridge.UpdateConfig(cfg); err != nil {
		s.logger.Warn("endpoint reload rejected", "error", err)
	}
}

// pushConfig delivers the configuration document to one device.
func (s *Server) pushConfig(hostname string, settings map[string]any) error {
	id, err := s.registry.LookupHostname(hostname)
	if err != nil {
		return fmt.Errorf("client with hostname %s not found", hostname)
	}

	frame, err := protocol.EncodeConfigPush(settings)
	if err != nil {
		return fmt.Errorf("failed to encode configuration")
	}
	if err := s.registry.Send(id, frame); err != nil {
		return fmt.Errorf("failed to push configuration to %s", hostname)
	}
	return nil
}
