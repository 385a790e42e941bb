package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ardenhall/voicegw/internal/device"
	"github.com/ardenhall/voicegw/internal/protocol"
)

// clientActionRequest is the request body for POST /api/client.
type clientActionRequest struct {
	Hostname string `json:"hostname"`
	OTAURL   string `json:"ota_url,omitempty"`
}

// handleListClients returns the records of all connected devices.
func (s *Server) handleListClients(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Records())
}

// handleClientAction pushes a control frame to one device, addressed by
// hostname. Supported actions: restart and update (OTA). The config,
// identify and notify actions are declared by the admin UI but have no
// device-side support yet.
func (s *Server) handleClientAction(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")

	var req clientActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Hostname == "" {
		writeBadRequest(w, "hostname is required")
		return
	}

	var frame []byte
	switch action {
	case "restart":
		frame = protocol.EncodeRestart()
	case "update":
		var err error
		frame, err = protocol.EncodeOTAStart(req.OTAURL)
		if err != nil {
			writeInternalError(w, "failed to encode update command")
			return
		}
	case "config", "identify", "notify":
		writeUnimplemented(w, fmt.Sprintf("action %q is not implemented", action))
		return
	default:
		writeBadRequest(w, fmt.Sprintf("unknown action %q", action))
		return
	}

	id, err := s.registry.LookupHostname(req.Hostname)
	if err != nil {
		writeInternalError(w, fmt.Sprintf("client with hostname %s not found", req.Hostname))
		return
	}

	if err := s.registry.Send(id, frame); err != nil {
		if errors.Is(err, device.ErrChannelFull) {
			writeInternalError(w, fmt.Sprintf("client %s is not keeping up", req.Hostname))
			return
		}
		writeInternalError(w, fmt.Sprintf("failed to send command to client %s", req.Hostname))
		return
	}

	writeJSON(w, http.StatusOK, "success")
}
