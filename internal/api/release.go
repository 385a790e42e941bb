package api

import (
	"encoding/json"
	"net/http"
)

// handleRelease serves the firmware release feed fetched from the cloud
// worker at startup.
func (s *Server) handleRelease(w http.ResponseWriter, _ *http.Request) {
	s.writeDefault(w, func() json.RawMessage { return s.defaults.Releases })
}
