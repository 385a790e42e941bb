package api

import (
	"net/http"
)

// handleStatus serves fleet diagnostics. The type query selects the
// view: clients (device records), connmgr (connected identities) or
// connmap (pending endpoint correlations).
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("type") {
	case "clients":
		writeJSON(w, http.StatusOK, s.registry.Records())
	case "connmgr":
		ids := s.registry.Identities()
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			out = append(out, id.String())
		}
		writeJSON(w, http.StatusOK, out)
	case "connmap":
		if s.bridge == nil {
			writeJSON(w, http.StatusOK, map[string]string{})
			return
		}
		out := make(map[uint64]string)
		for requestID, deviceID := range s.bridge.CorrelationSnapshot() {
			out[requestID] = deviceID.String()
		}
		writeJSON(w, http.StatusOK, out)
	default:
		writeBadRequest(w, "unknown status type")
	}
}
