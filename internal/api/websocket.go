package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ardenhall/voicegw/internal/device"
)

// upgrader configures the device WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Devices connect directly, not from browsers
		return true
	},
}

// handleDeviceWebSocket upgrades a device connection and runs its
// session until disconnect. The firmware version is taken from the
// User-Agent header the device sends on upgrade.
func (s *Server) handleDeviceWebSocket(w http.ResponseWriter, r *http.Request) {
	firmware := firmwareVersion(r.UserAgent())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("device websocket upgrade failed", "error", err)
		return
	}

	id := uuid.New()
	session, err := device.NewSession(id, conn, s.registry, s.router, device.SessionOptions{
		PingInterval:   s.wsCfg.GetPingInterval(),
		PongTimeout:    s.wsCfg.GetPongTimeout(),
		MaxMessageSize: int64(s.wsCfg.MaxMessageSize),
		SendBuffer:     s.wsCfg.SendBuffer,
		Logger:         s.logger,
	})
	if err != nil {
		s.logger.Error("device session setup failed", "error", err)
		conn.Close() //nolint:errcheck // Connection is unusable
		return
	}

	if firmware != "" {
		//nolint:errcheck // Device was registered a moment ago
		s.registry.Update(id, func(rec *device.Record) { rec.Version = firmware })
	}

	s.logger.Info("device connected", "device_id", id.String(), "firmware", firmware)
	session.Run(s.sessionCtx)
}

// firmwareVersion extracts the firmware version from the device
// User-Agent, e.g. "Willow/1.0.1".
func firmwareVersion(userAgent string) string {
	version, found := strings.CutPrefix(userAgent, "Willow/")
	if !found {
		return ""
	}
	return version
}
