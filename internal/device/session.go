package device

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ardenhall/voicegw/internal/infrastructure/logging"
	"github.com/ardenhall/voicegw/internal/protocol"
)

// Session states.
const (
	StateConnecting int32 = iota
	StateActive
	StateClosing
	StateClosed
)

// CommandRouter dispatches device commands (endpoint, get_config) to
// their handlers. Implemented by the command package.
type CommandRouter interface {
	RouteDeviceCommand(ctx context.Context, deviceID uuid.UUID, cmd *protocol.CommandPayload)
}

// SessionOptions configures a device session.
type SessionOptions struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
	SendBuffer     int
	Logger         *logging.Logger
}

// Session owns one device websocket connection: it registers the device,
// decodes inbound frames, relays commands to the router and drains the
// outbound channel registered with the registry.
//
// Thread Safety: Run starts the read and write pumps and blocks until
// teardown; State may be polled from any goroutine.
type Session struct {
	id       uuid.UUID
	conn     *websocket.Conn
	registry *Registry
	router   CommandRouter
	opts     SessionOptions
	logger   *logging.Logger

	out       chan []byte
	state     atomic.Int32
	closeOnce sync.Once
}

// NewSession wraps an upgraded websocket connection in a session. The
// device is registered immediately so control-plane pushes can reach it
// before the hello arrives.
//
// Returns ErrDuplicateIdentity if the identity is already connected.
func NewSession(id uuid.UUID, conn *websocket.Conn, registry *Registry, router CommandRouter, opts SessionOptions) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}

	out := make(chan []byte, opts.SendBuffer)
	if _, err := registry.Register(id, out); err != nil {
		return nil, err
	}

	s := &Session{
		id:       id,
		conn:     conn,
		registry: registry,
		router:   router,
		opts:     opts,
		logger:   opts.Logger.With("device_id", id.String()),
		out:      out,
	}
	s.state.Store(StateConnecting)
	return s, nil
}

// ID returns the session's device identity.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the current session state.
func (s *Session) State() int32 {
	return s.state.Load()
}

// Run services the connection until the device disconnects, the
// liveness deadline passes or ctx is cancelled. It blocks; callers run
// it in the handler goroutine.
func (s *Session) Run(ctx context.Context) {
	done := make(chan struct{})
	go s.writePump(done)

	stop := context.AfterFunc(ctx, func() { s.teardown() })
	defer stop()

	s.readPump(ctx)
	<-done
	s.state.Store(StateClosed)
	s.logger.Debug("session closed")
}

// teardown removes the device from the registry (closing the outbound
// channel, which stops the write pump) and closes the connection, which
// unblocks the read pump. Safe to call from any path; only the first
// call acts.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.state.Store(StateClosing)
		s.registry.Remove(s.id)
		s.conn.Close() //nolint:errcheck // Best-effort close on teardown
	})
}

// readPump reads device frames until the connection drops or the read
// deadline expires. The deadline covers one ping interval plus the pong
// grace, and resets on pongs and on any inbound frame.
func (s *Session) readPump(ctx context.Context) {
	defer s.teardown()

	s.conn.SetReadLimit(s.opts.MaxMessageSize)
	liveness := s.opts.PingInterval + s.opts.PongTimeout
	//nolint:errcheck // Best-effort deadline on connection setup
	s.conn.SetReadDeadline(time.Now().Add(liveness))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(liveness))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("device read error", "error", err)
			} else {
				s.logger.Debug("device connection closed", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		s.conn.SetReadDeadline(time.Now().Add(liveness))

		if done := s.handleFrame(ctx, raw); done {
			return
		}
	}
}

// writePump drains the outbound channel and emits protocol pings. It
// exits when the registry closes the channel or a write fails.
func (s *Session) writePump(done chan<- struct{}) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		s.teardown()
		close(done)
	}()

	for {
		select {
		case frame, ok := <-s.out:
			if !ok {
				//nolint:errcheck // Best-effort close message
				s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			s.conn.SetWriteDeadline(time.Now().Add(s.opts.PongTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			s.conn.SetWriteDeadline(time.Now().Add(s.opts.PongTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame decodes one inbound frame and reacts to it. Returns true
// when the session should end (device said goodbye).
func (s *Session) handleFrame(ctx context.Context, raw []byte) bool {
	msg, err := protocol.DecodeDeviceMessage(raw)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownMessage) {
			s.logger.Warn("unknown device message", "frame", string(raw))
		} else {
			s.logger.Warn("malformed device message", "error", err)
		}
		return false
	}

	switch msg.Kind {
	case protocol.KindHello:
		s.handleHello(msg.Hello)
	case protocol.KindGoodbye:
		s.logger.Info("device said goodbye")
		return true
	case protocol.KindWakeStart:
		s.logger.Debug("wake started", "wake_volume", msg.WakeStart.WakeVolume)
	case protocol.KindWakeEnd:
		s.logger.Debug("wake ended")
	case protocol.KindCommand:
		if s.router != nil {
			s.router.RouteDeviceCommand(ctx, s.id, msg.Command)
		}
	}
	return false
}

// handleHello records the device's announced identity and marks the
// session active.
func (s *Session) handleHello(hello *protocol.HelloPayload) {
	hostname := hello.Hostname
	platform := hello.HWType
	mac := protocol.FormatMAC(hello.MACAddr)

	if err := s.registry.Update(s.id, func(r *Record) {
		r.Hostname = &hostname
		r.Platform = &platform
		r.MACAddr = &mac
	}); err != nil {
		s.logger.Warn("hello for unregistered device", "error", err)
		return
	}

	s.state.Store(StateActive)
	s.logger.Info("device announced",
		"hostname", hostname,
		"platform", platform,
		"mac_addr", mac,
	)
}
