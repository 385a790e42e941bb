package device

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ardenhall/voicegw/internal/protocol"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// routedCommand records one RouteDeviceCommand invocation.
type routedCommand struct {
	deviceID uuid.UUID
	cmd      *protocol.CommandPayload
}

type fakeRouter struct {
	mu   sync.Mutex
	cmds []routedCommand
}

func (f *fakeRouter) RouteDeviceCommand(_ context.Context, deviceID uuid.UUID, cmd *protocol.CommandPayload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, routedCommand{deviceID: deviceID, cmd: cmd})
}

func (f *fakeRouter) commands() []routedCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]routedCommand(nil), f.cmds...)
}

// startSessionServer runs an httptest server that wraps each websocket
// connection in a Session and reports it on the returned channel.
func startSessionServer(t *testing.T, registry *Registry, router CommandRouter, opts SessionOptions) (*httptest.Server, <-chan *Session) {
	t.Helper()

	sessions := make(chan *Session, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		sess, err := NewSession(uuid.New(), conn, registry, router, opts)
		if err != nil {
			t.Errorf("NewSession: %v", err)
			conn.Close()
			return
		}
		sessions <- sess
		sess.Run(r.Context())
	}))
	t.Cleanup(srv.Close)
	return srv, sessions
}

func dialTest(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSessionHelloPopulatesRecord(t *testing.T) {
	registry := NewRegistry()
	srv, _ := startSessionServer(t, registry, nil, SessionOptions{
		PingInterval:   time.Second,
		PongTimeout:    time.Second,
		MaxMessageSize: 8192,
	})

	conn := dialTest(t, srv)
	hello := `{"hello":{"hostname":"kitchen-sat","hw_type":"ESP32-S3-BOX-3","mac_addr":[172,54,100,12,240,1]}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(hello)); err != nil {
		t.Fatalf("write hello: %v", err)
	}

	waitFor(t, func() bool {
		_, err := registry.LookupHostname("kitchen-sat")
		return err == nil
	}, "device never announced")

	id, err := registry.LookupHostname("kitchen-sat")
	if err != nil {
		t.Fatalf("LookupHostname: %v", err)
	}
	record, err := registry.Lookup(id)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if record.Platform == nil || *record.Platform != "ESP32-S3-BOX-3" {
		t.Errorf("platform = %v", record.Platform)
	}
	if record.MACAddr == nil || *record.MACAddr != "ac:36:64:0c:f0:01" {
		t.Errorf("mac = %v", record.MACAddr)
	}
}

func TestSessionRoutesCommands(t *testing.T) {
	registry := NewRegistry()
	router := &fakeRouter{}
	srv, sessions := startSessionServer(t, registry, router, SessionOptions{
		PingInterval:   time.Second,
		PongTimeout:    time.Second,
		MaxMessageSize: 8192,
	})

	conn := dialTest(t, srv)
	sess := <-sessions

	frame := `{"cmd":"endpoint","data":{"text":"turn off the lights"}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitFor(t, func() bool { return len(router.commands()) == 1 }, "command never routed")

	cmds := router.commands()
	if cmds[0].deviceID != sess.ID() {
		t.Errorf("routed device = %v, want %v", cmds[0].deviceID, sess.ID())
	}
	if cmds[0].cmd.Cmd != "endpoint" {
		t.Errorf("cmd = %q", cmds[0].cmd.Cmd)
	}
}

func TestSessionGoodbyeRemovesDevice(t *testing.T) {
	registry := NewRegistry()
	srv, sessions := startSessionServer(t, registry, nil, SessionOptions{
		PingInterval:   time.Second,
		PongTimeout:    time.Second,
		MaxMessageSize: 8192,
	})

	conn := dialTest(t, srv)
	sess := <-sessions

	if registry.Count() != 1 {
		t.Fatalf("count = %d, want 1", registry.Count())
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"goodbye":{}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitFor(t, func() bool { return registry.Count() == 0 }, "device never removed")
	waitFor(t, func() bool { return sess.State() == StateClosed }, "session never closed")
}

func TestSessionOutboundDelivery(t *testing.T) {
	registry := NewRegistry()
	srv, sessions := startSessionServer(t, registry, nil, SessionOptions{
		PingInterval:   time.Second,
		PongTimeout:    time.Second,
		MaxMessageSize: 8192,
	})

	conn := dialTest(t, srv)
	sess := <-sessions

	if err := registry.Send(sess.ID(), protocol.EncodeRestart()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(raw); got != `{"cmd":"restart"}` {
		t.Errorf("frame = %s", got)
	}
}

func TestSessionLivenessTimeout(t *testing.T) {
	registry := NewRegistry()
	srv, _ := startSessionServer(t, registry, nil, SessionOptions{
		PingInterval:   20 * time.Millisecond,
		PongTimeout:    30 * time.Millisecond,
		MaxMessageSize: 8192,
	})

	conn := dialTest(t, srv)
	// Suppress the dialer's automatic pong replies so the server sees a
	// dead peer.
	conn.SetPingHandler(func(string) error { return nil })
	// Keep reading so close frames are processed but nothing is sent back.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	waitFor(t, func() bool { return registry.Count() == 1 }, "device never registered")
	waitFor(t, func() bool { return registry.Count() == 0 }, "liveness timeout never fired")
}
