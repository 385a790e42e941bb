package endpoint_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ardenhall/voicegw/internal/command"
	"github.com/ardenhall/voicegw/internal/device"
	"github.com/ardenhall/voicegw/internal/endpoint"
	"github.com/ardenhall/voicegw/internal/protocol"
)

type staticConfig map[string]any

func (c staticConfig) GetConfig(context.Context) (map[string]any, error) {
	return c, nil
}

// TestVoiceCommandRoundTrip wires a registry, router and bridge against
// a scripted endpoint server and follows one spoken command end to end:
// device text in, intent request out, event back, result frame on the
// device channel.
func TestVoiceCommandRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"auth_required","ha_version":"2024.1.0"}`)); err != nil {
			return
		}
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg map[string]any
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			switch msg["type"] {
			case "auth":
				if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"auth_ok","ha_version":"2024.1.0"}`)); err != nil {
					return
				}
			case "assist_pipeline/run":
				id := uint64(msg["id"].(float64)) //nolint:errcheck // test fixture controls shape
				input := msg["input"].(map[string]any) //nolint:errcheck // test fixture controls shape
				speech := "Handled: " + input["text"].(string) //nolint:errcheck // test fixture controls shape
				event := fmt.Sprintf(`{"id":%d,"type":"event","event":{"type":"intent-end","data":{"intent_output":{"response":{"response_type":"action_done","speech":{"plain":{"speech":%q}}}}}}}`, id, speech)
				if err := conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(fake.Close)

	bridge, err := endpoint.NewBridge(endpoint.Options{
		Config: &endpoint.Config{
			Kind:  endpoint.KindHomeAssistant,
			URL:   "ws" + strings.TrimPrefix(fake.URL, "http"),
			Token: "token",
		},
		ReconnectDelay:    50 * time.Millisecond,
		HeartbeatInterval: 50 * time.Millisecond,
		LivenessTimeout:   time.Second,
	})
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}

	registry := device.NewRegistry()
	router := command.NewRouter(bridge, registry, staticConfig{}, nil)
	bridge.SetResultHandler(router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)

	deadline := time.Now().Add(3 * time.Second)
	for !bridge.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("bridge never connected")
		}
		time.Sleep(10 * time.Millisecond)
	}

	deviceID := uuid.New()
	out := make(chan []byte, 4)
	if _, err := registry.Register(deviceID, out); err != nil {
		t.Fatalf("Register: %v", err)
	}

	router.RouteDeviceCommand(ctx, deviceID, &protocol.CommandPayload{
		Cmd:  "endpoint",
		Data: json.RawMessage(`{"text":"turn on the kitchen lights"}`),
	})

	select {
	case frame := <-out:
		var result protocol.ResultFrame
		if err := json.Unmarshal(frame, &result); err != nil {
			t.Fatalf("unmarshal result: %v", err)
		}
		if !result.Result.OK {
			t.Error("expected ok result")
		}
		if result.Result.Speech != "Handled: turn on the kitchen lights" {
			t.Errorf("speech = %q", result.Result.Speech)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("result never reached the device channel")
	}

	// The correlation entry must be consumed.
	if pending := bridge.CorrelationSnapshot(); len(pending) != 0 {
		t.Errorf("pending correlations after completion: %v", pending)
	}
}
