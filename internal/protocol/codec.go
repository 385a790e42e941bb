package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// ErrUnknownMessage is returned when a frame matches none of the known
// device message shapes.
var ErrUnknownMessage = errors.New("protocol: unknown message")

// envelope probes a frame for its discriminating key. Device messages are
// externally tagged ({"hello": {...}}) except for commands, which use a
// flat {"cmd": "...", "data": ...} form.
type envelope struct {
	Hello     *HelloPayload     `json:"hello"`
	Goodbye   *GoodbyePayload   `json:"goodbye"`
	WakeStart *WakeStartPayload `json:"wake_start"`
	WakeEnd   *struct{}         `json:"wake_end"`
	Cmd       string            `json:"cmd"`
	Data      json.RawMessage   `json:"data"`
}

// DecodeDeviceMessage parses a raw websocket frame from a device into a
// typed Message. Frames that parse as JSON but match no known shape
// return ErrUnknownMessage.
func DecodeDeviceMessage(raw []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("protocol: decoding device message: %w", err)
	}

	switch {
	case env.Hello != nil:
		return &Message{Kind: KindHello, Hello: env.Hello}, nil
	case env.Goodbye != nil:
		return &Message{Kind: KindGoodbye, Goodbye: env.Goodbye}, nil
	case env.WakeStart != nil:
		return &Message{Kind: KindWakeStart, WakeStart: env.WakeStart}, nil
	case env.WakeEnd != nil:
		return &Message{Kind: KindWakeEnd}, nil
	case env.Cmd != "":
		return &Message{Kind: KindCommand, Command: &CommandPayload{Cmd: env.Cmd, Data: env.Data}}, nil
	default:
		return nil, ErrUnknownMessage
	}
}

// EncodeResult builds the result frame sent to a device after an endpoint
// command completes.
func EncodeResult(ok bool, speech string) ([]byte, error) {
	return json.Marshal(ResultFrame{Result: ResultData{OK: ok, Speech: speech}})
}

// EncodeRestart builds the restart command frame.
func EncodeRestart() []byte {
	return []byte(`{"cmd":"restart"}`)
}

// EncodeOTAStart builds the OTA trigger frame pointing the device at a
// firmware image URL.
func EncodeOTAStart(otaURL string) ([]byte, error) {
	return json.Marshal(struct {
		Cmd    string `json:"cmd"`
		OTAURL string `json:"ota_url"`
	}{Cmd: "ota_start", OTAURL: otaURL})
}

// EncodeConfigPush wraps a configuration document in the frame a device
// applies on receipt.
func EncodeConfigPush(config map[string]any) ([]byte, error) {
	return json.Marshal(map[string]map[string]any{"config": config})
}

// FormatMAC renders a six-byte MAC address in the canonical colon form.
func FormatMAC(mac [6]byte) string {
	return net.HardwareAddr(mac[:]).String()
}
