package protocol

import "encoding/json"

// Device message kinds produced by DecodeDeviceMessage.
const (
	KindHello     = "hello"
	KindGoodbye   = "goodbye"
	KindWakeStart = "wake_start"
	KindWakeEnd   = "wake_end"
	KindCommand   = "cmd"
)

// HelloPayload announces a device after it connects. The MAC address is
// sent as a six-element byte array.
type HelloPayload struct {
	Hostname string  `json:"hostname"`
	HWType   string  `json:"hw_type"`
	MACAddr  [6]byte `json:"mac_addr"`
}

// GoodbyePayload signals an orderly disconnect. The device may repeat its
// hello fields but nothing is required.
type GoodbyePayload struct {
	Hostname string `json:"hostname,omitempty"`
}

// WakeStartPayload marks the beginning of wake-word capture. Devices
// report the playback volume in effect so the server can restore it.
type WakeStartPayload struct {
	WakeVolume float64 `json:"wake_volume"`
}

// CommandPayload is the flat command form: {"cmd": "...", "data": {...}}.
// Data is left raw because its shape depends on the command.
type CommandPayload struct {
	Cmd  string          `json:"cmd"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EndpointCommandData carries the recognised speech text of an endpoint
// command.
type EndpointCommandData struct {
	Text string `json:"text"`
}

// Message is a decoded device frame. Exactly one payload field is set,
// selected by Kind.
type Message struct {
	Kind      string
	Hello     *HelloPayload
	Goodbye   *GoodbyePayload
	WakeStart *WakeStartPayload
	Command   *CommandPayload
}

// ResultData is the body of a result frame sent back to a device after
// an endpoint command completes.
type ResultData struct {
	OK     bool   `json:"ok"`
	Speech string `json:"speech"`
}

// ResultFrame wraps ResultData in the externally tagged form the device
// firmware expects.
type ResultFrame struct {
	Result ResultData `json:"result"`
}
