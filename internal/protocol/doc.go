// Package protocol defines the JSON wire format spoken between the
// gateway and connected voice satellite devices.
//
// Inbound device frames are externally tagged by message kind
// ({"hello": {...}}, {"wake_start": {...}}) with the exception of
// commands, which use a flat {"cmd": "...", "data": ...} shape.
// DecodeDeviceMessage normalises both forms into a Message.
//
// Outbound frames are built by the Encode helpers so the callers never
// handle raw JSON.
package protocol
