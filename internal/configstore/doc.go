// Package configstore persists the named configuration documents served
// to the device fleet: the device runtime configuration and the NVS
// provisioning values flashed onto new hardware.
//
// Values live in the gateway_config table keyed by (type, namespace,
// name). Device configuration uses an empty namespace; NVS values are
// grouped by their flash namespace (WAS, WIFI).
package configstore
