// Package endpoint bridges voice commands to the configured home
// automation system.
//
// The Bridge keeps one long-lived websocket connection to the endpoint,
// reconnecting on a fixed delay and re-authenticating each time.
// Requests are correlated to the issuing device through monotonically
// increasing ids; the pending table is purged whenever the connection
// cycles so stale replies can never reach the wrong device.
//
// Home Assistant is the only implemented endpoint kind. The openHAB,
// MQTT and REST kinds are recognised in configuration but return
// ErrUnsupportedEndpoint.
package endpoint
