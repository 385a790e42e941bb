// Package device tracks connected voice satellites.
//
// The Registry maps device identities to their records and outbound
// frame channels; a Session owns one websocket connection, keeping the
// registry entry current as the device announces itself and relaying
// its commands to the command router.
//
// Liveness is protocol-level: the session pings on a fixed interval and
// tears the connection down when no pong (or other frame) arrives
// within the grace period.
package device
