package endpoint

import "errors"

var (
	// ErrUnsupportedEndpoint indicates the configured endpoint kind has
	// no implementation.
	ErrUnsupportedEndpoint = errors.New("endpoint: unsupported endpoint kind")

	// ErrConfigMissing indicates the stored configuration does not
	// resolve to a usable endpoint (no kind, or required connection
	// fields absent).
	ErrConfigMissing = errors.New("endpoint: configuration missing")

	// ErrNotConnected indicates no authenticated endpoint connection is
	// available to carry the request.
	ErrNotConnected = errors.New("endpoint: not connected")

	// ErrQueueFull indicates the outbound request queue is at capacity.
	ErrQueueFull = errors.New("endpoint: request queue full")

	// ErrNotFound indicates no pending request matches the given id.
	ErrNotFound = errors.New("endpoint: request not found")
)
