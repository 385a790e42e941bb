package device

import "errors"

var (
	// ErrNotFound indicates the device identity is not registered.
	ErrNotFound = errors.New("device: not found")

	// ErrDuplicateIdentity indicates a registration attempt with an
	// identity that is already connected.
	ErrDuplicateIdentity = errors.New("device: duplicate identity")

	// ErrChannelFull indicates the device's outbound channel is at
	// capacity and the frame was dropped.
	ErrChannelFull = errors.New("device: send channel full")
)
