package device

import "github.com/google/uuid"

// Record describes a connected device. Hostname, Platform and MACAddr are
// nil until the device announces itself with a hello message.
// NotificationActive tracks whether a notification is currently playing
// on the device.
type Record struct {
	ID                 uuid.UUID `json:"id"`
	Hostname           *string   `json:"hostname"`
	Platform           *string   `json:"platform"`
	MACAddr            *string   `json:"mac_addr"`
	Version            string    `json:"version,omitempty"`
	NotificationActive bool      `json:"notification_active"`
}

// Clone returns a deep copy so callers can hold a snapshot without racing
// registry updates.
func (r *Record) Clone() *Record {
	c := *r
	if r.Hostname != nil {
		h := *r.Hostname
		c.Hostname = &h
	}
	if r.Platform != nil {
		p := *r.Platform
		c.Platform = &p
	}
	if r.MACAddr != nil {
		m := *r.MACAddr
		c.MACAddr = &m
	}
	return &c
}
