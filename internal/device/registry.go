package device

import (
	"sync"

	"github.com/google/uuid"
)

// entry pairs a device record with its outbound frame channel.
type entry struct {
	record *Record
	out    chan []byte
}

// Registry tracks connected devices and their outbound channels. Sessions
// register on connect and remove themselves on teardown; the control
// plane and command router look devices up to push frames.
//
// Thread Safety: all methods are safe for concurrent use. Send performs
// its non-blocking write under the read lock and Remove closes the
// channel under the write lock, so a send can never race a close.
type Registry struct {
	mu       sync.RWMutex
	devices  map[uuid.UUID]*entry
	observer func(count int)
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[uuid.UUID]*entry),
	}
}

// SetCountObserver registers a callback invoked with the connected
// device count after every successful register and remove. Set it once
// during startup, before sessions begin connecting.
func (r *Registry) SetCountObserver(observe func(count int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = observe
}

// Register adds a device under the given identity and associates the
// outbound channel the session drains. Returns the record for the
// session to populate on hello.
//
// Returns ErrDuplicateIdentity if the identity is already registered.
func (r *Registry) Register(id uuid.UUID, out chan []byte) (*Record, error) {
	r.mu.Lock()

	if _, exists := r.devices[id]; exists {
		r.mu.Unlock()
		return nil, ErrDuplicateIdentity
	}

	record := &Record{ID: id}
	r.devices[id] = &entry{record: record, out: out}
	count := len(r.devices)
	observe := r.observer
	r.mu.Unlock()

	if observe != nil {
		observe(count)
	}
	return record, nil
}

// Remove drops the device from the registry and closes its outbound
// channel. Only the first call for an identity closes the channel, so
// concurrent teardown paths are safe. Removing an unknown identity is a
// no-op.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	e, exists := r.devices[id]
	if exists {
		delete(r.devices, id)
		// Closing under the lock means Send, which writes under the
		// read lock, can never hit a closed channel.
		close(e.out)
	}
	count := len(r.devices)
	observe := r.observer
	r.mu.Unlock()

	if exists && observe != nil {
		observe(count)
	}
}

// Lookup returns a snapshot of the device record for the given identity.
func (r *Registry) Lookup(id uuid.UUID) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.devices[id]
	if !exists {
		return nil, ErrNotFound
	}
	return e.record.Clone(), nil
}

// LookupHostname returns the identity of the device that announced the
// given hostname. Hostnames are expected to be unique across the fleet;
// if two devices claim the same name the first match wins.
func (r *Registry) LookupHostname(hostname string) (uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, e := range r.devices {
		if e.record.Hostname != nil && *e.record.Hostname == hostname {
			return id, nil
		}
	}
	return uuid.Nil, ErrNotFound
}

// Update applies mutate to the device record under the registry lock.
func (r *Registry) Update(id uuid.UUID, mutate func(*Record)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.devices[id]
	if !exists {
		return ErrNotFound
	}
	mutate(e.record)
	return nil
}

// Send queues a frame for delivery to the device. The send is
// non-blocking: if the device's channel is full the frame is dropped and
// ErrChannelFull is returned, so a stalled device cannot back-pressure
// the caller.
func (r *Registry) Send(id uuid.UUID, frame []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.devices[id]
	if !exists {
		return ErrNotFound
	}

	select {
	case e.out <- frame:
		return nil
	default:
		return ErrChannelFull
	}
}

// Records returns a snapshot of all connected device records.
func (r *Registry) Records() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*Record, 0, len(r.devices))
	for _, e := range r.devices {
		records = append(records, e.record.Clone())
	}
	return records
}

// Identities returns the identities of all connected devices.
func (r *Registry) Identities() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of connected devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
