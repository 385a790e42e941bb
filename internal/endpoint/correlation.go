package endpoint

import (
	"sync"

	"github.com/google/uuid"
)

// correlationTable maps in-flight endpoint request ids back to the
// device that issued them. Request ids are monotonic for the lifetime of
// the bridge; they are never reused, even across reconnects, so a stale
// reply from a previous connection can never be mis-attributed.
type correlationTable struct {
	mu     sync.Mutex
	nextID uint64
	owners map[uint64]uuid.UUID
}

func newCorrelationTable() *correlationTable {
	return &correlationTable{
		nextID: 1,
		owners: make(map[uint64]uuid.UUID),
	}
}

// assign allocates the next request id and records its owner.
func (t *correlationTable) assign(deviceID uuid.UUID) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.owners[id] = deviceID
	return id
}

// resolve removes the pending entry for id and returns its owner.
func (t *correlationTable) resolve(id uint64) (uuid.UUID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	owner, ok := t.owners[id]
	if ok {
		delete(t.owners, id)
	}
	return owner, ok
}

// forget drops a pending entry without resolving it, used when the send
// that allocated it fails.
func (t *correlationTable) forget(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.owners, id)
}

// purge drops all pending entries, returning how many were dropped. The
// id counter keeps running.
func (t *correlationTable) purge() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.owners)
	t.owners = make(map[uint64]uuid.UUID)
	return n
}

// snapshot returns a copy of the pending entries for diagnostics.
func (t *correlationTable) snapshot() map[uint64]uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[uint64]uuid.UUID, len(t.owners))
	for id, owner := range t.owners {
		out[id] = owner
	}
	return out
}
