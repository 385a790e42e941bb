package device

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()

	record, err := r.Register(id, make(chan []byte, 1))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if record.ID != id {
		t.Errorf("record ID = %v, want %v", record.ID, id)
	}

	got, err := r.Lookup(id)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.ID != id {
		t.Errorf("lookup ID = %v", got.ID)
	}
	if r.Count() != 1 {
		t.Errorf("count = %d, want 1", r.Count())
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()

	if _, err := r.Register(id, make(chan []byte, 1)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.Register(id, make(chan []byte, 1)); !errors.Is(err, ErrDuplicateIdentity) {
		t.Errorf("err = %v, want ErrDuplicateIdentity", err)
	}
}

func TestLookupUnknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Lookup(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLookupHostname(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()
	if _, err := r.Register(id, make(chan []byte, 1)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := r.LookupHostname("kitchen-sat"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pre-hello lookup err = %v, want ErrNotFound", err)
	}

	if err := r.Update(id, func(rec *Record) {
		hostname := "kitchen-sat"
		rec.Hostname = &hostname
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := r.LookupHostname("kitchen-sat")
	if err != nil {
		t.Fatalf("LookupHostname: %v", err)
	}
	if got != id {
		t.Errorf("id = %v, want %v", got, id)
	}
}

func TestSendDelivers(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()
	out := make(chan []byte, 1)
	if _, err := r.Register(id, out); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := r.Send(id, []byte("frame")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := string(<-out); got != "frame" {
		t.Errorf("frame = %q", got)
	}
}

func TestSendFullChannel(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()
	out := make(chan []byte, 1)
	if _, err := r.Register(id, out); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := r.Send(id, []byte("one")); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := r.Send(id, []byte("two")); !errors.Is(err, ErrChannelFull) {
		t.Errorf("err = %v, want ErrChannelFull", err)
	}
}

func TestSendAfterRemove(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()
	if _, err := r.Register(id, make(chan []byte, 1)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.Remove(id)

	if err := r.Send(id, []byte("frame")); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRemoveClosesChannelOnce(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()
	out := make(chan []byte, 1)
	if _, err := r.Register(id, out); err != nil {
		t.Fatalf("Register: %v", err)
	}

	r.Remove(id)
	r.Remove(id) // second remove must not double-close

	if _, ok := <-out; ok {
		t.Error("expected channel closed after remove")
	}
}

func TestSendConcurrentWithRemove(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()
	if _, err := r.Register(id, make(chan []byte, 1)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			if err := r.Send(id, []byte("frame")); err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrChannelFull) {
				t.Errorf("Send: %v", err)
				return
			}
		}
	}()

	r.Remove(id)
	<-done
}

func TestCountObserver(t *testing.T) {
	r := NewRegistry()

	var counts []int
	r.SetCountObserver(func(count int) { counts = append(counts, count) })

	first := uuid.New()
	second := uuid.New()
	if _, err := r.Register(first, make(chan []byte, 1)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.Register(second, make(chan []byte, 1)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.Remove(first)
	r.Remove(first) // repeat remove must not fire the observer again

	want := []int{1, 2, 1}
	if len(counts) != len(want) {
		t.Fatalf("observer calls = %v, want %v", counts, want)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("observer call %d = %d, want %d", i, counts[i], want[i])
		}
	}
}

func TestNotificationFlag(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()
	if _, err := r.Register(id, make(chan []byte, 1)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := r.Update(id, func(rec *Record) {
		rec.NotificationActive = true
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := r.Lookup(id)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !got.NotificationActive {
		t.Error("notification flag not set on snapshot")
	}

	raw, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"notification_active":true`) {
		t.Errorf("record JSON = %s", raw)
	}
}

func TestRecordsSnapshot(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()
	if _, err := r.Register(id, make(chan []byte, 1)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	records := r.Records()
	if len(records) != 1 {
		t.Fatalf("got %d records", len(records))
	}

	// Mutating the snapshot must not affect the registry.
	hostname := "mutated"
	records[0].Hostname = &hostname

	got, err := r.Lookup(id)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Hostname != nil {
		t.Error("snapshot mutation leaked into registry")
	}
}
