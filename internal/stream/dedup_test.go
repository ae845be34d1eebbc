package stream

import "testing"

func TestDeduplicator_Seen(t *testing.T) {
	d, err := NewDeduplicator(4)
	if err != nil {
		t.Fatalf("NewDeduplicator: %v", err)
	}

	if d.Seen("rooms-refresh", []byte(`{}`)) {
		t.Error("first sighting reported as seen")
	}
	if !d.Seen("rooms-refresh", []byte(`{}`)) {
		t.Error("repeat not reported as seen")
	}
	if d.Seen("sessions-changed", []byte(`{}`)) {
		t.Error("same payload under a different type must not collide")
	}
	if d.Seen("rooms-refresh", []byte(`{"x":1}`)) {
		t.Error("different payload reported as seen")
	}
}

func TestDeduplicator_EvictionReopensWindow(t *testing.T) {
	d, err := NewDeduplicator(2)
	if err != nil {
		t.Fatalf("NewDeduplicator: %v", err)
	}

	d.Seen("a", []byte("1"))
	d.Seen("b", []byte("2"))
	d.Seen("c", []byte("3")) // evicts a

	if d.Seen("a", []byte("1")) {
		t.Error("evicted entry should be deliverable again")
	}
}

func TestDeduplicator_Clear(t *testing.T) {
	d, err := NewDeduplicator(4)
	if err != nil {
		t.Fatalf("NewDeduplicator: %v", err)
	}
	d.Seen("a", []byte("1"))
	d.Clear()
	if d.Seen("a", []byte("1")) {
		t.Error("cleared cache should forget prior events")
	}
}
