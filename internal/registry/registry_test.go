package registry

import (
	"testing"

	"github.com/kstaniek/groundstation/internal/adapters"
	"github.com/kstaniek/groundstation/internal/catalogue"
)

func fixedClock(ms int64) func() int64 { return func() int64 { return ms } }

func TestRegistry_AddAssignsMonotoneIDs(t *testing.T) {
	r := New()
	cat := catalogue.New()
	id1, err := r.Add(adapters.KindFileReplay, cat, fixedClock(1))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	id2, err := r.Add(adapters.KindFileReplay, cat, fixedClock(1))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id1 == 0 || id2 == 0 || id1 == id2 {
		t.Fatalf("expected distinct nonzero ids, got %d and %d", id1, id2)
	}
	devices := r.Devices()
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := New()
	cat := catalogue.New()
	id, err := r.Add(adapters.KindFileReplay, cat, fixedClock(1))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.Remove(id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(r.Devices()) != 0 {
		t.Fatalf("expected no devices after remove")
	}
	if err := r.Remove(id); err == nil {
		t.Fatalf("expected error removing an already-removed id")
	}
}

func TestRegistry_UnknownKindRejected(t *testing.T) {
	r := New()
	cat := catalogue.New()
	if _, err := r.Add(adapters.Kind("bogus"), cat, fixedClock(1)); err == nil {
		t.Fatalf("expected error for unknown adapter kind")
	}
}

func TestRegistry_EnumerateEndpoints_SuppressesUnchangedScans(t *testing.T) {
	r := New()
	calls := 0
	fixed := []Endpoint{{DisplayName: "/dev/ttyUSB0", OpaqueValue: "/dev/ttyUSB0"}}
	r.scanSerialPorts = func() ([]Endpoint, error) { calls++; return fixed, nil }
	r.scanHIDDevices = func() ([]Endpoint, error) { return nil, nil }

	first, err := r.EnumerateEndpoints()
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 endpoint on first scan, got %d", len(first))
	}

	second, err := r.EnumerateEndpoints()
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if second != nil {
		t.Fatalf("expected nil on unchanged re-scan, got %v", second)
	}

	fixed = append(fixed, Endpoint{DisplayName: "/dev/ttyUSB1", OpaqueValue: "/dev/ttyUSB1"})
	third, err := r.EnumerateEndpoints()
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(third) != 2 {
		t.Fatalf("expected 2 endpoints after the set changed, got %d", len(third))
	}
}

func TestRegistry_InitFileReplayPassesRawPathThrough(t *testing.T) {
	r := New()
	cat := catalogue.New()
	r.scanSerialPorts = func() ([]Endpoint, error) {
		return []Endpoint{{DisplayName: "USB Serial", OpaqueValue: "/dev/ttyUSB0"}}, nil
	}
	r.scanHIDDevices = func() ([]Endpoint, error) { return nil, nil }
	if _, err := r.EnumerateEndpoints(); err != nil {
		t.Fatalf("enumerate: %v", err)
	}

	id, err := r.Add(adapters.KindFileReplay, cat, fixedClock(1))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	// FileReplay passes raw paths through, so resolution is skipped; a
	// nonexistent opaque path is expected to fail at the OS level, not be
	// silently substituted.
	if err := r.Init(id, "USB Serial", 0); err == nil {
		t.Fatalf("expected file replay to fail opening a non-path display name")
	}
}
