// Package registry implements DeviceRegistry: the owner of every live
// DeviceAdapter, assigner of their ids, and the endpoint enumerator the
// Pipeline polls to tell the UI what can be attached.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kstaniek/groundstation/internal/adapters"
	"github.com/kstaniek/groundstation/internal/catalogue"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

// Endpoint identifies a physical or virtual port an adapter can be attached
// to, with an opaque value the caller hands back unchanged to Init.
type Endpoint struct {
	DisplayName  string
	OpaqueValue  string
	Manufacturer string
	Product      string
}

// DeviceInfo is the externally visible summary of a registered device.
type DeviceInfo struct {
	ID   uint64
	Kind adapters.Kind
}

// Registry owns every attached DeviceAdapter, assigns ids, and tracks the
// last endpoint enumeration so repeated scans can report "unchanged".
type Registry struct {
	mu           sync.RWMutex
	devices      map[uint64]adapters.DeviceAdapter
	nextID       uint64
	lastScan     []Endpoint
	haveScan     bool
	nameToOpaque map[string]string

	scanSerialPorts func() ([]Endpoint, error)
	scanHIDDevices  func() ([]Endpoint, error)
}

// New constructs an empty Registry wired to the OS-backed serial and HID
// scanners; tests can substitute a fixed endpoint set through
// StubEndpointScanners without touching real hardware.
func New() *Registry {
	r := &Registry{
		devices:      make(map[uint64]adapters.DeviceAdapter),
		nameToOpaque: make(map[string]string),
	}
	r.scanSerialPorts = scanSerialPorts
	r.scanHIDDevices = scanHIDDevices
	return r
}

// Add constructs a new adapter of kind, assigns it the next id, and
// registers it uninitialised; callers must still call Init before polling.
func (r *Registry) Add(kind adapters.Kind, cat *catalogue.Catalogue, clock telemetry.Clock) (uint64, error) {
	a, err := newAdapter(kind, cat, clock)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	a.SetID(id)
	r.devices[id] = a
	return id, nil
}

func newAdapter(kind adapters.Kind, cat *catalogue.Catalogue, clock telemetry.Clock) (adapters.DeviceAdapter, error) {
	switch kind {
	case adapters.KindSerialPort:
		return adapters.NewSerialPort(cat, clock), nil
	case adapters.KindHID:
		return adapters.NewHidEndpoint(cat, clock), nil
	case adapters.KindFileReplay:
		return adapters.NewFileReplay(cat, clock), nil
	case adapters.KindAltusMetrum:
		if err := adapters.RegisterWellKnownFormats(cat); err != nil {
			return nil, err
		}
		return adapters.NewAltusMetrum(cat, clock), nil
	case adapters.KindAIM:
		return adapters.NewAIM(cat, clock), nil
	case adapters.KindFeatherweight:
		return adapters.NewFeatherweight(cat, clock), nil
	default:
		return nil, fmt.Errorf("registry: unknown adapter kind %q", kind)
	}
}

// Init resolves endpoint against the last name-to-opaque map (unless the
// adapter kind passes raw paths through) and initialises the adapter with
// id.
func (r *Registry) Init(id uint64, endpoint string, baud int) error {
	r.mu.Lock()
	a, ok := r.devices[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("registry: no device with id %d", id)
	}
	resolved := endpoint
	if !passesRawPaths(a.Kind()) {
		if opaque, ok := r.nameToOpaque[endpoint]; ok {
			resolved = opaque
		}
	}
	r.mu.Unlock()
	return a.Init(resolved, baud)
}

// StubEndpointScanners overrides the serial and HID endpoint scanners,
// for tests that need a fixed or controllable endpoint set instead of the
// real OS-backed scan.
func (r *Registry) StubEndpointScanners(scanSerial, scanHID func() ([]Endpoint, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanSerialPorts = scanSerial
	r.scanHIDDevices = scanHID
}

// passesRawPaths reports whether kind bypasses the display-name resolution
// and is handed its endpoint string unchanged: file replay paths and
// AltusMetrum's TeleDongle device files are already filesystem paths, not
// opaque handles assigned by endpoint enumeration.
func passesRawPaths(kind adapters.Kind) bool {
	return kind == adapters.KindFileReplay || kind == adapters.KindAltusMetrum
}

// Remove drops id from the registry, closing it first if it supports
// closing.
func (r *Registry) Remove(id uint64) error {
	r.mu.Lock()
	a, ok := r.devices[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("registry: no device with id %d", id)
	}
	delete(r.devices, id)
	r.mu.Unlock()

	type closer interface{ Close() error }
	if c, ok := a.(closer); ok {
		return c.Close()
	}
	return nil
}

// Devices returns a snapshot of every registered device's id and kind,
// sorted by id for stable UI ordering.
func (r *Registry) Devices() []DeviceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DeviceInfo, 0, len(r.devices))
	for id, a := range r.devices {
		out = append(out, DeviceInfo{ID: id, Kind: a.Kind()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the adapter registered under id.
func (r *Registry) Get(id uint64) (adapters.DeviceAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.devices[id]
	return a, ok
}

// Snapshot returns every registered adapter, sorted by id, for the Pipeline
// to poll in a stable order without holding the registry lock during I/O.
func (r *Registry) Snapshot() []adapters.DeviceAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]adapters.DeviceAdapter, 0, len(r.devices))
	for _, a := range r.devices {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// EnumerateEndpoints rescans attachable serial and HID endpoints and
// returns them if the set changed since the last call, or nil if it did
// not. A first scan that finds no endpoints also returns nil, the same as
// "unchanged".
func (r *Registry) EnumerateEndpoints() ([]Endpoint, error) {
	serial, err := r.scanSerialPorts()
	if err != nil {
		return nil, err
	}
	hid, err := r.scanHIDDevices()
	if err != nil {
		return nil, err
	}
	all := append(serial, hid...)
	sort.Slice(all, func(i, j int) bool { return all[i].DisplayName < all[j].DisplayName })

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.haveScan && endpointsEqual(r.lastScan, all) {
		return nil, nil
	}
	r.lastScan = all
	r.haveScan = true
	r.nameToOpaque = make(map[string]string, len(all))
	for _, e := range all {
		r.nameToOpaque[e.DisplayName] = e.OpaqueValue
	}
	return all, nil
}

func endpointsEqual(a, b []Endpoint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
