// Package adapters implements the DeviceAdapter capability set: the uniform
// read/parse/write contract every device kind (serial, HID, file replay, and
// the hardcoded device-family wrappers) satisfies so the Pipeline can poll
// them identically.
package adapters

import (
	"errors"
	"time"

	"github.com/kstaniek/groundstation/internal/catalogue"
	"github.com/kstaniek/groundstation/internal/framer"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

// Kind names an adapter variant, mirrored by DeviceRegistry.Devices.
type Kind string

const (
	KindSerialPort    Kind = "serial_port"
	KindHID           Kind = "hid"
	KindFileReplay    Kind = "file_replay"
	KindAltusMetrum   Kind = "altus_metrum"
	KindAIM           Kind = "aim"
	KindFeatherweight Kind = "featherweight"
)

// ErrTimedOut is the sentinel for "no data arrived within the configured
// timeout" — the Pipeline treats it as success, not fault. The adapters in
// this package do not return it: their ReadRaw reports a timeout as
// (nil, nil).
var ErrTimedOut = errors.New("adapter: operation timed out")

// DeviceAdapter is the capability set every device variant implements. The
// Pipeline only ever calls through this interface.
type DeviceAdapter interface {
	Init(endpoint string, baud int) error
	IsInitialised() bool
	ReadRaw() ([]byte, error)
	Parse() ([]telemetry.DecodedPacket, error)
	Write(p []byte) error
	ID() uint64
	SetID(id uint64)
	Kind() Kind
}

// base carries the fields every variant needs: its assigned id and a Framer
// fed by ReadRaw and drained by Parse.
type base struct {
	id        uint64
	initDone  bool
	fr        *framer.Framer
	catalogue *catalogue.Catalogue
	clock     telemetry.Clock
}

func newBase(cat *catalogue.Catalogue, clock telemetry.Clock) base {
	return base{fr: framer.New(clock), catalogue: cat, clock: clock}
}

func (b *base) ID() uint64 { return b.id }
func (b *base) SetID(id uint64) { b.id = id }
func (b *base) IsInitialised() bool { return b.initDone }

func (b *base) Parse() ([]telemetry.DecodedPacket, error) {
	snap := b.catalogue.Snapshot()
	return b.fr.Parse(snap), nil
}

// readTimeout returns the configured per-variant read_raw timeout, used by
// the serial and HID ports below.
func readTimeout(kind Kind) time.Duration {
	switch kind {
	case KindHID:
		return 10 * time.Millisecond
	default:
		return 1 * time.Millisecond
	}
}
