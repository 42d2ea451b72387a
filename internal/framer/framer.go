// Package framer recognises and decodes binary packets out of a raw byte
// stream against a catalogue.Snapshot, the way internal/serial/codec.go
// recognises CAN-UART frames against a fixed preamble, generalised to an
// arbitrary, runtime-editable set of delimiter-anchored formats.
package framer

import (
	"bytes"

	"github.com/kstaniek/groundstation/internal/catalogue"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

// Framer holds the append-only unparsed buffer plus the AltusMetrum
// wrap-around state, one instance per device so interleaved streams never
// share timestamp corrections.
type Framer struct {
	unparsed []byte
	wrap     map[string]*wrapState
	clock    telemetry.Clock
}

// New returns a Framer that stamps decoded packets using clock. Pass
// time.Now truncated to milliseconds in production; tests supply a fixed
// or stepping clock for determinism.
func New(clock telemetry.Clock) *Framer {
	return &Framer{wrap: make(map[string]*wrapState), clock: clock}
}

// Push appends newly read bytes to the unparsed buffer.
func (f *Framer) Push(data []byte) {
	f.unparsed = append(f.unparsed, data...)
}

// Buffered returns the number of unparsed bytes currently held, for
// diagnostics and tests.
func (f *Framer) Buffered() int { return len(f.unparsed) }

// Parse drains as many complete packets as it can recognise against snap,
// emits them in acceptance order, and discards consumed plus
// unrecognisable prefix bytes so the buffer stays bounded.
func (f *Framer) Parse(snap catalogue.Snapshot) []telemetry.DecodedPacket {
	data := f.unparsed
	n := len(data)

	scanLimit := 0
	if n > snap.MinSize {
		scanLimit = n - snap.MinSize
	}
	scanLimit += snap.MaxFirst + 1

	var packets []telemetry.DecodedPacket
	lastEnd := 0

	for i := 0; i < scanLimit; i++ {
		for fi := range snap.Formats {
			format := &snap.Formats[fi]
			if len(format.Delimiters) == 0 {
				continue
			}
			d0 := format.Delimiters[0]

			if i+len(d0.Identifier) > n {
				continue
			}
			if d0.Offset > i {
				continue
			}
			start := i - d0.Offset
			if start < lastEnd {
				continue
			}
			if !bytes.Equal(data[i:i+len(d0.Identifier)], d0.Identifier) {
				continue
			}
			size := format.Size()
			if start+size > n {
				continue
			}
			if !remainingDelimitersMatch(data, start, format) {
				continue
			}
			if format.CRC != nil && format.CRC.Validate != nil {
				if !format.CRC.Validate(data[start : start+size]) {
					continue
				}
			}

			framed := data[start : start+size]
			packets = append(packets, f.decodePacket(format, framed))
			lastEnd = start + size
		}
	}

	keepFrom := lastEnd
	if floor := n - snap.MaxSize; floor > keepFrom {
		keepFrom = floor
	}
	if keepFrom < 0 {
		keepFrom = 0
	}
	if keepFrom > n {
		keepFrom = n
	}
	f.unparsed = append([]byte(nil), data[keepFrom:]...)

	return packets
}

func remainingDelimitersMatch(data []byte, start int, format *catalogue.PacketFormat) bool {
	for _, d := range format.Delimiters[1:] {
		s := start + d.Offset
		if s < 0 || s+len(d.Identifier) > len(data) {
			return false
		}
		if !bytes.Equal(data[s:s+len(d.Identifier)], d.Identifier) {
			return false
		}
	}
	return true
}

func (f *Framer) decodePacket(format *catalogue.PacketFormat, framed []byte) telemetry.DecodedPacket {
	values := make([]telemetry.DecodedValue, len(format.Fields))
	for i, field := range format.Fields {
		values[i] = decodeField(framed, field)
	}

	if altusMetrumFormats[format.Name] && len(values) > 0 {
		w := f.wrap[format.Name]
		if w == nil {
			w = &wrapState{}
			f.wrap[format.Name] = w
		}
		tick := values[0].U64
		values[0] = telemetry.U64(w.correct(tick))
	}

	return telemetry.DecodedPacket{
		FormatID:   format.ID,
		FormatName: format.Name,
		Values:     values,
		ReceivedAt: f.clock(),
	}
}
