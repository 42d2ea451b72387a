package framer

import (
	"encoding/binary"
	"math"

	"github.com/kstaniek/groundstation/internal/catalogue"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

// decodeField reads the bytes backing field out of framed (already sliced to
// exactly one packet instance) and returns the tagged DecodedValue. Integers
// are little-endian unless field.BigEndian is set.
func decodeField(framed []byte, field catalogue.Field) telemetry.DecodedValue {
	start := field.Offset
	width := field.Width()
	b := framed[start : start+width]

	order := binary.ByteOrder(binary.LittleEndian)
	if field.BigEndian {
		order = binary.BigEndian
	}

	switch field.Type {
	case catalogue.U8:
		return telemetry.U8(b[0])
	case catalogue.I8:
		return telemetry.I8(int8(b[0]))
	case catalogue.Bool:
		return telemetry.Bool(b[0] != 0)
	case catalogue.U16:
		return telemetry.U16(order.Uint16(b))
	case catalogue.I16:
		return telemetry.I16(int16(order.Uint16(b)))
	case catalogue.U24:
		return telemetry.U24(decodeU24(b, field.BigEndian))
	case catalogue.U32:
		return telemetry.U32(order.Uint32(b))
	case catalogue.I32:
		return telemetry.I32(int32(order.Uint32(b)))
	case catalogue.F32:
		return telemetry.F32(math.Float32frombits(order.Uint32(b)))
	case catalogue.U64:
		return telemetry.U64(order.Uint64(b))
	case catalogue.I64:
		return telemetry.I64(int64(order.Uint64(b)))
	case catalogue.F64:
		return telemetry.F64(math.Float64frombits(order.Uint64(b)))
	case catalogue.ASCIIString:
		return telemetry.String(decodeASCII(b))
	default:
		return telemetry.U8(0)
	}
}

// decodeU24 loads a 3-byte integer as the low 3 bytes of a 4-byte load, the
// cheapest way to reuse the standard library's fixed-width decoders.
func decodeU24(b []byte, bigEndian bool) uint32 {
	var buf [4]byte
	if bigEndian {
		buf[0], buf[1], buf[2], buf[3] = 0, b[0], b[1], b[2]
		return binary.BigEndian.Uint32(buf[:])
	}
	buf[0], buf[1], buf[2], buf[3] = b[0], b[1], b[2], 0
	return binary.LittleEndian.Uint32(buf[:])
}

// decodeASCII strips trailing NUL bytes for display while the canonical
// decoded value (used by downstream comparisons) never carries them either;
// an ASCII string field is fixed-width on the wire and variable-length as a
// value.
func decodeASCII(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}
