// Package telemetry holds the decoded-packet value types shared by the
// adapters, framer and pipeline. It has no behaviour of its own; it is the
// wire-free vocabulary the rest of the core speaks in.
package telemetry

import "fmt"

// ValueKind tags which field of DecodedValue is populated.
type ValueKind int

const (
	KindU8 ValueKind = iota
	KindI8
	KindU16
	KindI16
	KindU24
	KindU32
	KindI32
	KindU64
	KindI64
	KindF32
	KindF64
	KindBool
	KindString
)

// DecodedValue is a tagged union over every primitive wire type a Field can
// decode to. Only the member matching Kind is meaningful.
type DecodedValue struct {
	Kind ValueKind
	U64  uint64
	I64  int64
	F64  float64
	Bool bool
	Str  string
}

func U8(v uint8) DecodedValue { return DecodedValue{Kind: KindU8, U64: uint64(v)} }
func I8(v int8) DecodedValue { return DecodedValue{Kind: KindI8, I64: int64(v)} }
func U16(v uint16) DecodedValue { return DecodedValue{Kind: KindU16, U64: uint64(v)} }
func I16(v int16) DecodedValue { return DecodedValue{Kind: KindI16, I64: int64(v)} }
func U24(v uint32) DecodedValue { return DecodedValue{Kind: KindU24, U64: uint64(v)} }
func U32(v uint32) DecodedValue { return DecodedValue{Kind: KindU32, U64: uint64(v)} }
func I32(v int32) DecodedValue { return DecodedValue{Kind: KindI32, I64: int64(v)} }
func U64(v uint64) DecodedValue { return DecodedValue{Kind: KindU64, U64: v} }
func I64(v int64) DecodedValue { return DecodedValue{Kind: KindI64, I64: v} }
func F32(v float32) DecodedValue { return DecodedValue{Kind: KindF32, F64: float64(v)} }
func F64(v float64) DecodedValue { return DecodedValue{Kind: KindF64, F64: v} }
func Bool(v bool) DecodedValue { return DecodedValue{Kind: KindBool, Bool: v} }
func String(v string) DecodedValue { return DecodedValue{Kind: KindString, Str: v} }

// Display renders the value the way the decoded CSV log wants it: integers as
// decimal, floats with full precision, bools as true/false, strings unquoted.
func (v DecodedValue) Display() string {
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindString:
		return v.Str
	case KindF32:
		return fmt.Sprintf("%g", float32(v.F64))
	case KindF64:
		return fmt.Sprintf("%g", v.F64)
	case KindI8, KindI16, KindI32, KindI64:
		return fmt.Sprintf("%d", v.I64)
	default: // unsigned kinds
		return fmt.Sprintf("%d", v.U64)
	}
}

// Metadata carries adapter-produced side information (e.g. RSSI) attached to
// a decoded packet. Keys are adapter-defined; values are float64 so they can
// be logged and graphed uniformly.
type Metadata map[string]float64

// DecodedPacket is one recognised-and-decoded instance of a registered
// PacketFormat.
type DecodedPacket struct {
	FormatID   uint64
	FormatName string
	Values     []DecodedValue
	ReceivedAt int64 // monotonic milliseconds, see Clock
	Metadata   Metadata
}

// Clock abstracts "now" as monotonic milliseconds so the framer's wrap-around
// correction and the pipeline's ReceivedAt stamps are deterministic in tests.
type Clock func() int64
