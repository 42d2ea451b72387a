// Package catalogue holds the data model and editing algebra for
// user-defined binary packet formats: the set of registered PacketFormats,
// their fields, delimiters and derived gaps, and the aggregates the framer
// needs to scan a byte stream.
package catalogue

import "fmt"

// FieldType is the closed set of primitive wire types a Field can decode to.
// Multi-byte integers are little-endian on the wire unless a format
// registers a big-endian variant explicitly (see BigEndian on Field).
type FieldType int

const (
	U8 FieldType = iota
	I8
	U16
	I16
	U24
	U32
	I32
	U64
	I64
	F32
	F64
	Bool
	ASCIIString
)

// Width returns the fixed byte width of t. ASCIIString has no fixed width;
// callers must use Field.Width instead, which accounts for the field's
// declared string length.
func (t FieldType) Width() int {
	switch t {
	case U8, I8, Bool:
		return 1
	case U16, I16:
		return 2
	case U24:
		return 3
	case U32, I32, F32:
		return 4
	case U64, I64, F64:
		return 8
	default:
		return 0
	}
}

func (t FieldType) String() string {
	switch t {
	case U8:
		return "u8"
	case I8:
		return "i8"
	case U16:
		return "u16"
	case I16:
		return "i16"
	case U24:
		return "u24"
	case U32:
		return "u32"
	case I32:
		return "i32"
	case U64:
		return "u64"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Bool:
		return "bool"
	case ASCIIString:
		return "ascii_string"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Field is a named, typed slot at a declared byte offset within a packet.
type Field struct {
	Index     int
	Name      string
	Type      FieldType
	Offset    int
	StrLen    int  // only meaningful when Type == ASCIIString
	BigEndian bool // wire byte order override; false = little-endian
}

// Width returns the component's byte span on the wire.
func (f Field) Width() int {
	if f.Type == ASCIIString {
		return f.StrLen
	}
	return f.Type.Width()
}

// Delimiter is a fixed byte pattern anchored at a declared offset, used to
// recognise a packet on the wire. Every PacketFormat has at least one.
type Delimiter struct {
	Index      int
	Name       string
	Identifier []byte
	Offset     int
}

// Width returns the delimiter's byte span on the wire.
func (d Delimiter) Width() int { return len(d.Identifier) }

// CRC is an optional per-format check run over the framed byte range.
// Validate receives exactly format.Size() bytes starting at the packet's
// first byte and returns true if the check passes.
type CRC struct {
	Length   int
	Offset   int
	Validate func(framed []byte) bool
}

// Gap is a view-only region of bytes belonging to neither a field nor a
// delimiter. Gaps are derived from the holes between components and are
// never persisted.
type Gap struct {
	Offset int
	Size   int
}

// componentKind distinguishes a Field from a Delimiter for delete/resize
// operations that must address either. ComponentKind is the exported alias
// callers outside the package use to name the type; the operations always
// take and return the KindField/KindDelimiter constants.
type componentKind int

type ComponentKind = componentKind

const (
	KindField componentKind = iota
	KindDelimiter
)

// PacketFormat is one registered binary packet layout.
type PacketFormat struct {
	ID         uint64
	Name       string
	Fields     []Field
	Delimiters []Delimiter
	CRC        *CRC
}

// Size returns max(offset+width) over every field and delimiter.
func (p *PacketFormat) Size() int {
	size := 0
	for _, f := range p.Fields {
		if end := f.Offset + f.Width(); end > size {
			size = end
		}
	}
	for _, d := range p.Delimiters {
		if end := d.Offset + d.Width(); end > size {
			size = end
		}
	}
	return size
}

// FirstDelimiter returns the format's anchor delimiter. Callers must only
// invoke this on formats already known to have at least one delimiter
// (register enforces this).
func (p *PacketFormat) FirstDelimiter() Delimiter { return p.Delimiters[0] }

// delimiterSignature is the multiset of (offset, identifier) pairs used for
// collision detection: two formats collide iff their signatures are equal,
// element for element, regardless of order.
type delimiterSignature []Delimiter

func signatureOf(p *PacketFormat) delimiterSignature {
	sig := make(delimiterSignature, len(p.Delimiters))
	copy(sig, p.Delimiters)
	return sig
}

func signaturesEqual(a, b delimiterSignature) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, da := range a {
		found := false
		for j, db := range b {
			if used[j] {
				continue
			}
			if da.Offset == db.Offset && string(da.Identifier) == string(db.Identifier) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Gaps derives the view-only gap list for p: every hole between consecutive
// component byte ranges (fields and delimiters merged and sorted by offset).
func (p *PacketFormat) Gaps() []Gap {
	type span = struct{ start, end int }
	spans := make([]span, 0, len(p.Fields)+len(p.Delimiters))
	for _, f := range p.Fields {
		spans = append(spans, span{f.Offset, f.Offset + f.Width()})
	}
	for _, d := range p.Delimiters {
		spans = append(spans, span{d.Offset, d.Offset + d.Width()})
	}
	sortSpans(spans)
	var gaps []Gap
	cursor := 0
	for _, s := range spans {
		if s.start > cursor {
			gaps = append(gaps, Gap{Offset: cursor, Size: s.start - cursor})
		}
		if s.end > cursor {
			cursor = s.end
		}
	}
	return gaps
}

func sortSpans(s []struct{ start, end int }) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1].start > s[j].start; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
