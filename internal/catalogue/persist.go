package catalogue

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// document is the on-disk YAML shape: identifiers are hex strings so the
// file stays human-editable, and the document carries no aggregates or
// internal indices, only what a human would author by hand.
type document struct {
	Formats []formatDoc `yaml:"formats"`
}

type formatDoc struct {
	Name       string         `yaml:"name"`
	Fields     []fieldDoc     `yaml:"fields,omitempty"`
	Delimiters []delimiterDoc `yaml:"delimiters"`
}

type fieldDoc struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Offset    int    `yaml:"offset"`
	StrLen    int    `yaml:"str_len,omitempty"`
	BigEndian bool   `yaml:"big_endian,omitempty"`
}

type delimiterDoc struct {
	Name       string `yaml:"name"`
	Identifier string `yaml:"identifier"`
	Offset     int    `yaml:"offset"`
}

var fieldTypeNames = map[FieldType]string{
	U8: "u8", I8: "i8", U16: "u16", I16: "i16", U24: "u24",
	U32: "u32", I32: "i32", U64: "u64", I64: "i64",
	F32: "f32", F64: "f64", Bool: "bool", ASCIIString: "ascii_string",
}

var fieldTypesByName = func() map[string]FieldType {
	m := make(map[string]FieldType, len(fieldTypeNames))
	for t, n := range fieldTypeNames {
		m[n] = t
	}
	return m
}()

// Save serializes every registered format to w as a single YAML document.
func (c *Catalogue) Save(w io.Writer) error {
	formats := c.Formats()
	doc := document{Formats: make([]formatDoc, len(formats))}
	for i, f := range formats {
		fd := formatDoc{Name: f.Name, Delimiters: make([]delimiterDoc, len(f.Delimiters))}
		for _, field := range f.Fields {
			fd.Fields = append(fd.Fields, fieldDoc{
				Name:      field.Name,
				Type:      fieldTypeNames[field.Type],
				Offset:    field.Offset,
				StrLen:    field.StrLen,
				BigEndian: field.BigEndian,
			})
		}
		for j, d := range f.Delimiters {
			fd.Delimiters[j] = delimiterDoc{
				Name:       d.Name,
				Identifier: HexString(d.Identifier),
				Offset:     d.Offset,
			}
		}
		doc.Formats[i] = fd
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(&doc)
}

// Load decodes a YAML document produced by Save (or hand-authored in the
// same shape) and replays every format through Register, so the same
// invariants apply to a persisted catalogue as to one built at runtime. A
// format that fails validation is skipped and its error collected rather
// than aborting the whole load; the catalogue never panics on a malformed
// file, it just comes up emptier than intended.
func (c *Catalogue) Load(r io.Reader) error {
	var doc document
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("catalogue: decode: %w", err)
	}

	var errs []error
	for _, fd := range doc.Formats {
		pf, err := fd.toPacketFormat()
		if err != nil {
			errs = append(errs, fmt.Errorf("catalogue: format %q: %w", fd.Name, err))
			continue
		}
		if _, err := c.Register(pf); err != nil {
			errs = append(errs, fmt.Errorf("catalogue: format %q: %w", fd.Name, err))
		}
	}
	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func (fd formatDoc) toPacketFormat() (PacketFormat, error) {
	pf := PacketFormat{Name: fd.Name}
	for i, f := range fd.Fields {
		t, ok := fieldTypesByName[f.Type]
		if !ok {
			return PacketFormat{}, fmt.Errorf("unknown field type %q", f.Type)
		}
		pf.Fields = append(pf.Fields, Field{
			Index: i, Name: f.Name, Type: t, Offset: f.Offset,
			StrLen: f.StrLen, BigEndian: f.BigEndian,
		})
	}
	for i, d := range fd.Delimiters {
		ident, err := ParseHexIdentifier(d.Identifier)
		if err != nil {
			return PacketFormat{}, err
		}
		pf.Delimiters = append(pf.Delimiters, Delimiter{
			Index: i, Name: d.Name, Identifier: ident, Offset: d.Offset,
		})
	}
	return pf, nil
}

// joinErrors concatenates multiple load errors into one, since the
// catalogue package otherwise only ever returns a single sentinel-wrapped
// error and callers shouldn't need errors.Join-style unwrapping for this.
func joinErrors(errs []error) error {
	msg := fmt.Sprintf("%d format(s) failed to load:", len(errs))
	for _, e := range errs {
		msg += "\n  " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
