package catalogue

import (
	"bytes"
	"errors"
	"testing"
)

func sampleFormat(name string, delimOffset int, delimHex string) PacketFormat {
	ident, err := ParseHexIdentifier(delimHex)
	if err != nil {
		panic(err)
	}
	return PacketFormat{
		Name: name,
		Fields: []Field{
			{Index: 0, Name: "counter", Type: U16, Offset: 0},
		},
		Delimiters: []Delimiter{
			{Index: 0, Name: "sync", Identifier: ident, Offset: delimOffset},
		},
	}
}

func TestRegister_AssignsMonotoneIDs(t *testing.T) {
	c := New()
	id1, err := c.Register(sampleFormat("a", 2, "aa"))
	if err != nil {
		t.Fatalf("register a: %v", err)
	}
	id2, err := c.Register(sampleFormat("b", 2, "bb"))
	if err != nil {
		t.Fatalf("register b: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected distinct ids, got %d and %d", id1, id2)
	}
	if id2 <= id1 {
		t.Fatalf("expected monotone increasing ids, got %d then %d", id1, id2)
	}
}

func TestRegister_RejectsNameCollision(t *testing.T) {
	c := New()
	if _, err := c.Register(sampleFormat("dup", 2, "aa")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := c.Register(sampleFormat("dup", 2, "bb"))
	if !errors.Is(err, ErrNameCollision) {
		t.Fatalf("expected ErrNameCollision, got %v", err)
	}
}

func TestRegister_RejectsDelimiterSignatureCollision(t *testing.T) {
	c := New()
	if _, err := c.Register(sampleFormat("first", 2, "cafe")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := c.Register(sampleFormat("second", 2, "cafe"))
	if !errors.Is(err, ErrDelimiterCollision) {
		t.Fatalf("expected ErrDelimiterCollision, got %v", err)
	}
	var coll *CollidingIDs
	if !errors.As(err, &coll) {
		t.Fatalf("expected *CollidingIDs in chain, got %v", err)
	}
	if len(coll.IDs) != 1 {
		t.Fatalf("expected exactly one colliding id, got %v", coll.IDs)
	}
}

func TestRegister_RejectsUnorderedSignatureMatch(t *testing.T) {
	// Same two delimiters, different registration order: must still collide.
	id1, err := ParseHexIdentifier("11")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := ParseHexIdentifier("22")
	if err != nil {
		t.Fatal(err)
	}
	a := PacketFormat{
		Name: "a",
		Delimiters: []Delimiter{
			{Index: 0, Name: "x", Identifier: id1, Offset: 0},
			{Index: 1, Name: "y", Identifier: id2, Offset: 4},
		},
	}
	b := PacketFormat{
		Name: "b",
		Delimiters: []Delimiter{
			{Index: 0, Name: "y", Identifier: id2, Offset: 4},
			{Index: 1, Name: "x", Identifier: id1, Offset: 0},
		},
	}
	c := New()
	if _, err := c.Register(a); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if _, err := c.Register(b); !errors.Is(err, ErrDelimiterCollision) {
		t.Fatalf("expected ErrDelimiterCollision for reordered signature, got %v", err)
	}
}

func TestSetFieldType_ShiftsTrailingComponents(t *testing.T) {
	c := New()
	id, err := c.Register(sampleFormat("widen", 2, "aa"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.SetFieldType(id, 0, U32, 0); err != nil {
		t.Fatalf("SetFieldType: %v", err)
	}
	f, err := c.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if f.Fields[0].Type != U32 {
		t.Fatalf("field type not updated")
	}
	if f.Delimiters[0].Offset != 4 {
		t.Fatalf("expected delimiter shifted to offset 4 (u16->u32 = +2), got %d", f.Delimiters[0].Offset)
	}
}

func TestSetFieldType_NarrowingShiftsBack(t *testing.T) {
	c := New()
	id, err := c.Register(PacketFormat{
		Name: "narrow",
		Fields: []Field{
			{Index: 0, Name: "big", Type: U32, Offset: 0},
		},
		Delimiters: []Delimiter{
			{Index: 0, Name: "sync", Identifier: []byte{0xaa}, Offset: 4},
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.SetFieldType(id, 0, U8, 0); err != nil {
		t.Fatalf("SetFieldType: %v", err)
	}
	f, _ := c.Get(id)
	if f.Delimiters[0].Offset != 1 {
		t.Fatalf("expected delimiter shifted to offset 1, got %d", f.Delimiters[0].Offset)
	}
}

func TestSetDelimiterIdentifier_RejectsNewCollision(t *testing.T) {
	c := New()
	idA, err := c.Register(sampleFormat("a", 2, "aa"))
	if err != nil {
		t.Fatalf("register a: %v", err)
	}
	if _, err := c.Register(sampleFormat("b", 2, "bb")); err != nil {
		t.Fatalf("register b: %v", err)
	}
	err = c.SetDelimiterIdentifier(idA, 0, "bb")
	if !errors.Is(err, ErrDelimiterCollision) {
		t.Fatalf("expected ErrDelimiterCollision, got %v", err)
	}
	// original format must be untouched
	f, _ := c.Get(idA)
	if HexString(f.Delimiters[0].Identifier) != "aa" {
		t.Fatalf("mutation leaked despite rejected collision: %v", f.Delimiters[0].Identifier)
	}
}

func TestDeleteComponent_RefusesLastField(t *testing.T) {
	c := New()
	id, err := c.Register(sampleFormat("solo", 2, "aa"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.DeleteComponent(id, 0, KindField); !errors.Is(err, ErrCannotDeleteLastField) {
		t.Fatalf("expected ErrCannotDeleteLastField, got %v", err)
	}
}

func TestDeleteComponent_RefusesLastDelimiter(t *testing.T) {
	c := New()
	id, err := c.Register(sampleFormat("solo", 2, "aa"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.DeleteComponent(id, 0, KindDelimiter); !errors.Is(err, ErrCannotDeleteLastDelimiter) {
		t.Fatalf("expected ErrCannotDeleteLastDelimiter, got %v", err)
	}
}

func TestDeleteComponent_ShiftsAndRepacksIndices(t *testing.T) {
	c := New()
	id, err := c.Register(PacketFormat{
		Name: "three-field",
		Fields: []Field{
			{Index: 0, Name: "a", Type: U8, Offset: 0},
			{Index: 1, Name: "b", Type: U16, Offset: 1},
			{Index: 2, Name: "c", Type: U8, Offset: 3},
		},
		Delimiters: []Delimiter{
			{Index: 0, Name: "sync", Identifier: []byte{0xaa}, Offset: 4},
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.DeleteComponent(id, 1, KindField); err != nil {
		t.Fatalf("delete field 1: %v", err)
	}
	f, _ := c.Get(id)
	if len(f.Fields) != 2 {
		t.Fatalf("expected 2 fields left, got %d", len(f.Fields))
	}
	if f.Fields[0].Index != 0 || f.Fields[1].Index != 1 {
		t.Fatalf("expected repacked indices 0,1, got %d,%d", f.Fields[0].Index, f.Fields[1].Index)
	}
	if f.Fields[1].Offset != 1 {
		t.Fatalf("expected field c shifted to offset 1, got %d", f.Fields[1].Offset)
	}
	if f.Delimiters[0].Offset != 2 {
		t.Fatalf("expected delimiter shifted to offset 2, got %d", f.Delimiters[0].Offset)
	}
}

func TestGaps_DerivedNotPersisted(t *testing.T) {
	f := PacketFormat{
		Fields: []Field{
			{Index: 0, Type: U8, Offset: 0},
			{Index: 1, Type: U8, Offset: 5},
		},
		Delimiters: []Delimiter{
			{Index: 0, Identifier: []byte{0xaa}, Offset: 10},
		},
	}
	gaps := f.Gaps()
	if len(gaps) != 2 {
		t.Fatalf("expected 2 gaps, got %d: %+v", len(gaps), gaps)
	}
	if gaps[0].Offset != 1 || gaps[0].Size != 4 {
		t.Fatalf("unexpected first gap: %+v", gaps[0])
	}
	if gaps[1].Offset != 6 || gaps[1].Size != 4 {
		t.Fatalf("unexpected second gap: %+v", gaps[1])
	}
}

func TestSetGapSize_PicksNearestStrictlyGreaterOffset(t *testing.T) {
	c := New()
	id, err := c.Register(PacketFormat{
		Name: "gapped",
		Fields: []Field{
			{Index: 0, Type: U8, Offset: 0},
			{Index: 1, Type: U8, Offset: 5},
		},
		Delimiters: []Delimiter{
			{Index: 0, Identifier: []byte{0xaa}, Offset: 10},
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.SetGapSize(id, 1, 1); err != nil {
		t.Fatalf("SetGapSize: %v", err)
	}
	f, _ := c.Get(id)
	if f.Fields[1].Offset != 2 {
		t.Fatalf("expected field shifted to offset 2, got %d", f.Fields[1].Offset)
	}
	if f.Delimiters[0].Offset != 7 {
		t.Fatalf("expected delimiter shifted to offset 7, got %d", f.Delimiters[0].Offset)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	c := New()
	if _, err := c.Register(sampleFormat("roundtrip", 2, "cafe")); err != nil {
		t.Fatalf("register: %v", err)
	}
	var buf bytes.Buffer
	if err := c.Save(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}

	c2 := New()
	if err := c2.Load(&buf); err != nil {
		t.Fatalf("load: %v", err)
	}
	formats := c2.Formats()
	if len(formats) != 1 {
		t.Fatalf("expected 1 format after load, got %d", len(formats))
	}
	if formats[0].Name != "roundtrip" {
		t.Fatalf("unexpected format name %q", formats[0].Name)
	}
	if HexString(formats[0].Delimiters[0].Identifier) != "cafe" {
		t.Fatalf("unexpected delimiter identifier %x", formats[0].Delimiters[0].Identifier)
	}
}

func TestLoad_MalformedDocumentFailsClosed(t *testing.T) {
	c := New()
	bad := bytes.NewBufferString("formats:\n  - name: broken\n    delimiters:\n      - name: sync\n        identifier: zz\n        offset: 0\n")
	err := c.Load(bad)
	if err == nil {
		t.Fatalf("expected error for invalid hex identifier")
	}
	if len(c.Formats()) != 0 {
		t.Fatalf("expected catalogue to remain empty after malformed load, got %d formats", len(c.Formats()))
	}
}

func TestSnapshot_AggregatesTrackMinMaxAndFirstDelimiterOffset(t *testing.T) {
	c := New()
	if _, err := c.Register(sampleFormat("small", 2, "aa")); err != nil {
		t.Fatalf("register small: %v", err)
	}
	big := PacketFormat{
		Name: "big",
		Fields: []Field{
			{Index: 0, Type: U64, Offset: 0},
		},
		Delimiters: []Delimiter{
			{Index: 0, Identifier: []byte{0xbb}, Offset: 20},
		},
	}
	if _, err := c.Register(big); err != nil {
		t.Fatalf("register big: %v", err)
	}
	snap := c.Snapshot()
	if snap.MaxFirst != 20 {
		t.Fatalf("expected MaxFirst=20, got %d", snap.MaxFirst)
	}
	if snap.MinSize >= snap.MaxSize {
		t.Fatalf("expected MinSize < MaxSize, got min=%d max=%d", snap.MinSize, snap.MaxSize)
	}
}
