package catalogue

import (
	"sort"
	"strconv"
	"sync"
)

// Catalogue holds the ordered set of registered PacketFormats plus the
// aggregates (MinSize, MaxSize, MaxFirstDelimiterOffset) the Framer needs to
// bound its scan window. Every mutation is transactional: it is validated
// against a clone of the affected format before being committed, so a
// failing mutation leaves the prior state completely intact.
type Catalogue struct {
	mu      sync.RWMutex
	formats []*PacketFormat // ordered by registration; ids are not indices
	nextID  uint64

	minSize  int
	maxSize  int
	maxFirst int
}

// New returns an empty Catalogue.
func New() *Catalogue {
	return &Catalogue{nextID: 1}
}

// Snapshot is the read-only view the Framer takes once per tick, under the
// Catalogue lock, and then scans without holding that lock.
type Snapshot struct {
	Formats  []PacketFormat
	MinSize  int
	MaxSize  int
	MaxFirst int
}

// Snapshot returns a deep copy of the current formats plus aggregates.
func (c *Catalogue) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]PacketFormat, len(c.formats))
	for i, f := range c.formats {
		out[i] = cloneFormat(f)
	}
	return Snapshot{Formats: out, MinSize: c.minSize, MaxSize: c.maxSize, MaxFirst: c.maxFirst}
}

// Formats returns a deep copy of every registered format, in registration
// order. Intended for UI listing / persistence, not for the hot parse path.
func (c *Catalogue) Formats() []PacketFormat {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]PacketFormat, len(c.formats))
	for i, f := range c.formats {
		out[i] = cloneFormat(f)
	}
	return out
}

func cloneFormat(f *PacketFormat) PacketFormat {
	cp := *f
	cp.Fields = append([]Field(nil), f.Fields...)
	cp.Delimiters = make([]Delimiter, len(f.Delimiters))
	for i, d := range f.Delimiters {
		cp.Delimiters[i] = d
		cp.Delimiters[i].Identifier = append([]byte(nil), d.Identifier...)
	}
	if f.CRC != nil {
		crc := *f.CRC
		cp.CRC = &crc
	}
	return cp
}

// Register assigns a fresh monotone id to format, enforces the name and
// delimiter-signature invariants, and updates the cached aggregates.
// format.ID is ignored; the id assigned by the catalogue is returned.
func (c *Catalogue) Register(format PacketFormat) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(format.Delimiters) == 0 {
		return 0, ErrNoComponents
	}
	if err := validateNoOverlap(&format); err != nil {
		return 0, err
	}
	for _, f := range c.formats {
		if f.Name == format.Name {
			return 0, collisionErr(ErrNameCollision, []uint64{f.ID})
		}
	}
	if ids := c.collidingDelimiterIDs(&format, 0); len(ids) > 0 {
		return 0, collisionErr(ErrDelimiterCollision, ids)
	}

	id := c.nextID
	c.nextID++
	format.ID = id
	stored := cloneFormat(&format)
	c.formats = append(c.formats, &stored)
	c.recalcAggregates()
	return id, nil
}

// Get returns a copy of the format registered under id.
func (c *Catalogue) Get(id uint64) (PacketFormat, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, _, err := c.find(id)
	if err != nil {
		return PacketFormat{}, err
	}
	return cloneFormat(f), nil
}

func (c *Catalogue) find(id uint64) (*PacketFormat, int, error) {
	for i, f := range c.formats {
		if f.ID == id {
			return f, i, nil
		}
	}
	return nil, -1, notFoundErr(id)
}

// collidingDelimiterIDs returns the ids of every other registered format
// whose delimiter signature equals format's, excluding excludeID.
func (c *Catalogue) collidingDelimiterIDs(format *PacketFormat, excludeID uint64) []uint64 {
	sig := signatureOf(format)
	var ids []uint64
	for _, f := range c.formats {
		if f.ID == excludeID {
			continue
		}
		if signaturesEqual(sig, signatureOf(f)) {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

// validateNoOverlap checks that no two components (field or delimiter) in
// format share a byte range.
func validateNoOverlap(p *PacketFormat) error {
	type span struct{ start, end int }
	var spans []span
	for _, f := range p.Fields {
		spans = append(spans, span{f.Offset, f.Offset + f.Width()})
	}
	for _, d := range p.Delimiters {
		if len(d.Identifier) == 0 {
			return ErrEmptyIdentifier
		}
		spans = append(spans, span{d.Offset, d.Offset + d.Width()})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			return ErrOverlap
		}
	}
	return nil
}

// recalcAggregates recomputes MinSize/MaxSize/MaxFirstDelimiterOffset over
// every registered format. Called after every mutation, under the lock.
func (c *Catalogue) recalcAggregates() {
	if len(c.formats) == 0 {
		c.minSize, c.maxSize, c.maxFirst = 0, 0, 0
		return
	}
	minSize := -1
	maxSize := 0
	maxFirst := 0
	for _, f := range c.formats {
		sz := f.Size()
		if minSize < 0 || sz < minSize {
			minSize = sz
		}
		if sz > maxSize {
			maxSize = sz
		}
		if d := f.FirstDelimiter(); d.Offset > maxFirst {
			maxFirst = d.Offset
		}
	}
	c.minSize, c.maxSize, c.maxFirst = minSize, maxSize, maxFirst
}

// mutate runs fn against a clone of the format registered under id; if fn
// succeeds and the clone still satisfies the overlap invariant, the clone
// replaces the stored format and aggregates are recalculated. On any error
// the stored state is untouched.
func (c *Catalogue) mutate(id uint64, fn func(*PacketFormat) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	orig, idx, err := c.find(id)
	if err != nil {
		return err
	}
	clone := cloneFormat(orig)
	if err := fn(&clone); err != nil {
		return err
	}
	if err := validateNoOverlap(&clone); err != nil {
		return err
	}
	stored := clone
	c.formats[idx] = &stored
	c.recalcAggregates()
	return nil
}

// shiftComponentsAfter adjusts every field/delimiter offset greater than
// minOffset by delta. Returns ErrOffsetOverflow (leaving p partially
// mutated; callers always operate on a throwaway clone) if any resulting
// offset would go negative.
func shiftComponentsAfter(p *PacketFormat, delta, minOffset int) error {
	for i := range p.Fields {
		if p.Fields[i].Offset > minOffset {
			next := p.Fields[i].Offset + delta
			if next < 0 {
				return ErrOffsetOverflow
			}
			p.Fields[i].Offset = next
		}
	}
	for i := range p.Delimiters {
		if p.Delimiters[i].Offset > minOffset {
			next := p.Delimiters[i].Offset + delta
			if next < 0 {
				return ErrOffsetOverflow
			}
			p.Delimiters[i].Offset = next
		}
	}
	return nil
}

// SetName renames a format. Fails with ErrNameCollision if another format
// already uses name.
func (c *Catalogue) SetName(id uint64, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	orig, idx, err := c.find(id)
	if err != nil {
		return err
	}
	for _, f := range c.formats {
		if f.ID != id && f.Name == name {
			return collisionErr(ErrNameCollision, []uint64{f.ID})
		}
	}
	clone := cloneFormat(orig)
	clone.Name = name
	stored := clone
	c.formats[idx] = &stored
	return nil
}

// SetFieldName renames one field within a format.
func (c *Catalogue) SetFieldName(id uint64, fieldIndex int, name string) error {
	return c.mutate(id, func(p *PacketFormat) error {
		i, err := fieldPos(p, fieldIndex)
		if err != nil {
			return err
		}
		p.Fields[i].Name = name
		return nil
	})
}

// SetFieldType changes a field's wire type (and, for ASCIIString, its
// declared length), shifting every component after it by the resulting
// width delta.
func (c *Catalogue) SetFieldType(id uint64, fieldIndex int, newType FieldType, strLen int) error {
	return c.mutate(id, func(p *PacketFormat) error {
		i, err := fieldPos(p, fieldIndex)
		if err != nil {
			return err
		}
		oldWidth := p.Fields[i].Width()
		offset := p.Fields[i].Offset
		p.Fields[i].Type = newType
		if newType == ASCIIString {
			p.Fields[i].StrLen = strLen
		} else {
			p.Fields[i].StrLen = 0
		}
		newWidth := p.Fields[i].Width()
		return shiftComponentsAfter(p, newWidth-oldWidth, offset)
	})
}

// SetDelimiterName renames one delimiter within a format.
func (c *Catalogue) SetDelimiterName(id uint64, delimIndex int, name string) error {
	return c.mutate(id, func(p *PacketFormat) error {
		i, err := delimiterPos(p, delimIndex)
		if err != nil {
			return err
		}
		p.Delimiters[i].Name = name
		return nil
	})
}

// SetDelimiterIdentifier reparses hexIdentifier, installs it on the given
// delimiter, shifts trailing components by the resulting width delta, and
// rejects the change if it produces a delimiter-signature collision with
// another registered format.
func (c *Catalogue) SetDelimiterIdentifier(id uint64, delimIndex int, hexIdentifier string) error {
	ident, err := ParseHexIdentifier(hexIdentifier)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	orig, idx, err := c.find(id)
	if err != nil {
		return err
	}
	clone := cloneFormat(orig)
	i, err := delimiterPos(&clone, delimIndex)
	if err != nil {
		return err
	}
	oldWidth := len(clone.Delimiters[i].Identifier)
	offset := clone.Delimiters[i].Offset
	clone.Delimiters[i].Identifier = ident
	if err := shiftComponentsAfter(&clone, len(ident)-oldWidth, offset); err != nil {
		return err
	}
	if err := validateNoOverlap(&clone); err != nil {
		return err
	}
	if ids := c.collidingDelimiterIDs(&clone, id); len(ids) > 0 {
		return collisionErr(ErrDelimiterCollision, ids)
	}
	stored := clone
	c.formats[idx] = &stored
	c.recalcAggregates()
	return nil
}

// SetGapSize resizes the gap starting at gapStart to newSize bytes, shifting
// every component at or after the gap's end by the resulting delta. The
// gap's end is the offset of the nearest component starting strictly after
// gapStart, ties broken by lower index (see SPEC_FULL.md §9 for why this departs
// from the >= comparison in the original implementation).
func (c *Catalogue) SetGapSize(id uint64, gapStart, newSize int) error {
	return c.mutate(id, func(p *PacketFormat) error {
		gapEnd, found := nearestComponentStartAfter(p, gapStart)
		if !found {
			return ErrNoComponents
		}
		oldSize := gapEnd - gapStart
		return shiftComponentsAfter(p, newSize-oldSize, gapStart)
	})
}

func nearestComponentStartAfter(p *PacketFormat, gapStart int) (int, bool) {
	best := 0
	found := false
	consider := func(offset, index int) {
		if offset <= gapStart {
			return
		}
		if !found || offset < best {
			best, found = offset, true
		}
	}
	for _, f := range p.Fields {
		consider(f.Offset, f.Index)
	}
	for _, d := range p.Delimiters {
		consider(d.Offset, d.Index)
	}
	return best, found
}

// AddField appends a new u8 field at the end of the packet and returns its
// index.
func (c *Catalogue) AddField(id uint64) (int, error) {
	var idx int
	err := c.mutate(id, func(p *PacketFormat) error {
		idx = len(p.Fields)
		p.Fields = append(p.Fields, Field{
			Index:  idx,
			Name:   defaultFieldName(idx),
			Type:   U8,
			Offset: p.Size(),
		})
		return nil
	})
	return idx, err
}

// AddDelimiter appends a new single-byte delimiter at the end of the packet
// and returns its index. The caller is expected to follow up with
// SetDelimiterIdentifier once the user picks a real pattern.
func (c *Catalogue) AddDelimiter(id uint64) (int, error) {
	var idx int
	err := c.mutate(id, func(p *PacketFormat) error {
		idx = len(p.Delimiters)
		p.Delimiters = append(p.Delimiters, Delimiter{
			Index:      idx,
			Name:       defaultDelimiterName(idx),
			Identifier: []byte{0xff},
			Offset:     p.Size(),
		})
		return nil
	})
	return idx, err
}

// AddGapAfter inserts `size` bytes of gap immediately after the named
// component (kind selects Field vs Delimiter), shifting every later
// component's offset forward by size.
func (c *Catalogue) AddGapAfter(id uint64, kind componentKind, index, size int) error {
	return c.mutate(id, func(p *PacketFormat) error {
		var after int
		switch kind {
		case KindField:
			i, err := fieldPos(p, index)
			if err != nil {
				return err
			}
			after = p.Fields[i].Offset + p.Fields[i].Width()
		case KindDelimiter:
			i, err := delimiterPos(p, index)
			if err != nil {
				return err
			}
			after = p.Delimiters[i].Offset + p.Delimiters[i].Width()
		}
		return shiftComponentsAfter(p, size, after-1)
	})
}

// DeleteComponent removes the field or delimiter at index, refusing to
// delete the last field or the last delimiter, and shifts everything after
// it left by its width, re-packing the remaining indices.
func (c *Catalogue) DeleteComponent(id uint64, index int, kind componentKind) error {
	return c.mutate(id, func(p *PacketFormat) error {
		switch kind {
		case KindField:
			if len(p.Fields) <= 1 {
				return ErrCannotDeleteLastField
			}
			i, err := fieldPos(p, index)
			if err != nil {
				return err
			}
			width := p.Fields[i].Width()
			offset := p.Fields[i].Offset
			p.Fields = append(p.Fields[:i], p.Fields[i+1:]...)
			if err := shiftComponentsAfter(p, -width, offset); err != nil {
				return err
			}
			repackFieldIndices(p)
		case KindDelimiter:
			if len(p.Delimiters) <= 1 {
				return ErrCannotDeleteLastDelimiter
			}
			i, err := delimiterPos(p, index)
			if err != nil {
				return err
			}
			width := p.Delimiters[i].Width()
			offset := p.Delimiters[i].Offset
			p.Delimiters = append(p.Delimiters[:i], p.Delimiters[i+1:]...)
			if err := shiftComponentsAfter(p, -width, offset); err != nil {
				return err
			}
			repackDelimiterIndices(p)
		}
		return nil
	})
}

// DeleteFormat removes a format entirely.
func (c *Catalogue) DeleteFormat(id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, idx, err := c.find(id)
	if err != nil {
		return err
	}
	c.formats = append(c.formats[:idx], c.formats[idx+1:]...)
	c.recalcAggregates()
	return nil
}

func fieldPos(p *PacketFormat, index int) (int, error) {
	for i, f := range p.Fields {
		if f.Index == index {
			return i, nil
		}
	}
	return 0, ErrUnknownComponent
}

func delimiterPos(p *PacketFormat, index int) (int, error) {
	for i, d := range p.Delimiters {
		if d.Index == index {
			return i, nil
		}
	}
	return 0, ErrUnknownComponent
}

func repackFieldIndices(p *PacketFormat) {
	for i := range p.Fields {
		p.Fields[i].Index = i
	}
}

func repackDelimiterIndices(p *PacketFormat) {
	for i := range p.Delimiters {
		p.Delimiters[i].Index = i
	}
}

func defaultFieldName(idx int) string { return "Field " + strconv.Itoa(idx+1) }
func defaultDelimiterName(idx int) string { return "Delimiter " + strconv.Itoa(idx+1) }
