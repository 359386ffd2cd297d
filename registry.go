package xim

import "github.com/netrack/xim/internal/wire"

// AttributeRegistry is the bidirectional id<->name table negotiated
// once, at OpenReply time, and consulted for the rest of the
// connection's life whenever a message refers to an attribute by id
// (spec.md §4.2). One registry covers IM-level attributes, a second
// (held separately by the caller) covers IC-level ones -- the two
// id spaces are independent.
type AttributeRegistry struct {
	byID   map[uint16]Attr
	byName map[AttributeName]Attr
}

// NewAttributeRegistry builds a registry from the attribute table an
// OpenReply advertised.
func NewAttributeRegistry(attrs []Attr) *AttributeRegistry {
	reg := &AttributeRegistry{
		byID:   make(map[uint16]Attr, len(attrs)),
		byName: make(map[AttributeName]Attr, len(attrs)),
	}
	for _, a := range attrs {
		reg.byID[a.ID] = a
		reg.byName[AttributeName(a.Name)] = a
	}
	return reg
}

// NewWellKnownIMRegistry builds the IM-level attribute registry a
// server hands out in OpenReply's im_attrs table: just
// queryInputStyle at id 0, per the OPEN_REPLY fixture in
// original_source/xim-parser/src/lib.rs.
func NewWellKnownIMRegistry() *AttributeRegistry {
	return NewAttributeRegistry([]Attr{
		{ID: 0, Type: wellKnownAttrs[0].Type, Name: string(wellKnownAttrs[0].Name)},
	})
}

// NewWellKnownICRegistry builds the IC-level attribute registry a
// server hands out in OpenReply's ic_attrs table: the remaining
// well-known names after queryInputStyle, at ids 1-17 in fixture
// order.
func NewWellKnownICRegistry() *AttributeRegistry {
	rest := wellKnownAttrs[1:]
	attrs := make([]Attr, len(rest))
	for i, wk := range rest {
		attrs[i] = Attr{ID: uint16(i + 1), Type: wk.Type, Name: string(wk.Name)}
	}
	return NewAttributeRegistry(attrs)
}

// Attrs returns the full table, in no particular order.
func (r *AttributeRegistry) Attrs() []Attr {
	out := make([]Attr, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	return out
}

// ByID looks up an attribute by the id a peer sent on the wire.
func (r *AttributeRegistry) ByID(id uint16) (Attr, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// ByName looks up an attribute by its well-known name, so a caller can
// translate a name into the id this connection negotiated.
func (r *AttributeRegistry) ByName(name AttributeName) (Attr, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// NestedAttr is one entry of a preeditAttributes/statusAttributes
// nested list: the enclosing attribute's own id/type pair carries the
// nested values at depth 1 only (spec.md §4.2 "nesting is bounded").
type NestedAttr struct {
	ID    uint16
	Value []byte
}

// ReadNestedList reads a depth-1 nested attribute-value list: a
// 2-byte byte-length of the region, then repeated (id u16, len u16,
// value, pad4) entries until the region is exhausted. Ids are not
// checked against any registry, so unknown ids are kept -- only the
// AttributeBuilder on the encode side silently drops unknown names,
// per SPEC_FULL.md §C.
func ReadNestedList(r *wire.Reader) ([]NestedAttr, error) {
	n, err := r.U16()
	if err != nil {
		return nil, err
	}
	end := r.Consumed() + int(n)
	var out []NestedAttr
	for r.Consumed() < end {
		id, err := r.U16()
		if err != nil {
			return nil, err
		}
		val, err := r.Bytes16()
		if err != nil {
			return nil, err
		}
		if err := r.Pad4(); err != nil {
			return nil, err
		}
		out = append(out, NestedAttr{ID: id, Value: val})
	}
	return out, nil
}

// WriteNestedList writes entries in the shape ReadNestedList parses.
func WriteNestedList(w *wire.Writer, entries []NestedAttr) {
	start := w.Len() + 2
	off := start
	for _, e := range entries {
		off += 4 + len(e.Value)
		off += wire.Pad4(off)
	}
	w.PutU16(uint16(off - start))
	for _, e := range entries {
		w.PutU16(e.ID)
		w.PutBytes16(e.Value)
		w.Pad4()
	}
}
