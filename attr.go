package xim

import "github.com/netrack/xim/internal/wire"

// AttrType classifies the value carried by an attribute, as
// negotiated in the OpenReply attribute table (spec.md §4.2). Variant
// names and wire values match the AttrType repr(u16) enum in
// original_source/src/parser.rs, cross-checked against the byte
// offsets of the OPEN_REPLY fixture in
// original_source/xim-parser/src/lib.rs (e.g. NestedList's 0x7fff
// appears verbatim as preeditAttributes' type field).
type AttrType uint16

const (
	AttrSeparator        AttrType = 0
	AttrByte             AttrType = 1
	AttrWord             AttrType = 2
	AttrLong             AttrType = 3
	AttrChar             AttrType = 4
	AttrWindow           AttrType = 5
	AttrStyle            AttrType = 10
	AttrXRectangle       AttrType = 11
	AttrXPoint           AttrType = 12
	AttrXFontSet         AttrType = 13
	AttrHotkeyTriggers   AttrType = 15
	AttrStringConversion AttrType = 17
	AttrPreeditState     AttrType = 18
	AttrResetState       AttrType = 19
	AttrNestedList       AttrType = 32767
)

// AttributeName enumerates the well-known IM and IC attribute names a
// server advertises in OpenReply and a client refers to by id
// thereafter, taken from original_source/xim-parser/src/attrs.rs and
// pinned against the OPEN_REPLY fixture in
// original_source/xim-parser/src/lib.rs.
type AttributeName string

const (
	// IM-level.
	NameQueryInputStyle AttributeName = "queryInputStyle"

	// IC-level.
	NameInputStyle            AttributeName = "inputStyle"
	NameClientWindow          AttributeName = "clientWindow"
	NameFocusWindow           AttributeName = "focusWindow"
	NameFilterEvents          AttributeName = "filterEvents"
	NamePreeditAttributes     AttributeName = "preeditAttributes"
	NameStatusAttributes      AttributeName = "statusAttributes"
	NameFontSet               AttributeName = "fontSet"
	NameArea                  AttributeName = "area"
	NameAreaNeeded            AttributeName = "areaNeeded"
	NameColormap              AttributeName = "colorMap"
	NameStdColormap           AttributeName = "stdColorMap"
	NameForeground            AttributeName = "foreground"
	NameBackground            AttributeName = "background"
	NameBackgroundPixmap      AttributeName = "backgroundPixmap"
	NameSpotLocation          AttributeName = "spotLocation"
	NameLineSpace             AttributeName = "lineSpace"
	NameSeparatorOfNestedList AttributeName = "separatorofNestedList"
)

// wellKnownAttrs pairs every name above with the AttrType the server
// advertises for it, in OpenReply's id order: im_attrs holds just
// index 0 (id 0, queryInputStyle); ic_attrs holds the rest, ids 1-17.
var wellKnownAttrs = []struct {
	Name AttributeName
	Type AttrType
}{
	{NameQueryInputStyle, AttrStyle},
	{NameInputStyle, AttrLong},
	{NameClientWindow, AttrWindow},
	{NameFocusWindow, AttrWindow},
	{NameFilterEvents, AttrLong},
	{NamePreeditAttributes, AttrNestedList},
	{NameStatusAttributes, AttrNestedList},
	{NameFontSet, AttrXFontSet},
	{NameArea, AttrXRectangle},
	{NameAreaNeeded, AttrXRectangle},
	{NameColormap, AttrLong},
	{NameStdColormap, AttrLong},
	{NameForeground, AttrLong},
	{NameBackground, AttrLong},
	{NameBackgroundPixmap, AttrLong},
	{NameSpotLocation, AttrXPoint},
	{NameLineSpace, AttrLong},
	{NameSeparatorOfNestedList, AttrSeparator},
}

// Attr is a single entry of the attribute table exchanged in
// OpenReply: an id the rest of the connection will use instead of the
// name, the value's wire type, and the name itself.
//
// On the wire: id(u16) type(u16) name-length(u16) name-bytes, the
// whole entry padded to a 4-byte boundary (verified against every
// entry of the OPEN_REPLY fixture in
// original_source/xim-parser/src/lib.rs).
type Attr struct {
	ID   uint16
	Type AttrType
	Name string
}

// Size returns the padded on-wire size of a, in bytes.
func (a Attr) Size() int {
	n := 6 + len(a.Name)
	return n + wire.Pad4(n)
}

func (a Attr) WriteTo(w *wire.Writer) {
	w.PutU16(a.ID)
	w.PutU16(uint16(a.Type))
	w.PutBytes16(([]byte)(a.Name))
	w.Pad4()
}

func readAttr(r *wire.Reader) (Attr, error) {
	id, err := r.U16()
	if err != nil {
		return Attr{}, err
	}
	typ, err := r.U16()
	if err != nil {
		return Attr{}, err
	}
	name, err := r.Bytes16()
	if err != nil {
		return Attr{}, err
	}
	if err := r.Pad4(); err != nil {
		return Attr{}, err
	}
	return Attr{ID: id, Type: AttrType(typ), Name: string(name)}, nil
}

// ReadAttrList reads one of OpenReply's two attribute tables: a 2-byte
// byte-length of the entries that follow, then those entries padded so
// they start on a 4-byte boundary measured from the start of the
// message (verified against both the im-attributes and ic-attributes
// tables of the OPEN_REPLY fixture in
// original_source/xim-parser/src/lib.rs -- im-attributes needs no pad
// since its length field already lands on a 4-byte boundary,
// ic-attributes needs 2 pad bytes since its length field doesn't).
func ReadAttrList(r *wire.Reader) ([]Attr, error) {
	n, err := r.U16()
	if err != nil {
		return nil, err
	}
	if err := r.Pad4(); err != nil {
		return nil, err
	}
	end := r.Consumed() + int(n)
	var attrs []Attr
	for r.Consumed() < end {
		a, err := readAttr(r)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

// WriteAttrList writes attrs in the same shape ReadAttrList parses.
func WriteAttrList(w *wire.Writer, attrs []Attr) {
	size := 0
	for _, a := range attrs {
		size += a.Size()
	}
	w.PutU16(uint16(size))
	w.Pad4()
	for _, a := range attrs {
		a.WriteTo(w)
	}
}
