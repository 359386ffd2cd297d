package xim

import (
	"encoding/binary"

	"github.com/netrack/xim/internal/wire"
)

// Request is any XIM message body: something that knows its own major
// opcode and can write itself out through a *wire.Writer. The 4-byte
// frame header (opcode, minor opcode, length) is handled by
// Encode/Decode below, not by individual Request implementations --
// mirrors the teacher's header/request split in header.go/request.go.
type Request interface {
	Opcode() Opcode
}

// Header is the 4-byte prefix of every XIM message: a one-byte major
// opcode, a one-byte minor opcode (Encode always writes 0; ForwardEvent
// and Commit carry their flags in the body), and a length counted in 4-byte units
// covering the payload that follows the header.
type Header struct {
	Major  Opcode
	Minor  uint8
	Length uint16
}

// Encode writes req's frame header and body into the given byte
// order, returning the full message bytes.
func Encode(order binary.ByteOrder, req Request) []byte {
	w := wire.NewWriter(order)
	encodeBody(w, req)
	body := w.Bytes()

	out := make([]byte, 4, 4+len(body))
	out[0] = byte(req.Opcode())
	out[1] = 0
	order.PutUint16(out[2:4], uint16(len(body)/4))
	return append(out, body...)
}

// Decode reads a Header and the matching Request out of buf, which
// must hold exactly one message. The header's own Length field is
// read but not trusted for bounding the body -- mirrors
// original_source/src/parser.rs, which discards the outer length and
// relies on each field's own sub-length prefixes.
func Decode(order binary.ByteOrder, buf []byte) (Header, Request, error) {
	r := wire.NewReader(buf, order)
	major, err := r.U8()
	if err != nil {
		return Header{}, nil, err
	}
	minor, err := r.U8()
	if err != nil {
		return Header{}, nil, err
	}
	length, err := r.U16()
	if err != nil {
		return Header{}, nil, err
	}
	hdr := Header{Major: Opcode(major), Minor: minor, Length: length}

	req, err := decodeBody(hdr, r)
	if err != nil {
		return hdr, nil, err
	}
	return hdr, req, nil
}

func encodeBody(w *wire.Writer, req Request) {
	switch m := req.(type) {
	case *Connect:
		m.writeTo(w)
	case *ConnectReply:
		m.writeTo(w)
	case *Disconnect:
	case *DisconnectReply:
	case *Open:
		m.writeTo(w)
	case *OpenReply:
		m.writeTo(w)
	case *Close:
		m.writeTo(w)
	case *CloseReply:
		m.writeTo(w)
	case *QueryExtension:
		m.writeTo(w)
	case *QueryExtensionReply:
		m.writeTo(w)
	case *SetEventMask:
		m.writeTo(w)
	case *EncodingNegotiation:
		m.writeTo(w)
	case *EncodingNegotiationReply:
		m.writeTo(w)
	case *GetIMValues:
		m.writeTo(w)
	case *GetIMValuesReply:
		m.writeTo(w)
	case *SetIMValues:
		m.writeTo(w)
	case *SetIMValuesReply:
		m.writeTo(w)
	case *CreateIC:
		m.writeTo(w)
	case *CreateICReply:
		m.writeTo(w)
	case *DestroyIC:
		m.writeTo(w)
	case *DestroyICReply:
		m.writeTo(w)
	case *SetICValues:
		m.writeTo(w)
	case *SetICValuesReply:
		m.writeTo(w)
	case *GetICValues:
		m.writeTo(w)
	case *GetICValuesReply:
		m.writeTo(w)
	case *SetICFocus:
		m.writeTo(w)
	case *UnsetICFocus:
		m.writeTo(w)
	case *ForwardEvent:
		m.writeTo(w)
	case *Sync:
		m.writeTo(w)
	case *SyncReply:
		m.writeTo(w)
	case *Commit:
		m.writeTo(w)
	case *ResetIC:
		m.writeTo(w)
	case *ResetICReply:
		m.writeTo(w)
	case *PreeditStart:
		m.writeTo(w)
	case *PreeditStartReply:
		m.writeTo(w)
	case *PreeditDraw:
		m.writeTo(w)
	case *PreeditCaret:
		m.writeTo(w)
	case *PreeditCaretReply:
		m.writeTo(w)
	case *PreeditDone:
		m.writeTo(w)
	case *ErrorMessage:
		m.writeTo(w)
	}
}

func decodeBody(hdr Header, r *wire.Reader) (Request, error) {
	switch hdr.Major {
	case OpConnect:
		return readConnect(r)
	case OpConnectReply:
		return readConnectReply(r)
	case OpDisconnect:
		return &Disconnect{}, nil
	case OpDisconnectReply:
		return &DisconnectReply{}, nil
	case OpOpen:
		return readOpen(r)
	case OpOpenReply:
		return readOpenReply(r)
	case OpClose:
		return readClose(r)
	case OpCloseReply:
		return readCloseReply(r)
	case OpQueryExtension:
		return readQueryExtension(r)
	case OpQueryExtensionReply:
		return readQueryExtensionReply(r)
	case OpSetEventMask:
		return readSetEventMask(r)
	case OpEncodingNegotiation:
		return readEncodingNegotiation(r)
	case OpEncodingNegotiationReply:
		return readEncodingNegotiationReply(r)
	case OpGetIMValues:
		return readGetIMValues(r)
	case OpGetIMValuesReply:
		return readGetIMValuesReply(r)
	case OpSetIMValues:
		return readSetIMValues(r)
	case OpSetIMValuesReply:
		return readSetIMValuesReply(r)
	case OpCreateIC:
		return readCreateIC(r)
	case OpCreateICReply:
		return readCreateICReply(r)
	case OpDestroyIC:
		return readDestroyIC(r)
	case OpDestroyICReply:
		return readDestroyICReply(r)
	case OpSetICValues:
		return readSetICValues(r)
	case OpSetICValuesReply:
		return readSetICValuesReply(r)
	case OpGetICValues:
		return readGetICValues(r)
	case OpGetICValuesReply:
		return readGetICValuesReply(r)
	case OpSetICFocus:
		return readSetICFocus(r)
	case OpUnsetICFocus:
		return readUnsetICFocus(r)
	case OpForwardEvent:
		return readForwardEvent(r, hdr.Minor)
	case OpSync:
		return readSync(r)
	case OpSyncReply:
		return readSyncReply(r)
	case OpCommit:
		return readCommit(r, hdr.Minor)
	case OpResetIC:
		return readResetIC(r)
	case OpResetICReply:
		return readResetICReply(r)
	case OpPreeditStart:
		return readPreeditStart(r)
	case OpPreeditStartReply:
		return readPreeditStartReply(r)
	case OpPreeditDraw:
		return readPreeditDraw(r)
	case OpPreeditCaret:
		return readPreeditCaret(r)
	case OpPreeditCaretReply:
		return readPreeditCaretReply(r)
	case OpPreeditDone:
		return readPreeditDone(r)
	case OpError:
		return readErrorMessage(r)
	default:
		return nil, wire.NewInvalidData("Opcode", hdr.Major)
	}
}

// --- Connection lifecycle ---

type Connect struct {
	ClientMajorVersion uint16
	ClientMinorVersion uint16
	AuthNames          []string
}

func (*Connect) Opcode() Opcode { return OpConnect }

func (m *Connect) writeTo(w *wire.Writer) {
	// byte-order marker (0x42 big, 0x6c little) + one reserved byte,
	// matching the fixture in original_source/xim-parser/src/lib.rs.
	marker := wire.Little
	if w.Order() == binary.BigEndian {
		marker = wire.Big
	}
	w.PutU8(uint8(marker))
	w.PutU8(0)
	w.PutU16(m.ClientMajorVersion)
	w.PutU16(m.ClientMinorVersion)
	w.PutU16(uint16(len(m.AuthNames)))
	for _, name := range m.AuthNames {
		w.PutBytes16Padded([]byte(name))
	}
}

func readConnect(r *wire.Reader) (*Connect, error) {
	// Skip the byte-order marker and reserved byte; the Reader's order
	// is fixed by Decode's caller.
	if _, err := r.Consume(2); err != nil {
		return nil, err
	}
	major, err := r.U16()
	if err != nil {
		return nil, err
	}
	minor, err := r.U16()
	if err != nil {
		return nil, err
	}
	n, err := r.U16()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, n)
	for i := uint16(0); i < n; i++ {
		b, err := r.Bytes16Padded()
		if err != nil {
			return nil, err
		}
		names = append(names, string(b))
	}
	return &Connect{ClientMajorVersion: major, ClientMinorVersion: minor, AuthNames: names}, nil
}

type ConnectReply struct {
	ServerMajorVersion uint16
	ServerMinorVersion uint16
}

func (*ConnectReply) Opcode() Opcode { return OpConnectReply }

func (m *ConnectReply) writeTo(w *wire.Writer) {
	w.PutU16(m.ServerMajorVersion)
	w.PutU16(m.ServerMinorVersion)
}

func readConnectReply(r *wire.Reader) (*ConnectReply, error) {
	major, err := r.U16()
	if err != nil {
		return nil, err
	}
	minor, err := r.U16()
	if err != nil {
		return nil, err
	}
	return &ConnectReply{ServerMajorVersion: major, ServerMinorVersion: minor}, nil
}

type Disconnect struct{}

func (*Disconnect) Opcode() Opcode { return OpDisconnect }

type DisconnectReply struct{}

func (*DisconnectReply) Opcode() Opcode { return OpDisconnectReply }

// --- IM lifecycle ---

type Open struct {
	Locale string
}

func (*Open) Opcode() Opcode { return OpOpen }

func (m *Open) writeTo(w *wire.Writer) {
	w.PutBytes8([]byte(m.Locale))
	w.Pad4()
}

func readOpen(r *wire.Reader) (*Open, error) {
	b, err := r.Bytes8()
	if err != nil {
		return nil, err
	}
	if err := r.Pad4(); err != nil {
		return nil, err
	}
	return &Open{Locale: string(b)}, nil
}

type OpenReply struct {
	InputMethodID uint16
	IMAttrs       []Attr
	ICAttrs       []Attr
}

func (*OpenReply) Opcode() Opcode { return OpOpenReply }

func (m *OpenReply) writeTo(w *wire.Writer) {
	w.PutU16(m.InputMethodID)
	WriteAttrList(w, m.IMAttrs)
	WriteAttrList(w, m.ICAttrs)
}

func readOpenReply(r *wire.Reader) (*OpenReply, error) {
	imID, err := r.U16()
	if err != nil {
		return nil, err
	}
	imAttrs, err := ReadAttrList(r)
	if err != nil {
		return nil, err
	}
	icAttrs, err := ReadAttrList(r)
	if err != nil {
		return nil, err
	}
	return &OpenReply{InputMethodID: imID, IMAttrs: imAttrs, ICAttrs: icAttrs}, nil
}

type Close struct {
	InputMethodID uint16
}

func (*Close) Opcode() Opcode { return OpClose }

func (m *Close) writeTo(w *wire.Writer) {
	w.PutU16(m.InputMethodID)
	w.PutU16(0)
}

func readClose(r *wire.Reader) (*Close, error) {
	imID, err := r.U16()
	if err != nil {
		return nil, err
	}
	if _, err := r.U16(); err != nil {
		return nil, err
	}
	return &Close{InputMethodID: imID}, nil
}

type CloseReply struct {
	InputMethodID uint16
}

func (*CloseReply) Opcode() Opcode { return OpCloseReply }

func (m *CloseReply) writeTo(w *wire.Writer) {
	w.PutU16(m.InputMethodID)
	w.PutU16(0)
}

func readCloseReply(r *wire.Reader) (*CloseReply, error) {
	imID, err := r.U16()
	if err != nil {
		return nil, err
	}
	if _, err := r.U16(); err != nil {
		return nil, err
	}
	return &CloseReply{InputMethodID: imID}, nil
}

type QueryExtension struct {
	InputMethodID uint16
	Extensions    []string
}

func (*QueryExtension) Opcode() Opcode { return OpQueryExtension }

func (m *QueryExtension) writeTo(w *wire.Writer) {
	w.PutU16(m.InputMethodID)
	w.PutU16(0)
	w.PutList8(len(m.Extensions), func(sw *wire.Writer, i int) {
		sw.PutBytes8([]byte(m.Extensions[i]))
	})
	w.Pad4()
}

func readQueryExtension(r *wire.Reader) (*QueryExtension, error) {
	imID, err := r.U16()
	if err != nil {
		return nil, err
	}
	if _, err := r.U16(); err != nil {
		return nil, err
	}
	var exts []string
	err = r.List8(func(lr *wire.Reader) error {
		b, err := lr.Bytes8()
		if err != nil {
			return err
		}
		exts = append(exts, string(b))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := r.Pad4(); err != nil {
		return nil, err
	}
	return &QueryExtension{InputMethodID: imID, Extensions: exts}, nil
}

type Extension struct {
	Major byte
	Minor byte
	Name  string
}

type QueryExtensionReply struct {
	InputMethodID uint16
	Extensions    []Extension
}

func (*QueryExtensionReply) Opcode() Opcode { return OpQueryExtensionReply }

func (m *QueryExtensionReply) writeTo(w *wire.Writer) {
	w.PutU16(m.InputMethodID)
	w.PutU16(0)
	w.PutList8(len(m.Extensions), func(sw *wire.Writer, i int) {
		e := m.Extensions[i]
		sw.PutU8(e.Major)
		sw.PutU8(e.Minor)
		sw.PutBytes8([]byte(e.Name))
	})
	w.Pad4()
}

func readQueryExtensionReply(r *wire.Reader) (*QueryExtensionReply, error) {
	imID, err := r.U16()
	if err != nil {
		return nil, err
	}
	if _, err := r.U16(); err != nil {
		return nil, err
	}
	var exts []Extension
	err = r.List8(func(lr *wire.Reader) error {
		major, err := lr.U8()
		if err != nil {
			return err
		}
		minor, err := lr.U8()
		if err != nil {
			return err
		}
		name, err := lr.Bytes8()
		if err != nil {
			return err
		}
		exts = append(exts, Extension{Major: major, Minor: minor, Name: string(name)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := r.Pad4(); err != nil {
		return nil, err
	}
	return &QueryExtensionReply{InputMethodID: imID, Extensions: exts}, nil
}

// EventMask bits, sent by SetEventMask to tell the other side which
// X11 event types it wants forwarded.
type EventMask uint32

type SetEventMask struct {
	InputMethodID   uint16
	InputContextID  uint16
	ForwardEventMask EventMask
	SyncEventMask    EventMask
}

func (*SetEventMask) Opcode() Opcode { return OpSetEventMask }

func (m *SetEventMask) writeTo(w *wire.Writer) {
	w.PutU16(m.InputMethodID)
	w.PutU16(m.InputContextID)
	w.PutU32(uint32(m.ForwardEventMask))
	w.PutU32(uint32(m.SyncEventMask))
}

func readSetEventMask(r *wire.Reader) (*SetEventMask, error) {
	imID, err := r.U16()
	if err != nil {
		return nil, err
	}
	icID, err := r.U16()
	if err != nil {
		return nil, err
	}
	fwd, err := r.U32()
	if err != nil {
		return nil, err
	}
	sync, err := r.U32()
	if err != nil {
		return nil, err
	}
	return &SetEventMask{InputMethodID: imID, InputContextID: icID, ForwardEventMask: EventMask(fwd), SyncEventMask: EventMask(sync)}, nil
}

// EncodingNegotiation is sent automatically once a client sees
// OpenReply: it offers the encodings the client can render, in
// preference order. The server picks one (or declines) in
// EncodingNegotiationReply. Not pinned by any fixture; the list shape
// mirrors QueryExtension's LISTofSTR rather than inventing a new one.
type EncodingNegotiation struct {
	InputMethodID uint16
	Encodings     []string
}

func (*EncodingNegotiation) Opcode() Opcode { return OpEncodingNegotiation }

func (m *EncodingNegotiation) writeTo(w *wire.Writer) {
	w.PutU16(m.InputMethodID)
	w.PutU16(0)
	w.PutList8(len(m.Encodings), func(sw *wire.Writer, i int) {
		sw.PutBytes8([]byte(m.Encodings[i]))
	})
	w.Pad4()
}

func readEncodingNegotiation(r *wire.Reader) (*EncodingNegotiation, error) {
	imID, err := r.U16()
	if err != nil {
		return nil, err
	}
	if _, err := r.U16(); err != nil {
		return nil, err
	}
	var encs []string
	err = r.List8(func(lr *wire.Reader) error {
		b, err := lr.Bytes8()
		if err != nil {
			return err
		}
		encs = append(encs, string(b))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := r.Pad4(); err != nil {
		return nil, err
	}
	return &EncodingNegotiation{InputMethodID: imID, Encodings: encs}, nil
}

// EncodingNegotiationReply answers EncodingNegotiation: Index names
// which offered encoding the server picked (0-based), or -1 when none
// of them were acceptable -- the client then falls back to
// COMPOUND_TEXT, the encoding every XIM peer must support.
type EncodingNegotiationReply struct {
	InputMethodID uint16
	Category      uint16
	Index         int16
}

func (*EncodingNegotiationReply) Opcode() Opcode { return OpEncodingNegotiationReply }

func (m *EncodingNegotiationReply) writeTo(w *wire.Writer) {
	w.PutU16(m.InputMethodID)
	w.PutU16(0)
	w.PutU16(m.Category)
	w.PutI16(m.Index)
}

func readEncodingNegotiationReply(r *wire.Reader) (*EncodingNegotiationReply, error) {
	imID, err := r.U16()
	if err != nil {
		return nil, err
	}
	if _, err := r.U16(); err != nil {
		return nil, err
	}
	cat, err := r.U16()
	if err != nil {
		return nil, err
	}
	idx, err := r.I16()
	if err != nil {
		return nil, err
	}
	return &EncodingNegotiationReply{InputMethodID: imID, Category: cat, Index: idx}, nil
}

type GetIMValues struct {
	InputMethodID uint16
	AttributeIDs  []uint16
}

func (*GetIMValues) Opcode() Opcode { return OpGetIMValues }

func (m *GetIMValues) writeTo(w *wire.Writer) {
	w.PutU16(m.InputMethodID)
	w.PutU16(uint16(len(m.AttributeIDs) * 2))
	for _, id := range m.AttributeIDs {
		w.PutU16(id)
	}
	w.Pad4()
}

func readGetIMValues(r *wire.Reader) (*GetIMValues, error) {
	imID, err := r.U16()
	if err != nil {
		return nil, err
	}
	n, err := r.U16()
	if err != nil {
		return nil, err
	}
	ids := make([]uint16, 0, n/2)
	for i := uint16(0); i < n; i += 2 {
		id, err := r.U16()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := r.Pad4(); err != nil {
		return nil, err
	}
	return &GetIMValues{InputMethodID: imID, AttributeIDs: ids}, nil
}

type GetIMValuesReply struct {
	InputMethodID uint16
	Attributes    []NestedAttr
}

func (*GetIMValuesReply) Opcode() Opcode { return OpGetIMValuesReply }

func (m *GetIMValuesReply) writeTo(w *wire.Writer) {
	w.PutU16(m.InputMethodID)
	w.PutU16(0)
	WriteNestedList(w, m.Attributes)
}

func readGetIMValuesReply(r *wire.Reader) (*GetIMValuesReply, error) {
	imID, err := r.U16()
	if err != nil {
		return nil, err
	}
	if _, err := r.U16(); err != nil {
		return nil, err
	}
	attrs, err := ReadNestedList(r)
	if err != nil {
		return nil, err
	}
	return &GetIMValuesReply{InputMethodID: imID, Attributes: attrs}, nil
}

type SetIMValues struct {
	InputMethodID uint16
	Attributes    []NestedAttr
}

func (*SetIMValues) Opcode() Opcode { return OpSetIMValues }

func (m *SetIMValues) writeTo(w *wire.Writer) {
	w.PutU16(m.InputMethodID)
	w.PutU16(0)
	WriteNestedList(w, m.Attributes)
}

func readSetIMValues(r *wire.Reader) (*SetIMValues, error) {
	imID, err := r.U16()
	if err != nil {
		return nil, err
	}
	if _, err := r.U16(); err != nil {
		return nil, err
	}
	attrs, err := ReadNestedList(r)
	if err != nil {
		return nil, err
	}
	return &SetIMValues{InputMethodID: imID, Attributes: attrs}, nil
}

type SetIMValuesReply struct {
	InputMethodID uint16
}

func (*SetIMValuesReply) Opcode() Opcode { return OpSetIMValuesReply }

func (m *SetIMValuesReply) writeTo(w *wire.Writer) {
	w.PutU16(m.InputMethodID)
	w.PutU16(0)
}

func readSetIMValuesReply(r *wire.Reader) (*SetIMValuesReply, error) {
	imID, err := r.U16()
	if err != nil {
		return nil, err
	}
	if _, err := r.U16(); err != nil {
		return nil, err
	}
	return &SetIMValuesReply{InputMethodID: imID}, nil
}

// --- IC lifecycle ---

type CreateIC struct {
	InputMethodID uint16
	Attributes    []NestedAttr
}

func (*CreateIC) Opcode() Opcode { return OpCreateIC }

func (m *CreateIC) writeTo(w *wire.Writer) {
	w.PutU16(m.InputMethodID)
	w.PutU16(0)
	WriteNestedList(w, m.Attributes)
}

func readCreateIC(r *wire.Reader) (*CreateIC, error) {
	imID, err := r.U16()
	if err != nil {
		return nil, err
	}
	if _, err := r.U16(); err != nil {
		return nil, err
	}
	attrs, err := ReadNestedList(r)
	if err != nil {
		return nil, err
	}
	return &CreateIC{InputMethodID: imID, Attributes: attrs}, nil
}

type CreateICReply struct {
	InputMethodID  uint16
	InputContextID uint16
}

func (*CreateICReply) Opcode() Opcode { return OpCreateICReply }

func (m *CreateICReply) writeTo(w *wire.Writer) {
	w.PutU16(m.InputMethodID)
	w.PutU16(m.InputContextID)
}

func readCreateICReply(r *wire.Reader) (*CreateICReply, error) {
	imID, err := r.U16()
	if err != nil {
		return nil, err
	}
	icID, err := r.U16()
	if err != nil {
		return nil, err
	}
	return &CreateICReply{InputMethodID: imID, InputContextID: icID}, nil
}

type ICHeader struct {
	InputMethodID  uint16
	InputContextID uint16
}

func readICHeader(r *wire.Reader) (ICHeader, error) {
	imID, err := r.U16()
	if err != nil {
		return ICHeader{}, err
	}
	icID, err := r.U16()
	if err != nil {
		return ICHeader{}, err
	}
	return ICHeader{InputMethodID: imID, InputContextID: icID}, nil
}

func (h ICHeader) writeTo(w *wire.Writer) {
	w.PutU16(h.InputMethodID)
	w.PutU16(h.InputContextID)
}

type DestroyIC struct{ ICHeader }

func (*DestroyIC) Opcode() Opcode { return OpDestroyIC }
func (m *DestroyIC) writeTo(w *wire.Writer) { m.ICHeader.writeTo(w) }
func readDestroyIC(r *wire.Reader) (*DestroyIC, error) {
	h, err := readICHeader(r)
	return &DestroyIC{h}, err
}

type DestroyICReply struct{ ICHeader }

func (*DestroyICReply) Opcode() Opcode { return OpDestroyICReply }
func (m *DestroyICReply) writeTo(w *wire.Writer) { m.ICHeader.writeTo(w) }
func readDestroyICReply(r *wire.Reader) (*DestroyICReply, error) {
	h, err := readICHeader(r)
	return &DestroyICReply{h}, err
}

type SetICValues struct {
	ICHeader
	Attributes []NestedAttr
}

func (*SetICValues) Opcode() Opcode { return OpSetICValues }

func (m *SetICValues) writeTo(w *wire.Writer) {
	m.ICHeader.writeTo(w)
	WriteNestedList(w, m.Attributes)
}

func readSetICValues(r *wire.Reader) (*SetICValues, error) {
	h, err := readICHeader(r)
	if err != nil {
		return nil, err
	}
	attrs, err := ReadNestedList(r)
	if err != nil {
		return nil, err
	}
	return &SetICValues{ICHeader: h, Attributes: attrs}, nil
}

type SetICValuesReply struct{ ICHeader }

func (*SetICValuesReply) Opcode() Opcode { return OpSetICValuesReply }
func (m *SetICValuesReply) writeTo(w *wire.Writer) { m.ICHeader.writeTo(w) }
func readSetICValuesReply(r *wire.Reader) (*SetICValuesReply, error) {
	h, err := readICHeader(r)
	return &SetICValuesReply{h}, err
}

type GetICValues struct {
	ICHeader
	AttributeIDs []uint16
}

func (*GetICValues) Opcode() Opcode { return OpGetICValues }

func (m *GetICValues) writeTo(w *wire.Writer) {
	m.ICHeader.writeTo(w)
	w.PutU16(uint16(len(m.AttributeIDs) * 2))
	for _, id := range m.AttributeIDs {
		w.PutU16(id)
	}
	w.Pad4()
}

func readGetICValues(r *wire.Reader) (*GetICValues, error) {
	h, err := readICHeader(r)
	if err != nil {
		return nil, err
	}
	n, err := r.U16()
	if err != nil {
		return nil, err
	}
	ids := make([]uint16, 0, n/2)
	for i := uint16(0); i < n; i += 2 {
		id, err := r.U16()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := r.Pad4(); err != nil {
		return nil, err
	}
	return &GetICValues{ICHeader: h, AttributeIDs: ids}, nil
}

type GetICValuesReply struct {
	ICHeader
	Attributes []NestedAttr
}

func (*GetICValuesReply) Opcode() Opcode { return OpGetICValuesReply }

func (m *GetICValuesReply) writeTo(w *wire.Writer) {
	m.ICHeader.writeTo(w)
	WriteNestedList(w, m.Attributes)
}

func readGetICValuesReply(r *wire.Reader) (*GetICValuesReply, error) {
	h, err := readICHeader(r)
	if err != nil {
		return nil, err
	}
	attrs, err := ReadNestedList(r)
	if err != nil {
		return nil, err
	}
	return &GetICValuesReply{ICHeader: h, Attributes: attrs}, nil
}

type SetICFocus struct{ ICHeader }

func (*SetICFocus) Opcode() Opcode { return OpSetICFocus }
func (m *SetICFocus) writeTo(w *wire.Writer) { m.ICHeader.writeTo(w) }
func readSetICFocus(r *wire.Reader) (*SetICFocus, error) {
	h, err := readICHeader(r)
	return &SetICFocus{h}, err
}

type UnsetICFocus struct{ ICHeader }

func (*UnsetICFocus) Opcode() Opcode { return OpUnsetICFocus }
func (m *UnsetICFocus) writeTo(w *wire.Writer) { m.ICHeader.writeTo(w) }
func readUnsetICFocus(r *wire.Reader) (*UnsetICFocus, error) {
	h, err := readICHeader(r)
	return &UnsetICFocus{h}, err
}

type ResetIC struct{ ICHeader }

func (*ResetIC) Opcode() Opcode { return OpResetIC }
func (m *ResetIC) writeTo(w *wire.Writer) { m.ICHeader.writeTo(w) }
func readResetIC(r *wire.Reader) (*ResetIC, error) {
	h, err := readICHeader(r)
	return &ResetIC{h}, err
}

// ResetICReply carries whatever preedit text was left uncommitted at
// reset time, as raw COMPOUND_TEXT bytes -- see Commit.String.
type ResetICReply struct {
	ICHeader
	PreeditString string
}

func (*ResetICReply) Opcode() Opcode { return OpResetICReply }

func (m *ResetICReply) writeTo(w *wire.Writer) {
	m.ICHeader.writeTo(w)
	w.PutBytes16(([]byte)(m.PreeditString))
	w.Pad4()
}

func readResetICReply(r *wire.Reader) (*ResetICReply, error) {
	h, err := readICHeader(r)
	if err != nil {
		return nil, err
	}
	b, err := r.Bytes16()
	if err != nil {
		return nil, err
	}
	if err := r.Pad4(); err != nil {
		return nil, err
	}
	return &ResetICReply{ICHeader: h, PreeditString: string(b)}, nil
}

// --- Preedit feedback ---

// Feedback marks how one character of preedit text should be
// rendered; PreeditDraw carries one value per rune of PreeditString.
type Feedback uint32

const (
	FeedbackReverse   Feedback = 1 << 0
	FeedbackUnderline Feedback = 1 << 1
	FeedbackHighlight Feedback = 1 << 2
)

// PreeditStatus bits, carried by PreeditDraw's Status field.
type PreeditStatus uint32

const (
	PreeditNoString   PreeditStatus = 1 << 0
	PreeditNoFeedback PreeditStatus = 1 << 1
)

// PreeditStart asks the client to start displaying preedit text for
// an IC; the client answers with PreeditStartReply before any
// PreeditDraw arrives.
type PreeditStart struct{ ICHeader }

func (*PreeditStart) Opcode() Opcode { return OpPreeditStart }
func (m *PreeditStart) writeTo(w *wire.Writer) { m.ICHeader.writeTo(w) }
func readPreeditStart(r *wire.Reader) (*PreeditStart, error) {
	h, err := readICHeader(r)
	return &PreeditStart{h}, err
}

// PreeditStartReply answers PreeditStart; ReturnValue is the maximum
// preedit length the client accepts, or -1 to refuse.
type PreeditStartReply struct {
	ICHeader
	ReturnValue int32
}

func (*PreeditStartReply) Opcode() Opcode { return OpPreeditStartReply }

func (m *PreeditStartReply) writeTo(w *wire.Writer) {
	m.ICHeader.writeTo(w)
	w.PutI32(m.ReturnValue)
}

func readPreeditStartReply(r *wire.Reader) (*PreeditStartReply, error) {
	h, err := readICHeader(r)
	if err != nil {
		return nil, err
	}
	v, err := r.I32()
	if err != nil {
		return nil, err
	}
	return &PreeditStartReply{ICHeader: h, ReturnValue: v}, nil
}

// PreeditDraw replaces chg_length runes starting at chg_first with
// PreeditString (COMPOUND_TEXT bytes), placing the caret at Caret and
// marking each rune's display per Feedbacks.
type PreeditDraw struct {
	ICHeader
	Caret         int32
	ChgFirst      int32
	ChgLength     int32
	Status        PreeditStatus
	PreeditString string
	Feedbacks     []Feedback
}

func (*PreeditDraw) Opcode() Opcode { return OpPreeditDraw }

func (m *PreeditDraw) writeTo(w *wire.Writer) {
	m.ICHeader.writeTo(w)
	w.PutI32(m.Caret)
	w.PutI32(m.ChgFirst)
	w.PutI32(m.ChgLength)
	w.PutU32(uint32(m.Status))
	w.PutBytes16([]byte(m.PreeditString))
	w.Pad4()
	w.PutU32(uint32(len(m.Feedbacks)))
	for _, f := range m.Feedbacks {
		w.PutU32(uint32(f))
	}
}

func readPreeditDraw(r *wire.Reader) (*PreeditDraw, error) {
	h, err := readICHeader(r)
	if err != nil {
		return nil, err
	}
	caret, err := r.I32()
	if err != nil {
		return nil, err
	}
	chgFirst, err := r.I32()
	if err != nil {
		return nil, err
	}
	chgLength, err := r.I32()
	if err != nil {
		return nil, err
	}
	status, err := r.U32()
	if err != nil {
		return nil, err
	}
	str, err := r.Bytes16()
	if err != nil {
		return nil, err
	}
	if err := r.Pad4(); err != nil {
		return nil, err
	}
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	feedbacks := make([]Feedback, 0, n)
	for i := uint32(0); i < n; i++ {
		f, err := r.U32()
		if err != nil {
			return nil, err
		}
		feedbacks = append(feedbacks, Feedback(f))
	}
	return &PreeditDraw{
		ICHeader: h, Caret: caret, ChgFirst: chgFirst, ChgLength: chgLength,
		Status: PreeditStatus(status), PreeditString: string(str), Feedbacks: feedbacks,
	}, nil
}

// PreeditDone signals that preedit composition has ended for an IC.
type PreeditDone struct{ ICHeader }

func (*PreeditDone) Opcode() Opcode { return OpPreeditDone }
func (m *PreeditDone) writeTo(w *wire.Writer) { m.ICHeader.writeTo(w) }
func readPreeditDone(r *wire.Reader) (*PreeditDone, error) {
	h, err := readICHeader(r)
	return &PreeditDone{h}, err
}

// PreeditCaret asks the client to move the preedit caret (callback-
// style preedit only); the client answers with PreeditCaretReply.
type PreeditCaret struct {
	ICHeader
	Position  int32
	Direction uint32
	Style     uint32
}

func (*PreeditCaret) Opcode() Opcode { return OpPreeditCaret }

func (m *PreeditCaret) writeTo(w *wire.Writer) {
	m.ICHeader.writeTo(w)
	w.PutI32(m.Position)
	w.PutU32(m.Direction)
	w.PutU32(m.Style)
}

func readPreeditCaret(r *wire.Reader) (*PreeditCaret, error) {
	h, err := readICHeader(r)
	if err != nil {
		return nil, err
	}
	pos, err := r.I32()
	if err != nil {
		return nil, err
	}
	dir, err := r.U32()
	if err != nil {
		return nil, err
	}
	style, err := r.U32()
	if err != nil {
		return nil, err
	}
	return &PreeditCaret{ICHeader: h, Position: pos, Direction: dir, Style: style}, nil
}

type PreeditCaretReply struct {
	ICHeader
	Position int32
}

func (*PreeditCaretReply) Opcode() Opcode { return OpPreeditCaretReply }

func (m *PreeditCaretReply) writeTo(w *wire.Writer) {
	m.ICHeader.writeTo(w)
	w.PutI32(m.Position)
}

func readPreeditCaretReply(r *wire.Reader) (*PreeditCaretReply, error) {
	h, err := readICHeader(r)
	if err != nil {
		return nil, err
	}
	pos, err := r.I32()
	if err != nil {
		return nil, err
	}
	return &PreeditCaretReply{ICHeader: h, Position: pos}, nil
}

// --- Event forwarding / sync discipline ---

// CommitFlag bits, sent as a u16 field in the ForwardEvent/Commit body.
// Not pinned by any fixture; designed to match the semantics spec.md
// §5 describes (an Open Question resolution recorded in DESIGN.md).
type CommitFlag uint8

const (
	CommitSynchronous CommitFlag = 1 << 0
	CommitChars       CommitFlag = 1 << 1
	CommitKeySym      CommitFlag = 1 << 2
)

type ForwardEvent struct {
	ICHeader
	Flag      CommitFlag
	SerialNum uint16
	XEvent    []byte
}

func (*ForwardEvent) Opcode() Opcode { return OpForwardEvent }

func (m *ForwardEvent) writeTo(w *wire.Writer) {
	m.ICHeader.writeTo(w)
	w.PutU16(uint16(m.Flag))
	w.PutU16(m.SerialNum)
	w.PutRaw(m.XEvent)
}

func readForwardEvent(r *wire.Reader, minor uint8) (*ForwardEvent, error) {
	h, err := readICHeader(r)
	if err != nil {
		return nil, err
	}
	flag, err := r.U16()
	if err != nil {
		return nil, err
	}
	serial, err := r.U16()
	if err != nil {
		return nil, err
	}
	rest, err := r.Consume(r.Len())
	if err != nil {
		return nil, err
	}
	return &ForwardEvent{ICHeader: h, Flag: CommitFlag(flag), SerialNum: serial, XEvent: rest}, nil
}

type Sync struct{ ICHeader }

func (*Sync) Opcode() Opcode { return OpSync }
func (m *Sync) writeTo(w *wire.Writer) { m.ICHeader.writeTo(w) }
func readSync(r *wire.Reader) (*Sync, error) {
	h, err := readICHeader(r)
	return &Sync{h}, err
}

type SyncReply struct{ ICHeader }

func (*SyncReply) Opcode() Opcode { return OpSyncReply }
func (m *SyncReply) writeTo(w *wire.Writer) { m.ICHeader.writeTo(w) }
func readSyncReply(r *wire.Reader) (*SyncReply, error) {
	h, err := readICHeader(r)
	return &SyncReply{h}, err
}

// Commit carries composed text back to the client, in CommitChars
// mode, or a single keysym, in CommitKeySym mode. String holds raw
// COMPOUND_TEXT bytes, not decoded UTF-8 -- callers run it through
// package ctext.
type Commit struct {
	ICHeader
	Flag   CommitFlag
	String string
	KeySym uint32
}

func (*Commit) Opcode() Opcode { return OpCommit }

func (m *Commit) writeTo(w *wire.Writer) {
	m.ICHeader.writeTo(w)
	w.PutU16(uint16(m.Flag))
	if m.Flag&CommitChars != 0 {
		w.PutU16(0)
		w.PutBytes16([]byte(m.String))
		w.Pad4()
	} else {
		w.PutU32(m.KeySym)
	}
}

func readCommit(r *wire.Reader, minor uint8) (*Commit, error) {
	h, err := readICHeader(r)
	if err != nil {
		return nil, err
	}
	flag, err := r.U16()
	if err != nil {
		return nil, err
	}
	m := &Commit{ICHeader: h, Flag: CommitFlag(flag)}
	if m.Flag&CommitChars != 0 {
		if _, err := r.U16(); err != nil {
			return nil, err
		}
		b, err := r.Bytes16()
		if err != nil {
			return nil, err
		}
		if err := r.Pad4(); err != nil {
			return nil, err
		}
		m.String = string(b)
	} else {
		sym, err := r.U32()
		if err != nil {
			return nil, err
		}
		m.KeySym = sym
	}
	return m, nil
}

// --- Errors ---

type ErrorCode uint16

const (
	ErrBadAlloc ErrorCode = iota + 1
	ErrBadStyle
	ErrBadClientWindow
	ErrIMIDInvalid
	ErrICIDInvalid
	ErrBadProtocol
	ErrBadForwardEvent
	ErrBadXLogic
	ErrBadSomething
	ErrLocaleNotSupported
)

type ErrorMessage struct {
	InputMethodID  uint16
	InputContextID uint16
	Flag           uint16
	Code           ErrorCode
	Detail         string
}

func (*ErrorMessage) Opcode() Opcode { return OpError }

func (m *ErrorMessage) writeTo(w *wire.Writer) {
	w.PutU16(m.InputMethodID)
	w.PutU16(m.InputContextID)
	w.PutU16(m.Flag)
	w.PutU16(uint16(m.Code))
	w.PutErrorString([]byte(m.Detail))
}

func readErrorMessage(r *wire.Reader) (*ErrorMessage, error) {
	imID, err := r.U16()
	if err != nil {
		return nil, err
	}
	icID, err := r.U16()
	if err != nil {
		return nil, err
	}
	flag, err := r.U16()
	if err != nil {
		return nil, err
	}
	code, err := r.U16()
	if err != nil {
		return nil, err
	}
	detail, err := r.ErrorString()
	if err != nil {
		return nil, err
	}
	return &ErrorMessage{
		InputMethodID: imID, InputContextID: icID,
		Flag: flag, Code: ErrorCode(code), Detail: string(detail),
	}, nil
}
