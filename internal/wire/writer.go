package wire

import "encoding/binary"

// Writer encodes a single XIM message body into a growable byte
// slice, mirroring Reader's cursor bookkeeping so Pad4 stays in sync
// between encode and decode.
type Writer struct {
	order binary.ByteOrder
	buf   []byte
}

// NewWriter returns an empty Writer using the given byte order.
func NewWriter(order binary.ByteOrder) *Writer {
	return &Writer{order: order}
}

// Order returns the byte order this writer was constructed with.
func (w *Writer) Order() binary.ByteOrder { return w.order }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the accumulated message body.
func (w *Writer) Bytes() []byte { return w.buf }

// PutU8 appends a single byte.
func (w *Writer) PutU8(v uint8) {
	w.buf = append(w.buf, v)
}

// PutU16 appends a 2-byte unsigned integer in the writer's byte order.
func (w *Writer) PutU16(v uint16) {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutU32 appends a 4-byte unsigned integer in the writer's byte order.
func (w *Writer) PutU32(v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutI16 appends a 2-byte signed integer.
func (w *Writer) PutI16(v int16) { w.PutU16(uint16(v)) }

// PutI32 appends a 4-byte signed integer.
func (w *Writer) PutI32(v int32) { w.PutU32(uint32(v)) }

// Pad4 appends the zero bytes needed to round the current length up
// to the next multiple of 4.
func (w *Writer) Pad4() {
	n := Pad4(len(w.buf))
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
}

// PutRaw appends b with no length prefix and no padding, for
// fields whose size is fixed and known to the caller (an embedded
// X11 event record, for instance).
func (w *Writer) PutRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// PutBytes8 appends a STRING8-shaped field: a 1-byte length prefix
// followed by the raw bytes, unpadded.
func (w *Writer) PutBytes8(b []byte) {
	w.PutU8(uint8(len(b)))
	w.buf = append(w.buf, b...)
}

// PutBytes16Padded appends a STRING-shaped field: a 2-byte length
// prefix, the raw bytes, then a pad to the next 4-byte boundary.
func (w *Writer) PutBytes16Padded(b []byte) {
	w.PutU16(uint16(len(b)))
	w.buf = append(w.buf, b...)
	w.Pad4()
}

// PutBytes16 appends an XSTRING-shaped field: a 2-byte length prefix
// and the raw bytes, with no padding.
func (w *Writer) PutBytes16(b []byte) {
	w.PutU16(uint16(len(b)))
	w.buf = append(w.buf, b...)
}

// PutErrorString appends the "error string" shape: a 2-byte length,
// 2 reserved zero bytes, the raw bytes, then a pad4.
func (w *Writer) PutErrorString(b []byte) {
	w.PutU16(uint16(len(b)))
	w.PutU16(0)
	w.buf = append(w.buf, b...)
	w.Pad4()
}

// PutList8 appends a "List with prefix 0 and length-width 2" of
// STRING8-shaped elements: a 2-byte byte-length of the unpadded
// element region, written by first measuring the encoded elements in
// a scratch writer sharing this writer's byte order.
func (w *Writer) PutList8(n int, each func(*Writer, int)) {
	scratch := NewWriter(w.order)
	for i := 0; i < n; i++ {
		each(scratch, i)
	}
	w.PutU16(uint16(len(scratch.buf)))
	w.buf = append(w.buf, scratch.buf...)
}
