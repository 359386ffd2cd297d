package wire

import "encoding/binary"

// Reader decodes a single XIM message body out of an in-memory byte
// slice. It tracks how many bytes have been consumed so Pad4 can be
// applied relative to the start of the message, the way the teacher's
// header/request pair tracks Header.Length relative to the start of
// the frame.
type Reader struct {
	order   binary.ByteOrder
	buf     []byte
	consumed int
}

// NewReader wraps buf for decoding in the given byte order. buf should
// hold exactly one message body (the transport adapter is responsible
// for slicing a ClientMessage payload or property read down to one
// message -- see transport.Ops).
func NewReader(buf []byte, order binary.ByteOrder) *Reader {
	return &Reader{order: order, buf: buf}
}

// Order returns the byte order this reader was constructed with.
func (r *Reader) Order() binary.ByteOrder { return r.order }

// Len returns the number of unread bytes remaining.
func (r *Reader) Len() int { return len(r.buf) }

// Consumed returns the number of bytes read so far.
func (r *Reader) Consumed() int { return r.consumed }

func (r *Reader) eos() error {
	return &ReadError{Kind: EndOfStream}
}

// Consume returns the next n bytes and advances the cursor.
func (r *Reader) Consume(n int) ([]byte, error) {
	if len(r.buf) < n {
		return nil, r.eos()
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	r.consumed += n
	return out, nil
}

// U8 reads a single byte.
func (r *Reader) U8() (uint8, error) {
	b, err := r.Consume(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16 reads a 2-byte unsigned integer in the reader's byte order.
func (r *Reader) U16() (uint16, error) {
	b, err := r.Consume(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

// U32 reads a 4-byte unsigned integer in the reader's byte order.
func (r *Reader) U32() (uint32, error) {
	b, err := r.Consume(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

// I16 reads a 2-byte signed integer.
func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

// I32 reads a 4-byte signed integer.
func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

// Pad4 skips the zero padding that rounds the cursor up to the next
// 4-byte boundary, measured from the start of the message.
func (r *Reader) Pad4() error {
	_, err := r.Consume(Pad4(r.consumed))
	return err
}

// Bytes8 reads a STRING8-shaped field: a 1-byte length followed by
// that many raw bytes. No padding is consumed -- callers pad once at
// the level that needs it (a single field pads the whole message;
// list elements share one trailing pad, per spec.md's "List with
// prefix P and length-width L").
func (r *Reader) Bytes8() ([]byte, error) {
	n, err := r.U8()
	if err != nil {
		return nil, err
	}
	return r.Consume(int(n))
}

// Bytes16Padded reads a STRING-shaped field: a 2-byte length, that many raw
// bytes, then its own pad to the next 4-byte boundary. Used for
// self-aligning list elements such as Connect's auth protocol names.
func (r *Reader) Bytes16Padded() ([]byte, error) {
	n, err := r.U16()
	if err != nil {
		return nil, err
	}
	b, err := r.Consume(int(n))
	if err != nil {
		return nil, err
	}
	if err := r.Pad4(); err != nil {
		return nil, err
	}
	return b, nil
}

// Bytes16 reads an XSTRING-shaped field: a 2-byte length and that many
// raw bytes, with no padding at all.
func (r *Reader) Bytes16() ([]byte, error) {
	n, err := r.U16()
	if err != nil {
		return nil, err
	}
	return r.Consume(int(n))
}

// ErrorString reads the "error string" shape: a 2-byte length, 2
// unused bytes, then that many raw bytes and a trailing pad4.
func (r *Reader) ErrorString() ([]byte, error) {
	n, err := r.U16()
	if err != nil {
		return nil, err
	}
	if _, err := r.Consume(2); err != nil {
		return nil, err
	}
	b, err := r.Consume(int(n))
	if err != nil {
		return nil, err
	}
	if err := r.Pad4(); err != nil {
		return nil, err
	}
	return b, nil
}

// List8 reads a "List with prefix 0 and length-width 2" of
// STRING8-shaped elements: a 2-byte byte-length of the raw
// (unpadded) element region, the elements themselves, and no
// per-element padding (the enclosing message pads once at the end).
func (r *Reader) List8(each func(*Reader) error) error {
	n, err := r.U16()
	if err != nil {
		return err
	}
	end := len(r.buf) - int(n)
	if end < 0 {
		return r.eos()
	}
	for len(r.buf) > end {
		if err := each(r); err != nil {
			return err
		}
	}
	return nil
}
