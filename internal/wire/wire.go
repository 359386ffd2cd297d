// Package wire implements the byte-level primitives shared by every XIM
// message: the per-connection endian-aware reader/writer, the 4-byte
// padding rule, and the handful of length-prefixed string shapes the
// protocol uses.
//
// The split mirrors the teacher's encoding/binary helper: a thin
// ByteOrder-parameterized wrapper around the standard encoding/binary
// package, except here the order is carried per-call instead of being a
// package-level constant, since a XIM connection pins its own order at
// Connect time (spec.md ch.3 "Endianness").
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Endian is the single-byte encoding of a connection's chosen byte
// order, sent as the first byte of the Connect request.
type Endian uint8

const (
	Big    Endian = 0x42
	Little Endian = 0x6c
)

// Order returns the encoding/binary.ByteOrder matching e.
func (e Endian) Order() (binary.ByteOrder, error) {
	switch e {
	case Big:
		return binary.BigEndian, nil
	case Little:
		return binary.LittleEndian, nil
	default:
		return nil, &ReadError{Kind: NotNativeEndian, Detail: fmt.Sprintf("%#x", uint8(e))}
	}
}

// ErrorKind classifies a ReadError, matching the taxonomy in spec.md ch.7.
type ErrorKind int

const (
	EndOfStream ErrorKind = iota
	InvalidData
	NotNativeEndian
)

func (k ErrorKind) String() string {
	switch k {
	case EndOfStream:
		return "EndOfStream"
	case InvalidData:
		return "InvalidData"
	case NotNativeEndian:
		return "NotNativeEndian"
	default:
		return "Unknown"
	}
}

// ReadError is returned by every decode failure: truncation, an
// out-of-range enum, an unknown opcode, or a non-native-endian marker.
type ReadError struct {
	Kind ErrorKind
	// Field names the struct field or table being decoded, when Kind
	// is InvalidData ("Opcode", "AttrType", "AttributeName", ...).
	Field  string
	Detail string
}

func (e *ReadError) Error() string {
	switch e.Kind {
	case InvalidData:
		return fmt.Sprintf("xim: invalid data %s: %s", e.Field, e.Detail)
	case NotNativeEndian:
		return fmt.Sprintf("xim: not a native endian marker: %s", e.Detail)
	default:
		return "xim: end of stream"
	}
}

// Unwrap lets errors.Is match an EndOfStream ReadError against
// ErrEndOfStream.
func (e *ReadError) Unwrap() error {
	if e.Kind == EndOfStream {
		return ErrEndOfStream
	}
	return nil
}

// ErrEndOfStream is returned (wrapped in a *ReadError) whenever a read
// runs past the end of the supplied buffer.
var ErrEndOfStream = errors.New("xim: end of stream")

// NewInvalidData builds a ReadError for an out-of-range enum or opcode.
func NewInvalidData(field string, detail interface{}) *ReadError {
	return &ReadError{Kind: InvalidData, Field: field, Detail: fmt.Sprint(detail)}
}

// Pad4 returns the number of zero bytes required to round n up to the
// next multiple of 4 -- the padding rule pinned by spec.md ch.4.1.
func Pad4(n int) int {
	return (4 - (n % 4)) % 4
}
