// Package ctext converts between UTF-8 and COMPOUND_TEXT, the
// encoding XIM preedit/status/commit strings travel in over the wire.
// Grounded directly on original_source/xim-ctext/src/lib.rs: the
// always-available scheme is a UTF-8 payload bracketed by the
// ESC % G ... ESC % @ escape; ISO-2022-JP is decoded (never encoded,
// matching the original) via golang.org/x/text/encoding/japanese.
package ctext

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

var (
	utf8Start = []byte{0x1b, 0x25, 0x47}
	utf8End   = []byte{0x1b, 0x25, 0x40}
	// jpStart is ISO-2022-JP's own JIS X 0208 designator (ESC $ B),
	// which x/text's decoder recognizes; the compound-text form
	// ESC $ ( B is not one it accepts.
	jpStart = []byte{0x1b, 0x24, 0x42}
)

// ErrInvalidEncoding is returned when the input doesn't start with a
// recognized escape sequence and isn't a bare unescaped string.
var ErrInvalidEncoding = errors.New("ctext: invalid compound text")

// ErrUnsupportedEncoding is returned for a recognized-but-unimplemented
// 94N escape (CN, KR) -- the original crate only ever supported JP.
var ErrUnsupportedEncoding = errors.New("ctext: unsupported encoding")

// Encode brackets text in the UTF-8 escape, the only direction the
// original implementation ever encodes.
func Encode(text string) []byte {
	out := make([]byte, 0, len(text)+len(utf8Start)+len(utf8End))
	out = append(out, utf8Start...)
	out = append(out, text...)
	out = append(out, utf8End...)
	return out
}

// Decode converts COMPOUND_TEXT bytes back to UTF-8, dispatching on
// the leading escape sequence: ESC % G for UTF-8, ESC $ ( B for
// ISO-2022-JP, anything else treated as already-unescaped UTF-8 (the
// fallback the original takes for any byte string not starting with
// ESC).
func Decode(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	if b[0] != 0x1b {
		return string(b), nil
	}
	if len(b) < 2 {
		return "", ErrInvalidEncoding
	}
	switch {
	case len(b) >= 3 && b[1] == 0x25 && b[2] == 0x47:
		rest := b[3:]
		if len(rest) < 3 {
			return "", ErrInvalidEncoding
		}
		return string(rest[:len(rest)-3]), nil
	case len(b) >= 3 && b[1] == 0x24 && b[2] == 0x28:
		if len(b) < 4 {
			return "", ErrInvalidEncoding
		}
		switch b[3] {
		case 0x42:
			return decodeISO2022JP(b[4:])
		case 0x41, 0x43:
			return "", ErrUnsupportedEncoding
		default:
			return "", ErrInvalidEncoding
		}
	default:
		return "", ErrInvalidEncoding
	}
}

// decodeISO2022JP prepends jpStart in place of the compound-text JP
// designator the caller stripped, so the x/text decoder sees an escape
// sequence it recognizes, then decodes
// through to the closing escape (or end of input) via a streaming
// transform.Reader, mirroring the two-call decode! macro in
// xim-ctext/src/lib.rs (one feed for the designator, one for the
// body).
func decodeISO2022JP(body []byte) (string, error) {
	var buf strings.Builder
	buf.Write(jpStart)
	buf.Write(body)

	r := transform.NewReader(strings.NewReader(buf.String()), japanese.ISO2022JP.NewDecoder())
	out := make([]byte, 0, len(body)*2)
	tmp := make([]byte, 256)
	for {
		n, err := r.Read(tmp)
		out = append(out, tmp[:n]...)
		if err != nil {
			break
		}
	}
	return string(out), nil
}
