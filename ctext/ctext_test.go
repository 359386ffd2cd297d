package ctext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Vectors taken verbatim from original_source/xim-ctext/src/lib.rs's
// #[cfg(test)] mod tests.
func TestKoreanRoundTrip(t *testing.T) {
	const utf8 = "가나다"
	comp := []byte{27, 37, 71, 234, 176, 128, 235, 130, 152, 235, 139, 164, 27, 37, 64}

	assert.Equal(t, comp, Encode(utf8))

	got, err := Decode(comp)
	require.NoError(t, err)
	assert.Equal(t, utf8, got)
}

func TestISO2022JPDecode(t *testing.T) {
	const utf8 = "東京"
	comp := []byte{27, 36, 40, 66, 69, 108, 53, 126}

	got, err := Decode(comp)
	require.NoError(t, err)
	assert.Equal(t, utf8, got)
}

func TestDecodeEmpty(t *testing.T) {
	got, err := Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestDecodeUnescaped(t *testing.T) {
	got, err := Decode([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain", got)
}

func TestDecodeUnsupportedCNKR(t *testing.T) {
	_, err := Decode([]byte{0x1b, 0x24, 0x28, 0x41})
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)

	_, err = Decode([]byte{0x1b, 0x24, 0x28, 0x43})
	assert.ErrorIs(t, err, ErrUnsupportedEncoding)
}

func TestDecodeInvalidEscape(t *testing.T) {
	_, err := Decode([]byte{0x1b, 0x00})
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}
