package wire

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPad4(t *testing.T) {
	cases := map[int]int{0: 0, 1: 3, 2: 2, 3: 1, 4: 0, 5: 3}
	for n, want := range cases {
		assert.Equal(t, want, Pad4(n), "Pad4(%d)", n)
	}
}

func TestWriterReaderBytes16Padded(t *testing.T) {
	w := NewWriter(binary.LittleEndian)
	w.PutU8(1)
	w.PutBytes16Padded([]byte("auth"))
	w.PutU8(2)

	r := NewReader(w.Bytes(), binary.LittleEndian)
	b1, err := r.U8()
	require.NoError(t, err)
	assert.Equal(t, uint8(1), b1)

	name, err := r.Bytes16Padded()
	require.NoError(t, err)
	assert.Equal(t, "auth", string(name))

	b2, err := r.U8()
	require.NoError(t, err)
	assert.Equal(t, uint8(2), b2)
}

func TestWriterReaderBytes8Unpadded(t *testing.T) {
	w := NewWriter(binary.BigEndian)
	w.PutBytes8([]byte("en_US"))

	r := NewReader(w.Bytes(), binary.BigEndian)
	b, err := r.Bytes8()
	require.NoError(t, err)
	assert.Equal(t, "en_US", string(b))
}

func TestErrorStringShape(t *testing.T) {
	w := NewWriter(binary.LittleEndian)
	w.PutErrorString([]byte("bad value"))

	r := NewReader(w.Bytes(), binary.LittleEndian)
	b, err := r.ErrorString()
	require.NoError(t, err)
	assert.Equal(t, "bad value", string(b))
	assert.Equal(t, 0, r.Len())
}

func TestList8RoundTrip(t *testing.T) {
	names := []string{"one", "two", "three"}

	w := NewWriter(binary.LittleEndian)
	w.PutList8(len(names), func(s *Writer, i int) {
		s.PutBytes8([]byte(names[i]))
	})

	r := NewReader(w.Bytes(), binary.LittleEndian)
	var got []string
	err := r.List8(func(e *Reader) error {
		b, err := e.Bytes8()
		if err != nil {
			return err
		}
		got = append(got, string(b))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, names, got)
}
