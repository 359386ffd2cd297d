package xim

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openReplyFixture is OPEN_REPLY from
// original_source/xim-parser/src/lib.rs, byte for byte.
var openReplyFixture = []byte{
	0x1f, 0x00, 0x59, 0x00, 0x01, 0x00, 0x18, 0x00, 0x00, 0x00, 0x0a, 0x00, 0x0f, 0x00,
	0x71, 0x75, 0x65, 0x72, 0x79, 0x49, 0x6e, 0x70, 0x75, 0x74, 0x53, 0x74, 0x79, 0x6c,
	0x65, 0x00, 0x00, 0x00,
	0x44, 0x01, 0x00, 0x00,
	0x01, 0x00, 0x03, 0x00, 0x0a, 0x00, 0x69, 0x6e, 0x70, 0x75, 0x74, 0x53, 0x74, 0x79,
	0x6c, 0x65,
	0x02, 0x00, 0x05, 0x00, 0x0c, 0x00, 0x63, 0x6c, 0x69, 0x65, 0x6e, 0x74, 0x57, 0x69,
	0x6e, 0x64, 0x6f, 0x77, 0x00, 0x00,
	0x03, 0x00, 0x05, 0x00, 0x0b, 0x00, 0x66, 0x6f, 0x63, 0x75, 0x73, 0x57, 0x69, 0x6e,
	0x64, 0x6f, 0x77, 0x00, 0x00, 0x00,
	0x04, 0x00, 0x03, 0x00, 0x0c, 0x00, 0x66, 0x69, 0x6c, 0x74, 0x65, 0x72, 0x45, 0x76,
	0x65, 0x6e, 0x74, 0x73, 0x00, 0x00,
	0x05, 0x00, 0xff, 0x7f, 0x11, 0x00, 0x70, 0x72, 0x65, 0x65, 0x64, 0x69, 0x74, 0x41,
	0x74, 0x74, 0x72, 0x69, 0x62, 0x75, 0x74, 0x65, 0x73, 0x00,
	0x06, 0x00, 0xff, 0x7f, 0x10, 0x00, 0x73, 0x74, 0x61, 0x74, 0x75, 0x73, 0x41, 0x74,
	0x74, 0x72, 0x69, 0x62, 0x75, 0x74, 0x65, 0x73, 0x00, 0x00,
	0x07, 0x00, 0x0d, 0x00, 0x07, 0x00, 0x66, 0x6f, 0x6e, 0x74, 0x53, 0x65, 0x74, 0x00,
	0x00, 0x00,
	0x08, 0x00, 0x0b, 0x00, 0x04, 0x00, 0x61, 0x72, 0x65, 0x61, 0x00, 0x00,
	0x09, 0x00, 0x0b, 0x00, 0x0a, 0x00, 0x61, 0x72, 0x65, 0x61, 0x4e, 0x65, 0x65, 0x64,
	0x65, 0x64,
	0x0a, 0x00, 0x03, 0x00, 0x08, 0x00, 0x63, 0x6f, 0x6c, 0x6f, 0x72, 0x4d, 0x61, 0x70,
	0x00, 0x00,
	0x0b, 0x00, 0x03, 0x00, 0x0b, 0x00, 0x73, 0x74, 0x64, 0x43, 0x6f, 0x6c, 0x6f, 0x72,
	0x4d, 0x61, 0x70, 0x00, 0x00, 0x00,
	0x0c, 0x00, 0x03, 0x00, 0x0a, 0x00, 0x66, 0x6f, 0x72, 0x65, 0x67, 0x72, 0x6f, 0x75,
	0x6e, 0x64,
	0x0d, 0x00, 0x03, 0x00, 0x0a, 0x00, 0x62, 0x61, 0x63, 0x6b, 0x67, 0x72, 0x6f, 0x75,
	0x6e, 0x64,
	0x0e, 0x00, 0x03, 0x00, 0x10, 0x00, 0x62, 0x61, 0x63, 0x6b, 0x67, 0x72, 0x6f, 0x75,
	0x6e, 0x64, 0x50, 0x69, 0x78, 0x6d, 0x61, 0x70, 0x00, 0x00,
	0x0f, 0x00, 0x0c, 0x00, 0x0c, 0x00, 0x73, 0x70, 0x6f, 0x74, 0x4c, 0x6f, 0x63, 0x61,
	0x74, 0x69, 0x6f, 0x6e, 0x00, 0x00,
	0x10, 0x00, 0x03, 0x00, 0x09, 0x00, 0x6c, 0x69, 0x6e, 0x65, 0x53, 0x70, 0x61, 0x63,
	0x65, 0x00,
	0x11, 0x00, 0x00, 0x00, 0x15, 0x00, 0x73, 0x65, 0x70, 0x61, 0x72, 0x61, 0x74, 0x6f,
	0x72, 0x6f, 0x66, 0x4e, 0x65, 0x73, 0x74, 0x65, 0x64, 0x4c, 0x69, 0x73, 0x74, 0x00,
}

func TestDecodeOpenReplyFixture(t *testing.T) {
	hdr, req, err := Decode(binary.LittleEndian, openReplyFixture)
	require.NoError(t, err)
	assert.Equal(t, OpOpenReply, hdr.Major)

	reply, ok := req.(*OpenReply)
	require.True(t, ok)
	assert.Equal(t, uint16(1), reply.InputMethodID)

	require.Len(t, reply.IMAttrs, 1)
	assert.Equal(t, Attr{ID: 0, Type: AttrStyle, Name: "queryInputStyle"}, reply.IMAttrs[0])

	require.Len(t, reply.ICAttrs, 17)
	assert.Equal(t, Attr{ID: 1, Type: AttrLong, Name: "inputStyle"}, reply.ICAttrs[0])
	assert.Equal(t, Attr{ID: 2, Type: AttrWindow, Name: "clientWindow"}, reply.ICAttrs[1])
	assert.Equal(t, Attr{ID: 5, Type: AttrNestedList, Name: "preeditAttributes"}, reply.ICAttrs[4])
	assert.Equal(t, Attr{ID: 17, Type: AttrSeparator, Name: "separatorofNestedList"}, reply.ICAttrs[16])
}

func TestOpenReplyRoundTrip(t *testing.T) {
	_, req, err := Decode(binary.LittleEndian, openReplyFixture)
	require.NoError(t, err)

	out := Encode(binary.LittleEndian, req)

	_, req2, err := Decode(binary.LittleEndian, out)
	require.NoError(t, err)
	assert.Equal(t, req, req2)
}

func TestWellKnownRegistriesMatchFixture(t *testing.T) {
	im := NewWellKnownIMRegistry()
	a, ok := im.ByID(0)
	require.True(t, ok)
	assert.Equal(t, AttributeName("queryInputStyle"), AttributeName(a.Name))

	ic := NewWellKnownICRegistry()
	a, ok = ic.ByID(17)
	require.True(t, ok)
	assert.Equal(t, AttributeName("separatorofNestedList"), AttributeName(a.Name))
}
