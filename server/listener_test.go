package server

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netrack/xim/transport"
)

const (
	listenerRoot      transport.Window = 1
	listenerServerWin transport.Window = 50
	listenerClientWin transport.Window = 60
)

func newListener(t *testing.T) (*Listener, *transport.Mock, *transport.Atoms) {
	t.Helper()
	mock := transport.NewMock()
	ctx := context.Background()
	atoms, err := transport.ResolveAtoms(ctx, mock)
	require.NoError(t, err)

	h := &fakeHandler{clientWin: listenerClientWin, styles: []uint32{1}}
	l := NewListener(mock, atoms, binary.LittleEndian, h, listenerRoot, listenerServerWin, "test", "C")
	require.NoError(t, l.Register(ctx))
	return l, mock, atoms
}

func TestListenerRegisterClaimsXIMServers(t *testing.T) {
	_, mock, atoms := newListener(t)
	ctx := context.Background()

	listing, err := mock.GetProperty(ctx, listenerRoot, atoms.XIMServers)
	require.NoError(t, err)
	assert.NotEmpty(t, listing)

	_, owner, err := transport.FindServer(ctx, mock, listenerRoot, atoms, binary.LittleEndian, "test")
	require.NoError(t, err)
	assert.Equal(t, listenerServerWin, owner)
}

func TestListenerAcceptXConnectAllocatesEngineAndReplies(t *testing.T) {
	l, mock, atoms := newListener(t)
	ctx := context.Background()

	payload := transport.EncodeXConnect(listenerClientWin, binary.LittleEndian)
	e, err := l.AcceptXConnect(ctx, payload)
	require.NoError(t, err)
	require.NotNil(t, e)

	reply, err := mock.GetProperty(ctx, listenerClientWin, atoms.XIMXConnect)
	require.NoError(t, err)
	hs, err := transport.DecodeXConnectReply(reply, binary.LittleEndian)
	require.NoError(t, err)
	assert.NotEqual(t, transport.Window(0), hs.CommWindow)

	conn, ok := l.Conn(hs.CommWindow)
	require.True(t, ok)
	assert.Same(t, e, conn)
}

func TestListenerAcceptXConnectAllocatesDistinctCommWindows(t *testing.T) {
	l, _, _ := newListener(t)
	ctx := context.Background()

	payload := transport.EncodeXConnect(listenerClientWin, binary.LittleEndian)
	e1, err := l.AcceptXConnect(ctx, payload)
	require.NoError(t, err)
	e2, err := l.AcceptXConnect(ctx, payload)
	require.NoError(t, err)
	assert.NotSame(t, e1, e2)
}

func TestListenerDisconnectRemovesEngine(t *testing.T) {
	l, _, _ := newListener(t)
	ctx := context.Background()

	payload := transport.EncodeXConnect(listenerClientWin, binary.LittleEndian)
	_, err := l.AcceptXConnect(ctx, payload)
	require.NoError(t, err)

	var commWin transport.Window
	for w := range l.conns {
		commWin = w
	}
	require.NoError(t, l.Disconnect(commWin))
	_, ok := l.Conn(commWin)
	assert.False(t, ok)

	assert.Error(t, l.Disconnect(commWin), "disconnecting twice should fail")
}

func TestListenerAnswerSelectionRequestDepositsLocales(t *testing.T) {
	l, mock, atoms := newListener(t)
	ctx := context.Background()

	require.NoError(t, l.AnswerSelectionRequest(ctx, listenerClientWin, atoms.Locales))
	prop, err := mock.GetProperty(ctx, listenerClientWin, atoms.Locales)
	require.NoError(t, err)
	assert.Equal(t, "@locale=C", string(prop))
}
