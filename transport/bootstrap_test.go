package transport_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netrack/xim/transport"
)

const (
	root      transport.Window = 1
	serverWin transport.Window = 100
	clientWin transport.Window = 200
)

func seedServer(t *testing.T, mock *transport.Mock, atoms *transport.Atoms) {
	t.Helper()
	ctx := context.Background()
	_, err := transport.RegisterServer(ctx, mock, root, serverWin, atoms, binary.LittleEndian, "test")
	require.NoError(t, err)
	require.NoError(t, mock.ChangePropertyAppend(ctx, serverWin, atoms.Transport, []byte("@transport=X/")))
	require.NoError(t, mock.ChangePropertyAppend(ctx, serverWin, atoms.Locales, []byte("@locale=C")))
}

func TestFindServerMatchesRegisteredName(t *testing.T) {
	mock := transport.NewMock()
	ctx := context.Background()
	atoms, err := transport.ResolveAtoms(ctx, mock)
	require.NoError(t, err)
	seedServer(t, mock, atoms)

	_, owner, err := transport.FindServer(ctx, mock, root, atoms, binary.LittleEndian, "test")
	require.NoError(t, err)
	assert.Equal(t, serverWin, owner)
}

func TestFindServerReturnsErrNoXIMServerForUnknownName(t *testing.T) {
	mock := transport.NewMock()
	ctx := context.Background()
	atoms, err := transport.ResolveAtoms(ctx, mock)
	require.NoError(t, err)
	seedServer(t, mock, atoms)

	_, _, err = transport.FindServer(ctx, mock, root, atoms, binary.LittleEndian, "missing")
	assert.ErrorIs(t, err, transport.ErrNoXIMServer)
}

func TestBootstrapClientCompletesXConnectHandshake(t *testing.T) {
	mock := transport.NewMock()
	ctx := context.Background()
	atoms, err := transport.ResolveAtoms(ctx, mock)
	require.NoError(t, err)
	seedServer(t, mock, atoms)

	var received []byte
	mock.OnClientMessage(serverWin, func(ctx context.Context, messageType transport.Atom, data []byte) error {
		received = data
		win, err := transport.DecodeXConnect(data, binary.LittleEndian)
		require.NoError(t, err)
		assert.Equal(t, clientWin, win)
		reply := transport.EncodeXConnectReply(7, 1, 0, transport.TransportMaxInline, binary.LittleEndian)
		return mock.ChangePropertyAppend(ctx, win, atoms.XIMXConnect, reply)
	})

	hs, err := transport.BootstrapClient(ctx, mock, atoms, root, clientWin, binary.LittleEndian, "test")
	require.NoError(t, err)
	assert.NotNil(t, received)
	assert.Equal(t, serverWin, hs.ServerWindow)
	assert.Equal(t, transport.Window(7), hs.CommWindow)
	assert.Equal(t, uint8(1), hs.MajorVersion)
	assert.Equal(t, uint8(transport.TransportMaxInline), hs.TransportMax)
}

func TestBootstrapClientRejectsUnsupportedTransport(t *testing.T) {
	mock := transport.NewMock()
	ctx := context.Background()
	atoms, err := transport.ResolveAtoms(ctx, mock)
	require.NoError(t, err)

	_, err = transport.RegisterServer(ctx, mock, root, serverWin, atoms, binary.LittleEndian, "test")
	require.NoError(t, err)
	require.NoError(t, mock.ChangePropertyAppend(ctx, serverWin, atoms.Transport, []byte("@transport=other/")))

	_, err = transport.BootstrapClient(ctx, mock, atoms, root, clientWin, binary.LittleEndian, "test")
	assert.ErrorIs(t, err, transport.ErrUnsupportedTransport)
}

func TestEncodeDecodeXConnectRoundTrip(t *testing.T) {
	payload := transport.EncodeXConnect(42, binary.LittleEndian)
	win, err := transport.DecodeXConnect(payload, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, transport.Window(42), win)
}

func TestEncodeDecodeXConnectReplyRoundTrip(t *testing.T) {
	payload := transport.EncodeXConnectReply(7, 1, 2, 20, binary.LittleEndian)
	hs, err := transport.DecodeXConnectReply(payload, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, transport.Window(7), hs.CommWindow)
	assert.Equal(t, uint8(1), hs.MajorVersion)
	assert.Equal(t, uint8(2), hs.MinorVersion)
	assert.Equal(t, uint8(20), hs.TransportMax)
}

func TestAnswerSelectionRequestRepliesWithRequestedProperty(t *testing.T) {
	mock := transport.NewMock()
	ctx := context.Background()
	atoms, err := transport.ResolveAtoms(ctx, mock)
	require.NoError(t, err)

	require.NoError(t, transport.AnswerSelectionRequest(ctx, mock, atoms, clientWin, atoms.Locales, "C"))
	prop, err := mock.GetProperty(ctx, clientWin, atoms.Locales)
	require.NoError(t, err)
	assert.Equal(t, "@locale=C", string(prop))

	require.NoError(t, transport.AnswerSelectionRequest(ctx, mock, atoms, clientWin, atoms.Transport, "C"))
	prop, err = mock.GetProperty(ctx, clientWin, atoms.Transport)
	require.NoError(t, err)
	assert.Equal(t, "@transport=X/", string(prop))
}
