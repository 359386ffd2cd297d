package server

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netrack/xim"
	"github.com/netrack/xim/transport"
)

// fakeHandler is a configurable Handler: callers set its fields before
// dispatching to steer FilterEvents/SyncMode/HandleForwardEvent's
// answers, and read the recorded slices afterward to assert the
// engine actually invoked the handler.
type fakeHandler struct {
	clientWin transport.Window
	styles    []uint32

	filterMask xim.EventMask
	syncMode   bool
	consumed   bool
	resetText  string

	connected []transport.Window
	destroyed []*InputContext
	forwarded [][]byte
}

func (h *fakeHandler) ClientWindowOf(commWindow transport.Window) (transport.Window, error) {
	return h.clientWin, nil
}

func (h *fakeHandler) InputStyles() []uint32 { return h.styles }

func (h *fakeHandler) HandleConnect(ctx context.Context, clientWin transport.Window) error {
	h.connected = append(h.connected, clientWin)
	return nil
}

func (h *fakeHandler) NewICData(ctx context.Context, inputStyle uint32) (interface{}, error) {
	return nil, nil
}

func (h *fakeHandler) FilterEvents(ic *InputContext) xim.EventMask { return h.filterMask }
func (h *fakeHandler) SyncMode(ic *InputContext) bool              { return h.syncMode }

func (h *fakeHandler) HandleDestroyIC(ctx context.Context, ic *InputContext) error {
	h.destroyed = append(h.destroyed, ic)
	return nil
}

func (h *fakeHandler) HandleForwardEvent(ctx context.Context, ic *InputContext, xevent []byte) (bool, error) {
	h.forwarded = append(h.forwarded, xevent)
	return h.consumed, nil
}

func (h *fakeHandler) HandleResetIC(ctx context.Context, ic *InputContext) (string, error) {
	return h.resetText, nil
}

func newEngine(t *testing.T) (*Engine, *transport.Mock, *fakeHandler) {
	t.Helper()
	mock := transport.NewMock()
	ctx := context.Background()
	atoms, err := transport.ResolveAtoms(ctx, mock)
	require.NoError(t, err)
	h := &fakeHandler{clientWin: 42, styles: []uint32{1}}
	return New(mock, atoms, 7, binary.LittleEndian, h), mock, h
}

func dispatch(t *testing.T, e *Engine, req xim.Request) error {
	t.Helper()
	return e.Dispatch(context.Background(), xim.Encode(binary.LittleEndian, req))
}

func TestIDAllocatorSkipsZero(t *testing.T) {
	var a IDAllocator
	seen := map[uint16]bool{}
	for i := 0; i < 5; i++ {
		id := a.Next()
		assert.NotEqual(t, uint16(0), id)
		assert.False(t, seen[id], "id %d reused", id)
		seen[id] = true
	}
}

func TestOpenAdvertisesWellKnownAttributes(t *testing.T) {
	e, mock, _ := newEngine(t)
	require.NoError(t, dispatch(t, e, &xim.Open{Locale: "C"}))

	require.Len(t, mock.Sent, 1)
	_, req, err := xim.Decode(binary.LittleEndian, mock.Sent[0].Data)
	require.NoError(t, err)

	reply, ok := req.(*xim.OpenReply)
	require.True(t, ok)
	assert.Len(t, reply.IMAttrs, 1)
	assert.Len(t, reply.ICAttrs, 17)
}

func TestConnectNotifiesHandler(t *testing.T) {
	e, mock, h := newEngine(t)
	require.NoError(t, dispatch(t, e, &xim.Connect{ClientMajorVersion: 1, ClientMinorVersion: 0}))

	require.Len(t, mock.Sent, 1)
	require.Len(t, h.connected, 1)
	assert.Equal(t, h.clientWin, h.connected[0])
}

func TestCreateICThenDestroy(t *testing.T) {
	e, mock, h := newEngine(t)
	require.NoError(t, dispatch(t, e, &xim.Open{Locale: "C"}))
	_, openReply, _ := xim.Decode(binary.LittleEndian, mock.Sent[0].Data)
	imID := openReply.(*xim.OpenReply).InputMethodID

	require.NoError(t, dispatch(t, e, &xim.CreateIC{InputMethodID: imID}))
	_, createReply, _ := xim.Decode(binary.LittleEndian, mock.Sent[1].Data)
	icID := createReply.(*xim.CreateICReply).InputContextID
	assert.NotEqual(t, uint16(0), icID)

	im := e.ims[imID]
	require.Contains(t, im.ICs, icID)
	assert.Equal(t, ICCreated, im.ICs[icID].State)

	require.NoError(t, dispatch(t, e, &xim.DestroyIC{
		ICHeader: xim.ICHeader{InputMethodID: imID, InputContextID: icID},
	}))
	assert.NotContains(t, im.ICs, icID)
	require.Len(t, h.destroyed, 1)
	assert.Equal(t, icID, h.destroyed[0].ID)
}

func TestCreateICSendsSetEventMaskFromFilterAndSyncMode(t *testing.T) {
	e, mock, h := newEngine(t)
	h.filterMask = 0x0f
	h.syncMode = true

	require.NoError(t, dispatch(t, e, &xim.Open{Locale: "C"}))
	require.NoError(t, dispatch(t, e, &xim.CreateIC{InputMethodID: 1}))

	require.Len(t, mock.Sent, 3)
	_, req, err := xim.Decode(binary.LittleEndian, mock.Sent[2].Data)
	require.NoError(t, err)
	mask, ok := req.(*xim.SetEventMask)
	require.True(t, ok)
	assert.Equal(t, ^h.filterMask, mask.ForwardEventMask, "sync mode suppresses the filtered set from forwarding")
	assert.Equal(t, h.filterMask, mask.SyncEventMask, "sync mode runs the filtered set synchronously")
}

func TestCreateICParsesAttributesIntoTypedFields(t *testing.T) {
	e, _, _ := newEngine(t)
	require.NoError(t, dispatch(t, e, &xim.Open{Locale: "C"}))
	im := e.ims[1]

	styleAttr, _ := im.ICAttrs.ByName(xim.NameInputStyle)
	clientWinAttr, _ := im.ICAttrs.ByName(xim.NameClientWindow)
	focusWinAttr, _ := im.ICAttrs.ByName(xim.NameFocusWindow)

	styleVal := make([]byte, 4)
	binary.LittleEndian.PutUint32(styleVal, 0xf0001)
	winVal := make([]byte, 4)
	binary.LittleEndian.PutUint32(winVal, 99)
	focusVal := make([]byte, 4)
	binary.LittleEndian.PutUint32(focusVal, 100)

	require.NoError(t, dispatch(t, e, &xim.CreateIC{
		InputMethodID: 1,
		Attributes: []xim.NestedAttr{
			{ID: styleAttr.ID, Value: styleVal},
			{ID: clientWinAttr.ID, Value: winVal},
			{ID: focusWinAttr.ID, Value: focusVal},
		},
	}))

	ic := im.ICs[1]
	require.NotNil(t, ic)
	assert.Equal(t, uint32(0xf0001), ic.InputStyle)
	assert.Equal(t, transport.Window(99), ic.ClientWindow)
	assert.Equal(t, transport.Window(100), ic.FocusWindow)
}

func TestForwardEventSyncBarrierQueuesInOrder(t *testing.T) {
	e, mock, h := newEngine(t)
	h.syncMode = true

	require.NoError(t, dispatch(t, e, &xim.Open{Locale: "C"}))
	require.NoError(t, dispatch(t, e, &xim.CreateIC{InputMethodID: 1}))
	base := len(mock.Sent)

	ic := e.ims[1].ICs[1]

	first := &xim.ForwardEvent{
		ICHeader: xim.ICHeader{InputMethodID: 1, InputContextID: 1},
		Flag:     xim.CommitSynchronous,
		XEvent:   []byte{0x01},
	}
	require.NoError(t, dispatch(t, e, first))
	assert.True(t, ic.syncing, "the server's own sync-mode echo should arm the barrier")

	require.Len(t, mock.Sent, base+2, "expect an echoed ForwardEvent and a SyncReply for the inbound synchronous flag")
	_, echoed, err := xim.Decode(binary.LittleEndian, mock.Sent[base].Data)
	require.NoError(t, err)
	fe, ok := echoed.(*xim.ForwardEvent)
	require.True(t, ok)
	assert.Equal(t, xim.CommitSynchronous, fe.Flag)
	assert.Equal(t, []byte{0x01}, fe.XEvent)

	_, syncReply, err := xim.Decode(binary.LittleEndian, mock.Sent[base+1].Data)
	require.NoError(t, err)
	_, ok = syncReply.(*xim.SyncReply)
	require.True(t, ok)

	second := &xim.ForwardEvent{
		ICHeader: xim.ICHeader{InputMethodID: 1, InputContextID: 1},
		XEvent:   []byte{0x02},
	}
	require.NoError(t, dispatch(t, e, second))
	require.Len(t, ic.pendingIn, 1, "second event should queue behind the barrier")
	assert.Equal(t, []byte{0x02}, ic.pendingIn[0].XEvent)
	assert.Len(t, mock.Sent, base+2, "queued event must not be processed yet")

	h.consumed = true
	require.NoError(t, dispatch(t, e, &xim.SyncReply{
		ICHeader: xim.ICHeader{InputMethodID: 1, InputContextID: 1},
	}))
	assert.Empty(t, ic.pendingIn, "queue drains once SyncReply arrives")
	assert.False(t, ic.syncing, "a consumed replay does not re-arm the barrier")
	assert.Len(t, mock.Sent, base+2, "a consumed event produces no further wire traffic")
	require.Len(t, h.forwarded, 2)
	assert.Equal(t, []byte{0x02}, h.forwarded[1])
}

func TestGetIMValuesQueryInputStyle(t *testing.T) {
	e, mock, _ := newEngine(t)
	require.NoError(t, dispatch(t, e, &xim.Open{Locale: "C"}))

	require.NoError(t, dispatch(t, e, &xim.GetIMValues{InputMethodID: 1, AttributeIDs: []uint16{0}}))
	_, req, err := xim.Decode(binary.LittleEndian, mock.Sent[1].Data)
	require.NoError(t, err)

	reply, ok := req.(*xim.GetIMValuesReply)
	require.True(t, ok)
	require.Len(t, reply.Attributes, 1)
	assert.Equal(t, uint16(0), reply.Attributes[0].ID)
	require.Len(t, reply.Attributes[0].Value, 4)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(reply.Attributes[0].Value))
}

func TestResetICUsesHandlerReplacementText(t *testing.T) {
	e, mock, h := newEngine(t)
	h.resetText = "hi"
	require.NoError(t, dispatch(t, e, &xim.Open{Locale: "C"}))
	require.NoError(t, dispatch(t, e, &xim.CreateIC{InputMethodID: 1}))

	ic := e.ims[1].ICs[1]
	ic.Preedit = PreeditState{On: true, PrevLength: 3}

	require.NoError(t, dispatch(t, e, &xim.ResetIC{
		ICHeader: xim.ICHeader{InputMethodID: 1, InputContextID: 1},
	}))
	assert.Equal(t, PreeditState{}, ic.Preedit)

	_, req, err := xim.Decode(binary.LittleEndian, mock.Sent[len(mock.Sent)-1].Data)
	require.NoError(t, err)
	reply, ok := req.(*xim.ResetICReply)
	require.True(t, ok)
	assert.NotEmpty(t, reply.PreeditString)
}

func TestDisconnectDestroysAllICsAndNotifiesHandler(t *testing.T) {
	e, mock, h := newEngine(t)
	require.NoError(t, dispatch(t, e, &xim.Open{Locale: "C"}))
	require.NoError(t, dispatch(t, e, &xim.CreateIC{InputMethodID: 1}))
	require.NoError(t, dispatch(t, e, &xim.CreateIC{InputMethodID: 1}))

	require.Len(t, e.ims[1].ICs, 2)

	require.NoError(t, dispatch(t, e, &xim.Disconnect{}))
	assert.Empty(t, e.ims[1].ICs)
	assert.Len(t, h.destroyed, 2)

	_, req, err := xim.Decode(binary.LittleEndian, mock.Sent[len(mock.Sent)-1].Data)
	require.NoError(t, err)
	_, ok := req.(*xim.DisconnectReply)
	require.True(t, ok)
}

func TestPreeditDrawStartsDrawsAndEnds(t *testing.T) {
	e, mock, _ := newEngine(t)
	require.NoError(t, dispatch(t, e, &xim.Open{Locale: "C"}))
	require.NoError(t, dispatch(t, e, &xim.CreateIC{InputMethodID: 1}))
	ic := e.ims[1].ICs[1]
	ctx := context.Background()

	require.NoError(t, e.PreeditDraw(ctx, 42, 1, 1, ic, "a"))
	require.True(t, ic.Preedit.On)
	assert.Equal(t, 1, ic.Preedit.PrevLength)

	base := len(mock.Sent)
	require.NoError(t, e.PreeditDraw(ctx, 42, 1, 1, ic, ""))
	require.Len(t, mock.Sent, base+2, "terminal draw should be followed by PreeditDone")

	_, draw, err := xim.Decode(binary.LittleEndian, mock.Sent[base].Data)
	require.NoError(t, err)
	pd, ok := draw.(*xim.PreeditDraw)
	require.True(t, ok)
	assert.Equal(t, xim.PreeditNoString|xim.PreeditNoFeedback, pd.Status)

	_, done, err := xim.Decode(binary.LittleEndian, mock.Sent[base+1].Data)
	require.NoError(t, err)
	_, ok = done.(*xim.PreeditDone)
	require.True(t, ok)
	assert.False(t, ic.Preedit.On)
}
