// Package server implements the server half of an XIM connection: the
// per-input-context state machine, the attribute table a server hands
// out in OpenReply, and the synchronous ForwardEvent/SyncReply queue
// discipline (spec.md §5-6).
//
// Dispatch mirrors handle_request in original_source/src/server.rs --
// a switch on the incoming request's opcode, an "unknown request ->
// log and continue" fallthrough -- and Handler mirrors that file's
// ServerHandler trait (get_client_window/handle_open/handle_xconnect).
package server

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/netrack/xim"
	"github.com/netrack/xim/ctext"
	"github.com/netrack/xim/internal/wire"
	"github.com/netrack/xim/internal/xlog"
	"github.com/netrack/xim/transport"
)

// ICState is the per-input-context lifecycle (spec.md §5):
// NoIc -> IcCreated -> FocusHeld -> Destroyed.
type ICState int

const (
	NoIC ICState = iota
	ICCreated
	FocusHeld
	ICDestroyed
)

func (s ICState) String() string {
	switch s {
	case NoIC:
		return "NoIc"
	case ICCreated:
		return "IcCreated"
	case FocusHeld:
		return "FocusHeld"
	case ICDestroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// PreeditState tracks whether preedit is active on an IC, and if so
// how many characters of committed-but-unconfirmed preedit text
// precede the next draw -- spec.md §5's PreeditOff/PreeditOn{n} pair.
type PreeditState struct {
	On         bool
	PrevLength int
}

// Point is an (x, y) pair, the wire shape of the XPoint attribute
// type -- used here for the preedit_spot parsed out of CreateIc's
// nested PreeditAttributes.
type Point struct {
	X, Y int16
}

// IDAllocator hands out connection-scoped ids the way xim-rs's
// NonZeroU16 does: monotonically increasing, 0 is never issued. It
// serves input-method and input-context ids only; attribute ids are a
// separate space in which 0 is valid (queryInputStyle).
type IDAllocator struct {
	next uint16
}

// Next returns the next id, starting at 1 and wrapping past 0.
func (a *IDAllocator) Next() uint16 {
	a.next++
	if a.next == 0 {
		a.next = 1
	}
	return a.next
}

// InputContext is one IC a client created: its negotiated attribute
// values, focus/destroy lifecycle, and the synchronous-cycle queues
// spec.md §6 requires around ForwardEvent{Synchronous}/SyncReply.
type InputContext struct {
	ID    uint16
	State ICState

	Preedit PreeditState

	// InputStyle, ClientWindow, FocusWindow and PreeditSpot are parsed
	// out of CreateIc's attribute list (spec.md §4.5): the app's
	// chosen input style, its own top-level window, the window that
	// holds keyboard focus, and the on-screen spot nested under
	// PreeditAttributes.
	InputStyle   uint32
	ClientWindow transport.Window
	FocusWindow  transport.Window
	PreeditSpot  Point

	Attributes map[uint16][]byte

	// UserData is whatever the handler attached in NewICData, the Go
	// analogue of original_source's UserIc::user_data.
	UserData interface{}

	// pendingIn holds ForwardEvent requests received while a prior
	// synchronous ForwardEvent is still awaiting its SyncReply.
	// pendingOut is flushed by drainSyncQueue ahead of pendingIn, but
	// no Engine method adds to it: Commit and PreeditDraw send at once
	// even while syncing is set.
	pendingIn  []*xim.ForwardEvent
	pendingOut [][]byte
	syncing    bool
}

// InputMethod is one Open'd IM: the registries it advertised and the
// ICs created under it.
type InputMethod struct {
	ID      uint16
	IMAttrs *xim.AttributeRegistry
	ICAttrs *xim.AttributeRegistry
	ICs     map[uint16]*InputContext
	icIDs   IDAllocator
}

// Handler receives the connection-establishment events Engine can't
// decide on its own -- the Go analogue of original_source's
// ServerHandler trait.
type Handler interface {
	// ClientWindowOf returns the client window associated with a
	// communication window, resolved during the _XIM_XCONNECT
	// handshake.
	ClientWindowOf(commWindow transport.Window) (transport.Window, error)

	// InputStyles returns the input styles this server supports,
	// advertised under the well-known inputStyle attribute.
	InputStyles() []uint32

	// HandleConnect notifies the handler that a client connected.
	HandleConnect(ctx context.Context, clientWin transport.Window) error

	// NewICData lets the handler attach its own per-IC state at
	// CreateIc time, keyed by the negotiated input style.
	NewICData(ctx context.Context, inputStyle uint32) (interface{}, error)

	// FilterEvents and SyncMode decide the masks CreateIc's
	// SetEventMask advertises for ic (spec.md §4.5).
	FilterEvents(ic *InputContext) xim.EventMask
	SyncMode(ic *InputContext) bool

	// HandleDestroyIC notifies the handler that ic is gone, from
	// DestroyIc, Close or Disconnect.
	HandleDestroyIC(ctx context.Context, ic *InputContext) error

	// HandleForwardEvent delivers a forwarded event's raw XEvent
	// payload; consumed reports whether the handler fully handled it,
	// suppressing the server's echo back to the client.
	HandleForwardEvent(ctx context.Context, ic *InputContext, xevent []byte) (consumed bool, err error)

	// HandleResetIC returns the replacement preedit string for
	// ResetIc.
	HandleResetIC(ctx context.Context, ic *InputContext) (string, error)
}

// Engine drives one server-side XIM connection. One Engine exists per
// communication window; it owns every InputMethod opened on that
// window.
type Engine struct {
	ops        transport.Ops
	atoms      *transport.Atoms
	commWindow transport.Window
	order      binary.ByteOrder
	handler    Handler

	ims   map[uint16]*InputMethod
	imIDs IDAllocator
}

// New returns an Engine bound to one communication window.
func New(ops transport.Ops, atoms *transport.Atoms, commWindow transport.Window, order binary.ByteOrder, handler Handler) *Engine {
	return &Engine{
		ops:        ops,
		atoms:      atoms,
		commWindow: commWindow,
		order:      order,
		handler:    handler,
		ims:        make(map[uint16]*InputMethod),
	}
}

func (e *Engine) send(ctx context.Context, clientWin transport.Window, req xim.Request) error {
	body := xim.Encode(e.order, req)
	mode := transport.ChooseDelivery(len(body))
	xlog.Trace("server: send %s to %d (%s)", req.Opcode(), clientWin, modeString(mode))
	if mode == transport.DeliveryInline {
		return e.ops.SendClientMessage(ctx, clientWin, e.atoms.XIMProtocol, body)
	}
	return e.ops.ChangePropertyAppend(ctx, clientWin, e.atoms.XIMProtocol, body)
}

func modeString(m transport.DeliveryMode) string {
	if m == transport.DeliveryInline {
		return "inline"
	}
	return "property"
}

func (e *Engine) sendError(ctx context.Context, clientWin transport.Window, code xim.ErrorCode, detail string, imID, icID *uint16) error {
	msg := &xim.ErrorMessage{Code: code, Detail: detail}
	if imID != nil {
		msg.InputMethodID = *imID
		msg.Flag |= 1
	}
	if icID != nil {
		msg.InputContextID = *icID
		msg.Flag |= 2
	}
	return e.send(ctx, clientWin, msg)
}

// Dispatch decodes one incoming message and handles it, mirroring
// handle_request's match in original_source/src/server.rs.
func (e *Engine) Dispatch(ctx context.Context, buf []byte) error {
	_, req, err := xim.Decode(e.order, buf)
	if err != nil {
		return err
	}
	xlog.Trace("server: recv %s", req.Opcode())

	clientWin, cwErr := e.handler.ClientWindowOf(e.commWindow)

	switch m := req.(type) {
	case *xim.Connect:
		if cwErr != nil {
			return cwErr
		}
		if err := e.send(ctx, clientWin, &xim.ConnectReply{ServerMajorVersion: 1, ServerMinorVersion: 0}); err != nil {
			return err
		}
		return e.handler.HandleConnect(ctx, clientWin)

	case *xim.Open:
		if cwErr != nil {
			return cwErr
		}
		im := e.openInputMethod()
		return e.send(ctx, clientWin, &xim.OpenReply{
			InputMethodID: im.ID,
			IMAttrs:       im.IMAttrs.Attrs(),
			ICAttrs:       im.ICAttrs.Attrs(),
		})

	case *xim.QueryExtension:
		if cwErr != nil {
			return cwErr
		}
		return e.send(ctx, clientWin, &xim.QueryExtensionReply{InputMethodID: m.InputMethodID})

	case *xim.EncodingNegotiation:
		if cwErr != nil {
			return cwErr
		}
		// Commit, PreeditDraw and ResetIC always encode COMPOUND_TEXT,
		// so that is the only encoding accepted; otherwise Index is -1.
		index := int16(-1)
		for i, enc := range m.Encodings {
			if enc == "COMPOUND_TEXT" {
				index = int16(i)
				break
			}
		}
		return e.send(ctx, clientWin, &xim.EncodingNegotiationReply{InputMethodID: m.InputMethodID, Index: index})

	case *xim.GetIMValues:
		if cwErr != nil {
			return cwErr
		}
		im, ok := e.ims[m.InputMethodID]
		if !ok {
			return e.sendError(ctx, clientWin, xim.ErrIMIDInvalid, "unknown input method", &m.InputMethodID, nil)
		}
		var out []xim.NestedAttr
		for _, id := range m.AttributeIDs {
			if a, ok := im.IMAttrs.ByID(id); ok && a.Name == string(xim.NameQueryInputStyle) {
				out = append(out, xim.NestedAttr{ID: id, Value: encodeStyles(e.handler.InputStyles())})
				continue
			}
			return e.sendError(ctx, clientWin, xim.ErrBadProtocol, "unknown im attribute id", &m.InputMethodID, nil)
		}
		return e.send(ctx, clientWin, &xim.GetIMValuesReply{InputMethodID: m.InputMethodID, Attributes: out})

	case *xim.CreateIC:
		if cwErr != nil {
			return cwErr
		}
		im, ok := e.ims[m.InputMethodID]
		if !ok {
			return e.sendError(ctx, clientWin, xim.ErrIMIDInvalid, "unknown input method", &m.InputMethodID, nil)
		}
		ic := im.createIC()
		im.applyAttributes(ic, m.Attributes)

		userData, err := e.handler.NewICData(ctx, ic.InputStyle)
		if err != nil {
			return err
		}
		ic.UserData = userData

		if err := e.send(ctx, clientWin, &xim.CreateICReply{InputMethodID: im.ID, InputContextID: ic.ID}); err != nil {
			return err
		}

		filter := e.handler.FilterEvents(ic)
		sync := e.handler.SyncMode(ic)
		return e.setEventMask(ctx, clientWin, im.ID, ic.ID, filter, sync)

	case *xim.DestroyIC:
		ic, im, err := e.lookupIC(m.InputMethodID, m.InputContextID)
		if err != nil {
			return err
		}
		ic.State = ICDestroyed
		delete(im.ICs, ic.ID)
		if err := e.handler.HandleDestroyIC(ctx, ic); err != nil {
			return err
		}
		return e.send(ctx, clientWin, &xim.DestroyICReply{ICHeader: m.ICHeader})

	case *xim.Close:
		if cwErr != nil {
			return cwErr
		}
		im, ok := e.ims[m.InputMethodID]
		if !ok {
			return e.sendError(ctx, clientWin, xim.ErrIMIDInvalid, "unknown input method", &m.InputMethodID, nil)
		}
		for _, ic := range im.ICs {
			ic.State = ICDestroyed
			if err := e.handler.HandleDestroyIC(ctx, ic); err != nil {
				return err
			}
		}
		im.ICs = make(map[uint16]*InputContext)
		delete(e.ims, im.ID)
		return e.send(ctx, clientWin, &xim.CloseReply{InputMethodID: im.ID})

	case *xim.SetICValues:
		ic, im, err := e.lookupIC(m.InputMethodID, m.InputContextID)
		if err != nil {
			return err
		}
		im.applyAttributes(ic, m.Attributes)
		return e.send(ctx, clientWin, &xim.SetICValuesReply{ICHeader: m.ICHeader})

	case *xim.GetICValues:
		ic, _, err := e.lookupIC(m.InputMethodID, m.InputContextID)
		if err != nil {
			return err
		}
		var out []xim.NestedAttr
		for _, id := range m.AttributeIDs {
			out = append(out, xim.NestedAttr{ID: id, Value: ic.Attributes[id]})
		}
		return e.send(ctx, clientWin, &xim.GetICValuesReply{ICHeader: m.ICHeader, Attributes: out})

	case *xim.SetICFocus:
		ic, _, err := e.lookupIC(m.InputMethodID, m.InputContextID)
		if err != nil {
			return err
		}
		ic.State = FocusHeld
		return nil

	case *xim.UnsetICFocus:
		ic, _, err := e.lookupIC(m.InputMethodID, m.InputContextID)
		if err != nil {
			return err
		}
		if ic.State == FocusHeld {
			ic.State = ICCreated
		}
		return nil

	case *xim.ForwardEvent:
		ic, _, err := e.lookupIC(m.InputMethodID, m.InputContextID)
		if err != nil {
			return err
		}
		return e.handleForwardEvent(ctx, clientWin, ic, m)

	case *xim.SyncReply:
		ic, _, err := e.lookupIC(m.InputMethodID, m.InputContextID)
		if err != nil {
			return err
		}
		return e.drainSyncQueue(ctx, clientWin, ic)

	case *xim.ResetIC:
		ic, _, err := e.lookupIC(m.InputMethodID, m.InputContextID)
		if err != nil {
			return err
		}
		text, err := e.handler.HandleResetIC(ctx, ic)
		if err != nil {
			return err
		}
		ic.Preedit = PreeditState{}
		return e.send(ctx, clientWin, &xim.ResetICReply{
			ICHeader:      m.ICHeader,
			PreeditString: string(ctext.Encode(text)),
		})

	case *xim.Disconnect:
		for _, im := range e.ims {
			for _, ic := range im.ICs {
				ic.State = ICDestroyed
				if err := e.handler.HandleDestroyIC(ctx, ic); err != nil {
					return err
				}
			}
			im.ICs = make(map[uint16]*InputContext)
		}
		if cwErr != nil {
			return cwErr
		}
		return e.send(ctx, clientWin, &xim.DisconnectReply{})

	default:
		xlog.Warn("server: unhandled request %s", req.Opcode())
		return nil
	}
}

func (e *Engine) openInputMethod() *InputMethod {
	id := e.imIDs.Next()
	im := &InputMethod{
		ID:      id,
		IMAttrs: xim.NewWellKnownIMRegistry(),
		ICAttrs: xim.NewWellKnownICRegistry(),
		ICs:     make(map[uint16]*InputContext),
	}
	e.ims[id] = im
	return im
}

func (im *InputMethod) createIC() *InputContext {
	id := im.icIDs.Next()
	ic := &InputContext{ID: id, State: ICCreated, Attributes: make(map[uint16][]byte)}
	im.ICs[id] = ic
	return ic
}

// encodeStyles packs an input style list as repeated little-endian
// uint32s, the AttrStyle wire shape GetIMValuesReply hands back under
// the queryInputStyle attribute.
func encodeStyles(styles []uint32) []byte {
	out := make([]byte, len(styles)*4)
	for i, s := range styles {
		binary.LittleEndian.PutUint32(out[i*4:], s)
	}
	return out
}

// applyAttributes merges attrs into ic's raw attribute table and, for
// the well-known names CreateIc/SetIcValues care about, parses them
// into ic's typed fields (spec.md §4.5 "parse the provided attributes
// into input_style, app_win, app_focus_win, and ... preedit_spot").
// Unknown ids are kept in Attributes but otherwise ignored.
func (im *InputMethod) applyAttributes(ic *InputContext, attrs []xim.NestedAttr) {
	for _, a := range attrs {
		ic.Attributes[a.ID] = a.Value

		attr, ok := im.ICAttrs.ByID(a.ID)
		if !ok {
			continue
		}
		switch xim.AttributeName(attr.Name) {
		case xim.NameInputStyle:
			if len(a.Value) >= 4 {
				ic.InputStyle = binary.LittleEndian.Uint32(a.Value)
			}
		case xim.NameClientWindow:
			if len(a.Value) >= 4 {
				ic.ClientWindow = transport.Window(binary.LittleEndian.Uint32(a.Value))
			}
		case xim.NameFocusWindow:
			if len(a.Value) >= 4 {
				ic.FocusWindow = transport.Window(binary.LittleEndian.Uint32(a.Value))
			}
		case xim.NamePreeditAttributes:
			im.applyPreeditAttributes(ic, a.Value)
		}
	}
}

// applyPreeditAttributes parses the nested PreeditAttributes value
// for the spotLocation entry (an XPoint) and records it as
// ic.PreeditSpot.
func (im *InputMethod) applyPreeditAttributes(ic *InputContext, value []byte) {
	nested, err := xim.ReadNestedList(wire.NewReader(value, binary.LittleEndian))
	if err != nil {
		xlog.Warn("server: malformed preeditAttributes: %v", err)
		return
	}
	for _, n := range nested {
		attr, ok := im.ICAttrs.ByID(n.ID)
		if !ok || xim.AttributeName(attr.Name) != xim.NameSpotLocation {
			continue
		}
		if len(n.Value) >= 4 {
			ic.PreeditSpot = Point{
				X: int16(binary.LittleEndian.Uint16(n.Value[0:2])),
				Y: int16(binary.LittleEndian.Uint16(n.Value[2:4])),
			}
		}
	}
}

func (e *Engine) lookupIC(imID, icID uint16) (*InputContext, *InputMethod, error) {
	im, ok := e.ims[imID]
	if !ok {
		return nil, nil, fmt.Errorf("xim/server: unknown input method %d", imID)
	}
	ic, ok := im.ICs[icID]
	if !ok {
		return nil, nil, fmt.Errorf("xim/server: unknown input context %d", icID)
	}
	return ic, im, nil
}

// handleForwardEvent applies the sync-cycle discipline of spec.md §6:
// a CommitSynchronous event must be answered with SyncReply before
// any further event on the same IC is processed; events arriving
// meanwhile queue in pendingIn rather than being dropped or
// reordered.
//
// Per spec.md §4.5: the handler decides whether the event was
// consumed; if not, the server echoes it back to the client (empty
// flag, or SYNCHRONOUS if the handler runs this IC in sync mode,
// which also arms the barrier). Either way, if the inbound flag
// itself carried SYNCHRONOUS, a SyncReply follows.
func (e *Engine) handleForwardEvent(ctx context.Context, clientWin transport.Window, ic *InputContext, m *xim.ForwardEvent) error {
	if ic.syncing {
		ic.pendingIn = append(ic.pendingIn, m)
		return nil
	}

	consumed, err := e.handler.HandleForwardEvent(ctx, ic, m.XEvent)
	if err != nil {
		return err
	}
	if !consumed {
		echoFlag := xim.CommitFlag(0)
		if e.handler.SyncMode(ic) {
			echoFlag = xim.CommitSynchronous
			ic.syncing = true
		}
		if err := e.send(ctx, clientWin, &xim.ForwardEvent{
			ICHeader:  m.ICHeader,
			Flag:      echoFlag,
			SerialNum: m.SerialNum,
			XEvent:    m.XEvent,
		}); err != nil {
			return err
		}
	}

	if m.Flag&xim.CommitSynchronous != 0 {
		return e.send(ctx, clientWin, &xim.SyncReply{ICHeader: m.ICHeader})
	}
	return nil
}

// setEventMask derives CreateIc's forward/sync event masks from the
// handler's filter and sync-mode decisions (spec.md §4.5): when the IC
// runs in sync mode, forwarded events default to suppressed (~filter)
// and the filtered set runs synchronously instead, and vice versa.
func (e *Engine) setEventMask(ctx context.Context, clientWin transport.Window, imID, icID uint16, filter xim.EventMask, sync bool) error {
	var fwd, syncMask xim.EventMask
	if sync {
		fwd, syncMask = ^filter, filter
	} else {
		fwd, syncMask = filter, ^filter
	}
	return e.send(ctx, clientWin, &xim.SetEventMask{
		InputMethodID:    imID,
		InputContextID:   icID,
		ForwardEventMask: fwd,
		SyncEventMask:    syncMask,
	})
}

// drainSyncQueue releases events queued behind a synchronous
// ForwardEvent once its SyncReply arrives, replaying pendingOut first
// (already-decided outbound messages) and then pendingIn in arrival
// order -- preserving the ordering invariant spec.md §8 pins. A
// replayed event the handler does not consume is echoed with
// CommitSynchronous when SyncMode holds, re-arming the barrier and
// leaving the rest of the queue for the next SyncReply.
func (e *Engine) drainSyncQueue(ctx context.Context, clientWin transport.Window, ic *InputContext) error {
	ic.syncing = false
	for _, out := range ic.pendingOut {
		if err := e.ops.SendClientMessage(ctx, clientWin, e.atoms.XIMProtocol, out); err != nil {
			return err
		}
	}
	ic.pendingOut = nil

	queued := ic.pendingIn
	ic.pendingIn = nil
	for _, m := range queued {
		if err := e.handleForwardEvent(ctx, clientWin, ic, m); err != nil {
			return err
		}
	}
	return nil
}

// Commit sends composed text to the client, encoding it to
// COMPOUND_TEXT first (original_source/src/server.rs's
// Server::commit does the same via xim-ctext).
func (e *Engine) Commit(ctx context.Context, clientWin transport.Window, imID, icID uint16, text string) error {
	return e.send(ctx, clientWin, &xim.Commit{
		ICHeader: xim.ICHeader{InputMethodID: imID, InputContextID: icID},
		Flag:     xim.CommitChars,
		String:   string(ctext.Encode(text)),
	})
}

// PreeditDraw drives an IC's preedit display (spec.md §4.5
// "preedit_draw"): it suppresses redundant Start/Done messages by
// tracking PreeditState.On, sends a terminal draw+Done once text goes
// back to empty, sends Start before the first non-empty draw, and
// otherwise just replaces the whole string, marking every rune
// underlined the way a composing IME typically renders it.
func (e *Engine) PreeditDraw(ctx context.Context, clientWin transport.Window, imID, icID uint16, ic *InputContext, text string) error {
	header := xim.ICHeader{InputMethodID: imID, InputContextID: icID}
	runes := []rune(text)

	if len(runes) == 0 {
		if !ic.Preedit.On {
			return nil
		}
		if err := e.send(ctx, clientWin, &xim.PreeditDraw{
			ICHeader:  header,
			ChgFirst:  0,
			ChgLength: int32(ic.Preedit.PrevLength),
			Status:    xim.PreeditNoFeedback | xim.PreeditNoString,
		}); err != nil {
			return err
		}
		if err := e.send(ctx, clientWin, &xim.PreeditDone{ICHeader: header}); err != nil {
			return err
		}
		ic.Preedit = PreeditState{}
		return nil
	}

	if !ic.Preedit.On {
		if err := e.send(ctx, clientWin, &xim.PreeditStart{ICHeader: header}); err != nil {
			return err
		}
		ic.Preedit.On = true
	}

	feedbacks := make([]xim.Feedback, len(runes))
	for i := range feedbacks {
		feedbacks[i] = xim.FeedbackUnderline
	}
	if err := e.send(ctx, clientWin, &xim.PreeditDraw{
		ICHeader:      header,
		ChgFirst:      0,
		ChgLength:     int32(ic.Preedit.PrevLength),
		Caret:         int32(len(runes)),
		PreeditString: string(ctext.Encode(text)),
		Feedbacks:     feedbacks,
	}); err != nil {
		return err
	}
	ic.Preedit.PrevLength = len(runes)
	return nil
}
