// Package client implements the client half of the XIM connection:
// the state machine an application's input method client drives
// (spec.md §5), built on top of the xim wire codec and a
// transport.Ops the caller supplies.
//
// The split between Engine (the state machine plus outbound request
// helpers) and Handler (the callback interface invoked as replies
// arrive) mirrors ClientCore/Client/ClientHandler in
// original_source/src/client.rs: Engine plays the role of the
// blanket `impl<C: ClientCore> Client for C`, Handler the role of
// ClientHandler.
package client

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/netrack/xim"
	"github.com/netrack/xim/ctext"
	"github.com/netrack/xim/internal/xlog"
	"github.com/netrack/xim/transport"
)

// State is one node of the client connection state machine
// (spec.md §5): Idle -> Bootstrapped -> Connected -> Opened ->
// IcReady -> Closing -> Disconnected.
type State int

const (
	Idle State = iota
	Bootstrapped
	Connected
	Opened
	IcReady
	Closing
	Disconnected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Bootstrapped:
		return "Bootstrapped"
	case Connected:
		return "Connected"
	case Opened:
		return "Opened"
	case IcReady:
		return "IcReady"
	case Closing:
		return "Closing"
	case Disconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// Handler receives the replies and server-initiated requests an
// Engine dispatches, the Go analogue of original_source's
// ClientHandler trait.
type Handler interface {
	HandleConnect(ctx context.Context, c *Engine) error
	HandleDisconnect()
	HandleOpen(ctx context.Context, c *Engine, inputMethodID uint16) error
	HandleClose(ctx context.Context, c *Engine, inputMethodID uint16) error
	HandleQueryExtension(ctx context.Context, c *Engine, extensions []xim.Extension) error
	HandleGetIMValues(ctx context.Context, c *Engine, inputMethodID uint16, values map[xim.AttributeName][]byte) error
	HandleSetEventMask(ctx context.Context, c *Engine, inputMethodID, inputContextID uint16, forward, sync xim.EventMask) error
	HandleCreateIC(ctx context.Context, c *Engine, inputMethodID, inputContextID uint16) error
	HandleDestroyIC(ctx context.Context, c *Engine, inputMethodID, inputContextID uint16) error
	HandleCommit(ctx context.Context, c *Engine, inputMethodID, inputContextID uint16, text string) error
	HandleForwardEvent(ctx context.Context, c *Engine, inputMethodID, inputContextID uint16, flag xim.CommitFlag, xevent []byte) error

	// HandlePreeditStart answers a server-initiated PreeditStart: the
	// return value is the maximum preedit length the client accepts,
	// or a negative number to refuse.
	HandlePreeditStart(ctx context.Context, c *Engine, inputMethodID, inputContextID uint16) (int32, error)
	HandlePreeditDraw(ctx context.Context, c *Engine, inputMethodID, inputContextID uint16, text string, caret int) error
	HandlePreeditDone(ctx context.Context, c *Engine, inputMethodID, inputContextID uint16) error
}

// Engine drives one client-side XIM connection: it tracks State,
// owns the attribute registries negotiated at Open time, and turns
// Handler calls for the outbound half of the protocol into wire
// messages sent through transport.Ops.
type Engine struct {
	ops        transport.Ops
	atoms      *transport.Atoms
	commWindow transport.Window
	clientWin  transport.Window
	order      binary.ByteOrder

	state State

	InputMethodID  uint16
	InputContextID uint16

	IMAttrs *xim.AttributeRegistry
	ICAttrs *xim.AttributeRegistry
}

// New returns an Engine in the Idle state, ready to Bootstrap.
// clientWin is this client's own window, used as the requestor in the
// selection handshake; commWindow is overwritten once Bootstrap learns
// the server's real communication window, but can be set up front for
// callers that skip Bootstrap against a pre-arranged transport (tests,
// mainly). order is the byte order this client pins for the
// connection's lifetime, sent as the first byte of Connect (spec.md
// §3 "Endianness").
func New(ops transport.Ops, commWindow, clientWin transport.Window, order binary.ByteOrder) *Engine {
	return &Engine{ops: ops, commWindow: commWindow, clientWin: clientWin, state: Idle, order: order}
}

// State returns the engine's current state.
func (e *Engine) State() State { return e.state }

func (e *Engine) requireState(want State) error {
	if e.state != want {
		return fmt.Errorf("xim/client: invalid state %s, want %s", e.state, want)
	}
	return nil
}

// Bootstrap resolves the well-known atom set, then runs the
// selection/locale handshake spec.md §4.3 describes -- locating the
// named server on XIM_SERVERS, confirming its TRANSPORT property, and
// trading an _XIM_XCONNECT ClientMessage for a communication window --
// before moving Idle -> Bootstrapped. root is the X11 root window the
// server publishes XIM_SERVERS on; name is the server's registered
// name (the part of "@server=<name>" after the '=').
func (e *Engine) Bootstrap(ctx context.Context, root transport.Window, name string) error {
	if err := e.requireState(Idle); err != nil {
		return err
	}
	atoms, err := transport.ResolveAtoms(ctx, e.ops)
	if err != nil {
		return err
	}
	e.atoms = atoms

	hs, err := transport.BootstrapClient(ctx, e.ops, atoms, root, e.clientWin, e.order, name)
	if err != nil {
		return err
	}
	e.commWindow = hs.CommWindow
	e.state = Bootstrapped
	return nil
}

func (e *Engine) send(ctx context.Context, req xim.Request) error {
	body := xim.Encode(e.order, req)
	mode := transport.ChooseDelivery(len(body))
	xlog.Trace("client: send %s (%d bytes, %s)", req.Opcode(), len(body), modeString(mode))
	if mode == transport.DeliveryInline {
		return e.ops.SendClientMessage(ctx, e.commWindow, e.atoms.XIMProtocol, body)
	}
	return e.ops.ChangePropertyAppend(ctx, e.commWindow, e.atoms.XIMProtocol, body)
}

func modeString(m transport.DeliveryMode) string {
	if m == transport.DeliveryInline {
		return "inline"
	}
	return "property"
}

// Connect sends the Connect request and moves Bootstrapped ->
// Connected once the peer's ConnectReply arrives via Dispatch.
func (e *Engine) Connect(ctx context.Context, majorVersion, minorVersion uint16, authNames []string) error {
	if err := e.requireState(Bootstrapped); err != nil {
		return err
	}
	return e.send(ctx, &xim.Connect{
		ClientMajorVersion: majorVersion,
		ClientMinorVersion: minorVersion,
		AuthNames:          authNames,
	})
}

// Open sends Open for the given locale.
func (e *Engine) Open(ctx context.Context, locale string) error {
	if err := e.requireState(Connected); err != nil {
		return err
	}
	return e.send(ctx, &xim.Open{Locale: locale})
}

// Close sends Close for the given input method.
func (e *Engine) Close(ctx context.Context, inputMethodID uint16) error {
	return e.send(ctx, &xim.Close{InputMethodID: inputMethodID})
}

// QueryExtension asks the server which of the named extensions it
// supports.
func (e *Engine) QueryExtension(ctx context.Context, inputMethodID uint16, extensions []string) error {
	return e.send(ctx, &xim.QueryExtension{InputMethodID: inputMethodID, Extensions: extensions})
}

// CreateIC requests a new input context with the given attributes.
func (e *Engine) CreateIC(ctx context.Context, inputMethodID uint16, attrs []xim.NestedAttr) error {
	return e.send(ctx, &xim.CreateIC{InputMethodID: inputMethodID, Attributes: attrs})
}

// DestroyIC requests destruction of an input context.
func (e *Engine) DestroyIC(ctx context.Context, inputMethodID, inputContextID uint16) error {
	return e.send(ctx, &xim.DestroyIC{ICHeader: icHeaderOf(inputMethodID, inputContextID)})
}

// SetFocus marks an input context focused.
func (e *Engine) SetFocus(ctx context.Context, inputMethodID, inputContextID uint16) error {
	return e.send(ctx, &xim.SetICFocus{ICHeader: icHeaderOf(inputMethodID, inputContextID)})
}

// UnsetFocus marks an input context unfocused.
func (e *Engine) UnsetFocus(ctx context.Context, inputMethodID, inputContextID uint16) error {
	return e.send(ctx, &xim.UnsetICFocus{ICHeader: icHeaderOf(inputMethodID, inputContextID)})
}

// ForwardEvent relays a key event to the server, tagging it
// synchronous when the caller must block for the matching SyncReply
// before sending anything else on this IC (spec.md §5, the sync-cycle
// discipline server-side mirrors in two queues).
func (e *Engine) ForwardEvent(ctx context.Context, inputMethodID, inputContextID uint16, flag xim.CommitFlag, serialNum uint16, xevent []byte) error {
	return e.send(ctx, &xim.ForwardEvent{
		ICHeader:  icHeaderOf(inputMethodID, inputContextID),
		Flag:      flag,
		SerialNum: serialNum,
		XEvent:    xevent,
	})
}

func icHeaderOf(inputMethodID, inputContextID uint16) xim.ICHeader {
	return xim.ICHeader{InputMethodID: inputMethodID, InputContextID: inputContextID}
}

// Disconnect sends Disconnect, moving toward Disconnected once the
// DisconnectReply arrives.
func (e *Engine) Disconnect(ctx context.Context) error {
	e.state = Closing
	return e.send(ctx, &xim.Disconnect{})
}

// Dispatch decodes one incoming message and drives both the state
// machine and the matching Handler callback -- the client-side
// analogue of handle_request in original_source/src/server.rs.
func (e *Engine) Dispatch(ctx context.Context, buf []byte, h Handler) error {
	_, req, err := xim.Decode(e.order, buf)
	if err != nil {
		return err
	}
	xlog.Trace("client: recv %s", req.Opcode())

	switch m := req.(type) {
	case *xim.ConnectReply:
		e.state = Connected
		return h.HandleConnect(ctx, e)
	case *xim.OpenReply:
		e.InputMethodID = m.InputMethodID
		e.IMAttrs = xim.NewAttributeRegistry(m.IMAttrs)
		e.ICAttrs = xim.NewAttributeRegistry(m.ICAttrs)
		e.state = Opened
		// Every XIM peer must support COMPOUND_TEXT; offering it alone
		// negotiates it, since the server always accepts an encoding it
		// was offered (spec.md §4.4 "automatically issue
		// EncodingNegotiation"). on_open fires once the reply confirms
		// it, not here.
		return e.send(ctx, &xim.EncodingNegotiation{
			InputMethodID: m.InputMethodID,
			Encodings:     []string{"COMPOUND_TEXT"},
		})
	case *xim.EncodingNegotiationReply:
		return h.HandleOpen(ctx, e, m.InputMethodID)
	case *xim.CloseReply:
		return h.HandleClose(ctx, e, m.InputMethodID)
	case *xim.QueryExtensionReply:
		return h.HandleQueryExtension(ctx, e, m.Extensions)
	case *xim.GetIMValuesReply:
		values := make(map[xim.AttributeName][]byte, len(m.Attributes))
		for _, a := range m.Attributes {
			if attr, ok := e.IMAttrs.ByID(a.ID); ok {
				values[xim.AttributeName(attr.Name)] = a.Value
			}
		}
		return h.HandleGetIMValues(ctx, e, m.InputMethodID, values)
	case *xim.SetEventMask:
		return h.HandleSetEventMask(ctx, e, m.InputMethodID, m.InputContextID, m.ForwardEventMask, m.SyncEventMask)
	case *xim.CreateICReply:
		e.InputContextID = m.InputContextID
		e.state = IcReady
		return h.HandleCreateIC(ctx, e, m.InputMethodID, m.InputContextID)
	case *xim.DestroyICReply:
		return h.HandleDestroyIC(ctx, e, m.InputMethodID, m.InputContextID)
	case *xim.Commit:
		text, err := ctext.Decode([]byte(m.String))
		if err != nil {
			return err
		}
		if err := h.HandleCommit(ctx, e, m.InputMethodID, m.InputContextID, text); err != nil {
			return err
		}
		if m.Flag&xim.CommitSynchronous != 0 {
			return e.send(ctx, &xim.SyncReply{ICHeader: m.ICHeader})
		}
		return nil
	case *xim.ForwardEvent:
		if err := h.HandleForwardEvent(ctx, e, m.InputMethodID, m.InputContextID, m.Flag, m.XEvent); err != nil {
			return err
		}
		if m.Flag&xim.CommitSynchronous != 0 {
			return e.send(ctx, &xim.SyncReply{ICHeader: m.ICHeader})
		}
		return nil
	case *xim.Sync:
		return e.send(ctx, &xim.SyncReply{ICHeader: m.ICHeader})
	case *xim.PreeditStart:
		maxLen, err := h.HandlePreeditStart(ctx, e, m.InputMethodID, m.InputContextID)
		if err != nil {
			return err
		}
		return e.send(ctx, &xim.PreeditStartReply{ICHeader: m.ICHeader, ReturnValue: maxLen})
	case *xim.PreeditDraw:
		text, err := ctext.Decode([]byte(m.PreeditString))
		if err != nil {
			return err
		}
		return h.HandlePreeditDraw(ctx, e, m.InputMethodID, m.InputContextID, text, int(m.Caret))
	case *xim.PreeditDone:
		return h.HandlePreeditDone(ctx, e, m.InputMethodID, m.InputContextID)
	case *xim.DisconnectReply:
		e.state = Disconnected
		h.HandleDisconnect()
		return nil
	case *xim.ErrorMessage:
		return fmt.Errorf("xim/client: server error %d: %s", m.Code, m.Detail)
	default:
		xlog.Warn("client: unhandled request %s", req.Opcode())
		return nil
	}
}
