// Package transport defines the boundary between this module and a
// concrete X11 binding. Everything above this interface -- the wire
// codec, the attribute registry, the client and server engines -- is
// pure and transport-agnostic; everything below it (opening a
// display, resolving atoms, pumping an event loop) is explicitly out
// of scope, per spec.md §1 and SPEC_FULL.md §D.
//
// The split mirrors the teacher's Handler/ResponseWriter boundary in
// server.go: engines call Ops the way an openflow Handler calls a
// ResponseWriter, never touching a socket directly.
package transport

import "context"

// Atom is an X11 atom id, resolved once per name and cached by
// whatever sits on the other side of Ops.
type Atom uint32

// Window is an X11 window id.
type Window uint32

// Well-known atom names every XIM transport needs, per the XIM
// selection/locale handshake (spec.md §4.3): XIM_SERVERS names the
// root-window selection a server owns per-locale; LOCALES and
// TRANSPORT are properties on the server's communication window;
// _XIM_XCONNECT and _XIM_PROTOCOL drive the ClientMessage handshake
// that hands off to the chosen transport.
const (
	AtomXIMServers    = "XIM_SERVERS"
	AtomLocales       = "LOCALES"
	AtomTransport     = "TRANSPORT"
	AtomXIMXConnect   = "_XIM_XCONNECT"
	AtomXIMProtocol   = "_XIM_PROTOCOL"
	AtomXIMMoreData   = "_XIM_MOREDATA"
)

// TransportMaxInline is TRANSPORT_MAX: a ClientMessage can carry at
// most this many payload bytes inline (format 8, 20 data bytes);
// anything larger must go through the property-append path instead
// (spec.md §4.3 "Delivery mode").
const TransportMaxInline = 20

// Ops is everything an X11 binding must provide for the client and
// server engines to exchange XIM messages. A binding typically wraps
// a real Xlib/XCB connection; Mock below is a bundled in-memory
// implementation for tests that never touches a display.
type Ops interface {
	// ResolveAtom interns name, creating it if necessary.
	ResolveAtom(ctx context.Context, name string) (Atom, error)

	// AtomName reverses ResolveAtom.
	AtomName(ctx context.Context, atom Atom) (string, error)

	// SelectionOwnerOf returns the window currently owning the given
	// selection atom (used to locate an XIM server via XIM_SERVERS).
	SelectionOwnerOf(ctx context.Context, selection Atom) (Window, error)

	// SetSelectionOwner claims ownership of selection for owner, the
	// way a server claims its @server=<name> atom and the LOCALES/
	// TRANSPORT selections at bootstrap (spec.md §4.3).
	SetSelectionOwner(ctx context.Context, selection Atom, owner Window) error

	// ConvertSelection requests that owner convert selection into
	// target, depositing the result as a property on requestor. The
	// caller observes completion via a SelectionNotify it reads back
	// through its own event loop -- out of scope here.
	ConvertSelection(ctx context.Context, selection, target Atom, requestor Window) error

	// GetProperty reads the named property off w in full.
	GetProperty(ctx context.Context, w Window, property Atom) ([]byte, error)

	// ChangePropertyAppend appends data to the named property on w,
	// creating it if absent -- the delivery mechanism for messages
	// larger than TransportMaxInline.
	ChangePropertyAppend(ctx context.Context, w Window, property Atom, data []byte) error

	// SendClientMessage delivers a ClientMessage event to w. data must
	// be at most TransportMaxInline bytes; callers needing more use
	// ChangePropertyAppend plus a _XIM_MOREDATA-style notification
	// ClientMessage instead.
	SendClientMessage(ctx context.Context, w Window, messageType Atom, data []byte) error

	// Flush forces any buffered requests to the display out.
	Flush(ctx context.Context) error
}

// DeliveryMode reports how a message of the given body length should
// be sent, per spec.md §4.3.
type DeliveryMode int

const (
	DeliveryInline DeliveryMode = iota
	DeliveryProperty
)

// ChooseDelivery returns DeliveryInline when bodyLen fits in a single
// ClientMessage, DeliveryProperty otherwise.
func ChooseDelivery(bodyLen int) DeliveryMode {
	if bodyLen <= TransportMaxInline {
		return DeliveryInline
	}
	return DeliveryProperty
}

// PropertyName returns the per-message property name a property-mode
// delivery appends to and the peer then reads and deletes, following
// the "_XIM_DATA_<n>" convention where n is a small scalar sequence
// the sender increments per oversized message so concurrent large
// messages on the same window don't collide.
func PropertyName(seq uint32) string {
	return "_XIM_DATA_" + itoa(seq)
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
