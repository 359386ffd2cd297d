package server

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/netrack/xim/transport"
)

// Listener owns the XIM_SERVERS registration for one server name and
// answers the per-client _XIM_XCONNECT handshake spec.md §4.3
// describes, allocating one Engine per accepted connection -- the Go
// analogue of the `com_win -> XimConnection` map original_source's
// server keeps.
type Listener struct {
	ops       transport.Ops
	atoms     *transport.Atoms
	order     binary.ByteOrder
	handler   Handler
	name      string
	locales   string
	root      transport.Window
	serverWin transport.Window

	nextComm transport.Window
	conns    map[transport.Window]*Engine
}

// NewListener returns a Listener that will register name on root's
// XIM_SERVERS and own the LOCALES/TRANSPORT selections on serverWin.
func NewListener(ops transport.Ops, atoms *transport.Atoms, order binary.ByteOrder, handler Handler, root, serverWin transport.Window, name, locales string) *Listener {
	return &Listener{
		ops: ops, atoms: atoms, order: order, handler: handler,
		name: name, locales: locales, root: root, serverWin: serverWin,
		conns: make(map[transport.Window]*Engine),
	}
}

// Register claims l's server name on XIM_SERVERS and takes ownership
// of the per-server selections, per spec.md §4.3 "Bootstrap (server)".
func (l *Listener) Register(ctx context.Context) error {
	_, err := transport.RegisterServer(ctx, l.ops, l.root, l.serverWin, l.atoms, l.order, l.name)
	return err
}

// AnswerSelectionRequest replies to a SelectionRequest for LOCALES or
// TRANSPORT with l's advertised value.
func (l *Listener) AnswerSelectionRequest(ctx context.Context, requestor transport.Window, target transport.Atom) error {
	return transport.AnswerSelectionRequest(ctx, l.ops, l.atoms, requestor, target, l.locales)
}

// AcceptXConnect handles an inbound _XIM_XCONNECT ClientMessage: it
// allocates a fresh communication window and Engine for the
// connecting client, and deposits the server's _XIM_XCONNECT reply on
// the client's window.
func (l *Listener) AcceptXConnect(ctx context.Context, payload []byte) (*Engine, error) {
	clientWin, err := transport.DecodeXConnect(payload, l.order)
	if err != nil {
		return nil, err
	}

	l.nextComm++
	commWin := l.nextComm
	e := New(l.ops, l.atoms, commWin, l.order, l.handler)
	l.conns[commWin] = e

	reply := transport.EncodeXConnectReply(commWin, 1, 0, transport.TransportMaxInline, l.order)
	if err := l.ops.ChangePropertyAppend(ctx, clientWin, l.atoms.XIMXConnect, reply); err != nil {
		return nil, err
	}
	return e, nil
}

// Conn returns the Engine accepted for commWin, if any.
func (l *Listener) Conn(commWin transport.Window) (*Engine, bool) {
	e, ok := l.conns[commWin]
	return e, ok
}

// Disconnect removes commWin's Engine from the listener's table --
// the counterpart to AcceptXConnect, called once a connection sees
// Disconnect or the transport reports the client gone.
func (l *Listener) Disconnect(commWin transport.Window) error {
	if _, ok := l.conns[commWin]; !ok {
		return fmt.Errorf("server: unknown communication window %d", commWin)
	}
	delete(l.conns, commWin)
	return nil
}
