package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNoXIMServer is returned by FindServer when no atom listed on
// XIM_SERVERS names the requested server.
var ErrNoXIMServer = errors.New("transport: no matching XIM server")

// ErrUnsupportedTransport is returned when a server's TRANSPORT
// property doesn't advertise the X/ transport this module implements.
var ErrUnsupportedTransport = errors.New("transport: unsupported transport")

// ServerName returns the atom name a server registers on XIM_SERVERS
// under, and the name a client looks for there: "@server=<name>",
// per spec.md §4.3/§6.
func ServerName(name string) string { return "@server=" + name }

// Handshake is what BootstrapClient records once the _XIM_XCONNECT
// exchange completes.
type Handshake struct {
	ServerWindow Window
	CommWindow   Window
	MajorVersion uint8
	MinorVersion uint8
	TransportMax uint8
}

// FindServer reads the XIM_SERVERS property on root -- a list of
// 4-byte atom ids -- and returns the first one whose name matches
// ServerName(name), along with the window currently owning it.
func FindServer(ctx context.Context, ops Ops, root Window, atoms *Atoms, order binary.ByteOrder, name string) (Atom, Window, error) {
	listing, err := ops.GetProperty(ctx, root, atoms.XIMServers)
	if err != nil {
		return 0, 0, err
	}
	want := ServerName(name)
	for i := 0; i+4 <= len(listing); i += 4 {
		a := Atom(order.Uint32(listing[i : i+4]))
		n, err := ops.AtomName(ctx, a)
		if err != nil {
			continue
		}
		if n == want {
			owner, err := ops.SelectionOwnerOf(ctx, a)
			if err != nil {
				return 0, 0, err
			}
			return a, owner, nil
		}
	}
	return 0, 0, ErrNoXIMServer
}

// BootstrapClient performs the client side of the selection/locale
// handshake spec.md §4.3 describes: locate the named server on
// XIM_SERVERS, confirm its TRANSPORT property, convert LOCALES, then
// trade an _XIM_XCONNECT ClientMessage for the server's communication
// window and transport_max.
//
// A real client would wait for an asynchronous SelectionNotify
// between each ConvertSelection and its matching GetProperty; this
// module treats that as the transport's concern (Ops.ConvertSelection
// may itself block until the notification lands) and calls
// GetProperty immediately after, matching how several Xlib XIM
// bindings nest their own event loop inside XConvertSelection.
func BootstrapClient(ctx context.Context, ops Ops, atoms *Atoms, root, clientWin Window, order binary.ByteOrder, name string) (*Handshake, error) {
	serverAtom, serverWin, err := FindServer(ctx, ops, root, atoms, order, name)
	if err != nil {
		return nil, err
	}

	if err := ops.ConvertSelection(ctx, serverAtom, atoms.Transport, clientWin); err != nil {
		return nil, err
	}
	transportProp, err := ops.GetProperty(ctx, clientWin, atoms.Transport)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(transportProp, []byte("@transport=X/")) {
		return nil, ErrUnsupportedTransport
	}

	if err := ops.ConvertSelection(ctx, serverAtom, atoms.Locales, clientWin); err != nil {
		return nil, err
	}
	if _, err := ops.GetProperty(ctx, clientWin, atoms.Locales); err != nil {
		return nil, err
	}

	if err := ops.SendClientMessage(ctx, serverWin, atoms.XIMXConnect, EncodeXConnect(clientWin, order)); err != nil {
		return nil, err
	}

	reply, err := ops.GetProperty(ctx, clientWin, atoms.XIMXConnect)
	if err != nil {
		return nil, err
	}
	hs, err := DecodeXConnectReply(reply, order)
	if err != nil {
		return nil, err
	}
	hs.ServerWindow = serverWin
	return hs, nil
}

// EncodeXConnect builds the 20-byte _XIM_XCONNECT payload a client
// sends to the server's selection-owner window: [client_win,0,0,0,0],
// per spec.md §6.
func EncodeXConnect(clientWin Window, order binary.ByteOrder) []byte {
	buf := make([]byte, 20)
	order.PutUint32(buf[0:4], uint32(clientWin))
	return buf
}

// DecodeXConnect reads the payload EncodeXConnect produced.
func DecodeXConnect(data []byte, order binary.ByteOrder) (Window, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("transport: short _XIM_XCONNECT request")
	}
	return Window(order.Uint32(data[0:4])), nil
}

// EncodeXConnectReply builds the server's _XIM_XCONNECT reply payload:
// [comm_win, major, minor, transport_max, 0], per spec.md §6. major,
// minor and transportMax occupy one byte each of the second word, the
// way the protocol packs small handshake scalars together.
func EncodeXConnectReply(commWin Window, major, minor, transportMax uint8, order binary.ByteOrder) []byte {
	buf := make([]byte, 20)
	order.PutUint32(buf[0:4], uint32(commWin))
	buf[4] = major
	buf[5] = minor
	buf[6] = transportMax
	return buf
}

// DecodeXConnectReply parses the payload EncodeXConnectReply produced.
func DecodeXConnectReply(data []byte, order binary.ByteOrder) (*Handshake, error) {
	if len(data) < 7 {
		return nil, fmt.Errorf("transport: short _XIM_XCONNECT reply")
	}
	return &Handshake{
		CommWindow:   Window(order.Uint32(data[0:4])),
		MajorVersion: data[4],
		MinorVersion: data[5],
		TransportMax: data[6],
	}, nil
}

// RegisterServer claims name on the root window's XIM_SERVERS listing
// and takes ownership of the per-server selection atom, per spec.md
// §4.3 "Bootstrap (server)". It returns the atom clients will look
// for under ServerName(name).
func RegisterServer(ctx context.Context, ops Ops, root, serverWin Window, atoms *Atoms, order binary.ByteOrder, name string) (Atom, error) {
	serverAtom, err := ops.ResolveAtom(ctx, ServerName(name))
	if err != nil {
		return 0, err
	}
	buf := make([]byte, 4)
	order.PutUint32(buf, uint32(serverAtom))
	if err := ops.ChangePropertyAppend(ctx, root, atoms.XIMServers, buf); err != nil {
		return 0, err
	}
	if err := ops.SetSelectionOwner(ctx, serverAtom, serverWin); err != nil {
		return 0, err
	}
	return serverAtom, nil
}

// AnswerSelectionRequest replies to a SelectionRequest for LOCALES or
// TRANSPORT with the matching property value on requestor, per
// spec.md §4.3 "On SelectionRequest ... reply with property".
func AnswerSelectionRequest(ctx context.Context, ops Ops, atoms *Atoms, requestor Window, target Atom, locales string) error {
	switch target {
	case atoms.Locales:
		return ops.ChangePropertyAppend(ctx, requestor, atoms.Locales, []byte("@locale="+locales))
	case atoms.Transport:
		return ops.ChangePropertyAppend(ctx, requestor, atoms.Transport, []byte("@transport=X/"))
	default:
		return fmt.Errorf("transport: unexpected selection target %d", target)
	}
}
