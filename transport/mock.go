package transport

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a bundled in-memory Ops implementation: an atom table, a
// per-window property store, and a ClientMessage inbox, all protected
// by one mutex. It lets the client and server engines be tested
// against each other (or against fixed byte fixtures) without a
// display connection -- the only Ops implementation this module
// ships, per SPEC_FULL.md §D.
type Mock struct {
	mu sync.Mutex

	atoms     map[string]Atom
	atomNames map[Atom]string
	nextAtom  Atom

	properties map[Window]map[Atom][]byte
	owners     map[Atom]Window

	// Sent records every ClientMessage passed to SendClientMessage, in
	// order, for tests to assert against.
	Sent []SentMessage

	handlers map[Window]ClientMessageHandler
}

// ClientMessageHandler reacts to a ClientMessage delivered to win, the
// mock's stand-in for a peer's event loop.
type ClientMessageHandler func(ctx context.Context, messageType Atom, data []byte) error

// OnClientMessage registers fn to run synchronously, inside
// SendClientMessage, whenever a message targets win -- lets a test
// drive both sides of a handshake (e.g. the _XIM_XCONNECT exchange)
// in one call stack instead of a real asynchronous event loop.
func (m *Mock) OnClientMessage(win Window, fn ClientMessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers == nil {
		m.handlers = make(map[Window]ClientMessageHandler)
	}
	m.handlers[win] = fn
}

// SentMessage is one ClientMessage a test can inspect after the fact.
type SentMessage struct {
	Window      Window
	MessageType Atom
	Data        []byte
}

// NewMock returns an empty Mock.
func NewMock() *Mock {
	return &Mock{
		atoms:      make(map[string]Atom),
		atomNames:  make(map[Atom]string),
		properties: make(map[Window]map[Atom][]byte),
		owners:     make(map[Atom]Window),
		nextAtom:   1,
	}
}

func (m *Mock) ResolveAtom(ctx context.Context, name string) (Atom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.atoms[name]; ok {
		return a, nil
	}
	a := m.nextAtom
	m.nextAtom++
	m.atoms[name] = a
	m.atomNames[a] = name
	return a, nil
}

func (m *Mock) AtomName(ctx context.Context, atom Atom) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name, ok := m.atomNames[atom]
	if !ok {
		return "", fmt.Errorf("transport: unknown atom %d", atom)
	}
	return name, nil
}

// SetSelectionOwner claims ownership of selection for owner, the way
// a real XIM server claims XIM_SERVERS/LOCALES/TRANSPORT at startup
// (transport.RegisterServer calls this through the Ops interface).
func (m *Mock) SetSelectionOwner(ctx context.Context, selection Atom, owner Window) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[selection] = owner
	return nil
}

func (m *Mock) SelectionOwnerOf(ctx context.Context, selection Atom) (Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.owners[selection]
	if !ok {
		return 0, fmt.Errorf("transport: no owner for selection %d", selection)
	}
	return w, nil
}

// ConvertSelection resolves synchronously: it copies whatever value
// the owner of selection has already deposited on its own window
// under target into requestor's matching property. A real transport
// would wait for a SelectionRequest/SelectionNotify round trip
// instead; tests seed the owner's side directly with
// ChangePropertyAppend(ownerWin, target, ...) (or let
// AnswerSelectionRequest do it) before calling this.
func (m *Mock) ConvertSelection(ctx context.Context, selection, target Atom, requestor Window) error {
	m.mu.Lock()
	owner, ok := m.owners[selection]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("transport: no owner for selection %d", selection)
	}
	val := append([]byte(nil), m.properties[owner][target]...)
	m.mu.Unlock()
	return m.ChangePropertyAppend(ctx, requestor, target, val)
}

func (m *Mock) GetProperty(ctx context.Context, w Window, property Atom) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	props, ok := m.properties[w]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), props[property]...), nil
}

func (m *Mock) ChangePropertyAppend(ctx context.Context, w Window, property Atom, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	props, ok := m.properties[w]
	if !ok {
		props = make(map[Atom][]byte)
		m.properties[w] = props
	}
	props[property] = append(props[property], data...)
	return nil
}

func (m *Mock) SendClientMessage(ctx context.Context, w Window, messageType Atom, data []byte) error {
	if len(data) > TransportMaxInline {
		return fmt.Errorf("transport: client message payload %d exceeds inline max %d", len(data), TransportMaxInline)
	}
	m.mu.Lock()
	cp := append([]byte(nil), data...)
	m.Sent = append(m.Sent, SentMessage{Window: w, MessageType: messageType, Data: cp})
	fn := m.handlers[w]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messageType, cp)
	}
	return nil
}

func (m *Mock) Flush(ctx context.Context) error { return nil }
