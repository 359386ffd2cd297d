package transport

import "context"

// Atoms caches the atoms every XIM connection needs resolved once up
// front, rather than re-resolving a name on every message -- mirrors
// the teacher's pattern of caching negotiated state on the connection
// instead of re-deriving it per packet.
type Atoms struct {
	XIMServers  Atom
	Locales     Atom
	Transport   Atom
	XIMXConnect Atom
	XIMProtocol Atom
	XIMMoreData Atom
}

// ResolveAtoms interns the well-known atom set through ops.
func ResolveAtoms(ctx context.Context, ops Ops) (*Atoms, error) {
	names := []string{
		AtomXIMServers, AtomLocales, AtomTransport,
		AtomXIMXConnect, AtomXIMProtocol, AtomXIMMoreData,
	}
	resolved := make([]Atom, len(names))
	for i, name := range names {
		a, err := ops.ResolveAtom(ctx, name)
		if err != nil {
			return nil, err
		}
		resolved[i] = a
	}
	return &Atoms{
		XIMServers:  resolved[0],
		Locales:     resolved[1],
		Transport:   resolved[2],
		XIMXConnect: resolved[3],
		XIMProtocol: resolved[4],
		XIMMoreData: resolved[5],
	}, nil
}

// SequenceCounter hands out the per-window sequence numbers
// PropertyName uses for oversized-message properties.
type SequenceCounter struct {
	next uint32
}

// Next returns the next sequence number, starting at 0.
func (c *SequenceCounter) Next() uint32 {
	n := c.next
	c.next++
	return n
}
