package flow

import "net/netip"

// Key identifies a TCP connection independent of direction.
// A always sorts before B.
type Key struct {
	A, B netip.AddrPort
}

// NewKey returns the canonical key for the endpoint pair, so that
// NewKey(x, y) == NewKey(y, x).
func NewKey(x, y netip.AddrPort) Key {
	if x.Compare(y) > 0 {
		x, y = y, x
	}
	return Key{A: x, B: y}
}

func (k Key) String() string {
	return k.A.String() + "-" + k.B.String()
}
