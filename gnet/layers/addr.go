package layers

import (
	"net/netip"
	"strings"
)

// EthernetAddress is a 48-bit hardware address.
type EthernetAddress [6]byte

// IPv4Address is a 32-bit network address.
type IPv4Address [4]byte

// IPv6Address is a 128-bit network address.
type IPv6Address [16]byte

// DecodeEthernetAddress reads 6 bytes at off. The caller guarantees the
// buffer is long enough.
func DecodeEthernetAddress(buf []byte, off int) EthernetAddress {
	var a EthernetAddress
	copy(a[:], buf[off:off+6])
	return a
}

func DecodeIPv4Address(buf []byte, off int) IPv4Address {
	var a IPv4Address
	copy(a[:], buf[off:off+4])
	return a
}

func DecodeIPv6Address(buf []byte, off int) IPv6Address {
	var a IPv6Address
	copy(a[:], buf[off:off+16])
	return a
}

// ParseEthernetAddress parses the colon-hex form produced by String.
func ParseEthernetAddress(s string) (EthernetAddress, bool) {
	var a EthernetAddress
	parts := strings.Split(s, ":")
	if len(parts) != len(a) {
		return a, false
	}
	for i, p := range parts {
		if len(p) != 2 {
			return a, false
		}
		hi, ok1 := unhex(p[0])
		lo, ok2 := unhex(p[1])
		if !ok1 || !ok2 {
			return a, false
		}
		a[i] = hi<<4 | lo
	}
	return a, true
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func (a EthernetAddress) String() string {
	var b strings.Builder
	b.Grow(17)
	for i, v := range a {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(hexByte[v])
	}
	return b.String()
}

func (a IPv4Address) String() string {
	var b strings.Builder
	b.Grow(15)
	for i, v := range a {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(decByte[v])
	}
	return b.String()
}

func (a IPv4Address) Addr() netip.Addr {
	return netip.AddrFrom4(a)
}

// String renders eight zero-padded lower-case groups without "::"
// compression, e.g. fe80:0000:0000:0000:708d:fe83:4114:a512.
func (a IPv6Address) String() string {
	var b strings.Builder
	b.Grow(39)
	for i := 0; i < 16; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(hexByte[a[i]])
		b.WriteString(hexByte[a[i+1]])
	}
	return b.String()
}

func (a IPv6Address) Addr() netip.Addr {
	return netip.AddrFrom16(a)
}
