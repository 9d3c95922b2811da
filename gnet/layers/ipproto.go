package layers

import "fmt"

type IPProtocol uint8

const (
	IPProtocolHopByHop    IPProtocol = 0
	IPProtocolICMP        IPProtocol = 1
	IPProtocolIGMP        IPProtocol = 2
	IPProtocolIPv4        IPProtocol = 4
	IPProtocolTCP         IPProtocol = 6
	IPProtocolUDP         IPProtocol = 17
	IPProtocolIPv6        IPProtocol = 41
	IPProtocolRouting     IPProtocol = 43
	IPProtocolFragment    IPProtocol = 51
	IPProtocolNoNext      IPProtocol = 59
	IPProtocolDestination IPProtocol = 60
	IPProtocolMobility    IPProtocol = 135
	IPProtocolHIP         IPProtocol = 139
	IPProtocolShim6       IPProtocol = 140
)

func (p IPProtocol) String() string {
	switch p {
	case IPProtocolICMP:
		return "ICMP"
	case IPProtocolIGMP:
		return "IGMP"
	case IPProtocolIPv4:
		return "IPv4"
	case IPProtocolTCP:
		return "TCP"
	case IPProtocolUDP:
		return "UDP"
	case IPProtocolIPv6:
		return "IPv6"
	case IPProtocolNoNext:
		return "NoNext"
	}
	if p.IsExtension() {
		return "HeaderExtension"
	}
	return "protocol " + decByte[p]
}

// IsExtension reports whether p names an IPv6 extension header decoded
// as a generic HeaderExtension.
func (p IPProtocol) IsExtension() bool {
	switch p {
	case IPProtocolHopByHop, IPProtocolRouting, IPProtocolFragment, IPProtocolDestination,
		IPProtocolMobility, IPProtocolHIP, IPProtocolShim6:
		return true
	}
	return false
}

// decodeIPPayload 根据协议号选择解码器。未知协议号是致命错误。
func (s *state) decodeIPPayload(p IPProtocol, off, remaining int) (IPPayload, error) {
	switch {
	case p == IPProtocolICMP:
		return s.decodeICMP(off)
	case p == IPProtocolIGMP:
		return s.decodeIGMP(off)
	case p == IPProtocolIPv4:
		return s.decodeIPv4(off)
	case p == IPProtocolTCP:
		return s.decodeTCP(off, remaining)
	case p == IPProtocolUDP:
		return s.decodeUDP(off)
	case p == IPProtocolIPv6:
		return s.decodeIPv6(off)
	case p == IPProtocolNoNext:
		return s.decodeNoNext(off)
	case p.IsExtension():
		return s.decodeHeaderExtension(off)
	}
	return nil, fmt.Errorf("layers: %s at offset %d: %w", p, off, ErrUnknownProtocol)
}

// Fragment carries the bytes of a non-first IPv4 fragment, which hold no
// transport header.
type Fragment struct {
	BaseLayer
	Protocol IPProtocol
	Offset   uint16
	Data     []byte
}

func (*Fragment) LayerType() LayerType { return LayerTypeFragment }
func (*Fragment) ipPayload()           {}

func (f *Fragment) String() string {
	return fmt.Sprintf("%s offset %d len %d", f.Protocol, f.Offset, len(f.Data))
}

func (s *state) decodeFragment(p IPProtocol, fragOff uint16, off, remaining int) *Fragment {
	n := max(min(remaining, len(s.buf)-off), 0)
	f := &Fragment{Protocol: p, Offset: fragOff, Data: s.bytes(off, n)}
	s.done(f)
	return f
}
