package layers

import (
	"fmt"
	"strings"
)

const (
	ARPRequest uint16 = 1
	ARPReply   uint16 = 2
)

// ARP covers the Ethernet/IPv4 address combination only.
type ARP struct {
	BaseLayer
	HardwareType   uint16
	ProtocolType   uint16
	HardwareLength uint8
	ProtocolLength uint8
	Operation      uint16
	SenderHardware EthernetAddress
	SenderProtocol IPv4Address
	TargetHardware EthernetAddress
	TargetProtocol IPv4Address
}

func (*ARP) LayerType() LayerType { return LayerTypeARP }
func (*ARP) networkLayer()        {}

func (a *ARP) String() string {
	var b strings.Builder
	switch a.Operation {
	case ARPRequest:
		b.WriteString("request")
	case ARPReply:
		b.WriteString("reply")
	default:
		b.WriteString("unknown")
	}
	b.WriteString(" sender ")
	b.WriteString(a.SenderHardware.String())
	b.WriteByte(' ')
	b.WriteString(a.SenderProtocol.String())
	b.WriteString(" target ")
	b.WriteString(a.TargetHardware.String())
	b.WriteByte(' ')
	b.WriteString(a.TargetProtocol.String())
	return b.String()
}

func (s *state) decodeARP(off int) (*ARP, error) {
	if err := s.need(LayerTypeARP, off, 8); err != nil {
		return nil, err
	}
	a := &ARP{
		HardwareType:   s.u16(off),
		ProtocolType:   s.u16(off + 2),
		HardwareLength: s.u8(off + 4),
		ProtocolLength: s.u8(off + 5),
		Operation:      s.u16(off + 6),
	}
	if a.HardwareLength != 6 || a.ProtocolLength != 4 {
		return nil, fmt.Errorf("layers: arp hlen %d plen %d: %w", a.HardwareLength, a.ProtocolLength, ErrUnsupportedARP)
	}
	if err := s.need(LayerTypeARP, off, 28); err != nil {
		return nil, err
	}
	a.SenderHardware = DecodeEthernetAddress(s.buf, off+8)
	a.SenderProtocol = DecodeIPv4Address(s.buf, off+14)
	a.TargetHardware = DecodeEthernetAddress(s.buf, off+18)
	a.TargetProtocol = DecodeIPv4Address(s.buf, off+24)
	a.Contents = s.bytes(off, 28)
	s.done(a)
	return a, nil
}
