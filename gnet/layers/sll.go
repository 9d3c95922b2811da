package layers

import "strings"

type SLLPacketType uint16

const (
	SLLHost      SLLPacketType = 0
	SLLBroadcast SLLPacketType = 1
	SLLMulticast SLLPacketType = 2
	SLLOtherHost SLLPacketType = 3
	SLLOutgoing  SLLPacketType = 4
)

func (t SLLPacketType) String() string {
	switch t {
	case SLLHost:
		return "recv_us"
	case SLLBroadcast:
		return "broadcast"
	case SLLMulticast:
		return "multicast"
	case SLLOtherHost:
		return "remote_remote"
	case SLLOutgoing:
		return "sent_us"
	}
	return "packet type " + decString(uint32(t))
}

const sllAddressField = 8

// LinuxSLL is the Linux "cooked" capture header.
type LinuxSLL struct {
	BaseLayer
	PacketType    SLLPacketType
	AddressType   uint16
	AddressLength uint16
	// Address holds the significant bytes of the 8-byte address field.
	Address   []byte
	EtherType EthernetType
	Payload   NetworkLayer
}

func (*LinuxSLL) LayerType() LayerType { return LayerTypeLinuxSLL }
func (*LinuxSLL) framePayload()        {}

func (l *LinuxSLL) AddressString() string {
	var b strings.Builder
	for i, v := range l.Address {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(hexByte[v])
	}
	return b.String()
}

func (l *LinuxSLL) String() string {
	var b strings.Builder
	b.WriteString(l.PacketType.String())
	if len(l.Address) > 0 {
		b.WriteByte(' ')
		b.WriteString(l.AddressString())
	}
	b.WriteByte(' ')
	b.WriteString(etherPayloadString(l.EtherType, l.Payload))
	return b.String()
}

func (s *state) decodeLinuxSLL(off int) (*LinuxSLL, error) {
	if err := s.need(LayerTypeLinuxSLL, off, 16); err != nil {
		return nil, err
	}
	l := &LinuxSLL{
		PacketType:    SLLPacketType(s.u16(off)),
		AddressType:   s.u16(off + 2),
		AddressLength: s.u16(off + 4),
		EtherType:     EthernetType(s.u16(off + 14)),
	}
	n := min(int(l.AddressLength), sllAddressField)
	l.Address = append([]byte(nil), s.buf[off+6:off+6+n]...)
	l.Contents = s.bytes(off, 16)

	p, err := s.decodeEtherPayload(LayerTypeLinuxSLL, l.EtherType, off+16)
	if err != nil {
		return nil, err
	}
	l.Payload = p
	s.done(l)
	return l, nil
}
