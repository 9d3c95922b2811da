package layers

import (
	"fmt"
	"strings"
)

type EthernetType uint16

const (
	EthernetTypeIPv4 EthernetType = 0x0800
	EthernetTypeARP  EthernetType = 0x0806
	EthernetTypeIPv6 EthernetType = 0x86DD
	EthernetTypeVLAN EthernetType = 0x8100
	EthernetTypeQinQ EthernetType = 0x88A8

	// minEtherType 以下的取值是 802.3 长度字段。
	minEtherType = 1536
)

func (t EthernetType) String() string {
	switch t {
	case EthernetTypeIPv4:
		return "IPv4"
	case EthernetTypeARP:
		return "Arp"
	case EthernetTypeIPv6:
		return "IPv6"
	}
	return "ethertype " + decString(uint32(t))
}

// UnknownEtherType is the tolerated leaf for an ethertype outside the
// recognized set.
type UnknownEtherType struct {
	BaseLayer
	EtherType EthernetType
}

func (*UnknownEtherType) LayerType() LayerType { return LayerTypeUnknown }
func (*UnknownEtherType) networkLayer()        {}

func (u *UnknownEtherType) String() string {
	return "0x" + hexByteNoPad[byte(u.EtherType>>8)] + hexByte[byte(u.EtherType)]
}

func etherPayloadString(t EthernetType, p NetworkLayer) string {
	if _, unknown := p.(*UnknownEtherType); unknown || p == nil {
		return t.String()
	}
	if ps := p.String(); ps != "" {
		return t.String() + " " + ps
	}
	return t.String()
}

// decodeEtherPayload is the ethertype table shared by Ethernet, LLC and SLL.
func (s *state) decodeEtherPayload(lt LayerType, t EthernetType, off int) (NetworkLayer, error) {
	if t < minEtherType {
		return nil, fmt.Errorf("layers: %s type %d at offset %d: %w", lt, uint16(t), off-2, ErrNotEtherType)
	}
	switch t {
	case EthernetTypeIPv4:
		return s.decodeIPv4(off)
	case EthernetTypeIPv6:
		return s.decodeIPv6(off)
	case EthernetTypeARP:
		return s.decodeARP(off)
	}
	s.diag(lt, off-2, "unrecognized ethertype %#04x", uint16(t))
	u := &UnknownEtherType{EtherType: t}
	s.done(u)
	return u, nil
}

// VLAN is one 802.1Q tag.
type VLAN struct {
	Priority        uint8
	CanonicalFormat uint8
	ID              uint16
}

func (v VLAN) String() string {
	return fmt.Sprintf("vlan %d %d %d", v.Priority, v.CanonicalFormat, v.ID)
}

type Ethernet struct {
	BaseLayer
	Dst, Src  EthernetAddress
	VLANs     []VLAN
	EtherType EthernetType
	Payload   NetworkLayer
}

func (*Ethernet) LayerType() LayerType { return LayerTypeEthernet }
func (*Ethernet) framePayload()        {}

func (e *Ethernet) String() string {
	var b strings.Builder
	b.WriteString(e.Src.String())
	b.WriteString(" -> ")
	b.WriteString(e.Dst.String())
	for _, v := range e.VLANs {
		b.WriteByte(' ')
		b.WriteString(v.String())
	}
	b.WriteByte(' ')
	b.WriteString(etherPayloadString(e.EtherType, e.Payload))
	return b.String()
}

func (s *state) decodeEthernet(off int) (*Ethernet, error) {
	if err := s.need(LayerTypeEthernet, off, 14); err != nil {
		return nil, err
	}
	e := &Ethernet{
		Dst: DecodeEthernetAddress(s.buf, off),
		Src: DecodeEthernetAddress(s.buf, off+6),
	}
	pos := off + 12
	typ := EthernetType(s.u16(pos))
	pos += 2

	for typ == EthernetTypeVLAN || typ == EthernetTypeQinQ {
		if err := s.need(LayerTypeEthernet, pos, 4); err != nil {
			return nil, err
		}
		b0 := s.u8(pos)
		e.VLANs = append(e.VLANs, VLAN{
			Priority:        (b0 & 0xe0) >> 5,
			CanonicalFormat: (b0 & 0x10) >> 4,
			ID:              uint16(b0&0x0f)<<8 | uint16(s.u8(pos+1)),
		})
		typ = EthernetType(s.u16(pos + 2))
		pos += 4
	}
	e.EtherType = typ
	e.Contents = s.bytes(off, pos-off)

	p, err := s.decodeEtherPayload(LayerTypeEthernet, typ, pos)
	if err != nil {
		return nil, err
	}
	e.Payload = p
	s.done(e)
	return e, nil
}
