package layers

import (
	"fmt"
	"net/netip"
	"strings"
)

type IPv4Flags struct {
	Reserved      bool
	DontFragment  bool
	MoreFragments bool
}

// String renders the set flags as "rdm" letters, empty when none is set.
func (f IPv4Flags) String() string {
	var b []byte
	if f.Reserved {
		b = append(b, 'r')
	}
	if f.DontFragment {
		b = append(b, 'd')
	}
	if f.MoreFragments {
		b = append(b, 'm')
	}
	return string(b)
}

type IPv4 struct {
	BaseLayer
	Version      uint8
	HeaderLength int // bytes
	DiffServ     uint8
	TotalLength  uint16
	ID           uint16
	Flags        IPv4Flags
	// FragmentOffset is in bytes (wire value * 8).
	FragmentOffset uint16
	TTL            uint8
	Protocol       IPProtocol
	Checksum       uint16
	Src, Dst       IPv4Address
	Payload        IPPayload
}

func (*IPv4) LayerType() LayerType { return LayerTypeIPv4 }
func (*IPv4) networkLayer()        {}
func (*IPv4) ipPayload()           {}
func (*IPv4) framePayload()        {}

func (ip *IPv4) SourceAddr() netip.Addr      { return ip.Src.Addr() }
func (ip *IPv4) DestinationAddr() netip.Addr { return ip.Dst.Addr() }
func (ip *IPv4) Transport() IPPayload        { return ip.Payload }
func (ip *IPv4) HeaderLen() int              { return ip.HeaderLength }

// IsFragment reports whether this packet is part of a fragmented datagram.
func (ip *IPv4) IsFragment() bool {
	return ip.Flags.MoreFragments || ip.FragmentOffset != 0
}

func (ip *IPv4) String() string {
	var b strings.Builder
	b.WriteString(ip.Src.String())
	b.WriteString(" -> ")
	b.WriteString(ip.Dst.String())
	b.WriteByte(' ')
	if f := ip.Flags.String(); f != "" {
		b.WriteString("flags [")
		b.WriteString(f)
		b.WriteString("] ")
	}
	b.WriteString(payloadString(ip.Payload))
	return b.String()
}

func (s *state) decodeIPv4(off int) (*IPv4, error) {
	if err := s.need(LayerTypeIPv4, off, 20); err != nil {
		return nil, err
	}
	b0 := s.u8(off)
	flagsFrag := s.u16(off + 6)
	ip := &IPv4{
		Version:        b0 >> 4,
		HeaderLength:   int(b0&0x0f) << 2,
		DiffServ:       s.u8(off + 1),
		TotalLength:    s.u16(off + 2),
		ID:             s.u16(off + 4),
		FragmentOffset: (flagsFrag & 0x1fff) << 3,
		TTL:            s.u8(off + 8),
		Protocol:       IPProtocol(s.u8(off + 9)),
		Checksum:       s.u16(off + 10),
		Src:            DecodeIPv4Address(s.buf, off+12),
		Dst:            DecodeIPv4Address(s.buf, off+16),
	}
	b6 := byte(flagsFrag >> 8)
	ip.Flags = IPv4Flags{
		Reserved:      b6&0x80 != 0,
		DontFragment:  b6&0x40 != 0,
		MoreFragments: b6&0x20 != 0,
	}
	if ip.HeaderLength < 20 || int(ip.TotalLength) < ip.HeaderLength {
		return nil, fmt.Errorf("layers: ipv4 header length %d total length %d: %w",
			ip.HeaderLength, ip.TotalLength, ErrInvalidLength)
	}
	// 选项直接跳过
	if err := s.need(LayerTypeIPv4, off, ip.HeaderLength); err != nil {
		return nil, err
	}
	ip.Contents = s.bytes(off, ip.HeaderLength)

	next := off + ip.HeaderLength
	remaining := int(ip.TotalLength) - ip.HeaderLength
	if ip.FragmentOffset != 0 {
		ip.Payload = s.decodeFragment(ip.Protocol, ip.FragmentOffset, next, remaining)
	} else {
		p, err := s.decodeIPPayload(ip.Protocol, next, remaining)
		if err != nil {
			return nil, err
		}
		ip.Payload = p
	}
	s.done(ip)
	return ip, nil
}

// decodeRaw handles the raw link type, whose first nibble selects the IP version.
func (s *state) decodeRaw(off int) (FramePayload, error) {
	if err := s.need(LayerTypeIPv4, off, 1); err != nil {
		return nil, err
	}
	if s.u8(off)>>4 == 6 {
		return s.decodeIPv6(off)
	}
	return s.decodeIPv4(off)
}
