package layers

import (
	"fmt"
	"net/netip"
	"strings"
)

const ipv6HeaderLen = 40

type IPv6 struct {
	BaseLayer
	Version       uint8
	TrafficClass  uint8
	FlowLabel     uint32
	PayloadLength uint16
	NextHeader    IPProtocol
	HopLimit      uint8
	Src, Dst      IPv6Address
	Payload       IPPayload
}

func (*IPv6) LayerType() LayerType { return LayerTypeIPv6 }
func (*IPv6) networkLayer()        {}
func (*IPv6) ipPayload()           {}
func (*IPv6) framePayload()        {}

func (ip *IPv6) SourceAddr() netip.Addr      { return ip.Src.Addr() }
func (ip *IPv6) DestinationAddr() netip.Addr { return ip.Dst.Addr() }
func (ip *IPv6) Transport() IPPayload        { return ip.Payload }

func (ip *IPv6) HeaderLen() int {
	n := ipv6HeaderLen
	for p := ip.Payload; ; {
		ext, ok := p.(*HeaderExtension)
		if !ok {
			return n
		}
		n += ext.HeaderLength
		p = ext.Payload
	}
}

func (ip *IPv6) String() string {
	var b strings.Builder
	b.WriteString(ip.Src.String())
	b.WriteString(" -> ")
	b.WriteString(ip.Dst.String())
	b.WriteByte(' ')
	b.WriteString(payloadString(ip.Payload))
	return b.String()
}

func (s *state) decodeIPv6(off int) (*IPv6, error) {
	if err := s.need(LayerTypeIPv6, off, ipv6HeaderLen); err != nil {
		return nil, err
	}
	b0, b1 := s.u8(off), s.u8(off+1)
	ip := &IPv6{
		Version:       b0 >> 4,
		TrafficClass:  (b0&0x0f)<<4 | (b1&0xf0)>>4,
		FlowLabel:     s.u32(off) & 0x000fffff,
		PayloadLength: s.u16(off + 4),
		NextHeader:    IPProtocol(s.u8(off + 6)),
		HopLimit:      s.u8(off + 7),
		Src:           DecodeIPv6Address(s.buf, off+8),
		Dst:           DecodeIPv6Address(s.buf, off+24),
	}
	ip.Contents = s.bytes(off, ipv6HeaderLen)

	// 以太网最小帧长会引入填充字节，有 payload length 时以它为界。
	next := off + ipv6HeaderLen
	sub := s
	if pl := int(ip.PayloadLength); pl > 0 && next+pl < len(s.buf) {
		sub = &state{buf: s.buf[:next+pl], d: s.d}
	}
	p, err := sub.decodeIPPayload(ip.NextHeader, next, len(sub.buf)-next)
	if err != nil {
		return nil, err
	}
	ip.Payload = p
	s.done(ip)
	return ip, nil
}

// HeaderExtension is any IPv6 extension header; its body is not interpreted.
type HeaderExtension struct {
	BaseLayer
	NextHeader   IPProtocol
	HeaderLength int // bytes, (len+1)*8
	Payload      IPPayload
}

func (*HeaderExtension) LayerType() LayerType { return LayerTypeHeaderExtension }
func (*HeaderExtension) ipPayload()           {}

func (h *HeaderExtension) String() string {
	return payloadString(h.Payload)
}

func (s *state) decodeHeaderExtension(off int) (*HeaderExtension, error) {
	if err := s.need(LayerTypeHeaderExtension, off, 2); err != nil {
		return nil, err
	}
	h := &HeaderExtension{
		NextHeader:   IPProtocol(s.u8(off)),
		HeaderLength: (int(s.u8(off+1)) + 1) * 8,
	}
	if err := s.need(LayerTypeHeaderExtension, off, h.HeaderLength); err != nil {
		return nil, err
	}
	h.Contents = s.bytes(off, h.HeaderLength)

	next := off + h.HeaderLength
	p, err := s.decodeIPPayload(h.NextHeader, next, len(s.buf)-next)
	if err != nil {
		return nil, err
	}
	h.Payload = p
	s.done(h)
	return h, nil
}

// NoNext terminates an IPv6 header chain and must end the buffer.
type NoNext struct {
	BaseLayer
}

func (*NoNext) LayerType() LayerType { return LayerTypeNoNext }
func (*NoNext) ipPayload()           {}
func (*NoNext) String() string       { return "" }

func (s *state) decodeNoNext(off int) (*NoNext, error) {
	if rest := len(s.buf) - off; rest != 0 {
		return nil, fmt.Errorf("layers: %d bytes after no next header at offset %d: %w", rest, off, ErrTrailingBytes)
	}
	n := &NoNext{}
	s.done(n)
	return n, nil
}
