package layers

import "fmt"

const dnsPort = 53

var _ IPPayload = (*UDP)(nil)

type UDP struct {
	BaseLayer
	SrcPort        uint16
	DstPort        uint16
	DatagramLength uint16
	Checksum       uint16
	// Data holds the captured payload bytes. With WithNoCopy it aliases
	// the decoded buffer.
	Data []byte
	// DNS is set when either port is 53.
	DNS *DNS
}

func (*UDP) LayerType() LayerType { return LayerTypeUDP }
func (*UDP) ipPayload()           {}

func (u *UDP) String() string {
	s := fmt.Sprintf("%d -> %d len %d", u.SrcPort, u.DstPort, u.DatagramLength)
	if u.DNS != nil {
		s += " " + u.DNS.String()
	}
	return s
}

func (s *state) decodeUDP(off int) (*UDP, error) {
	if err := s.need(LayerTypeUDP, off, 8); err != nil {
		return nil, err
	}
	u := &UDP{
		BaseLayer:      BaseLayer{Contents: s.bytes(off, 8)},
		SrcPort:        s.u16(off),
		DstPort:        s.u16(off + 2),
		DatagramLength: s.u16(off + 4),
		Checksum:       s.u16(off + 6),
	}
	if u.DatagramLength < 8 {
		return nil, fmt.Errorf("layers: udp length %d: %w", u.DatagramLength, ErrInvalidLength)
	}
	start := off + 8
	want := int(u.DatagramLength) - 8
	n := min(want, len(s.buf)-start)
	if n < want {
		s.diag(LayerTypeUDP, start, "payload truncated: %d of %d bytes captured", n, want)
	}
	u.Data = s.bytes(start, n)

	if !s.d.skipDNS && (u.SrcPort == dnsPort || u.DstPort == dnsPort) {
		dns, err := s.decodeDNS(start, n)
		if err != nil {
			return nil, err
		}
		u.DNS = dns
	}
	s.done(u)
	return u, nil
}
