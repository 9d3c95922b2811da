package layers

import (
	"fmt"
	"strings"
)

type TCPFlags struct {
	NS, CWR, ECE, URG, ACK, PSH, RST, SYN, FIN bool
}

// String renders the set flags in "ceuaprsf" order inside brackets.
func (f TCPFlags) String() string {
	b := make([]byte, 0, 10)
	b = append(b, '[')
	for _, fl := range [...]struct {
		set bool
		c   byte
	}{
		{f.CWR, 'c'}, {f.ECE, 'e'}, {f.URG, 'u'}, {f.ACK, 'a'},
		{f.PSH, 'p'}, {f.RST, 'r'}, {f.SYN, 's'}, {f.FIN, 'f'},
	} {
		if fl.set {
			b = append(b, fl.c)
		}
	}
	return string(append(b, ']'))
}

type TCP struct {
	BaseLayer
	SrcPort      uint16
	DstPort      uint16
	Seq          uint32
	Ack          uint32
	HeaderLength int // bytes
	Flags        TCPFlags
	Window       uint16
	Checksum     uint16
	Urgent       uint16
	Options      TCPOptions
	// DataLength is the payload size declared by the IP layer.
	DataLength int
	// Data is nil when DataLength is zero. Otherwise it holds the captured
	// payload bytes, which may be fewer than DataLength for a truncated
	// capture. With WithNoCopy it aliases the decoded buffer.
	Data []byte
}

func (*TCP) LayerType() LayerType { return LayerTypeTCP }
func (*TCP) ipPayload()           {}

func (t *TCP) HasData() bool {
	return t.Data != nil
}

func (t *TCP) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d -> %d seq %d ack %d flags %s win %d csum %d",
		t.SrcPort, t.DstPort, t.Seq, t.Ack, t.Flags, t.Window, t.Checksum)
	if t.Urgent != 0 {
		fmt.Fprintf(&b, " urg %d", t.Urgent)
	}
	b.WriteByte(' ')
	b.WriteString(t.Options.String())
	fmt.Fprintf(&b, " len %d", t.DataLength)
	return b.String()
}

func (s *state) decodeTCP(off, segmentLength int) (*TCP, error) {
	if err := s.need(LayerTypeTCP, off, 20); err != nil {
		return nil, err
	}
	b12, b13 := s.u8(off+12), s.u8(off+13)
	t := &TCP{
		SrcPort:      s.u16(off),
		DstPort:      s.u16(off + 2),
		Seq:          s.u32(off + 4),
		Ack:          s.u32(off + 8),
		HeaderLength: int(b12&0xf0) >> 2,
		Flags: TCPFlags{
			NS:  b12&0x01 != 0,
			CWR: b13&0x80 != 0,
			ECE: b13&0x40 != 0,
			URG: b13&0x20 != 0,
			ACK: b13&0x10 != 0,
			PSH: b13&0x08 != 0,
			RST: b13&0x04 != 0,
			SYN: b13&0x02 != 0,
			FIN: b13&0x01 != 0,
		},
		Window:   s.u16(off + 14),
		Checksum: s.u16(off + 16),
		Urgent:   s.u16(off + 18),
	}
	if t.HeaderLength < 20 {
		return nil, fmt.Errorf("layers: tcp header length %d: %w", t.HeaderLength, ErrInvalidLength)
	}
	if err := s.need(LayerTypeTCP, off, t.HeaderLength); err != nil {
		return nil, err
	}
	opts, err := s.decodeTCPOptions(off+20, off+t.HeaderLength)
	if err != nil {
		return nil, err
	}
	t.Options = opts
	t.Contents = s.bytes(off, t.HeaderLength)

	t.DataLength = segmentLength - t.HeaderLength
	if t.DataLength > 0 {
		start := off + t.HeaderLength
		n := min(t.DataLength, len(s.buf)-start)
		if n < t.DataLength {
			s.diag(LayerTypeTCP, start, "payload truncated: %d of %d bytes captured", n, t.DataLength)
		}
		t.Data = s.bytes(start, n)
	} else {
		t.DataLength = 0
	}
	s.done(t)
	return t, nil
}
