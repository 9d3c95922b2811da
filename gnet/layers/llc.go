package layers

import (
	"fmt"
	"strings"
)

const (
	SAPSNAP  uint8 = 0xaa
	SAPBasic uint8 = 0x00
)

// LLC is an 802.2 header. Only SNAP and basic SAP pairs are decoded.
type LLC struct {
	BaseLayer
	DSAP      uint8
	SSAP      uint8
	Control   uint8
	EtherType EthernetType
	Payload   NetworkLayer
}

func (*LLC) LayerType() LayerType { return LayerTypeLLC }
func (*LLC) framePayload()        {}

func (l *LLC) String() string {
	var b strings.Builder
	b.WriteString("dsap: ")
	b.WriteString(decByte[l.DSAP])
	b.WriteString(" ssap: ")
	b.WriteString(decByte[l.SSAP])
	b.WriteByte(' ')
	b.WriteString(etherPayloadString(l.EtherType, l.Payload))
	return b.String()
}

func (s *state) decodeLLC(off int) (*LLC, error) {
	if err := s.need(LayerTypeLLC, off, 2); err != nil {
		return nil, err
	}
	l := &LLC{DSAP: s.u8(off), SSAP: s.u8(off + 1)}
	if !(l.DSAP == SAPSNAP && l.SSAP == SAPSNAP) && !(l.DSAP == SAPBasic && l.SSAP == SAPBasic) {
		return nil, fmt.Errorf("layers: llc dsap %#02x ssap %#02x: %w", l.DSAP, l.SSAP, ErrUnsupportedSAP)
	}
	// control, 3 字节 OUI 占位, ethertype
	if err := s.need(LayerTypeLLC, off, 8); err != nil {
		return nil, err
	}
	l.Control = s.u8(off + 2)
	l.EtherType = EthernetType(s.u16(off + 6))
	l.Contents = s.bytes(off, 8)

	p, err := s.decodeEtherPayload(LayerTypeLLC, l.EtherType, off+8)
	if err != nil {
		return nil, err
	}
	l.Payload = p
	s.done(l)
	return l, nil
}
