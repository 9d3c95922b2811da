package layers

import "fmt"

// Null is the BSD loopback header: a 4-byte protocol family.
type Null struct {
	BaseLayer
	Family  uint8
	Payload NetworkLayer
}

func (*Null) LayerType() LayerType { return LayerTypeNull }
func (*Null) framePayload()        {}

func (n *Null) String() string {
	if n.Payload == nil {
		return decByte[n.Family]
	}
	return decByte[n.Family] + " " + n.Payload.String()
}

func (s *state) decodeNull(off int) (*Null, error) {
	if err := s.need(LayerTypeNull, off, 4); err != nil {
		return nil, err
	}
	// 字节序取决于抓包平台：前两个字节为 0 时按大端取第 4 字节，否则取第 1 字节。
	family := s.u8(off)
	if s.u8(off) == 0 && s.u8(off+1) == 0 {
		family = s.u8(off + 3)
	}
	n := &Null{BaseLayer: BaseLayer{Contents: s.bytes(off, 4)}, Family: family}

	var err error
	switch family {
	case 2:
		n.Payload, err = s.decodeIPv4(off + 4)
	case 24, 28, 30:
		n.Payload, err = s.decodeIPv6(off + 4)
	default:
		return nil, fmt.Errorf("layers: null family %d: %w", family, ErrUnsupportedFamily)
	}
	if err != nil {
		return nil, err
	}
	s.done(n)
	return n, nil
}
