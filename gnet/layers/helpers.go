package layers

import "slices"

// Parsed 聚合常见协议层，便于直接访问。
type Parsed struct {
	Frame  *Frame
	Layers []Layer // 由外到内
	Ether  *Ethernet
	IPv4   *IPv4
	IPv6   *IPv6
	TCP    *TCP
	UDP    *UDP
	DNS    *DNS
	Final  Layer // 最内层
}

// Parse 使用默认选项解码并聚合各层。
func Parse(linkType LinkType, hdr CaptureHeader, buf []byte) (*Parsed, error) {
	return defaultDecoder.Parse(linkType, hdr, buf)
}

// Parse decodes buf and records every layer in wire order. The first
// IPv4/IPv6 seen is the outermost one.
func (d *Decoder) Parse(linkType LinkType, hdr CaptureHeader, buf []byte) (*Parsed, error) {
	var inner []Layer
	dd := *d
	dd.hook = func(l Layer) {
		inner = append(inner, l)
		if d.hook != nil {
			d.hook(l)
		}
	}
	f, err := dd.Decode(linkType, hdr, buf)
	if err != nil {
		return nil, err
	}
	slices.Reverse(inner)

	p := &Parsed{Frame: f, Layers: inner}
	for _, l := range inner {
		switch v := l.(type) {
		case *Ethernet:
			p.Ether = v
		case *IPv4:
			if p.IPv4 == nil {
				p.IPv4 = v
			}
		case *IPv6:
			if p.IPv6 == nil {
				p.IPv6 = v
			}
		case *TCP:
			p.TCP = v
		case *UDP:
			p.UDP = v
		case *DNS:
			p.DNS = v
		}
	}
	if n := len(inner); n > 0 {
		p.Final = inner[n-1]
	}
	return p, nil
}

// Payload returns the application bytes carried by the innermost TCP or UDP layer.
func (p *Parsed) Payload() []byte {
	switch {
	case p == nil:
		return nil
	case p.TCP != nil:
		return p.TCP.Data
	case p.UDP != nil:
		return p.UDP.Data
	}
	return nil
}
