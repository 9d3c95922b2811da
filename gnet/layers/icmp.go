package layers

import "fmt"

type ICMP struct {
	BaseLayer
	Type     uint8
	Code     uint8
	Checksum uint16
}

func (*ICMP) LayerType() LayerType { return LayerTypeICMP }
func (*ICMP) ipPayload()           {}

var icmpTypeMessages = map[uint8]string{
	0:  "Echo Reply",
	1:  "Reserved",
	2:  "Reserved",
	4:  "Source Quench",
	6:  "Alternate Host Address",
	7:  "Reserved",
	8:  "Echo Request",
	9:  "Router Advertisement",
	10: "Router Solicitation",
	13: "Timestamp",
	14: "Timestamp reply",
	19: "Reserved for security",
}

type icmpCodeTable struct {
	fallback string
	codes    []string
}

var icmpCodeMessages = map[uint8]icmpCodeTable{
	3: {"Destination Unreachable", []string{
		"Destination Network Unreachable",
		"Destination Host Unreachable",
		"Destination Protocol Unreachable",
		"Destination Port Unreachable",
		"Fragmentation required, and DF flag set",
		"Source route failed",
		"Destination network unknown",
		"Destination host unknown",
		"Source host isolated",
		"Network administratively prohibited",
		"Host administratively prohibited",
		"Network unreachable for TOS",
		"Host unreachable for TOS",
		"Communication administratively prohibited",
		"Host Precedence Violation",
		"Precedence cutoff in effect",
	}},
	5: {"Redirect", []string{
		"Redirect Network",
		"Redirect Host",
		"Redirect TOS and Network",
		"Redirect TOS and Host",
	}},
	11: {"Time Exceeded", []string{
		"TTL expired in transit",
		"Fragment reassembly time exceeded",
	}},
	12: {"Bad IP Header", []string{
		"Pointer indicates the error",
		"Missing a required option",
		"Bad length",
	}},
}

// Message returns the human readable type/code description, falling back
// to the numeric form for unmapped combinations.
func (i *ICMP) Message() string {
	if m, ok := icmpTypeMessages[i.Type]; ok {
		return m
	}
	if t, ok := icmpCodeMessages[i.Type]; ok {
		if int(i.Code) < len(t.codes) {
			return t.codes[i.Code]
		}
		return fmt.Sprintf("%s (unknown code %d)", t.fallback, i.Code)
	}
	return fmt.Sprintf("type %d code %d", i.Type, i.Code)
}

func (i *ICMP) String() string {
	return i.Message()
}

func (s *state) decodeICMP(off int) (*ICMP, error) {
	if err := s.need(LayerTypeICMP, off, 4); err != nil {
		return nil, err
	}
	i := &ICMP{
		BaseLayer: BaseLayer{Contents: s.bytes(off, 4)},
		Type:      s.u8(off),
		Code:      s.u8(off + 1),
		Checksum:  s.u16(off + 2),
	}
	s.done(i)
	return i, nil
}
