package layers

type IGMPType uint8

const (
	IGMPMembershipQuery    IGMPType = 0x11
	IGMPMembershipReportV1 IGMPType = 0x12
	IGMPMembershipReportV2 IGMPType = 0x16
	IGMPLeaveGroup         IGMPType = 0x17
	IGMPMembershipReportV3 IGMPType = 0x22
)

func (t IGMPType) String() string {
	switch t {
	case IGMPMembershipQuery:
		return "Membership Query"
	case IGMPMembershipReportV1, IGMPMembershipReportV2, IGMPMembershipReportV3:
		return "Membership Report"
	case IGMPLeaveGroup:
		return "Leave Group"
	}
	return "type " + decByte[t]
}

// Version returns the IGMP version implied by the message type, 0 if unknown.
func (t IGMPType) Version() uint8 {
	switch t {
	case IGMPMembershipQuery, IGMPMembershipReportV3:
		return 3
	case IGMPMembershipReportV1:
		return 1
	case IGMPMembershipReportV2, IGMPLeaveGroup:
		return 2
	}
	return 0
}

type IGMP struct {
	BaseLayer
	Type            IGMPType
	MaxResponseTime uint8
	Checksum        uint16
	Group           IPv4Address
	Version         uint8
}

func (*IGMP) LayerType() LayerType { return LayerTypeIGMP }
func (*IGMP) ipPayload()           {}

func (g *IGMP) String() string {
	return g.Type.String()
}

func (s *state) decodeIGMP(off int) (*IGMP, error) {
	if err := s.need(LayerTypeIGMP, off, 8); err != nil {
		return nil, err
	}
	g := &IGMP{
		BaseLayer:       BaseLayer{Contents: s.bytes(off, 8)},
		Type:            IGMPType(s.u8(off)),
		MaxResponseTime: s.u8(off + 1),
		Checksum:        s.u16(off + 2),
		Group:           DecodeIPv4Address(s.buf, off+4),
	}
	g.Version = g.Type.Version()
	s.done(g)
	return g, nil
}
