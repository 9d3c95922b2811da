package layers

type LayerType int

const (
	LayerTypeEthernet LayerType = iota
	LayerTypeNull
	LayerTypeLinuxSLL
	LayerTypeLLC
	LayerTypeIPv4
	LayerTypeIPv6
	LayerTypeARP
	LayerTypeHeaderExtension
	LayerTypeNoNext
	LayerTypeFragment
	LayerTypeICMP
	LayerTypeIGMP
	LayerTypeTCP
	LayerTypeUDP
	LayerTypeDNS
	LayerTypeUnknown
)

var layerTypeNames = [...]string{
	LayerTypeEthernet:        "Ethernet",
	LayerTypeNull:            "Null",
	LayerTypeLinuxSLL:        "LinuxSLL",
	LayerTypeLLC:             "LLC",
	LayerTypeIPv4:            "IPv4",
	LayerTypeIPv6:            "IPv6",
	LayerTypeARP:             "ARP",
	LayerTypeHeaderExtension: "HeaderExtension",
	LayerTypeNoNext:          "NoNext",
	LayerTypeFragment:        "Fragment",
	LayerTypeICMP:            "ICMP",
	LayerTypeIGMP:            "IGMP",
	LayerTypeTCP:             "TCP",
	LayerTypeUDP:             "UDP",
	LayerTypeDNS:             "DNS",
	LayerTypeUnknown:         "Unknown",
}

func (t LayerType) String() string {
	if t >= 0 && int(t) < len(layerTypeNames) {
		return layerTypeNames[t]
	}
	return "LayerType(" + decString(uint32(t)) + ")"
}

// Layer 是所有解码结果的公共接口。
type Layer interface {
	LayerType() LayerType
	Length() int
	String() string
}

// FramePayload 是链路层类型可以直接承载的协议层集合。
type FramePayload interface {
	Layer
	framePayload()
}

// NetworkLayer 是按 ethertype 选择的协议层集合。
type NetworkLayer interface {
	Layer
	networkLayer()
}

// IPPayload 是按 IP 协议号选择的协议层集合。
type IPPayload interface {
	Layer
	ipPayload()
}

// BaseLayer holds the header bytes of a decoded layer.
type BaseLayer struct {
	Contents []byte
}

func (b *BaseLayer) Length() int {
	return len(b.Contents)
}

// payloadString renders a nested layer the way every parent prints it:
// the layer name followed by its own rendering.
func payloadString(l Layer) string {
	if l == nil {
		return ""
	}
	s := l.String()
	if s == "" {
		return l.LayerType().String()
	}
	return l.LayerType().String() + " " + s
}
