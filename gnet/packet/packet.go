package packet

import (
	"time"

	"github.com/google/gopacket"

	"github.com/sofiworker/npcap/gnet/layers"
	"github.com/sofiworker/npcap/gnet/pcap"
)

// Packet 是统一的捕获数据结构。
type Packet struct {
	LinkType    layers.LinkType
	Header      layers.CaptureHeader
	Data        []byte
	Timestamp   time.Time
	InterfaceID int
}

// Decode decodes the packet with d, or with the default decoder when d is nil.
func (p *Packet) Decode(d *layers.Decoder) (*layers.Frame, error) {
	if d == nil {
		return layers.Decode(p.LinkType, p.Header, p.Data)
	}
	return d.Decode(p.LinkType, p.Header, p.Data)
}

func FromPCAP(lt layers.LinkType, pkt *pcap.Packet) *Packet {
	if pkt == nil {
		return nil
	}
	return &Packet{
		LinkType:  lt,
		Header:    pkt.Header,
		Data:      pkt.Data,
		Timestamp: pkt.Timestamp,
	}
}

// FromCaptureInfo adapts a gopacket record. The capture header keeps
// microsecond precision only; Timestamp keeps the original.
func FromCaptureInfo(lt layers.LinkType, ci gopacket.CaptureInfo, data []byte) *Packet {
	ts := ci.Timestamp
	return &Packet{
		LinkType: lt,
		Header: layers.CaptureHeader{
			Seconds:        uint32(ts.Unix()),
			Microseconds:   uint32(ts.Nanosecond() / 1000),
			CapturedLength: uint32(ci.CaptureLength),
			OriginalLength: uint32(ci.Length),
		},
		Data:        data,
		Timestamp:   ts,
		InterfaceID: ci.InterfaceIndex,
	}
}
