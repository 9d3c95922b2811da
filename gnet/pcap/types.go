package pcap

import (
	"encoding/binary"
	"time"

	"github.com/sofiworker/npcap/gnet/layers"
)

const (
	MagicNumberMicroseconds        uint32 = 0xa1b2c3d4
	MagicNumberMicrosecondsSwapped uint32 = 0xd4c3b2a1
	MagicNumberNanoseconds         uint32 = 0xa1b23c4d
	MagicNumberNanosecondsSwapped  uint32 = 0x4d3cb2a1
)

const (
	fileHeaderLen   = 24
	recordHeaderLen = 16
)

type FileHeader struct {
	MagicNumber  uint32
	VersionMajor uint16
	VersionMinor uint16
	ThisZone     int32
	SigFigs      uint32
	SnapLen      uint32
	Network      uint32
}

// Packet 是从文件中读出的一条记录。
type Packet struct {
	// Header carries microsecond timestamps regardless of the file's
	// resolution, ready to hand to the decoder.
	Header    layers.CaptureHeader
	Data      []byte
	Timestamp time.Time
}

func (h *FileHeader) IsLittleEndian() bool {
	switch h.MagicNumber {
	case MagicNumberMicrosecondsSwapped, MagicNumberNanosecondsSwapped:
		return true
	default:
		return false
	}
}

func (h *FileHeader) ByteOrder() binary.ByteOrder {
	if h.IsLittleEndian() {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (h *FileHeader) TimestampResolution() time.Duration {
	switch h.MagicNumber {
	case MagicNumberNanoseconds, MagicNumberNanosecondsSwapped:
		return time.Nanosecond
	default:
		return time.Microsecond
	}
}

// LinkType returns the file's link type as understood by the decoder.
// The upper bits of Network carry FCS flags and are masked off.
func (h *FileHeader) LinkType() layers.LinkType {
	return layers.LinkType(h.Network & 0x0fffffff)
}

func (p *Packet) CaptureLength() int {
	return len(p.Data)
}

func (p *Packet) OriginalLength() int {
	if p.Header.OriginalLength == 0 {
		return len(p.Data)
	}
	return int(p.Header.OriginalLength)
}
