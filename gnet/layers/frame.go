package layers

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// LinkType 是捕获后端提供的链路类型标识。
type LinkType uint32

const (
	LinkTypeNull     LinkType = 0
	LinkTypeEthernet LinkType = 1
	LinkTypeRaw      LinkType = 101
	LinkTypeLinuxSLL LinkType = 113
)

func (t LinkType) String() string {
	switch t {
	case LinkTypeNull:
		return "null"
	case LinkTypeEthernet:
		return "ethernet"
	case LinkTypeRaw:
		return "raw"
	case LinkTypeLinuxSLL:
		return "linux_sll"
	}
	return "linktype " + decString(uint32(t))
}

// ParseLinkType accepts the names produced by String.
func ParseLinkType(s string) (LinkType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "null", "loopback":
		return LinkTypeNull, nil
	case "ethernet", "en10mb":
		return LinkTypeEthernet, nil
	case "raw", "ipv4":
		return LinkTypeRaw, nil
	case "linux_sll", "sll":
		return LinkTypeLinuxSLL, nil
	}
	return 0, fmt.Errorf("layers: link type %q: %w", s, ErrUnsupportedLinkType)
}

// CaptureHeaderLen is the size of the record header supplied with every buffer.
const CaptureHeaderLen = 16

// CaptureHeader carries the capture timestamp and lengths of one record.
type CaptureHeader struct {
	Seconds        uint32
	Microseconds   uint32
	CapturedLength uint32
	OriginalLength uint32
}

// ParseCaptureHeader reads the little-endian {tv_sec, tv_usec, caplen, len} record.
func ParseCaptureHeader(b []byte) (CaptureHeader, error) {
	if len(b) < CaptureHeaderLen {
		return CaptureHeader{}, fmt.Errorf("layers: capture header needs %d bytes, have %d: %w",
			CaptureHeaderLen, len(b), ErrTruncated)
	}
	return CaptureHeader{
		Seconds:        binary.LittleEndian.Uint32(b[0:4]),
		Microseconds:   binary.LittleEndian.Uint32(b[4:8]),
		CapturedLength: binary.LittleEndian.Uint32(b[8:12]),
		OriginalLength: binary.LittleEndian.Uint32(b[12:16]),
	}, nil
}

// AppendBinary encodes h in the same layout ParseCaptureHeader reads.
func (h CaptureHeader) AppendBinary(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, h.Seconds)
	b = binary.LittleEndian.AppendUint32(b, h.Microseconds)
	b = binary.LittleEndian.AppendUint32(b, h.CapturedLength)
	return binary.LittleEndian.AppendUint32(b, h.OriginalLength)
}

func (h CaptureHeader) Timestamp() time.Time {
	return time.Unix(int64(h.Seconds), int64(h.Microseconds)*int64(time.Microsecond))
}

// Frame 是一次解码的根结果。
type Frame struct {
	LinkType LinkType
	Header   CaptureHeader
	Payload  FramePayload
}

func (f *Frame) CapturedAt() time.Time {
	return f.Header.Timestamp()
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s %d/%d %s", f.LinkType, f.Header.CapturedLength, f.Header.OriginalLength, f.Payload)
}

// Network returns the network layer carried by the frame, if any.
func (f *Frame) Network() NetworkLayer {
	switch p := f.Payload.(type) {
	case *Ethernet:
		return p.Payload
	case *LLC:
		return p.Payload
	case *LinuxSLL:
		return p.Payload
	case *Null:
		return p.Payload
	case *IPv4:
		return p
	case *IPv6:
		return p
	}
	return nil
}

// IP is implemented by the IPv4 and IPv6 layers.
type IP interface {
	NetworkLayer
	IPPayload
	SourceAddr() netip.Addr
	DestinationAddr() netip.Addr
	// HeaderLen counts the fixed header plus options or extension headers.
	HeaderLen() int
	Transport() IPPayload
}

// TCP returns the outermost IP layer and the TCP segment it carries,
// following IPv6 extension header chains.
func (f *Frame) TCP() (IP, *TCP, bool) {
	ip, ok := f.Network().(IP)
	if !ok {
		return nil, nil, false
	}
	p := ip.Transport()
	for {
		switch v := p.(type) {
		case *TCP:
			return ip, v, true
		case *HeaderExtension:
			p = v.Payload
		default:
			return nil, nil, false
		}
	}
}
