package packet

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket/pcapgo"

	"github.com/sofiworker/npcap/gnet/layers"
	"github.com/sofiworker/npcap/gnet/pcap"
)

// pcapng 文件以 Section Header Block 开头。
const ngSectionHeader uint32 = 0x0a0d0d0a

// Source yields packets in capture order and returns io.EOF at the end.
type Source interface {
	Next() (*Packet, error)
	LinkType() layers.LinkType
}

type pcapSource struct {
	r *pcap.Reader
}

// NewPCAPSource reads a classic pcap stream.
func NewPCAPSource(r *pcap.Reader) Source {
	return &pcapSource{r: r}
}

func (s *pcapSource) Next() (*Packet, error) {
	p, err := s.r.ReadPacket()
	if err != nil {
		return nil, err
	}
	return FromPCAP(s.r.LinkType(), p), nil
}

func (s *pcapSource) LinkType() layers.LinkType {
	return s.r.LinkType()
}

type ngSource struct {
	r *pcapgo.NgReader
}

// NewNgSource reads a pcapng stream. Each packet takes the link type of
// the interface it was captured on.
func NewNgSource(r *pcapgo.NgReader) Source {
	return &ngSource{r: r}
}

func (s *ngSource) Next() (*Packet, error) {
	data, ci, err := s.r.ReadPacketData()
	if err != nil {
		return nil, err
	}
	lt := s.LinkType()
	if iface, err := s.r.Interface(ci.InterfaceIndex); err == nil {
		lt = layers.LinkType(iface.LinkType)
	}
	return FromCaptureInfo(lt, ci, data), nil
}

func (s *ngSource) LinkType() layers.LinkType {
	return layers.LinkType(s.r.LinkType())
}

// NewSource detects whether r holds pcap or pcapng data.
func NewSource(r io.Reader) (Source, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("packet: read magic: %w", err)
	}
	if binary.BigEndian.Uint32(magic) == ngSectionHeader {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("packet: pcapng: %w", err)
		}
		return NewNgSource(ng), nil
	}
	pr, err := pcap.NewReader(br)
	if err != nil {
		return nil, err
	}
	return NewPCAPSource(pr), nil
}

// Open 打开 pcap 或 pcapng 文件，返回关闭函数便于调用方统一回收。
func Open(path string) (Source, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("packet: open %s: %w", path, err)
	}
	src, err := NewSource(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("packet: %s: %w", path, err)
	}
	return src, f.Close, nil
}

type linkTypeSource struct {
	Source
	lt layers.LinkType
}

// WithLinkType overrides the link type reported by src and stamped on
// each packet, for captures whose header carries the wrong value.
func WithLinkType(src Source, lt layers.LinkType) Source {
	return &linkTypeSource{Source: src, lt: lt}
}

func (s *linkTypeSource) Next() (*Packet, error) {
	p, err := s.Source.Next()
	if err != nil {
		return nil, err
	}
	p.LinkType = s.lt
	return p, nil
}

func (s *linkTypeSource) LinkType() layers.LinkType {
	return s.lt
}
