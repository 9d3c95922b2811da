package pcap

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sofiworker/npcap/gnet/layers"
)

// 未设置 snaplen 的文件允许的最大记录长度。
const maxRecordLen = 256 * 1024

type Reader struct {
	r         io.Reader
	header    FileHeader
	byteOrder binary.ByteOrder
	tsUnit    time.Duration
}

func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	var hdrBytes [fileHeaderLen]byte
	if _, err := io.ReadFull(br, hdrBytes[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrInvalidFileHeader
		}
		return nil, err
	}

	magic := binary.BigEndian.Uint32(hdrBytes[0:4])
	switch magic {
	case MagicNumberMicroseconds, MagicNumberNanoseconds,
		MagicNumberMicrosecondsSwapped, MagicNumberNanosecondsSwapped:
	default:
		return nil, ErrInvalidMagicNumber
	}

	header := FileHeader{MagicNumber: magic}
	order := header.ByteOrder()

	header.VersionMajor = order.Uint16(hdrBytes[4:6])
	header.VersionMinor = order.Uint16(hdrBytes[6:8])
	header.ThisZone = int32(order.Uint32(hdrBytes[8:12]))
	header.SigFigs = order.Uint32(hdrBytes[12:16])
	header.SnapLen = order.Uint32(hdrBytes[16:20])
	header.Network = order.Uint32(hdrBytes[20:24])

	return &Reader{
		r:         br,
		header:    header,
		byteOrder: order,
		tsUnit:    header.TimestampResolution(),
	}, nil
}

func (r *Reader) Header() FileHeader {
	return r.header
}

func (r *Reader) LinkType() layers.LinkType {
	return r.header.LinkType()
}

// ReadPacket reads the next record into a freshly allocated Packet.
// It returns io.EOF at a clean end of file.
func (r *Reader) ReadPacket() (*Packet, error) {
	p := &Packet{}
	if err := r.ReadPacketInto(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadPacketInto reads the next record into p, reusing p.Data when it has
// enough capacity. Slices previously taken from p.Data, including decoded
// layers built with layers.WithNoCopy, are overwritten.
func (r *Reader) ReadPacketInto(p *Packet) error {
	var hdrBytes [recordHeaderLen]byte
	if _, err := io.ReadFull(r.r, hdrBytes[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrInvalidPacketHeader
		}
		return err
	}

	sec := r.byteOrder.Uint32(hdrBytes[0:4])
	frac := r.byteOrder.Uint32(hdrBytes[4:8])
	inclLen := r.byteOrder.Uint32(hdrBytes[8:12])
	origLen := r.byteOrder.Uint32(hdrBytes[12:16])

	limit := r.header.SnapLen
	if limit == 0 {
		limit = maxRecordLen
	}
	if inclLen > limit {
		return fmt.Errorf("%w: %d > %d", ErrSnapLenExceeded, inclLen, limit)
	}

	if cap(p.Data) >= int(inclLen) {
		p.Data = p.Data[:inclLen]
	} else {
		p.Data = make([]byte, inclLen)
	}
	if _, err := io.ReadFull(r.r, p.Data); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrTruncatedPacket
		}
		return err
	}

	usec := frac
	nsec := int64(frac) * int64(time.Microsecond)
	if r.tsUnit == time.Nanosecond {
		usec = frac / 1000
		nsec = int64(frac)
	}
	p.Header = layers.CaptureHeader{
		Seconds:        sec,
		Microseconds:   usec,
		CapturedLength: inclLen,
		OriginalLength: origLen,
	}
	p.Timestamp = time.Unix(int64(sec), nsec).UTC()
	return nil
}
