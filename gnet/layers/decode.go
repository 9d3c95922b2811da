package layers

import (
	"encoding/binary"
	"fmt"
)

// Diagnostic 描述一个可容忍的异常：数据结构合法，但取值超出了已知集合。
type Diagnostic struct {
	Layer   LayerType
	Offset  int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s@%d: %s", d.Layer, d.Offset, d.Message)
}

// DiagnosticHandler receives tolerated-unknown reports during Decode.
type DiagnosticHandler func(Diagnostic)

// LayerHook is called once for every layer after it is fully decoded,
// innermost layer first.
type LayerHook func(Layer)

// Decoder 保存解码选项。构造完成后不可变，可被多个 goroutine 共享。
type Decoder struct {
	noCopy      bool
	skipDNS     bool
	diagnostics DiagnosticHandler
	hook        LayerHook
}

type Option func(*Decoder)

// WithNoCopy makes TCP, UDP and fragment payloads and layer Contents
// alias the input buffer instead of copying it. The decoded frame is then
// only valid until the caller reuses that buffer.
func WithNoCopy() Option {
	return func(d *Decoder) {
		d.noCopy = true
	}
}

// WithoutDNS disables interpreting port 53 UDP payloads as DNS.
func WithoutDNS() Option {
	return func(d *Decoder) {
		d.skipDNS = true
	}
}

func WithDiagnostics(h DiagnosticHandler) Option {
	return func(d *Decoder) {
		d.diagnostics = h
	}
}

func WithLayerHook(h LayerHook) Option {
	return func(d *Decoder) {
		d.hook = h
	}
}

func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var defaultDecoder = NewDecoder()

// Decode decodes one captured frame with the default options.
func Decode(linkType LinkType, hdr CaptureHeader, buf []byte) (*Frame, error) {
	return defaultDecoder.Decode(linkType, hdr, buf)
}

// Decode selects the link-layer decoder for linkType and decodes buf.
// On error no partial frame is returned.
func (d *Decoder) Decode(linkType LinkType, hdr CaptureHeader, buf []byte) (*Frame, error) {
	if int64(len(buf)) < int64(hdr.CapturedLength) {
		return nil, fmt.Errorf("layers: buffer holds %d bytes, header claims %d: %w",
			len(buf), hdr.CapturedLength, ErrTruncated)
	}
	s := &state{buf: buf[:hdr.CapturedLength], d: d}

	var (
		payload FramePayload
		err     error
	)
	switch linkType {
	case LinkTypeEthernet:
		payload, err = s.decodeEthernet(0)
	case LinkTypeNull:
		payload, err = s.decodeNull(0)
	case LinkTypeLinuxSLL:
		payload, err = s.decodeLinuxSLL(0)
	case LinkTypeRaw:
		payload, err = s.decodeRaw(0)
	default:
		return nil, fmt.Errorf("layers: link type %d: %w", uint32(linkType), ErrUnsupportedLinkType)
	}
	if err != nil {
		return nil, err
	}
	return &Frame{LinkType: linkType, Header: hdr, Payload: payload}, nil
}

// DecodeLLC decodes an 802.2 LLC header at the start of buf. LLC has no
// capture link type of its own; it is reached from 802.3 framing.
func (d *Decoder) DecodeLLC(buf []byte) (*LLC, error) {
	s := &state{buf: buf, d: d}
	return s.decodeLLC(0)
}

// state 是单次解码调用的上下文。
type state struct {
	buf []byte
	d   *Decoder
}

func (s *state) need(lt LayerType, off, n int) error {
	if off < 0 || n < 0 || off > len(s.buf) || n > len(s.buf)-off {
		return fmt.Errorf("layers: %s needs %d bytes at offset %d, have %d: %w",
			lt, n, off, max(len(s.buf)-off, 0), ErrTruncated)
	}
	return nil
}

// bytes returns buf[off:off+n], copied unless the decoder aliases.
func (s *state) bytes(off, n int) []byte {
	b := s.buf[off : off+n]
	if s.d.noCopy {
		return b
	}
	c := make([]byte, n)
	copy(c, b)
	return c
}

func (s *state) u8(off int) uint8 {
	return s.buf[off]
}

func (s *state) u16(off int) uint16 {
	return binary.BigEndian.Uint16(s.buf[off:])
}

func (s *state) u32(off int) uint32 {
	return binary.BigEndian.Uint32(s.buf[off:])
}

func (s *state) diag(lt LayerType, off int, format string, args ...any) {
	if s.d.diagnostics == nil {
		return
	}
	s.d.diagnostics(Diagnostic{Layer: lt, Offset: off, Message: fmt.Sprintf(format, args...)})
}

func (s *state) done(l Layer) {
	if s.d.hook != nil {
		s.d.hook(l)
	}
}
