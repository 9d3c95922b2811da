// Package session 把离线数据源、解码器和连接跟踪器串联起来。
package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/sofiworker/npcap/glog"
	"github.com/sofiworker/npcap/gnet/flow"
	"github.com/sofiworker/npcap/gnet/layers"
	"github.com/sofiworker/npcap/gnet/packet"
)

// FrameHandler is called for every successfully decoded frame, after the
// tracker has seen it.
type FrameHandler func(p *packet.Packet, f *layers.Frame)

// ErrorHandler is called for every packet that failed to decode.
type ErrorHandler func(p *packet.Packet, err error)

// Stats 汇总一次运行的计数。
type Stats struct {
	Packets      int `yaml:"packets"`
	Decoded      int `yaml:"decoded"`
	DecodeErrors int `yaml:"decode_errors"`
	Truncated    int `yaml:"truncated"`
	Diagnostics  int `yaml:"diagnostics"`
	TCPSegments  int `yaml:"tcp_segments"`
}

type Option func(*Session)

// WithDecoderOptions passes options to the layers decoder. A diagnostics
// handler given here is still called; the session wraps it to count.
func WithDecoderOptions(opts ...layers.Option) Option {
	return func(s *Session) {
		s.decoderOpts = append(s.decoderOpts, opts...)
	}
}

func WithDiagnostics(h layers.DiagnosticHandler) Option {
	return func(s *Session) {
		s.onDiag = h
	}
}

// WithTracker feeds decoded frames to t. Without it the session creates
// an unbounded tracker.
func WithTracker(t *flow.Tracker) Option {
	return func(s *Session) {
		s.tracker = t
	}
}

func WithLogger(l glog.GLogger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

func WithFrameHandler(h FrameHandler) Option {
	return func(s *Session) {
		s.onFrame = h
	}
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Session) {
		s.onError = h
	}
}

// WithLimit stops the run after n packets. n <= 0 means no limit.
func WithLimit(n int) Option {
	return func(s *Session) {
		s.limit = n
	}
}

// WithTracerProvider sets where the per-run span goes. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Session) {
		s.tp = tp
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Session) {
		s.mp = mp
	}
}

// Session 按捕获顺序处理一个数据源，不是并发安全的。
type Session struct {
	src         packet.Source
	decoder     *layers.Decoder
	decoderOpts []layers.Option
	tracker     *flow.Tracker
	log         glog.GLogger
	onFrame     FrameHandler
	onError     ErrorHandler
	onDiag      layers.DiagnosticHandler
	limit       int
	stats       Stats
	tp          trace.TracerProvider
	mp          metric.MeterProvider
	tel         *telemetry
}

func New(src packet.Source, opts ...Option) *Session {
	s := &Session{src: src, log: glog.Named("session")}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracker == nil {
		s.tracker = flow.NewTracker(flow.WithLogger(s.log.Named("flow")))
	}
	s.decoder = layers.NewDecoder(append(s.decoderOpts, layers.WithDiagnostics(s.diagnostic))...)
	s.tel = newTelemetry(s.tp, s.mp, s.log)
	return s
}

func (s *Session) Tracker() *flow.Tracker {
	return s.tracker
}

func (s *Session) Stats() Stats {
	return s.stats
}

func (s *Session) diagnostic(d layers.Diagnostic) {
	s.stats.Diagnostics++
	s.log.Debug("decode diagnostic", "packet", s.stats.Packets, "layer", d.Layer, "offset", d.Offset, "message", d.Message)
	if s.onDiag != nil {
		s.onDiag(d)
	}
}

// Run reads the source until it is exhausted, the limit is reached or ctx
// is cancelled. Decode errors are counted and skipped; a read error from
// the source ends the run.
func (s *Session) Run(ctx context.Context) (_ Stats, err error) {
	ctx, span := s.tel.start(ctx, s.src.LinkType().String())
	defer func() { s.tel.finish(span, s.stats, err) }()

	for s.limit <= 0 || s.stats.Packets < s.limit {
		if err := ctx.Err(); err != nil {
			return s.stats, err
		}

		p, err := s.src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.stats, fmt.Errorf("session: read packet %d: %w", s.stats.Packets+1, err)
		}
		s.stats.Packets++
		s.tel.packets.Add(ctx, 1)
		s.handle(ctx, p)
	}
	s.log.InfoContext(ctx, "session finished",
		"packets", s.stats.Packets,
		"decode_errors", s.stats.DecodeErrors,
		"flows", s.tracker.Len())
	return s.stats, nil
}

func (s *Session) handle(ctx context.Context, p *packet.Packet) {
	f, err := p.Decode(s.decoder)
	if err != nil {
		s.stats.DecodeErrors++
		s.tel.decodeErrors.Add(ctx, 1)
		if errors.Is(err, layers.ErrTruncated) {
			s.stats.Truncated++
		}
		s.log.DebugContext(ctx, "decode failed", "packet", s.stats.Packets, "link_type", p.LinkType, "error", err)
		if s.onError != nil {
			s.onError(p, err)
		}
		return
	}
	s.stats.Decoded++
	if s.tracker.Observe(f) {
		s.stats.TCPSegments++
		s.tel.segments.Add(ctx, 1)
	}
	if s.onFrame != nil {
		s.onFrame(p, f)
	}
}
