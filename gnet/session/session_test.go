package session

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	gl "github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/sofiworker/npcap/glog"
	"github.com/sofiworker/npcap/gnet/flow"
	"github.com/sofiworker/npcap/gnet/layers"
	"github.com/sofiworker/npcap/gnet/packet"
)

type sliceSource struct {
	pkts []*packet.Packet
	err  error // returned once pkts are exhausted, io.EOF when nil
}

func (s *sliceSource) Next() (*packet.Packet, error) {
	if len(s.pkts) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	p := s.pkts[0]
	s.pkts = s.pkts[1:]
	return p, nil
}

func (s *sliceSource) LinkType() layers.LinkType { return layers.LinkTypeEthernet }

var (
	clientMAC = net.HardwareAddr{2, 0, 0, 0, 0, 1}
	serverMAC = net.HardwareAddr{2, 0, 0, 0, 0, 2}
	clientIP  = net.IP{192, 168, 0, 1}
	serverIP  = net.IP{192, 168, 0, 2}
)

func ethPacket(t *testing.T, sec int64, fromClient bool, tcp *gl.TCP, payload string) *packet.Packet {
	t.Helper()
	eth := &gl.Ethernet{SrcMAC: clientMAC, DstMAC: serverMAC, EthernetType: gl.EthernetTypeIPv4}
	ip := &gl.IPv4{Version: 4, TTL: 64, Protocol: gl.IPProtocolTCP, SrcIP: clientIP, DstIP: serverIP}
	tcp.SrcPort, tcp.DstPort = 50000, 443
	if !fromClient {
		eth.SrcMAC, eth.DstMAC = serverMAC, clientMAC
		ip.SrcIP, ip.DstIP = serverIP, clientIP
		tcp.SrcPort, tcp.DstPort = 443, 50000
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)))
	data := buf.Bytes()
	return packet.FromCaptureInfo(layers.LinkTypeEthernet, gopacket.CaptureInfo{
		Timestamp:     time.Unix(sec, 0),
		CaptureLength: len(data),
		Length:        len(data),
	}, data)
}

func rawPacket(data []byte) *packet.Packet {
	return &packet.Packet{
		LinkType: layers.LinkTypeEthernet,
		Header:   layers.CaptureHeader{CapturedLength: uint32(len(data)), OriginalLength: uint32(len(data))},
		Data:     data,
	}
}

func conversation(t *testing.T) []*packet.Packet {
	return []*packet.Packet{
		ethPacket(t, 1, true, &gl.TCP{Seq: 100, SYN: true, Window: 1024}, ""),
		ethPacket(t, 2, false, &gl.TCP{Seq: 500, Ack: 101, SYN: true, ACK: true, Window: 1024}, ""),
		ethPacket(t, 3, true, &gl.TCP{Seq: 101, Ack: 501, ACK: true, Window: 1024}, ""),
		ethPacket(t, 4, true, &gl.TCP{Seq: 101, Ack: 501, ACK: true, PSH: true, Window: 1024}, "hello"),
		ethPacket(t, 5, false, &gl.TCP{Seq: 501, Ack: 106, ACK: true, Window: 1024}, ""),
	}
}

func TestRun(t *testing.T) {
	pkts := conversation(t)
	// truncated ethernet header
	pkts = append(pkts, rawPacket([]byte{1, 2, 3}))
	// LLDP ethertype is tolerated with a diagnostic
	lldp := make([]byte, 20)
	lldp[12], lldp[13] = 0x88, 0xcc
	pkts = append(pkts, rawPacket(lldp))

	var (
		frames  int
		errs    []error
		diags   []layers.Diagnostic
		signals []flow.Signal
	)
	tracker := flow.NewTracker(
		flow.WithLogger(glog.Nop()),
		flow.WithObserver(flow.ObserverFunc(func(e flow.Event) { signals = append(signals, e.Signal) })),
	)
	s := New(&sliceSource{pkts: pkts},
		WithLogger(glog.Nop()),
		WithTracker(tracker),
		WithFrameHandler(func(*packet.Packet, *layers.Frame) { frames++ }),
		WithErrorHandler(func(_ *packet.Packet, err error) { errs = append(errs, err) }),
		WithDiagnostics(func(d layers.Diagnostic) { diags = append(diags, d) }),
	)

	stats, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{
		Packets:      7,
		Decoded:      6,
		DecodeErrors: 1,
		Truncated:    1,
		Diagnostics:  1,
		TCPSegments:  5,
	}, stats)
	assert.Equal(t, stats, s.Stats())
	assert.Equal(t, 6, frames)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], layers.ErrTruncated)
	require.Len(t, diags, 1)
	assert.Equal(t, layers.LayerTypeEthernet, diags[0].Layer)

	assert.Equal(t, []flow.Signal{flow.SignalSession, flow.SignalStart, flow.SignalDataSend}, signals)
	assert.Same(t, tracker, s.Tracker())
	require.Equal(t, 1, tracker.Len())
	fl := tracker.Flows()[0]
	assert.Equal(t, flow.StateEstablished, fl.State)
	assert.Equal(t, 5, fl.Send.BytesPayload)
	assert.Equal(t, time.Unix(3, 0), fl.ConnectTime)
}

func TestRunNoCopy(t *testing.T) {
	var payload []byte
	s := New(&sliceSource{pkts: conversation(t)},
		WithLogger(glog.Nop()),
		WithDecoderOptions(layers.WithNoCopy()),
		WithFrameHandler(func(p *packet.Packet, f *layers.Frame) {
			if _, tcp, ok := f.TCP(); ok && tcp.HasData() {
				payload = tcp.Data
				// last payload byte: ethernet + ipv4 + tcp headers, then "hell"
				p.Data[14+20+20+4] = '!'
			}
		}),
	)
	_, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("hell!"), payload, "payload aliases the packet buffer")
	assert.Equal(t, 1, s.Tracker().Len(), "default tracker is created")
}

func TestRunLimit(t *testing.T) {
	src := &sliceSource{pkts: conversation(t)}
	s := New(src, WithLogger(glog.Nop()), WithLimit(2))
	stats, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Packets)
	assert.Len(t, src.pkts, 3)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	s := New(&sliceSource{pkts: conversation(t)},
		WithLogger(glog.Nop()),
		WithFrameHandler(func(*packet.Packet, *layers.Frame) {
			calls++
			if calls == 2 {
				cancel()
			}
		}),
	)
	stats, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, stats.Packets)
}

func TestRunSourceError(t *testing.T) {
	boom := errors.New("disk on fire")
	s := New(&sliceSource{pkts: conversation(t)[:1], err: boom}, WithLogger(glog.Nop()))
	stats, err := s.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "read packet 2")
	assert.Equal(t, 1, stats.Packets)
}

type countingMeterProvider struct {
	metricnoop.MeterProvider
	counts map[string]int64
}

func (p *countingMeterProvider) Meter(string, ...metric.MeterOption) metric.Meter {
	return &countingMeter{counts: p.counts}
}

type countingMeter struct {
	metricnoop.Meter
	counts map[string]int64
}

func (m *countingMeter) Int64Counter(name string, _ ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return &countingCounter{name: name, counts: m.counts}, nil
}

type countingCounter struct {
	metricnoop.Int64Counter
	name   string
	counts map[string]int64
}

func (c *countingCounter) Add(_ context.Context, n int64, _ ...metric.AddOption) {
	c.counts[c.name] += n
}

type spanNameProvider struct {
	tracenoop.TracerProvider
	names []string
}

func (p *spanNameProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return &spanNameTracer{p: p}
}

type spanNameTracer struct {
	tracenoop.Tracer
	p *spanNameProvider
}

func (t *spanNameTracer) Start(ctx context.Context, name string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	t.p.names = append(t.p.names, name)
	return ctx, tracenoop.Span{}
}

func TestRunTelemetry(t *testing.T) {
	pkts := append(conversation(t), rawPacket([]byte{1, 2, 3}))
	mp := &countingMeterProvider{counts: make(map[string]int64)}
	tp := &spanNameProvider{}
	s := New(&sliceSource{pkts: pkts},
		WithLogger(glog.Nop()),
		WithMeterProvider(mp),
		WithTracerProvider(tp),
	)
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"session.run"}, tp.names)
	assert.Equal(t, map[string]int64{
		"npcap.session.packets":       6,
		"npcap.session.decode_errors": 1,
		"npcap.session.tcp_segments":  5,
	}, mp.counts)
}
