package session

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/sofiworker/npcap/glog"
)

const instrumentationName = "github.com/sofiworker/npcap/gnet/session"

// telemetry 持有一次会话使用的 tracer 和计数器。未配置 provider 时使用全局 provider。
type telemetry struct {
	tracer       trace.Tracer
	packets      metric.Int64Counter
	decodeErrors metric.Int64Counter
	segments     metric.Int64Counter
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider, log glog.GLogger) *telemetry {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := mp.Meter(instrumentationName)
	counter := func(name, desc string) metric.Int64Counter {
		c, err := m.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{packet}"))
		if err != nil {
			log.Warn("create counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}
	return &telemetry{
		tracer:       tp.Tracer(instrumentationName),
		packets:      counter("npcap.session.packets", "Packets read from the source."),
		decodeErrors: counter("npcap.session.decode_errors", "Packets that failed to decode."),
		segments:     counter("npcap.session.tcp_segments", "TCP segments fed to the flow tracker."),
	}
}

func (t *telemetry) start(ctx context.Context, lt string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "session.run", trace.WithAttributes(attribute.String("npcap.link_type", lt)))
}

func (t *telemetry) finish(span trace.Span, st Stats, err error) {
	span.SetAttributes(
		attribute.Int("npcap.packets", st.Packets),
		attribute.Int("npcap.decoded", st.Decoded),
		attribute.Int("npcap.decode_errors", st.DecodeErrors),
		attribute.Int("npcap.tcp_segments", st.TCPSegments),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
