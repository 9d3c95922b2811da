package flow

import (
	"net/netip"
	"time"

	"github.com/sofiworker/npcap/glog"
	"github.com/sofiworker/npcap/gnet/layers"
)

// Option 配置 Tracker。
type Option func(*Tracker)

// WithMaxFlows bounds the number of live flows. When a new flow would
// exceed n, the least recently seen flow is dropped with SignalEvict.
// n <= 0 means unbounded.
func WithMaxFlows(n int) Option {
	return func(t *Tracker) {
		t.maxFlows = n
	}
}

func WithLogger(l glog.GLogger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(t *Tracker) {
		t.Subscribe(o)
	}
}

// Tracker 从解码后的帧重建 TCP 连接状态。
//
// Tracker 不是并发安全的：Observe 必须按捕获顺序串行调用。
type Tracker struct {
	flows     *registry
	observers []Observer
	log       glog.GLogger
	maxFlows  int
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{log: glog.Named("flow")}
	for _, opt := range opts {
		opt(t)
	}
	t.flows = newRegistry(t.maxFlows)
	return t
}

// Subscribe registers o for all future events.
func (t *Tracker) Subscribe(o Observer) {
	if o != nil {
		t.observers = append(t.observers, o)
	}
}

// Observe feeds one decoded frame to the tracker. Frames that do not carry
// IPv4 or IPv6 TCP are ignored and reported as false.
func (t *Tracker) Observe(f *layers.Frame) bool {
	if f == nil {
		return false
	}
	ip, tcp, ok := f.TCP()
	if !ok {
		return false
	}
	t.ObserveSegment(f.CapturedAt(), ip, tcp)
	return true
}

// ObserveSegment feeds one TCP segment captured at the given time.
func (t *Tracker) ObserveSegment(at time.Time, ip layers.IP, tcp *layers.TCP) {
	s := &segment{
		at:  at,
		ip:  ip,
		tcp: tcp,
		src: netip.AddrPortFrom(ip.SourceAddr(), tcp.SrcPort),
		dst: netip.AddrPortFrom(ip.DestinationAddr(), tcp.DstPort),
	}
	key := NewKey(s.src, s.dst)

	f, ok := t.flows.get(key)
	isNew := !ok
	if isNew {
		f = newFlow(key)
		if evicted := t.flows.add(f); evicted != nil {
			t.log.Debug("flow evicted", "flow", evicted.Key, "state", evicted.State)
			t.emit(Event{Signal: SignalEvict, Flow: evicted, Time: at})
		}
	}

	if !f.track(s, t.emit) {
		t.log.Debug("non-matching segment", "flow", key, "src", s.src, "dst", s.dst)
	}
	if f.State == StateClosed && !f.CloseTime.IsZero() {
		t.flows.remove(key)
		t.log.Debug("flow removed", "flow", key, "total", t.flows.len())
	}
	if isNew {
		t.emit(Event{Signal: SignalSession, Flow: f, Time: at})
	}
}

func (t *Tracker) emit(e Event) {
	for _, o := range t.observers {
		o.OnEvent(e)
	}
}

// Flow returns the live flow for k without touching its recency.
func (t *Tracker) Flow(k Key) (*Flow, bool) {
	return t.flows.peek(k)
}

// Flows returns the live flows, most recently seen first.
func (t *Tracker) Flows() []*Flow {
	return t.flows.all()
}

func (t *Tracker) Len() int {
	return t.flows.len()
}
