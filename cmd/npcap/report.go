package main

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/sofiworker/npcap/glog"
	"github.com/sofiworker/npcap/gnet/flow"
	"github.com/sofiworker/npcap/gnet/layers"
	"github.com/sofiworker/npcap/gnet/session"
)

type summary struct {
	Input    string         `yaml:"input"`
	LinkType string         `yaml:"link_type"`
	Stats    session.Stats  `yaml:"stats"`
	Signals  map[string]int `yaml:"signals,omitempty"`
	Closed   []flowSummary  `yaml:"closed,omitempty"`
	Open     []flowSummary  `yaml:"open,omitempty"`
	Stored   int            `yaml:"stored,omitempty"`
}

type flowSummary struct {
	Client    string        `yaml:"client"`
	Server    string        `yaml:"server"`
	State     string        `yaml:"state"`
	Duration  string        `yaml:"duration,omitempty"`
	MissedSyn bool          `yaml:"missed_syn,omitempty"`
	Evicted   bool          `yaml:"evicted,omitempty"`
	Sent      directionInfo `yaml:"sent"`
	Received  directionInfo `yaml:"received"`
}

type directionInfo struct {
	Segments    int `yaml:"segments"`
	Payload     int `yaml:"payload"`
	Retransmits int `yaml:"retransmits,omitempty"`
	WindowScale int `yaml:"window_scale,omitempty"`
}

func newDirectionInfo(c *flow.Counters) directionInfo {
	d := directionInfo{
		Segments:    c.Segments,
		Payload:     c.BytesPayload,
		Retransmits: c.Retransmits(),
	}
	if c.WindowScale > 0 {
		d.WindowScale = c.WindowMultiplier()
	}
	return d
}

func newFlowSummary(f *flow.Flow) flowSummary {
	s := flowSummary{
		Client:    f.Src.String(),
		Server:    f.Dst.String(),
		State:     f.State.String(),
		MissedSyn: f.MissedSyn,
		Sent:      newDirectionInfo(&f.Send),
		Received:  newDirectionInfo(&f.Recv),
	}
	if !f.SynTime.IsZero() {
		s.Duration = f.Duration().String()
	}
	return s
}

// report 订阅 tracker 事件：记录日志并保存已结束的连接。
type report struct {
	log     glog.GLogger
	signals map[string]int
	closed  []flowSummary
	stored  int
}

func newReport(log glog.GLogger) *report {
	return &report{log: log, signals: make(map[string]int)}
}

func (r *report) OnEvent(e flow.Event) {
	r.signals[e.Signal.String()]++
	switch e.Signal {
	case flow.SignalDataSend, flow.SignalDataRecv:
		r.log.Debug("tcp data", "flow", e.Flow.Key, "direction", e.Direction, "len", len(e.Data))
	case flow.SignalRetransmit:
		r.log.Debug("tcp retransmit", "flow", e.Flow.Key, "direction", e.Direction, "seq", e.SeqKey)
	case flow.SignalEnd:
		r.log.Info("tcp end", "flow", e.Flow, "duration", e.Flow.Duration())
		r.closed = append(r.closed, newFlowSummary(e.Flow))
	case flow.SignalEvict:
		r.log.Warn("tcp flow evicted", "flow", e.Flow)
		s := newFlowSummary(e.Flow)
		s.Evicted = true
		r.closed = append(r.closed, s)
	default:
		r.log.Info("tcp "+e.Signal.String(), "flow", e.Flow, "time", e.Time)
	}
}

func (r *report) write(w io.Writer, input string, lt layers.LinkType, stats session.Stats, open []*flow.Flow) error {
	s := summary{
		Input:    input,
		LinkType: lt.String(),
		Stats:    stats,
		Signals:  r.signals,
		Closed:   r.closed,
		Stored:   r.stored,
	}
	for _, f := range open {
		s.Open = append(s.Open, newFlowSummary(f))
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return enc.Close()
}
