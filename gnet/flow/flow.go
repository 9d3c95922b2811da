package flow

import (
	"net/netip"
	"time"

	"github.com/sofiworker/npcap/gnet/layers"
)

// Counters 记录单个方向上的统计。
type Counters struct {
	ISN uint32
	// WindowScale is the advertised shift count; zero when not negotiated.
	WindowScale uint8
	NextSeq     uint32
	Segments    int
	BytesIP     int
	BytesTCP    int
	// BytesPayload sums the declared payload length, including bytes the
	// capture did not keep.
	BytesPayload int
	// Packets maps seq+len of each data segment to when it was first seen.
	Packets map[uint32]time.Time
	// Acks maps acknowledgement numbers that matched a segment from the
	// other direction to when the ack was seen.
	Acks    map[uint32]time.Time
	Retrans map[uint32]int
}

func newCounters() Counters {
	return Counters{
		Packets: make(map[uint32]time.Time),
		Acks:    make(map[uint32]time.Time),
		Retrans: make(map[uint32]int),
	}
}

// WindowMultiplier returns the factor applied to the advertised window.
func (c *Counters) WindowMultiplier() int {
	return 1 << c.WindowScale
}

// Retransmits returns the total number of retransmitted segments.
func (c *Counters) Retransmits() int {
	n := 0
	for _, v := range c.Retrans {
		n += v
	}
	return n
}

func (c *Counters) add(ip layers.IP, tcp *layers.TCP) {
	c.Segments++
	c.BytesIP += ip.HeaderLen()
	c.BytesTCP += tcp.HeaderLength
}

// Flow 是一条 TCP 连接的状态。Send 方向属于发起方 Src。
type Flow struct {
	Key         Key
	State       State
	Src, Dst    netip.AddrPort
	SynTime     time.Time
	ConnectTime time.Time
	CloseTime   time.Time
	// MissedSyn is set when the first segment seen was not a SYN.
	MissedSyn bool
	Send      Counters
	Recv      Counters
	LastSeen  time.Time
}

func newFlow(k Key) *Flow {
	return &Flow{Key: k, Send: newCounters(), Recv: newCounters()}
}

// Duration returns the time between the first SYN and the close, or
// the last segment if the flow is still open.
func (f *Flow) Duration() time.Duration {
	end := f.CloseTime
	if end.IsZero() {
		end = f.LastSeen
	}
	return end.Sub(f.SynTime)
}

func (f *Flow) String() string {
	return f.Src.String() + " -> " + f.Dst.String() + " " + f.State.String()
}

type emitFunc func(Event)

// segment is one TCP segment with its endpoints resolved.
type segment struct {
	at       time.Time
	ip       layers.IP
	tcp      *layers.TCP
	src, dst netip.AddrPort
}

func (s *segment) syn() bool { return s.tcp.Flags.SYN && !s.tcp.Flags.ACK }

// track advances the state machine by one segment. It reports false when
// the segment matched neither endpoint of an established flow.
func (f *Flow) track(s *segment, emit emitFunc) bool {
	f.LastSeen = s.at
	switch {
	case f.State == StateClosed:
		f.open(s)
		return true
	case s.syn():
		emit(Event{Signal: SignalSYNRetry, Flow: f, Time: s.at})
		return true
	}

	switch f.State {
	case StateSynSent:
		if s.src == f.Dst && s.tcp.Flags.SYN && s.tcp.Flags.ACK {
			f.Recv.add(s.ip, s.tcp)
			f.Recv.ISN = s.tcp.Seq
			f.Recv.WindowScale = s.tcp.Options.WindowScale
			f.Recv.NextSeq = s.tcp.Seq + 1
			f.Recv.Packets[s.tcp.Seq+1] = s.at
			f.Recv.Acks[s.tcp.Ack] = s.at
			f.State = StateSynRecv
			return true
		}
		f.State = StateClosed
		emit(Event{Signal: SignalReset, Flow: f, Time: s.at, Direction: DirectionRecv})
	case StateSynRecv:
		if s.src == f.Src && s.tcp.Flags.ACK {
			f.Send.add(s.ip, s.tcp)
			f.Send.Acks[s.tcp.Ack] = s.at
			f.ConnectTime = s.at
			f.State = StateEstablished
			emit(Event{Signal: SignalStart, Flow: f, Time: s.at})
		}
	case StateEstablished:
		switch s.src {
		case f.Src:
			f.data(s, DirectionSend, &f.Send, &f.Recv, emit)
			if s.tcp.Flags.FIN {
				f.State = StateFinWait
			}
		case f.Dst:
			f.data(s, DirectionRecv, &f.Recv, &f.Send, emit)
			if s.tcp.Flags.FIN {
				f.State = StateCloseWait
			}
		default:
			return false
		}
	case StateFinWait:
		if s.src == f.Dst && s.tcp.Flags.FIN {
			f.State = StateClosing
		}
	case StateCloseWait:
		if s.src == f.Src && s.tcp.Flags.FIN {
			f.State = StateLastAck
		}
	case StateLastAck:
		if s.src == f.Dst {
			f.close(s, emit)
		}
	case StateClosing:
		if s.src == f.Src {
			f.close(s, emit)
		}
	}
	return true
}

// open starts the flow from CLOSED. A flow that returns to CLOSED after a
// reset starts over with fresh counters.
func (f *Flow) open(s *segment) {
	f.Src, f.Dst = s.src, s.dst
	f.Send, f.Recv = newCounters(), newCounters()
	f.ConnectTime, f.CloseTime = time.Time{}, time.Time{}
	f.MissedSyn = false

	if s.syn() {
		f.State = StateSynSent
	} else {
		f.MissedSyn = true
		f.ConnectTime = s.at
		f.State = StateEstablished
	}
	f.SynTime = s.at
	f.Send.add(s.ip, s.tcp)
	f.Send.ISN = s.tcp.Seq
	f.Send.WindowScale = s.tcp.Options.WindowScale
	f.Send.NextSeq = s.tcp.Seq + 1
}

func (f *Flow) data(s *segment, dir Direction, c, peer *Counters, emit emitFunc) {
	c.add(s.ip, s.tcp)
	if n := s.tcp.DataLength; n > 0 {
		key := s.tcp.Seq + uint32(n)
		if _, seen := c.Packets[key]; seen {
			c.Retrans[key]++
			emit(Event{Signal: SignalRetransmit, Flow: f, Time: s.at, Direction: dir, SeqKey: key})
		} else {
			c.Packets[key] = s.at
			sig := SignalDataSend
			if dir == DirectionRecv {
				sig = SignalDataRecv
			}
			emit(Event{Signal: sig, Flow: f, Time: s.at, Direction: dir, SeqKey: key, Data: s.tcp.Data})
		}
		c.BytesPayload += n
		c.NextSeq = key
	}
	if _, ok := peer.Packets[s.tcp.Ack]; ok {
		c.Acks[s.tcp.Ack] = s.at
	}
}

func (f *Flow) close(s *segment, emit emitFunc) {
	f.CloseTime = s.at
	f.State = StateClosed
	emit(Event{Signal: SignalEnd, Flow: f, Time: s.at})
}
