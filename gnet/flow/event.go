package flow

import (
	"fmt"
	"time"
)

// Signal 是跟踪器发出的事件类型。
type Signal uint8

const (
	// SignalSession fires once when a flow is first created.
	SignalSession Signal = iota
	// SignalSYNRetry fires for a SYN seen after the flow already started.
	SignalSYNRetry
	// SignalReset fires when the handshake does not get a SYN+ACK.
	SignalReset
	SignalStart
	SignalDataSend
	SignalDataRecv
	SignalRetransmit
	SignalEnd
	// SignalEvict fires when a flow is dropped to respect WithMaxFlows.
	SignalEvict
)

var signalNames = [...]string{
	SignalSession:    "session",
	SignalSYNRetry:   "syn-retry",
	SignalReset:      "reset",
	SignalStart:      "start",
	SignalDataSend:   "data-send",
	SignalDataRecv:   "data-recv",
	SignalRetransmit: "retransmit",
	SignalEnd:        "end",
	SignalEvict:      "evict",
}

func (s Signal) String() string {
	if int(s) < len(signalNames) {
		return signalNames[s]
	}
	return fmt.Sprintf("Signal(%d)", uint8(s))
}

// Direction tells which endpoint sent a segment. Send is the side that
// opened the connection (or was seen first when the handshake was missed).
type Direction uint8

const (
	DirectionSend Direction = iota
	DirectionRecv
)

func (d Direction) String() string {
	if d == DirectionRecv {
		return "recv"
	}
	return "send"
}

// Event 描述一次状态机信号。
type Event struct {
	Signal    Signal
	Flow      *Flow
	Time      time.Time
	Direction Direction
	// SeqKey is seq+len of the segment for data and retransmit events.
	SeqKey uint32
	// Data is the segment payload for data-send and data-recv.
	Data []byte
}

func (e Event) String() string {
	switch e.Signal {
	case SignalDataSend, SignalDataRecv:
		return fmt.Sprintf("%s %s len %d", e.Signal, e.Flow.Key, len(e.Data))
	case SignalRetransmit:
		return fmt.Sprintf("%s %s %s seq %d", e.Signal, e.Flow.Key, e.Direction, e.SeqKey)
	}
	return fmt.Sprintf("%s %s", e.Signal, e.Flow.Key)
}

// Observer receives tracker events in capture order.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }
