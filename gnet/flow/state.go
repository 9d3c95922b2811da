package flow

import "fmt"

// State 是连接状态机的状态。
type State uint8

const (
	StateClosed State = iota
	StateSynSent
	StateSynRecv
	StateEstablished
	StateFinWait
	StateCloseWait
	StateClosing
	StateLastAck
)

var stateNames = [...]string{
	StateClosed:      "CLOSED",
	StateSynSent:     "SYN_SENT",
	StateSynRecv:     "SYN_RECV",
	StateEstablished: "ESTAB",
	StateFinWait:     "FIN_WAIT",
	StateCloseWait:   "CLOSE_WAIT",
	StateClosing:     "CLOSING",
	StateLastAck:     "LAST_ACK",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}
