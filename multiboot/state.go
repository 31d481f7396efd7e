package multiboot

import "fmt"

type State int

const (
	Idle State = iota
	Handshaking
	SendingHeader
	ExchangingKey
	SendingPayload
	Finalizing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Handshaking:
		return "handshaking"
	case SendingHeader:
		return "sending header"
	case ExchangingKey:
		return "exchanging key"
	case SendingPayload:
		return "sending payload"
	case Finalizing:
		return "finalizing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// CanTransition reports whether a session may move from one state to another.
// Progress is strictly forward one phase at a time; Failed is reachable from
// any non-terminal state.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == Failed {
		return true
	}
	return to == from+1
}
