package broker

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateReady
	StateDisconnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type event int

const (
	eventDial event = iota
	eventConnect
	eventConnectFailed
	eventDisconnect
	eventClose
)

var transitions = map[State]map[event]State{
	StateIdle: {
		eventDial:  StateConnecting,
		eventClose: StateClosed,
	},
	StateConnecting: {
		eventConnect:       StateReady,
		eventConnectFailed: StateDisconnected,
		eventClose:         StateClosed,
	},
	StateReady: {
		eventDisconnect: StateDisconnected,
		eventClose:      StateClosed,
	},
	StateDisconnected: {
		eventDial:  StateConnecting,
		eventClose: StateClosed,
	},
}

// next returns the state reached from s on ev, or false if ev is not
// accepted in s. Closed accepts nothing.
func (s State) next(ev event) (State, bool) {
	to, ok := transitions[s][ev]
	return to, ok
}
