package cellular

// State is one of the eleven lifecycle states of spec.md §3.
type State int

const (
	StateIdle State = iota
	StatePowerOn
	StateRunInit
	StateConnectCmux
	StateOpenDlci1
	StateOpenDlci2
	StateRunDial
	StateRegister
	StateCarrierOn
	StateCarrierOff
	StatePowerOff
)

// String renders the state the way the reference driver logs it (lower
// case, space separated), in the spirit of jaracil-vmodem's ModemStatus.String().
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePowerOn:
		return "power on"
	case StateRunInit:
		return "run init script"
	case StateConnectCmux:
		return "connect cmux"
	case StateOpenDlci1:
		return "open dlci1"
	case StateOpenDlci2:
		return "open dlci2"
	case StateRunDial:
		return "run dial script"
	case StateRegister:
		return "register"
	case StateCarrierOn:
		return "carrier on"
	case StateCarrierOff:
		return "carrier off"
	case StatePowerOff:
		return "power off"
	default:
		return "unknown"
	}
}

// event is the internal event-tag vocabulary dispatched by evtq.Queue.
type event int

const (
	eventResume event = iota
	eventSuspend
	eventScriptSuccess
	eventScriptFailed
	eventCmuxConnected
	eventDlci1Opened
	eventDlci2Opened
	eventTimeout
	// eventProbe wakes the dispatcher with no state handler reacting to it;
	// Suspend uses it to guarantee the trailing-Suspend synthesis runs even
	// in a state with no timer currently armed (spec.md §3's "dispatcher
	// synthesises a Suspend event at the end of every drain" relies on the
	// drain being woken at all - every state that documents a Suspend
	// transition also keeps a timer armed, but a production port should not
	// depend on that coincidence).
	eventProbe
)

func (e event) String() string {
	switch e {
	case eventResume:
		return "resume"
	case eventSuspend:
		return "suspend"
	case eventScriptSuccess:
		return "script success"
	case eventScriptFailed:
		return "script failed"
	case eventCmuxConnected:
		return "cmux connected"
	case eventDlci1Opened:
		return "dlci1 opened"
	case eventDlci2Opened:
		return "dlci2 opened"
	case eventTimeout:
		return "timeout"
	case eventProbe:
		return "probe"
	default:
		return "unknown"
	}
}
