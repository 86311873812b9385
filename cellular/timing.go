package cellular

import "time"

const msec = time.Millisecond

// GPIO and timer constants from spec.md §6.
const (
	powerGPIOPulse  = 1500 * time.Millisecond
	resetGPIOPulse  = 100 * time.Millisecond
	startupTime     = 10 * time.Second
	shutdownTime    = 10 * time.Second
	cmuxConnectWait = 500 * time.Millisecond
	dialRetryWait   = 500 * time.Millisecond
	registerPoll    = 2 * time.Second
	carrierPoll     = 4 * time.Second
	carrierOffWait  = 1 * time.Second
	suspendDeadline = 30 * time.Second
)

// Registration constants from spec.md §4.6 / §8.
const (
	registeredStat       = 5
	packetServiceAttached = 1
)
