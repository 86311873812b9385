// Package pipe defines the bidirectional byte channel abstraction shared by
// the UART backend, CMUX DLCI sub-channels, chat engine, and PPP binding.
//
// A Pipe is deliberately a capability, not a base type: the UART backend and
// a CMUX DLCI are disjoint byte channels that happen to share one contract.
// Exactly one Pipe implementation is ever the "bottom" of a stack at a time;
// everything above it (chat, PPP) attaches and releases rather than being
// constructed against a concrete type.
package pipe

import (
	"context"

	"github.com/pkg/errors"
)

// Event is a notification delivered to a Pipe's attached handler.
type Event int

const (
	// EventOpened indicates a prior Open call has completed.
	EventOpened Event = iota
	// EventTransmitIdle indicates the transmit side has drained and can
	// accept more data.
	EventTransmitIdle
	// EventReceiveReady indicates bytes are available via Receive.
	EventReceiveReady
	// EventClosed indicates the pipe has closed, voluntarily or due to
	// an underlying I/O error.
	EventClosed
)

func (e Event) String() string {
	switch e {
	case EventOpened:
		return "opened"
	case EventTransmitIdle:
		return "transmit idle"
	case EventReceiveReady:
		return "receive ready"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler receives events from a Pipe. Handlers run on the Pipe's internal
// goroutines and must not block; they should forward the event to a worker
// (typically via evtq.Queue.Delegate) rather than doing any real work inline.
type Handler func(p Pipe, evt Event)

// Pipe is a bidirectional byte stream with asynchronous open semantics and a
// single attachable event callback.
//
// Open is non-blocking: completion is reported via EventOpened to whatever
// handler is attached at completion time, not via Open's return value. Open's
// return value only reports synchronous failure to start opening.
//
// Attach supersedes any previously attached handler; at most one handler is
// ever live at a time. Release detaches the handler without closing the
// underlying channel, so it can be reattached (e.g. chat yields to PPP on
// the same DLCI).
type Pipe interface {
	Open(ctx context.Context) error
	Close() error
	Attach(h Handler) error
	Release()
	Receive(buf []byte) (int, error)
	Transmit(buf []byte) (int, error)
}

// ErrClosed indicates an operation was attempted on a closed Pipe.
var ErrClosed = errors.New("pipe: closed")
