// Package evtq implements the event ring buffer and dispatcher shared by
// every cellular.Modem instance: a small lock-guarded FIFO of event tags,
// drained by a single worker goroutine, with the "suspend dominates" rule
// from spec.md §3 layered on top.
//
// This is a direct translation of modem_cellular_delegate_event /
// modem_cellular_event_dispatch_handler from the reference C driver into a
// goroutine + channel idiom, generalized from the teacher's at.AT internal
// command/notification loops (cmdLoop, nLoop).
package evtq

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the ring buffer capacity used by this core (spec.md §3:
// "event ring buffer (8 entries)").
const DefaultCapacity = 8

// Queue is a capacity-bounded, mutex-guarded FIFO of event tags.
//
// Producers (Pipe/Chat/CMUX callbacks, timers, the power-action entry point)
// call Delegate from any goroutine. Events from a single producer are never
// reordered; Delegate enqueues and signals the dispatcher, and signals from
// calls made before the dispatcher wakes coalesce into one wake-up whose
// drain pass handles all of their events.
type Queue struct {
	mu       sync.Mutex
	buf      []int
	wake     chan struct{}
	capacity int
}

// New creates a Queue with the given capacity. A non-positive capacity uses
// DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		capacity: capacity,
		wake:     make(chan struct{}, 1),
	}
}

// Delegate appends evt to the queue and wakes the dispatcher. If the queue is
// full the event is dropped (the reference ring buffer has the same
// behaviour; in practice the dispatcher drains far faster than events are
// produced, since handlers never block).
func (q *Queue) Delegate(evt int) {
	q.mu.Lock()
	if len(q.buf) < q.capacity {
		q.buf = append(q.buf, evt)
	}
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) drain() []int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return nil
	}
	out := q.buf
	q.buf = nil
	return out
}

// Run is the single dispatcher goroutine for one cellular.Modem instance. It
// blocks until ctx is cancelled, waking whenever Delegate is called, draining
// the queue in FIFO order and invoking handle once per event. After each
// drain pass, if suspendRequested reports true, handle is invoked exactly
// once more with suspendEvent - the "synthesise a trailing Suspend" rule:
// while the flag stays set, every drain pass ends with one suspendEvent,
// always after the events already in flight in that pass (spec.md §3, §5).
func (q *Queue) Run(ctx context.Context, suspendRequested *atomic.Bool, suspendEvent int, handle func(evt int)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
			for _, evt := range q.drain() {
				handle(evt)
			}
			if suspendRequested != nil && suspendRequested.Load() {
				handle(suspendEvent)
			}
		}
	}
}
