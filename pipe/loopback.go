package pipe

import (
	"context"
	"sync"
)

// Loopback is an in-memory Pipe test double. Bytes written with Push arrive
// via Receive; bytes written via Transmit are collected and can be read back
// with Written. It is used across the pipe, chat, cmux and ppp tests in place
// of a real UART, in the same spirit as the teacher's in-memory test rig for
// at.AT, generalized to the full async-open Pipe contract.
type Loopback struct {
	mu      sync.Mutex
	handler Handler
	opened  bool
	closed  bool
	rx      []byte
	written []byte
}

// NewLoopback creates an unopened Loopback pipe.
func NewLoopback() *Loopback {
	return &Loopback{}
}

// Open marks the pipe open and, if a handler is attached, delivers
// EventOpened synchronously (there being no real hardware latency to model).
func (l *Loopback) Open(ctx context.Context) error {
	l.mu.Lock()
	l.opened = true
	l.closed = false
	h := l.handler
	l.mu.Unlock()
	if h != nil {
		h(l, EventOpened)
	}
	return nil
}

// Close marks the pipe closed and notifies the attached handler.
func (l *Loopback) Close() error {
	l.mu.Lock()
	l.closed = true
	h := l.handler
	l.mu.Unlock()
	if h != nil {
		h(l, EventClosed)
	}
	return nil
}

// Attach installs h, superseding any previously attached handler.
func (l *Loopback) Attach(h Handler) error {
	l.mu.Lock()
	l.handler = h
	l.mu.Unlock()
	return nil
}

// Release detaches the current handler.
func (l *Loopback) Release() {
	l.mu.Lock()
	l.handler = nil
	l.mu.Unlock()
}

// Receive copies buffered inbound bytes (pushed via Push) into buf.
func (l *Loopback) Receive(buf []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.rx) == 0 {
		return 0, nil
	}
	n := copy(buf, l.rx)
	l.rx = l.rx[n:]
	return n, nil
}

// Transmit appends buf to the pipe's Written record.
func (l *Loopback) Transmit(buf []byte) (int, error) {
	l.mu.Lock()
	l.written = append(l.written, buf...)
	h := l.handler
	l.mu.Unlock()
	if h != nil {
		h(l, EventTransmitIdle)
	}
	return len(buf), nil
}

// Push makes data available to the next Receive call and notifies the
// attached handler that bytes are ready.
func (l *Loopback) Push(data []byte) {
	l.mu.Lock()
	l.rx = append(l.rx, data...)
	h := l.handler
	l.mu.Unlock()
	if h != nil {
		h(l, EventReceiveReady)
	}
}

// Written returns and clears everything transmitted through the pipe so far.
func (l *Loopback) Written() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.written
	l.written = nil
	return w
}

// IsOpen reports whether Open has been called more recently than Close.
func (l *Loopback) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opened && !l.closed
}
