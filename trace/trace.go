// Package trace provides an io.ReadWriter decorator that logs every read
// and write through a charmbracelet/log logger, the same structured logger
// the lifecycle state machine uses for its own state/event messages - so a
// traced UART's bytes interleave in the same log stream as the state
// transitions that provoked them.
package trace

import (
	"io"

	"github.com/charmbracelet/log"
)

// Trace wraps rw, logging each Read/Write at debug level.
type Trace struct {
	rw  io.ReadWriter
	log *log.Logger

	readKey, writeKey string
}

// Option modifies a Trace created by New.
type Option func(*Trace)

// New creates a Trace on rw, logging through l.
func New(rw io.ReadWriter, l *log.Logger, opts ...Option) *Trace {
	t := &Trace{rw: rw, log: l, readKey: "rx", writeKey: "tx"}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ReadKey sets the log field name used for Read calls (default "rx").
func ReadKey(key string) Option {
	return func(t *Trace) { t.readKey = key }
}

// WriteKey sets the log field name used for Write calls (default "tx").
func WriteKey(key string) Option {
	return func(t *Trace) { t.writeKey = key }
}

func (t *Trace) Read(p []byte) (int, error) {
	n, err := t.rw.Read(p)
	if n > 0 {
		t.log.Debug("uart", t.readKey, string(p[:n]))
	}
	return n, err
}

func (t *Trace) Write(p []byte) (int, error) {
	n, err := t.rw.Write(p)
	if n > 0 {
		t.log.Debug("uart", t.writeKey, string(p[:n]))
	}
	return n, err
}

// Close closes the underlying rw if it implements io.Closer.
func (t *Trace) Close() error {
	if c, ok := t.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
