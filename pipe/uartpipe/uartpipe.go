// Package uartpipe provides a concrete pipe.Pipe implementation over a
// hardware UART, staged through bounded RX/TX ring buffers the way a real
// UART driver would, instead of relying on the OS's own buffering.
//
// The underlying UART handle is any io.ReadWriteCloser - in practice a
// *github.com/tarm/serial.Port, as built by the teacher's serial package.
package uartpipe

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/go-modem/cellular/pipe"
	"github.com/go-modem/cellular/pipe/internal/ring"
)

// DefaultBufSize is the RX/TX ring capacity used by this core, matching the
// 512-byte buffers of the reference driver.
const DefaultBufSize = 512

// Config configures a UART-backed Pipe.
type Config struct {
	// UART is the underlying byte device. Reads are expected to block until
	// data is available or the device is closed.
	UART io.ReadWriteCloser
	// RecvBufSize and XmitBufSize size the RX/TX rings. DefaultBufSize is
	// used for either when zero.
	RecvBufSize int
	XmitBufSize int
}

// UARTPipe is a pipe.Pipe backed by a real UART handle.
type UARTPipe struct {
	uart io.ReadWriteCloser

	rx *ring.Buffer
	tx *ring.Buffer

	mu      sync.Mutex
	handler pipe.Handler
	open    bool
	cancel  context.CancelFunc
}

// New creates an unopened UARTPipe.
func New(cfg Config) *UARTPipe {
	recvSz := cfg.RecvBufSize
	if recvSz <= 0 {
		recvSz = DefaultBufSize
	}
	xmitSz := cfg.XmitBufSize
	if xmitSz <= 0 {
		xmitSz = DefaultBufSize
	}
	return &UARTPipe{
		uart: cfg.UART,
		rx:   ring.New(recvSz),
		tx:   ring.New(xmitSz),
	}
}

// Open starts the RX reader goroutine and reports EventOpened to whatever
// handler is attached once the reader is running.
func (u *UARTPipe) Open(ctx context.Context) error {
	u.mu.Lock()
	if u.open {
		u.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel
	u.open = true
	h := u.handler
	u.mu.Unlock()

	go u.readLoop(runCtx)

	if h != nil {
		h(u, pipe.EventOpened)
	}
	return nil
}

// Close stops the RX reader and closes the underlying UART.
func (u *UARTPipe) Close() error {
	u.mu.Lock()
	if !u.open {
		u.mu.Unlock()
		return nil
	}
	u.open = false
	cancel := u.cancel
	h := u.handler
	u.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	err := u.uart.Close()
	if h != nil {
		h(u, pipe.EventClosed)
	}
	return err
}

// Attach installs h, superseding any previously attached handler.
func (u *UARTPipe) Attach(h pipe.Handler) error {
	u.mu.Lock()
	u.handler = h
	u.mu.Unlock()
	return nil
}

// Release detaches the current handler.
func (u *UARTPipe) Release() {
	u.mu.Lock()
	u.handler = nil
	u.mu.Unlock()
}

// Receive drains bytes from the RX ring into buf.
func (u *UARTPipe) Receive(buf []byte) (int, error) {
	return u.rx.Read(buf), nil
}

// Transmit stages buf into the TX ring and kicks the writer.
func (u *UARTPipe) Transmit(buf []byte) (int, error) {
	n := u.tx.Write(buf)
	if n < len(buf) {
		return n, errors.New("uartpipe: transmit ring overflow")
	}
	go u.drainTx()
	return n, nil
}

// OverflowCount reports how many inbound bytes have been dropped due to RX
// ring capacity. Overflow never aborts the pipe; it only starves the layer
// above (chat scripts time out instead).
func (u *UARTPipe) OverflowCount() uint64 {
	return u.rx.Overflow()
}

func (u *UARTPipe) drainTx() {
	buf := make([]byte, 64)
	for {
		n := u.tx.Read(buf)
		if n == 0 {
			return
		}
		if _, err := u.uart.Write(buf[:n]); err != nil {
			return
		}
	}
}

func (u *UARTPipe) readLoop(ctx context.Context) {
	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := u.uart.Read(buf)
		if n > 0 {
			u.rx.Write(buf[:n])
			u.mu.Lock()
			h := u.handler
			u.mu.Unlock()
			if h != nil {
				h(u, pipe.EventReceiveReady)
			}
		}
		if err != nil {
			u.mu.Lock()
			open := u.open
			h := u.handler
			u.mu.Unlock()
			if open {
				u.Close()
			}
			if h != nil {
				h(u, pipe.EventClosed)
			}
			return
		}
	}
}
