// Package cmux implements a 3GPP TS 27.010 basic-mode multiplexer: it
// attaches to a single underlying pipe.Pipe (the UART), performs the DLCI 0
// SABM/UA control-channel handshake, and exposes per-DLCI sub-pipes that
// each perform their own SABM/UA handshake on Open.
//
// Framing conventions (flag byte, byte stuffing, FCS) follow frame.go;
// ownership is hierarchical per design note §9 of the spec: CMUX owns its
// DLCIs, and each DLCI pipe holds only a non-owning back-reference to CMUX
// used to write frames - never to call into CMUX's own state from a DLCI
// callback.
package cmux

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/go-modem/cellular/pipe"
)

// DefaultFrameSize is the N1 frame size used by this core (spec.md §6: CMUX
// frame size 127, matching the init script's AT+CMUX parameter).
const DefaultFrameSize = 127

// Event is an asynchronous notification from the multiplexer.
type Event int

const (
	// EventConnected fires once, edge-triggered, when the DLCI 0 SABM/UA
	// handshake completes.
	EventConnected Event = iota
)

// Config configures a CMUX instance.
type Config struct {
	FrameSize   int
	RecvBufSize int
	OnEvent     func(Event)
}

// ErrBusy indicates Attach was called while already attached to a pipe.
var ErrBusy = errors.New("cmux: busy")

// CMUX is a 3GPP TS 27.010 basic-mode multiplexer over one underlying Pipe.
type CMUX struct {
	cfg Config

	mu        sync.Mutex
	p         pipe.Pipe
	decoder   frameDecoder
	connected bool
	dlcis     map[uint8]*dlciPipe
}

// New creates an unattached CMUX.
func New(cfg Config) *CMUX {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = DefaultFrameSize
	}
	return &CMUX{cfg: cfg, dlcis: make(map[uint8]*dlciPipe)}
}

// Attach binds the multiplexer to the UART pipe p.
func (m *CMUX) Attach(p pipe.Pipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.p != nil {
		return ErrBusy
	}
	m.p = p
	m.connected = false
	return p.Attach(m.onPipeEvent)
}

// ConnectAsync sends a SABM on DLCI 0. EventConnected fires, edge-triggered,
// on the matching UA. Safe to call repeatedly - noisy modems may drop the
// first SABM, and the lifecycle state machine re-issues this on a timer
// until EventConnected arrives.
func (m *CMUX) ConnectAsync() {
	m.mu.Lock()
	p := m.p
	m.mu.Unlock()
	if p == nil {
		return
	}
	p.Transmit(encode(frame{dlci: 0, cr: true, typ: frameSABM}))
}

// DLCIInit registers a DLCI and returns a pipe.Pipe bound to it. Opening the
// returned Pipe performs that DLCI's own SABM/UA handshake.
func (m *CMUX) DLCIInit(address uint8, recvBufSize int) pipe.Pipe {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &dlciPipe{cmux: m, address: address, recvBufSize: recvBufSize}
	m.dlcis[address] = d
	return d
}

// Release tears down every registered DLCI and detaches from the UART pipe.
func (m *CMUX) Release() {
	m.mu.Lock()
	dlcis := m.dlcis
	m.dlcis = make(map[uint8]*dlciPipe)
	p := m.p
	m.p = nil
	m.connected = false
	m.mu.Unlock()
	for _, d := range dlcis {
		d.markClosed()
	}
	if p != nil {
		p.Release()
	}
}

// writeUIH sends a UIH frame carrying payload on the given DLCI. Called by
// dlciPipe.Transmit; together with writeSABM (used by dlciPipe.Open for the
// DLCI handshake) it is the only way a DLCI reaches back into its owner.
func (m *CMUX) writeUIH(dlci uint8, payload []byte) {
	m.mu.Lock()
	p := m.p
	m.mu.Unlock()
	if p == nil {
		return
	}
	p.Transmit(encode(frame{dlci: dlci, cr: true, typ: frameUIH, payload: payload}))
}

func (m *CMUX) writeSABM(dlci uint8) {
	m.mu.Lock()
	p := m.p
	m.mu.Unlock()
	if p == nil {
		return
	}
	p.Transmit(encode(frame{dlci: dlci, cr: true, typ: frameSABM}))
}

func (m *CMUX) onPipeEvent(p pipe.Pipe, evt pipe.Event) {
	if evt != pipe.EventReceiveReady {
		return
	}
	buf := make([]byte, 256)
	for {
		n, _ := p.Receive(buf)
		if n == 0 {
			return
		}
		m.mu.Lock()
		frames := m.decoder.feed(buf[:n])
		m.mu.Unlock()
		for _, f := range frames {
			m.handleFrame(f)
		}
	}
}

func (m *CMUX) handleFrame(f frame) {
	if f.dlci == 0 {
		if f.typ == frameUA {
			m.mu.Lock()
			already := m.connected
			m.connected = true
			cb := m.cfg.OnEvent
			m.mu.Unlock()
			if !already && cb != nil {
				cb(EventConnected)
			}
		}
		return
	}
	m.mu.Lock()
	d := m.dlcis[f.dlci]
	m.mu.Unlock()
	if d == nil {
		return
	}
	switch f.typ {
	case frameUA:
		d.onUA()
	case frameUIH:
		d.onData(f.payload)
	}
}

// dlciPipe is a pipe.Pipe bound to one DLCI. It holds only a non-owning
// reference back to the owning CMUX, used to write frames - never to read
// CMUX's own state machine.
type dlciPipe struct {
	cmux        *CMUX
	address     uint8
	recvBufSize int

	mu      sync.Mutex
	handler pipe.Handler
	open    bool
	rx      []byte
}

func (d *dlciPipe) Open(ctx context.Context) error {
	d.mu.Lock()
	d.open = true
	d.mu.Unlock()
	d.cmux.writeSABM(d.address)
	return nil
}

func (d *dlciPipe) Close() error {
	d.mu.Lock()
	d.open = false
	h := d.handler
	d.mu.Unlock()
	if h != nil {
		h(d, pipe.EventClosed)
	}
	return nil
}

func (d *dlciPipe) Attach(h pipe.Handler) error {
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
	return nil
}

func (d *dlciPipe) Release() {
	d.mu.Lock()
	d.handler = nil
	d.mu.Unlock()
}

func (d *dlciPipe) Receive(buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.rx) == 0 {
		return 0, nil
	}
	n := copy(buf, d.rx)
	d.rx = d.rx[n:]
	return n, nil
}

func (d *dlciPipe) Transmit(buf []byte) (int, error) {
	d.cmux.writeUIH(d.address, buf)
	return len(buf), nil
}

func (d *dlciPipe) onUA() {
	d.mu.Lock()
	h := d.handler
	d.mu.Unlock()
	if h != nil {
		h(d, pipe.EventOpened)
	}
}

func (d *dlciPipe) onData(payload []byte) {
	d.mu.Lock()
	d.rx = append(d.rx, payload...)
	h := d.handler
	d.mu.Unlock()
	if h != nil {
		h(d, pipe.EventReceiveReady)
	}
}

func (d *dlciPipe) markClosed() {
	d.mu.Lock()
	d.open = false
	h := d.handler
	d.mu.Unlock()
	if h != nil {
		h(d, pipe.EventClosed)
	}
}
