// Package ppp provides the contract the lifecycle state machine needs from
// the PPP attachment: a network-interface-like handle whose link address and
// carrier state can be set, and a pipe-backed Binding that attaches/releases
// against a DLCI the same way chat does.
//
// The PPP packet framing itself - LCP/IPCP negotiation, HDLC-like framing of
// IP packets over the DLCI byte stream - is out of scope per spec.md §1: it
// is treated as an external collaborator. What this package specifies is the
// attach/release/link-address/carrier contract the cellular package drives.
package ppp

import (
	"sync"

	"github.com/go-modem/cellular/pipe"
)

// Iface is the network-interface-like object PPP exposes upward: a link
// address (set once, from the IMEI, after RunInit) and a carrier flag (raised
// in CarrierOn, dropped from CarrierOff onward).
type Iface interface {
	SetLinkAddr(addr []byte)
	SetCarrier(up bool)
}

// BasicIface is a minimal Iface suitable for tests and for wiring into a
// real net.Interface registration layer (out of scope here per spec.md §1).
type BasicIface struct {
	mu      sync.Mutex
	addr    []byte
	carrier bool
}

// NewBasicIface creates a BasicIface with no link address and carrier down.
func NewBasicIface() *BasicIface { return &BasicIface{} }

// SetLinkAddr implements Iface.
func (b *BasicIface) SetLinkAddr(addr []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addr = append([]byte(nil), addr...)
}

// SetCarrier implements Iface.
func (b *BasicIface) SetCarrier(up bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.carrier = up
}

// LinkAddr returns the most recently set link address.
func (b *BasicIface) LinkAddr() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.addr...)
}

// Carrier reports the most recently set carrier state.
func (b *BasicIface) Carrier() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.carrier
}

// Binding attaches a PPP session to a pipe.Pipe, mirroring Chat's
// Attach/Release contract so the two can exclusively share a DLCI sub-Pipe
// over time (spec.md §3 invariant: at most one of {Chat, PPP} attached to
// any given DLCI).
type Binding struct {
	iface Iface

	mu sync.Mutex
	p  pipe.Pipe
}

// NewBinding creates a Binding that drives iface.
func NewBinding(iface Iface) *Binding {
	return &Binding{iface: iface}
}

// Attach binds the PPP session to p.
// Packet framing itself is out of scope; Attach only records the pipe so
// that, wired to a real implementation, it would begin sending/receiving
// PPP frames over it.
func (b *Binding) Attach(p pipe.Pipe) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.p = p
	return nil
}

// Release detaches the PPP session from its current pipe, if any.
func (b *Binding) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.p = nil
}

// Iface returns the network-interface handle this binding drives.
func (b *Binding) Iface() Iface { return b.iface }
