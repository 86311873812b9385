// Package gpioline controls the modem's power-enable and reset GPIO lines
// over Linux gpiod, via github.com/warthog618/go-gpiocdev - the same
// author's GPIO library as the teacher's own AT/serial stack, and the
// natural Linux counterpart to spec.md §6's "optional active-low
// power-enable GPIO, optional active-high reset GPIO".
package gpioline

import (
	"github.com/warthog618/go-gpiocdev"
)

// Line is one GPIO output line driven by the lifecycle state machine: the
// modem's power-enable or reset pin.
type Line struct {
	l        *gpiocdev.Line
	inverted bool
	asserted bool
}

// Open requests offset on chip as an output line. activeLow configures the
// line's active sense so that Assert/Deassert below always mean "drive the
// modem's enable/reset input active", regardless of polarity - matching
// spec.md §6 where the power GPIO is active-low and the reset GPIO is
// active-high.
func Open(chip string, offset int, activeLow bool) (*Line, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0), gpiocdev.WithConsumer("cellular")}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	l, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, err
	}
	return &Line{l: l, inverted: activeLow}, nil
}

// Assert drives the line to its active level (power/reset asserted).
func (g *Line) Assert() error {
	g.asserted = true
	return g.l.SetValue(1)
}

// Deassert drives the line to its inactive level.
func (g *Line) Deassert() error {
	g.asserted = false
	return g.l.SetValue(0)
}

// Asserted reports the last level this package drove the line to - used by
// the PowerOn/PowerOff states to decide whether a pulse is still in flight
// without re-reading hardware.
func (g *Line) Asserted() bool {
	return g.asserted
}

// Close releases the underlying line request.
func (g *Line) Close() error {
	return g.l.Close()
}
