// Package serial opens the physical UART connection to the modem, handing
// back an io.ReadWriteCloser ready to be wrapped by pipe/uartpipe.
package serial

import (
	"time"

	"github.com/tarm/serial"
)

// DefaultReadTimeout bounds each blocking Read call on the port so
// uartpipe's reader goroutine can observe context cancellation promptly
// even with no data arriving.
const DefaultReadTimeout = 500 * time.Millisecond

// Option modifies the tarm/serial.Config built by New.
type Option func(*serial.Config)

// WithReadTimeout overrides DefaultReadTimeout.
func WithReadTimeout(d time.Duration) Option {
	return func(c *serial.Config) { c.ReadTimeout = d }
}

// New opens comPort at baudRate and returns the resulting port.
func New(comPort string, baudRate int, opts ...Option) (*serial.Port, error) {
	config := &serial.Config{Name: comPort, Baud: baudRate, ReadTimeout: DefaultReadTimeout}
	for _, opt := range opts {
		opt(config)
	}
	return serial.OpenPort(config)
}
